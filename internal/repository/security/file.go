package security

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/google/renameio/v2"

	"github.com/oshokin/catpoint/internal/config"
	domain "github.com/oshokin/catpoint/internal/domain/security"
)

// FileRepository persists the security state as a JSON document on disk.
// The document is kept in memory and rewritten atomically after every change.
type FileRepository struct {
	// path is the filesystem location of the JSON state file.
	path string
	// state is the in-memory copy of the document.
	state fileState
	// mu protects state and serializes writes to the file.
	mu sync.Mutex
}

// fileState is the on-disk layout of the state file.
type fileState struct {
	AlarmStatus  domain.AlarmStatus  `json:"alarm_status"`
	ArmingStatus domain.ArmingStatus `json:"arming_status"`
	Sensors      []domain.Sensor     `json:"sensors"`
}

// NewFileRepository opens the state file at path. A missing file yields an
// empty, disarmed state that is created on the first write.
func NewFileRepository(path string) (*FileRepository, error) {
	r := &FileRepository{
		path: filepath.Clean(path),
	}

	contents, err := os.ReadFile(r.path)
	switch {
	case err == nil:
		if err = json.Unmarshal(contents, &r.state); err != nil {
			return nil, fmt.Errorf("decode state file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		// Keep default state.
	default:
		return nil, fmt.Errorf("read state file: %w", err)
	}

	return r, nil
}

// Path returns the location of the state file.
func (r *FileRepository) Path() string {
	return r.path
}

// Sensors returns a copy of the sensor set.
func (r *FileRepository) Sensors(_ context.Context) ([]domain.Sensor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sensors := slices.Clone(r.state.Sensors)
	sortSensors(sensors)

	return sensors, nil
}

// AddSensor inserts or replaces the sensor.
func (r *FileRepository) AddSensor(_ context.Context, sensor domain.Sensor) error {
	if err := sensor.Validate(); err != nil {
		return err
	}

	return r.mutate(func(state *fileState) error {
		index := indexOf(state.Sensors, sensor.Key())
		if index < 0 {
			state.Sensors = append(state.Sensors, sensor)
		} else {
			state.Sensors[index] = sensor
		}

		return nil
	})
}

// RemoveSensor deletes the sensor if present.
func (r *FileRepository) RemoveSensor(_ context.Context, sensor domain.Sensor) error {
	return r.mutate(func(state *fileState) error {
		state.Sensors = slices.DeleteFunc(state.Sensors, func(s domain.Sensor) bool {
			return s.Same(sensor)
		})

		return nil
	})
}

// UpdateSensor overwrites a known sensor.
func (r *FileRepository) UpdateSensor(_ context.Context, sensor domain.Sensor) error {
	return r.mutate(func(state *fileState) error {
		index := indexOf(state.Sensors, sensor.Key())
		if index < 0 {
			return ErrSensorNotFound
		}

		state.Sensors[index] = sensor

		return nil
	})
}

// AlarmStatus returns the current alarm status.
func (r *FileRepository) AlarmStatus(_ context.Context) (domain.AlarmStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.state.AlarmStatus, nil
}

// SetAlarmStatus stores the alarm status.
func (r *FileRepository) SetAlarmStatus(_ context.Context, status domain.AlarmStatus) error {
	return r.mutate(func(state *fileState) error {
		state.AlarmStatus = status

		return nil
	})
}

// ArmingStatus returns the current arming mode.
func (r *FileRepository) ArmingStatus(_ context.Context) (domain.ArmingStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.state.ArmingStatus, nil
}

// SetArmingStatus stores the arming mode.
func (r *FileRepository) SetArmingStatus(_ context.Context, status domain.ArmingStatus) error {
	return r.mutate(func(state *fileState) error {
		state.ArmingStatus = status

		return nil
	})
}

// mutate applies fn to a copy of the state, writes it to disk and only then
// makes it current, so a failed write leaves memory and file in agreement.
func (r *FileRepository) mutate(fn func(state *fileState) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := fileState{
		AlarmStatus:  r.state.AlarmStatus,
		ArmingStatus: r.state.ArmingStatus,
		Sensors:      slices.Clone(r.state.Sensors),
	}

	if err := fn(&next); err != nil {
		return err
	}

	sortSensors(next.Sensors)

	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	if err = renameio.WriteFile(r.path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}

	r.state = next

	return nil
}

// indexOf returns the position of the sensor with the given key or -1.
func indexOf(sensors []domain.Sensor, key domain.SensorKey) int {
	return slices.IndexFunc(sensors, func(s domain.Sensor) bool {
		return s.Key() == key
	})
}

