package security

import (
	"context"
	"maps"
	"slices"
	"sync"

	domain "github.com/oshokin/catpoint/internal/domain/security"
)

// MemoryRepository keeps the security state in process memory.
type MemoryRepository struct {
	// sensors is the sensor set keyed by identity.
	sensors map[domain.SensorKey]domain.Sensor
	// alarmStatus is the current alarm status.
	alarmStatus domain.AlarmStatus
	// armingStatus is the current arming mode.
	armingStatus domain.ArmingStatus
	// mu protects all fields above.
	mu sync.RWMutex
}

// NewMemoryRepository returns an empty, disarmed repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		sensors: make(map[domain.SensorKey]domain.Sensor),
	}
}

// Sensors returns a copy of the sensor set.
func (r *MemoryRepository) Sensors(_ context.Context) ([]domain.Sensor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sensors := slices.Collect(maps.Values(r.sensors))
	sortSensors(sensors)

	return sensors, nil
}

// AddSensor inserts or replaces the sensor.
func (r *MemoryRepository) AddSensor(_ context.Context, sensor domain.Sensor) error {
	if err := sensor.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sensors[sensor.Key()] = sensor

	return nil
}

// RemoveSensor deletes the sensor if present.
func (r *MemoryRepository) RemoveSensor(_ context.Context, sensor domain.Sensor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sensors, sensor.Key())

	return nil
}

// UpdateSensor overwrites a known sensor.
func (r *MemoryRepository) UpdateSensor(_ context.Context, sensor domain.Sensor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sensors[sensor.Key()]; !ok {
		return ErrSensorNotFound
	}

	r.sensors[sensor.Key()] = sensor

	return nil
}

// AlarmStatus returns the current alarm status.
func (r *MemoryRepository) AlarmStatus(_ context.Context) (domain.AlarmStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.alarmStatus, nil
}

// SetAlarmStatus stores the alarm status.
func (r *MemoryRepository) SetAlarmStatus(_ context.Context, status domain.AlarmStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.alarmStatus = status

	return nil
}

// ArmingStatus returns the current arming mode.
func (r *MemoryRepository) ArmingStatus(_ context.Context) (domain.ArmingStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.armingStatus, nil
}

// SetArmingStatus stores the arming mode.
func (r *MemoryRepository) SetArmingStatus(_ context.Context, status domain.ArmingStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.armingStatus = status

	return nil
}
