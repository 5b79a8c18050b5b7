package security

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/oshokin/catpoint/internal/config"
	domain "github.com/oshokin/catpoint/internal/domain/security"
	"github.com/oshokin/catpoint/internal/logger"
	repo "github.com/oshokin/catpoint/internal/repository/security"
)

// ImageAnalyzer decides whether an image shows a cat.
type ImageAnalyzer interface {
	ImageContainsCat(ctx context.Context, image []byte, confidenceThreshold float32) (bool, error)
}

var (
	// ErrAnalysisFailure is returned when the image analyzer fails. The alarm
	// status and the last verdict are left untouched in that case.
	ErrAnalysisFailure = errors.New("image analysis failed")

	// errListenerPanic wraps a value recovered from a panicking listener.
	errListenerPanic = errors.New("listener panicked")
)

// Snapshot is a consistent view of the whole security state.
type Snapshot struct {
	// AlarmStatus is the current alarm status.
	AlarmStatus domain.AlarmStatus `json:"alarm_status"`
	// ArmingStatus is the current arming mode.
	ArmingStatus domain.ArmingStatus `json:"arming_status"`
	// Sensors is the sensor set ordered by type and name.
	Sensors []domain.Sensor `json:"sensors"`
	// CatDetected is the verdict of the most recently analyzed image.
	CatDetected bool `json:"cat_detected"`
}

// Option configures a Controller.
type Option func(*Controller)

// WithConfidenceThreshold sets the confidence passed to the image analyzer.
func WithConfidenceThreshold(threshold float32) Option {
	return func(c *Controller) {
		if threshold > 0 {
			c.threshold = threshold
		}
	}
}

// Controller applies the alarm transition rules. Every public method runs its
// whole read-decide-write-notify sequence under one lock.
type Controller struct {
	// repo holds sensors, the alarm status and the arming status.
	repo repo.Repository
	// analyzer produces cat verdicts for images.
	analyzer ImageAnalyzer
	// threshold is the confidence passed to the analyzer.
	threshold float32
	// listeners receive status notifications.
	listeners listenerSet
	// catDetected is the verdict of the most recently analyzed image.
	catDetected bool
	// mu serializes all operations.
	mu sync.Mutex
}

// NewController creates a controller on top of the repository and analyzer.
func NewController(repository repo.Repository, analyzer ImageAnalyzer, opts ...Option) *Controller {
	c := &Controller{
		repo:      repository,
		analyzer:  analyzer,
		threshold: config.DefaultConfidenceThreshold,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// ChangeSensorActivationStatus sets the active flag of a known sensor and
// moves the alarm status accordingly:
//   - while ALARM, sensor changes never touch the alarm status;
//   - activation while armed escalates NO_ALARM to PENDING_ALARM and PENDING_ALARM to ALARM;
//   - deactivation of an active sensor while PENDING_ALARM returns to NO_ALARM.
func (c *Controller) ChangeSensorActivationStatus(ctx context.Context, sensor domain.Sensor, active bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx = logger.WithKV(ctx, "sensor", sensor.Key().String())

	alarmStatus, err := c.repo.AlarmStatus(ctx)
	if err != nil {
		return fmt.Errorf("get alarm status: %w", err)
	}

	armingStatus, err := c.repo.ArmingStatus(ctx)
	if err != nil {
		return fmt.Errorf("get arming status: %w", err)
	}

	stored, err := repo.FindSensor(ctx, c.repo, sensor.Key())
	if err != nil {
		return fmt.Errorf("find sensor %s: %w", sensor.Key(), err)
	}

	wasActive := stored.Active

	// The flag is persisted before any transition so that a failed write
	// leaves the alarm status untouched.
	stored.Active = active
	if err = c.repo.UpdateSensor(ctx, stored); err != nil {
		return fmt.Errorf("update sensor %s: %w", sensor.Key(), err)
	}

	if alarmStatus != domain.Alarm {
		switch {
		case active:
			err = c.handleSensorActivated(ctx, alarmStatus, armingStatus)
		case wasActive:
			err = c.handleSensorDeactivated(ctx, alarmStatus)
		}

		if err != nil {
			return err
		}
	}

	logger.DebugKV(ctx, "Sensor activation changed", "was_active", wasActive, "active", active)

	c.notifySensorStatusChanged(ctx)

	return nil
}

// handleSensorActivated escalates the alarm status if the system is armed.
func (c *Controller) handleSensorActivated(
	ctx context.Context,
	alarmStatus domain.AlarmStatus,
	armingStatus domain.ArmingStatus,
) error {
	if !armingStatus.IsArmed() {
		return nil
	}

	switch alarmStatus {
	case domain.NoAlarm:
		return c.setAlarmStatus(ctx, domain.PendingAlarm)
	case domain.PendingAlarm:
		return c.setAlarmStatus(ctx, domain.Alarm)
	default:
		return nil
	}
}

// handleSensorDeactivated drops a pending alarm when an active sensor goes quiet.
func (c *Controller) handleSensorDeactivated(ctx context.Context, alarmStatus domain.AlarmStatus) error {
	if alarmStatus != domain.PendingAlarm {
		return nil
	}

	return c.setAlarmStatus(ctx, domain.NoAlarm)
}

// ProcessImage asks the analyzer whether the image shows a cat and updates
// the alarm status: a cat while ARMED_HOME triggers the alarm, no cat with
// every sensor inactive clears it. The verdict is returned and delivered to
// listeners. Analyzer errors are wrapped in ErrAnalysisFailure.
func (c *Controller) ProcessImage(ctx context.Context, image []byte) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	detected, err := c.analyzer.ImageContainsCat(ctx, image, c.threshold)
	if err != nil {
		logger.ErrorKV(ctx, "Image analysis failed", "error", err)

		return false, fmt.Errorf("%w: %w", ErrAnalysisFailure, err)
	}

	c.catDetected = detected

	if detected {
		armingStatus, err := c.repo.ArmingStatus(ctx)
		if err != nil {
			return detected, fmt.Errorf("get arming status: %w", err)
		}

		if armingStatus == domain.ArmedHome {
			if err = c.setAlarmStatus(ctx, domain.Alarm); err != nil {
				return detected, err
			}
		}
	} else {
		anyActive, err := c.anySensorActive(ctx)
		if err != nil {
			return detected, err
		}

		if !anyActive {
			if err = c.setAlarmStatus(ctx, domain.NoAlarm); err != nil {
				return detected, err
			}
		}
	}

	logger.InfoKV(ctx, "Image analyzed", "cat_detected", detected)

	c.listeners.notify(ctx, "cat_detected", func(l StatusListener) error {
		return l.CatDetected(ctx, detected)
	})

	return detected, nil
}

// SetArmingStatus changes the arming mode. Disarming clears the alarm, arming
// resets every sensor to inactive, and arming at home while the last image
// showed a cat triggers the alarm straight away.
func (c *Controller) SetArmingStatus(ctx context.Context, status domain.ArmingStatus) error {
	if !slices.Contains(domain.ArmingStatuses(), status) {
		return fmt.Errorf("%w: %d", domain.ErrUnknownArmingStatus, int(status))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if status == domain.Disarmed {
		if err := c.setAlarmStatus(ctx, domain.NoAlarm); err != nil {
			return err
		}
	} else if err := c.resetSensors(ctx); err != nil {
		return err
	}

	if err := c.repo.SetArmingStatus(ctx, status); err != nil {
		return fmt.Errorf("set arming status: %w", err)
	}

	logger.InfoKV(ctx, "Arming status changed", "arming_status", status)

	if status == domain.ArmedHome && c.catDetected {
		return c.setAlarmStatus(ctx, domain.Alarm)
	}

	return nil
}

// resetSensors marks every active sensor inactive without applying transitions.
func (c *Controller) resetSensors(ctx context.Context) error {
	sensors, err := c.repo.Sensors(ctx)
	if err != nil {
		return fmt.Errorf("get sensors: %w", err)
	}

	changed := false

	for _, sensor := range sensors {
		if !sensor.Active {
			continue
		}

		sensor.Active = false
		if err = c.repo.UpdateSensor(ctx, sensor); err != nil {
			return fmt.Errorf("reset sensor %s: %w", sensor.Key(), err)
		}

		changed = true
	}

	if changed {
		c.notifySensorStatusChanged(ctx)
	}

	return nil
}

// anySensorActive reports whether at least one stored sensor is active.
func (c *Controller) anySensorActive(ctx context.Context) (bool, error) {
	sensors, err := c.repo.Sensors(ctx)
	if err != nil {
		return false, fmt.Errorf("get sensors: %w", err)
	}

	return slices.ContainsFunc(sensors, func(s domain.Sensor) bool {
		return s.Active
	}), nil
}

// setAlarmStatus writes the alarm status and notifies every listener.
// It is the only place where the alarm status is written.
func (c *Controller) setAlarmStatus(ctx context.Context, status domain.AlarmStatus) error {
	if err := c.repo.SetAlarmStatus(ctx, status); err != nil {
		return fmt.Errorf("set alarm status: %w", err)
	}

	logger.InfoKV(ctx, "Alarm status changed", "alarm_status", status)

	c.listeners.notify(ctx, "alarm_status_changed", func(l StatusListener) error {
		return l.AlarmStatusChanged(ctx, status)
	})

	return nil
}

func (c *Controller) notifySensorStatusChanged(ctx context.Context) {
	c.listeners.notify(ctx, "sensor_status_changed", func(l StatusListener) error {
		return l.SensorStatusChanged(ctx)
	})
}

// AddStatusListener registers a listener. Registering twice has no effect.
func (c *Controller) AddStatusListener(l StatusListener) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.listeners.add(l)
}

// RemoveStatusListener unregisters a listener. Unknown listeners are ignored.
func (c *Controller) RemoveStatusListener(l StatusListener) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.listeners.remove(l)
}

// AddSensor adds a sensor to the repository.
func (c *Controller) AddSensor(ctx context.Context, sensor domain.Sensor) error {
	if err := sensor.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.repo.AddSensor(ctx, sensor); err != nil {
		return fmt.Errorf("add sensor %s: %w", sensor.Key(), err)
	}

	logger.InfoKV(ctx, "Sensor added", "sensor", sensor.Key().String())
	c.notifySensorStatusChanged(ctx)

	return nil
}

// RemoveSensor removes a sensor from the repository.
func (c *Controller) RemoveSensor(ctx context.Context, sensor domain.Sensor) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.repo.RemoveSensor(ctx, sensor); err != nil {
		return fmt.Errorf("remove sensor %s: %w", sensor.Key(), err)
	}

	logger.InfoKV(ctx, "Sensor removed", "sensor", sensor.Key().String())
	c.notifySensorStatusChanged(ctx)

	return nil
}

// Sensors returns the current sensor set.
func (c *Controller) Sensors(ctx context.Context) ([]domain.Sensor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.repo.Sensors(ctx)
}

// AlarmStatus returns the current alarm status.
func (c *Controller) AlarmStatus(ctx context.Context) (domain.AlarmStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.repo.AlarmStatus(ctx)
}

// ArmingStatus returns the current arming mode.
func (c *Controller) ArmingStatus(ctx context.Context) (domain.ArmingStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.repo.ArmingStatus(ctx)
}

// CatDetected returns the verdict of the most recently analyzed image.
func (c *Controller) CatDetected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.catDetected
}

// Snapshot returns the alarm status, arming status, sensors and last verdict
// read under a single lock.
func (c *Controller) Snapshot(ctx context.Context) (*Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	alarmStatus, err := c.repo.AlarmStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("get alarm status: %w", err)
	}

	armingStatus, err := c.repo.ArmingStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("get arming status: %w", err)
	}

	sensors, err := c.repo.Sensors(ctx)
	if err != nil {
		return nil, fmt.Errorf("get sensors: %w", err)
	}

	return &Snapshot{
		AlarmStatus:  alarmStatus,
		ArmingStatus: armingStatus,
		Sensors:      sensors,
		CatDetected:  c.catDetected,
	}, nil
}

// ListenerCount returns the number of registered listeners.
func (c *Controller) ListenerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.listeners.len()
}
