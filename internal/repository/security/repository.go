package security

import (
	"cmp"
	"context"
	"errors"
	"slices"

	domain "github.com/oshokin/catpoint/internal/domain/security"
)

// Repository defines persistence operations for the security state.
//
// AddSensor inserts or replaces a sensor by key, RemoveSensor is a no-op for
// unknown sensors and UpdateSensor fails with ErrSensorNotFound for them.
type Repository interface {
	Sensors(ctx context.Context) ([]domain.Sensor, error)
	AddSensor(ctx context.Context, sensor domain.Sensor) error
	RemoveSensor(ctx context.Context, sensor domain.Sensor) error
	UpdateSensor(ctx context.Context, sensor domain.Sensor) error
	AlarmStatus(ctx context.Context) (domain.AlarmStatus, error)
	SetAlarmStatus(ctx context.Context, status domain.AlarmStatus) error
	ArmingStatus(ctx context.Context) (domain.ArmingStatus, error)
	SetArmingStatus(ctx context.Context, status domain.ArmingStatus) error
}

// ErrSensorNotFound is returned when a sensor is not part of the stored set.
var ErrSensorNotFound = errors.New("sensor not found")

// FindSensor looks a sensor up by key in the repository.
func FindSensor(ctx context.Context, repo Repository, key domain.SensorKey) (domain.Sensor, error) {
	sensors, err := repo.Sensors(ctx)
	if err != nil {
		return domain.Sensor{}, err
	}

	for _, sensor := range sensors {
		if sensor.Key() == key {
			return sensor, nil
		}
	}

	return domain.Sensor{}, ErrSensorNotFound
}

// sortSensors orders sensors by type and then by name so listings are stable.
func sortSensors(sensors []domain.Sensor) {
	slices.SortFunc(sensors, func(a, b domain.Sensor) int {
		return cmp.Or(
			cmp.Compare(a.Type, b.Type),
			cmp.Compare(a.Name, b.Name),
		)
	})
}
