package mqtt

import (
	"errors"
	"fmt"
	"strings"

	domain "github.com/oshokin/catpoint/internal/domain/security"
)

// ErrInvalidSensorTopic is returned when a topic does not address a sensor.
var ErrInvalidSensorTopic = errors.New("mqtt: not a sensor topic")

// Topics builds topic names under a common prefix.
type Topics struct {
	// Prefix is the first topic level, e.g. "catpoint".
	Prefix string
}

// SystemStatus is the retained online/offline topic.
func (t Topics) SystemStatus() string {
	return t.Prefix + "/system/status"
}

// AlarmStatus is the retained alarm status topic.
func (t Topics) AlarmStatus() string {
	return t.Prefix + "/alarm/status"
}

// CatDetected carries the verdict of every analyzed image.
func (t Topics) CatDetected() string {
	return t.Prefix + "/camera/cat"
}

// SensorsChanged announces changes of the sensor set or a sensor flag.
func (t Topics) SensorsChanged() string {
	return t.Prefix + "/sensors/changed"
}

// SensorSet is the command topic of one sensor: <prefix>/sensors/<type>/<name>/set.
func (t Topics) SensorSet(key domain.SensorKey) string {
	return fmt.Sprintf("%s/sensors/%s/%s/set", t.Prefix, strings.ToLower(key.Type.String()), key.Name)
}

// AllSensorSets matches the command topics of every sensor.
func (t Topics) AllSensorSets() string {
	return t.Prefix + "/sensors/+/+/set"
}

// ParseSensorSet extracts the sensor key from a command topic.
func (t Topics) ParseSensorSet(topic string) (domain.SensorKey, error) {
	rest, ok := strings.CutPrefix(topic, t.Prefix+"/sensors/")
	if !ok {
		return domain.SensorKey{}, fmt.Errorf("%w: %q", ErrInvalidSensorTopic, topic)
	}

	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[2] != "set" || parts[1] == "" {
		return domain.SensorKey{}, fmt.Errorf("%w: %q", ErrInvalidSensorTopic, topic)
	}

	sensorType, err := domain.ParseSensorType(parts[0])
	if err != nil {
		return domain.SensorKey{}, fmt.Errorf("%w: %w", ErrInvalidSensorTopic, err)
	}

	return domain.SensorKey{Name: parts[1], Type: sensorType}, nil
}
