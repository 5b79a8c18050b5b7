package security

import (
	"errors"
	"fmt"
	"strings"
)

// SensorType is the kind of device a sensor is attached to.
type SensorType int

const (
	// Door is a door contact sensor.
	Door SensorType = iota
	// Window is a window contact sensor.
	Window
	// Motion is a motion detector.
	Motion
)

var (
	// ErrUnknownSensorType is returned when sensor type text cannot be parsed.
	ErrUnknownSensorType = errors.New("unknown sensor type")
	// ErrEmptySensorName is returned when a sensor has no name.
	ErrEmptySensorName = errors.New("sensor name must be provided")
)

//nolint:gochecknoglobals // Lookup table for enum text forms.
var sensorTypeNames = map[SensorType]string{
	Door:   "DOOR",
	Window: "WINDOW",
	Motion: "MOTION",
}

func (t SensorType) String() string {
	if name, ok := sensorTypeNames[t]; ok {
		return name
	}

	return fmt.Sprintf("SensorType(%d)", int(t))
}

// MarshalText implements encoding.TextMarshaler.
func (t SensorType) MarshalText() ([]byte, error) {
	if _, ok := sensorTypeNames[t]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSensorType, int(t))
	}

	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *SensorType) UnmarshalText(text []byte) error {
	parsed, err := ParseSensorType(string(text))
	if err != nil {
		return err
	}

	*t = parsed

	return nil
}

// ParseSensorType converts text such as "door" into a SensorType.
func ParseSensorType(s string) (SensorType, error) {
	normalized := normalize(s)
	for sensorType, name := range sensorTypeNames {
		if name == normalized {
			return sensorType, nil
		}
	}

	return Door, fmt.Errorf("%w: %q", ErrUnknownSensorType, s)
}

// SensorKey identifies a sensor. Two sensors with the same key are the same
// device regardless of their active flag.
type SensorKey struct {
	// Name is the human readable sensor name.
	Name string `json:"name"`
	// Type is the device kind.
	Type SensorType `json:"type"`
}

func (k SensorKey) String() string {
	return strings.ToLower(k.Type.String()) + "/" + k.Name
}

// Sensor is a named binary device.
type Sensor struct {
	// Name is the human readable sensor name, unique per type.
	Name string `json:"name"`
	// Type is the device kind.
	Type SensorType `json:"type"`
	// Active is true while the sensor is tripped.
	Active bool `json:"active"`
}

// NewSensor returns an inactive sensor.
func NewSensor(name string, sensorType SensorType) Sensor {
	return Sensor{
		Name: name,
		Type: sensorType,
	}
}

// Key returns the identity of the sensor.
func (s Sensor) Key() SensorKey {
	return SensorKey{
		Name: s.Name,
		Type: s.Type,
	}
}

// Same reports whether s and other identify the same device.
func (s Sensor) Same(other Sensor) bool {
	return s.Key() == other.Key()
}

// Validate checks that the sensor has a name and a known type.
func (s Sensor) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return ErrEmptySensorName
	}

	if _, ok := sensorTypeNames[s.Type]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownSensorType, int(s.Type))
	}

	return nil
}
