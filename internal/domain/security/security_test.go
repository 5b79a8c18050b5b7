package security

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestActorClone verifies that Clone returns a deep copy and handles nil safely.
func TestActorClone(t *testing.T) {
	t.Parallel()
	require.Nil(t, (*Actor)(nil).Clone())

	a := &Actor{
		Hostname: "front-desk",
		Username: "o.shokin",
	}

	b := a.Clone()

	require.Equal(t, a, b)
	require.NotSame(t, a, b)
	require.Equal(t, "o.shokin@front-desk", a.String())
}

// TestParseArmingStatus checks accepted spellings and the unknown value error.
func TestParseArmingStatus(t *testing.T) {
	t.Parallel()

	cases := map[string]ArmingStatus{
		"DISARMED":     Disarmed,
		"armed_home":   ArmedHome,
		"armed-away":   ArmedAway,
		" Armed_Home ": ArmedHome,
	}
	for s, want := range cases {
		got, err := ParseArmingStatus(s)
		require.NoError(t, err, s)
		require.Equal(t, want, got)
	}

	_, err := ParseArmingStatus("armed_garden")
	require.ErrorIs(t, err, ErrUnknownArmingStatus)
}

// TestParseAlarmStatus checks accepted spellings and the unknown value error.
func TestParseAlarmStatus(t *testing.T) {
	t.Parallel()

	for _, status := range AlarmStatuses() {
		got, err := ParseAlarmStatus(status.String())
		require.NoError(t, err)
		require.Equal(t, status, got)
	}

	_, err := ParseAlarmStatus("siren")
	require.ErrorIs(t, err, ErrUnknownAlarmStatus)
}

// TestIsArmed ensures only the home and away modes count as armed.
func TestIsArmed(t *testing.T) {
	t.Parallel()

	require.False(t, Disarmed.IsArmed())
	require.True(t, ArmedHome.IsArmed())
	require.True(t, ArmedAway.IsArmed())
}

// TestSensorIdentity verifies that identity ignores the active flag.
func TestSensorIdentity(t *testing.T) {
	t.Parallel()

	a := NewSensor("Front door", Door)
	b := a
	b.Active = true

	require.True(t, a.Same(b))
	require.Equal(t, a.Key(), b.Key())
	require.False(t, a.Same(NewSensor("Front door", Window)))
	require.Equal(t, "door/Front door", a.Key().String())
}

// TestSensorValidate covers the empty name and unknown type errors.
func TestSensorValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, NewSensor("Hall", Motion).Validate())
	require.ErrorIs(t, NewSensor(" ", Motion).Validate(), ErrEmptySensorName)
	require.ErrorIs(t, Sensor{Name: "x", Type: SensorType(42)}.Validate(), ErrUnknownSensorType)
}

// TestSensorJSON ensures enums are encoded by name.
func TestSensorJSON(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(Sensor{Name: "Back window", Type: Window, Active: true})
	require.NoError(t, err)
	require.JSONEq(t, `{"name":"Back window","type":"WINDOW","active":true}`, string(data))

	var decoded Sensor
	require.NoError(t, json.Unmarshal([]byte(`{"name":"Hall","type":"motion"}`), &decoded))
	require.Equal(t, NewSensor("Hall", Motion), decoded)

	require.Error(t, json.Unmarshal([]byte(`{"name":"Hall","type":"laser"}`), &decoded))
}
