package mqtt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/catpoint/internal/domain/security"
)

// TestTopics verifies the topic layout.
func TestTopics(t *testing.T) {
	t.Parallel()

	topics := Topics{Prefix: "home"}

	require.Equal(t, "home/system/status", topics.SystemStatus())
	require.Equal(t, "home/alarm/status", topics.AlarmStatus())
	require.Equal(t, "home/camera/cat", topics.CatDetected())
	require.Equal(t, "home/sensors/changed", topics.SensorsChanged())
	require.Equal(t, "home/sensors/+/+/set", topics.AllSensorSets())

	key := domain.SensorKey{Name: "front", Type: domain.Door}
	require.Equal(t, "home/sensors/door/front/set", topics.SensorSet(key))

	parsed, err := topics.ParseSensorSet(topics.SensorSet(key))
	require.NoError(t, err)
	require.Equal(t, key, parsed)
}

// TestParseSensorSet_Invalid rejects topics that do not address a sensor.
func TestParseSensorSet_Invalid(t *testing.T) {
	t.Parallel()

	topics := Topics{Prefix: "home"}

	for _, topic := range []string{
		"other/sensors/door/front/set",
		"home/sensors/door/front",
		"home/sensors/door//set",
		"home/sensors/laser/front/set",
		"home/sensors/door/front/state",
	} {
		_, err := topics.ParseSensorSet(topic)
		require.ErrorIs(t, err, ErrInvalidSensorTopic, topic)
	}
}

// TestClient_RequiresConnection checks validation before any network use.
func TestClient_RequiresConnection(t *testing.T) {
	t.Parallel()

	c := new(Client)

	require.ErrorIs(t, c.Publish("", nil, 0, false), ErrInvalidTopic)
	require.ErrorIs(t, c.Publish("a", nil, 3, false), ErrInvalidQoS)
	require.ErrorIs(t, c.Publish("a", make([]byte, maxPayloadSize+1), 0, false), ErrPublishFailed)
	require.ErrorIs(t, c.Publish("a", nil, 0, false), ErrNotConnected)

	noop := func(context.Context, string, []byte) error { return nil }

	require.ErrorIs(t, c.Subscribe("", 0, noop), ErrInvalidTopic)
	require.ErrorIs(t, c.Subscribe("a", 5, noop), ErrInvalidQoS)
	require.ErrorIs(t, c.Subscribe("a", 0, nil), ErrSubscribeFailed)
	require.ErrorIs(t, c.Subscribe("a", 0, noop), ErrNotConnected)
	require.False(t, c.IsConnected())
	require.NoError(t, c.Close())
}
