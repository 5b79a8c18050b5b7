// Package bridge turns MQTT sensor commands into controller calls.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/oshokin/catpoint/internal/domain/security"
	"github.com/oshokin/catpoint/internal/infrastructure/mqtt"
	"github.com/oshokin/catpoint/internal/logger"
)

// ErrInvalidPayload is returned for payloads that are not an on/off value.
var ErrInvalidPayload = errors.New("invalid sensor payload")

// Subscriber registers MQTT message handlers.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// SensorController changes the activation of sensors.
type SensorController interface {
	ChangeSensorActivationStatus(ctx context.Context, sensor domain.Sensor, active bool) error
}

// Bridge listens on <prefix>/sensors/<type>/<name>/set.
type Bridge struct {
	subscriber Subscriber
	controller SensorController
	topics     mqtt.Topics
	qos        byte
}

// New creates a sensor bridge.
func New(subscriber Subscriber, controller SensorController, topics mqtt.Topics, qos byte) *Bridge {
	return &Bridge{
		subscriber: subscriber,
		controller: controller,
		topics:     topics,
		qos:        qos,
	}
}

// Start subscribes to the sensor command topics.
func (b *Bridge) Start(ctx context.Context) error {
	topic := b.topics.AllSensorSets()

	if err := b.subscriber.Subscribe(topic, b.qos, b.Handle); err != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, err)
	}

	logger.InfoKV(logger.WithName(ctx, "bridge"), "Sensor bridge started", "topic", topic)

	return nil
}

// Handle applies a single sensor command.
func (b *Bridge) Handle(ctx context.Context, topic string, payload []byte) error {
	key, err := b.topics.ParseSensorSet(topic)
	if err != nil {
		return err
	}

	active, err := ParseActive(payload)
	if err != nil {
		return err
	}

	sensor := domain.NewSensor(key.Name, key.Type)

	return b.controller.ChangeSensorActivationStatus(ctx, sensor, active)
}

// ParseActive converts ON/OFF style payloads to a flag.
func ParseActive(payload []byte) (bool, error) {
	switch strings.ToUpper(strings.TrimSpace(string(payload))) {
	case "ON", "TRUE", "1", "OPEN", "ACTIVE":
		return true, nil
	case "OFF", "FALSE", "0", "CLOSED", "INACTIVE":
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrInvalidPayload, payload)
	}
}
