// Package notify publishes controller events to MQTT.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	domain "github.com/oshokin/catpoint/internal/domain/security"
	"github.com/oshokin/catpoint/internal/infrastructure/mqtt"
)

// Publisher sends a payload to a topic.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Event is the JSON payload of every published message.
type Event struct {
	ID          string              `json:"id"`
	Kind        string              `json:"kind"`
	AlarmStatus *domain.AlarmStatus `json:"alarm_status,omitempty"`
	CatDetected *bool               `json:"cat_detected,omitempty"`
	Timestamp   time.Time           `json:"timestamp"`
}

// Event kinds.
const (
	KindAlarmStatus = "alarm_status"
	KindCat         = "cat_detected"
	KindSensors     = "sensors_changed"
)

// Listener is a status listener that mirrors events to MQTT topics.
// Alarm status messages are retained so that new subscribers see the current state.
type Listener struct {
	publisher Publisher
	topics    mqtt.Topics
	qos       byte
	now       func() time.Time
}

// NewListener creates a listener publishing under the prefix of topics.
func NewListener(publisher Publisher, topics mqtt.Topics, qos byte) *Listener {
	return &Listener{
		publisher: publisher,
		topics:    topics,
		qos:       qos,
		now:       time.Now,
	}
}

// AlarmStatusChanged publishes the new alarm status.
func (l *Listener) AlarmStatusChanged(_ context.Context, status domain.AlarmStatus) error {
	return l.publish(l.topics.AlarmStatus(), true, Event{
		Kind:        KindAlarmStatus,
		AlarmStatus: &status,
	})
}

// CatDetected publishes the verdict of an analyzed image.
func (l *Listener) CatDetected(_ context.Context, detected bool) error {
	return l.publish(l.topics.CatDetected(), false, Event{
		Kind:        KindCat,
		CatDetected: &detected,
	})
}

// SensorStatusChanged announces that sensors changed.
func (l *Listener) SensorStatusChanged(context.Context) error {
	return l.publish(l.topics.SensorsChanged(), false, Event{Kind: KindSensors})
}

func (l *Listener) publish(topic string, retained bool, event Event) error {
	event.ID = uuid.NewString()
	event.Timestamp = l.now().UTC()

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event.Kind, err)
	}

	if err = l.publisher.Publish(topic, payload, l.qos, retained); err != nil {
		return fmt.Errorf("publish %s event: %w", event.Kind, err)
	}

	return nil
}
