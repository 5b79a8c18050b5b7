package security

import (
	"time"

	domain "github.com/oshokin/catpoint/internal/domain/security"
)

// GetStatusRequest asks for the current state.
type GetStatusRequest struct {
	RequestingActor *domain.Actor `json:"requesting_actor,omitempty"`
}

// StatusResponse describes the whole security state.
type StatusResponse struct {
	AlarmStatus  domain.AlarmStatus  `json:"alarm_status"`
	ArmingStatus domain.ArmingStatus `json:"arming_status"`
	Sensors      []domain.Sensor     `json:"sensors"`
	CatDetected  bool                `json:"cat_detected"`
}

// SetArmingStatusRequest changes the arming mode. ArmingStatus is required.
type SetArmingStatusRequest struct {
	Actor        *domain.Actor        `json:"actor"`
	ArmingStatus *domain.ArmingStatus `json:"arming_status"`
}

// SensorRequest addresses a single sensor for add and remove.
type SensorRequest struct {
	Actor  *domain.Actor `json:"actor"`
	Sensor domain.Sensor `json:"sensor"`
}

// ListSensorsRequest asks for every known sensor.
type ListSensorsRequest struct{}

// SensorsResponse lists sensors.
type SensorsResponse struct {
	Sensors []domain.Sensor `json:"sensors"`
}

// SetSensorActiveRequest changes the activation of a sensor.
type SetSensorActiveRequest struct {
	Actor  *domain.Actor    `json:"actor"`
	Sensor domain.SensorKey `json:"sensor"`
	Active bool             `json:"active"`
}

// ProcessImageRequest submits a camera image.
type ProcessImageRequest struct {
	Actor *domain.Actor `json:"actor"`
	Image []byte        `json:"image"`
}

// ProcessImageResponse carries the verdict and the resulting alarm status.
type ProcessImageResponse struct {
	CatDetected bool               `json:"cat_detected"`
	AlarmStatus domain.AlarmStatus `json:"alarm_status"`
}

// WatchEventsRequest opens an event stream.
type WatchEventsRequest struct {
	RequestingActor *domain.Actor `json:"requesting_actor,omitempty"`
}

// Event kinds sent on the stream.
const (
	EventAlarmStatus = "alarm_status"
	EventCat         = "cat_detected"
	EventSensors     = "sensors_changed"
)

// Event is a single notification from the controller.
type Event struct {
	ID          string              `json:"id"`
	Kind        string              `json:"kind"`
	AlarmStatus *domain.AlarmStatus `json:"alarm_status,omitempty"`
	CatDetected *bool               `json:"cat_detected,omitempty"`
	Timestamp   time.Time           `json:"timestamp"`
}
