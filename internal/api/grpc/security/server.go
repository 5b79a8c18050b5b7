package security

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/oshokin/catpoint/internal/domain/security"
	"github.com/oshokin/catpoint/internal/logger"
	repo "github.com/oshokin/catpoint/internal/repository/security"
	service "github.com/oshokin/catpoint/internal/service/security"
)

// eventBufferSize is the number of events a slow stream may fall behind.
const eventBufferSize = 64

// errSubscriberLagging is reported to the controller when a stream's buffer is full.
var errSubscriberLagging = errors.New("event subscriber is lagging, event dropped")

// Controller abstracts the security operations the transport depends on.
type Controller interface {
	Snapshot(ctx context.Context) (*service.Snapshot, error)
	SetArmingStatus(ctx context.Context, status domain.ArmingStatus) error
	AddSensor(ctx context.Context, sensor domain.Sensor) error
	RemoveSensor(ctx context.Context, sensor domain.Sensor) error
	Sensors(ctx context.Context) ([]domain.Sensor, error)
	ChangeSensorActivationStatus(ctx context.Context, sensor domain.Sensor, active bool) error
	ProcessImage(ctx context.Context, image []byte) (bool, error)
	AlarmStatus(ctx context.Context) (domain.AlarmStatus, error)
	AddStatusListener(l service.StatusListener)
	RemoveStatusListener(l service.StatusListener)
}

// Server implements the SecurityService gRPC API.
type Server struct {
	// controller provides the security logic.
	controller Controller
	// done is closed by Shutdown to end open event streams.
	done      chan struct{}
	closeOnce sync.Once
}

// NewServer wires the controller into a gRPC handler.
func NewServer(controller Controller) *Server {
	return &Server{
		controller: controller,
		done:       make(chan struct{}),
	}
}

// Shutdown ends every open event stream so that grpc.Server.GracefulStop can
// return. It is safe to call more than once.
func (s *Server) Shutdown() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// GetStatus returns the alarm status, arming status, sensors and last verdict.
func (s *Server) GetStatus(ctx context.Context, _ *GetStatusRequest) (*StatusResponse, error) {
	return s.status(ctx)
}

// SetArmingStatus changes the arming mode.
func (s *Server) SetArmingStatus(ctx context.Context, req *SetArmingStatusRequest) (*StatusResponse, error) {
	if req == nil || req.ArmingStatus == nil {
		return nil, status.Error(codes.InvalidArgument, "arming status is required")
	}

	ctx = withActor(ctx, req.Actor)

	if err := s.controller.SetArmingStatus(ctx, *req.ArmingStatus); err != nil {
		return nil, toStatusError(err)
	}

	logger.InfoKV(ctx, "Arming status changed by request", "arming_status", *req.ArmingStatus)

	return s.status(ctx)
}

// AddSensor registers a sensor and returns the sensor list.
func (s *Server) AddSensor(ctx context.Context, req *SensorRequest) (*SensorsResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	ctx = withActor(ctx, req.Actor)

	if err := s.controller.AddSensor(ctx, req.Sensor); err != nil {
		return nil, toStatusError(err)
	}

	return s.sensors(ctx)
}

// RemoveSensor unregisters a sensor and returns the sensor list.
func (s *Server) RemoveSensor(ctx context.Context, req *SensorRequest) (*SensorsResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	ctx = withActor(ctx, req.Actor)

	if err := s.controller.RemoveSensor(ctx, req.Sensor); err != nil {
		return nil, toStatusError(err)
	}

	return s.sensors(ctx)
}

// ListSensors returns every sensor.
func (s *Server) ListSensors(ctx context.Context, _ *ListSensorsRequest) (*SensorsResponse, error) {
	return s.sensors(ctx)
}

// SetSensorActive changes the activation of a sensor.
func (s *Server) SetSensorActive(ctx context.Context, req *SetSensorActiveRequest) (*StatusResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	ctx = withActor(ctx, req.Actor)
	sensor := domain.NewSensor(req.Sensor.Name, req.Sensor.Type)

	if err := sensor.Validate(); err != nil {
		return nil, toStatusError(err)
	}

	if err := s.controller.ChangeSensorActivationStatus(ctx, sensor, req.Active); err != nil {
		return nil, toStatusError(err)
	}

	return s.status(ctx)
}

// ProcessImage runs a submitted image through the controller.
func (s *Server) ProcessImage(ctx context.Context, req *ProcessImageRequest) (*ProcessImageResponse, error) {
	if req == nil || len(req.Image) == 0 {
		return nil, status.Error(codes.InvalidArgument, "image is required")
	}

	ctx = withActor(ctx, req.Actor)

	detected, err := s.controller.ProcessImage(ctx, req.Image)
	if err != nil {
		return nil, toStatusError(err)
	}

	alarmStatus, err := s.controller.AlarmStatus(ctx)
	if err != nil {
		return nil, toStatusError(err)
	}

	return &ProcessImageResponse{
		CatDetected: detected,
		AlarmStatus: alarmStatus,
	}, nil
}

// WatchEvents streams controller events until the client goes away or the
// server shuts down. The current alarm status is sent first.
func (s *Server) WatchEvents(_ *WatchEventsRequest, stream EventStream) error {
	ctx := logger.WithKV(stream.Context(), "subscriber", uuid.NewString())

	sub := newSubscriber()

	s.controller.AddStatusListener(sub)
	defer s.controller.RemoveStatusListener(sub)

	alarmStatus, err := s.controller.AlarmStatus(ctx)
	if err != nil {
		return toStatusError(err)
	}

	if err = stream.Send(newEvent(EventAlarmStatus, &alarmStatus, nil)); err != nil {
		return err
	}

	logger.DebugKV(ctx, "Event subscriber attached")

	for {
		select {
		case <-ctx.Done():
			logger.DebugKV(ctx, "Event subscriber detached")

			return nil
		case <-s.done:
			logger.DebugKV(ctx, "Event stream closed by shutdown")

			return nil
		case event := <-sub.events:
			if err = stream.Send(event); err != nil {
				return err
			}
		}
	}
}

func (s *Server) status(ctx context.Context) (*StatusResponse, error) {
	snapshot, err := s.controller.Snapshot(ctx)
	if err != nil {
		return nil, toStatusError(err)
	}

	return &StatusResponse{
		AlarmStatus:  snapshot.AlarmStatus,
		ArmingStatus: snapshot.ArmingStatus,
		Sensors:      snapshot.Sensors,
		CatDetected:  snapshot.CatDetected,
	}, nil
}

func (s *Server) sensors(ctx context.Context) (*SensorsResponse, error) {
	sensors, err := s.controller.Sensors(ctx)
	if err != nil {
		return nil, toStatusError(err)
	}

	return &SensorsResponse{Sensors: sensors}, nil
}

// subscriber buffers events for one stream. Its methods never block because
// they run under the controller lock.
type subscriber struct {
	events chan *Event
}

func newSubscriber() *subscriber {
	return &subscriber{events: make(chan *Event, eventBufferSize)}
}

func (s *subscriber) AlarmStatusChanged(_ context.Context, alarmStatus domain.AlarmStatus) error {
	return s.push(newEvent(EventAlarmStatus, &alarmStatus, nil))
}

func (s *subscriber) CatDetected(_ context.Context, detected bool) error {
	return s.push(newEvent(EventCat, nil, &detected))
}

func (s *subscriber) SensorStatusChanged(context.Context) error {
	return s.push(newEvent(EventSensors, nil, nil))
}

func (s *subscriber) push(event *Event) error {
	select {
	case s.events <- event:
		return nil
	default:
		return errSubscriberLagging
	}
}

func newEvent(kind string, alarmStatus *domain.AlarmStatus, detected *bool) *Event {
	return &Event{
		ID:          uuid.NewString(),
		Kind:        kind,
		AlarmStatus: alarmStatus,
		CatDetected: detected,
		Timestamp:   time.Now().UTC(),
	}
}

// withActor attaches the requesting actor to the context logger.
func withActor(ctx context.Context, actor *domain.Actor) context.Context {
	return logger.WithKV(ctx, "actor", actor.String())
}

// toStatusError maps controller errors to gRPC status codes.
func toStatusError(err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	case errors.Is(err, domain.ErrUnknownArmingStatus),
		errors.Is(err, domain.ErrUnknownAlarmStatus),
		errors.Is(err, domain.ErrUnknownSensorType),
		errors.Is(err, domain.ErrEmptySensorName):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, repo.ErrSensorNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, service.ErrAnalysisFailure):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
