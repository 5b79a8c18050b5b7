package security

import (
	"context"
	"fmt"
	"slices"

	domain "github.com/oshokin/catpoint/internal/domain/security"
	"github.com/oshokin/catpoint/internal/logger"
)

// StatusListener is notified about changes made by the controller.
//
// Listeners run synchronously while the controller lock is held, so they must
// not call back into the controller. Implementations must be comparable
// (pointer receivers) so that they can be removed again.
type StatusListener interface {
	// AlarmStatusChanged is called after every alarm status write.
	AlarmStatusChanged(ctx context.Context, status domain.AlarmStatus) error
	// CatDetected is called with the verdict of every analyzed image.
	CatDetected(ctx context.Context, detected bool) error
	// SensorStatusChanged is called after the sensor set or a sensor flag changed.
	SensorStatusChanged(ctx context.Context) error
}

// listenerSet is an ordered set of listeners.
type listenerSet struct {
	listeners []StatusListener
}

// add registers l unless it is already registered.
func (s *listenerSet) add(l StatusListener) {
	if l == nil || slices.Contains(s.listeners, l) {
		return
	}

	s.listeners = append(s.listeners, l)
}

// remove unregisters l; unknown listeners are ignored.
func (s *listenerSet) remove(l StatusListener) {
	s.listeners = slices.DeleteFunc(s.listeners, func(existing StatusListener) bool {
		return existing == l
	})
}

func (s *listenerSet) len() int {
	return len(s.listeners)
}

// notify calls fn for every listener. A failing or panicking listener is
// logged and skipped so that delivery to the others continues.
func (s *listenerSet) notify(ctx context.Context, event string, fn func(StatusListener) error) {
	for _, l := range s.listeners {
		if err := safeCall(l, fn); err != nil {
			logger.ErrorKV(ctx, "Status listener failed",
				"event", event,
				"listener", fmt.Sprintf("%T", l),
				"error", err)
		}
	}
}

// safeCall runs fn and converts a panic into an error.
func safeCall(l StatusListener, fn func(StatusListener) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errListenerPanic, r)
		}
	}()

	return fn(l)
}

// ListenerFuncs adapts plain functions to StatusListener. Nil fields are skipped.
// Use a pointer to it so that it can be registered and removed.
type ListenerFuncs struct {
	OnAlarmStatusChanged  func(ctx context.Context, status domain.AlarmStatus) error
	OnCatDetected         func(ctx context.Context, detected bool) error
	OnSensorStatusChanged func(ctx context.Context) error
}

// AlarmStatusChanged calls OnAlarmStatusChanged if set.
func (f *ListenerFuncs) AlarmStatusChanged(ctx context.Context, status domain.AlarmStatus) error {
	if f.OnAlarmStatusChanged == nil {
		return nil
	}

	return f.OnAlarmStatusChanged(ctx, status)
}

// CatDetected calls OnCatDetected if set.
func (f *ListenerFuncs) CatDetected(ctx context.Context, detected bool) error {
	if f.OnCatDetected == nil {
		return nil
	}

	return f.OnCatDetected(ctx, detected)
}

// SensorStatusChanged calls OnSensorStatusChanged if set.
func (f *ListenerFuncs) SensorStatusChanged(ctx context.Context) error {
	if f.OnSensorStatusChanged == nil {
		return nil
	}

	return f.OnSensorStatusChanged(ctx)
}
