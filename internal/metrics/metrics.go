// Package metrics exposes the security state as Prometheus metrics.
//
// Listener implements the controller's StatusListener interface and keeps the
// collectors up to date; the HTTP API serves them from the same registry.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	domain "github.com/oshokin/catpoint/internal/domain/security"
)

// Listener records controller notifications as Prometheus metrics.
type Listener struct {
	registry *prometheus.Registry

	// alarmStatus is 1 for the current alarm status and 0 for the others.
	alarmStatus *prometheus.GaugeVec
	// alarmChanges counts alarm status writes by status.
	alarmChanges *prometheus.CounterVec
	// imagesAnalyzed counts analyzed images by verdict.
	imagesAnalyzed *prometheus.CounterVec
	// sensorChanges counts sensor set and flag changes.
	sensorChanges prometheus.Counter
}

// NewListener creates the collectors in a fresh registry that also carries
// the Go runtime and process collectors.
func NewListener() *Listener {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(registry)

	l := &Listener{
		registry: registry,
		alarmStatus: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "catpoint_alarm_status",
			Help: "Current alarm status, 1 for the active status and 0 for the others.",
		}, []string{"status"}),
		alarmChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "catpoint_alarm_status_changes_total",
			Help: "Total number of alarm status writes, by status.",
		}, []string{"status"}),
		imagesAnalyzed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "catpoint_images_analyzed_total",
			Help: "Total number of analyzed camera images, by verdict.",
		}, []string{"verdict"}),
		sensorChanges: factory.NewCounter(prometheus.CounterOpts{
			Name: "catpoint_sensor_changes_total",
			Help: "Total number of sensor set or sensor state changes.",
		}),
	}

	l.setAlarmStatus(domain.NoAlarm)

	return l
}

// Registry returns the registry holding the collectors.
func (l *Listener) Registry() *prometheus.Registry {
	return l.registry
}

// Init publishes the alarm status read at start-up without counting a change.
func (l *Listener) Init(status domain.AlarmStatus) {
	l.setAlarmStatus(status)
}

// AlarmStatusChanged updates the status gauge and counts the write.
func (l *Listener) AlarmStatusChanged(_ context.Context, status domain.AlarmStatus) error {
	l.setAlarmStatus(status)
	l.alarmChanges.WithLabelValues(status.String()).Inc()

	return nil
}

// CatDetected counts the verdict.
func (l *Listener) CatDetected(_ context.Context, detected bool) error {
	verdict := "no_cat"
	if detected {
		verdict = "cat"
	}

	l.imagesAnalyzed.WithLabelValues(verdict).Inc()

	return nil
}

// SensorStatusChanged counts the change.
func (l *Listener) SensorStatusChanged(context.Context) error {
	l.sensorChanges.Inc()

	return nil
}

func (l *Listener) setAlarmStatus(current domain.AlarmStatus) {
	for _, status := range domain.AlarmStatuses() {
		value := 0.0
		if status == current {
			value = 1
		}

		l.alarmStatus.WithLabelValues(status.String()).Set(value)
	}
}
