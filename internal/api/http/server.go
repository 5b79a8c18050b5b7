package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	domain "github.com/oshokin/catpoint/internal/domain/security"
	"github.com/oshokin/catpoint/internal/logger"
	service "github.com/oshokin/catpoint/internal/service/security"
)

const (
	// maxImageSize limits uploaded camera images.
	maxImageSize = 10 << 20
	// maxBodySize limits JSON request bodies.
	maxBodySize = 64 << 10

	// imageRequestLimit is the number of image uploads allowed per client and minute.
	imageRequestLimit = 60

	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Controller abstracts the security operations the HTTP API depends on.
type Controller interface {
	Snapshot(ctx context.Context) (*service.Snapshot, error)
	SetArmingStatus(ctx context.Context, status domain.ArmingStatus) error
	AddSensor(ctx context.Context, sensor domain.Sensor) error
	RemoveSensor(ctx context.Context, sensor domain.Sensor) error
	Sensors(ctx context.Context) ([]domain.Sensor, error)
	ChangeSensorActivationStatus(ctx context.Context, sensor domain.Sensor, active bool) error
	ProcessImage(ctx context.Context, image []byte) (bool, error)
	AlarmStatus(ctx context.Context) (domain.AlarmStatus, error)
}

// Server serves the HTTP API.
type Server struct {
	controller Controller
	gatherer   prometheus.Gatherer
	handler    http.Handler
}

// New creates the API. A nil gatherer disables /metrics.
func New(controller Controller, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		controller: controller,
		gatherer:   gatherer,
	}

	s.handler = s.buildRouter()

	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves on address until ctx is canceled.
func (s *Server) Run(ctx context.Context, address string) error {
	ctx = logger.WithName(ctx, "http")

	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", address, err)
	}

	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	done := make(chan struct{})

	go func() {
		defer close(done)

		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		logger.Info(ctx, "Shutting down HTTP server")

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.WarnKV(ctx, "HTTP shutdown failed", "error", err)
		}
	}()

	logger.InfoKV(ctx, "HTTP server listening", "listen_address", lis.Addr().String())

	if err = server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve HTTP: %w", err)
	}

	<-done

	return nil
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Put("/arming", s.handleSetArming)
		r.With(imageRateLimit()).Post("/images", s.handleProcessImage)

		r.Route("/sensors", func(r chi.Router) {
			r.Get("/", s.handleListSensors)
			r.Post("/", s.handleAddSensor)
			r.Delete("/{type}/{name}", s.handleRemoveSensor)
			r.Put("/{type}/{name}/active", s.handleSetSensorActive)
		})
	})

	return r
}

// imageRateLimit throttles image uploads per client IP.
func imageRateLimit() func(http.Handler) http.Handler {
	return httprate.Limit(
		imageRequestLimit,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Retry-After", strconv.Itoa(int(time.Minute.Seconds())))
			writeError(w, http.StatusTooManyRequests, ErrCodeRateLimited, "too many images, try again later")
		}),
	)
}

// loggingMiddleware logs every request with its status and duration.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logger.WithKV(r.Context(), "request_id", middleware.GetReqID(r.Context()))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r.WithContext(ctx))

		logger.DebugKV(ctx, "HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start))
	})
}
