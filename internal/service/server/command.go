package server

import (
	"context"
	"errors"
	"fmt"
	"net"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	api "github.com/oshokin/catpoint/internal/api/grpc/security"
	httpapi "github.com/oshokin/catpoint/internal/api/http"
	"github.com/oshokin/catpoint/internal/camera"
	"github.com/oshokin/catpoint/internal/config"
	"github.com/oshokin/catpoint/internal/infrastructure/mqtt"
	"github.com/oshokin/catpoint/internal/logger"
	"github.com/oshokin/catpoint/internal/metrics"
	"github.com/oshokin/catpoint/internal/notify"
	"github.com/oshokin/catpoint/internal/service/bridge"
	"github.com/oshokin/catpoint/internal/service/common"
	service "github.com/oshokin/catpoint/internal/service/security"
)

// Options controls the catpoint-server process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ListenAddress provides an optional listen address override for the gRPC server.
	ListenAddress string
	// StatePath overrides the storage path from the settings.
	StatePath string
	// SingleInstance refuses to start while another server process is running.
	SingleInstance bool
}

// ErrNoServerAddress indicates missing server configuration.
var ErrNoServerAddress = errors.New("no server address configured")

// Run starts every configured surface and blocks until ctx is canceled or one
// of them fails.
//
//nolint:funlen // Wiring reads best top to bottom.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "catpoint-server")

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	logger.Setup(settings.LogLevel, settings.LogFormat)

	if opts.SingleInstance {
		if err = common.EnsureSingleInstance(); err != nil {
			return err
		}
	}

	if opts.StatePath != "" {
		settings.Storage.Path = opts.StatePath
	}

	listenAddress, err := resolveListenAddress(settings.ServerAddress, opts.ListenAddress)
	if err != nil {
		return fmt.Errorf("resolve listen address: %w", err)
	}

	repository, closer, err := openRepository(ctx, settings.Storage)
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := closer.Close(); closeErr != nil {
			logger.WarnKV(ctx, "Failed to close storage", "error", closeErr)
		}
	}()

	imageAnalyzer, err := newAnalyzer(settings.Analyzer)
	if err != nil {
		return fmt.Errorf("create analyzer: %w", err)
	}

	controller := service.NewController(repository, imageAnalyzer,
		service.WithConfidenceThreshold(settings.ConfidenceThreshold))

	metricsListener := metrics.NewListener()

	alarmStatus, err := controller.AlarmStatus(ctx)
	if err != nil {
		return fmt.Errorf("read alarm status: %w", err)
	}

	metricsListener.Init(alarmStatus)
	controller.AddStatusListener(metricsListener)

	if settings.MQTT.Broker != "" {
		client, err := connectMQTT(ctx, settings.MQTT, controller)
		if err != nil {
			return err
		}

		defer func() {
			_ = client.Close()
		}()
	}

	var watcher *camera.Watcher

	if settings.Camera.Directory != "" {
		watcher, err = camera.NewWatcher(settings.Camera.Directory, settings.Camera.SettleDelay, controller)
		if err != nil {
			return fmt.Errorf("create camera watcher: %w", err)
		}
	}

	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", listenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddress, err)
	}

	apiServer := api.NewServer(controller)
	grpcServer := grpc.NewServer()
	api.RegisterSecurityServiceServer(grpcServer, apiServer)

	logger.InfoKV(ctx, "Security server listening",
		"listen_address", listenAddress,
		"storage", settings.Storage.Driver,
		"analyzer", settings.Analyzer.Kind)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("serve gRPC: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info(ctx, "Shutting down gRPC server")
		apiServer.Shutdown()
		grpcServer.GracefulStop()

		return nil
	})

	if settings.HTTPAddress != "" {
		httpServer := httpapi.New(controller, metricsListener.Registry())

		g.Go(func() error {
			return httpServer.Run(gctx, settings.HTTPAddress)
		})
	}

	if watcher != nil {
		g.Go(func() error {
			return watcher.Run(gctx)
		})
	}

	err = g.Wait()

	logger.Info(ctx, "Security server stopped")

	return err
}

// connectMQTT connects to the broker, mirrors controller events to it and
// optionally subscribes the sensor bridge.
func connectMQTT(ctx context.Context, settings config.MQTTConfig, controller *service.Controller) (*mqtt.Client, error) {
	client, err := mqtt.Connect(ctx, settings)
	if err != nil {
		return nil, fmt.Errorf("connect to mqtt: %w", err)
	}

	controller.AddStatusListener(notify.NewListener(client, client.Topics(), client.QoS()))

	if settings.SensorBridge {
		sensorBridge := bridge.New(client, controller, client.Topics(), client.QoS())

		if err = sensorBridge.Start(ctx); err != nil {
			_ = client.Close()

			return nil, err
		}
	}

	return client, nil
}

// resolveListenAddress determines the listen address for the gRPC server.
// If override is provided, uses it directly. Otherwise extracts port from configAddr.
func resolveListenAddress(configAddr, override string) (string, error) {
	if override != "" {
		return override, nil
	}

	if configAddr == "" {
		return "", ErrNoServerAddress
	}

	_, port, err := net.SplitHostPort(configAddr)
	if err != nil {
		return "", fmt.Errorf("invalid server address format %q: %w", configAddr, err)
	}

	// Bind on all interfaces.
	return ":" + port, nil
}
