package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/catpoint/internal/config"
	"github.com/oshokin/catpoint/internal/service/server"
	"github.com/oshokin/catpoint/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// statePath overrides the storage path from the configuration.
	statePath string
	// singleInstance refuses to start next to another server process.
	singleInstance bool

	// rootCmd represents the base command for running the security server.
	rootCmd = &cobra.Command{
		Use:   "catpoint-server [listen-address]",
		Short: "Run the catpoint security controller.",
		Long: `Starts the security controller that tracks sensors, the arming mode and the alarm status.

The controller is served over gRPC on the port of server_addr from the configuration
file, or on the listen address given as argument (e.g., :9090, 0.0.0.0:50051).
Depending on the configuration the server also exposes the HTTP API with Prometheus
metrics, publishes events to an MQTT broker, accepts sensor changes from MQTT and
analyzes snapshots dropped into the camera folder.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			return server.Run(ctx, &server.Options{
				ConfigPath:     configPath,
				ListenAddress:  listenAddress,
				StatePath:      statePath,
				SingleInstance: singleInstance,
			})
		},
	}
)

// Execute runs the catpoint-server CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&statePath, "state", "s", "", "override the storage path from the configuration")
	rootCmd.Flags().BoolVar(&singleInstance, "single-instance", false, "refuse to start if another server is running")
}
