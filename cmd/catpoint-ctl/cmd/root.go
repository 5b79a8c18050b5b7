package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/catpoint/internal/config"
	"github.com/oshokin/catpoint/internal/service/client"
	"github.com/oshokin/catpoint/internal/service/common"
	"github.com/oshokin/catpoint/internal/version"
)

var (
	// cfgPath stores the configuration file path.
	cfgPath string
	// serverAddress overrides the server address from the configuration.
	serverAddress string

	// rootCmd represents the base command for controlling the server.
	rootCmd = &cobra.Command{
		Use:   "catpoint-ctl",
		Short: "Control a running catpoint-server.",
		Long: `Inspects and changes the state of a catpoint-server over gRPC.

The server address is read from the configuration file unless --server is given.
Every change is reported to the server together with the local user and hostname.`,
		SilenceUsage: true,
	}
)

// Execute runs the catpoint-ctl CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// withClient connects to the server, runs fn and closes the connection.
func withClient(fn func(ctx context.Context, c *common.Client) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	c, err := client.Connect(ctx, &client.Options{
		ConfigPath:    cfgPath,
		ServerAddress: serverAddress,
	})
	if err != nil {
		return err
	}

	defer func() {
		_ = c.Close()
	}()

	return fn(ctx, c)
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().
		StringVarP(&cfgPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().
		StringVarP(&serverAddress, "server", "s", "", "server address, overrides the configuration")

	rootCmd.AddCommand(statusCmd, armCmd, disarmCmd, sensorCmd, imageCmd, watchCmd)
}
