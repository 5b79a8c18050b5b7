package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/oshokin/catpoint/internal/domain/security"
	"github.com/oshokin/catpoint/internal/service/client"
	"github.com/oshokin/catpoint/internal/service/common"
)

var (
	// retry keeps pushing the arming status until the server confirms it.
	retry bool

	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show the alarm status, arming mode and sensors.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(func(ctx context.Context, c *common.Client) error {
				status, err := c.Status(ctx)
				if err != nil {
					return err
				}

				client.PrintStatus(cmd.OutOrStdout(), status)

				return nil
			})
		},
	}

	armCmd = &cobra.Command{
		Use:       "arm home|away",
		Short:     "Arm the system.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"home", "away"},
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := security.ParseArmingStatus("armed_" + args[0])
			if err != nil {
				return err
			}

			return setArming(cmd, status)
		},
	}

	disarmCmd = &cobra.Command{
		Use:   "disarm",
		Short: "Disarm the system and clear the alarm.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return setArming(cmd, security.Disarmed)
		},
	}

	imageCmd = &cobra.Command{
		Use:   "image <file>",
		Short: "Submit a camera image for analysis.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			image, err := os.ReadFile(filepath.Clean(args[0]))
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}

			return withClient(func(ctx context.Context, c *common.Client) error {
				resp, err := c.ProcessImage(ctx, image)
				if err != nil {
					return err
				}

				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Cat detected: %t, alarm: %s\n", resp.CatDetected, resp.AlarmStatus)

				return nil
			})
		},
	}

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Stream controller events until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(func(ctx context.Context, c *common.Client) error {
				return client.Watch(ctx, c, cmd.OutOrStdout())
			})
		},
	}
)

func setArming(cmd *cobra.Command, status security.ArmingStatus) error {
	return withClient(func(ctx context.Context, c *common.Client) error {
		resp, err := client.Arm(ctx, c, status, retry)
		if err != nil {
			return err
		}

		client.PrintStatus(cmd.OutOrStdout(), resp)

		return nil
	})
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	for _, c := range []*cobra.Command{armCmd, disarmCmd} {
		c.Flags().BoolVarP(&retry, "retry", "r", false, "retry until the server confirms the change")
	}
}
