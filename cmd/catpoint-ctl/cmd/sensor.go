package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/oshokin/catpoint/internal/domain/security"
	"github.com/oshokin/catpoint/internal/service/bridge"
	"github.com/oshokin/catpoint/internal/service/client"
	"github.com/oshokin/catpoint/internal/service/common"
)

var (
	sensorCmd = &cobra.Command{
		Use:   "sensor",
		Short: "Manage sensors.",
	}

	sensorListCmd = &cobra.Command{
		Use:   "list",
		Short: "List sensors.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(func(ctx context.Context, c *common.Client) error {
				sensors, err := c.Sensors(ctx)
				if err != nil {
					return err
				}

				client.PrintSensors(cmd.OutOrStdout(), sensors)

				return nil
			})
		},
	}

	sensorAddCmd = &cobra.Command{
		Use:   "add <door|window|motion> <name>",
		Short: "Add a sensor.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sensor, err := parseSensor(args)
			if err != nil {
				return err
			}

			return withClient(func(ctx context.Context, c *common.Client) error {
				sensors, err := c.AddSensor(ctx, sensor)
				if err != nil {
					return err
				}

				client.PrintSensors(cmd.OutOrStdout(), sensors)

				return nil
			})
		},
	}

	sensorRemoveCmd = &cobra.Command{
		Use:   "remove <door|window|motion> <name>",
		Short: "Remove a sensor.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sensor, err := parseSensor(args)
			if err != nil {
				return err
			}

			return withClient(func(ctx context.Context, c *common.Client) error {
				sensors, err := c.RemoveSensor(ctx, sensor)
				if err != nil {
					return err
				}

				client.PrintSensors(cmd.OutOrStdout(), sensors)

				return nil
			})
		},
	}

	sensorSetCmd = &cobra.Command{
		Use:   "set <door|window|motion> <name> <on|off>",
		Short: "Activate or deactivate a sensor.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			sensor, err := parseSensor(args[:2])
			if err != nil {
				return err
			}

			active, err := bridge.ParseActive([]byte(args[2]))
			if err != nil {
				return err
			}

			return withClient(func(ctx context.Context, c *common.Client) error {
				status, err := c.SetSensorActive(ctx, sensor.Key(), active)
				if err != nil {
					return err
				}

				client.PrintStatus(cmd.OutOrStdout(), status)

				return nil
			})
		},
	}
)

func parseSensor(args []string) (security.Sensor, error) {
	sensorType, err := security.ParseSensorType(args[0])
	if err != nil {
		return security.Sensor{}, err
	}

	sensor := security.NewSensor(args[1], sensorType)

	return sensor, sensor.Validate()
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	sensorCmd.AddCommand(sensorListCmd, sensorAddCmd, sensorRemoveCmd, sensorSetCmd)
}
