package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	api "github.com/oshokin/catpoint/internal/api/grpc/security"
	"github.com/oshokin/catpoint/internal/config"
	domain "github.com/oshokin/catpoint/internal/domain/security"
	"github.com/oshokin/catpoint/internal/logger"
	"github.com/oshokin/catpoint/internal/service/common"
)

// Options configures how catpoint-ctl reaches the server.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string
	// ServerAddress overrides server address from config when specified.
	ServerAddress string
}

// defaultPushInterval defines retry delay when pushing the arming status to the server.
const defaultPushInterval = 1 * time.Second

// Connect loads settings, detects the actor and dials the server.
func Connect(ctx context.Context, opts *Options) (*common.Client, error) {
	timeout := config.DefaultTimeout
	serverAddress := opts.ServerAddress

	cfg, err := config.Load(opts.ConfigPath)

	switch {
	case err == nil:
		timeout = cfg.Timeout

		if serverAddress == "" {
			serverAddress = cfg.ServerAddress
		}
	case serverAddress == "":
		return nil, err
	default:
		logger.DebugKV(ctx, "Settings not loaded, using flags", "error", err)
	}

	actor, err := common.DetectActor()
	if err != nil {
		return nil, err
	}

	return common.Dial(ctx, serverAddress, common.WithCallTimeout(timeout), common.WithActor(actor))
}

// Arm pushes the arming status. With retry set it keeps trying until the
// server confirms the change or ctx is canceled.
func Arm(ctx context.Context, c *common.Client, status domain.ArmingStatus, retry bool) (*api.StatusResponse, error) {
	ctx = logger.WithName(ctx, "catpoint-ctl")

	// attempt tries once to change the arming status.
	attempt := func() (*api.StatusResponse, error) {
		resp, err := c.SetArmingStatus(ctx, status)
		if err != nil {
			return nil, err
		}

		if resp.ArmingStatus != status {
			return nil, fmt.Errorf("server reports %s instead of %s", resp.ArmingStatus, status)
		}

		return resp, nil
	}

	resp, err := attempt()
	if err == nil || !retry {
		return resp, err
	}

	logger.ErrorKV(ctx, "SetArmingStatus failed, retrying", "error", err)

	ticker := time.NewTicker(defaultPushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, errors.Join(ctx.Err(), err)
		case <-ticker.C:
			resp, err = attempt()
			if err == nil {
				return resp, nil
			}

			logger.ErrorKV(ctx, "SetArmingStatus failed, retrying", "error", err)
		}
	}
}

// Watch prints events until the stream ends or ctx is canceled.
func Watch(ctx context.Context, c *common.Client, w io.Writer) error {
	stream, err := c.WatchEvents(ctx)
	if err != nil {
		return err
	}

	for {
		event, err := stream.Recv()

		switch {
		case err == nil:
			PrintEvent(w, event)
		case errors.Is(err, io.EOF), ctx.Err() != nil:
			return nil
		default:
			return fmt.Errorf("receive event: %w", err)
		}
	}
}

// PrintStatus writes a human readable status report.
func PrintStatus(w io.Writer, status *api.StatusResponse) {
	_, _ = fmt.Fprintf(w, "Alarm:   %s\n", status.AlarmStatus)
	_, _ = fmt.Fprintf(w, "Arming:  %s\n", status.ArmingStatus)
	_, _ = fmt.Fprintf(w, "Cat:     %s\n", yesNo(status.CatDetected))
	_, _ = fmt.Fprintln(w)

	PrintSensors(w, status.Sensors)
}

// PrintSensors writes the sensors as a table.
func PrintSensors(w io.Writer, sensors []domain.Sensor) {
	if len(sensors) == 0 {
		_, _ = fmt.Fprintln(w, "No sensors.")

		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "TYPE\tNAME\tACTIVE")

	for _, sensor := range sensors {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", sensor.Type, sensor.Name, yesNo(sensor.Active))
	}

	_ = tw.Flush()
}

// PrintEvent writes one event as a single line.
func PrintEvent(w io.Writer, event *api.Event) {
	var details []string

	if event.AlarmStatus != nil {
		details = append(details, "alarm="+event.AlarmStatus.String())
	}

	if event.CatDetected != nil {
		details = append(details, "cat="+yesNo(*event.CatDetected))
	}

	line := strings.Join(append([]string{event.Timestamp.Local().Format(time.RFC3339), event.Kind}, details...), " ")

	_, _ = fmt.Fprintln(w, line)
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}

	return "no"
}
