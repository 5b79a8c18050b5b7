//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	api "github.com/oshokin/catpoint/internal/api/grpc/security"
	"github.com/oshokin/catpoint/internal/config"
	domain "github.com/oshokin/catpoint/internal/domain/security"
)

// Client wraps the SecurityService client with convenience helpers.
type Client struct {
	// conn is the underlying gRPC connection to the server.
	conn *grpc.ClientConn
	// api is the SecurityService client.
	api *api.SecurityServiceClient
	// actor is attached to every state-changing request.
	actor *domain.Actor

	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithActor sets the actor reported to the server.
func WithActor(actor *domain.Actor) Option {
	return func(c *Client) {
		c.actor = actor.Clone()
	}
}

// errAddressRequired is returned when a required address value is missing.
var errAddressRequired = errors.New("address must be provided")

// Dial establishes a gRPC connection to the security server.
// Note: this uses insecure transport credentials; deploy on a trusted network
// or terminate TLS in a proxy until native TLS is added.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial security server: %w", err)
	}

	client := &Client{
		conn:        conn,
		api:         api.NewSecurityServiceClient(conn),
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// Status retrieves the current security state.
func (c *Client) Status(ctx context.Context) (*api.StatusResponse, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.GetStatus(callCtx, &api.GetStatusRequest{RequestingActor: c.actor})
	if err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}

	return resp, nil
}

// SetArmingStatus changes the arming mode.
func (c *Client) SetArmingStatus(ctx context.Context, status domain.ArmingStatus) (*api.StatusResponse, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.SetArmingStatus(callCtx, &api.SetArmingStatusRequest{
		Actor:        c.actor,
		ArmingStatus: &status,
	})
	if err != nil {
		return nil, fmt.Errorf("set arming status: %w", err)
	}

	return resp, nil
}

// AddSensor registers a sensor and returns the resulting sensor list.
func (c *Client) AddSensor(ctx context.Context, sensor domain.Sensor) ([]domain.Sensor, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.AddSensor(callCtx, &api.SensorRequest{Actor: c.actor, Sensor: sensor})
	if err != nil {
		return nil, fmt.Errorf("add sensor: %w", err)
	}

	return resp.Sensors, nil
}

// RemoveSensor unregisters a sensor and returns the resulting sensor list.
func (c *Client) RemoveSensor(ctx context.Context, sensor domain.Sensor) ([]domain.Sensor, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.RemoveSensor(callCtx, &api.SensorRequest{Actor: c.actor, Sensor: sensor})
	if err != nil {
		return nil, fmt.Errorf("remove sensor: %w", err)
	}

	return resp.Sensors, nil
}

// Sensors lists every sensor.
func (c *Client) Sensors(ctx context.Context) ([]domain.Sensor, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.ListSensors(callCtx, new(api.ListSensorsRequest))
	if err != nil {
		return nil, fmt.Errorf("list sensors: %w", err)
	}

	return resp.Sensors, nil
}

// SetSensorActive changes the activation of a sensor.
func (c *Client) SetSensorActive(
	ctx context.Context,
	key domain.SensorKey,
	active bool,
) (*api.StatusResponse, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.SetSensorActive(callCtx, &api.SetSensorActiveRequest{
		Actor:  c.actor,
		Sensor: key,
		Active: active,
	})
	if err != nil {
		return nil, fmt.Errorf("set sensor %s active: %w", key, err)
	}

	return resp, nil
}

// ProcessImage submits a camera image for analysis.
func (c *Client) ProcessImage(ctx context.Context, image []byte) (*api.ProcessImageResponse, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.ProcessImage(callCtx, &api.ProcessImageRequest{Actor: c.actor, Image: image})
	if err != nil {
		return nil, fmt.Errorf("process image: %w", err)
	}

	return resp, nil
}

// WatchEvents opens an event stream. The stream lives until ctx is canceled,
// so no call timeout is applied.
func (c *Client) WatchEvents(ctx context.Context) (*api.EventReceiver, error) {
	stream, err := c.api.WatchEvents(ctx, &api.WatchEventsRequest{RequestingActor: c.actor})
	if err != nil {
		return nil, fmt.Errorf("watch events: %w", err)
	}

	return stream, nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
