package security

import (
	"context"

	"google.golang.org/grpc"
)

// SecurityServiceClient is the client API for the SecurityService.
type SecurityServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewSecurityServiceClient creates a client on top of cc.
func NewSecurityServiceClient(cc grpc.ClientConnInterface) *SecurityServiceClient {
	return &SecurityServiceClient{cc: cc}
}

// GetStatus returns the current state.
func (c *SecurityServiceClient) GetStatus(
	ctx context.Context,
	in *GetStatusRequest,
	opts ...grpc.CallOption,
) (*StatusResponse, error) {
	return invoke[StatusResponse](ctx, c.cc, GetStatusFullMethodName, in, opts)
}

// SetArmingStatus changes the arming mode.
func (c *SecurityServiceClient) SetArmingStatus(
	ctx context.Context,
	in *SetArmingStatusRequest,
	opts ...grpc.CallOption,
) (*StatusResponse, error) {
	return invoke[StatusResponse](ctx, c.cc, SetArmingStatusFullMethodName, in, opts)
}

// AddSensor registers a sensor.
func (c *SecurityServiceClient) AddSensor(
	ctx context.Context,
	in *SensorRequest,
	opts ...grpc.CallOption,
) (*SensorsResponse, error) {
	return invoke[SensorsResponse](ctx, c.cc, AddSensorFullMethodName, in, opts)
}

// RemoveSensor unregisters a sensor.
func (c *SecurityServiceClient) RemoveSensor(
	ctx context.Context,
	in *SensorRequest,
	opts ...grpc.CallOption,
) (*SensorsResponse, error) {
	return invoke[SensorsResponse](ctx, c.cc, RemoveSensorFullMethodName, in, opts)
}

// ListSensors returns every sensor.
func (c *SecurityServiceClient) ListSensors(
	ctx context.Context,
	in *ListSensorsRequest,
	opts ...grpc.CallOption,
) (*SensorsResponse, error) {
	return invoke[SensorsResponse](ctx, c.cc, ListSensorsFullMethodName, in, opts)
}

// SetSensorActive changes the activation of a sensor.
func (c *SecurityServiceClient) SetSensorActive(
	ctx context.Context,
	in *SetSensorActiveRequest,
	opts ...grpc.CallOption,
) (*StatusResponse, error) {
	return invoke[StatusResponse](ctx, c.cc, SetSensorActiveFullMethodName, in, opts)
}

// ProcessImage submits a camera image for analysis.
func (c *SecurityServiceClient) ProcessImage(
	ctx context.Context,
	in *ProcessImageRequest,
	opts ...grpc.CallOption,
) (*ProcessImageResponse, error) {
	return invoke[ProcessImageResponse](ctx, c.cc, ProcessImageFullMethodName, in, opts)
}

// WatchEvents opens a stream of controller events.
func (c *SecurityServiceClient) WatchEvents(
	ctx context.Context,
	in *WatchEventsRequest,
	opts ...grpc.CallOption,
) (*EventReceiver, error) {
	stream, err := c.cc.NewStream(ctx, &SecurityServiceDesc.Streams[0], WatchEventsFullMethodName, withCodec(opts)...)
	if err != nil {
		return nil, err
	}

	if err = stream.SendMsg(in); err != nil {
		return nil, err
	}

	if err = stream.CloseSend(); err != nil {
		return nil, err
	}

	return &EventReceiver{stream: stream}, nil
}

// EventReceiver is the client side of WatchEvents.
type EventReceiver struct {
	stream grpc.ClientStream
}

// Recv blocks until the next event arrives. It returns io.EOF when the server
// closes the stream.
func (r *EventReceiver) Recv() (*Event, error) {
	event := new(Event)
	if err := r.stream.RecvMsg(event); err != nil {
		return nil, err
	}

	return event, nil
}

func invoke[Resp any](
	ctx context.Context,
	cc grpc.ClientConnInterface,
	method string,
	in any,
	opts []grpc.CallOption,
) (*Resp, error) {
	out := new(Resp)
	if err := cc.Invoke(ctx, method, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}

	return out, nil
}

// withCodec selects the JSON codec ahead of caller options.
func withCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}
