package security

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Full method names of the SecurityService.
const (
	serviceName = "catpoint.v1.SecurityService"

	GetStatusFullMethodName       = "/" + serviceName + "/GetStatus"
	SetArmingStatusFullMethodName = "/" + serviceName + "/SetArmingStatus"
	AddSensorFullMethodName       = "/" + serviceName + "/AddSensor"
	RemoveSensorFullMethodName    = "/" + serviceName + "/RemoveSensor"
	ListSensorsFullMethodName     = "/" + serviceName + "/ListSensors"
	SetSensorActiveFullMethodName = "/" + serviceName + "/SetSensorActive"
	ProcessImageFullMethodName    = "/" + serviceName + "/ProcessImage"
	WatchEventsFullMethodName     = "/" + serviceName + "/WatchEvents"
)

// SecurityServiceServer is the server API for the SecurityService.
type SecurityServiceServer interface {
	GetStatus(ctx context.Context, req *GetStatusRequest) (*StatusResponse, error)
	SetArmingStatus(ctx context.Context, req *SetArmingStatusRequest) (*StatusResponse, error)
	AddSensor(ctx context.Context, req *SensorRequest) (*SensorsResponse, error)
	RemoveSensor(ctx context.Context, req *SensorRequest) (*SensorsResponse, error)
	ListSensors(ctx context.Context, req *ListSensorsRequest) (*SensorsResponse, error)
	SetSensorActive(ctx context.Context, req *SetSensorActiveRequest) (*StatusResponse, error)
	ProcessImage(ctx context.Context, req *ProcessImageRequest) (*ProcessImageResponse, error)
	WatchEvents(req *WatchEventsRequest, stream EventStream) error
}

// EventStream is the server side of WatchEvents.
type EventStream interface {
	Send(event *Event) error
	Context() context.Context
}

// RegisterSecurityServiceServer registers srv on s.
func RegisterSecurityServiceServer(s grpc.ServiceRegistrar, srv SecurityServiceServer) {
	s.RegisterService(&SecurityServiceDesc, srv)
}

// SecurityServiceDesc describes the SecurityService for grpc.Server.
var SecurityServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*SecurityServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetStatus",
			Handler: unaryHandler(GetStatusFullMethodName,
				func(srv SecurityServiceServer, ctx context.Context, req *GetStatusRequest) (any, error) {
					return srv.GetStatus(ctx, req)
				}),
		},
		{
			MethodName: "SetArmingStatus",
			Handler: unaryHandler(SetArmingStatusFullMethodName,
				func(srv SecurityServiceServer, ctx context.Context, req *SetArmingStatusRequest) (any, error) {
					return srv.SetArmingStatus(ctx, req)
				}),
		},
		{
			MethodName: "AddSensor",
			Handler: unaryHandler(AddSensorFullMethodName,
				func(srv SecurityServiceServer, ctx context.Context, req *SensorRequest) (any, error) {
					return srv.AddSensor(ctx, req)
				}),
		},
		{
			MethodName: "RemoveSensor",
			Handler: unaryHandler(RemoveSensorFullMethodName,
				func(srv SecurityServiceServer, ctx context.Context, req *SensorRequest) (any, error) {
					return srv.RemoveSensor(ctx, req)
				}),
		},
		{
			MethodName: "ListSensors",
			Handler: unaryHandler(ListSensorsFullMethodName,
				func(srv SecurityServiceServer, ctx context.Context, req *ListSensorsRequest) (any, error) {
					return srv.ListSensors(ctx, req)
				}),
		},
		{
			MethodName: "SetSensorActive",
			Handler: unaryHandler(SetSensorActiveFullMethodName,
				func(srv SecurityServiceServer, ctx context.Context, req *SetSensorActiveRequest) (any, error) {
					return srv.SetSensorActive(ctx, req)
				}),
		},
		{
			MethodName: "ProcessImage",
			Handler: unaryHandler(ProcessImageFullMethodName,
				func(srv SecurityServiceServer, ctx context.Context, req *ProcessImageRequest) (any, error) {
					return srv.ProcessImage(ctx, req)
				}),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchEvents",
			Handler:       watchEventsHandler,
			ServerStreams: true,
		},
	},
	Metadata: "catpoint/v1/security.proto",
}

// unaryHandler decodes a request of type Req and dispatches it through the
// interceptor chain.
func unaryHandler[Req any](
	fullMethod string,
	call func(srv SecurityServiceServer, ctx context.Context, req *Req) (any, error),
) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := new(Req)
		if err := dec(req); err != nil {
			return nil, err
		}

		service, ok := srv.(SecurityServiceServer)
		if !ok {
			return nil, status.Errorf(codes.Internal, "unexpected server type %T", srv)
		}

		if interceptor == nil {
			return call(service, ctx, req)
		}

		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}

		return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
			return call(service, ctx, req.(*Req)) //nolint:forcetypeassert // The request was decoded above.
		})
	}
}

func watchEventsHandler(srv any, stream grpc.ServerStream) error {
	req := new(WatchEventsRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}

	service, ok := srv.(SecurityServiceServer)
	if !ok {
		return status.Errorf(codes.Internal, "unexpected server type %T", srv)
	}

	return service.WatchEvents(req, &eventStream{ServerStream: stream})
}

type eventStream struct {
	grpc.ServerStream
}

func (s *eventStream) Send(event *Event) error {
	return s.ServerStream.SendMsg(event)
}
