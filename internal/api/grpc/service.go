package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "coach.v1.CoachService"

const (
	methodStartSession = "/" + ServiceName + "/StartSession"
	methodStopSession  = "/" + ServiceName + "/StopSession"
	methodGetSession   = "/" + ServiceName + "/GetSession"
	methodGetReport    = "/" + ServiceName + "/GetReport"
	methodWatchEvents  = "/" + ServiceName + "/WatchEvents"
)

// CoachServer is the server API for CoachService. Messages use protobuf well-known types so
// no generated code is needed; session state travels as a Struct.
type CoachServer interface {
	StartSession(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	StopSession(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetSession(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetReport(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	WatchEvents(*emptypb.Empty, grpc.ServerStreamingServer[structpb.Struct]) error
}

// RegisterCoachServer registers srv on s.
func RegisterCoachServer(s grpc.ServiceRegistrar, srv CoachServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func unaryHandler(method string, call func(CoachServer, context.Context, *emptypb.Empty) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(emptypb.Empty)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CoachServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(CoachServer), ctx, req.(*emptypb.Empty))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func watchEventsHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(CoachServer).WatchEvents(in, &grpc.GenericServerStream[emptypb.Empty, structpb.Struct]{ServerStream: stream})
}

// ServiceDesc is the grpc.ServiceDesc for CoachService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CoachServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "StartSession", Handler: unaryHandler(methodStartSession, CoachServer.StartSession)},
		{MethodName: "StopSession", Handler: unaryHandler(methodStopSession, CoachServer.StopSession)},
		{MethodName: "GetSession", Handler: unaryHandler(methodGetSession, CoachServer.GetSession)},
		{MethodName: "GetReport", Handler: unaryHandler(methodGetReport, CoachServer.GetReport)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "WatchEvents", Handler: watchEventsHandler, ServerStreams: true},
	},
	Metadata: "coach/v1/coach.proto",
}

// CoachClient is a client for CoachService.
type CoachClient struct {
	cc grpc.ClientConnInterface
}

// NewCoachClient wraps cc.
func NewCoachClient(cc grpc.ClientConnInterface) *CoachClient {
	return &CoachClient{cc: cc}
}

func (c *CoachClient) unary(ctx context.Context, method string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// StartSession starts listening and returns the fresh session state.
func (c *CoachClient) StartSession(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.unary(ctx, methodStartSession, opts...)
}

// StopSession stops listening and returns the final session state.
func (c *CoachClient) StopSession(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.unary(ctx, methodStopSession, opts...)
}

// GetSession returns the current session state.
func (c *CoachClient) GetSession(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.unary(ctx, methodGetSession, opts...)
}

// GetReport returns the post-session report.
func (c *CoachClient) GetReport(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.unary(ctx, methodGetReport, opts...)
}

// WatchEvents streams session state updates until ctx is done.
func (c *CoachClient) WatchEvents(ctx context.Context, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], methodWatchEvents, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[emptypb.Empty, structpb.Struct]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(&emptypb.Empty{}); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
