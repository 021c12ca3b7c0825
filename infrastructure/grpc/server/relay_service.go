package server

import (
	"chat-relay/infrastructure/wire"
	"context"

	"google.golang.org/grpc"
)

const (
	RelayServiceName                           = "relay.v1.RelayService"
	RelayService_Connect_FullMethodName        = "/relay.v1.RelayService/Connect"
	RelayService_PublicHistory_FullMethodName  = "/relay.v1.RelayService/PublicHistory"
	RelayService_PrivateHistory_FullMethodName = "/relay.v1.RelayService/PrivateHistory"
)

type HistoryRequest struct {
	User1 string `json:"user1,omitempty"`
	User2 string `json:"user2,omitempty"`
}

type HistoryResponse struct {
	Messages []wire.ReceiveMessage `json:"messages"`
}

// RelayServiceServer is the server API of the relay gRPC gateway.
type RelayServiceServer interface {
	Connect(stream grpc.BidiStreamingServer[wire.Envelope, wire.Envelope]) error
	PublicHistory(ctx context.Context, req *HistoryRequest) (*HistoryResponse, error)
	PrivateHistory(ctx context.Context, req *HistoryRequest) (*HistoryResponse, error)
}

func RegisterRelayServiceServer(s grpc.ServiceRegistrar, srv RelayServiceServer) {
	s.RegisterService(&RelayService_ServiceDesc, srv)
}

var RelayService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: RelayServiceName,
	HandlerType: (*RelayServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "PublicHistory", Handler: publicHistoryHandler},
		{MethodName: "PrivateHistory", Handler: privateHistoryHandler},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Connect",
			Handler:       connectHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "relay/v1/relay.proto",
}

func connectHandler(srv any, stream grpc.ServerStream) error {
	return srv.(RelayServiceServer).Connect(&grpc.GenericServerStream[wire.Envelope, wire.Envelope]{ServerStream: stream})
}

func publicHistoryHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(HistoryRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RelayServiceServer).PublicHistory(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RelayService_PublicHistory_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RelayServiceServer).PublicHistory(ctx, req.(*HistoryRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func privateHistoryHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(HistoryRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RelayServiceServer).PrivateHistory(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: RelayService_PrivateHistory_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RelayServiceServer).PrivateHistory(ctx, req.(*HistoryRequest))
	}
	return interceptor(ctx, in, info, handler)
}
