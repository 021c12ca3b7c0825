package client

import (
	"chat-relay/infrastructure/grpc/server"
	"chat-relay/infrastructure/wire"
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

// RelayClient is the client side of relay.v1.RelayService.
type RelayClient struct {
	conn  *grpc.ClientConn
	token string
}

// NewRelayClient dials target with the JSON codec. Extra options come after the defaults,
// tests use them to plug a bufconn dialer.
func NewRelayClient(target, token string, opts ...grpc.DialOption) (*RelayClient, error) {
	options := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(wire.Codec{})),
	}, opts...)

	conn, err := grpc.NewClient(target, options...)
	if err != nil {
		return nil, err
	}
	return &RelayClient{conn: conn, token: token}, nil
}

func (c *RelayClient) Close() error {
	return c.conn.Close()
}

func (c *RelayClient) withToken(ctx context.Context) context.Context {
	if c.token == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.token)
}

// Connect opens the realtime stream.
func (c *RelayClient) Connect(ctx context.Context) (grpc.BidiStreamingClient[wire.Envelope, wire.Envelope], error) {
	stream, err := c.conn.NewStream(c.withToken(ctx), &server.RelayService_ServiceDesc.Streams[0], server.RelayService_Connect_FullMethodName)
	if err != nil {
		return nil, err
	}
	return &grpc.GenericClientStream[wire.Envelope, wire.Envelope]{ClientStream: stream}, nil
}

func (c *RelayClient) PublicHistory(ctx context.Context) ([]wire.ReceiveMessage, error) {
	out := new(server.HistoryResponse)
	if err := c.conn.Invoke(c.withToken(ctx), server.RelayService_PublicHistory_FullMethodName, &server.HistoryRequest{}, out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

func (c *RelayClient) PrivateHistory(ctx context.Context, user1, user2 string) ([]wire.ReceiveMessage, error) {
	out := new(server.HistoryResponse)
	in := &server.HistoryRequest{User1: user1, User2: user2}
	if err := c.conn.Invoke(c.withToken(ctx), server.RelayService_PrivateHistory_FullMethodName, in, out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}
