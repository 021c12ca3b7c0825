package server

import (
	"chat-relay/auth"
	"chat-relay/infrastructure/wire"
	"log/slog"
	"time"

	sdkgrpc "github.com/mama165/sdk-go/grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
)

// NewGRPCServer builds the gRPC server of the relay. Keepalive pings replace the
// websocket ping/pong as the liveness signal of streams.
func NewGRPCServer(log *slog.Logger, tokens *auth.TokenIssuer, requireToken bool, pingPeriod time.Duration) *grpc.Server {
	return grpc.NewServer(
		grpc.ForceServerCodec(wire.Codec{}),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    pingPeriod,
			Timeout: pingPeriod / 2,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             pingPeriod / 2,
			PermitWithoutStream: true,
		}),
		grpc.ChainUnaryInterceptor(
			sdkgrpc.UnaryLoggingInterceptor(log),
			auth.UnaryInterceptor(tokens, requireToken),
		),
		grpc.ChainStreamInterceptor(
			auth.StreamInterceptor(tokens, requireToken),
		),
	)
}
