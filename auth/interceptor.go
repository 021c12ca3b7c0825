package auth

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type contextKey string

const UsernameKey contextKey = "username"

// UsernameFromContext returns the identity authenticated by the interceptors.
func UsernameFromContext(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(UsernameKey).(string)
	return username, ok && username != ""
}

// UnaryInterceptor validates the bearer token of unary calls.
// When required is false, calls without token go through anonymously,
// but a token that is present must still be valid.
func UnaryInterceptor(tokens *TokenIssuer, required bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		authenticated, err := authenticate(ctx, tokens, required)
		if err != nil {
			return nil, err
		}
		return handler(authenticated, req)
	}
}

// StreamInterceptor is the streaming counterpart of UnaryInterceptor.
func StreamInterceptor(tokens *TokenIssuer, required bool) grpc.StreamServerInterceptor {
	return func(srv any, stream grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		authenticated, err := authenticate(stream.Context(), tokens, required)
		if err != nil {
			return err
		}
		return handler(srv, &authenticatedStream{ServerStream: stream, ctx: authenticated})
	}
}

type authenticatedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *authenticatedStream) Context() context.Context { return s.ctx }

func authenticate(ctx context.Context, tokens *TokenIssuer, required bool) (context.Context, error) {
	var values []string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		values = md.Get("authorization")
	}
	if len(values) == 0 {
		if required {
			return nil, status.Error(codes.Unauthenticated, "authorization token is missing")
		}
		return ctx, nil
	}

	// Expecting the standard "Bearer <token>" format
	claims, err := tokens.Validate(strings.TrimPrefix(values[0], "Bearer "))
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "invalid or expired token")
	}
	return context.WithValue(ctx, UsernameKey, claims.Username), nil
}
