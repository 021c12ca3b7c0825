package server_test

import (
	"chat-relay/auth"
	"chat-relay/infrastructure/grpc/client"
	"chat-relay/infrastructure/grpc/server"
	"chat-relay/infrastructure/wire"
	"chat-relay/observability"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/services"
	"chat-relay/sink"
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type harness struct {
	listener *bufconn.Listener
	registry *runtime.Registry
	tokens   *auth.TokenIssuer
}

func newHarness(t *testing.T) harness {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	store, err := repositories.NewMessageRepository(db, log, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	stats := observability.NewStats()
	registry := runtime.NewRegistry()
	manager := runtime.NewManager(log, registry, stats)
	router := runtime.NewRouter(log, store, registry, manager, stats, 0, false)
	manager.Route(router)
	tokens := auth.NewTokenIssuer("secret", time.Hour)

	s := server.NewGRPCServer(log, tokens, false, time.Minute)
	server.RegisterRelayServiceServer(s, server.NewRelayServer(log, manager,
		services.NewChatService(router, store, nil), 16, sink.DisconnectOnOverflow))

	listener := bufconn.Listen(1024 * 1024)
	go func() { _ = s.Serve(listener) }()
	t.Cleanup(s.Stop)

	return harness{listener: listener, registry: registry, tokens: tokens}
}

func (h harness) client(t *testing.T, token string) *client.RelayClient {
	t.Helper()
	c, err := client.NewRelayClient("passthrough:///bufnet", token,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return h.listener.DialContext(ctx)
		}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func (h harness) waitForBinding(t *testing.T, identity string) {
	t.Helper()
	require.Eventually(t, func() bool {
		_, ok := h.registry.Resolve(identity)
		return ok
	}, 2*time.Second, 10*time.Millisecond)
}

func recvMessage(t *testing.T, stream grpc.BidiStreamingClient[wire.Envelope, wire.Envelope]) wire.ReceiveMessage {
	t.Helper()
	envelope, err := stream.Recv()
	require.NoError(t, err)
	require.Equal(t, wire.EventReceiveMessage, envelope.Event)
	var payload wire.ReceiveMessage
	require.NoError(t, json.Unmarshal(envelope.Data, &payload))
	return payload
}

func TestRelayServer_Connect_Private_Message(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Given alice registered by envelope and bob by token
	aliceStream, err := h.client(t, "").Connect(ctx)
	req.NoError(err)
	register, err := wire.NewEnvelope(wire.EventRegisterUser, "alice")
	req.NoError(err)
	req.NoError(aliceStream.Send(&register))

	bobToken, err := h.tokens.Generate("bob")
	req.NoError(err)
	bob := h.client(t, bobToken)
	bobStream, err := bob.Connect(ctx)
	req.NoError(err)

	h.waitForBinding(t, "alice")
	h.waitForBinding(t, "bob")

	// When alice writes to bob
	send, err := wire.NewEnvelope(wire.EventSendMessage, wire.SendMessage{Sender: "alice", Receiver: "bob", Message: "hey", Type: "private"})
	req.NoError(err)
	req.NoError(aliceStream.Send(&send))

	// Then bob receives it and alice gets the echo
	req.Equal("hey", recvMessage(t, bobStream).Message)
	req.Equal("hey", recvMessage(t, aliceStream).Message)

	// And the conversation is in history
	history, err := bob.PrivateHistory(ctx, "bob", "alice")
	req.NoError(err)
	req.Len(history, 1)
	req.Equal("alice", history[0].Sender)
}

func TestRelayServer_Close_Releases_Binding(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())

	stream, err := h.client(t, "").Connect(ctx)
	req.NoError(err)
	register, err := wire.NewEnvelope(wire.EventRegisterUser, "alice")
	req.NoError(err)
	req.NoError(stream.Send(&register))
	h.waitForBinding(t, "alice")

	cancel()

	req.Eventually(func() bool {
		_, ok := h.registry.Resolve("alice")
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRelayServer_History_Errors(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	c := h.client(t, "")

	_, err := c.PrivateHistory(context.Background(), "alice", "")
	req.Equal(codes.InvalidArgument, status.Code(err))

	public, err := c.PublicHistory(context.Background())
	req.NoError(err)
	req.Empty(public)
}

func TestRelayServer_Rejects_Invalid_Token(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)

	_, err := h.client(t, "not-a-token").PublicHistory(context.Background())

	req.Equal(codes.Unauthenticated, status.Code(err))
}
