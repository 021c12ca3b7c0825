package client

import (
	"chat-relay/domain"
	"chat-relay/infrastructure/ws"
	"chat-relay/observability"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/sink"
	"context"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func startRelay(t *testing.T) (string, *runtime.Registry) {
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
	manager.Route(runtime.NewRouter(log, store, registry, manager, stats, 0, false))

	server := httptest.NewServer(ws.NewGateway(log, manager, nil, 16, sink.DisconnectOnOverflow, 5*time.Second))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http"), registry
}

func dial(t *testing.T, url, identity string, registry *runtime.Registry) *Client {
	t.Helper()
	c, err := Dial(context.Background(), logs.GetLoggerFromLevel(slog.LevelDebug), url, DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.Register(identity))
	require.Eventually(t, func() bool {
		_, ok := registry.Resolve(identity)
		return ok
	}, 2*time.Second, 10*time.Millisecond)
	return c
}

func next(t *testing.T, c *Client) domain.Message {
	t.Helper()
	select {
	case msg, ok := <-c.Messages():
		require.True(t, ok, "connection ended")
		return msg
	case <-time.After(2 * time.Second):
		require.FailNow(t, "no message received")
		return domain.Message{}
	}
}

func TestClient_Private_Exchange(t *testing.T) {
	req := require.New(t)
	url, registry := startRelay(t)
	alice := dial(t, url, "alice", registry)
	bob := dial(t, url, "bob", registry)

	// When alice writes privately to bob
	req.NoError(alice.SendPrivate("bob", "hey bob"))

	// Then bob receives it and alice gets the echo
	received := next(t, bob)
	req.Equal("alice", received.Sender)
	req.Equal("bob", received.Receiver)
	req.Equal(domain.Private, received.Visibility)
	req.NotZero(received.ID)
	req.Equal(received.ID, next(t, alice).ID)
}

func TestClient_Public_Broadcast(t *testing.T) {
	req := require.New(t)
	url, registry := startRelay(t)
	alice := dial(t, url, "alice", registry)
	bob := dial(t, url, "bob", registry)

	req.NoError(bob.SendPublic("hello everyone"))

	req.Equal("hello everyone", next(t, alice).Body)
	req.Equal(domain.BroadcastReceiver, next(t, bob).Receiver)
}

func TestClient_Close_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	url, registry := startRelay(t)
	alice := dial(t, url, "alice", registry)

	req.NoError(alice.Close())
	_ = alice.Close()

	<-alice.Done()
	req.NoError(alice.Err())
	req.Eventually(func() bool {
		_, ok := registry.Resolve("alice")
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDial_Gives_Up_After_Retries(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	_, err := Dial(ctx, slog.Default(), "ws://127.0.0.1:1/ws", Options{MaxRetries: 5})

	req.Error(err)
}
