package workers

import (
	"chat-relay/observability"
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestHealthMonitoringWorker_Publishes_Snapshots(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	stats := observability.NewStats()
	stats.IncrConnectionsOpened()
	stats.IncrMessagesStored()

	reports := make(chan observability.Snapshot, 1)
	worker := NewHealthMonitoringWorker(log, stats, func() int { return 3 }, 10*time.Millisecond).WithReports(reports)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	// Then a snapshot is published on the first tick
	select {
	case snap := <-reports:
		req.Equal(uint64(1), snap.ActiveConnections)
		req.Equal(uint64(1), snap.MessagesStored)
		req.Equal(3, snap.OnlineIdentities)
	case <-time.After(time.Second):
		req.Fail("no snapshot published")
	}

	// When the context ends the worker returns cleanly
	cancel()
	req.NoError(<-done)
}

func TestHTTPServerWorker_Serves_Until_Canceled(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "pong")
	})
	var shutdownCalled atomic.Bool
	worker := NewHTTPServerWorker(log, "127.0.0.1:0", handler, time.Second).
		OnShutdown(func() { shutdownCalled.Store(true) })

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	req.NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.serve(ctx, listener) }()

	// Given a running server
	var resp *http.Response
	req.Eventually(func() bool {
		resp, err = http.Get("http://" + listener.Addr().String())
		return err == nil
	}, time.Second, 10*time.Millisecond)
	body, err := io.ReadAll(resp.Body)
	req.NoError(err)
	_ = resp.Body.Close()
	req.Equal("pong", string(body))

	// When the context ends
	cancel()

	// Then the server shuts down without error
	req.NoError(<-done)
	req.Eventually(shutdownCalled.Load, time.Second, 10*time.Millisecond)
}

func TestHTTPServerWorker_Fails_On_Busy_Address(t *testing.T) {
	req := require.New(t)
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	req.NoError(err)
	defer func() { _ = listener.Close() }()

	worker := NewHTTPServerWorker(slog.Default(), listener.Addr().String(), http.NotFoundHandler(), time.Second)

	req.Error(worker.Run(context.Background()))
}
