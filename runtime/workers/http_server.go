package workers

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// HTTPServerWorker serves the REST surface and the websocket upgrade until its context ends.
type HTTPServerWorker struct {
	log             *slog.Logger
	address         string
	handler         http.Handler
	shutdownTimeout time.Duration
	onShutdown      func()
}

func NewHTTPServerWorker(log *slog.Logger, address string, handler http.Handler, shutdownTimeout time.Duration) *HTTPServerWorker {
	return &HTTPServerWorker{log: log, address: address, handler: handler, shutdownTimeout: shutdownTimeout}
}

// OnShutdown registers fn to run once the listener stopped accepting.
// Hijacked websocket connections are not tracked by http.Server, fn is where they get closed.
func (w *HTTPServerWorker) OnShutdown(fn func()) *HTTPServerWorker {
	w.onShutdown = fn
	return w
}

func (w *HTTPServerWorker) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", w.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", w.address, err)
	}
	return w.serve(ctx, listener)
}

func (w *HTTPServerWorker) serve(ctx context.Context, listener net.Listener) error {
	server := &http.Server{
		Handler:           w.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if w.onShutdown != nil {
		server.RegisterOnShutdown(w.onShutdown)
	}

	errChan := make(chan error, 1)
	go func() {
		w.log.Info("Starting HTTP server", "address", listener.Addr().String(), "at", time.Now().UTC())
		if err := server.Serve(listener); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
		close(errChan)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), w.shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		w.log.Warn("HTTP server shutdown incomplete", "error", err)
	}
	w.log.Info("HTTP server stopped")
	return nil
}
