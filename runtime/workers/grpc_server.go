package workers

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
)

// GRPCServerWorker serves the relay gRPC service until its context ends.
type GRPCServerWorker struct {
	log     *slog.Logger
	address string
	server  *grpc.Server
}

func NewGRPCServerWorker(log *slog.Logger, address string, server *grpc.Server) *GRPCServerWorker {
	return &GRPCServerWorker{log: log, address: address, server: server}
}

func (w *GRPCServerWorker) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", w.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", w.address, err)
	}

	errChan := make(chan error, 1)
	go func() {
		w.log.Info("Starting gRPC server", "address", w.address, "at", time.Now().UTC())
		if err := w.server.Serve(listener); err != nil && !stderrors.Is(err, grpc.ErrServerStopped) {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
		close(errChan)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	// Open Connect streams end with the sessions, GracefulStop waits for them
	w.server.GracefulStop()
	w.log.Info("gRPC server stopped")
	return nil
}
