package server

import (
	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/infrastructure/wire"
	"chat-relay/runtime"
	"chat-relay/services"
	"chat-relay/sink"
	"context"
	stderrors "errors"
	"io"
	"log/slog"

	"github.com/samber/lo"
	"google.golang.org/grpc"
	"google.golang.org/grpc/peer"
)

type RelayServer struct {
	log         *slog.Logger
	manager     *runtime.Manager
	chatService services.IChatService
	bufferSize  int
	policy      sink.OverflowPolicy
}

func NewRelayServer(log *slog.Logger, manager *runtime.Manager, chatService services.IChatService,
	bufferSize int, policy sink.OverflowPolicy) *RelayServer {
	return &RelayServer{
		log:         log,
		manager:     manager,
		chatService: chatService,
		bufferSize:  bufferSize,
		policy:      policy,
	}
}

func (s *RelayServer) PublicHistory(_ context.Context, _ *HistoryRequest) (*HistoryResponse, error) {
	messages, err := s.chatService.PublicHistory()
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return toHistoryResponse(messages), nil
}

func (s *RelayServer) PrivateHistory(_ context.Context, req *HistoryRequest) (*HistoryResponse, error) {
	messages, err := s.chatService.PrivateHistory(req.User1, req.User2)
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return toHistoryResponse(messages), nil
}

func toHistoryResponse(messages []domain.Message) *HistoryResponse {
	return &HistoryResponse{Messages: lo.Map(messages, func(m domain.Message, _ int) wire.ReceiveMessage {
		return wire.ToReceiveMessage(m)
	})}
}

// Connect carries the realtime channel over a bidirectional stream, with the same
// envelopes as the websocket gateway. A stream opened with a valid token is
// registered under the token identity right away.
// It blocks until the client leaves, the stream breaks or the session overflows.
func (s *RelayServer) Connect(stream grpc.BidiStreamingServer[wire.Envelope, wire.Envelope]) error {
	ctx := stream.Context()
	remote := "unknown"
	if p, ok := peer.FromContext(ctx); ok {
		remote = p.Addr.String()
	}

	session := sink.NewSession(s.log, remote, s.bufferSize, s.policy)
	s.manager.Open(session)
	defer s.manager.Close(session)

	if username, ok := auth.UsernameFromContext(ctx); ok {
		if err := s.manager.Register(session, username); err != nil {
			return errors.MapToGRPCError(err)
		}
	}

	recvErr := make(chan error, 1)
	go func() { recvErr <- s.receive(ctx, stream, session) }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-recvErr:
			if stderrors.Is(err, io.EOF) {
				return nil
			}
			return err
		case <-session.Done():
			return errors.MapToGRPCError(errors.ErrSessionClosed)
		case msg := <-session.Outbound():
			envelope, err := wire.NewEnvelope(wire.EventReceiveMessage, wire.ToReceiveMessage(msg))
			if err != nil {
				s.log.Error("Unable to encode message", "id", msg.ID, "error", err)
				continue
			}
			if err := stream.Send(&envelope); err != nil {
				s.log.Error("failed to push message to stream", "session", session.ID(), "error", err)
				return err
			}
		}
	}
}

// receive applies inbound envelopes until the client half closes.
// Invalid events are logged and dropped, like on the websocket gateway.
func (s *RelayServer) receive(ctx context.Context, stream grpc.BidiStreamingServer[wire.Envelope, wire.Envelope], session *sink.Session) error {
	for {
		envelope, err := stream.Recv()
		if err != nil {
			return err
		}
		inbound, err := wire.DecodeEnvelope(*envelope)
		if err != nil {
			s.log.Debug("Envelope dropped", "session", session.ID(), "error", err)
			continue
		}
		switch inbound.Event {
		case wire.EventRegisterUser:
			if err := s.manager.Register(session, inbound.Identity); err != nil {
				s.log.Warn("Registration dropped", "session", session.ID(), "error", err)
			}
		case wire.EventSendMessage:
			if _, err := s.manager.Send(ctx, session, inbound.Command); err != nil {
				s.log.Warn("Message dropped", "session", session.ID(), "sender", inbound.Command.Sender, "error", err)
			}
		}
	}
}
