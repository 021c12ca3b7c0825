package sink

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// OverflowPolicy decides what happens when a session's outbound buffer is full.
type OverflowPolicy string

const (
	DropOnOverflow       OverflowPolicy = "drop"
	DisconnectOnOverflow OverflowPolicy = "disconnect"
)

func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch p := OverflowPolicy(s); p {
	case DropOnOverflow, DisconnectOnOverflow:
		return p, nil
	case "":
		return DisconnectOnOverflow, nil
	default:
		return "", fmt.Errorf("unknown overflow policy %q", s)
	}
}

// Session is the handle of one live connection.
// The router pushes into a bounded queue, the transport drains it from its own
// writer goroutine, so a slow client never stalls a dispatch.
type Session struct {
	id       contract.HandleID
	remote   string
	outbound chan domain.Message
	done     chan struct{}
	once     sync.Once
	policy   OverflowPolicy
	dropped  atomic.Uint64
	log      *slog.Logger
}

func NewSession(log *slog.Logger, remote string, bufferSize int, policy OverflowPolicy) *Session {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &Session{
		id:       contract.HandleID(uuid.NewString()),
		remote:   remote,
		outbound: make(chan domain.Message, bufferSize),
		done:     make(chan struct{}),
		policy:   policy,
		log:      log,
	}
}

func (s *Session) ID() contract.HandleID { return s.id }

func (s *Session) Remote() string { return s.remote }

// Outbound is drained by the transport writer.
func (s *Session) Outbound() <-chan domain.Message { return s.outbound }

// Done is closed once the session is closed.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) Dropped() uint64 { return s.dropped.Load() }

func (s *Session) IsClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Push enqueues a message without blocking.
// It returns false when the session is closed or the buffer overflowed.
func (s *Session) Push(msg domain.Message) bool {
	if s.IsClosed() {
		return false
	}
	select {
	case s.outbound <- msg:
		return true
	default:
		s.dropped.Add(1)
		if s.policy == DisconnectOnOverflow {
			s.log.Warn("Outbound buffer full, closing session", "session", s.id, "remote", s.remote)
			s.Close()
		} else {
			s.log.Debug("Outbound buffer full, message dropped", "session", s.id, "message_id", msg.ID)
		}
		return false
	}
}

// Close marks the session closed and releases the buffered messages.
// It returns true only for the call that actually closed the session.
func (s *Session) Close() bool {
	closed := false
	s.once.Do(func() {
		close(s.done)
		closed = true
		for {
			select {
			case <-s.outbound:
			default:
				return
			}
		}
	})
	return closed
}
