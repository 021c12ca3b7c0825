package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/observability"
	"chat-relay/sink"
	"context"
	"log/slog"
	"sync"

	"github.com/samber/lo"
)

type connectionEntry struct {
	session  *sink.Session
	state    domain.ConnectionState
	identity string
}

// Manager owns the live sessions and drives their Connected -> Registered -> Closed
// lifecycle. It is the connection set the router pushes through.
type Manager struct {
	mu       sync.RWMutex
	log      *slog.Logger
	registry contract.IPresenceRegistry
	stats    *observability.Stats
	router   contract.IRouter
	entries  map[contract.HandleID]*connectionEntry
	closing  bool
}

func NewManager(log *slog.Logger, registry contract.IPresenceRegistry, stats *observability.Stats) *Manager {
	return &Manager{
		log:      log,
		registry: registry,
		stats:    stats,
		entries:  make(map[contract.HandleID]*connectionEntry),
	}
}

// Route sets the router used by Send. It must be called before serving connections.
func (m *Manager) Route(router contract.IRouter) *Manager {
	m.router = router
	return m
}

// Open admits a freshly accepted session in the Connected state.
// Once Shutdown started, sessions are closed on arrival.
func (m *Manager) Open(session *sink.Session) {
	m.mu.Lock()
	if m.closing {
		m.mu.Unlock()
		session.Close()
		return
	}
	m.entries[session.ID()] = &connectionEntry{session: session, state: domain.Connected}
	m.mu.Unlock()

	m.stats.IncrConnectionsOpened()
	m.log.Debug("Connection opened", "session", session.ID(), "remote", session.Remote())
}

// Register binds identity to the session. A session carries one identity at a time:
// announcing another one releases the previous binding if it is still ours.
func (m *Manager) Register(session *sink.Session, identity string) error {
	if identity == "" {
		return errors.ErrValidation
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[session.ID()]
	if !ok || entry.state == domain.Closed {
		return errors.ErrSessionClosed
	}
	if entry.identity != "" && entry.identity != identity {
		m.registry.UnbindIfCurrent(entry.identity, session.ID())
	}
	entry.identity = identity
	entry.state = domain.Registered
	m.registry.Bind(identity, session.ID())

	m.log.Info("Identity registered", "identity", identity, "session", session.ID())
	return nil
}

// Send forwards a message to the router with the session as origin.
func (m *Manager) Send(ctx context.Context, session *sink.Session, cmd domain.SendMessageCommand) (domain.DispatchResult, error) {
	if m.State(session.ID()) == domain.Closed {
		return domain.DispatchResult{}, errors.ErrSessionClosed
	}
	return m.router.Dispatch(ctx, cmd, session)
}

// Close is idempotent. The first call moves the session to Closed, releases its
// presence binding when still current and drops its queued messages.
func (m *Manager) Close(session *sink.Session) {
	m.mu.Lock()
	entry, ok := m.entries[session.ID()]
	if ok {
		delete(m.entries, session.ID())
		entry.state = domain.Closed
	}
	m.mu.Unlock()

	if !ok {
		session.Close()
		return
	}
	if entry.identity != "" {
		m.registry.UnbindIfCurrent(entry.identity, session.ID())
	}
	session.Close()

	m.stats.IncrConnectionsClosed()
	m.log.Debug("Connection closed", "session", session.ID(), "identity", entry.identity)
}

// State reports Closed for unknown sessions.
func (m *Manager) State(id contract.HandleID) domain.ConnectionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[id]
	if !ok {
		return domain.Closed
	}
	return entry.state
}

func (m *Manager) IdentityOf(id contract.HandleID) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[id]
	if !ok || entry.identity == "" {
		return "", false
	}
	return entry.identity, true
}

// Lookup returns a live session. Sessions closed by an overflow are not live anymore.
func (m *Manager) Lookup(id contract.HandleID) (contract.Connection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[id]
	if !ok || entry.session.IsClosed() {
		return nil, false
	}
	return entry.session, true
}

func (m *Manager) Connections() []contract.Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	live := lo.Filter(lo.Values(m.entries), func(e *connectionEntry, _ int) bool {
		return !e.session.IsClosed()
	})
	return lo.Map(live, func(e *connectionEntry, _ int) contract.Connection {
		return e.session
	})
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Shutdown closes every session and refuses new ones, used when the server stops.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.closing = true
	sessions := lo.Map(lo.Values(m.entries), func(e *connectionEntry, _ int) *sink.Session {
		return e.session
	})
	m.mu.Unlock()

	for _, session := range sessions {
		m.Close(session)
	}
	m.log.Info("All connections closed", "count", len(sessions))
}
