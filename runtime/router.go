package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/moderation"
	"chat-relay/observability"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// Router persists a message, then pushes it to the connections that must see it.
// Persistence always precedes delivery: a failed append never reaches a connection.
type Router struct {
	log                   *slog.Logger
	validate              *validator.Validate
	store                 contract.IMessageStore
	registry              contract.IPresenceRegistry
	connections           contract.IConnectionSet
	stats                 *observability.Stats
	index                 contract.ISearchIndex
	moderator             *moderation.Moderator
	maxContentLength      int
	enforceSenderIdentity bool
}

func NewRouter(log *slog.Logger,
	store contract.IMessageStore,
	registry contract.IPresenceRegistry,
	connections contract.IConnectionSet,
	stats *observability.Stats,
	maxContentLength int,
	enforceSenderIdentity bool) *Router {
	return &Router{
		log:                   log,
		validate:              validator.New(),
		store:                 store,
		registry:              registry,
		connections:           connections,
		stats:                 stats,
		maxContentLength:      maxContentLength,
		enforceSenderIdentity: enforceSenderIdentity,
	}
}

// WithIndex makes public messages searchable once stored.
func (r *Router) WithIndex(index contract.ISearchIndex) *Router {
	r.index = index
	return r
}

// WithModerator censors bodies before they are stored.
func (r *Router) WithModerator(moderator *moderation.Moderator) *Router {
	r.moderator = moderator
	return r
}

// Dispatch runs validate, persist, deliver for one message.
// origin is the connection that sent it, nil when the message comes from the REST surface.
func (r *Router) Dispatch(ctx context.Context, cmd domain.SendMessageCommand, origin contract.Connection) (domain.DispatchResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.DispatchResult{}, err
	}
	if err := r.check(cmd, origin); err != nil {
		r.stats.IncrRejected()
		return domain.DispatchResult{}, err
	}

	msg := cmd.ToMessage()
	if r.moderator != nil {
		msg.Body = r.moderator.Sanitize(msg.Sender, msg.Body)
	}

	stored, err := r.store.Append(msg)
	if err != nil {
		r.stats.IncrStorageFailures()
		if !stderrors.Is(err, errors.ErrStorage) {
			err = fmt.Errorf("%w: %w", errors.ErrStorage, err)
		}
		return domain.DispatchResult{}, err
	}
	r.stats.IncrMessagesStored()

	var result domain.DispatchResult
	switch stored.Visibility {
	case domain.Public:
		result = r.broadcast(stored)
		r.indexPublic(stored)
	case domain.Private:
		result = r.direct(stored, origin)
	}
	r.stats.AddDeliveries(result.Delivered)
	return result, nil
}

func (r *Router) check(cmd domain.SendMessageCommand, origin contract.Connection) error {
	if err := r.validate.Struct(cmd); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrValidation, err)
	}
	if r.maxContentLength > 0 && utf8.RuneCountInString(cmd.Body) > r.maxContentLength {
		return fmt.Errorf("%w: message longer than %d characters", errors.ErrValidation, r.maxContentLength)
	}
	if cmd.Visibility == domain.Private && domain.IsBroadcastReceiver(cmd.Receiver) {
		return fmt.Errorf("%w: private message needs a receiver", errors.ErrValidation)
	}
	if r.enforceSenderIdentity && origin != nil {
		identity, ok := r.connections.IdentityOf(origin.ID())
		if !ok || identity != cmd.Sender {
			return fmt.Errorf("%w: %q", errors.ErrImpersonation, cmd.Sender)
		}
	}
	return nil
}

// broadcast pushes to every live connection, registered or not.
func (r *Router) broadcast(msg domain.Message) domain.DispatchResult {
	result := domain.DispatchResult{Message: msg}
	for _, conn := range r.connections.Connections() {
		if conn.Push(msg) {
			result.Delivered++
		}
	}
	r.log.Debug("Public message dispatched", "id", msg.ID, "sender", msg.Sender, "delivered", result.Delivered)
	return result
}

// direct pushes to the receiver when it is online and echoes to the origin.
// Both targets collapse into one push when they are the same connection.
func (r *Router) direct(msg domain.Message, origin contract.Connection) domain.DispatchResult {
	result := domain.DispatchResult{Message: msg}

	var receiver contract.Connection
	if handle, ok := r.registry.Resolve(msg.Receiver); ok {
		if conn, live := r.connections.Lookup(handle); live {
			receiver = conn
		}
	}

	if receiver == nil {
		result.RoutingMiss = true
		r.stats.IncrRoutingMisses()
		r.log.Debug("Receiver offline, message kept for history", "id", msg.ID, "receiver", msg.Receiver)
	} else if receiver.Push(msg) {
		result.Delivered++
	}

	if origin != nil && (receiver == nil || origin.ID() != receiver.ID()) {
		if origin.Push(msg) {
			result.Delivered++
		}
	}
	return result
}

func (r *Router) indexPublic(msg domain.Message) {
	if r.index == nil {
		return
	}
	if err := r.index.Index(msg); err != nil {
		r.log.Warn("Unable to index message", "id", msg.ID, "error", err)
	}
}
