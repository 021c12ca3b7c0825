package repositories

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const (
	sequenceKey       = "seq:message"
	sequenceBandwidth = 128
	publicPrefix      = "msg:public:"
	privatePrefix     = "msg:private:"
)

// MessageRepository is the durable append-only message log.
// Appends are funneled through a single writer so identifiers are committed in order.
type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
	seq           *badger.Sequence
	writeMu       sync.Mutex
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) (*MessageRepository, error) {
	seq, err := db.GetSequence([]byte(sequenceKey), sequenceBandwidth)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrStorage, err)
	}
	return &MessageRepository{db: db, log: log, limitMessages: limitMessages, seq: seq}, nil
}

// Append persists one message.
// The key is formatted as "{scope}{timestamp_padded}:{id_padded}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Break timestamp ties by insertion order thanks to the monotonic sequence id.
func (m *MessageRepository) Append(msg domain.Message) (domain.Message, error) {
	scope, err := scopePrefix(msg)
	if err != nil {
		return domain.Message{}, err
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	next, err := m.seq.Next()
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %w", errors.ErrStorage, err)
	}
	msg.ID = next + 1
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	key := fmt.Sprintf("%s%019d:%020d", scope, msg.Timestamp.UnixNano(), msg.ID)
	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), marshalMessage(msg))
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %w", errors.ErrStorage, err)
	}
	return msg, nil
}

func (m *MessageRepository) ListPublic() ([]domain.Message, error) {
	return m.scan([]byte(publicPrefix))
}

// ListPrivate returns the conversation between two identities in either direction.
// Both orders of arguments share the same key prefix.
func (m *MessageRepository) ListPrivate(identityA, identityB string) ([]domain.Message, error) {
	return m.scan([]byte(conversationPrefix(identityA, identityB)))
}

// Close releases the leased identifiers back to badger.
func (m *MessageRepository) Close() error {
	return m.seq.Release()
}

// scan reads a scope in ascending order. When a limit is configured the scope is
// read backwards from its newest key, then flipped back to ascending order.
func (m *MessageRepository) scan(prefix []byte) ([]domain.Message, error) {
	limited := m.limitMessages != nil && *m.limitMessages > 0
	var messages []domain.Message

	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		options.Reverse = limited
		it := txn.NewIterator(options)
		defer it.Close()

		seekKey := prefix
		if limited {
			seekKey = append(slices.Clone(prefix), 0xFF)
		}

		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if limited && len(messages) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d message reached", *m.limitMessages))
				break
			}
			err := it.Item().Value(func(value []byte) error {
				msg, err := unmarshalMessage(value)
				if err != nil {
					return err
				}
				messages = append(messages, msg)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrStorage, err)
	}

	if limited {
		slices.Reverse(messages)
	}
	return messages, nil
}

func scopePrefix(msg domain.Message) (string, error) {
	switch msg.Visibility {
	case domain.Public:
		return publicPrefix, nil
	case domain.Private:
		return conversationPrefix(msg.Sender, msg.Receiver), nil
	default:
		return "", fmt.Errorf("%w: unknown visibility %q", errors.ErrValidation, msg.Visibility)
	}
}

// conversationPrefix orders the pair so that (a, b) and (b, a) share one prefix.
// Both identities are length prefixed since identities may contain ':'.
func conversationPrefix(identityA, identityB string) string {
	if identityB < identityA {
		identityA, identityB = identityB, identityA
	}
	return fmt.Sprintf("%s%d:%s:%d:%s:", privatePrefix, len(identityA), identityA, len(identityB), identityB)
}
