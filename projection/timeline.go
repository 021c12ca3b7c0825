// Package projection builds local timelines from received messages.
// Handles ordering and deduplication, never talks to the network.
package projection

import (
	"chat-relay/domain"
	"slices"
	"sync"

	"github.com/samber/lo"
)

// Timeline holds the messages seen by one identity, ordered by (timestamp, id).
// A message delivered twice, live and again through history, is kept once.
type Timeline struct {
	mu       sync.RWMutex
	Owner    string
	messages []domain.Message
	seen     map[uint64]struct{}
}

func NewTimeline(owner string) *Timeline {
	return &Timeline{
		Owner: owner,
		seen:  make(map[uint64]struct{}),
	}
}

// Consume inserts msg at its place. It returns false for an already known message.
func (t *Timeline) Consume(msg domain.Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.seen[msg.ID]; ok {
		return false
	}
	t.seen[msg.ID] = struct{}{}

	i, _ := slices.BinarySearchFunc(t.messages, msg, compare)
	t.messages = slices.Insert(t.messages, i, msg)
	return true
}

// ConsumeAll merges a history page and returns how many messages were new.
func (t *Timeline) ConsumeAll(messages []domain.Message) int {
	return lo.CountBy(messages, t.Consume)
}

func (t *Timeline) Messages() []domain.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.messages)
}

// Conversation returns the private messages exchanged between the owner and peer.
func (t *Timeline) Conversation(peer string) []domain.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return lo.Filter(t.messages, func(m domain.Message, _ int) bool {
		return m.Visibility == domain.Private &&
			(m.Sender == peer && m.Receiver == t.Owner || m.Sender == t.Owner && m.Receiver == peer)
	})
}

func compare(a, b domain.Message) int {
	if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
		return c
	}
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	default:
		return 0
	}
}
