package services

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"context"
	"fmt"
	"time"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

type IChatService interface {
	PostPublic(ctx context.Context, sender, body string) (domain.Message, error)
	PublicHistory() ([]domain.Message, error)
	PrivateHistory(identityA, identityB string) ([]domain.Message, error)
	Search(ctx context.Context, query string, limit int) ([]domain.Message, error)
}

// ChatService is the request/response side of the relay: history queries and
// the REST send, which goes through the same router as the realtime channel.
type ChatService struct {
	router contract.IRouter
	store  contract.IMessageStore
	index  contract.ISearchIndex
}

func NewChatService(router contract.IRouter, store contract.IMessageStore, index contract.ISearchIndex) *ChatService {
	return &ChatService{router: router, store: store, index: index}
}

func (s *ChatService) PostPublic(ctx context.Context, sender, body string) (domain.Message, error) {
	result, err := s.router.Dispatch(ctx, domain.SendMessageCommand{
		Sender:     sender,
		Receiver:   domain.BroadcastReceiver,
		Body:       body,
		Visibility: domain.Public,
		Timestamp:  time.Now().UTC(),
	}, nil)
	if err != nil {
		return domain.Message{}, err
	}
	return result.Message, nil
}

func (s *ChatService) PublicHistory() ([]domain.Message, error) {
	return s.store.ListPublic()
}

func (s *ChatService) PrivateHistory(identityA, identityB string) ([]domain.Message, error) {
	if identityA == "" || identityB == "" {
		return nil, fmt.Errorf("%w: two usernames required", errors.ErrValidation)
	}
	return s.store.ListPrivate(identityA, identityB)
}

// Search clamps limit to [1, 100], 20 when unset.
func (s *ChatService) Search(ctx context.Context, query string, limit int) ([]domain.Message, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", errors.ErrValidation)
	}
	if s.index == nil {
		return nil, nil
	}
	switch {
	case limit <= 0:
		limit = defaultSearchLimit
	case limit > maxSearchLimit:
		limit = maxSearchLimit
	}
	return s.index.Search(ctx, query, limit)
}
