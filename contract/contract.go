//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/domain"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// HandleID identifies one live connection. The presence registry only keeps ids,
// the connection itself stays owned by the lifecycle manager.
type HandleID string

// Connection is the push side of a live session.
// Push never blocks and reports whether the message was queued.
type Connection interface {
	ID() HandleID
	Push(msg domain.Message) bool
}

type IPresenceRegistry interface {
	Bind(identity string, handle HandleID)
	UnbindIfCurrent(identity string, handle HandleID) bool
	Resolve(identity string) (HandleID, bool)
	Identities() []string
}

// IConnectionSet exposes the live connections known to the lifecycle manager.
// IdentityOf returns the identity a connection registered, if any.
type IConnectionSet interface {
	Lookup(id HandleID) (Connection, bool)
	Connections() []Connection
	IdentityOf(id HandleID) (string, bool)
}

type IMessageStore interface {
	Append(msg domain.Message) (domain.Message, error)
	ListPublic() ([]domain.Message, error)
	ListPrivate(identityA, identityB string) ([]domain.Message, error)
}

type ISearchIndex interface {
	Index(msg domain.Message) error
	Search(ctx context.Context, query string, limit int) ([]domain.Message, error)
}

type IRouter interface {
	Dispatch(ctx context.Context, cmd domain.SendMessageCommand, origin Connection) (domain.DispatchResult, error)
}
