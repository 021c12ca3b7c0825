package repositories

import (
	"chat-relay/domain"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestRepository(t *testing.T, limit *int) *MessageRepository {
	t.Helper()
	repository, err := NewMessageRepository(openTestDB(t), slog.Default(), limit)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repository.Close() })
	return repository
}

func Test_Append_Assigns_ID_And_Timestamp(t *testing.T) {
	req := require.New(t)
	repository := newTestRepository(t, nil)

	// Given a public message without id nor timestamp
	msg := domain.Message{
		Sender:     "alice",
		Receiver:   domain.BroadcastReceiver,
		Body:       "hi",
		Visibility: domain.Public,
	}

	// When it is appended
	stored, err := repository.Append(msg)
	req.NoError(err)

	// Then the store filled the server side fields
	req.NotZero(stored.ID)
	req.False(stored.Timestamp.IsZero())

	// And the record reads back identical
	fetched, err := repository.ListPublic()
	req.NoError(err)
	req.Equal([]domain.Message{stored}, fetched)
}

func Test_Append_Keeps_Caller_Timestamp(t *testing.T) {
	req := require.New(t)
	repository := newTestRepository(t, nil)
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	stored, err := repository.Append(domain.Message{
		Sender: "alice", Receiver: "bob", Body: "hey",
		Timestamp: at, Visibility: domain.Private,
	})
	req.NoError(err)
	req.Equal(at, stored.Timestamp)

	fetched, err := repository.ListPrivate("alice", "bob")
	req.NoError(err)
	req.Len(fetched, 1)
	req.Equal(domain.Message{
		ID: stored.ID, Sender: "alice", Receiver: "bob", Body: "hey",
		Timestamp: at, Visibility: domain.Private,
	}, fetched[0])
}

func Test_Append_Identifiers_Are_Monotonic(t *testing.T) {
	req := require.New(t)
	repository := newTestRepository(t, nil)

	var previous uint64
	for i := 0; i < 300; i++ {
		stored, err := repository.Append(domain.Message{
			Sender: "alice", Receiver: domain.BroadcastReceiver,
			Body: fmt.Sprintf("message %d", i), Visibility: domain.Public,
		})
		req.NoError(err)
		req.Greater(stored.ID, previous)
		previous = stored.ID
	}
}

func Test_Append_Rejects_Unknown_Visibility(t *testing.T) {
	req := require.New(t)
	repository := newTestRepository(t, nil)

	_, err := repository.Append(domain.Message{Sender: "alice", Body: "hi", Visibility: "secret"})
	req.Error(err)

	fetched, err := repository.ListPublic()
	req.NoError(err)
	req.Empty(fetched)
}

func Test_ListPublic_Ascending_Order(t *testing.T) {
	req := require.New(t)
	repository := newTestRepository(t, nil)
	at := time.Now().UTC()

	// Given messages inserted out of chronological order
	offsets := []time.Duration{2 * time.Minute, 0, time.Minute}
	for i, offset := range offsets {
		_, err := repository.Append(domain.Message{
			Sender: "alice", Receiver: domain.BroadcastReceiver,
			Body: fmt.Sprintf("%d", i), Timestamp: at.Add(offset), Visibility: domain.Public,
		})
		req.NoError(err)
	}

	// When the public history is read
	fetched, err := repository.ListPublic()
	req.NoError(err)

	// Then it is sorted by timestamp
	req.Equal([]string{"1", "2", "0"}, lo.Map(fetched, func(m domain.Message, _ int) string { return m.Body }))
}

func Test_ListPublic_Ties_Broken_By_Insertion(t *testing.T) {
	req := require.New(t)
	repository := newTestRepository(t, nil)
	at := time.Now().UTC()

	for _, body := range []string{"first", "second", "third"} {
		_, err := repository.Append(domain.Message{
			Sender: "alice", Receiver: domain.BroadcastReceiver,
			Body: body, Timestamp: at, Visibility: domain.Public,
		})
		req.NoError(err)
	}

	fetched, err := repository.ListPublic()
	req.NoError(err)
	req.Equal([]string{"first", "second", "third"}, lo.Map(fetched, func(m domain.Message, _ int) string { return m.Body }))
}

func Test_ListPrivate_Is_Symmetric(t *testing.T) {
	req := require.New(t)
	repository := newTestRepository(t, nil)
	at := time.Now().UTC()

	// Given a conversation in both directions and unrelated traffic
	messages := []domain.Message{
		{Sender: "alice", Receiver: "bob", Body: "hey", Timestamp: at, Visibility: domain.Private},
		{Sender: "bob", Receiver: "alice", Body: "hello", Timestamp: at.Add(time.Second), Visibility: domain.Private},
		{Sender: "alice", Receiver: "carol", Body: "psst", Timestamp: at.Add(2 * time.Second), Visibility: domain.Private},
		{Sender: "alice", Receiver: domain.BroadcastReceiver, Body: "all", Timestamp: at, Visibility: domain.Public},
	}
	for _, msg := range messages {
		_, err := repository.Append(msg)
		req.NoError(err)
	}

	// When both orders are queried
	ab, err := repository.ListPrivate("alice", "bob")
	req.NoError(err)
	ba, err := repository.ListPrivate("bob", "alice")
	req.NoError(err)

	// Then they are equal and contain only the conversation
	req.Equal(ab, ba)
	req.Equal([]string{"hey", "hello"}, lo.Map(ab, func(m domain.Message, _ int) string { return m.Body }))
}

func Test_ListPrivate_Prefix_Does_Not_Collide(t *testing.T) {
	req := require.New(t)
	repository := newTestRepository(t, nil)

	_, err := repository.Append(domain.Message{Sender: "ab", Receiver: "c", Body: "one", Visibility: domain.Private})
	req.NoError(err)
	_, err = repository.Append(domain.Message{Sender: "a", Receiver: "bc", Body: "two", Visibility: domain.Private})
	req.NoError(err)

	fetched, err := repository.ListPrivate("a", "bc")
	req.NoError(err)
	req.Len(fetched, 1)
	req.Equal("two", fetched[0].Body)
}

func Test_ListPrivate_Does_Not_Leak_Extended_Identity(t *testing.T) {
	req := require.New(t)
	repository := newTestRepository(t, nil)

	// Given alice writes to bob and to an identity extending bob's name
	_, err := repository.Append(domain.Message{Sender: "alice", Receiver: "bob", Body: "for bob", Visibility: domain.Private})
	req.NoError(err)
	_, err = repository.Append(domain.Message{Sender: "alice", Receiver: "bob:1", Body: "for bob:1", Visibility: domain.Private})
	req.NoError(err)
	_, err = repository.Append(domain.Message{Sender: "bob:1", Receiver: "alice", Body: "from bob:1", Visibility: domain.Private})
	req.NoError(err)

	// When each conversation is read
	withBob, err := repository.ListPrivate("alice", "bob")
	req.NoError(err)
	withBobOne, err := repository.ListPrivate("bob:1", "alice")
	req.NoError(err)

	// Then neither shows the other's messages
	req.Equal([]string{"for bob"}, lo.Map(withBob, func(m domain.Message, _ int) string { return m.Body }))
	req.Equal([]string{"for bob:1", "from bob:1"}, lo.Map(withBobOne, func(m domain.Message, _ int) string { return m.Body }))
}

func Test_ListPublic_With_Limit_Keeps_Most_Recent(t *testing.T) {
	req := require.New(t)
	repository := newTestRepository(t, lo.ToPtr(2))
	at := time.Now().UTC()

	for i, author := range []string{"Alice", "Bob", "Clara"} {
		_, err := repository.Append(domain.Message{
			Sender: author, Receiver: domain.BroadcastReceiver, Body: "this message will self destruct in 5 seconds",
			Timestamp: at.Add(time.Duration(i) * time.Minute), Visibility: domain.Public,
		})
		req.NoError(err)
	}

	fetched, err := repository.ListPublic()
	req.NoError(err)
	req.Equal([]string{"Bob", "Clara"}, lo.Map(fetched, func(m domain.Message, _ int) string { return m.Sender }))
}

func Test_Concurrent_Appends(t *testing.T) {
	req := require.New(t)
	repository := newTestRepository(t, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repository.Append(domain.Message{
				Sender: fmt.Sprintf("user-%d", i), Receiver: domain.BroadcastReceiver,
				Body: "hi", Visibility: domain.Public,
			})
			req.NoError(err)
		}(i)
	}
	wg.Wait()

	fetched, err := repository.ListPublic()
	req.NoError(err)
	req.Len(fetched, 20)
	ids := lo.Uniq(lo.Map(fetched, func(m domain.Message, _ int) uint64 { return m.ID }))
	req.Len(ids, 20)
}
