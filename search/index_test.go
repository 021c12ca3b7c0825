package search

import (
	"chat-relay/domain"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	writer, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close() })
	return NewIndex(writer, logs.GetLoggerFromLevel(slog.LevelDebug))
}

func TestIndex_Search_Finds_Public_Messages(t *testing.T) {
	req := require.New(t)
	index := newTestIndex(t)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	// Given two public messages and one private
	req.NoError(index.Index(domain.Message{ID: 1, Sender: "alice", Receiver: "all", Body: "the release is ready", Timestamp: at, Visibility: domain.Public}))
	req.NoError(index.Index(domain.Message{ID: 2, Sender: "bob", Receiver: "all", Body: "lunch anyone?", Timestamp: at, Visibility: domain.Public}))
	req.NoError(index.Index(domain.Message{ID: 3, Sender: "bob", Receiver: "alice", Body: "the release is late", Timestamp: at, Visibility: domain.Private}))

	// When searching a word
	results, err := index.Search(context.Background(), "release", 10)

	// Then only the public match is returned, fully rebuilt
	req.NoError(err)
	req.Len(results, 1)
	req.Equal(domain.Message{ID: 1, Sender: "alice", Receiver: "all", Body: "the release is ready", Timestamp: at, Visibility: domain.Public}, results[0])
}

func TestIndex_Search_Is_Case_Insensitive_And_Limited(t *testing.T) {
	req := require.New(t)
	index := newTestIndex(t)

	for i := uint64(1); i <= 5; i++ {
		req.NoError(index.Index(domain.Message{ID: i, Sender: "alice", Receiver: "all", Body: "Deploy done", Timestamp: time.Now(), Visibility: domain.Public}))
	}

	results, err := index.Search(context.Background(), "DEPLOY", 3)
	req.NoError(err)
	req.Len(results, 3)
}

func TestIndex_Search_Empty_Query(t *testing.T) {
	req := require.New(t)
	index := newTestIndex(t)

	results, err := index.Search(context.Background(), "   ", 10)
	req.NoError(err)
	req.Empty(results)
}

func TestIndex_Update_Replaces_Document(t *testing.T) {
	req := require.New(t)
	index := newTestIndex(t)

	req.NoError(index.Index(domain.Message{ID: 7, Sender: "alice", Receiver: "all", Body: "first draft", Timestamp: time.Now(), Visibility: domain.Public}))
	req.NoError(index.Index(domain.Message{ID: 7, Sender: "alice", Receiver: "all", Body: "second draft", Timestamp: time.Now(), Visibility: domain.Public}))

	results, err := index.Search(context.Background(), "draft", 10)
	req.NoError(err)
	req.Len(results, 1)
	req.Equal("second draft", results[0].Body)
}
