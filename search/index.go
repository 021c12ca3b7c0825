package search

import (
	"chat-relay/domain"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/blugelabs/bluge"
)

const (
	fieldSender    = "sender"
	fieldReceiver  = "receiver"
	fieldBody      = "body"
	fieldTimestamp = "timestamp"
	fieldID        = "_id"
)

// Index is the full-text index of public messages.
// The message store stays authoritative: the index can be rebuilt from it at any time.
type Index struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewIndex(writer *bluge.Writer, log *slog.Logger) *Index {
	return &Index{writer: writer, log: log}
}

// Open creates a writer on a directory, or in memory when path is empty.
func Open(path string) (*bluge.Writer, error) {
	config := bluge.InMemoryOnlyConfig()
	if path != "" {
		config = bluge.DefaultConfig(path)
	}
	writer, err := bluge.OpenWriter(config)
	if err != nil {
		return nil, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	return writer, nil
}

// Index adds or replaces one message. Only public messages are indexed.
func (i *Index) Index(msg domain.Message) error {
	if msg.Visibility != domain.Public {
		return nil
	}
	doc := bluge.NewDocument(documentID(msg.ID)).
		AddField(bluge.NewKeywordField(fieldSender, msg.Sender).StoreValue()).
		AddField(bluge.NewKeywordField(fieldReceiver, msg.Receiver).StoreValue()).
		AddField(bluge.NewTextField(fieldBody, msg.Body).StoreValue()).
		AddField(bluge.NewDateTimeField(fieldTimestamp, msg.Timestamp).StoreValue())

	return i.writer.Update(doc.ID(), doc)
}

// Search returns at most limit public messages matching query, best match first.
func (i *Index) Search(ctx context.Context, query string, limit int) ([]domain.Message, error) {
	query = strings.TrimSpace(query)
	if query == "" || limit <= 0 {
		return nil, nil
	}

	reader, err := i.writer.Reader()
	if err != nil {
		return nil, fmt.Errorf("failed to open bluge reader: %w", err)
	}
	defer func() { _ = reader.Close() }()

	request := bluge.NewTopNSearch(limit, bluge.NewMatchQuery(query).SetField(fieldBody))
	matches, err := reader.Search(ctx, request)
	if err != nil {
		return nil, err
	}

	var messages []domain.Message
	match, err := matches.Next()
	for err == nil && match != nil {
		msg := domain.Message{Visibility: domain.Public}
		var visitErr error
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case fieldID:
				msg.ID, visitErr = strconv.ParseUint(string(value), 10, 64)
			case fieldSender:
				msg.Sender = string(value)
			case fieldReceiver:
				msg.Receiver = string(value)
			case fieldBody:
				msg.Body = string(value)
			case fieldTimestamp:
				ts, decodeErr := bluge.DecodeDateTime(value)
				if decodeErr != nil {
					visitErr = decodeErr
					break
				}
				msg.Timestamp = ts.UTC()
			}
			return visitErr == nil
		})
		if err == nil {
			err = visitErr
		}
		if err != nil {
			break
		}
		messages = append(messages, msg)
		match, err = matches.Next()
	}
	if err != nil {
		return nil, err
	}

	i.log.Debug("Search done", "query", query, "hits", len(messages))
	return messages, nil
}

func documentID(id uint64) string {
	return strconv.FormatUint(id, 10)
}
