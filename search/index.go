// Package search maintains a full-text index over message text so a user can
// find messages inside a conversation. The index is a projection of the
// store, rebuilt on append; losing it loses search, never messages.
package search

import (
	"context"
	"log/slog"

	"github.com/blugelabs/bluge"

	"marketchat/domain"
)

type MessageIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func Open(path string, log *slog.Logger) (*MessageIndex, error) {
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(path))
	if err != nil {
		return nil, err
	}
	return &MessageIndex{writer: writer, log: log}, nil
}

func (i *MessageIndex) Close() error {
	return i.writer.Close()
}

// Index adds or replaces the document for a message. Image-only messages are
// skipped, there is nothing to search in them.
func (i *MessageIndex) Index(msg domain.Message) error {
	if msg.Text == "" {
		return nil
	}
	doc := bluge.NewDocument(msg.ID).
		AddField(bluge.NewTextField("text", msg.Text)).
		AddField(bluge.NewKeywordField("conversation", msg.ConversationID)).
		AddField(bluge.NewKeywordField("sender", msg.Sender)).
		AddField(bluge.NewDateTimeField("createdAt", msg.CreatedAt))
	return i.writer.Update(doc.ID(), doc)
}

type Hit struct {
	MessageID string
	Score     float64
}

// Search runs a match query over message text, restricted to one
// conversation, best matches first.
func (i *MessageIndex) Search(ctx context.Context, convID, terms string, limit int) ([]Hit, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := reader.Close(); cerr != nil {
			i.log.Warn("closing index reader", "error", cerr)
		}
	}()

	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(terms).SetField("text")).
		AddMust(bluge.NewTermQuery(convID).SetField("conversation"))

	iter, err := reader.Search(ctx, bluge.NewTopNSearch(limit, query))
	if err != nil {
		return nil, err
	}

	var hits []Hit
	match, err := iter.Next()
	for err == nil && match != nil {
		var id string
		if verr := match.VisitStoredFields(func(field string, value []byte) bool {
			if field == "_id" {
				id = string(value)
			}
			return true
		}); verr != nil {
			return nil, verr
		}
		hits = append(hits, Hit{MessageID: id, Score: match.Score})
		match, err = iter.Next()
	}
	if err != nil {
		return nil, err
	}
	return hits, nil
}
