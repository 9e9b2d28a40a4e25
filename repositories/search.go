//go:generate go run go.uber.org/mock/mockgen -source=search.go -destination=../mocks/mock_search_index.go -package=mocks
package repositories

import (
	"context"
	"log/slog"

	"github.com/blugelabs/bluge"

	"educhat/domain/chat"
)

type ISearchIndex interface {
	Index(message chat.GroupMessage) error
	Search(ctx context.Context, groupID, terms string, limit int) ([]SearchHit, error)
}

// SearchHit is one full-text match over a group's message history.
type SearchHit struct {
	MessageID string `json:"messageId"`
	GroupID   string `json:"groupId"`
	Content   string `json:"content"`
}

// SearchIndex maintains a Bluge full-text index over group messages.
// Indexing is best-effort and happens off the send path; the badger store
// remains the source of truth.
type SearchIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewSearchIndex(writer *bluge.Writer, log *slog.Logger) *SearchIndex {
	return &SearchIndex{writer: writer, log: log}
}

// Index upserts one message document, keyed by the message UUID.
func (s *SearchIndex) Index(message chat.GroupMessage) error {
	doc := bluge.NewDocument(message.ID.String())
	doc.AddField(bluge.NewTextField("content", message.Content).StoreValue())
	doc.AddField(bluge.NewKeywordField("group_id", message.GroupID).StoreValue())
	doc.AddField(bluge.NewKeywordField("sender_id", message.SenderID).StoreValue())
	return s.writer.Update(doc.ID(), doc)
}

// Search matches terms against message content, restricted to one group.
func (s *SearchIndex) Search(ctx context.Context, groupID, terms string, limit int) ([]SearchHit, error) {
	reader, err := s.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := reader.Close(); cerr != nil {
			s.log.Warn("closing index reader", "error", cerr)
		}
	}()

	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(terms).SetField("content")).
		AddMust(bluge.NewTermQuery(groupID).SetField("group_id"))

	iterator, err := reader.Search(ctx, bluge.NewTopNSearch(limit, query))
	if err != nil {
		return nil, err
	}

	var hits []SearchHit
	for {
		match, err := iterator.Next()
		if err != nil {
			return nil, err
		}
		if match == nil {
			break
		}
		hit := SearchHit{GroupID: groupID}
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				hit.MessageID = string(value)
			case "content":
				hit.Content = string(value)
			}
			return true
		})
		if err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, nil
}
