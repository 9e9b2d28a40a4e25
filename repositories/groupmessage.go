//go:generate go run go.uber.org/mock/mockgen -source=groupmessage.go -destination=../mocks/mock_groupmessage_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"educhat/domain/chat"
)

type IGroupMessageRepository interface {
	Store(message chat.GroupMessage) error
	Recent(groupID string, limit int) ([]chat.GroupMessage, error)
	MarkRead(groupID, userID string) (int, error)
}

// GroupMessageRepository persists group messages under
// "gmsg:{groupID}:{timestamp_padded}:{uuid}", reusing the padded-timestamp
// scheme of the direct-message store so a reverse prefix scan yields
// newest-first order.
type GroupMessageRepository struct {
	db *badger.DB
}

func NewGroupMessageRepository(db *badger.DB) *GroupMessageRepository {
	return &GroupMessageRepository{db: db}
}

type diskGroupMessage struct {
	ID        string    `json:"id"`
	GroupID   string    `json:"group_id"`
	SenderID  string    `json:"sender_id"`
	Content   string    `json:"content"`
	ReadBy    []string  `json:"read_by"`
	CreatedAt time.Time `json:"created_at"`
}

func groupMessageKey(groupID string, at time.Time, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("gmsg:%s:%019d:%s", groupID, at.UnixNano(), id))
}

func (r *GroupMessageRepository) Store(message chat.GroupMessage) error {
	bytes, err := json.Marshal(fromGroupMessage(message))
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(groupMessageKey(message.GroupID, message.CreatedAt, message.ID), bytes)
	})
}

// Recent returns up to limit messages for the group, newest first.
func (r *GroupMessageRepository) Recent(groupID string, limit int) ([]chat.GroupMessage, error) {
	var messages []chat.GroupMessage
	err := r.db.View(func(txn *badger.Txn) error {
		prefixStr := "gmsg:" + groupID + ":"
		prefix := []byte(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		seekKey := append([]byte(prefixStr), []byte("9999999999999999999")...)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(messages) == limit {
				break
			}
			var dm diskGroupMessage
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &dm)
			}); err != nil {
				return err
			}
			msg, err := toGroupMessage(dm)
			if err != nil {
				return err
			}
			messages = append(messages, msg)
		}
		return nil
	})
	return messages, err
}

// MarkRead appends userID to the read-by set of every message in the
// group that userID did not send and has not read yet. The read-by set
// only ever grows, so re-invocation has no additional effect; the number
// of newly-marked messages is returned.
func (r *GroupMessageRepository) MarkRead(groupID, userID string) (int, error) {
	updated := 0
	err := r.db.Update(func(txn *badger.Txn) error {
		prefix := []byte("gmsg:" + groupID + ":")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var dm diskGroupMessage
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &dm)
			}); err != nil {
				return err
			}
			if dm.SenderID == userID || slices.Contains(dm.ReadBy, userID) {
				continue
			}
			dm.ReadBy = append(dm.ReadBy, userID)
			bytes, err := json.Marshal(dm)
			if err != nil {
				return err
			}
			if err := txn.Set(item.KeyCopy(nil), bytes); err != nil {
				return err
			}
			updated++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

func fromGroupMessage(m chat.GroupMessage) diskGroupMessage {
	return diskGroupMessage{
		ID:        m.ID.String(),
		GroupID:   m.GroupID,
		SenderID:  m.SenderID,
		Content:   m.Content,
		ReadBy:    m.ReadBy,
		CreatedAt: m.CreatedAt.UTC(),
	}
}

func toGroupMessage(dm diskGroupMessage) (chat.GroupMessage, error) {
	parsedID, err := uuid.Parse(dm.ID)
	if err != nil {
		return chat.GroupMessage{}, err
	}
	return chat.GroupMessage{
		ID:        parsedID,
		GroupID:   dm.GroupID,
		SenderID:  dm.SenderID,
		Content:   dm.Content,
		ReadBy:    dm.ReadBy,
		CreatedAt: dm.CreatedAt.UTC(),
	}, nil
}
