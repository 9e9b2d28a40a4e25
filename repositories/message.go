//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"educhat/domain/chat"
)

type IMessageRepository interface {
	Store(message chat.Message) error
	History(room string, cursor *string) ([]chat.Message, *string, error)
}

// MessageRepository persists direct-chat messages in BadgerDB.
type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) MessageRepository {
	return MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

// diskMessage is the stored shape of a direct message.
type diskMessage struct {
	ID        string    `json:"id"`
	Room      string    `json:"room"`
	SenderID  string    `json:"sender_id"`
	Body      string    `json:"body"`
	Language  string    `json:"language,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists a message. The key is formatted as
// "msg:{room}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding
//     (lexicographical order).
//  2. Prevent data loss by using the UUID as a collision disconnector if
//     two messages arrive at the same nanosecond.
func (m MessageRepository) Store(message chat.Message) error {
	key := fmt.Sprintf("msg:%s:%019d:%s",
		message.Room,
		message.CreatedAt.UnixNano(),
		message.ID,
	)
	bytes, err := json.Marshal(fromMessage(message))
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), bytes)
	})
}

// History retrieves messages for a room using a reverse prefix scan,
// newest first. Thanks to the padded timestamp in the key, messages are
// naturally sorted by time. The returned cursor resumes the scan on the
// next page; collection stops once the configured limit is reached.
func (m MessageRepository) History(room string, cursor *string) ([]chat.Message, *string, error) {
	var rawValues [][]byte
	var lastKey string
	err := m.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("msg:%s:", room)
		prefix := []byte(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Seek past the newest possible timestamp, then walk backwards.
			seekKey = append(prefix, []byte("9999999999999999999")...)
		default:
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)
		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(rawValues) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", *m.limitMessages))
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[len(prefixStr):])
			if err := item.Value(func(value []byte) error {
				rawValues = append(rawValues, append([]byte(nil), value...))
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	messages := make([]chat.Message, 0, len(rawValues))
	for _, raw := range rawValues {
		var dm diskMessage
		if err = json.Unmarshal(raw, &dm); err != nil {
			return nil, nil, err
		}
		msg, err := toMessage(dm)
		if err != nil {
			return nil, nil, err
		}
		messages = append(messages, msg)
	}
	return messages, lo.ToPtr(lastKey), nil
}

func fromMessage(message chat.Message) diskMessage {
	return diskMessage{
		ID:        message.ID.String(),
		Room:      message.Room,
		SenderID:  message.SenderID,
		Body:      message.Body,
		Language:  message.Language,
		CreatedAt: message.CreatedAt.UTC(),
	}
}

func toMessage(dm diskMessage) (chat.Message, error) {
	parsedID, err := uuid.Parse(dm.ID)
	if err != nil {
		return chat.Message{}, err
	}
	return chat.Message{
		ID:        parsedID,
		Room:      dm.Room,
		SenderID:  dm.SenderID,
		Body:      dm.Body,
		Language:  dm.Language,
		CreatedAt: dm.CreatedAt.UTC(),
	}, nil
}
