package chat

import (
	"time"

	"github.com/google/uuid"
)

// BotSenderID is the synthetic identity attached to assistant replies.
const BotSenderID = "bot"

// Message represents an immutable direct-chat message exchanged inside a
// conversation room. It is persisted before any broadcast and never mutated
// afterwards; translation happens in transit and is not stored.
type Message struct {
	ID        uuid.UUID
	Room      string
	SenderID  string
	Body      string
	Language  string
	CreatedAt time.Time
}
