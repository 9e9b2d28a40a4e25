// Package ws is the socket transport: it upgrades HTTP connections,
// decodes client events into tagged payload structs and drives the hub's
// connection lifecycle.
package ws

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ClientEnvelope is the wire framing of every client-to-server event.
// Data stays raw until the event name selects a payload type.
type ClientEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Client event names.
const (
	EventJoinRoom         = "join_room"
	EventJoinGroup        = "join_group"
	EventLeaveGroup       = "leave_group"
	EventSendMessage      = "send_message"
	EventSendGroupMessage = "send_group_message"
	EventMarkRead         = "mark_group_messages_read"
	EventGetOnlineUsers   = "get_online_users"
)

type JoinRoomPayload struct {
	Room string `json:"room" validate:"required"`
}

type JoinGroupPayload struct {
	GroupID string `json:"groupId" validate:"required"`
}

type LeaveGroupPayload struct {
	GroupID string `json:"groupId" validate:"required"`
}

type SendMessagePayload struct {
	Room       string `json:"room" validate:"required"`
	Message    string `json:"message" validate:"required"`
	BotEnabled bool   `json:"botEnabled"`
	Language   string `json:"language"`
}

type SendGroupMessagePayload struct {
	GroupID string `json:"groupId" validate:"required"`
	Content string `json:"content" validate:"required"`
}

type MarkReadPayload struct {
	GroupID string `json:"groupId" validate:"required"`
}

// decodePayload unmarshals and validates one event payload.
func decodePayload[T any](data json.RawMessage) (T, error) {
	var payload T
	if err := json.Unmarshal(data, &payload); err != nil {
		return payload, err
	}
	if err := validate.Struct(payload); err != nil {
		return payload, err
	}
	return payload, nil
}
