// Package event defines the server-to-client socket events and their
// payloads. Payload shapes are tagged variant types: one struct per event
// name, encoded inside a common {event, data} envelope.
package event

import (
	"encoding/json"
	"time"

	"educhat/domain/chat"
)

// ServerEvent is any payload the hub can push to a connection.
type ServerEvent interface {
	EventName() string
}

// Envelope is the wire framing shared by every socket event.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Encode wraps the event in its envelope and renders it for the wire.
func Encode(e ServerEvent) ([]byte, error) {
	return json.Marshal(Envelope{Event: e.EventName(), Data: e})
}

// OnlineUsers carries the full set of currently-online user identities.
// It encodes as a bare array, matching what clients already consume.
type OnlineUsers []string

func (OnlineUsers) EventName() string { return "getOnlineUsers" }

// ReceiveMessage is a direct-chat message delivered to a conversation room.
type ReceiveMessage struct {
	Room      string    `json:"room"`
	SenderID  string    `json:"senderId"`
	Message   string    `json:"message"`
	Language  string    `json:"language,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (ReceiveMessage) EventName() string { return "receive_message" }

// GroupMessagePayload is the persisted group message as seen by clients.
type GroupMessagePayload struct {
	ID        string    `json:"id"`
	GroupID   string    `json:"groupId"`
	SenderID  string    `json:"senderId"`
	Content   string    `json:"content"`
	ReadBy    []string  `json:"readBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewGroupMessagePayload converts the domain message to its wire shape.
func NewGroupMessagePayload(m chat.GroupMessage) GroupMessagePayload {
	return GroupMessagePayload{
		ID:        m.ID.String(),
		GroupID:   m.GroupID,
		SenderID:  m.SenderID,
		Content:   m.Content,
		ReadBy:    m.ReadBy,
		CreatedAt: m.CreatedAt,
	}
}

// GroupMessage is a group-chat message fanned out to the group room.
type GroupMessage struct {
	GroupID string              `json:"groupId"`
	Message GroupMessagePayload `json:"message"`
}

func (GroupMessage) EventName() string { return "group_message" }

// GroupMessageError notifies the sender that a group send failed.
type GroupMessageError struct {
	GroupID string `json:"groupId"`
	Error   string `json:"error"`
}

func (GroupMessageError) EventName() string { return "group_message_error" }

// MessagesReadStatus is the read-state delta broadcast to a group room,
// letting peers update read receipts without re-fetching message bodies.
type MessagesReadStatus struct {
	UserID  string `json:"userId"`
	GroupID string `json:"groupId"`
}

func (MessagesReadStatus) EventName() string { return "messages_read_status" }

// UserStatusChange announces a presence transition to a group room.
type UserStatusChange struct {
	UserID string `json:"userId"`
	Status string `json:"status"`
}

func (UserStatusChange) EventName() string { return "user_status_change" }

// Presence status values carried by UserStatusChange.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// GroupUpdate kinds.
const (
	GroupUpdateNewGroup       = "new_group"
	GroupUpdateMembersAdded   = "members_added"
	GroupUpdateMemberRemoved  = "member_removed"
	GroupUpdateYouWereRemoved = "you_were_removed"
	GroupUpdateMemberLeft     = "member_left"
)

// GroupUpdate is a membership lifecycle notification pushed to the
// per-user notification rooms of affected members.
type GroupUpdate struct {
	Type            string   `json:"type"`
	GroupID         string   `json:"groupId"`
	GroupName       string   `json:"groupName,omitempty"`
	NewMembers      []string `json:"newMembers,omitempty"`
	RemovedMemberID string   `json:"removedMemberId,omitempty"`
	LeftMemberID    string   `json:"leftMemberId,omitempty"`
}

func (GroupUpdate) EventName() string { return "group_update" }
