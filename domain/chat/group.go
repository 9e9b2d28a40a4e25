package chat

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Role describes a member's standing inside a group.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Group is a persisted group chat. UpdatedAt tracks the last activity
// (message sent, membership change) and drives listing order.
type Group struct {
	ID          string
	Name        string
	Description string
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Member relates a user to a group with a role.
// Every group must retain at least one admin at all times.
type Member struct {
	UserID   string
	GroupID  string
	Role     Role
	JoinedAt time.Time
}

// GroupMessage is a message posted to a group. ReadBy is the only mutable
// field and grows monotonically: user identities are appended when they
// acknowledge reading, never removed.
type GroupMessage struct {
	ID        uuid.UUID
	GroupID   string
	SenderID  string
	Content   string
	ReadBy    []string
	CreatedAt time.Time
}

// HasRead reports whether userID already acknowledged this message.
func (m GroupMessage) HasRead(userID string) bool {
	return slices.Contains(m.ReadBy, userID)
}
