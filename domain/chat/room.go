// Package chat contains the core concepts of the messaging system:
// rooms, direct messages, groups and group messages.
package chat

import "strings"

// RoomID names an in-memory broadcast channel. Rooms have no persistent
// identity; they exist only as the set of connections currently subscribed.
type RoomID string

const (
	userRoomPrefix  = "user_"
	groupRoomPrefix = "group_"
)

// UserRoom returns the per-user notification room, used for direct
// pushes such as group invites and removals.
func UserRoom(userID string) RoomID {
	return RoomID(userRoomPrefix + userID)
}

// GroupRoom returns the broadcast room backing a persisted group.
func GroupRoom(groupID string) RoomID {
	return RoomID(groupRoomPrefix + groupID)
}

// IsGroupRoom reports whether the room is backed by a persisted group.
func IsGroupRoom(id RoomID) bool {
	return strings.HasPrefix(string(id), groupRoomPrefix)
}

// GroupID extracts the group identifier from a group room.
// Returns "" when the room is not a group room.
func GroupID(id RoomID) string {
	if !IsGroupRoom(id) {
		return ""
	}
	return strings.TrimPrefix(string(id), groupRoomPrefix)
}
