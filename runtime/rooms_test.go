package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"

	"educhat/domain/chat"
)

func TestRooms_JoinAndLeave(t *testing.T) {
	assert := require.New(t)

	// Given two connections in the same room
	r := NewRooms()
	room := chat.GroupRoom("g1")
	r.Join("conn-1", room)
	r.Join("conn-2", room)

	assert.ElementsMatch([]string{"conn-1", "conn-2"}, r.Connections(room))
	assert.True(r.Joined("conn-1", room))

	// When one leaves
	r.Leave("conn-1", room)

	// Then only the other remains subscribed
	assert.Equal([]string{"conn-2"}, r.Connections(room))
	assert.False(r.Joined("conn-1", room))
}

func TestRooms_EmptyRoomIsRemoved(t *testing.T) {
	assert := require.New(t)

	r := NewRooms()
	room := chat.GroupRoom("g1")
	r.Join("conn-1", room)
	r.Leave("conn-1", room)

	// A fully-emptied room yields no subscriber list at all
	assert.Nil(r.Connections(room))
}

func TestRooms_DropReturnsAllJoinedRooms(t *testing.T) {
	assert := require.New(t)

	// Given a connection subscribed to its user room and two group rooms
	r := NewRooms()
	userRoom := chat.UserRoom("alice")
	groupA := chat.GroupRoom("ga")
	groupB := chat.GroupRoom("gb")
	r.Join("conn-1", userRoom)
	r.Join("conn-1", groupA)
	r.Join("conn-1", groupB)
	r.Join("conn-2", groupA)

	// When the connection is dropped
	dropped := r.Drop("conn-1")

	// Then every room it belonged to is reported and vacated
	assert.ElementsMatch([]chat.RoomID{userRoom, groupA, groupB}, dropped)
	assert.Nil(r.Connections(userRoom))
	assert.Nil(r.Connections(groupB))
	assert.Equal([]string{"conn-2"}, r.Connections(groupA))
}

func TestRooms_LeaveUnknownRoomIsNoop(t *testing.T) {
	assert := require.New(t)

	r := NewRooms()
	r.Leave("conn-1", chat.GroupRoom("nope"))

	assert.Empty(r.Drop("conn-1"))
}
