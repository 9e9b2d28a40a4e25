package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPresence_RegisterAndUnregister(t *testing.T) {
	assert := require.New(t)

	// Given a user with two simultaneous connections
	p := NewPresence()
	p.Register("alice", "conn-1")
	p.Register("alice", "conn-2")
	p.Register("bob", "conn-3")

	assert.True(p.IsOnline("alice"))
	assert.Equal([]string{"alice", "bob"}, p.OnlineUsers())

	// When the first connection goes away
	userID, last := p.Unregister("conn-1")

	// Then the user stays online until the last connection drops
	assert.Equal("alice", userID)
	assert.False(last)
	assert.True(p.IsOnline("alice"))

	userID, last = p.Unregister("conn-2")
	assert.Equal("alice", userID)
	assert.True(last)
	assert.False(p.IsOnline("alice"))
	assert.Equal([]string{"bob"}, p.OnlineUsers())
}

func TestPresence_UnregisterUnknownConnection(t *testing.T) {
	assert := require.New(t)

	// Given an empty registry
	p := NewPresence()

	// When an unknown connection unregisters
	userID, last := p.Unregister("ghost")

	// Then nothing was owned by it
	assert.Empty(userID)
	assert.False(last)
}

func TestPresence_RegisterIsIdempotent(t *testing.T) {
	assert := require.New(t)

	// Given the same connection registered twice
	p := NewPresence()
	p.Register("alice", "conn-1")
	p.Register("alice", "conn-1")

	// When it unregisters once
	userID, last := p.Unregister("conn-1")

	// Then the user is fully offline
	assert.Equal("alice", userID)
	assert.True(last)
	assert.Empty(p.OnlineUsers())
}

func TestPresence_Owner(t *testing.T) {
	assert := require.New(t)

	p := NewPresence()
	p.Register("alice", "conn-1")

	userID, ok := p.Owner("conn-1")
	assert.True(ok)
	assert.Equal("alice", userID)

	_, ok = p.Owner("conn-2")
	assert.False(ok)
}
