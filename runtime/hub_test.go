package runtime

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"educhat/domain/chat"
	"educhat/domain/event"
	"educhat/observability"
)

// captureSink records everything the hub pushes at a connection. Setting
// reject simulates a slow consumer whose buffer never drains.
type captureSink struct {
	mu       sync.Mutex
	payloads [][]byte
	reject   bool
	closed   bool
}

func (s *captureSink) Send(payload []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reject {
		return false
	}
	s.payloads = append(s.payloads, payload)
	return true
}

func (s *captureSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *captureSink) setReject(reject bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reject = reject
}

func (s *captureSink) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *captureSink) countEvents(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, payload := range s.payloads {
		var envelope struct {
			Event string `json:"event"`
		}
		if json.Unmarshal(payload, &envelope) == nil && envelope.Event == name {
			count++
		}
	}
	return count
}

func startHub(t *testing.T) (*Hub, *observability.Metrics) {
	t.Helper()

	metrics, err := observability.NewMetrics()
	require.NoError(t, err)

	hub := NewHub(discardLogger(), metrics, 64)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return hub, metrics
}

// OnlineUsers is answered by the hub loop itself, so calling it after a
// batch of fire-and-forget commands guarantees the batch was processed.
func flush(hub *Hub) {
	hub.OnlineUsers()
}

func TestHub_GroupBroadcastReachesEveryConnectionOnce(t *testing.T) {
	assert := require.New(t)
	hub, _ := startHub(t)

	// Given alice connected from two tabs and bob from one, all in group g1
	room := chat.GroupRoom("g1")
	aliceTab1 := &captureSink{}
	aliceTab2 := &captureSink{}
	bobTab := &captureSink{}
	hub.Attach("a1", "alice", aliceTab1, []chat.RoomID{chat.UserRoom("alice"), room})
	hub.Attach("a2", "alice", aliceTab2, []chat.RoomID{chat.UserRoom("alice"), room})
	hub.Attach("b1", "bob", bobTab, []chat.RoomID{chat.UserRoom("bob"), room})
	flush(hub)

	// When a group message is fanned out to the room
	hub.BroadcastRoom(room, event.GroupMessage{GroupID: "g1"}, "")
	flush(hub)

	// Then each connection receives it exactly once
	assert.Equal(1, aliceTab1.countEvents("group_message"))
	assert.Equal(1, aliceTab2.countEvents("group_message"))
	assert.Equal(1, bobTab.countEvents("group_message"))
}

func TestHub_BroadcastExcludesTriggeringConnection(t *testing.T) {
	assert := require.New(t)
	hub, _ := startHub(t)

	room := chat.GroupRoom("g1")
	sender := &captureSink{}
	peer := &captureSink{}
	hub.Attach("a1", "alice", sender, []chat.RoomID{room})
	hub.Attach("b1", "bob", peer, []chat.RoomID{room})
	flush(hub)

	hub.BroadcastRoom(room, event.ReceiveMessage{Room: string(room)}, "a1")
	flush(hub)

	assert.Equal(0, sender.countEvents("receive_message"))
	assert.Equal(1, peer.countEvents("receive_message"))
}

func TestHub_PartialDisconnectKeepsUserOnline(t *testing.T) {
	assert := require.New(t)
	hub, _ := startHub(t)

	// Given a user with two live connections
	aliceTab1 := &captureSink{}
	aliceTab2 := &captureSink{}
	hub.Attach("a1", "alice", aliceTab1, []chat.RoomID{chat.UserRoom("alice")})
	hub.Attach("a2", "alice", aliceTab2, []chat.RoomID{chat.UserRoom("alice")})

	// When one of them detaches
	hub.Detach("a1")

	// Then the user is still online, and only the detached sink was closed
	assert.Contains(hub.OnlineUsers(), "alice")
	assert.True(aliceTab1.isClosed())
	assert.False(aliceTab2.isClosed())

	// When the last connection detaches, the user goes offline
	hub.Detach("a2")
	assert.Empty(hub.OnlineUsers())
}

func TestHub_OfflineAnnouncedOnlyOnLastDisconnect(t *testing.T) {
	assert := require.New(t)
	hub, _ := startHub(t)

	room := chat.GroupRoom("g1")
	aliceTab1 := &captureSink{}
	aliceTab2 := &captureSink{}
	bobTab := &captureSink{}
	hub.Attach("b1", "bob", bobTab, []chat.RoomID{room})
	hub.Attach("a1", "alice", aliceTab1, []chat.RoomID{room})
	hub.Attach("a2", "alice", aliceTab2, []chat.RoomID{room})
	flush(hub)

	offlineEvents := func() int {
		bobTab.mu.Lock()
		defer bobTab.mu.Unlock()
		count := 0
		for _, payload := range bobTab.payloads {
			var envelope struct {
				Event string                 `json:"event"`
				Data  event.UserStatusChange `json:"data"`
			}
			if json.Unmarshal(payload, &envelope) != nil {
				continue
			}
			if envelope.Event == "user_status_change" && envelope.Data.Status == event.StatusOffline {
				count++
			}
		}
		return count
	}

	// When only one of alice's tabs closes, no offline is announced
	hub.Detach("a1")
	flush(hub)
	assert.Equal(0, offlineEvents())

	// When her last tab closes, the room hears exactly one offline event
	hub.Detach("a2")
	flush(hub)
	assert.Equal(1, offlineEvents())
}

func TestHub_SlowConnectionIsDropped(t *testing.T) {
	assert := require.New(t)
	hub, metrics := startHub(t)

	// Given a connection whose send buffer never accepts payloads
	room := chat.GroupRoom("g1")
	slow := &captureSink{}
	hub.Attach("s1", "carol", slow, []chat.RoomID{room})
	flush(hub)
	slow.setReject(true)

	// When a broadcast cannot be buffered
	hub.BroadcastRoom(room, event.GroupMessage{GroupID: "g1"}, "")
	flush(hub)

	// Then the connection is detached instead of stalling the loop
	assert.True(slow.isClosed())
	assert.Equal(int64(1), metrics.SinksDropped.Load())
	assert.NotContains(hub.OnlineUsers(), "carol")
}

func TestHub_EmitUserReachesEveryTabOfThatUserOnly(t *testing.T) {
	assert := require.New(t)
	hub, _ := startHub(t)

	aliceTab1 := &captureSink{}
	aliceTab2 := &captureSink{}
	bobTab := &captureSink{}
	hub.Attach("a1", "alice", aliceTab1, []chat.RoomID{chat.UserRoom("alice")})
	hub.Attach("a2", "alice", aliceTab2, []chat.RoomID{chat.UserRoom("alice")})
	hub.Attach("b1", "bob", bobTab, []chat.RoomID{chat.UserRoom("bob")})
	flush(hub)

	hub.EmitUser("alice", event.GroupUpdate{Type: event.GroupUpdateNewGroup, GroupID: "g1"})
	flush(hub)

	assert.Equal(1, aliceTab1.countEvents("group_update"))
	assert.Equal(1, aliceTab2.countEvents("group_update"))
	assert.Equal(0, bobTab.countEvents("group_update"))
}

func TestHub_UnauthenticatedConnectionStaysInert(t *testing.T) {
	assert := require.New(t)
	hub, _ := startHub(t)

	// Given an attached connection without a user identity
	anonymous := &captureSink{}
	hub.Attach("x1", "", anonymous, nil)
	flush(hub)

	// Then it never appears in the online set nor in any room
	assert.Empty(hub.OnlineUsers())
	hub.BroadcastRoom(chat.GroupRoom("g1"), event.GroupMessage{GroupID: "g1"}, "")
	flush(hub)
	assert.Equal(0, anonymous.countEvents("group_message"))

	// But a broadcast to all connections still reaches it
	hub.BroadcastAll(event.OnlineUsers{})
	flush(hub)
	assert.Equal(1, anonymous.countEvents("getOnlineUsers"))
}

func TestHub_JoinAndLeaveRoom(t *testing.T) {
	assert := require.New(t)
	hub, _ := startHub(t)

	room := chat.RoomID("study-session")
	sink := &captureSink{}
	hub.Attach("a1", "alice", sink, []chat.RoomID{chat.UserRoom("alice")})
	hub.JoinRoom("a1", room)
	flush(hub)

	hub.BroadcastRoom(room, event.ReceiveMessage{Room: string(room)}, "")
	flush(hub)
	assert.Equal(1, sink.countEvents("receive_message"))

	hub.LeaveRoom("a1", room)
	flush(hub)

	hub.BroadcastRoom(room, event.ReceiveMessage{Room: string(room)}, "")
	flush(hub)
	assert.Equal(1, sink.countEvents("receive_message"))
}
