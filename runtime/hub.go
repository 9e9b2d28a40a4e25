package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"educhat/contract"
	"educhat/domain/chat"
	"educhat/domain/event"
	"educhat/observability"
)

// Hub drives the connection lifecycle state machine and owns the only
// shared mutable state in the process: the presence registry and the room
// subscription table. Both are mutated exclusively from the single
// command-consuming loop in Run, so no locking is needed.
//
// Blocking I/O never happens inside the loop. Membership resolution and
// persistence run in the connection goroutines; the loop only moves
// already-encoded payloads into per-connection send buffers.
type Hub struct {
	log      *slog.Logger
	presence *Presence
	rooms    *Rooms
	sinks    map[string]contract.EventSink
	commands chan command
	metrics  *observability.Metrics
}

type command interface{}

type attachCmd struct {
	connID string
	userID string // empty for unauthenticated connections
	sink   contract.EventSink
	rooms  []chat.RoomID
}

type detachCmd struct{ connID string }

type joinCmd struct {
	connID string
	room   chat.RoomID
}

type leaveCmd struct {
	connID string
	room   chat.RoomID
}

type broadcastCmd struct {
	room    chat.RoomID
	payload []byte
	exclude string // connID to skip, "" for none
	all     bool   // every attached connection, ignoring rooms
}

type emitCmd struct {
	connID  string
	payload []byte
}

type onlineQuery struct{ reply chan []string }

func NewHub(log *slog.Logger, metrics *observability.Metrics, bufferSize int) *Hub {
	return &Hub{
		log:      log,
		presence: NewPresence(),
		rooms:    NewRooms(),
		sinks:    make(map[string]contract.EventSink),
		commands: make(chan command, bufferSize),
		metrics:  metrics,
	}
}

var _ contract.Worker = (*Hub)(nil)
var _ contract.Broadcaster = (*Hub)(nil)

// Run consumes commands until the context is canceled. It is the single
// writer for presence and room state.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.log.Debug("Context done, stopping hub loop")
			h.closeAll()
			return nil
		case cmd := <-h.commands:
			h.handle(cmd)
		}
	}
}

func (h *Hub) handle(cmd command) {
	switch c := cmd.(type) {
	case attachCmd:
		h.handleAttach(c)
	case detachCmd:
		h.handleDetach(c.connID)
	case joinCmd:
		h.rooms.Join(c.connID, c.room)
	case leaveCmd:
		h.rooms.Leave(c.connID, c.room)
	case broadcastCmd:
		if c.all {
			h.fanOutAll(c.payload)
			return
		}
		h.fanOutRoom(c.room, c.payload, c.exclude)
	case emitCmd:
		h.deliver(c.connID, c.payload)
	case onlineQuery:
		c.reply <- h.presence.OnlineUsers()
	}
}

// handleAttach completes the Connecting -> Active transition: register
// presence, join the pre-resolved room set, announce "online" to each group
// room and re-broadcast the global online set. Connections without a user
// identity stay in the Unauthenticated state: attached but inert.
func (h *Hub) handleAttach(c attachCmd) {
	h.sinks[c.connID] = c.sink
	h.metrics.Connects.Add(1)

	if c.userID == "" {
		h.log.Debug("Unauthenticated connection attached", "conn_id", c.connID)
		return
	}

	h.presence.Register(c.userID, c.connID)
	for _, room := range c.rooms {
		h.rooms.Join(c.connID, room)
	}

	online, err := event.Encode(event.UserStatusChange{UserID: c.userID, Status: event.StatusOnline})
	if err != nil {
		h.log.Error("encoding status change", "error", err)
	} else {
		for _, room := range c.rooms {
			if chat.IsGroupRoom(room) {
				h.fanOutRoom(room, online, c.connID)
			}
		}
	}

	h.broadcastOnlineSet()
	h.log.Info("User connected", "user_id", c.userID, "conn_id", c.connID, "rooms", len(c.rooms))
}

// handleDetach is the terminal transition. If this was the user's last
// connection, every group room the user belonged to hears "offline" and
// the global online set is re-broadcast.
func (h *Hub) handleDetach(connID string) {
	sink, ok := h.sinks[connID]
	if !ok {
		return
	}
	delete(h.sinks, connID)
	sink.Close()
	h.metrics.Disconnects.Add(1)

	dropped := h.rooms.Drop(connID)
	userID, last := h.presence.Unregister(connID)
	if userID == "" {
		return
	}

	if last {
		offline, err := event.Encode(event.UserStatusChange{UserID: userID, Status: event.StatusOffline})
		if err != nil {
			h.log.Error("encoding status change", "error", err)
		} else {
			for _, room := range dropped {
				if chat.IsGroupRoom(room) {
					h.fanOutRoom(room, offline, "")
				}
			}
		}
	}

	h.broadcastOnlineSet()
	h.log.Info("User disconnected", "user_id", userID, "conn_id", connID, "last_connection", last)
}

func (h *Hub) broadcastOnlineSet() {
	payload, err := event.Encode(event.OnlineUsers(h.presence.OnlineUsers()))
	if err != nil {
		h.log.Error("encoding online users", "error", err)
		return
	}
	h.fanOutAll(payload)
}

// fanOutRoom delivers one payload to every connection subscribed to the
// room. Delivery between subscribers is unordered; a connection whose send
// buffer is full is dropped rather than allowed to stall the loop.
func (h *Hub) fanOutRoom(room chat.RoomID, payload []byte, exclude string) {
	for _, connID := range h.rooms.Connections(room) {
		if connID == exclude {
			continue
		}
		h.deliver(connID, payload)
	}
}

func (h *Hub) fanOutAll(payload []byte) {
	for connID := range h.sinks {
		h.deliver(connID, payload)
	}
}

func (h *Hub) deliver(connID string, payload []byte) {
	sink, ok := h.sinks[connID]
	if !ok {
		return
	}
	if !sink.Send(payload) {
		h.log.Warn("Send buffer full, dropping connection", "conn_id", connID)
		h.metrics.SinksDropped.Add(1)
		h.handleDetach(connID)
		return
	}
	h.metrics.EventsDelivered.Add(1)
}

func (h *Hub) closeAll() {
	for connID, sink := range h.sinks {
		sink.Close()
		delete(h.sinks, connID)
	}
}

// --- producer API (safe from any goroutine) ---

// Attach registers a new connection with its pre-resolved initial rooms.
// Room resolution happens before this call, in the connection's goroutine,
// so the loop never blocks on the membership collaborator.
func (h *Hub) Attach(connID, userID string, sink contract.EventSink, rooms []chat.RoomID) {
	h.commands <- attachCmd{connID: connID, userID: userID, sink: sink, rooms: rooms}
}

// Detach runs the terminal lifecycle transition for the connection.
func (h *Hub) Detach(connID string) {
	h.commands <- detachCmd{connID: connID}
}

// JoinRoom subscribes the connection to an ad hoc room. Membership checks,
// when required, are the caller's responsibility (see Resolver.JoinGroup).
func (h *Hub) JoinRoom(connID string, room chat.RoomID) {
	h.commands <- joinCmd{connID: connID, room: room}
}

// LeaveRoom unsubscribes unconditionally.
func (h *Hub) LeaveRoom(connID string, room chat.RoomID) {
	h.commands <- leaveCmd{connID: connID, room: room}
}

// BroadcastRoom fans the event out to the room, optionally excluding one
// connection (the triggering one). Fire-and-forget: when the command
// buffer is saturated the broadcast is dropped with a warning rather than
// blocking a send path.
func (h *Hub) BroadcastRoom(room chat.RoomID, e event.ServerEvent, excludeConn string) {
	payload, err := event.Encode(e)
	if err != nil {
		h.log.Error("encoding event", "event", e.EventName(), "error", err)
		return
	}
	h.dispatch(broadcastCmd{room: room, payload: payload, exclude: excludeConn})
}

// BroadcastAll fans the event out to every attached connection.
func (h *Hub) BroadcastAll(e event.ServerEvent) {
	payload, err := event.Encode(e)
	if err != nil {
		h.log.Error("encoding event", "event", e.EventName(), "error", err)
		return
	}
	h.dispatch(broadcastCmd{all: true, payload: payload})
}

// EmitConn delivers the event to a single connection.
func (h *Hub) EmitConn(connID string, e event.ServerEvent) {
	payload, err := event.Encode(e)
	if err != nil {
		h.log.Error("encoding event", "event", e.EventName(), "error", err)
		return
	}
	h.dispatch(emitCmd{connID: connID, payload: payload})
}

// EmitUser delivers the event to every connection in the user's
// notification room.
func (h *Hub) EmitUser(userID string, e event.ServerEvent) {
	h.BroadcastRoom(chat.UserRoom(userID), e, "")
}

// OnlineUsers returns the current online set, answered by the loop itself
// so readers never observe a half-updated registry.
func (h *Hub) OnlineUsers() []string {
	reply := make(chan []string, 1)
	h.commands <- onlineQuery{reply: reply}
	return <-reply
}

func (h *Hub) dispatch(cmd command) {
	select {
	case h.commands <- cmd:
	default:
		h.log.Warn(fmt.Sprintf("Hub command channel full, dropping %T", cmd))
	}
}
