package runtime

import "educhat/domain/chat"

// Rooms is the in-memory room subscription table: which connections are
// subscribed to which broadcast channels. Like Presence it is owned by the
// hub loop; empty sets are removed eagerly so rooms never leak.
type Rooms struct {
	members map[chat.RoomID]map[string]struct{} // roomID -> connIDs
	joined  map[string]map[chat.RoomID]struct{} // connID -> roomIDs
}

func NewRooms() *Rooms {
	return &Rooms{
		members: make(map[chat.RoomID]map[string]struct{}),
		joined:  make(map[string]map[chat.RoomID]struct{}),
	}
}

// Join subscribes the connection to the room. Idempotent.
func (r *Rooms) Join(connID string, room chat.RoomID) {
	if _, ok := r.members[room]; !ok {
		r.members[room] = make(map[string]struct{})
	}
	r.members[room][connID] = struct{}{}

	if _, ok := r.joined[connID]; !ok {
		r.joined[connID] = make(map[chat.RoomID]struct{})
	}
	r.joined[connID][room] = struct{}{}
}

// Leave unsubscribes the connection from the room, unconditionally.
func (r *Rooms) Leave(connID string, room chat.RoomID) {
	if conns, ok := r.members[room]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(r.members, room)
		}
	}
	if rooms, ok := r.joined[connID]; ok {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(r.joined, connID)
		}
	}
}

// Drop removes the connection from every room it joined and returns the
// rooms it belonged to, so the caller can fan out presence changes.
func (r *Rooms) Drop(connID string) []chat.RoomID {
	rooms := make([]chat.RoomID, 0, len(r.joined[connID]))
	for room := range r.joined[connID] {
		rooms = append(rooms, room)
		if conns, ok := r.members[room]; ok {
			delete(conns, connID)
			if len(conns) == 0 {
				delete(r.members, room)
			}
		}
	}
	delete(r.joined, connID)
	return rooms
}

// Connections returns the identifiers of every connection subscribed to
// the room. Nil when the room has no subscribers.
func (r *Rooms) Connections(room chat.RoomID) []string {
	conns, ok := r.members[room]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(conns))
	for connID := range conns {
		out = append(out, connID)
	}
	return out
}

// Joined reports whether the connection is subscribed to the room.
func (r *Rooms) Joined(connID string, room chat.RoomID) bool {
	_, ok := r.joined[connID][room]
	return ok
}
