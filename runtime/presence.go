package runtime

import "sort"

// Presence maps logical user identities to their live connections.
// A user may hold several simultaneous connections (multiple tabs); the
// user counts as online while at least one connection remains.
//
// Presence is owned by the hub's event loop and must only be touched from
// there: the single-writer discipline is what makes it safe without locks.
type Presence struct {
	users map[string]map[string]struct{} // userID -> connIDs
	owner map[string]string              // connID -> userID
}

func NewPresence() *Presence {
	return &Presence{
		users: make(map[string]map[string]struct{}),
		owner: make(map[string]string),
	}
}

// Register adds connID under userID. Idempotent if already present.
func (p *Presence) Register(userID, connID string) {
	if _, ok := p.users[userID]; !ok {
		p.users[userID] = make(map[string]struct{})
	}
	p.users[userID][connID] = struct{}{}
	p.owner[connID] = userID
}

// Unregister removes the entry matching connID and returns the owning user
// identity, plus whether that was the user's last connection. The empty
// user identity means the connection was never registered.
func (p *Presence) Unregister(connID string) (userID string, last bool) {
	userID, ok := p.owner[connID]
	if !ok {
		return "", false
	}
	delete(p.owner, connID)

	conns := p.users[userID]
	delete(conns, connID)
	if len(conns) == 0 {
		delete(p.users, userID)
		return userID, true
	}
	return userID, false
}

// OnlineUsers returns all currently-registered user identities, sorted for
// stable broadcasts.
func (p *Presence) OnlineUsers() []string {
	out := make([]string, 0, len(p.users))
	for userID := range p.users {
		out = append(out, userID)
	}
	sort.Strings(out)
	return out
}

// IsOnline reports whether the user has at least one live connection.
func (p *Presence) IsOnline(userID string) bool {
	return len(p.users[userID]) > 0
}

// Owner returns the user identity bound to a connection, if any.
func (p *Presence) Owner(connID string) (string, bool) {
	userID, ok := p.owner[connID]
	return userID, ok
}
