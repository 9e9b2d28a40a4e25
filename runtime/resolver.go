package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"educhat/contract"
	"educhat/domain/chat"
)

// Resolver computes the set of rooms a connection should subscribe to.
//
// Membership is fetched fresh on every connect so the connection reflects
// the latest group state at join time. A user added to a group after
// connecting does not hear that room until an explicit JoinGroup request;
// this preserves the dual join model (auto-join on connect, explicit join
// on demand) as two independent operations.
type Resolver struct {
	memberships contract.Membership
	log         *slog.Logger
}

func NewResolver(memberships contract.Membership, log *slog.Logger) *Resolver {
	return &Resolver{memberships: memberships, log: log}
}

// InitialRooms returns the user's notification room plus one room per
// current group membership.
func (r *Resolver) InitialRooms(ctx context.Context, userID string) ([]chat.RoomID, error) {
	groups, err := r.memberships.GroupsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolving groups for %s: %w", userID, err)
	}

	rooms := make([]chat.RoomID, 0, len(groups)+1)
	rooms = append(rooms, chat.UserRoom(userID))
	for _, groupID := range groups {
		rooms = append(rooms, chat.GroupRoom(groupID))
	}
	return rooms, nil
}

// JoinGroup re-verifies membership before allowing a subscription to the
// group room. Non-members are denied silently: no room join, no error
// surfaced beyond the boolean. This is a security boundary preventing
// unauthorized listening.
func (r *Resolver) JoinGroup(ctx context.Context, userID, groupID string) bool {
	ok, err := r.memberships.IsMember(ctx, userID, groupID)
	if err != nil {
		r.log.Error("membership check failed", "user_id", userID, "group_id", groupID, "error", err)
		return false
	}
	return ok
}
