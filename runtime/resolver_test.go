package runtime

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"educhat/domain/chat"
	"educhat/mocks"
)

func TestResolver_InitialRooms(t *testing.T) {
	assert := require.New(t)
	ctrl := gomock.NewController(t)

	// Given a user belonging to two groups
	memberships := mocks.NewMockMembership(ctrl)
	memberships.EXPECT().
		GroupsForUser(gomock.Any(), "alice").
		Return([]string{"g1", "g2"}, nil)

	resolver := NewResolver(memberships, discardLogger())

	// When the initial room set is resolved
	rooms, err := resolver.InitialRooms(t.Context(), "alice")

	// Then the user room comes first, followed by one room per group
	assert.NoError(err)
	assert.Equal([]chat.RoomID{
		chat.UserRoom("alice"),
		chat.GroupRoom("g1"),
		chat.GroupRoom("g2"),
	}, rooms)
}

func TestResolver_InitialRoomsPropagatesError(t *testing.T) {
	assert := require.New(t)
	ctrl := gomock.NewController(t)

	memberships := mocks.NewMockMembership(ctrl)
	memberships.EXPECT().
		GroupsForUser(gomock.Any(), "alice").
		Return(nil, io.ErrUnexpectedEOF)

	resolver := NewResolver(memberships, discardLogger())

	rooms, err := resolver.InitialRooms(t.Context(), "alice")

	assert.Error(err)
	assert.Nil(rooms)
}

func TestResolver_JoinGroup(t *testing.T) {
	tests := []struct {
		name    string
		member  bool
		err     error
		allowed bool
	}{
		{name: "member is allowed", member: true, allowed: true},
		{name: "non-member is denied", member: false, allowed: false},
		{name: "lookup failure denies", member: false, err: io.ErrUnexpectedEOF, allowed: false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert := require.New(t)
			ctrl := gomock.NewController(t)

			memberships := mocks.NewMockMembership(ctrl)
			memberships.EXPECT().
				IsMember(gomock.Any(), "alice", "g1").
				Return(test.member, test.err)

			resolver := NewResolver(memberships, discardLogger())

			assert.Equal(test.allowed, resolver.JoinGroup(t.Context(), "alice", "g1"))
		})
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
