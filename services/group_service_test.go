package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"educhat/domain/chat"
	"educhat/domain/event"
	"educhat/errors"
	"educhat/mocks"
	"educhat/repositories"
)

type groupFixture struct {
	service     *GroupService
	groups      *repositories.GroupRepository
	messages    *repositories.GroupMessageRepository
	broadcaster *mocks.MockBroadcaster
	indexQueue  chan chat.GroupMessage
}

func newGroupFixture(t *testing.T, ctrl *gomock.Controller) groupFixture {
	t.Helper()
	db := openServiceDB(t)
	groups := repositories.NewGroupRepository(db)
	messages := repositories.NewGroupMessageRepository(db)
	broadcaster := mocks.NewMockBroadcaster(ctrl)
	indexQueue := make(chan chat.GroupMessage, 8)

	service := NewGroupService(testLogger(), groups, messages, nil,
		broadcaster, testModerator(t), testMetrics(t), indexQueue)
	return groupFixture{
		service:     service,
		groups:      groups,
		messages:    messages,
		broadcaster: broadcaster,
		indexQueue:  indexQueue,
	}
}

func (f groupFixture) createGroup(t *testing.T, creator string, memberIDs ...string) chat.Group {
	t.Helper()
	f.broadcaster.EXPECT().EmitUser(creator, gomock.Any()).Times(1)
	for _, id := range memberIDs {
		f.broadcaster.EXPECT().EmitUser(id, gomock.Any()).Times(1)
	}
	group, err := f.service.CreateGroup(context.Background(), creator, "Study group", "", memberIDs)
	require.NoError(t, err)
	return group
}

func Test_CreateGroup_Creator_Becomes_Admin(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	f := newGroupFixture(t, ctrl)

	// Every member's notification room is told about the new group,
	// the creator's included, and listing the creator twice changes nothing
	f.broadcaster.EXPECT().
		EmitUser("alice", newGroupUpdate()).Times(1)
	f.broadcaster.EXPECT().
		EmitUser("bob", newGroupUpdate()).Times(1)

	group, err := f.service.CreateGroup(context.Background(), "alice", "Math revision", "weekly", []string{"bob", "alice"})
	req.NoError(err)
	req.Equal("alice", group.CreatedBy)

	admin, err := f.groups.GetMember(group.ID, "alice")
	req.NoError(err)
	req.Equal(chat.RoleAdmin, admin.Role)

	invited, err := f.groups.GetMember(group.ID, "bob")
	req.NoError(err)
	req.Equal(chat.RoleMember, invited.Role)
}

// newGroupUpdate matches any group_update of type new_group.
func newGroupUpdate() gomock.Matcher {
	return gomock.Cond(func(x any) bool {
		update, ok := x.(event.GroupUpdate)
		return ok && update.Type == event.GroupUpdateNewGroup
	})
}

func Test_SendMessage_NonMember_Is_Rejected_Before_Persisting(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	f := newGroupFixture(t, ctrl)
	group := f.createGroup(t, "alice")

	// No broadcaster expectation beyond creation: an emission would fail
	_, err := f.service.SendMessage(context.Background(), "mallory", group.ID, "let me in")
	req.ErrorIs(err, errors.ErrNotAMember)

	stored, err := f.messages.Recent(group.ID, 0)
	req.NoError(err)
	req.Empty(stored)

	_, err = f.service.SendMessage(context.Background(), "alice", "no-such-group", "hello")
	req.ErrorIs(err, errors.ErrGroupNotFound)
}

func Test_SendMessage_Fans_Out_To_Whole_Room(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	f := newGroupFixture(t, ctrl)
	group := f.createGroup(t, "alice", "bob")

	// The sender's connections are not excluded: all tabs stay consistent
	f.broadcaster.EXPECT().
		BroadcastRoom(chat.GroupRoom(group.ID), gomock.Any(), "").
		Do(func(_ chat.RoomID, e event.ServerEvent, _ string) {
			fanned := e.(event.GroupMessage)
			require.Equal(t, group.ID, fanned.GroupID)
			require.Equal(t, "a ******* here", fanned.Message.Content)
		})

	message, err := f.service.SendMessage(context.Background(), "alice", group.ID, "a badword here")
	req.NoError(err)

	// The sender counts as having read their own message
	req.Equal([]string{"alice"}, message.ReadBy)
	req.Equal("a ******* here", message.Content)

	// The message was handed to the indexer queue
	select {
	case queued := <-f.indexQueue:
		req.Equal(message.ID, queued.ID)
	default:
		t.Fatal("message never queued for indexing")
	}

	// Activity timestamp moved forward
	updated, err := f.groups.Get(group.ID)
	req.NoError(err)
	req.False(updated.UpdatedAt.Before(group.UpdatedAt))
}

func Test_MarkRead_Broadcasts_Only_When_State_Changed(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	f := newGroupFixture(t, ctrl)
	group := f.createGroup(t, "alice", "bob")

	f.broadcaster.EXPECT().BroadcastRoom(chat.GroupRoom(group.ID), gomock.Any(), "").AnyTimes()
	_, err := f.service.SendMessage(context.Background(), "alice", group.ID, "read me")
	req.NoError(err)

	// First acknowledgment changes state and is broadcast, excluding the
	// acknowledging connection
	f.broadcaster.EXPECT().
		BroadcastRoom(chat.GroupRoom(group.ID), event.MessagesReadStatus{UserID: "bob", GroupID: group.ID}, "conn-bob").
		Times(1)
	req.NoError(f.service.MarkRead(context.Background(), "conn-bob", "bob", group.ID))

	// Re-acknowledging changes nothing, so nothing is emitted
	req.NoError(f.service.MarkRead(context.Background(), "conn-bob", "bob", group.ID))

	req.ErrorIs(f.service.MarkRead(context.Background(), "conn-x", "mallory", group.ID), errors.ErrNotAMember)
}

func Test_GetGroup_Marks_Read_Without_Broadcast(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	f := newGroupFixture(t, ctrl)
	group := f.createGroup(t, "alice", "bob")

	f.broadcaster.EXPECT().BroadcastRoom(chat.GroupRoom(group.ID), gomock.Any(), "").Times(1)
	_, err := f.service.SendMessage(context.Background(), "alice", group.ID, "unread until fetched")
	req.NoError(err)

	// Fetching the group implicitly acknowledges; no read-status broadcast
	detail, err := f.service.GetGroup(context.Background(), "bob", group.ID)
	req.NoError(err)
	req.Equal(group.ID, detail.Group.ID)
	req.Len(detail.Members, 2)
	req.Len(detail.Messages, 1)
	req.True(detail.Messages[0].HasRead("bob"))

	_, err = f.service.GetGroup(context.Background(), "mallory", group.ID)
	req.ErrorIs(err, errors.ErrNotAMember)
}

func Test_AddMembers_Requires_Admin(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	f := newGroupFixture(t, ctrl)
	group := f.createGroup(t, "alice", "bob")

	// bob is a plain member and may not invite
	err := f.service.AddMembers(context.Background(), "bob", group.ID, []string{"carol"})
	req.ErrorIs(err, errors.ErrNotAdmin)

	// alice may; the room and the new member both hear about it
	f.broadcaster.EXPECT().BroadcastRoom(chat.GroupRoom(group.ID), gomock.Any(), "").Times(1)
	f.broadcaster.EXPECT().EmitUser("carol", gomock.Any()).Times(1)
	req.NoError(f.service.AddMembers(context.Background(), "alice", group.ID, []string{"carol"}))

	isMember, err := f.groups.IsMember(context.Background(), "carol", group.ID)
	req.NoError(err)
	req.True(isMember)
}

func Test_RemoveMember_Admin_Or_Self_Only(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	f := newGroupFixture(t, ctrl)
	group := f.createGroup(t, "alice", "bob", "carol")

	// bob cannot remove carol
	err := f.service.RemoveMember(context.Background(), "bob", group.ID, "carol")
	req.ErrorIs(err, errors.ErrNotAdmin)

	// but bob can remove himself
	f.broadcaster.EXPECT().BroadcastRoom(chat.GroupRoom(group.ID), gomock.Any(), "").Times(1)
	f.broadcaster.EXPECT().EmitUser("bob", event.GroupUpdate{
		Type:    event.GroupUpdateYouWereRemoved,
		GroupID: group.ID,
	}).Times(1)
	req.NoError(f.service.RemoveMember(context.Background(), "bob", group.ID, "bob"))

	// the admin can remove anyone else
	f.broadcaster.EXPECT().BroadcastRoom(chat.GroupRoom(group.ID), gomock.Any(), "").Times(1)
	f.broadcaster.EXPECT().EmitUser("carol", gomock.Any()).Times(1)
	req.NoError(f.service.RemoveMember(context.Background(), "alice", group.ID, "carol"))
}

func Test_Leave_Last_Admin_Is_Rejected(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	f := newGroupFixture(t, ctrl)
	group := f.createGroup(t, "alice", "bob")

	// The only admin cannot abandon the group; no event is emitted
	err := f.service.Leave(context.Background(), "alice", group.ID)
	req.ErrorIs(err, errors.ErrLastAdmin)

	// A plain member leaves freely
	f.broadcaster.EXPECT().BroadcastRoom(chat.GroupRoom(group.ID), event.GroupUpdate{
		Type:         event.GroupUpdateMemberLeft,
		GroupID:      group.ID,
		LeftMemberID: "bob",
	}, "").Times(1)
	req.NoError(f.service.Leave(context.Background(), "bob", group.ID))
}

func Test_Search_Requires_Membership(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	f := newGroupFixture(t, ctrl)
	group := f.createGroup(t, "alice")

	_, err := f.service.Search(context.Background(), "mallory", group.ID, "notes", 10)
	req.ErrorIs(err, errors.ErrNotAMember)
}
