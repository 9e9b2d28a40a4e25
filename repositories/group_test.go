package repositories

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"educhat/domain/chat"
	"educhat/errors"
)

func seedGroup(t *testing.T, repo *GroupRepository, id string, members ...chat.Member) chat.Group {
	t.Helper()
	now := time.Now().UTC()
	group := chat.Group{
		ID:        id,
		Name:      "Math study " + id,
		CreatedBy: "alice",
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, repo.Create(group, members))
	return group
}

func member(groupID, userID string, role chat.Role) chat.Member {
	return chat.Member{
		UserID:   userID,
		GroupID:  groupID,
		Role:     role,
		JoinedAt: time.Now().UTC(),
	}
}

func Test_Create_And_Get_Group(t *testing.T) {
	req := require.New(t)
	repo := NewGroupRepository(openTestDB(t))

	created := seedGroup(t, repo, "g1",
		member("g1", "alice", chat.RoleAdmin),
		member("g1", "bob", chat.RoleMember),
	)

	fetched, err := repo.Get("g1")
	req.NoError(err)
	req.Equal(created.Name, fetched.Name)
	req.Equal("alice", fetched.CreatedBy)

	members, err := repo.Members("g1")
	req.NoError(err)
	req.Len(members, 2)

	_, err = repo.Get("missing")
	req.ErrorIs(err, errors.ErrGroupNotFound)
}

func Test_Membership_Queries(t *testing.T) {
	req := require.New(t)
	repo := NewGroupRepository(openTestDB(t))

	seedGroup(t, repo, "g1", member("g1", "alice", chat.RoleAdmin))
	seedGroup(t, repo, "g2", member("g2", "alice", chat.RoleMember))

	groups, err := repo.GroupsForUser(t.Context(), "alice")
	req.NoError(err)
	req.ElementsMatch([]string{"g1", "g2"}, groups)

	isMember, err := repo.IsMember(t.Context(), "alice", "g1")
	req.NoError(err)
	req.True(isMember)

	isMember, err = repo.IsMember(t.Context(), "bob", "g1")
	req.NoError(err)
	req.False(isMember)

	admin, err := repo.GetMember("g1", "alice")
	req.NoError(err)
	req.Equal(chat.RoleAdmin, admin.Role)

	_, err = repo.GetMember("g1", "bob")
	req.ErrorIs(err, errors.ErrNotAMember)
}

func Test_AddMembers_Skips_Existing(t *testing.T) {
	req := require.New(t)
	repo := NewGroupRepository(openTestDB(t))

	seedGroup(t, repo, "g1", member("g1", "alice", chat.RoleAdmin))

	// When alice is re-invited as a plain member alongside a new user
	err := repo.AddMembers("g1", []chat.Member{
		member("g1", "alice", chat.RoleMember),
		member("g1", "bob", chat.RoleMember),
	})
	req.NoError(err)

	// Then her admin role survives the re-invite
	alice, err := repo.GetMember("g1", "alice")
	req.NoError(err)
	req.Equal(chat.RoleAdmin, alice.Role)

	bob, err := repo.GetMember("g1", "bob")
	req.NoError(err)
	req.Equal(chat.RoleMember, bob.Role)

	req.ErrorIs(repo.AddMembers("missing", nil), errors.ErrGroupNotFound)
}

func Test_RemoveMember_Guards_Last_Admin(t *testing.T) {
	req := require.New(t)
	repo := NewGroupRepository(openTestDB(t))

	seedGroup(t, repo, "g1",
		member("g1", "alice", chat.RoleAdmin),
		member("g1", "bob", chat.RoleMember),
	)

	// Removing the only admin is rejected and nothing changes
	err := repo.RemoveMember("g1", "alice")
	req.ErrorIs(err, errors.ErrLastAdmin)
	stillThere, err := repo.IsMember(t.Context(), "alice", "g1")
	req.NoError(err)
	req.True(stillThere)

	// A plain member can always be removed
	req.NoError(repo.RemoveMember("g1", "bob"))
	gone, err := repo.IsMember(t.Context(), "bob", "g1")
	req.NoError(err)
	req.False(gone)

	// With a second admin in place, the first one may leave
	req.NoError(repo.AddMembers("g1", []chat.Member{member("g1", "carol", chat.RoleAdmin)}))
	req.NoError(repo.RemoveMember("g1", "alice"))

	req.ErrorIs(repo.RemoveMember("g1", "ghost"), errors.ErrNotAMember)
}

func Test_ListForUser_Orders_By_Activity(t *testing.T) {
	req := require.New(t)
	repo := NewGroupRepository(openTestDB(t))

	seedGroup(t, repo, "g1", member("g1", "alice", chat.RoleAdmin))
	seedGroup(t, repo, "g2", member("g2", "alice", chat.RoleAdmin))

	// Touching g1 makes it the most recently active group
	req.NoError(repo.Touch("g1", time.Now().UTC().Add(time.Hour)))

	groups, err := repo.ListForUser("alice")
	req.NoError(err)
	req.Len(groups, 2)
	req.Equal("g1", groups[0].ID)
	req.Equal("g2", groups[1].ID)

	req.ErrorIs(repo.Touch("missing", time.Now()), errors.ErrGroupNotFound)
}
