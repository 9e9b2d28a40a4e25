//go:generate go run go.uber.org/mock/mockgen -source=group.go -destination=../mocks/mock_group_repository.go -package=mocks
package repositories

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"educhat/domain/chat"
	"educhat/errors"
)

type IGroupRepository interface {
	Create(group chat.Group, members []chat.Member) error
	Get(groupID string) (chat.Group, error)
	Touch(groupID string, at time.Time) error
	ListForUser(userID string) ([]chat.Group, error)
	Members(groupID string) ([]chat.Member, error)
	GetMember(groupID, userID string) (chat.Member, error)
	AddMembers(groupID string, members []chat.Member) error
	RemoveMember(groupID, userID string) error

	// contract.Membership
	GroupsForUser(ctx context.Context, userID string) ([]string, error)
	IsMember(ctx context.Context, userID, groupID string) (bool, error)
}

// GroupRepository persists groups and memberships in BadgerDB.
//
// Key layout:
//
//	group:{groupID}              group record
//	member:{groupID}:{userID}    membership record (role)
//	usergroup:{userID}:{groupID} reverse index for per-user listing
//
// The membership key doubles as the admin counter: the last-admin guard in
// RemoveMember runs inside the same transaction as the delete, so the
// invariant cannot be raced away.
type GroupRepository struct {
	db *badger.DB
}

func NewGroupRepository(db *badger.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

type diskGroup struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type diskMember struct {
	UserID   string    `json:"user_id"`
	GroupID  string    `json:"group_id"`
	Role     chat.Role `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

func groupKey(groupID string) []byte { return []byte("group:" + groupID) }

func memberKey(groupID, userID string) []byte {
	return []byte("member:" + groupID + ":" + userID)
}

func userGroupKey(userID, groupID string) []byte {
	return []byte("usergroup:" + userID + ":" + groupID)
}

// Create stores the group and its initial members in one transaction.
func (g *GroupRepository) Create(group chat.Group, members []chat.Member) error {
	groupBytes, err := json.Marshal(fromGroup(group))
	if err != nil {
		return err
	}
	return g.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(groupKey(group.ID), groupBytes); err != nil {
			return err
		}
		for _, m := range members {
			if err := setMember(txn, m); err != nil {
				return err
			}
		}
		return nil
	})
}

func setMember(txn *badger.Txn, m chat.Member) error {
	memberBytes, err := json.Marshal(fromMember(m))
	if err != nil {
		return err
	}
	if err := txn.Set(memberKey(m.GroupID, m.UserID), memberBytes); err != nil {
		return err
	}
	return txn.Set(userGroupKey(m.UserID, m.GroupID), []byte(m.GroupID))
}

func (g *GroupRepository) Get(groupID string) (chat.Group, error) {
	var dg diskGroup
	err := g.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(groupKey(groupID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &dg)
		})
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return chat.Group{}, errors.ErrGroupNotFound
	}
	if err != nil {
		return chat.Group{}, err
	}
	return toGroup(dg), nil
}

// Touch updates the group's last-activity timestamp.
func (g *GroupRepository) Touch(groupID string, at time.Time) error {
	return g.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(groupKey(groupID))
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return errors.ErrGroupNotFound
		}
		if err != nil {
			return err
		}
		var dg diskGroup
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &dg)
		}); err != nil {
			return err
		}
		dg.UpdatedAt = at.UTC()
		bytes, err := json.Marshal(dg)
		if err != nil {
			return err
		}
		return txn.Set(groupKey(groupID), bytes)
	})
}

// ListForUser returns the caller's groups, most recently active first.
func (g *GroupRepository) ListForUser(userID string) ([]chat.Group, error) {
	groupIDs, err := g.GroupsForUser(context.Background(), userID)
	if err != nil {
		return nil, err
	}
	groups := make([]chat.Group, 0, len(groupIDs))
	for _, id := range groupIDs {
		group, err := g.Get(id)
		if stderrors.Is(err, errors.ErrGroupNotFound) {
			continue // dangling index entry, skip
		}
		if err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].UpdatedAt.After(groups[j].UpdatedAt)
	})
	return groups, nil
}

func (g *GroupRepository) Members(groupID string) ([]chat.Member, error) {
	var members []chat.Member
	err := g.db.View(func(txn *badger.Txn) error {
		prefix := []byte("member:" + groupID + ":")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var dm diskMember
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &dm)
			}); err != nil {
				return err
			}
			members = append(members, toMember(dm))
		}
		return nil
	})
	return members, err
}

func (g *GroupRepository) GetMember(groupID, userID string) (chat.Member, error) {
	var dm diskMember
	err := g.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(memberKey(groupID, userID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &dm)
		})
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return chat.Member{}, errors.ErrNotAMember
	}
	if err != nil {
		return chat.Member{}, err
	}
	return toMember(dm), nil
}

// AddMembers inserts the given memberships, skipping users that already
// belong to the group so re-invites cannot demote an admin.
func (g *GroupRepository) AddMembers(groupID string, members []chat.Member) error {
	return g.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(groupKey(groupID)); stderrors.Is(err, badger.ErrKeyNotFound) {
			return errors.ErrGroupNotFound
		} else if err != nil {
			return err
		}
		for _, m := range members {
			if _, err := txn.Get(memberKey(groupID, m.UserID)); err == nil {
				continue
			} else if !stderrors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			if err := setMember(txn, m); err != nil {
				return err
			}
		}
		return nil
	})
}

// RemoveMember deletes a membership. When the target is an admin, the
// admin count is checked inside the same transaction: removing the last
// admin is rejected with ErrLastAdmin and nothing changes.
func (g *GroupRepository) RemoveMember(groupID, userID string) error {
	return g.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(memberKey(groupID, userID))
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return errors.ErrNotAMember
		}
		if err != nil {
			return err
		}
		var dm diskMember
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &dm)
		}); err != nil {
			return err
		}

		if dm.Role == chat.RoleAdmin {
			admins, err := countAdmins(txn, groupID)
			if err != nil {
				return err
			}
			if admins <= 1 {
				return errors.ErrLastAdmin
			}
		}

		if err := txn.Delete(memberKey(groupID, userID)); err != nil {
			return err
		}
		return txn.Delete(userGroupKey(userID, groupID))
	})
}

func countAdmins(txn *badger.Txn, groupID string) (int, error) {
	count := 0
	prefix := []byte("member:" + groupID + ":")
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		var dm diskMember
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &dm)
		}); err != nil {
			return 0, err
		}
		if dm.Role == chat.RoleAdmin {
			count++
		}
	}
	return count, nil
}

// GroupsForUser scans the reverse index. Implements contract.Membership.
func (g *GroupRepository) GroupsForUser(_ context.Context, userID string) ([]string, error) {
	var groupIDs []string
	err := g.db.View(func(txn *badger.Txn) error {
		prefix := []byte("usergroup:" + userID + ":")
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			groupIDs = append(groupIDs, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	return groupIDs, err
}

// IsMember implements contract.Membership.
func (g *GroupRepository) IsMember(_ context.Context, userID, groupID string) (bool, error) {
	err := g.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(memberKey(groupID, userID))
		return err
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func fromGroup(g chat.Group) diskGroup {
	return diskGroup{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		CreatedBy:   g.CreatedBy,
		CreatedAt:   g.CreatedAt.UTC(),
		UpdatedAt:   g.UpdatedAt.UTC(),
	}
}

func toGroup(dg diskGroup) chat.Group {
	return chat.Group{
		ID:          dg.ID,
		Name:        dg.Name,
		Description: dg.Description,
		CreatedBy:   dg.CreatedBy,
		CreatedAt:   dg.CreatedAt.UTC(),
		UpdatedAt:   dg.UpdatedAt.UTC(),
	}
}

func fromMember(m chat.Member) diskMember {
	return diskMember{
		UserID:   m.UserID,
		GroupID:  m.GroupID,
		Role:     m.Role,
		JoinedAt: m.JoinedAt.UTC(),
	}
}

func toMember(dm diskMember) chat.Member {
	return chat.Member{
		UserID:   dm.UserID,
		GroupID:  dm.GroupID,
		Role:     dm.Role,
		JoinedAt: dm.JoinedAt.UTC(),
	}
}
