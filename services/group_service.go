//go:generate go run go.uber.org/mock/mockgen -source=group_service.go -destination=../mocks/mock_group_service.go -package=mocks
package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"educhat/contract"
	"educhat/domain/chat"
	"educhat/domain/event"
	"educhat/errors"
	"educhat/moderation"
	"educhat/observability"
	"educhat/repositories"
)

const recentMessagesLimit = 50

type IGroupService interface {
	CreateGroup(ctx context.Context, creatorID, name, description string, memberIDs []string) (chat.Group, error)
	ListGroups(ctx context.Context, userID string) ([]chat.Group, error)
	GetGroup(ctx context.Context, userID, groupID string) (GroupDetail, error)
	SendMessage(ctx context.Context, senderID, groupID, content string) (chat.GroupMessage, error)
	AddMembers(ctx context.Context, actorID, groupID string, memberIDs []string) error
	RemoveMember(ctx context.Context, actorID, groupID, memberID string) error
	Leave(ctx context.Context, userID, groupID string) error
	MarkRead(ctx context.Context, connID, userID, groupID string) error
	Search(ctx context.Context, userID, groupID, terms string, limit int) ([]repositories.SearchHit, error)
}

// GroupDetail is a group with its members and recent messages, as returned
// by the fetch endpoint.
type GroupDetail struct {
	Group    chat.Group
	Members  []chat.Member
	Messages []chat.GroupMessage
}

// GroupService is the group half of the broadcast engine plus the
// read-tracking coordinator. Authorization is checked against the
// repository on every operation; the hub is never consulted for membership.
type GroupService struct {
	log         *slog.Logger
	groups      repositories.IGroupRepository
	messages    repositories.IGroupMessageRepository
	index       repositories.ISearchIndex
	broadcaster contract.Broadcaster
	moderator   *moderation.Moderator
	metrics     *observability.Metrics
	indexQueue  chan chat.GroupMessage
}

func NewGroupService(log *slog.Logger, groups repositories.IGroupRepository,
	messages repositories.IGroupMessageRepository, index repositories.ISearchIndex,
	broadcaster contract.Broadcaster, moderator *moderation.Moderator,
	metrics *observability.Metrics, indexQueue chan chat.GroupMessage) *GroupService {
	return &GroupService{
		log:         log,
		groups:      groups,
		messages:    messages,
		index:       index,
		broadcaster: broadcaster,
		moderator:   moderator,
		metrics:     metrics,
		indexQueue:  indexQueue,
	}
}

// CreateGroup persists the group with the creator as admin and the listed
// users as members, then notifies every member's notification room.
func (s *GroupService) CreateGroup(ctx context.Context, creatorID, name, description string,
	memberIDs []string) (chat.Group, error) {
	now := time.Now().UTC()
	group := chat.Group{
		ID:          uuid.New().String(),
		Name:        name,
		Description: description,
		CreatedBy:   creatorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	members := []chat.Member{{UserID: creatorID, GroupID: group.ID, Role: chat.RoleAdmin, JoinedAt: now}}
	for _, id := range memberIDs {
		if id == creatorID {
			continue
		}
		members = append(members, chat.Member{UserID: id, GroupID: group.ID, Role: chat.RoleMember, JoinedAt: now})
	}

	if err := s.groups.Create(group, members); err != nil {
		return chat.Group{}, err
	}

	notification := event.GroupUpdate{
		Type:      event.GroupUpdateNewGroup,
		GroupID:   group.ID,
		GroupName: group.Name,
		NewMembers: lo.Map(members, func(m chat.Member, _ int) string {
			return m.UserID
		}),
	}
	for _, m := range members {
		s.broadcaster.EmitUser(m.UserID, notification)
	}

	s.log.Info("Group created", "group_id", group.ID, "members", len(members))
	return group, nil
}

func (s *GroupService) ListGroups(_ context.Context, userID string) ([]chat.Group, error) {
	return s.groups.ListForUser(userID)
}

// GetGroup returns the group with members and its most recent messages.
// Fetching marks every unread message as read for the caller, without a
// read-status broadcast: the explicit mark-read operation owns that.
func (s *GroupService) GetGroup(ctx context.Context, userID, groupID string) (GroupDetail, error) {
	if err := s.requireMember(ctx, userID, groupID); err != nil {
		return GroupDetail{}, err
	}

	group, err := s.groups.Get(groupID)
	if err != nil {
		return GroupDetail{}, err
	}
	members, err := s.groups.Members(groupID)
	if err != nil {
		return GroupDetail{}, err
	}

	if _, err := s.messages.MarkRead(groupID, userID); err != nil {
		return GroupDetail{}, err
	}
	messages, err := s.messages.Recent(groupID, recentMessagesLimit)
	if err != nil {
		return GroupDetail{}, err
	}

	return GroupDetail{Group: group, Members: members, Messages: messages}, nil
}

// SendMessage persists the message with readBy = {sender}, bumps the
// group's activity timestamp and fans out group_message to the group room.
// Every subscribed connection receives it, the sender's included, keeping
// multiple tabs consistent. No emission happens when persistence fails.
func (s *GroupService) SendMessage(ctx context.Context, senderID, groupID, content string) (chat.GroupMessage, error) {
	if err := s.requireMember(ctx, senderID, groupID); err != nil {
		return chat.GroupMessage{}, err
	}

	censored, censoredWords := s.moderator.Censor(content)
	if len(censoredWords) > 0 {
		s.log.Info("Group message censored", "group_id", groupID, "words", len(censoredWords))
	}

	message := chat.GroupMessage{
		ID:        uuid.New(),
		GroupID:   groupID,
		SenderID:  senderID,
		Content:   censored,
		ReadBy:    []string{senderID},
		CreatedAt: time.Now().UTC(),
	}
	if err := s.messages.Store(message); err != nil {
		return chat.GroupMessage{}, err
	}
	s.metrics.MessagesStored.Add(1)

	if err := s.groups.Touch(groupID, message.CreatedAt); err != nil {
		s.log.Warn("Updating group activity failed", "group_id", groupID, "error", err)
	}
	s.enqueueIndex(message)

	s.broadcaster.BroadcastRoom(chat.GroupRoom(groupID), event.GroupMessage{
		GroupID: groupID,
		Message: event.NewGroupMessagePayload(message),
	}, "")

	return message, nil
}

// AddMembers is admin-only. New members are notified on their own rooms;
// the group room hears members_added.
func (s *GroupService) AddMembers(ctx context.Context, actorID, groupID string, memberIDs []string) error {
	if err := s.requireAdmin(actorID, groupID); err != nil {
		return err
	}

	now := time.Now().UTC()
	members := lo.Map(memberIDs, func(id string, _ int) chat.Member {
		return chat.Member{UserID: id, GroupID: groupID, Role: chat.RoleMember, JoinedAt: now}
	})
	if err := s.groups.AddMembers(groupID, members); err != nil {
		return err
	}

	group, err := s.groups.Get(groupID)
	if err != nil {
		return err
	}

	notification := event.GroupUpdate{
		Type:       event.GroupUpdateMembersAdded,
		GroupID:    groupID,
		GroupName:  group.Name,
		NewMembers: memberIDs,
	}
	s.broadcaster.BroadcastRoom(chat.GroupRoom(groupID), notification, "")
	for _, id := range memberIDs {
		s.broadcaster.EmitUser(id, notification)
	}
	return nil
}

// RemoveMember removes a membership, admin-only unless removing oneself.
// The last-admin invariant is enforced atomically by the repository.
func (s *GroupService) RemoveMember(ctx context.Context, actorID, groupID, memberID string) error {
	if actorID != memberID {
		if err := s.requireAdmin(actorID, groupID); err != nil {
			return err
		}
	}

	if err := s.groups.RemoveMember(groupID, memberID); err != nil {
		return err
	}

	s.broadcaster.BroadcastRoom(chat.GroupRoom(groupID), event.GroupUpdate{
		Type:            event.GroupUpdateMemberRemoved,
		GroupID:         groupID,
		RemovedMemberID: memberID,
	}, "")
	s.broadcaster.EmitUser(memberID, event.GroupUpdate{
		Type:    event.GroupUpdateYouWereRemoved,
		GroupID: groupID,
	})
	return nil
}

// Leave is self-removal with the same last-admin guard.
func (s *GroupService) Leave(ctx context.Context, userID, groupID string) error {
	if err := s.groups.RemoveMember(groupID, userID); err != nil {
		return err
	}

	s.broadcaster.BroadcastRoom(chat.GroupRoom(groupID), event.GroupUpdate{
		Type:         event.GroupUpdateMemberLeft,
		GroupID:      groupID,
		LeftMemberID: userID,
	}, "")
	return nil
}

// MarkRead appends the user to the read-by set of every unread message
// not their own, then broadcasts the read-state delta to the group room,
// excluding the originating connection. Nothing is emitted when no message
// changed: peers already hold the current state.
func (s *GroupService) MarkRead(ctx context.Context, connID, userID, groupID string) error {
	if err := s.requireMember(ctx, userID, groupID); err != nil {
		return err
	}

	updated, err := s.messages.MarkRead(groupID, userID)
	if err != nil {
		return err
	}
	if updated == 0 {
		return nil
	}

	s.broadcaster.BroadcastRoom(chat.GroupRoom(groupID), event.MessagesReadStatus{
		UserID:  userID,
		GroupID: groupID,
	}, connID)
	return nil
}

// Search runs a member-only full-text query over the group's messages.
func (s *GroupService) Search(ctx context.Context, userID, groupID, terms string, limit int) ([]repositories.SearchHit, error) {
	if err := s.requireMember(ctx, userID, groupID); err != nil {
		return nil, err
	}
	return s.index.Search(ctx, groupID, terms, limit)
}

func (s *GroupService) requireMember(ctx context.Context, userID, groupID string) error {
	if _, err := s.groups.Get(groupID); err != nil {
		return err
	}
	ok, err := s.groups.IsMember(ctx, userID, groupID)
	if err != nil {
		return err
	}
	if !ok {
		return errors.ErrNotAMember
	}
	return nil
}

func (s *GroupService) requireAdmin(actorID, groupID string) error {
	member, err := s.groups.GetMember(groupID, actorID)
	if err != nil {
		return err
	}
	if member.Role != chat.RoleAdmin {
		return errors.ErrNotAdmin
	}
	return nil
}

// enqueueIndex hands the message to the indexer worker without ever
// blocking the send path.
func (s *GroupService) enqueueIndex(message chat.GroupMessage) {
	if s.indexQueue == nil {
		return
	}
	select {
	case s.indexQueue <- message:
	default:
		s.log.Warn("Indexing queue full, skipping message", "message_id", message.ID)
	}
}
