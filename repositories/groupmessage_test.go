package repositories

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"educhat/domain/chat"
)

func groupMessage(groupID, sender, content string, at time.Time) chat.GroupMessage {
	return chat.GroupMessage{
		ID:        uuid.New(),
		GroupID:   groupID,
		SenderID:  sender,
		Content:   content,
		ReadBy:    []string{},
		CreatedAt: at.UTC(),
	}
}

func Test_Recent_Returns_Newest_First_With_Limit(t *testing.T) {
	req := require.New(t)
	repo := NewGroupMessageRepository(openTestDB(t))

	at := time.Now().UTC()
	for i, content := range []string{"first", "second", "third"} {
		req.NoError(repo.Store(groupMessage("g1", "alice", content, at.Add(time.Duration(i)*time.Minute))))
	}
	req.NoError(repo.Store(groupMessage("g2", "bob", "elsewhere", at)))

	messages, err := repo.Recent("g1", 2)
	req.NoError(err)
	req.Len(messages, 2)
	req.Equal("third", messages[0].Content)
	req.Equal("second", messages[1].Content)

	all, err := repo.Recent("g1", 0)
	req.NoError(err)
	req.Len(all, 3)
}

func Test_MarkRead_Is_Monotonic_And_Idempotent(t *testing.T) {
	req := require.New(t)
	repo := NewGroupMessageRepository(openTestDB(t))

	at := time.Now().UTC()
	fromAlice := groupMessage("g1", "alice", "hello", at)
	fromBob := groupMessage("g1", "bob", "hi back", at.Add(time.Minute))
	req.NoError(repo.Store(fromAlice))
	req.NoError(repo.Store(fromBob))

	// When bob acknowledges the group
	updated, err := repo.MarkRead("g1", "bob")
	req.NoError(err)

	// Then only alice's message is newly marked; bob never reads his own
	req.Equal(1, updated)
	messages, err := repo.Recent("g1", 0)
	req.NoError(err)
	for _, message := range messages {
		if message.SenderID == "alice" {
			req.True(message.HasRead("bob"))
		} else {
			req.False(message.HasRead("bob"))
		}
	}

	// Re-acknowledging marks nothing new
	updated, err = repo.MarkRead("g1", "bob")
	req.NoError(err)
	req.Equal(0, updated)

	// A second reader grows the set without touching bob's entry
	updated, err = repo.MarkRead("g1", "carol")
	req.NoError(err)
	req.Equal(2, updated)
	messages, err = repo.Recent("g1", 0)
	req.NoError(err)
	for _, message := range messages {
		req.True(message.HasRead("carol"))
	}
	req.True(messages[1].HasRead("bob"))
}

func Test_MarkRead_Empty_Group(t *testing.T) {
	req := require.New(t)
	repo := NewGroupMessageRepository(openTestDB(t))

	updated, err := repo.MarkRead("empty", "alice")
	req.NoError(err)
	req.Equal(0, updated)
}
