package repositories

import (
	"log/slog"
	"testing"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/stretchr/testify/require"
)

func Test_Search_Is_Scoped_To_Group(t *testing.T) {
	req := require.New(t)

	writer, err := bluge.OpenWriter(bluge.DefaultConfig(t.TempDir()))
	req.NoError(err)
	defer writer.Close()

	index := NewSearchIndex(writer, slog.Default())
	at := time.Now().UTC()
	match := groupMessage("g1", "alice", "the homework deadline moved to friday", at)
	req.NoError(index.Index(match))
	req.NoError(index.Index(groupMessage("g1", "bob", "see you at lunch", at)))
	req.NoError(index.Index(groupMessage("g2", "carol", "deadline reminder for chapter two", at)))

	// Only g1 messages can match, even though g2 also mentions the term
	hits, err := index.Search(t.Context(), "g1", "deadline", 10)
	req.NoError(err)
	req.Len(hits, 1)
	req.Equal(match.ID.String(), hits[0].MessageID)
	req.Equal("g1", hits[0].GroupID)
	req.Contains(hits[0].Content, "deadline")
}

func Test_Search_No_Match(t *testing.T) {
	req := require.New(t)

	writer, err := bluge.OpenWriter(bluge.DefaultConfig(t.TempDir()))
	req.NoError(err)
	defer writer.Close()

	index := NewSearchIndex(writer, slog.Default())
	req.NoError(index.Index(groupMessage("g1", "alice", "nothing relevant here", time.Now())))

	hits, err := index.Search(t.Context(), "g1", "quantum", 10)
	req.NoError(err)
	req.Empty(hits)
}
