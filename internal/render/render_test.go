package render

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/lin/qichat/internal/domain"
)

func TestWriterHelpers(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	w.Println("✓ Deleted: %s", "chat-1")
	w.Item("%s %d chats", "work", 2)
	w.Empty("No folders")

	assert.Equal(t, "✓ Deleted: chat-1\n  work 2 chats\nNo folders\n", buf.String())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "lon...", Truncate("long enough", 6))
	assert.Equal(t, "很长的...", Truncate("很长的标题超过限制", 6), "counts runes, not bytes")
	assert.Equal(t, "ab", Truncate("abcdef", 2))
}

func listChat(title string) *domain.Conversation {
	c := domain.NewConversation()
	c.AddMessage(domain.NewUserMessage(title))
	c.UpdatedAt = time.Now()
	return c
}

func TestConversationListMarksStarred(t *testing.T) {
	a := listChat("starred one")
	b := listChat("plain one")

	out := New(true).ConversationList(
		[]*domain.Conversation{a, b},
		map[string]bool{a.ID: true},
	)

	assert.Contains(t, out, "★")
	assert.Contains(t, out, "starred one")
}

func TestConversationListNilStarredSet(t *testing.T) {
	out := New(false).ConversationList([]*domain.Conversation{listChat("x")}, nil)
	assert.NotContains(t, out, "★")
}
