package domain

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// titleLimit is the number of characters taken from the first user message
// when deriving a conversation title.
const titleLimit = 50

// Conversation is a chat session: an append-only transcript plus attachments.
//
// A conversation starts ephemeral. The moment it gains its first message or
// attachment it becomes persistent, and never goes back — the Ephemeral flag
// is a one-way latch for the lifetime of the in-memory object. Callers mutate
// conversations through AddMessage/AddAttachment so the latch holds.
type Conversation struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	Messages    []Message      `json:"messages"`
	Attachments []Attachment   `json:"attachments"`
	Metadata    map[string]any `json:"metadata,omitempty"`

	// Ephemeral is false for any conversation loaded from storage: absence
	// of the field in a persisted record means the record was saved, and
	// saved conversations are persistent by definition.
	Ephemeral bool `json:"is_ephemeral"`
}

// NewConversation creates an empty ephemeral conversation.
func NewConversation() *Conversation {
	now := time.Now()
	return &Conversation{
		ID:        ulid.Make().String(),
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  map[string]any{},
		Ephemeral: true,
	}
}

// AddMessage appends a message, derives the title from the first user
// message when none is set, and latches the conversation persistent.
func (c *Conversation) AddMessage(msg Message) {
	c.Messages = append(c.Messages, msg)
	c.UpdatedAt = time.Now()

	if c.Title == "" && msg.Role == RoleUser {
		c.Title = TruncateTitle(msg.Content)
	}

	if c.Ephemeral && c.HasContent() {
		c.Ephemeral = false
	}
}

// AddAttachment appends an attachment and latches the conversation persistent.
func (c *Conversation) AddAttachment(att Attachment) {
	c.Attachments = append(c.Attachments, att)
	c.UpdatedAt = time.Now()

	if c.Ephemeral {
		c.Ephemeral = false
	}
}

// HasContent reports whether the conversation holds any message or attachment.
func (c *Conversation) HasContent() bool {
	return len(c.Messages) > 0 || len(c.Attachments) > 0
}

// IsEmptyEphemeral reports whether the conversation may be silently
// discarded: still ephemeral and without content.
func (c *Conversation) IsEmptyEphemeral() bool {
	return c.Ephemeral && !c.HasContent()
}

// MarkPersistent flips the ephemeral latch if the conversation has content.
// Returns whether the flip happened on this call.
func (c *Conversation) MarkPersistent() bool {
	if c.Ephemeral && c.HasContent() {
		c.Ephemeral = false
		return true
	}
	return false
}

// LastMessage returns the most recent message, or nil for an empty transcript.
func (c *Conversation) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return &c.Messages[len(c.Messages)-1]
}

// MessagesByRole returns the messages authored by the given role, in order.
func (c *Conversation) MessagesByRole(role Role) []Message {
	var out []Message
	for _, m := range c.Messages {
		if m.Role == role {
			out = append(out, m)
		}
	}
	return out
}

// TruncateTitle shortens text to the title limit, counting characters rather
// than bytes so multi-byte content truncates cleanly.
func TruncateTitle(text string) string {
	runes := []rune(text)
	if len(runes) <= titleLimit {
		return text
	}
	return string(runes[:titleLimit]) + "..."
}
