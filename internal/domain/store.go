package domain

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound indicates the requested conversation does not exist.
var ErrNotFound = errors.New("conversation not found")

// NotFoundError wraps ErrNotFound with the missing id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("conversation not found: %s", e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// IsNotFound checks whether an error means "no such conversation".
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// ConversationStore persists conversations. Implementations must order List
// by UpdatedAt descending, and Delete must be a no-op for ids that were
// never saved.
type ConversationStore interface {
	Save(ctx context.Context, conv *Conversation) error
	Load(ctx context.Context, id string) (*Conversation, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*Conversation, error)
}

// SettingsStore holds the small amount of cross-launch state the session
// lifecycle needs. LastActiveChat returns "" when nothing was recorded.
type SettingsStore interface {
	LastActiveChat(ctx context.Context) (string, error)
	SetLastActiveChat(ctx context.Context, id string) error
	ClearLastActiveChat(ctx context.Context) error
}
