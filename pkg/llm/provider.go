// Package llm defines the completion provider interface the chat shell
// talks to. The session lifecycle never depends on a concrete vendor;
// implementations live in internal/provider.
package llm

import (
	"context"

	"github.com/lin/qichat/internal/domain"
)

// Provider is the interface all completion backends must implement.
type Provider interface {
	ID() string
	Model() string

	// SendMessage sends the conversation so far and returns the assistant
	// reply for the newest user message.
	SendMessage(ctx context.Context, messages []domain.Message) (string, error)

	// StreamMessage is the streaming variant: chunks arrive through onChunk
	// in order, and the full reply is returned once the stream ends.
	StreamMessage(ctx context.Context, messages []domain.Message, onChunk func(string)) (string, error)
}
