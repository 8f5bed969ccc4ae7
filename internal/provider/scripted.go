package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/lin/qichat/internal/domain"
	"github.com/lin/qichat/pkg/llm"
)

// Scripted is an offline llm.Provider that replays canned replies. It backs
// tests and the no-API-key mode of the chat shell.
type Scripted struct {
	mu      sync.Mutex
	replies []string
	next    int

	// Calls records the last user message of every request.
	Calls []string
}

var _ llm.Provider = (*Scripted)(nil)

// NewScripted creates a provider that cycles through the given replies.
// With no replies it echoes the last user message.
func NewScripted(replies ...string) *Scripted {
	return &Scripted{replies: replies}
}

func (p *Scripted) ID() string {
	return "scripted"
}

func (p *Scripted) Model() string {
	return "scripted"
}

func (p *Scripted) SendMessage(ctx context.Context, messages []domain.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	last := ""
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == domain.RoleUser {
			last = messages[i].Content
			break
		}
	}
	p.Calls = append(p.Calls, last)

	if len(p.replies) == 0 {
		return fmt.Sprintf("(offline) %s", last), nil
	}

	reply := p.replies[p.next%len(p.replies)]
	p.next++
	return reply, nil
}

func (p *Scripted) StreamMessage(ctx context.Context, messages []domain.Message, onChunk func(string)) (string, error) {
	reply, err := p.SendMessage(ctx, messages)
	if err != nil {
		return "", err
	}
	if onChunk != nil {
		onChunk(reply)
	}
	return reply, nil
}
