// Package provider implements the llm.Provider interface against concrete
// completion backends.
package provider

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/lin/qichat/internal/domain"
	"github.com/lin/qichat/pkg/llm"
)

// Config holds completion backend settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// OpenAI is an llm.Provider backed by the OpenAI chat completions API
// (or any compatible endpoint via BaseURL).
type OpenAI struct {
	client openai.Client
	model  string
}

var _ llm.Provider = (*OpenAI)(nil)

// NewOpenAI creates a provider from config.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	return &OpenAI{client: openai.NewClient(opts...), model: model}, nil
}

func (p *OpenAI) ID() string {
	return "openai"
}

func (p *OpenAI) Model() string {
	return p.model
}

func (p *OpenAI) SendMessage(ctx context.Context, messages []domain.Message) (string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    p.model,
		Messages: convertMessages(messages),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *OpenAI) StreamMessage(ctx context.Context, messages []domain.Message, onChunk func(string)) (string, error) {
	stream := p.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Model:    p.model,
		Messages: convertMessages(messages),
	})

	acc := openai.ChatCompletionAccumulator{}
	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" && onChunk != nil {
			onChunk(chunk.Choices[0].Delta.Content)
		}
	}
	if err := stream.Err(); err != nil {
		return "", fmt.Errorf("chat stream: %w", err)
	}
	if len(acc.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return acc.Choices[0].Message.Content, nil
}

func convertMessages(msgs []domain.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case domain.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case domain.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
