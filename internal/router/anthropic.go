package router

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/geomind/agentcore/pkg/models"
)

// AnthropicBackend speaks the Messages API.
type AnthropicBackend struct {
	client      *anthropic.Client
	model       anthropic.Model
	temperature float64
	maxTokens   int64
}

// NewAnthropicBackend creates an Anthropic backend. An empty apiKey falls
// back to ANTHROPIC_API_KEY.
func NewAnthropicBackend(endpoint, apiKey, model string) *AnthropicBackend {
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if endpoint != "" {
		opts = append(opts, option.WithBaseURL(endpoint))
	}
	client := anthropic.NewClient(opts...)

	m := anthropic.Model(model)
	if model == "" {
		m = anthropic.ModelClaude3_7SonnetLatest
	}
	return &AnthropicBackend{client: &client, model: m, temperature: 0.3, maxTokens: 4096}
}

func (b *AnthropicBackend) Name() string { return "anthropic:" + string(b.model) }

// SendChat sends one non-streaming message request. System turns inside
// the conversation are folded into the system prompt.
func (b *AnthropicBackend) SendChat(ctx context.Context, turns []models.ChatMessage, systemPrompt string) (string, error) {
	system := []string{}
	if systemPrompt != "" {
		system = append(system, systemPrompt)
	}

	messages := make([]anthropic.MessageParam, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case "system":
			system = append(system, t.Content)
		case "assistant":
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(t.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(t.Content)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:       b.model,
		Messages:    messages,
		MaxTokens:   b.maxTokens,
		Temperature: anthropic.Float(b.temperature),
	}
	if len(system) > 0 {
		params.System = []anthropic.TextBlockParam{{Text: strings.Join(system, "\n\n")}}
	}

	resp, err := b.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", &StatusError{Backend: "anthropic", Code: apiErr.StatusCode, Body: apiErr.Error()}
		}
		return "", fmt.Errorf("anthropic: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.AsText().Text)
		}
	}
	return text.String(), nil
}
