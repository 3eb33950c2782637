package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/geomind/agentcore/pkg/models"
)

// OpenAIBackend speaks the Chat Completions API. Any OpenAI-compatible
// server works through a custom endpoint.
type OpenAIBackend struct {
	client      *openai.Client
	model       string
	temperature float64
	maxTokens   int64
}

// NewOpenAIBackend creates an OpenAI-compatible backend. An empty apiKey
// falls back to OPENAI_API_KEY; an empty endpoint to the public API.
func NewOpenAIBackend(endpoint, apiKey, model string) *OpenAIBackend {
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if endpoint != "" {
		opts = append(opts, option.WithBaseURL(endpoint))
	}
	client := openai.NewClient(opts...)
	if model == "" {
		model = openai.ChatModelGPT4oMini
	}
	return &OpenAIBackend{client: &client, model: model, temperature: 0.3, maxTokens: 4096}
}

func (b *OpenAIBackend) Name() string { return "openai:" + b.model }

// SendChat sends one non-streaming completion request.
func (b *OpenAIBackend) SendChat(ctx context.Context, turns []models.ChatMessage, systemPrompt string) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns)+1)
	if systemPrompt != "" {
		messages = append(messages, openai.SystemMessage(systemPrompt))
	}
	for _, t := range turns {
		switch t.Role {
		case "assistant":
			messages = append(messages, openai.AssistantMessage(t.Content))
		case "system":
			messages = append(messages, openai.SystemMessage(t.Content))
		default:
			messages = append(messages, openai.UserMessage(t.Content))
		}
	}

	resp, err := b.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               b.model,
		Temperature:         openai.Float(b.temperature),
		MaxCompletionTokens: openai.Int(b.maxTokens),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", &StatusError{Backend: "openai", Code: apiErr.StatusCode, Body: apiErr.Message}
		}
		return "", fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}
