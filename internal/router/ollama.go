package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/geomind/agentcore/pkg/models"
)

const (
	DefaultOllamaEndpoint = "http://localhost:11434"

	// Low temperature keeps tool-call markup precise.
	ollamaTemperature = 0.3
	ollamaNumPredict  = 4096
)

// OllamaBackend talks to a local Ollama server through /api/chat.
type OllamaBackend struct {
	endpoint string
	model    string
	client   *http.Client
}

// NewOllamaBackend creates an Ollama backend. An empty endpoint selects the
// local default.
func NewOllamaBackend(endpoint, model string) *OllamaBackend {
	if endpoint == "" {
		endpoint = DefaultOllamaEndpoint
	}
	return &OllamaBackend{
		endpoint: endpoint,
		model:    model,
		client:   &http.Client{Timeout: 300 * time.Second},
	}
}

func (o *OllamaBackend) Name() string { return "ollama:" + o.model }

type ollamaRequest struct {
	Model    string               `json:"model"`
	Messages []models.ChatMessage `json:"messages"`
	Stream   bool                 `json:"stream"`
	Options  ollamaOptions        `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type ollamaResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
}

// SendChat sends the conversation with the system prompt as the first turn.
func (o *OllamaBackend) SendChat(ctx context.Context, turns []models.ChatMessage, systemPrompt string) (string, error) {
	body, _ := json.Marshal(ollamaRequest{
		Model:    o.model,
		Messages: withSystem(turns, systemPrompt),
		Stream:   false,
		Options:  ollamaOptions{Temperature: ollamaTemperature, NumPredict: ollamaNumPredict},
	})

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("ollama: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := o.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("ollama: request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(httpResp.Body, 4096))
		return "", &StatusError{Backend: "ollama", Code: httpResp.StatusCode, Body: string(respBody)}
	}

	var resp ollamaResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return "", fmt.Errorf("ollama: decode response: %w", err)
	}
	return resp.Message.Content, nil
}

// HealthCheck lists the server's models through /api/tags.
func (o *OllamaBackend) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.endpoint+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Backend: "ollama", Code: resp.StatusCode}
	}
	return nil
}

func withSystem(turns []models.ChatMessage, systemPrompt string) []models.ChatMessage {
	if systemPrompt == "" {
		return turns
	}
	out := make([]models.ChatMessage, 0, len(turns)+1)
	out = append(out, models.ChatMessage{Role: "system", Content: systemPrompt})
	return append(out, turns...)
}
