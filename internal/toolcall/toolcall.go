// Package toolcall decodes tool invocations that a free-text model embeds
// in its answer between <tool_call> markers, and renders tool results back
// into the conversation between <tool_result> markers.
package toolcall

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/geomind/agentcore/pkg/models"
)

var (
	callSpan  = regexp.MustCompile(`<tool_call>\s*([\s\S]*?)\s*</tool_call>`)
	anyCall   = regexp.MustCompile(`<tool_call>[\s\S]*?</tool_call>`)
	anyResult = regexp.MustCompile(`<tool_result[^>]*>[\s\S]*?</tool_result>`)
)

const maxLogSpan = 200

type payload struct {
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// Decoder is the marker-based contracts.ResponseDecoder.
type Decoder struct {
	log zerolog.Logger
}

// NewDecoder creates a decoder that reports malformed spans to log.
func NewDecoder(log zerolog.Logger) *Decoder {
	return &Decoder{log: log}
}

// Decode implements contracts.ResponseDecoder.
func (d *Decoder) Decode(text string) []models.ToolCall {
	return Parse(text, d.log)
}

// Strip implements contracts.ResponseDecoder.
func (d *Decoder) Strip(text string) string { return Strip(text) }

// FeedbackTurn implements contracts.ResponseDecoder.
func (d *Decoder) FeedbackTurn(results []models.ToolResult) string {
	return FeedbackTurn(results)
}

// Parse extracts every well-formed call span from text, in order. A span
// whose payload is not JSON, or lacks a name or an input, is logged and
// skipped; the remaining spans are still returned.
func Parse(text string, log zerolog.Logger) []models.ToolCall {
	var calls []models.ToolCall
	for _, m := range callSpan.FindAllStringSubmatch(text, -1) {
		var p payload
		if err := json.Unmarshal([]byte(m[1]), &p); err != nil {
			log.Warn().Err(err).Str("span", truncate(m[1], maxLogSpan)).Msg("Malformed tool call skipped")
			continue
		}
		if p.Name == "" || len(p.Input) == 0 {
			log.Warn().Str("span", truncate(m[1], maxLogSpan)).Msg("Tool call without name or input skipped")
			continue
		}
		calls = append(calls, models.ToolCall{
			ID:      uuid.NewString(),
			Name:    p.Name,
			Input:   p.Input,
			RawText: m[0],
		})
	}
	return calls
}

// Strip removes all call and result spans and trims the rest.
func Strip(text string) string {
	text = anyCall.ReplaceAllString(text, "")
	text = anyResult.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// FormatResult renders one result span. Successful calls carry their
// payload; failures carry the error envelope.
func FormatResult(r models.ToolResult) string {
	var body any = r.Payload
	if !r.Success {
		body = struct {
			Success           bool   `json:"success"`
			Error             string `json:"error"`
			NeedsConfirmation bool   `json:"needsConfirmation,omitempty"`
		}{false, r.Error, r.NeedsConfirmation}
	}
	data, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		data, _ = json.Marshal(map[string]any{"success": false, "error": "unserializable result: " + err.Error()})
	}
	return fmt.Sprintf("<tool_result name=%q>\n%s\n</tool_result>", r.ToolName, data)
}

// FeedbackTurn renders the user turn that returns a batch of results to the
// model, preserving their order.
func FeedbackTurn(results []models.ToolResult) string {
	spans := make([]string, len(results))
	for i, r := range results {
		spans[i] = FormatResult(r)
	}
	return "Tool results:\n\n" + strings.Join(spans, "\n\n") +
		"\n\nAnalyze these results and give the user your answer."
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
