// Package contracts defines the collaborator interfaces of the agentcore
// control plane.
//
// The concrete implementations live under internal/. Hosts embedding the
// core can supply their own implementations (a different model provider,
// a non-Postgres statement executor, a language-specific nudge heuristic)
// without touching the loop or the policy engine.
package contracts

import (
	"context"
	"encoding/json"

	"github.com/geomind/agentcore/pkg/models"
)

// ── Model Backend ───────────────────────────────────────────

// ModelBackend sends a conversation to a chat model and returns its text.
// OSS ships: Ollama, OpenAI-compatible and Anthropic backends plus a
// fallback router over them (internal/router).
type ModelBackend interface {
	// Name identifies the backend in logs and run results.
	Name() string

	// SendChat blocks until the model answers. An error here means the
	// backend is unreachable; it is the only error that ends a run.
	SendChat(ctx context.Context, turns []models.ChatMessage, systemPrompt string) (string, error)
}

// ResponseDecoder recovers tool calls from a model response. Backends that
// produce free text use the marker decoder (internal/toolcall); backends
// with native structured calls supply their own.
type ResponseDecoder interface {
	// Decode returns the calls in the order they appear.
	Decode(text string) []models.ToolCall

	// Strip returns the user-facing text with call and result spans removed.
	Strip(text string) string

	// FeedbackTurn renders the synthesized user turn carrying tool results.
	FeedbackTurn(results []models.ToolResult) string
}

// ActionHeuristic detects a response that announces an action without
// performing it.
type ActionHeuristic interface {
	AnnouncesAction(text string) bool

	// CorrectiveTurn is the user turn injected to push the model to act.
	CorrectiveTurn() string
}

// ── Tools ───────────────────────────────────────────────────

// ToolExecutor runs a named tool. Unknown names are denied by the
// Authorizer before they reach the executor.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, input json.RawMessage) (any, error)
}

// Authorizer decides whether a parsed tool call may run at a trust level.
type Authorizer interface {
	Authorize(call models.ToolCall, tier models.TrustLevel) models.PolicyDecision
}

// ToolGateway combines authorization and execution.
// OSS implementation: internal/tools.Catalog
type ToolGateway interface {
	Authorizer
	ToolExecutor
	Definitions(tier models.TrustLevel) []models.ToolDefinition
}

// ── Policy ──────────────────────────────────────────────────

// PolicyEngine decides allow/deny for one operation.
// OSS implementation: internal/policy.Engine
type PolicyEngine interface {
	ValidateOperation(req models.OperationRequest, tier models.TrustLevel) models.PolicyDecision
}

// ── Statement Executor ──────────────────────────────────────

// StatementExecutor runs an already validated and sanitized statement.
// Implementations enforce their own server-side timeout.
// OSS implementation: internal/sqlexec.PostgresExecutor
type StatementExecutor interface {
	Run(ctx context.Context, statement string) (*models.StatementResult, error)
}

// ── Traces ──────────────────────────────────────────────────

// TraceRecorder stores finished run traces.
// OSS implementation: internal/store.MemoryStore
type TraceRecorder interface {
	SaveTrace(ctx context.Context, trace *models.ExecutionTrace) error
}
