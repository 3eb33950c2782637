// Package models defines the shared domain types for the agentcore control plane.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ── Trust Levels ────────────────────────────────────────────

// TrustLevel is the operator-assigned capability tier of a session.
type TrustLevel string

const (
	TrustStandard TrustLevel = "standard"
	TrustExpert   TrustLevel = "expert"
	TrustRoot     TrustLevel = "root"
)

// ErrUnknownTrustLevel is returned for tier names outside standard, expert and root.
var ErrUnknownTrustLevel = errors.New("unknown trust level")

// ParseTrustLevel resolves a tier name. "god" is accepted as an alias for root.
func ParseTrustLevel(s string) (TrustLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "standard", "":
		return TrustStandard, nil
	case "expert":
		return TrustExpert, nil
	case "root", "god":
		return TrustRoot, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTrustLevel, s)
}

// Rank orders tiers; unknown tiers rank below standard.
func (t TrustLevel) Rank() int {
	switch t {
	case TrustStandard:
		return 1
	case TrustExpert:
		return 2
	case TrustRoot:
		return 3
	}
	return 0
}

// ── Operations & Policy ─────────────────────────────────────

// OperationKind identifies the class of a host operation.
type OperationKind string

const (
	OpReadFile      OperationKind = "read_file"
	OpWriteFile     OperationKind = "write_file"
	OpExecute       OperationKind = "execute_command"
	OpQueryReadOnly OperationKind = "sql_query"
	OpQueryWrite    OperationKind = "sql_execute"
	OpDeleteFile    OperationKind = "delete_file"
)

// OperationRequest is one attempted action.
type OperationRequest struct {
	Kind     OperationKind `json:"kind"`
	Path     string        `json:"path,omitempty"`
	Command  string        `json:"command,omitempty"`
	Query    string        `json:"query,omitempty"`
	ToolName string        `json:"toolName,omitempty"`

	// Confirmed marks an operation the user explicitly approved after a
	// needsConfirmation decision.
	Confirmed bool `json:"confirmed,omitempty"`
}

// PolicyDecision is the outcome of a policy evaluation.
type PolicyDecision struct {
	Allowed           bool        `json:"allowed"`
	Reason            string      `json:"reason"`
	NeedsConfirmation bool        `json:"needsConfirmation,omitempty"`
	Blocked           bool        `json:"blocked,omitempty"`
	DangerLevel       DangerLevel `json:"dangerLevel,omitempty"`
}

// DangerLevel grades a command or statement for root-tier confirmation.
type DangerLevel string

const (
	DangerSafe     DangerLevel = "SAFE"
	DangerLow      DangerLevel = "LOW"
	DangerMedium   DangerLevel = "MEDIUM"
	DangerHigh     DangerLevel = "HIGH"
	DangerCritical DangerLevel = "CRITICAL"
	DangerBlocked  DangerLevel = "BLOCKED"
)

// DangerEvaluation describes the risk of one command or statement.
type DangerEvaluation struct {
	Level             DangerLevel `json:"level"`
	Rank              int         `json:"rank"`
	Subject           string      `json:"subject"`
	Consequence       string      `json:"consequence"`
	NeedsConfirmation bool        `json:"needsConfirmation"`
	Blocked           bool        `json:"blocked"`
}

// ── SQL ─────────────────────────────────────────────────────

// StatementType is the leading-keyword classification of a statement.
type StatementType string

const (
	StatementSelect  StatementType = "SELECT"
	StatementInsert  StatementType = "INSERT"
	StatementUpdate  StatementType = "UPDATE"
	StatementDelete  StatementType = "DELETE"
	StatementCreate  StatementType = "CREATE"
	StatementAlter   StatementType = "ALTER"
	StatementDrop    StatementType = "DROP"
	StatementExplain StatementType = "EXPLAIN"
	StatementOther   StatementType = "OTHER"
)

// Complexity buckets the weighted complexity score of a statement.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// SQLAnalysis is computed for every statement regardless of validity.
type SQLAnalysis struct {
	Type            StatementType `json:"type"`
	Tables          []string      `json:"tables"`
	HasLimit        bool          `json:"hasLimit"`
	Complexity      Complexity    `json:"complexity"`
	ComplexityScore int           `json:"complexityScore"`
	SuggestedLimit  int           `json:"suggestedLimit,omitempty"`
}

// SQLValidationResult is the outcome of validating one statement.
type SQLValidationResult struct {
	Valid    bool        `json:"valid"`
	Errors   []string    `json:"errors"`
	Warnings []string    `json:"warnings"`
	Analysis SQLAnalysis `json:"analysis"`
}

// StatementResult is returned by a statement executor.
type StatementResult struct {
	Rows     []map[string]any `json:"rows"`
	RowCount int64            `json:"rowCount"`
	Fields   []string         `json:"fields"`
	Duration time.Duration    `json:"duration"`
}

// ── Conversation ────────────────────────────────────────────

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// ToolCall is a structured invocation recovered from a model turn.
type ToolCall struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Input   json.RawMessage `json:"input"`
	RawText string          `json:"rawText,omitempty"`
}

// ToolResult is the outcome of one tool call, fed back to the model verbatim.
type ToolResult struct {
	ToolName          string `json:"tool"`
	Success           bool   `json:"success"`
	Payload           any    `json:"result,omitempty"`
	Error             string `json:"error,omitempty"`
	NeedsConfirmation bool   `json:"needsConfirmation,omitempty"`
}

// ToolDefinition describes a tool offered to the model.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// ToolLogEntry pairs a call with its result.
type ToolLogEntry struct {
	Iteration int        `json:"iteration"`
	Call      ToolCall   `json:"call"`
	Result    ToolResult `json:"result"`
}

// RunOutcome is the terminal state of an agent run.
type RunOutcome string

const (
	OutcomeDone              RunOutcome = "done"
	OutcomeAbortedRepetition RunOutcome = "aborted_repetition"
	OutcomeAbortedCeiling    RunOutcome = "aborted_max_iterations"
)

// RunResult is returned by an agent run.
type RunResult struct {
	TraceID    string         `json:"traceId"`
	FinalText  string         `json:"finalText"`
	ToolLog    []ToolLogEntry `json:"toolLog"`
	Iterations int            `json:"iterations"`
	Outcome    RunOutcome     `json:"outcome"`
	Model      string         `json:"model,omitempty"`
}

// ── Specialists ─────────────────────────────────────────────

// SpecialistProfile biases the agent toward a sub-domain.
type SpecialistProfile struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Triggers    []string `json:"triggers" yaml:"triggers"`
	Directive   string   `json:"directive" yaml:"directive"`
}

// RouteMode says how many specialists a request engaged.
type RouteMode string

const (
	RouteMain     RouteMode = "main"     // no specialist, base prompt only
	RouteSingle   RouteMode = "single"   // exactly one specialist
	RouteParallel RouteMode = "parallel" // several independent specialists
)

// RouteResult is the outcome of specialist routing.
type RouteResult struct {
	Profiles     []string  `json:"profiles"`
	Mode         RouteMode `json:"mode"`
	SystemPrompt string    `json:"systemPrompt"`
}

// ── Traces ──────────────────────────────────────────────────

// ExecutionTrace records one agent run.
type ExecutionTrace struct {
	TraceID    string         `json:"traceId"`
	TrustLevel TrustLevel     `json:"trustLevel"`
	Model      string         `json:"model,omitempty"`
	Outcome    RunOutcome     `json:"outcome"`
	Iterations int            `json:"iterations"`
	Turns      []Turn         `json:"turns"`
	ToolLog    []ToolLogEntry `json:"toolLog"`
	Error      string         `json:"error,omitempty"`
	StartedAt  time.Time      `json:"startedAt"`
	TotalMs    int64          `json:"totalMs"`
}

// Turn is one iteration of the agent loop.
type Turn struct {
	Number     int        `json:"number"`
	Response   string     `json:"response"`
	ToolCalls  []ToolCall `json:"toolCalls,omitempty"`
	Corrective bool       `json:"corrective,omitempty"`
	LatencyMs  int64      `json:"latencyMs"`
}

// ── MCP (Model Context Protocol) ────────────────────────────

// MCPRequest is a JSON-RPC 2.0 request.
type MCPRequest struct {
	Jsonrpc string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      any             `json:"id,omitempty"`
}

// MCPResponse is a JSON-RPC 2.0 response.
type MCPResponse struct {
	Jsonrpc string    `json:"jsonrpc"`
	Result  any       `json:"result,omitempty"`
	Error   *MCPError `json:"error,omitempty"`
	ID      any       `json:"id,omitempty"`
}

// MCPError is a JSON-RPC 2.0 error object.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// MCPToolInfo is a tool entry in a tools/list result.
type MCPToolInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// MCPToolCallParams are the params of a tools/call request.
type MCPToolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
	Confirmed bool            `json:"confirmed,omitempty"`
}

// MCPToolResult is the result of a tools/call request.
type MCPToolResult struct {
	Content []MCPContent `json:"content"`
	IsError bool         `json:"isError"`
}

// MCPContent is one content block of a tool result.
type MCPContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}
