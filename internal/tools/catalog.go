// Package tools is the gate between parsed tool calls and the host.
//
// A Catalog holds the registered tools. Every call is first mapped to an
// OperationRequest and judged by the policy engine; only an allowed call
// reaches its handler. Unknown names never reach a handler.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/geomind/agentcore/internal/policy"
	"github.com/geomind/agentcore/pkg/contracts"
	"github.com/geomind/agentcore/pkg/models"
)

// ErrUnknownTool is returned by Execute for a name with no registered tool.
var ErrUnknownTool = errors.New("unknown tool")

// Tool is one registered capability.
type Tool struct {
	Definition models.ToolDefinition

	// Operation maps decoded input to the request the policy engine judges.
	Operation func(input json.RawMessage) (models.OperationRequest, error)

	// Handler performs the operation. It runs only after an allow decision.
	Handler func(ctx context.Context, input json.RawMessage) (any, error)
}

// Catalog is the tool gateway. Thread-safe.
type Catalog struct {
	policy contracts.PolicyEngine

	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewCatalog creates an empty catalog judged by engine.
func NewCatalog(engine contracts.PolicyEngine) *Catalog {
	return &Catalog{
		policy: engine,
		tools:  make(map[string]Tool),
	}
}

// Register adds tools in order. A duplicate name is an error.
func (c *Catalog) Register(tools ...Tool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range tools {
		name := t.Definition.Name
		if name == "" || t.Operation == nil || t.Handler == nil {
			return fmt.Errorf("tool %q: name, operation and handler are required", name)
		}
		if _, exists := c.tools[name]; exists {
			return fmt.Errorf("tool %q already registered", name)
		}
		c.tools[name] = t
		c.order = append(c.order, name)
	}
	return nil
}

func (c *Catalog) lookup(name string) (Tool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tools[name]
	return t, ok
}

// Authorize judges call at tier.
func (c *Catalog) Authorize(call models.ToolCall, tier models.TrustLevel) models.PolicyDecision {
	return c.authorize(call, tier, false)
}

// AuthorizeConfirmed judges call at tier as an operation the user has
// explicitly approved. Only the host may use it; a model cannot confirm
// its own calls.
func (c *Catalog) AuthorizeConfirmed(call models.ToolCall, tier models.TrustLevel) models.PolicyDecision {
	return c.authorize(call, tier, true)
}

func (c *Catalog) authorize(call models.ToolCall, tier models.TrustLevel, confirmed bool) models.PolicyDecision {
	t, ok := c.lookup(call.Name)
	if !ok {
		return models.PolicyDecision{Reason: fmt.Sprintf("unknown tool %q", call.Name)}
	}
	if !policy.ToolAllowed(tier, call.Name) {
		return models.PolicyDecision{Reason: fmt.Sprintf("tool %q is not available at tier %q", call.Name, tier)}
	}

	req, err := t.Operation(call.Input)
	if err != nil {
		return models.PolicyDecision{Reason: fmt.Sprintf("invalid input for %s: %v", call.Name, err)}
	}
	req.ToolName = call.Name
	req.Confirmed = confirmed
	return c.policy.ValidateOperation(req, tier)
}

// Execute runs the named tool's handler. Callers must have authorized the
// call first.
func (c *Catalog) Execute(ctx context.Context, name string, input json.RawMessage) (any, error) {
	t, ok := c.lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	log.Debug().Str("tool", name).Msg("Executing tool")
	return t.Handler(ctx, input)
}

// Definitions returns the definitions visible at tier, in registration order.
func (c *Catalog) Definitions(tier models.TrustLevel) []models.ToolDefinition {
	return FilterForTier(c.All(), tier)
}

// All returns every registered definition.
func (c *Catalog) All() []models.ToolDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	defs := make([]models.ToolDefinition, 0, len(c.order))
	for _, name := range c.order {
		defs = append(defs, c.tools[name].Definition)
	}
	return defs
}

// FilterForTier keeps the definitions in tier's tool set. A wildcard tier
// keeps all of them.
func FilterForTier(defs []models.ToolDefinition, tier models.TrustLevel) []models.ToolDefinition {
	out := make([]models.ToolDefinition, 0, len(defs))
	for _, d := range defs {
		if policy.ToolAllowed(tier, d.Name) {
			out = append(out, d)
		}
	}
	return out
}

// decode unmarshals a tool input; a missing input decodes as {}.
func decode[T any](input json.RawMessage) (T, error) {
	var in T
	if len(input) == 0 {
		return in, nil
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return in, fmt.Errorf("decode input: %w", err)
	}
	return in, nil
}
