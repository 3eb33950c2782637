package executor

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/geomind/agentcore/pkg/models"
)

// dispatch authorizes and executes the calls of one turn. results[i]
// always belongs to calls[i], whether the calls ran sequentially or not.
func (e *Executor) dispatch(ctx context.Context, calls []models.ToolCall, opts RunOptions) []models.ToolResult {
	results := make([]models.ToolResult, len(calls))

	if e.parallel <= 1 || len(calls) == 1 {
		for i, call := range calls {
			if opts.OnToolCall != nil {
				opts.OnToolCall(call)
			}
			results[i] = e.runTool(ctx, call, opts.TrustLevel)
			if opts.OnToolResult != nil {
				opts.OnToolResult(call, results[i])
			}
		}
		return results
	}

	if opts.OnToolCall != nil {
		for _, call := range calls {
			opts.OnToolCall(call)
		}
	}
	var g errgroup.Group
	g.SetLimit(e.parallel)
	for i, call := range calls {
		g.Go(func() error {
			results[i] = e.runTool(ctx, call, opts.TrustLevel)
			return nil
		})
	}
	_ = g.Wait()
	if opts.OnToolResult != nil {
		for i, call := range calls {
			opts.OnToolResult(call, results[i])
		}
	}
	return results
}

// runTool never fails: denials and executor errors become failure results.
func (e *Executor) runTool(ctx context.Context, call models.ToolCall, tier models.TrustLevel) models.ToolResult {
	ctx, span := tracer.Start(ctx, "agent.tool", trace.WithAttributes(
		attribute.String("tool", call.Name),
		attribute.String("call_id", call.ID),
	))
	defer span.End()

	decision := e.tools.Authorize(call, tier)
	if !decision.Allowed {
		log.Warn().
			Str("tool", call.Name).
			Str("trust_level", string(tier)).
			Bool("needs_confirmation", decision.NeedsConfirmation).
			Str("reason", decision.Reason).
			Msg("Tool call denied")
		span.SetAttributes(attribute.Bool("denied", true))
		return models.ToolResult{
			ToolName:          call.Name,
			Error:             decision.Reason,
			NeedsConfirmation: decision.NeedsConfirmation,
		}
	}

	// Dispatched tools run to completion; only the iteration boundary is
	// cancellable.
	payload, err := e.execute(context.WithoutCancel(ctx), call)
	if err != nil {
		log.Warn().Err(err).Str("tool", call.Name).Msg("Tool execution failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return models.ToolResult{ToolName: call.Name, Error: err.Error()}
	}
	return models.ToolResult{ToolName: call.Name, Success: true, Payload: payload}
}

func (e *Executor) execute(ctx context.Context, call models.ToolCall) (payload any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool %s panicked: %v", call.Name, r)
		}
	}()
	return e.tools.Execute(ctx, call.Name, call.Input)
}
