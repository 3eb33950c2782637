// Package executor implements the agent loop that drives a model backend
// through tool use:
//
//	prompt backend → decode tool calls → authorize each via the tool gateway →
//	execute → feed results back → repeat until a plain answer, a repeated
//	response or the iteration ceiling.
//
// One Run owns its conversation and loop guard; nothing is shared between
// runs, so an Executor serves concurrent requests without locking.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/geomind/agentcore/internal/toolcall"
	"github.com/geomind/agentcore/pkg/contracts"
	"github.com/geomind/agentcore/pkg/models"
)

// DefaultMaxIterations is the ceiling on model round-trips per run.
const DefaultMaxIterations = 10

// RepetitionMessage is returned when the backend repeats itself.
const RepetitionMessage = "I could not complete this request: I kept producing the same answer. " +
	"Please rephrase the question or add more detail."

// ErrNoBackend is returned when Run is called without a model backend.
var ErrNoBackend = errors.New("no model backend")

var tracer = otel.Tracer("agentcore/executor")

// RunOptions are the per-request inputs of a run.
type RunOptions struct {
	// TrustLevel is fixed for the whole run.
	TrustLevel   models.TrustLevel
	Backend      contracts.ModelBackend
	SystemPrompt string

	// Observers. Calls and results are reported in parse order.
	OnToolCall   func(call models.ToolCall)
	OnToolResult func(call models.ToolCall, result models.ToolResult)
}

// Executor runs agent loops against a tool gateway.
type Executor struct {
	tools         contracts.ToolGateway
	decoder       contracts.ResponseDecoder
	heuristic     contracts.ActionHeuristic
	recorder      contracts.TraceRecorder
	maxIterations int
	parallel      int
}

// Option configures an Executor.
type Option func(*Executor)

// WithMaxIterations sets the iteration ceiling.
func WithMaxIterations(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxIterations = n
		}
	}
}

// WithDecoder replaces the marker decoder, e.g. for backends with native
// structured tool calls.
func WithDecoder(d contracts.ResponseDecoder) Option {
	return func(e *Executor) { e.decoder = d }
}

// WithHeuristic sets the announce-without-acting heuristic. nil disables it.
func WithHeuristic(h contracts.ActionHeuristic) Option {
	return func(e *Executor) { e.heuristic = h }
}

// WithRecorder stores a trace of every finished run.
func WithRecorder(r contracts.TraceRecorder) Option {
	return func(e *Executor) { e.recorder = r }
}

// WithParallelTools lets up to n calls of one turn execute concurrently.
// Results are still fed back in parse order.
func WithParallelTools(n int) Option {
	return func(e *Executor) { e.parallel = n }
}

// NewExecutor creates an agent loop executor.
func NewExecutor(tools contracts.ToolGateway, opts ...Option) *Executor {
	e := &Executor{
		tools:         tools,
		decoder:       toolcall.NewDecoder(log.Logger),
		heuristic:     EnglishHeuristic(),
		maxIterations: DefaultMaxIterations,
		parallel:      1,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MaxIterations returns the configured ceiling.
func (e *Executor) MaxIterations() int { return e.maxIterations }

// Run drives the loop until the backend gives a final answer or a guard
// fires. Only a backend failure or cancellation of ctx returns an error;
// denied, failing or panicking tools become failure results fed back to
// the model.
func (e *Executor) Run(ctx context.Context, initial []models.ChatMessage, opts RunOptions) (*models.RunResult, error) {
	if opts.Backend == nil {
		return nil, ErrNoBackend
	}
	if opts.TrustLevel.Rank() == 0 {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownTrustLevel, opts.TrustLevel)
	}

	res := &models.RunResult{
		TraceID: uuid.NewString(),
		Model:   opts.Backend.Name(),
		ToolLog: []models.ToolLogEntry{},
	}
	tr := &models.ExecutionTrace{
		TraceID:    res.TraceID,
		TrustLevel: opts.TrustLevel,
		Model:      res.Model,
		StartedAt:  time.Now(),
	}

	ctx, span := tracer.Start(ctx, "agent.run", trace.WithAttributes(
		attribute.String("trace_id", res.TraceID),
		attribute.String("trust_level", string(opts.TrustLevel)),
		attribute.String("model", res.Model),
	))
	defer span.End()

	conv := append([]models.ChatMessage(nil), initial...)
	var guard repetitionGuard
	var lastText string

	for iteration := 1; iteration <= e.maxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return nil, e.fail(ctx, span, tr, res, fmt.Errorf("run cancelled before iteration %d: %w", iteration, err))
		}
		res.Iterations = iteration

		turnStart := time.Now()
		iterCtx, iterSpan := tracer.Start(ctx, "agent.iteration", trace.WithAttributes(attribute.Int("iteration", iteration)))
		text, err := opts.Backend.SendChat(iterCtx, conv, opts.SystemPrompt)
		if err != nil {
			iterSpan.RecordError(err)
			iterSpan.End()
			return nil, e.fail(ctx, span, tr, res, fmt.Errorf("model backend call failed (iteration %d): %w", iteration, err))
		}
		lastText = text
		turn := models.Turn{Number: iteration, Response: text}

		if guard.observe(text) {
			log.Warn().
				Str("trace_id", res.TraceID).
				Int("iteration", iteration).
				Msg("Repeated model response, aborting run")
			e.endTurn(tr, &turn, turnStart, iterSpan)
			res.FinalText = RepetitionMessage
			res.Outcome = models.OutcomeAbortedRepetition
			e.finish(ctx, span, tr, res)
			return res, nil
		}

		calls := e.decoder.Decode(text)
		if len(calls) == 0 {
			if e.heuristic != nil && iteration < e.maxIterations-1 && e.heuristic.AnnouncesAction(text) {
				log.Debug().
					Str("trace_id", res.TraceID).
					Int("iteration", iteration).
					Msg("Response announces an action without a tool call, nudging")
				turn.Corrective = true
				e.endTurn(tr, &turn, turnStart, iterSpan)
				conv = append(conv,
					models.ChatMessage{Role: "assistant", Content: text},
					models.ChatMessage{Role: "user", Content: e.heuristic.CorrectiveTurn()},
				)
				continue
			}

			e.endTurn(tr, &turn, turnStart, iterSpan)
			res.FinalText = e.decoder.Strip(text)
			if res.FinalText == "" {
				res.FinalText = text
			}
			res.Outcome = models.OutcomeDone
			e.finish(ctx, span, tr, res)
			return res, nil
		}

		turn.ToolCalls = calls
		results := e.dispatch(iterCtx, calls, opts)
		for i := range calls {
			res.ToolLog = append(res.ToolLog, models.ToolLogEntry{Iteration: iteration, Call: calls[i], Result: results[i]})
		}
		e.endTurn(tr, &turn, turnStart, iterSpan)

		conv = append(conv,
			models.ChatMessage{Role: "assistant", Content: text},
			models.ChatMessage{Role: "user", Content: e.decoder.FeedbackTurn(results)},
		)

		log.Debug().
			Str("trace_id", res.TraceID).
			Int("iteration", iteration).
			Int("tool_calls", len(calls)).
			Msg("Agent loop continuing")
	}

	log.Warn().
		Str("trace_id", res.TraceID).
		Int("max_iterations", e.maxIterations).
		Msg("Agent run hit the iteration ceiling")

	res.FinalText = fmt.Sprintf("[Max iterations (%d) reached] The request could not be completed within the iteration limit.", e.maxIterations)
	if last := e.decoder.Strip(lastText); last != "" {
		res.FinalText += " Last response: " + last
	}
	res.Outcome = models.OutcomeAbortedCeiling
	e.finish(ctx, span, tr, res)
	return res, nil
}

func (e *Executor) endTurn(tr *models.ExecutionTrace, turn *models.Turn, start time.Time, span trace.Span) {
	turn.LatencyMs = time.Since(start).Milliseconds()
	tr.Turns = append(tr.Turns, *turn)
	span.SetAttributes(attribute.Int("tool_calls", len(turn.ToolCalls)), attribute.Bool("corrective", turn.Corrective))
	span.End()
}

func (e *Executor) finish(ctx context.Context, span trace.Span, tr *models.ExecutionTrace, res *models.RunResult) {
	span.SetAttributes(
		attribute.String("outcome", string(res.Outcome)),
		attribute.Int("iterations", res.Iterations),
	)
	tr.Outcome = res.Outcome
	tr.Iterations = res.Iterations
	tr.ToolLog = res.ToolLog
	tr.TotalMs = time.Since(tr.StartedAt).Milliseconds()

	log.Info().
		Str("trace_id", res.TraceID).
		Str("outcome", string(res.Outcome)).
		Int("iterations", res.Iterations).
		Int("tool_calls", len(res.ToolLog)).
		Int64("total_ms", tr.TotalMs).
		Msg("Agent run complete")

	e.save(ctx, tr)
}

func (e *Executor) fail(ctx context.Context, span trace.Span, tr *models.ExecutionTrace, res *models.RunResult, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	tr.Iterations = res.Iterations
	tr.ToolLog = res.ToolLog
	tr.Error = err.Error()
	tr.TotalMs = time.Since(tr.StartedAt).Milliseconds()

	log.Error().Err(err).Str("trace_id", res.TraceID).Msg("Agent run failed")
	e.save(ctx, tr)
	return err
}

func (e *Executor) save(ctx context.Context, tr *models.ExecutionTrace) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.SaveTrace(context.WithoutCancel(ctx), tr); err != nil {
		log.Warn().Err(err).Str("trace_id", tr.TraceID).Msg("Failed to save run trace")
	}
}
