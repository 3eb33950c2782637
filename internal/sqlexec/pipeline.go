package sqlexec

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/geomind/agentcore/internal/sqlguard"
	"github.com/geomind/agentcore/pkg/models"
)

// PipelineOptions tune validation for every statement of a pipeline.
type PipelineOptions struct {
	MaxRows       int
	Strict        bool
	AllowedTables []string
}

// QueryResult is what a statement tool returns to the model.
type QueryResult struct {
	Connection string             `json:"connection"`
	RowCount   int64              `json:"rowCount"`
	Rows       []map[string]any   `json:"rows"`
	Fields     []string           `json:"fields"`
	DurationMs int64              `json:"durationMs"`
	Warnings   []string           `json:"warnings,omitempty"`
	Analysis   models.SQLAnalysis `json:"analysis"`
	Sanitized  string             `json:"sanitized"`
}

// Pipeline is validate → reject → sanitize → run. A statement with any
// validation error never reaches an executor.
type Pipeline struct {
	registry *Registry
	opts     PipelineOptions
}

// NewPipeline creates a pipeline over the host's executors.
func NewPipeline(registry *Registry, opts PipelineOptions) *Pipeline {
	if opts.MaxRows <= 0 {
		opts.MaxRows = sqlguard.DefaultMaxRows
	}
	return &Pipeline{registry: registry, opts: opts}
}

// Options returns the validation options for a statement.
func (p *Pipeline) Options(readOnly bool) sqlguard.Options {
	return sqlguard.Options{
		ReadOnly:      readOnly,
		Strict:        p.opts.Strict,
		AllowedTables: p.opts.AllowedTables,
		MaxRows:       p.opts.MaxRows,
	}
}

// Execute validates, sanitizes and runs statement on connection. A rejected
// statement yields a *sqlguard.RejectedError.
func (p *Pipeline) Execute(ctx context.Context, connection, statement string, readOnly bool) (*QueryResult, error) {
	v := sqlguard.Validate(statement, p.Options(readOnly))
	if !v.Valid {
		log.Warn().
			Str("connection", connection).
			Strs("errors", v.Errors).
			Msg("Statement rejected")
		return nil, &sqlguard.RejectedError{Result: v}
	}

	sanitized := sqlguard.Sanitize(statement, p.opts.MaxRows)
	exec, err := p.registry.Get(connection)
	if err != nil {
		return nil, err
	}

	res, err := exec.Run(ctx, sanitized)
	if err != nil {
		return nil, fmt.Errorf("execute on %s: %w", connectionName(connection), err)
	}

	log.Debug().
		Str("connection", connectionName(connection)).
		Int64("rows", res.RowCount).
		Dur("duration", res.Duration).
		Msg("Statement executed")

	return &QueryResult{
		Connection: connectionName(connection),
		RowCount:   res.RowCount,
		Rows:       res.Rows,
		Fields:     res.Fields,
		DurationMs: res.Duration.Milliseconds(),
		Warnings:   v.Warnings,
		Analysis:   v.Analysis,
		Sanitized:  sanitized,
	}, nil
}

func connectionName(name string) string {
	if name == "" {
		return DefaultConnection
	}
	return name
}
