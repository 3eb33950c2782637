package sqlexec

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/geomind/agentcore/internal/sqlguard"
	"github.com/geomind/agentcore/pkg/models"
)

// DefaultStatementTimeout bounds a statement on the server side.
const DefaultStatementTimeout = 30 * time.Second

var tracer = otel.Tracer("agentcore/sqlexec")

// PostgresExecutor runs statements on a PostgreSQL (or PostGIS) pool.
// Every statement runs in its own transaction with a server-side timeout;
// statements that are provably reads run in a read-only transaction.
type PostgresExecutor struct {
	name    string
	pool    *pgxpool.Pool
	timeout time.Duration
}

// PostgresConfig configures one connection.
type PostgresConfig struct {
	Name             string
	URL              string
	MaxConns         int32
	StatementTimeout time.Duration
}

// NewPostgresExecutor connects and pings the database.
func NewPostgresExecutor(ctx context.Context, cfg PostgresConfig) (*PostgresExecutor, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("postgres %s: parse url: %w", cfg.Name, err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres %s: connect: %w", cfg.Name, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres %s: ping: %w", cfg.Name, err)
	}

	timeout := cfg.StatementTimeout
	if timeout <= 0 {
		timeout = DefaultStatementTimeout
	}

	log.Info().
		Str("connection", cfg.Name).
		Str("host", poolCfg.ConnConfig.Host).
		Str("database", poolCfg.ConnConfig.Database).
		Dur("statement_timeout", timeout).
		Msg("Statement executor connected")
	return &PostgresExecutor{name: cfg.Name, pool: pool, timeout: timeout}, nil
}

func (p *PostgresExecutor) Kind() string { return "postgres" }

// Run executes one already validated and sanitized statement.
func (p *PostgresExecutor) Run(ctx context.Context, statement string) (*models.StatementResult, error) {
	access := pgx.ReadOnly
	if sqlguard.RequiresWrite(statement) {
		access = pgx.ReadWrite
	}

	ctx, span := tracer.Start(ctx, "sql.run", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.connection", p.name),
		attribute.String("db.access_mode", string(access)),
	))
	defer span.End()

	res, err := p.run(ctx, statement, access)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int64("db.row_count", res.RowCount))
	return res, nil
}

func (p *PostgresExecutor) run(ctx context.Context, statement string, access pgx.TxAccessMode) (*models.StatementResult, error) {
	start := time.Now()

	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: access})
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }() // no-op after commit

	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = %d", p.timeout.Milliseconds())); err != nil {
		return nil, fmt.Errorf("set statement timeout: %w", err)
	}

	rows, err := tx.Query(ctx, statement)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	descs := rows.FieldDescriptions()
	fields := make([]string, len(descs))
	for i, d := range descs {
		fields[i] = d.Name
	}

	out := []map[string]any{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan: %w", err)
		}
		row := make(map[string]any, len(fields))
		for i, f := range fields {
			row[f] = values[i]
		}
		out = append(out, row)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	count := int64(len(out))
	if len(fields) == 0 {
		count = rows.CommandTag().RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return &models.StatementResult{
		Rows:     out,
		RowCount: count,
		Fields:   fields,
		Duration: time.Since(start),
	}, nil
}

// HealthCheck pings the pool.
func (p *PostgresExecutor) HealthCheck(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close releases the pool.
func (p *PostgresExecutor) Close() {
	p.pool.Close()
}
