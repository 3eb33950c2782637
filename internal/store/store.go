// Package store keeps finished agent run traces for inspection.
//
// Run state itself is request-scoped and never stored here; the store only
// receives the ExecutionTrace once a run ends.
package store

import (
	"context"

	"github.com/geomind/agentcore/pkg/models"
)

// TraceStore is the storage interface for run traces.
// All handler code depends on this interface.
type TraceStore interface {
	// SaveTrace stores a copy of trace, replacing any trace with the same ID.
	SaveTrace(ctx context.Context, trace *models.ExecutionTrace) error

	GetTrace(ctx context.Context, traceID string) (*models.ExecutionTrace, error)

	// ListTraces returns up to limit traces, newest first.
	ListTraces(ctx context.Context, limit int) ([]models.ExecutionTrace, error)

	DeleteTrace(ctx context.Context, traceID string) error

	// Ping checks if the backing storage is reachable.
	Ping(ctx context.Context) error

	// Close releases all resources held by the store.
	Close() error
}

// ── Errors ──────────────────────────────────────────────────

// ErrNotFound is returned when a requested entity does not exist.
type ErrNotFound struct {
	Entity string
	Key    string
}

func (e *ErrNotFound) Error() string {
	return e.Entity + " not found: " + e.Key
}
