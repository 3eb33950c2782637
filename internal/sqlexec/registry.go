// Package sqlexec owns the named statement executors of a host and the
// guarded pipeline that validates and sanitizes a statement before it
// reaches one of them.
//
// The Registry is created and owned by the host and injected where needed;
// this package keeps no package-level connection state.
package sqlexec

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/geomind/agentcore/pkg/contracts"
)

// DefaultConnection is the name used when a caller does not pick one.
const DefaultConnection = "default"

// ErrUnknownConnection is returned for a name with no registered executor.
var ErrUnknownConnection = errors.New("unknown connection")

type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

type closer interface {
	Close()
}

// Registry holds named statement executors. Thread-safe.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]contracts.StatementExecutor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		executors: make(map[string]contracts.StatementExecutor),
	}
}

// Register adds an executor under name. Overwrites if it exists.
func (r *Registry) Register(name string, exec contracts.StatementExecutor) {
	r.mu.Lock()
	r.executors[name] = exec
	r.mu.Unlock()
	log.Info().Str("connection", name).Msg("Statement executor registered")
}

// Get returns the executor registered under name. An empty name selects
// DefaultConnection.
func (r *Registry) Get(name string) (contracts.StatementExecutor, error) {
	if name == "" {
		name = DefaultConnection
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	exec, ok := r.executors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownConnection, name)
	}
	return exec, nil
}

// List returns the registered names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.executors))
	for name := range r.executors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HealthCheckAll pings every executor that supports it.
func (r *Registry) HealthCheckAll(ctx context.Context) map[string]error {
	r.mu.RLock()
	snapshot := make(map[string]contracts.StatementExecutor, len(r.executors))
	for k, v := range r.executors {
		snapshot[k] = v
	}
	r.mu.RUnlock()

	results := make(map[string]error, len(snapshot))
	for name, exec := range snapshot {
		if hc, ok := exec.(healthChecker); ok {
			results[name] = hc.HealthCheck(ctx)
		} else {
			results[name] = nil
		}
	}
	return results
}

// Close releases every executor that holds resources.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, exec := range r.executors {
		if c, ok := exec.(closer); ok {
			c.Close()
			log.Debug().Str("connection", name).Msg("Statement executor closed")
		}
	}
}
