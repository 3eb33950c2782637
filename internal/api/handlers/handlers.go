// Package handlers implements the HTTP handlers for the agentcore API.
// Every handler reads the caller's trust level from the request context;
// no request body can choose or raise it.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/geomind/agentcore/internal/executor"
	"github.com/geomind/agentcore/internal/mcpgw"
	"github.com/geomind/agentcore/internal/policy"
	"github.com/geomind/agentcore/internal/specialist"
	"github.com/geomind/agentcore/internal/sqlexec"
	"github.com/geomind/agentcore/internal/store"
	"github.com/geomind/agentcore/internal/tools"
	"github.com/geomind/agentcore/pkg/contracts"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Handlers holds all handler dependencies.
type Handlers struct {
	Policy      *policy.Engine
	Tools       *tools.Catalog
	Specialists *specialist.Router
	Executor    *executor.Executor
	Backend     contracts.ModelBackend
	Traces      store.TraceStore
	MCPGateway  *mcpgw.Gateway

	// SQL is nil when no database is configured.
	SQL         *sqlexec.Pipeline
	Connections *sqlexec.Registry
}

// Deps are the collaborators of New.
type Deps struct {
	Policy      *policy.Engine
	Tools       *tools.Catalog
	Specialists *specialist.Router
	Executor    *executor.Executor
	Backend     contracts.ModelBackend
	Traces      store.TraceStore
	MCPGateway  *mcpgw.Gateway
	SQL         *sqlexec.Pipeline
	Connections *sqlexec.Registry
}

// New creates a new Handlers instance with all dependencies.
func New(d Deps) *Handlers {
	return &Handlers{
		Policy:      d.Policy,
		Tools:       d.Tools,
		Specialists: d.Specialists,
		Executor:    d.Executor,
		Backend:     d.Backend,
		Traces:      d.Traces,
		MCPGateway:  d.MCPGateway,
		SQL:         d.SQL,
		Connections: d.Connections,
	}
}

// ── Helpers ──────────────────────────────────────────────────

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// decodeBody reads a JSON body into v, answering 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
