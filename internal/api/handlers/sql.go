package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/geomind/agentcore/internal/sqlexec"
	"github.com/geomind/agentcore/internal/sqlguard"
	"github.com/geomind/agentcore/pkg/middleware"
	"github.com/geomind/agentcore/pkg/models"
)

// ══════════════════════════════════════════════════════════════
// ── SQL Handlers ─────────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

type sqlRequest struct {
	Query      string `json:"query"`
	Connection string `json:"connection,omitempty"`
	// ReadOnly defaults to true.
	ReadOnly *bool `json:"readOnly,omitempty"`
	// Write runs the statement through sql_execute instead of sql_query.
	Write bool `json:"write,omitempty"`
}

func (s sqlRequest) readOnly() bool {
	return s.ReadOnly == nil || *s.ReadOnly
}

// validationOptions are the server's options for a statement, or the
// defaults when no database is configured.
func (h *Handlers) validationOptions(readOnly bool) sqlguard.Options {
	if h.SQL != nil {
		return h.SQL.Options(readOnly)
	}
	opts := sqlguard.DefaultOptions()
	opts.ReadOnly = readOnly
	return opts
}

func decodeSQL(w http.ResponseWriter, r *http.Request) (sqlRequest, bool) {
	var req sqlRequest
	if !decodeBody(w, r, &req) {
		return req, false
	}
	if strings.TrimSpace(req.Query) == "" {
		respondError(w, http.StatusBadRequest, "query is required")
		return req, false
	}
	return req, true
}

// ValidateSQL reports every violation of a statement with its analysis.
func (h *Handlers) ValidateSQL(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSQL(w, r)
	if !ok {
		return
	}
	result := sqlguard.Validate(req.Query, h.validationOptions(req.readOnly()))
	respondJSON(w, http.StatusOK, map[string]any{
		"result":  result,
		"summary": sqlguard.Summary(result),
	})
}

// SanitizeSQL validates then rewrites a statement. Invalid statements are
// never sanitized.
func (h *Handlers) SanitizeSQL(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSQL(w, r)
	if !ok {
		return
	}
	opts := h.validationOptions(req.readOnly())
	result := sqlguard.Validate(req.Query, opts)
	if !result.Valid {
		respondJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  "statement rejected",
			"result": result,
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"sanitized": sqlguard.Sanitize(req.Query, opts.MaxRows),
		"result":    result,
	})
}

// QuerySQL runs a statement on a named connection through the same tool
// gate the agent uses.
func (h *Handlers) QuerySQL(w http.ResponseWriter, r *http.Request) {
	if h.SQL == nil {
		respondError(w, http.StatusServiceUnavailable, "No database configured")
		return
	}
	req, ok := decodeSQL(w, r)
	if !ok {
		return
	}

	tool := "sql_query"
	if req.Write {
		tool = "sql_execute"
	}
	input, _ := json.Marshal(map[string]string{"query": req.Query, "connection": req.Connection})
	call := models.ToolCall{ID: uuid.NewString(), Name: tool, Input: input}

	tier := middleware.GetTier(r.Context())
	decision := h.Tools.Authorize(call, tier)
	if !decision.Allowed {
		log.Warn().Str("tool", tool).Str("tier", string(tier)).Str("reason", decision.Reason).Msg("SQL request denied")
		respondJSON(w, http.StatusForbidden, decision)
		return
	}

	out, err := h.Tools.Execute(r.Context(), tool, input)
	var rejected *sqlguard.RejectedError
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, out)
	case errors.As(err, &rejected):
		respondJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  "statement rejected",
			"result": rejected.Result,
		})
	case errors.Is(err, sqlexec.ErrUnknownConnection):
		respondError(w, http.StatusNotFound, err.Error())
	default:
		respondError(w, http.StatusBadGateway, err.Error())
	}
}

// ListConnections reports each configured connection and its health.
func (h *Handlers) ListConnections(w http.ResponseWriter, r *http.Request) {
	if h.Connections == nil {
		respondJSON(w, http.StatusOK, []any{})
		return
	}
	type connStatus struct {
		Name    string `json:"name"`
		Healthy bool   `json:"healthy"`
		Error   string `json:"error,omitempty"`
	}
	health := h.Connections.HealthCheckAll(r.Context())
	out := make([]connStatus, 0, len(health))
	for _, name := range h.Connections.List() {
		st := connStatus{Name: name, Healthy: health[name] == nil}
		if err := health[name]; err != nil {
			st.Error = err.Error()
		}
		out = append(out, st)
	}
	respondJSON(w, http.StatusOK, out)
}
