package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/geomind/agentcore/internal/store"
	"github.com/geomind/agentcore/pkg/models"
)

// ══════════════════════════════════════════════════════════════
// ── Trace Handlers ───────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

const defaultTraceLimit = 100

func (h *Handlers) ListTraces(w http.ResponseWriter, r *http.Request) {
	limit := defaultTraceLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	traces, err := h.Traces.ListTraces(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if traces == nil {
		traces = []models.ExecutionTrace{}
	}
	respondJSON(w, http.StatusOK, traces)
}

func (h *Handlers) GetTrace(w http.ResponseWriter, r *http.Request) {
	traceID := chi.URLParam(r, "traceId")
	trace, err := h.Traces.GetTrace(r.Context(), traceID)
	if err != nil {
		var nf *store.ErrNotFound
		if errors.As(err, &nf) {
			respondError(w, http.StatusNotFound, err.Error())
		} else {
			respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	respondJSON(w, http.StatusOK, trace)
}
