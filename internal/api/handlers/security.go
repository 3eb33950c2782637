package handlers

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/geomind/agentcore/internal/policy"
	"github.com/geomind/agentcore/pkg/middleware"
	"github.com/geomind/agentcore/pkg/models"
)

// ══════════════════════════════════════════════════════════════
// ── Security Handlers ────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// ValidateOperation answers whether the caller's tier may perform an
// operation. Nothing is executed.
func (h *Handlers) ValidateOperation(w http.ResponseWriter, r *http.Request) {
	var req models.OperationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Kind == "" {
		respondError(w, http.StatusBadRequest, "kind is required")
		return
	}

	tier := middleware.GetTier(r.Context())
	decision := h.Policy.ValidateOperation(req, tier)
	log.Debug().
		Str("kind", string(req.Kind)).
		Str("tier", string(tier)).
		Bool("allowed", decision.Allowed).
		Msg("Operation validated")
	respondJSON(w, http.StatusOK, decision)
}

type dangerRequest struct {
	Subject string `json:"subject"`
	Command string `json:"command"`
	Query   string `json:"query"`
}

// EvaluateDanger grades a command or statement.
func (h *Handlers) EvaluateDanger(w http.ResponseWriter, r *http.Request) {
	var req dangerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	subject := req.Subject
	for _, alt := range []string{req.Command, req.Query} {
		if subject == "" {
			subject = alt
		}
	}
	if strings.TrimSpace(subject) == "" {
		respondError(w, http.StatusBadRequest, "subject is required")
		return
	}
	respondJSON(w, http.StatusOK, policy.EvaluateDanger(subject))
}

// ListTools returns the tools visible to the caller's tier.
func (h *Handlers) ListTools(w http.ResponseWriter, r *http.Request) {
	tier := middleware.GetTier(r.Context())
	perms, _ := policy.PermissionsFor(tier)
	respondJSON(w, http.StatusOK, map[string]any{
		"tier":        tier,
		"permissions": perms,
		"tools":       h.Tools.Definitions(tier),
	})
}
