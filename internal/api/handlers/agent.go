package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/geomind/agentcore/internal/executor"
	"github.com/geomind/agentcore/internal/toolcall"
	"github.com/geomind/agentcore/pkg/middleware"
	"github.com/geomind/agentcore/pkg/models"
)

// ══════════════════════════════════════════════════════════════
// ── Specialist Handlers ──────────────────────────────────────
// ══════════════════════════════════════════════════════════════

type routeRequest struct {
	Message string `json:"message"`
}

// RouteSpecialists selects specialists for a message and returns the
// enriched prompt.
func (h *Handlers) RouteSpecialists(w http.ResponseWriter, r *http.Request) {
	var req routeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	respondJSON(w, http.StatusOK, h.Specialists.Route(req.Message))
}

func (h *Handlers) ListSpecialists(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.Specialists.Profiles())
}

// ══════════════════════════════════════════════════════════════
// ── Agent Handlers ───────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

type runRequest struct {
	Message string               `json:"message"`
	History []models.ChatMessage `json:"history,omitempty"`
}

type runResponse struct {
	*models.RunResult
	Specialists []string         `json:"specialists"`
	RouteMode   models.RouteMode `json:"routeMode"`
}

// RunAgent drives one agent run at the caller's tier.
func (h *Handlers) RunAgent(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		respondError(w, http.StatusBadRequest, "message is required")
		return
	}

	conv := make([]models.ChatMessage, 0, len(req.History)+1)
	for _, m := range req.History {
		// The system prompt is server-owned.
		if m.Role == "user" || m.Role == "assistant" {
			conv = append(conv, m)
		}
	}
	conv = append(conv, models.ChatMessage{Role: "user", Content: req.Message})

	tier := middleware.GetTier(r.Context())
	route := h.Specialists.Route(req.Message)
	prompt := toolcall.ToolPrompt(route.SystemPrompt, h.Tools.Definitions(tier))

	log.Info().
		Str("tier", string(tier)).
		Strs("specialists", route.Profiles).
		Str("mode", string(route.Mode)).
		Msg("Agent run requested")

	res, err := h.Executor.Run(r.Context(), conv, executor.RunOptions{
		TrustLevel:   tier,
		Backend:      h.Backend,
		SystemPrompt: prompt,
	})
	if err != nil {
		switch {
		case errors.Is(err, executor.ErrNoBackend):
			respondError(w, http.StatusServiceUnavailable, err.Error())
		case errors.Is(err, context.Canceled):
			respondError(w, http.StatusRequestTimeout, "request cancelled")
		default:
			respondError(w, http.StatusBadGateway, err.Error())
		}
		return
	}

	respondJSON(w, http.StatusOK, runResponse{
		RunResult:   res,
		Specialists: route.Profiles,
		RouteMode:   route.Mode,
	})
}
