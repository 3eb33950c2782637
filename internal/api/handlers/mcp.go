package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/geomind/agentcore/internal/mcpgw"
	"github.com/geomind/agentcore/pkg/middleware"
	"github.com/geomind/agentcore/pkg/models"
)

// ══════════════════════════════════════════════════════════════
// ── MCP Gateway Handlers ─────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// MCPEndpoint serves MCP JSON-RPC at the caller's tier.
func (h *Handlers) MCPEndpoint(w http.ResponseWriter, r *http.Request) {
	tier := middleware.GetTier(r.Context())

	var req models.MCPRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		respondJSON(w, http.StatusOK, models.MCPResponse{
			Jsonrpc: "2.0",
			Error: &models.MCPError{
				Code:    mcpgw.CodeParseError,
				Message: "Parse error",
				Data:    err.Error(),
			},
		})
		return
	}

	log.Info().Str("method", req.Method).Str("tier", string(tier)).Msg("MCP request received")

	resp := h.MCPGateway.HandleJSONRPC(r.Context(), tier, &req)
	if resp == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}
