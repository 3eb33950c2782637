package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/geomind/agentcore/internal/api/handlers"
	"github.com/geomind/agentcore/internal/api/middleware"
	"github.com/geomind/agentcore/internal/config"
)

// NewRouter creates the HTTP router with all API routes.
func NewRouter(cfg *config.Config, h *handlers.Handlers) http.Handler {
	r := chi.NewRouter()

	auth := middleware.NewAPIKeyAuth(cfg.Auth)
	limiter := middleware.NewRateLimiter(cfg.Auth.RateLimit, cfg.Auth.RateBurst)

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Telemetry)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id", cfg.Auth.APIKeyHeader},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))
	r.Use(auth.Middleware)
	r.Use(limiter.Middleware)
	r.Use(middleware.Logger)

	// Health & info
	r.Get("/health", healthHandler)
	r.Get("/version", versionHandler(cfg))

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/security", func(r chi.Router) {
			r.Post("/validate", h.ValidateOperation)
			r.Post("/evaluate-danger", h.EvaluateDanger)
			r.Get("/tools", h.ListTools)
		})

		r.Route("/sql", func(r chi.Router) {
			r.Post("/validate", h.ValidateSQL)
			r.Post("/sanitize", h.SanitizeSQL)
			r.Post("/query", h.QuerySQL)
			r.Get("/connections", h.ListConnections)
		})

		r.Route("/specialists", func(r chi.Router) {
			r.Get("/", h.ListSpecialists)
			r.Post("/route", h.RouteSpecialists)
		})

		r.Post("/agent/run", h.RunAgent)

		// Traces & Observability
		r.Route("/traces", func(r chi.Router) {
			r.Get("/", h.ListTraces)
			r.Get("/{traceId}", h.GetTrace)
		})
	})

	// MCP Gateway: agent-to-tool protocol endpoint
	r.Post("/mcp", h.MCPEndpoint)

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "agentcore",
	})
}

func versionHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"version": cfg.Version,
			"service": "agentcore",
		})
	}
}
