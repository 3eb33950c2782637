package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/geomind/agentcore/internal/config"
	"github.com/geomind/agentcore/pkg/middleware"
	"github.com/geomind/agentcore/pkg/models"
)

// APIKeyAuth validates API keys and binds each request to the trust level
// of its key.
//
// When enabled (AGENTCORE_API_KEYS is set), every request outside the
// public paths must carry a valid key via:
//   - Authorization: Bearer <key>
//   - the configured key header (X-API-Key by default)
//
// When no keys are configured, auth is disabled and every caller runs at
// the standard tier. A key's tier is fixed at startup; no request can
// change it.
type APIKeyAuth struct {
	header string
	keys   map[string]models.TrustLevel
}

// NewAPIKeyAuth creates API key middleware from the auth config.
func NewAPIKeyAuth(cfg config.AuthConfig) *APIKeyAuth {
	header := cfg.APIKeyHeader
	if header == "" {
		header = "X-API-Key"
	}
	keys := make(map[string]models.TrustLevel, len(cfg.Keys))
	for k, tier := range cfg.Keys {
		keys[k] = tier
	}
	return &APIKeyAuth{header: header, keys: keys}
}

// Enabled returns whether API key auth is active.
func (a *APIKeyAuth) Enabled() bool { return len(a.keys) > 0 }

// Middleware returns an http.Handler middleware that enforces API key auth.
func (a *APIKeyAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Enabled() || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		apiKey := a.extractAPIKey(r)
		if apiKey == "" {
			respondUnauthorized(w, "API key required. Set Authorization: Bearer <key> or "+a.header+" header.")
			return
		}

		tier, ok := a.lookup(apiKey)
		if !ok {
			log.Warn().Str("key", keyID(apiKey)).Str("path", r.URL.Path).Msg("Rejected invalid API key")
			respondUnauthorized(w, "Invalid API key.")
			return
		}

		id := keyID(apiKey)
		trace.SpanFromContext(r.Context()).SetAttributes(
			attribute.String("agentcore.caller", id),
			attribute.String("agentcore.tier", string(tier)),
		)
		ctx := middleware.SetCaller(r.Context(), middleware.Caller{KeyID: id, Tier: tier})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// lookup compares candidate against every key in constant time.
func (a *APIKeyAuth) lookup(candidate string) (models.TrustLevel, bool) {
	var (
		found models.TrustLevel
		ok    bool
	)
	for key, tier := range a.keys {
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(key)) == 1 {
			found, ok = tier, true
		}
	}
	return found, ok
}

func (a *APIKeyAuth) extractAPIKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.Header.Get(a.header)
}

// keyID is the loggable form of a key: a short digest, never the key.
func keyID(key string) string {
	sum := sha256.Sum256([]byte(key))
	return "key-" + hex.EncodeToString(sum[:4])
}

func isPublicPath(path string) bool {
	return path == "/health" || path == "/version"
}

func respondUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="agentcore"`)
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   "unauthorized",
		"message": msg,
	})
}
