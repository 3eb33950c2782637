package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/geomind/agentcore/internal/api/middleware"
	"github.com/geomind/agentcore/internal/config"
	callerctx "github.com/geomind/agentcore/pkg/middleware"
	"github.com/geomind/agentcore/pkg/models"
)

// tierEcho writes the caller's tier as the body.
var tierEcho = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(callerctx.GetTier(r.Context())))
})

func newAuth(keys map[string]models.TrustLevel) *middleware.APIKeyAuth {
	return middleware.NewAPIKeyAuth(config.AuthConfig{APIKeyHeader: "X-API-Key", Keys: keys})
}

func TestAPIKeyAuth_Disabled(t *testing.T) {
	auth := newAuth(nil)
	if auth.Enabled() {
		t.Error("Expected auth to be disabled when no keys are configured")
	}

	handler := auth.Middleware(tierEcho)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/security/tools", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Disabled auth: status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := w.Body.String(); got != string(models.TrustStandard) {
		t.Errorf("Disabled auth: tier = %q, want standard", got)
	}
}

func TestAPIKeyAuth_ValidKeyBindsTier(t *testing.T) {
	auth := newAuth(map[string]models.TrustLevel{
		"test-key-std":  models.TrustStandard,
		"test-key-root": models.TrustRoot,
	})
	if !auth.Enabled() {
		t.Fatal("Expected auth to be enabled")
	}
	handler := auth.Middleware(tierEcho)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/security/tools", nil)
	req.Header.Set("Authorization", "Bearer test-key-root")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Body.String() != string(models.TrustRoot) {
		t.Errorf("Bearer key: status = %d tier = %q, want 200 root", w.Code, w.Body.String())
	}

	req2 := httptest.NewRequest(http.MethodGet, "/api/v1/security/tools", nil)
	req2.Header.Set("X-API-Key", "test-key-std")
	w2 := httptest.NewRecorder()
	handler.ServeHTTP(w2, req2)
	if w2.Code != http.StatusOK || w2.Body.String() != string(models.TrustStandard) {
		t.Errorf("X-API-Key: status = %d tier = %q, want 200 standard", w2.Code, w2.Body.String())
	}
}

func TestAPIKeyAuth_InvalidKey(t *testing.T) {
	handler := newAuth(map[string]models.TrustLevel{"valid-key": models.TrustExpert}).Middleware(tierEcho)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/traces", nil)
	req.Header.Set("Authorization", "Bearer wrong-key")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Invalid key: status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestAPIKeyAuth_MissingKey(t *testing.T) {
	handler := newAuth(map[string]models.TrustLevel{"valid-key": models.TrustExpert}).Middleware(tierEcho)

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Missing key: status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if w.Header().Get("WWW-Authenticate") == "" {
		t.Error("Missing key: expected WWW-Authenticate header")
	}
}

func TestAPIKeyAuth_PublicPaths(t *testing.T) {
	handler := newAuth(map[string]models.TrustLevel{"valid-key": models.TrustExpert}).Middleware(tierEcho)

	for _, path := range []string{"/health", "/version"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("Public path %q: status = %d, want %d", path, w.Code, http.StatusOK)
		}
	}
}

func TestAPIKeyAuth_CustomHeader(t *testing.T) {
	auth := middleware.NewAPIKeyAuth(config.AuthConfig{
		APIKeyHeader: "X-Agent-Key",
		Keys:         map[string]models.TrustLevel{"k-expert": models.TrustExpert},
	})
	handler := auth.Middleware(tierEcho)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/specialists", nil)
	req.Header.Set("X-Agent-Key", "k-expert")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Body.String() != string(models.TrustExpert) {
		t.Errorf("Custom header: tier = %q, want expert", w.Body.String())
	}
}
