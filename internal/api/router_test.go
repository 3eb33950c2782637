package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geomind/agentcore/internal/api"
	"github.com/geomind/agentcore/internal/api/handlers"
	"github.com/geomind/agentcore/internal/config"
	"github.com/geomind/agentcore/internal/executor"
	"github.com/geomind/agentcore/internal/mcpgw"
	"github.com/geomind/agentcore/internal/policy"
	"github.com/geomind/agentcore/internal/specialist"
	"github.com/geomind/agentcore/internal/store"
	"github.com/geomind/agentcore/internal/tools"
	"github.com/geomind/agentcore/pkg/models"
)

type scriptedBackend struct {
	mu        sync.Mutex
	responses []string
	calls     int
	prompts   []string
}

func (b *scriptedBackend) Name() string { return "scripted" }

func (b *scriptedBackend) SendChat(_ context.Context, _ []models.ChatMessage, systemPrompt string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prompts = append(b.prompts, systemPrompt)
	i := b.calls
	b.calls++
	if i >= len(b.responses) {
		i = len(b.responses) - 1
	}
	return b.responses[i], nil
}

type fixture struct {
	handler http.Handler
	root    string
	backend *scriptedBackend
}

func newFixture(t *testing.T, keys map[string]models.TrustLevel, responses ...string) *fixture {
	t.Helper()
	root := t.TempDir()

	engine := policy.New(root)
	catalog, err := tools.NewDefaultCatalog(engine, tools.Config{SandboxRoot: root})
	require.NoError(t, err)

	router, err := specialist.New(specialist.DefaultBasePrompt, specialist.DefaultProfiles())
	require.NoError(t, err)

	traces := store.NewMemoryStore()
	t.Cleanup(func() { traces.Close() })

	if len(responses) == 0 {
		responses = []string{"Done."}
	}
	backend := &scriptedBackend{responses: responses}

	h := handlers.New(handlers.Deps{
		Policy:      engine,
		Tools:       catalog,
		Specialists: router,
		Executor:    executor.NewExecutor(catalog, executor.WithRecorder(traces)),
		Backend:     backend,
		Traces:      traces,
		MCPGateway:  mcpgw.NewGateway(catalog, "test"),
	})

	cfg := &config.Config{
		Version: "test",
		Auth:    config.AuthConfig{APIKeyHeader: "X-API-Key", Keys: keys, RateLimit: 0},
	}
	return &fixture{handler: api.NewRouter(cfg, h), root: root, backend: backend}
}

func (f *fixture) do(t *testing.T, method, path, key string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealthAndVersion(t *testing.T) {
	f := newFixture(t, map[string]models.TrustLevel{"k": models.TrustRoot})

	w := f.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode[map[string]string](t, w)["status"])

	w = f.do(t, http.MethodGet, "/version", "", nil)
	assert.Equal(t, "test", decode[map[string]string](t, w)["version"])
}

func TestValidateOperation_UsesKeyTier(t *testing.T) {
	f := newFixture(t, map[string]models.TrustLevel{
		"std-key":  models.TrustStandard,
		"root-key": models.TrustRoot,
	})
	op := models.OperationRequest{Kind: models.OpExecute, Command: "ls -la"}

	w := f.do(t, http.MethodPost, "/api/v1/security/validate", "std-key", op)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[models.PolicyDecision](t, w).Allowed)

	w = f.do(t, http.MethodPost, "/api/v1/security/validate", "root-key", op)
	assert.True(t, decode[models.PolicyDecision](t, w).Allowed)

	w = f.do(t, http.MethodPost, "/api/v1/security/validate", "", op)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/security/validate", "root-key", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEvaluateDanger(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(t, http.MethodPost, "/api/v1/security/evaluate-danger", "", map[string]string{"command": "mkfs.ext4 /dev/sda1"})
	require.Equal(t, http.StatusOK, w.Code)
	eval := decode[models.DangerEvaluation](t, w)
	assert.True(t, eval.Blocked)
	assert.Equal(t, models.DangerBlocked, eval.Level)

	w = f.do(t, http.MethodPost, "/api/v1/security/evaluate-danger", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListTools_ByTier(t *testing.T) {
	f := newFixture(t, map[string]models.TrustLevel{"std": models.TrustStandard, "exp": models.TrustExpert})

	names := func(key string) []string {
		w := f.do(t, http.MethodGet, "/api/v1/security/tools", key, nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := decode[struct {
			Tier  models.TrustLevel       `json:"tier"`
			Tools []models.ToolDefinition `json:"tools"`
		}](t, w)
		out := make([]string, len(body.Tools))
		for i, d := range body.Tools {
			out[i] = d.Name
		}
		return out
	}

	assert.NotContains(t, names("std"), "execute_command")
	assert.Contains(t, names("exp"), "execute_command")
}

func TestSQLEndpoints(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(t, http.MethodPost, "/api/v1/sql/validate", "", map[string]string{"query": "DROP TABLE parcels"})
	require.Equal(t, http.StatusOK, w.Code)
	v := decode[struct {
		Result  models.SQLValidationResult `json:"result"`
		Summary string                     `json:"summary"`
	}](t, w)
	assert.False(t, v.Result.Valid)
	assert.NotEmpty(t, v.Summary)

	w = f.do(t, http.MethodPost, "/api/v1/sql/sanitize", "", map[string]string{"query": "SELECT * FROM parcels ORDER BY id;"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "SELECT * FROM parcels ORDER BY id LIMIT 10000", decode[map[string]any](t, w)["sanitized"])

	w = f.do(t, http.MethodPost, "/api/v1/sql/sanitize", "", map[string]string{"query": "DELETE FROM parcels"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/sql/query", "", map[string]string{"query": "SELECT 1"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/sql/validate", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSpecialists(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(t, http.MethodPost, "/api/v1/specialists/route", "", map[string]string{"message": "Write a PostGIS query with ST_Intersects"})
	require.Equal(t, http.StatusOK, w.Code)
	route := decode[models.RouteResult](t, w)
	assert.Contains(t, route.Profiles, "sql")

	w = f.do(t, http.MethodGet, "/api/v1/specialists", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decode[[]models.SpecialistProfile](t, w))
}

func TestRunAgent_RecordsTrace(t *testing.T) {
	f := newFixture(t, nil,
		`<tool_call>{"name": "read_file", "input": {"path": "notes.txt"}}</tool_call>`,
		"The notes say hello.",
	)
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "notes.txt"), []byte("hello"), 0o644))

	w := f.do(t, http.MethodPost, "/api/v1/agent/run", "", map[string]string{"message": "What do my notes say?"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	res := decode[struct {
		TraceID    string                `json:"traceId"`
		FinalText  string                `json:"finalText"`
		ToolLog    []models.ToolLogEntry `json:"toolLog"`
		Iterations int                   `json:"iterations"`
		Outcome    models.RunOutcome     `json:"outcome"`
	}](t, w)
	assert.Equal(t, "The notes say hello.", res.FinalText)
	assert.Equal(t, models.OutcomeDone, res.Outcome)
	assert.Equal(t, 2, res.Iterations)
	require.Len(t, res.ToolLog, 1)
	assert.True(t, res.ToolLog[0].Result.Success)

	// The system prompt carries the tool protocol.
	assert.Contains(t, f.backend.prompts[0], "read_file")

	w = f.do(t, http.MethodGet, "/api/v1/traces/"+res.TraceID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, res.TraceID, decode[models.ExecutionTrace](t, w).TraceID)

	w = f.do(t, http.MethodGet, "/api/v1/traces?limit=5", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.ExecutionTrace](t, w), 1)

	w = f.do(t, http.MethodGet, "/api/v1/traces/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/traces?limit=-1", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRunAgent_EmptyMessage(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(t, http.MethodPost, "/api/v1/agent/run", "", map[string]string{"message": "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMCPEndpoint(t *testing.T) {
	f := newFixture(t, map[string]models.TrustLevel{"std": models.TrustStandard})

	w := f.do(t, http.MethodPost, "/mcp", "std", models.MCPRequest{Jsonrpc: "2.0", Method: "ping", ID: 1})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[map[string]any](t, w)
	assert.Equal(t, map[string]any{"status": "pong"}, resp["result"])

	w = f.do(t, http.MethodPost, "/mcp", "std", models.MCPRequest{Jsonrpc: "2.0", Method: "notifications/initialized"})
	assert.Equal(t, http.StatusNoContent, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewBufferString("{"))
	req.Header.Set("X-API-Key", "std")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	errResp := decode[models.MCPResponse](t, rec)
	require.NotNil(t, errResp.Error)
	assert.Equal(t, mcpgw.CodeParseError, errResp.Error.Code)
}
