package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/geomind/agentcore/internal/api/middleware"
	"github.com/geomind/agentcore/pkg/models"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return rec
}

// attr returns the last value recorded for key.
func attr(span sdktrace.ReadOnlySpan, key string) string {
	var v string
	for _, kv := range span.Attributes() {
		if kv.Key == attribute.Key(key) {
			v = kv.Value.Emit()
		}
	}
	return v
}

func tracedRouter() http.Handler {
	auth := newAuth(map[string]models.TrustLevel{"ops-key": models.TrustExpert})
	r := chi.NewRouter()
	r.Use(middleware.Telemetry)
	r.Use(auth.Middleware)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/api/v1/traces/{traceId}", tierEcho)
	r.Get("/api/v1/boom", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusBadGateway) })
	return r
}

func TestTelemetry_SpanCarriesTierAndRoute(t *testing.T) {
	rec := recordSpans(t)
	h := tracedRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/traces/run-42", nil)
	req.Header.Set("X-API-Key", "ops-key")
	h.ServeHTTP(httptest.NewRecorder(), req)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "GET /api/v1/traces/{traceId}", span.Name())
	assert.Equal(t, "/api/v1/traces/{traceId}", attr(span, "http.route"))
	assert.Equal(t, "expert", attr(span, "agentcore.tier"))
	assert.True(t, strings.HasPrefix(attr(span, "agentcore.caller"), "key-"))
	assert.Equal(t, "200", attr(span, "http.response.status_code"))
}

func TestTelemetry_AnonymousAndServerErrors(t *testing.T) {
	rec := recordSpans(t)
	h := tracedRouter()

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/boom", nil)
	req.Header.Set("Authorization", "Bearer ops-key")
	h.ServeHTTP(httptest.NewRecorder(), req)

	spans := rec.Ended()
	require.Len(t, spans, 2)

	health := spans[0]
	assert.Equal(t, "standard", attr(health, "agentcore.tier"))
	assert.Equal(t, "anonymous", attr(health, "agentcore.caller"))
	assert.Equal(t, codes.Unset, health.Status().Code)

	boom := spans[1]
	assert.Equal(t, "502", attr(boom, "http.response.status_code"))
	assert.Equal(t, codes.Error, boom.Status().Code)
}
