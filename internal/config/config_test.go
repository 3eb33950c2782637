package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geomind/agentcore/internal/config"
	"github.com/geomind/agentcore/pkg/models"
)

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("AGENTCORE_PORT", "9090")
	t.Setenv("AGENTCORE_MAX_ITERATIONS", "6")
	t.Setenv("AGENTCORE_LANGUAGE", "fr")
	t.Setenv("AGENTCORE_API_KEYS", "k-std:standard, k-ops:god")
	t.Setenv("SQL_STATEMENT_TIMEOUT", "5s")
	t.Setenv("SQL_STRICT", "true")
	t.Setenv("DATABASE_URL", "postgres://localhost/gis")
	t.Setenv("DATABASE_URL_CADASTRE", "postgres://localhost/cadastre")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.25")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "false")
	t.Setenv("MODEL_FALLBACKS", "openai:gpt-4o-mini,,anthropic:claude-3-7-sonnet-latest")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 6, cfg.Agent.MaxIterations)
	assert.Equal(t, "fr", cfg.Agent.Language)
	assert.Equal(t, 5*time.Second, cfg.SQL.StatementTimeout)
	assert.True(t, cfg.SQL.Strict)
	assert.Equal(t, map[string]models.TrustLevel{"k-std": models.TrustStandard, "k-ops": models.TrustRoot}, cfg.Auth.Keys)
	assert.Equal(t, []string{"cadastre", "default"}, cfg.Database.ConnectionNames())
	assert.Equal(t, []string{"openai:gpt-4o-mini", "anthropic:claude-3-7-sonnet-latest"}, cfg.Model.Fallbacks)
	assert.Equal(t, 0.25, cfg.Telemetry.SampleRatio)
	assert.False(t, cfg.Telemetry.Insecure)
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AGENTCORE_PORT", "not-a-number")
	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 10000, cfg.SQL.MaxRows)
	assert.Equal(t, 30*time.Second, cfg.Agent.CommandTimeout)
	assert.True(t, cfg.Telemetry.Insecure)
	assert.Equal(t, 1.0, cfg.Telemetry.SampleRatio)
}

func TestParseKeyBindings(t *testing.T) {
	_, err := config.ParseKeyBindings([]string{"nokey"})
	assert.Error(t, err)

	_, err = config.ParseKeyBindings([]string{"abcdefgh:admin"})
	assert.ErrorIs(t, err, models.ErrUnknownTrustLevel)
	assert.NotContains(t, err.Error(), "abcdefgh")
}

func TestLoad_BadKeyBinding(t *testing.T) {
	t.Setenv("AGENTCORE_API_KEYS", "k1:superuser")
	_, err := config.Load()
	assert.Error(t, err)
}
