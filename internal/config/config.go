package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/geomind/agentcore/pkg/models"
)

// Config holds all configuration for the agentcore server.
type Config struct {
	Port      int
	Version   string
	LogLevel  string
	Agent     AgentConfig
	SQL       SQLConfig
	Database  DatabaseConfig
	Model     ModelConfig
	Auth      AuthConfig
	Telemetry TelemetryConfig
}

type AgentConfig struct {
	SandboxRoot     string
	MaxIterations   int
	ParallelTools   int
	Language        string // announce heuristic: en, fr, off
	ProfilesFile    string
	PolicyRulesFile string
	CommandTimeout  time.Duration
	TraceCapacity   int
	DataDir         string // trace snapshots; empty = memory only
}

type SQLConfig struct {
	MaxRows          int
	StatementTimeout time.Duration
	Strict           bool
	AllowedTables    []string
}

type DatabaseConfig struct {
	// URLs maps connection names to DSNs. DATABASE_URL is "default";
	// DATABASE_URL_<NAME> adds <name>.
	URLs           map[string]string
	MaxConnections int
}

type ModelConfig struct {
	Provider  string
	Name      string
	Endpoint  string
	APIKey    string
	Fallbacks []string // provider:model
	Strategy  string   // fallback or latency
}

type AuthConfig struct {
	APIKeyHeader string
	// Keys binds each API key to a fixed trust level. Empty disables auth
	// and every caller runs at the standard tier.
	Keys      map[string]models.TrustLevel
	RateLimit float64 // requests per second per key; 0 disables
	RateBurst int
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
	Insecure     bool    // plaintext gRPC to the collector
	SampleRatio  float64 // root spans kept, 0..1; children follow their parent
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	keys, err := ParseKeyBindings(envList("AGENTCORE_API_KEYS"))
	if err != nil {
		return nil, fmt.Errorf("AGENTCORE_API_KEYS: %w", err)
	}

	return &Config{
		Port:     envInt("AGENTCORE_PORT", 8080),
		Version:  envStr("AGENTCORE_VERSION", "0.1.0"),
		LogLevel: envStr("LOG_LEVEL", "info"),
		Agent: AgentConfig{
			SandboxRoot:     envStr("AGENTCORE_SANDBOX_ROOT", defaultSandbox()),
			MaxIterations:   envInt("AGENTCORE_MAX_ITERATIONS", 10),
			ParallelTools:   envInt("AGENTCORE_PARALLEL_TOOLS", 1),
			Language:        envStr("AGENTCORE_LANGUAGE", "en"),
			ProfilesFile:    envStr("AGENTCORE_PROFILES_FILE", ""),
			PolicyRulesFile: envStr("AGENTCORE_POLICY_RULES_FILE", ""),
			CommandTimeout:  envDuration("AGENTCORE_COMMAND_TIMEOUT", 30*time.Second),
			TraceCapacity:   envInt("AGENTCORE_TRACE_CAPACITY", 1000),
			DataDir:         envStr("AGENTCORE_DATA_DIR", ""),
		},
		SQL: SQLConfig{
			MaxRows:          envInt("SQL_MAX_ROWS", 10000),
			StatementTimeout: envDuration("SQL_STATEMENT_TIMEOUT", 30*time.Second),
			Strict:           envBool("SQL_STRICT", false),
			AllowedTables:    envList("SQL_ALLOWED_TABLES"),
		},
		Database: DatabaseConfig{
			URLs:           databaseURLs(os.Environ()),
			MaxConnections: envInt("DATABASE_MAX_CONNECTIONS", 10),
		},
		Model: ModelConfig{
			Provider:  envStr("MODEL_PROVIDER", "ollama"),
			Name:      envStr("MODEL_NAME", "qwen2.5:14b"),
			Endpoint:  envStr("MODEL_ENDPOINT", ""),
			APIKey:    envStr("MODEL_API_KEY", ""),
			Fallbacks: envList("MODEL_FALLBACKS"),
			Strategy:  envStr("MODEL_STRATEGY", "fallback"),
		},
		Auth: AuthConfig{
			APIKeyHeader: envStr("AUTH_API_KEY_HEADER", "X-API-Key"),
			Keys:         keys,
			RateLimit:    envFloat("AGENTCORE_RATE_LIMIT", 5),
			RateBurst:    envInt("AGENTCORE_RATE_BURST", 10),
		},
		Telemetry: TelemetryConfig{
			Enabled:      envBool("OTEL_ENABLED", false),
			OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  envStr("OTEL_SERVICE_NAME", "agentcore"),
			Insecure:     envBool("OTEL_EXPORTER_OTLP_INSECURE", true),
			SampleRatio:  envFloat("OTEL_TRACES_SAMPLER_ARG", 1),
		},
	}, nil
}

// ParseKeyBindings reads "key:tier" pairs. The tier is fixed per key for
// the lifetime of the process.
func ParseKeyBindings(pairs []string) (map[string]models.TrustLevel, error) {
	out := make(map[string]models.TrustLevel, len(pairs))
	for _, p := range pairs {
		key, tierName, ok := strings.Cut(p, ":")
		if !ok || key == "" {
			return nil, fmt.Errorf("binding %q: want key:tier", p)
		}
		tier, err := models.ParseTrustLevel(tierName)
		if err != nil {
			return nil, fmt.Errorf("binding for key %s...: %w", mask(key), err)
		}
		out[key] = tier
	}
	return out, nil
}

// ConnectionNames returns the configured connection names, sorted.
func (d DatabaseConfig) ConnectionNames() []string {
	names := make([]string, 0, len(d.URLs))
	for n := range d.URLs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func databaseURLs(environ []string) map[string]string {
	urls := map[string]string{}
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || v == "" {
			continue
		}
		switch {
		case k == "DATABASE_URL":
			urls["default"] = v
		case strings.HasPrefix(k, "DATABASE_URL_"):
			urls[strings.ToLower(strings.TrimPrefix(k, "DATABASE_URL_"))] = v
		}
	}
	return urls
}

func defaultSandbox() string {
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

func mask(key string) string {
	if len(key) <= 4 {
		return key
	}
	return key[:4]
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// envList splits a comma-separated value, dropping empty items.
func envList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
