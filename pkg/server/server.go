// Package server provides the public entry point for initializing the
// agentcore server.
//
// This package exists in pkg/ (not internal/) so that a host application
// can compose the server with its own middleware.
//
// Usage:
//
//	srv, err := server.New(ctx)
//	http.ListenAndServe(":8080", srv.Handler)
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/geomind/agentcore/internal/api"
	"github.com/geomind/agentcore/internal/api/handlers"
	"github.com/geomind/agentcore/internal/config"
	"github.com/geomind/agentcore/internal/executor"
	"github.com/geomind/agentcore/internal/mcpgw"
	"github.com/geomind/agentcore/internal/policy"
	modelrouter "github.com/geomind/agentcore/internal/router"
	"github.com/geomind/agentcore/internal/specialist"
	"github.com/geomind/agentcore/internal/sqlexec"
	"github.com/geomind/agentcore/internal/store"
	"github.com/geomind/agentcore/internal/telemetry"
	"github.com/geomind/agentcore/internal/tools"
	"github.com/geomind/agentcore/pkg/contracts"
)

// Server holds the initialized agentcore server.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Traces is the run trace store.
	Traces store.TraceStore

	// Connections holds the database pools.
	Connections *sqlexec.Registry

	// Config is the server configuration.
	Config *config.Config

	// Port is the port the server should listen on.
	Port int

	// ShutdownFunc should be called on graceful shutdown to flush telemetry.
	ShutdownFunc func(context.Context) error
}

// New initializes all components from environment configuration.
func New(ctx context.Context) (*Server, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewWithConfig(ctx, cfg)
}

// NewWithConfig initializes the server with an explicit configuration.
func NewWithConfig(ctx context.Context, cfg *config.Config) (*Server, error) {
	shutdown, err := telemetry.Init(cfg.Telemetry, cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	engine, err := newPolicyEngine(cfg.Agent)
	if err != nil {
		return nil, err
	}
	log.Info().Str("sandbox", cfg.Agent.SandboxRoot).Msg("✅ Policy engine initialized")

	specialists, err := newSpecialistRouter(cfg.Agent.ProfilesFile)
	if err != nil {
		return nil, err
	}
	log.Info().Int("profiles", len(specialists.Profiles())).Msg("✅ Specialist router initialized")

	connections, pipeline, err := newSQL(ctx, cfg)
	if err != nil {
		return nil, err
	}

	catalog, err := tools.NewDefaultCatalog(engine, tools.Config{
		SandboxRoot:    cfg.Agent.SandboxRoot,
		CommandTimeout: cfg.Agent.CommandTimeout,
		Pipeline:       pipeline,
	})
	if err != nil {
		connections.Close()
		return nil, fmt.Errorf("build tool catalog: %w", err)
	}
	log.Info().Int("tools", len(catalog.All())).Msg("✅ Tool catalog initialized")

	backend, err := newModelBackend(cfg.Model)
	if err != nil {
		connections.Close()
		return nil, err
	}
	log.Info().Str("backend", backend.Name()).Msg("✅ Model router initialized")

	heuristic, err := executor.HeuristicFor(cfg.Agent.Language)
	if err != nil {
		connections.Close()
		return nil, err
	}

	traces := store.NewMemoryStore(
		store.WithCapacity(cfg.Agent.TraceCapacity),
		store.WithSnapshot(cfg.Agent.DataDir),
	)

	exec := executor.NewExecutor(catalog,
		executor.WithMaxIterations(cfg.Agent.MaxIterations),
		executor.WithHeuristic(heuristic),
		executor.WithRecorder(traces),
		executor.WithParallelTools(cfg.Agent.ParallelTools),
	)
	gw := mcpgw.NewGateway(catalog, cfg.Version)
	log.Info().Msg("✅ MCP Gateway initialized")

	h := handlers.New(handlers.Deps{
		Policy:      engine,
		Tools:       catalog,
		Specialists: specialists,
		Executor:    exec,
		Backend:     backend,
		Traces:      traces,
		MCPGateway:  gw,
		SQL:         pipeline,
		Connections: connections,
	})

	return &Server{
		Handler:      api.NewRouter(cfg, h),
		Traces:       traces,
		Connections:  connections,
		Config:       cfg,
		Port:         cfg.Port,
		ShutdownFunc: shutdown,
	}, nil
}

// Close releases database pools and flushes the trace store.
func (s *Server) Close() error {
	s.Connections.Close()
	return s.Traces.Close()
}

func newPolicyEngine(cfg config.AgentConfig) (*policy.Engine, error) {
	var opts []policy.Option
	if cfg.PolicyRulesFile != "" {
		rules, err := policy.LoadRules(cfg.PolicyRulesFile)
		if err != nil {
			return nil, fmt.Errorf("load policy rules: %w", err)
		}
		opts = append(opts, policy.WithRules(rules...))
		log.Info().Int("rules", len(rules)).Str("file", cfg.PolicyRulesFile).Msg("Operator rules loaded")
	}
	return policy.New(cfg.SandboxRoot, opts...), nil
}

func newSpecialistRouter(profilesFile string) (*specialist.Router, error) {
	base, profiles := specialist.DefaultBasePrompt, specialist.DefaultProfiles()
	if profilesFile != "" {
		loaded, override, err := specialist.LoadProfiles(profilesFile)
		if err != nil {
			return nil, err
		}
		profiles = loaded
		if override != "" {
			base = override
		}
	}
	r, err := specialist.New(base, profiles)
	if err != nil {
		return nil, fmt.Errorf("build specialist router: %w", err)
	}
	return r, nil
}

// newSQL opens one pool per configured connection. With no connection the
// SQL tools are left out and the pipeline is nil.
func newSQL(ctx context.Context, cfg *config.Config) (*sqlexec.Registry, *sqlexec.Pipeline, error) {
	registry := sqlexec.NewRegistry()
	for _, name := range cfg.Database.ConnectionNames() {
		exec, err := sqlexec.NewPostgresExecutor(ctx, sqlexec.PostgresConfig{
			Name:             name,
			URL:              cfg.Database.URLs[name],
			MaxConns:         int32(cfg.Database.MaxConnections),
			StatementTimeout: cfg.SQL.StatementTimeout,
		})
		if err != nil {
			registry.Close()
			return nil, nil, fmt.Errorf("connect %s: %w", name, err)
		}
		registry.Register(name, exec)
		log.Info().Str("connection", name).Msg("✅ Database connection ready")
	}

	if len(registry.List()) == 0 {
		log.Warn().Msg("No DATABASE_URL configured, SQL tools disabled")
		return registry, nil, nil
	}
	pipeline := sqlexec.NewPipeline(registry, sqlexec.PipelineOptions{
		MaxRows:       cfg.SQL.MaxRows,
		Strict:        cfg.SQL.Strict,
		AllowedTables: cfg.SQL.AllowedTables,
	})
	return registry, pipeline, nil
}

// newModelBackend builds the primary backend plus fallbacks behind a
// retrying router. A fallback of the primary's provider inherits its
// endpoint and key.
func newModelBackend(cfg config.ModelConfig) (contracts.ModelBackend, error) {
	configs := []modelrouter.BackendConfig{{
		Provider: cfg.Provider,
		Model:    cfg.Name,
		Endpoint: cfg.Endpoint,
		APIKey:   cfg.APIKey,
	}}
	fallbacks, err := modelrouter.ParseFallbacks(cfg.Fallbacks)
	if err != nil {
		return nil, err
	}
	for _, fb := range fallbacks {
		if fb.Provider == cfg.Provider {
			fb.Endpoint, fb.APIKey = cfg.Endpoint, cfg.APIKey
		}
		configs = append(configs, fb)
	}

	backends := make([]contracts.ModelBackend, 0, len(configs))
	for _, c := range configs {
		b, err := modelrouter.NewBackend(c)
		if err != nil {
			return nil, err
		}
		backends = append(backends, b)
	}

	var strategy modelrouter.Strategy
	switch modelrouter.Strategy(cfg.Strategy) {
	case modelrouter.StrategyFallback, "":
		strategy = modelrouter.StrategyFallback
	case modelrouter.StrategyLatency:
		strategy = modelrouter.StrategyLatency
	default:
		return nil, errors.New("MODEL_STRATEGY must be fallback or latency")
	}
	return modelrouter.New(backends, modelrouter.WithStrategy(strategy)), nil
}
