// Package router implements the model backends and the backend Router.
//
// The Router orders its backends by the configured strategy (fallback or
// latency-optimized), retries transient failures of each backend with
// exponential backoff, and fails over to the next backend transparently.
// It satisfies contracts.ModelBackend, so the agent loop never knows how
// many providers stand behind it.
package router

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"github.com/geomind/agentcore/pkg/contracts"
	"github.com/geomind/agentcore/pkg/models"
)

// ErrNoBackends is returned when a router has nothing to route to.
var ErrNoBackends = errors.New("no model backends configured")

// Strategy orders backends for each request.
type Strategy string

const (
	StrategyFallback Strategy = "fallback" // configured order
	StrategyLatency  Strategy = "latency"  // fastest observed first
)

// StatusError is a non-success HTTP status from a provider.
type StatusError struct {
	Backend string
	Code    int
	Body    string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.Backend, e.Code)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Backend, e.Code, e.Body)
}

// IsTransient reports whether err is worth retrying on the same backend:
// rate limiting, server errors, timeouts and refused connections.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == 429 || se.Code == 408 || se.Code >= 500
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	var ue *url.Error
	return errors.As(err, &ue)
}

// Router fans a chat out over ordered backends.
type Router struct {
	backends []contracts.ModelBackend
	strategy Strategy

	maxRetries      uint64
	initialInterval time.Duration
	maxInterval     time.Duration

	// Latency tracking: backend name → rolling avg ms
	latencyMu sync.RWMutex
	latencies map[string]int64
}

// Option configures a Router.
type Option func(*Router)

// WithStrategy sets the ordering strategy.
func WithStrategy(s Strategy) Option {
	return func(r *Router) { r.strategy = s }
}

// WithBackoff tunes per-backend retries.
func WithBackoff(initial, max time.Duration, retries uint64) Option {
	return func(r *Router) {
		r.initialInterval = initial
		r.maxInterval = max
		r.maxRetries = retries
	}
}

// New creates a router over backends, tried in the given order.
func New(backends []contracts.ModelBackend, opts ...Option) *Router {
	r := &Router{
		backends:        backends,
		strategy:        StrategyFallback,
		maxRetries:      2,
		initialInterval: 500 * time.Millisecond,
		maxInterval:     5 * time.Second,
		latencies:       make(map[string]int64),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Name lists the backends in configured order.
func (r *Router) Name() string {
	names := make([]string, len(r.backends))
	for i, b := range r.backends {
		names[i] = b.Name()
	}
	return strings.Join(names, ",")
}

// SendChat tries each backend until one answers.
func (r *Router) SendChat(ctx context.Context, turns []models.ChatMessage, systemPrompt string) (string, error) {
	if len(r.backends) == 0 {
		return "", ErrNoBackends
	}

	var lastErr error
	for _, b := range r.order() {
		text, err := r.call(ctx, b, turns, systemPrompt)
		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", err
		}
		log.Warn().
			Str("backend", b.Name()).
			Err(err).
			Msg("Backend call failed, trying next")
		lastErr = err
	}
	return "", fmt.Errorf("all backends failed, last error: %w", lastErr)
}

func (r *Router) call(ctx context.Context, b contracts.ModelBackend, turns []models.ChatMessage, systemPrompt string) (string, error) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = r.initialInterval
	eb.MaxInterval = r.maxInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, r.maxRetries), ctx)

	var text string
	op := func() error {
		start := time.Now()
		out, err := b.SendChat(ctx, turns, systemPrompt)
		if err != nil {
			if IsTransient(err) {
				log.Debug().Str("backend", b.Name()).Err(err).Msg("Transient backend error, retrying")
				return err
			}
			return backoff.Permanent(err)
		}
		r.observe(b.Name(), time.Since(start).Milliseconds())
		text = out
		return nil
	}
	if err := backoff.Retry(op, policy); err != nil {
		return "", err
	}
	return text, nil
}

// observe folds one latency sample into the backend's moving average.
func (r *Router) observe(name string, ms int64) {
	r.latencyMu.Lock()
	defer r.latencyMu.Unlock()
	prev := r.latencies[name]
	if prev == 0 {
		r.latencies[name] = ms
		return
	}
	r.latencies[name] = (prev*7 + ms*3) / 10
}

// Latencies returns a snapshot of the rolling average latency per backend.
func (r *Router) Latencies() map[string]int64 {
	r.latencyMu.RLock()
	defer r.latencyMu.RUnlock()
	out := make(map[string]int64, len(r.latencies))
	for k, v := range r.latencies {
		out[k] = v
	}
	return out
}

func (r *Router) order() []contracts.ModelBackend {
	ordered := append([]contracts.ModelBackend(nil), r.backends...)
	if r.strategy != StrategyLatency {
		return ordered
	}

	r.latencyMu.RLock()
	defer r.latencyMu.RUnlock()
	sort.SliceStable(ordered, func(i, j int) bool {
		li := r.latencies[ordered[i].Name()]
		lj := r.latencies[ordered[j].Name()]
		if li == 0 {
			li = 1000 // default 1s for unknown
		}
		if lj == 0 {
			lj = 1000
		}
		return li < lj
	})
	return ordered
}

// ── Construction ────────────────────────────────────────────

// BackendConfig describes one backend.
type BackendConfig struct {
	Provider string // ollama, openai, anthropic
	Model    string
	Endpoint string
	APIKey   string
}

// NewBackend creates the backend for cfg.Provider.
func NewBackend(cfg BackendConfig) (contracts.ModelBackend, error) {
	switch strings.ToLower(cfg.Provider) {
	case "ollama", "":
		return NewOllamaBackend(cfg.Endpoint, cfg.Model), nil
	case "openai", "openai-compatible":
		return NewOpenAIBackend(cfg.Endpoint, cfg.APIKey, cfg.Model), nil
	case "anthropic":
		return NewAnthropicBackend(cfg.Endpoint, cfg.APIKey, cfg.Model), nil
	}
	return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
}

// ParseFallbacks reads "provider:model" entries. The model part may itself
// contain colons (e.g. ollama:qwen2.5:14b).
func ParseFallbacks(entries []string) ([]BackendConfig, error) {
	out := make([]BackendConfig, 0, len(entries))
	for _, e := range entries {
		provider, model, ok := strings.Cut(strings.TrimSpace(e), ":")
		if !ok || provider == "" || model == "" {
			return nil, fmt.Errorf("fallback %q: want provider:model", e)
		}
		out = append(out, BackendConfig{Provider: provider, Model: model})
	}
	return out, nil
}
