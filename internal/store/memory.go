package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/geomind/agentcore/pkg/models"
)

const (
	DefaultCapacity = 1000
	DefaultTraceTTL = 7 * 24 * time.Hour
)

// snapshot is the JSON-serializable shape written to disk.
type snapshot struct {
	Traces []*models.ExecutionTrace `json:"traces"` // oldest first
}

// MemoryStore implements TraceStore with an insertion-ordered map, bounded
// by count and age. With WithSnapshot it persists to a JSON file so traces
// survive restarts.
type MemoryStore struct {
	mu     sync.RWMutex
	traces map[string]*models.ExecutionTrace
	order  []string // trace IDs, oldest first

	capacity int

	// Traces older than traceTTL are evicted automatically.
	traceTTL time.Duration

	// Persistence
	snapshotPath string        // empty = no persistence
	saveMu       sync.Mutex    // guards file writes
	saveCh       chan struct{} // debounce channel
	doneCh       chan struct{} // signals background goroutines to stop
	wg           sync.WaitGroup
}

// Option configures a MemoryStore.
type Option func(*MemoryStore)

// WithCapacity bounds the number of kept traces; the oldest go first.
func WithCapacity(n int) Option {
	return func(m *MemoryStore) {
		if n > 0 {
			m.capacity = n
		}
	}
}

// WithTraceTTL evicts traces older than ttl.
func WithTraceTTL(ttl time.Duration) Option {
	return func(m *MemoryStore) {
		if ttl > 0 {
			m.traceTTL = ttl
		}
	}
}

// WithSnapshot persists traces as JSON in dir.
func WithSnapshot(dir string) Option {
	return func(m *MemoryStore) {
		if dir != "" {
			m.snapshotPath = filepath.Join(dir, "traces.json")
		}
	}
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	m := &MemoryStore{
		traces:   make(map[string]*models.ExecutionTrace),
		capacity: DefaultCapacity,
		traceTTL: DefaultTraceTTL,
		saveCh:   make(chan struct{}, 1),
		doneCh:   make(chan struct{}),
	}
	for _, o := range opts {
		o(m)
	}

	if m.snapshotPath != "" {
		if err := os.MkdirAll(filepath.Dir(m.snapshotPath), 0o755); err != nil {
			log.Warn().Err(err).Str("path", m.snapshotPath).Msg("Cannot create data dir, persistence disabled")
			m.snapshotPath = ""
		}
	}

	// Load existing data from disk
	if m.snapshotPath != "" {
		m.loadSnapshot()
		m.wg.Add(1)
		go m.saveLoop()
	}

	// Trace TTL eviction (runs every 10 minutes)
	m.wg.Add(1)
	go m.traceEvictionLoop()

	log.Info().
		Int("capacity", m.capacity).
		Str("trace_ttl", m.traceTTL.String()).
		Str("snapshot", m.snapshotPath).
		Msg("Trace store configured")

	return m
}

// requestSave signals the background goroutine to persist data.
// Non-blocking: coalesces multiple rapid writes into one disk flush.
func (m *MemoryStore) requestSave() {
	if m.snapshotPath == "" {
		return
	}
	select {
	case m.saveCh <- struct{}{}:
	default:
		// Already pending
	}
}

// saveLoop debounces save requests (max 1 write per 500ms).
func (m *MemoryStore) saveLoop() {
	defer m.wg.Done()
	for {
		select {
		case <-m.doneCh:
			return
		case <-m.saveCh:
			select {
			case <-m.doneCh:
				return
			case <-time.After(500 * time.Millisecond):
			}
			m.saveSnapshot()
		}
	}
}

func (m *MemoryStore) traceEvictionLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.doneCh:
			return
		case <-ticker.C:
			m.evictExpiredTraces()
		}
	}
}

func (m *MemoryStore) expired(t *models.ExecutionTrace, now time.Time) bool {
	return t.StartedAt.Before(now.Add(-m.traceTTL))
}

// evictExpiredTraces removes traces older than the configured TTL.
func (m *MemoryStore) evictExpiredTraces() {
	now := time.Now()

	m.mu.Lock()
	kept := m.order[:0]
	var evicted int
	for _, id := range m.order {
		if m.expired(m.traces[id], now) {
			delete(m.traces, id)
			evicted++
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
	m.mu.Unlock()

	if evicted > 0 {
		log.Info().Int("evicted", evicted).Str("ttl", m.traceTTL.String()).Msg("Evicted expired traces")
		m.requestSave()
	}
}

// saveSnapshot persists all traces to disk as JSON.
func (m *MemoryStore) saveSnapshot() {
	m.mu.RLock()
	snap := snapshot{Traces: make([]*models.ExecutionTrace, 0, len(m.order))}
	for _, id := range m.order {
		snap.Traces = append(snap.Traces, m.traces[id])
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	m.mu.RUnlock()

	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal snapshot")
		return
	}

	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	// Write to temp file then rename for atomicity
	tmp := m.snapshotPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		log.Error().Err(err).Str("path", tmp).Msg("Failed to write snapshot tmp")
		return
	}
	if err := os.Rename(tmp, m.snapshotPath); err != nil {
		log.Error().Err(err).Str("path", m.snapshotPath).Msg("Failed to rename snapshot")
		return
	}

	log.Debug().Str("path", m.snapshotPath).Msg("Snapshot saved")
}

// loadSnapshot reads traces from disk on startup.
func (m *MemoryStore) loadSnapshot() {
	data, err := os.ReadFile(m.snapshotPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", m.snapshotPath).Msg("No snapshot file found, starting fresh")
			return
		}
		log.Warn().Err(err).Str("path", m.snapshotPath).Msg("Failed to read snapshot")
		return
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Warn().Err(err).Str("path", m.snapshotPath).Msg("Corrupt snapshot, starting fresh")
		return
	}
	for _, t := range snap.Traces {
		if t != nil && t.TraceID != "" {
			m.put(t)
		}
	}
	log.Info().Int("traces", len(m.order)).Str("path", m.snapshotPath).Msg("Snapshot loaded")
}

func (m *MemoryStore) Ping(_ context.Context) error { return nil }

// Close stops background goroutines and forces a final snapshot write.
// Safe to call multiple times (second call is a no-op).
func (m *MemoryStore) Close() error {
	select {
	case <-m.doneCh:
		return nil
	default:
		close(m.doneCh)
	}
	m.wg.Wait()

	// Force a final snapshot write so no in-flight data is lost
	if m.snapshotPath != "" {
		m.saveSnapshot()
	}

	log.Info().Msg("Trace store closed")
	return nil
}

// ── Trace Store ─────────────────────────────────────────────

// put stores t and evicts the oldest traces beyond capacity. Callers hold mu.
func (m *MemoryStore) put(t *models.ExecutionTrace) {
	if _, exists := m.traces[t.TraceID]; !exists {
		m.order = append(m.order, t.TraceID)
	}
	m.traces[t.TraceID] = t
	for len(m.order) > m.capacity {
		delete(m.traces, m.order[0])
		m.order = m.order[1:]
	}
}

func (m *MemoryStore) SaveTrace(_ context.Context, trace *models.ExecutionTrace) error {
	m.mu.Lock()
	m.put(cloneTrace(trace))
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) GetTrace(_ context.Context, traceID string) (*models.ExecutionTrace, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.traces[traceID]
	if !ok || m.expired(t, time.Now()) {
		return nil, &ErrNotFound{Entity: "trace", Key: traceID}
	}
	return cloneTrace(t), nil
}

func (m *MemoryStore) ListTraces(_ context.Context, limit int) ([]models.ExecutionTrace, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	result := make([]models.ExecutionTrace, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		t := m.traces[m.order[i]]
		if m.expired(t, now) {
			continue
		}
		result = append(result, *cloneTrace(t))
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (m *MemoryStore) DeleteTrace(_ context.Context, traceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.traces[traceID]; !ok {
		return &ErrNotFound{Entity: "trace", Key: traceID}
	}
	delete(m.traces, traceID)
	for i, id := range m.order {
		if id == traceID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.requestSave()
	return nil
}

// cloneTrace copies the slices a caller could mutate.
func cloneTrace(t *models.ExecutionTrace) *models.ExecutionTrace {
	c := *t
	c.Turns = append([]models.Turn(nil), t.Turns...)
	c.ToolLog = append([]models.ToolLogEntry(nil), t.ToolLog...)
	return &c
}
