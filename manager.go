// Package gostashsquirrel is a configurable caching engine: pluggable
// eviction strategies (LRU, TTL, FIFO, LFU), serialization with optional
// compression, in-process and Redis backends behind one contract, and a
// circuit breaker that degrades the cache to fast misses instead of failing
// callers.
//
// The Manager is the façade. Its operations never raise storage errors:
// failed reads return the caller's default, failed writes report false, and
// the failure is logged and counted instead.
package gostashsquirrel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/Keksclan/goStashSquirrel/backend"
	"github.com/Keksclan/goStashSquirrel/breaker"
	"github.com/Keksclan/goStashSquirrel/logging"
	"github.com/Keksclan/goStashSquirrel/metrics"
	"github.com/Keksclan/goStashSquirrel/retry"
	"github.com/Keksclan/goStashSquirrel/serializer"
	"github.com/Keksclan/goStashSquirrel/strategy"
)

// Manager is the cache façade. All methods are safe for concurrent use.
type Manager struct {
	cfg     Config
	backend backend.Backend
	met     *metrics.CacheMetrics
	log     logging.Logger
	tracer  trace.Tracer
	warm    *rate.Limiter

	closed atomic.Bool

	opMu sync.Mutex
	ops  map[string]*opStat
}

// opStat aggregates per-operation outcomes with a streaming average latency.
type opStat struct {
	Total      int64
	Successful int64
	Failed     int64
	AvgTime    time.Duration
}

// OpStats is a snapshot of one operation's aggregate outcomes.
type OpStats struct {
	Total      int64
	Successful int64
	Failed     int64
	AvgTime    time.Duration
}

// Stats is the manager-level statistics snapshot.
type Stats struct {
	Backend     string
	Size        int
	MemoryUsage int64
	Cache       metrics.Stats
	Operations  map[string]OpStats
}

// Health is the result of a HealthCheck probe.
type Health struct {
	Healthy bool
	Backend string
	Latency time.Duration
	Error   string
}

// New builds a Manager from DefaultConfig plus the given options. It returns
// an ErrConfiguration-wrapped error when the assembled configuration is
// invalid.
func New(opts ...Option) (*Manager, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	log := cfg.Logger
	if log == nil {
		log = logging.Nop()
	}
	met := metrics.New(cfg.Sink)

	ser, err := serializer.New(cfg.Format, cfg.EnableCompression, cfg.CompressionThreshold)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	brk := breaker.Config{
		FailureThreshold: cfg.BreakerFailureThreshold,
		RecoveryTimeout:  cfg.BreakerRecoveryTimeout,
	}

	var store backend.Backend
	switch cfg.Backend {
	case BackendMemory:
		strat, err := strategy.New(cfg.Strategy, cfg.MaxSize, int64(cfg.MaxMemoryMB)<<20, cfg.DefaultTTL)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
		store = backend.NewMemory(backend.MemoryOptions{
			Strategy:        strat,
			Serializer:      ser,
			Breaker:         brk,
			DefaultTTL:      cfg.DefaultTTL,
			EnableCleanup:   cfg.EnableBackgroundCleanup,
			CleanupInterval: cfg.CleanupInterval,
			Metrics:         met,
			Logger:          log,
		})
	case BackendRemote:
		store = backend.NewRemote(backend.RemoteOptions{
			Remote:     cfg.Remote,
			Serializer: ser,
			Breaker:    brk,
			Retry:      retry.Config{MaxAttempts: 3, BaseDelay: 50 * time.Millisecond, MaxDelay: time.Second, Jitter: 0.2},
			DefaultTTL: cfg.DefaultTTL,
			Metrics:    met,
			Logger:     log,
		})
	}

	if cfg.TieredFrontSize > 0 {
		tiered, err := backend.NewTiered(backend.TieredOptions{
			Inner:     store,
			FrontSize: cfg.TieredFrontSize,
			FrontTTL:  cfg.DefaultTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
		store = tiered
	}

	var warm *rate.Limiter
	if cfg.WarmRatePerSecond > 0 {
		warm = rate.NewLimiter(rate.Limit(cfg.WarmRatePerSecond), 1)
	}

	return &Manager{
		cfg:     cfg,
		backend: store,
		met:     met,
		log:     log,
		tracer:  otel.Tracer("github.com/Keksclan/goStashSquirrel"),
		warm:    warm,
		ops:     make(map[string]*opStat),
	}, nil
}

// track records one operation outcome. The streaming average avoids keeping
// per-call samples: avg += (d - avg) / n.
func (m *Manager) track(op string, start time.Time, ok bool) {
	d := time.Since(start)

	m.opMu.Lock()
	defer m.opMu.Unlock()

	s := m.ops[op]
	if s == nil {
		s = &opStat{}
		m.ops[op] = s
	}
	s.Total++
	if ok {
		s.Successful++
	} else {
		s.Failed++
	}
	s.AvgTime += (d - s.AvgTime) / time.Duration(s.Total)
}

func (m *Manager) span(ctx context.Context, op, key string) (context.Context, trace.Span) {
	ctx, sp := m.tracer.Start(ctx, "cache."+op)
	sp.SetAttributes(
		attribute.String("cache.backend", string(m.cfg.Backend)),
		attribute.String("cache.key", key),
	)
	return ctx, sp
}

// Get returns the value stored under key, or def when the key is absent or
// the backend fails.
func (m *Manager) Get(ctx context.Context, key string, def any) any {
	if m.closed.Load() {
		return def
	}
	start := time.Now()
	ctx, sp := m.span(ctx, "get", key)
	defer sp.End()

	v, ok, err := m.backend.Get(ctx, key)
	if err != nil {
		m.log.Warn("cache get failed", "key", key, "error", err)
		m.track("get", start, false)
		return def
	}
	m.track("get", start, true)
	if !ok {
		return def
	}
	return v
}

// Set stores value under key, reporting success. A zero ttl uses the
// configured default TTL.
func (m *Manager) Set(ctx context.Context, key string, value any, ttl time.Duration) bool {
	if m.closed.Load() {
		return false
	}
	start := time.Now()
	ctx, sp := m.span(ctx, "set", key)
	defer sp.End()

	if err := m.backend.Set(ctx, key, value, ttl); err != nil {
		m.log.Warn("cache set failed", "key", key, "error", err)
		m.track("set", start, false)
		return false
	}
	m.track("set", start, true)
	return true
}

// Delete removes key, reporting whether a live entry was removed.
func (m *Manager) Delete(ctx context.Context, key string) bool {
	if m.closed.Load() {
		return false
	}
	start := time.Now()
	ctx, sp := m.span(ctx, "delete", key)
	defer sp.End()

	ok, err := m.backend.Delete(ctx, key)
	if err != nil {
		m.log.Warn("cache delete failed", "key", key, "error", err)
		m.track("delete", start, false)
		return false
	}
	m.track("delete", start, true)
	return ok
}

// Exists reports whether key holds a live entry.
func (m *Manager) Exists(ctx context.Context, key string) bool {
	if m.closed.Load() {
		return false
	}
	start := time.Now()
	ctx, sp := m.span(ctx, "exists", key)
	defer sp.End()

	ok, err := m.backend.Exists(ctx, key)
	if err != nil {
		m.track("exists", start, false)
		return false
	}
	m.track("exists", start, true)
	return ok
}

// Clear removes every entry, reporting success.
func (m *Manager) Clear(ctx context.Context) bool {
	if m.closed.Load() {
		return false
	}
	start := time.Now()
	ctx, sp := m.span(ctx, "clear", "")
	defer sp.End()

	if err := m.backend.Clear(ctx); err != nil {
		m.log.Warn("cache clear failed", "error", err)
		m.track("clear", start, false)
		return false
	}
	m.track("clear", start, true)
	return true
}

// GetMany returns the found subset of keys. Failing keys are simply absent.
func (m *Manager) GetMany(ctx context.Context, keys []string) map[string]any {
	if m.closed.Load() {
		return map[string]any{}
	}
	start := time.Now()
	ctx, sp := m.span(ctx, "get_many", "")
	sp.SetAttributes(attribute.Int("cache.batch_size", len(keys)))
	defer sp.End()

	result, err := m.backend.GetMany(ctx, keys)
	if err != nil {
		m.log.Warn("cache get_many failed", "keys", len(keys), "error", err)
		m.track("get_many", start, false)
		if result == nil {
			result = map[string]any{}
		}
		return result
	}
	m.track("get_many", start, true)
	return result
}

// SetMany stores items, reporting per-key success.
func (m *Manager) SetMany(ctx context.Context, items map[string]any, ttl time.Duration) map[string]bool {
	result := make(map[string]bool, len(items))
	if m.closed.Load() {
		for key := range items {
			result[key] = false
		}
		return result
	}
	start := time.Now()
	ctx, sp := m.span(ctx, "set_many", "")
	sp.SetAttributes(attribute.Int("cache.batch_size", len(items)))
	defer sp.End()

	res, err := m.backend.SetMany(ctx, items, ttl)
	if err != nil {
		m.log.Warn("cache set_many failed", "items", len(items), "error", err)
		m.track("set_many", start, false)
	} else {
		m.track("set_many", start, true)
	}
	for key := range items {
		result[key] = res[key]
	}
	return result
}

// DeleteMany removes keys, reporting per-key presence.
func (m *Manager) DeleteMany(ctx context.Context, keys []string) map[string]bool {
	result := make(map[string]bool, len(keys))
	if m.closed.Load() {
		for _, key := range keys {
			result[key] = false
		}
		return result
	}
	start := time.Now()
	ctx, sp := m.span(ctx, "delete_many", "")
	sp.SetAttributes(attribute.Int("cache.batch_size", len(keys)))
	defer sp.End()

	res, err := m.backend.DeleteMany(ctx, keys)
	if err != nil {
		m.log.Warn("cache delete_many failed", "keys", len(keys), "error", err)
		m.track("delete_many", start, false)
	} else {
		m.track("delete_many", start, true)
	}
	for _, key := range keys {
		result[key] = res[key]
	}
	return result
}

// GetOrSet returns the cached value for key, calling factory and storing its
// result on a miss. Concurrent callers may each invoke factory; the last
// completed write wins. A factory error is returned unstored.
func (m *Manager) GetOrSet(ctx context.Context, key string, factory func(context.Context) (any, error), ttl time.Duration) (any, error) {
	if m.closed.Load() {
		return nil, errors.New("cache closed")
	}
	start := time.Now()
	ctx, sp := m.span(ctx, "get_or_set", key)
	defer sp.End()

	if v, ok, err := m.backend.Get(ctx, key); err == nil && ok {
		m.track("get_or_set", start, true)
		return v, nil
	}

	v, err := factory(ctx)
	if err != nil {
		m.track("get_or_set", start, false)
		return nil, err
	}
	// Store failure is soft: the computed value is still returned.
	if err := m.backend.Set(ctx, key, v, ttl); err != nil {
		m.log.Warn("cache get_or_set store failed", "key", key, "error", err)
		m.track("get_or_set", start, false)
		return v, nil
	}
	m.track("get_or_set", start, true)
	return v, nil
}

// Increment adds amount to the counter at key. Backends implementing the
// atomic counter capability are used directly; their counters start at zero
// and def only serves as the return value on failure. Otherwise a
// read-modify-write fallback applies, initializing an absent counter to def;
// it can lose updates under concurrency.
func (m *Manager) Increment(ctx context.Context, key string, amount, def int64, ttl time.Duration) int64 {
	return m.addToCounter(ctx, key, amount, def, ttl)
}

// Decrement subtracts amount from the counter at key.
func (m *Manager) Decrement(ctx context.Context, key string, amount, def int64, ttl time.Duration) int64 {
	return m.addToCounter(ctx, key, -amount, def, ttl)
}

func (m *Manager) addToCounter(ctx context.Context, key string, delta, def int64, ttl time.Duration) int64 {
	if m.closed.Load() {
		return def
	}
	start := time.Now()
	ctx, sp := m.span(ctx, "increment", key)
	defer sp.End()

	// Backend-native counters start at zero and ignore def: a single atomic
	// command end to end, with no non-atomic existence probe in front of it.
	if inc, ok := m.backend.(backend.Incrementer); ok {
		n, err := inc.IncrBy(ctx, key, delta)
		if err != nil {
			m.log.Warn("cache increment failed", "key", key, "error", err)
			m.track("increment", start, false)
			return def
		}
		m.track("increment", start, true)
		return n
	}

	// Read-modify-write fallback. Not atomic: two concurrent increments can
	// both read the same base and lose one update.
	current := def
	if v, ok, err := m.backend.Get(ctx, key); err == nil && ok {
		switch n := v.(type) {
		case int64:
			current = n
		case int:
			current = int64(n)
		case int8:
			current = int64(n)
		case int16:
			current = int64(n)
		case int32:
			current = int64(n)
		case uint64:
			current = int64(n)
		case float64:
			current = int64(n)
		}
	}
	next := current + delta
	if err := m.backend.Set(ctx, key, next, ttl); err != nil {
		m.log.Warn("cache increment store failed", "key", key, "error", err)
		m.track("increment", start, false)
		return next
	}
	m.track("increment", start, true)
	return next
}

// WarmCache bulk-loads the entries returned by loader, paced at the
// configured warm rate, and reports per-key success.
func (m *Manager) WarmCache(ctx context.Context, loader func(context.Context) (map[string]any, error), ttl time.Duration) (map[string]bool, error) {
	if m.closed.Load() {
		return nil, errors.New("cache closed")
	}
	ctx, sp := m.span(ctx, "warm", "")
	defer sp.End()

	items, err := loader(ctx)
	if err != nil {
		return nil, err
	}
	sp.SetAttributes(attribute.Int("cache.batch_size", len(items)))

	result := make(map[string]bool, len(items))
	for key, value := range items {
		if m.warm != nil {
			if err := m.warm.Wait(ctx); err != nil {
				return result, err
			}
		}
		result[key] = m.Set(ctx, key, value, ttl)
	}
	return result, nil
}

// HealthCheck probes the backend with a write/read/delete round trip.
func (m *Manager) HealthCheck(ctx context.Context) Health {
	h := Health{Backend: string(m.cfg.Backend)}
	if m.closed.Load() {
		h.Error = "cache closed"
		return h
	}
	ctx, sp := m.span(ctx, "health", "")
	defer sp.End()

	start := time.Now()
	err := m.backend.HealthCheck(ctx)
	h.Latency = time.Since(start)
	if err != nil {
		h.Error = err.Error()
		return h
	}
	h.Healthy = true
	return h
}

// Stats returns a snapshot of cache counters, per-operation aggregates and
// backend occupancy.
func (m *Manager) Stats(ctx context.Context) Stats {
	s := Stats{
		Backend:    string(m.cfg.Backend),
		Cache:      m.met.Snapshot(),
		Operations: make(map[string]OpStats),
	}
	if !m.closed.Load() {
		if n, err := m.backend.Size(ctx); err == nil {
			s.Size = n
		}
		if mem, err := m.backend.MemoryUsage(ctx); err == nil {
			s.MemoryUsage = mem
		}
	}

	m.opMu.Lock()
	for op, st := range m.ops {
		s.Operations[op] = OpStats{
			Total:      st.Total,
			Successful: st.Successful,
			Failed:     st.Failed,
			AvgTime:    st.AvgTime,
		}
	}
	m.opMu.Unlock()
	return s
}

// Close shuts the backend down. It is idempotent; every operation afterwards
// soft-fails.
func (m *Manager) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	return m.backend.Close()
}
