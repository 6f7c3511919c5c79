package backend

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Keksclan/goStashSquirrel/breaker"
	"github.com/Keksclan/goStashSquirrel/logging"
	"github.com/Keksclan/goStashSquirrel/metrics"
	"github.com/Keksclan/goStashSquirrel/serializer"
	"github.com/Keksclan/goStashSquirrel/strategy"
)

// MemoryOptions configures NewMemory. Strategy and Serializer are required;
// nil Metrics and Logger default to no-ops.
type MemoryOptions struct {
	Strategy   strategy.Strategy
	Serializer serializer.Serializer
	Breaker    breaker.Config
	DefaultTTL time.Duration

	// CleanupInterval is the period of the background expiry sweep. Zero
	// disables the loop even when EnableCleanup is set.
	CleanupInterval time.Duration
	EnableCleanup   bool

	Metrics *metrics.CacheMetrics
	Logger  logging.Logger
}

// Memory is the in-process backend: one eviction strategy for storage, one
// serializer for the value boundary, and a circuit breaker that converts
// repeated internal failures (usually decode errors) into fast failures.
type Memory struct {
	strat strategy.Strategy
	ser   serializer.Serializer
	brk   *breaker.Breaker
	met   *metrics.CacheMetrics
	log   logging.Logger

	defaultTTL time.Duration

	closed    atomic.Bool
	closeOnce sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// NewMemory creates a memory backend and, when enabled, starts its
// background cleanup loop.
func NewMemory(opts MemoryOptions) *Memory {
	met := opts.Metrics
	if met == nil {
		met = metrics.New(nil)
	}
	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}
	brkCfg := defaultBreaker(opts.Breaker)

	b := &Memory{
		strat:      opts.Strategy,
		ser:        opts.Serializer,
		brk:        breaker.New(brkCfg),
		met:        met,
		log:        log,
		defaultTTL: opts.DefaultTTL,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}

	if opts.EnableCleanup && opts.CleanupInterval > 0 {
		go b.cleanupLoop(opts.CleanupInterval)
	} else {
		close(b.done)
	}
	return b
}

func (b *Memory) Get(_ context.Context, key string) (any, bool, error) {
	if b.closed.Load() {
		return nil, false, ErrClosed
	}
	if !b.brk.Allow() {
		b.met.RecordError("breaker_open")
		return nil, false, ErrBreakerOpen
	}

	start := time.Now()
	data, ok := b.strat.Get(key)
	if !ok {
		b.met.RecordMiss(time.Since(start))
		return nil, false, nil
	}

	value, err := b.ser.Deserialize(data)
	if err != nil {
		b.met.RecordError("decode")
		b.brk.OnFailure()
		b.log.Error("cache decode failed", "key", key, "error", err)
		return nil, false, err
	}

	b.met.RecordHit(time.Since(start))
	b.brk.OnSuccess()
	return value, true, nil
}

func (b *Memory) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	if b.closed.Load() {
		return ErrClosed
	}
	if !b.brk.Allow() {
		b.met.RecordError("breaker_open")
		return ErrBreakerOpen
	}
	if ttl == 0 {
		ttl = b.defaultTTL
	}

	data, err := b.ser.Serialize(value)
	if err != nil {
		b.met.RecordError("encode")
		b.brk.OnFailure()
		b.log.Error("cache encode failed", "key", key, "error", err)
		return err
	}

	if !b.strat.Set(key, data, ttl) {
		b.met.RecordError("store_rejected")
		return ErrStoreRejected
	}

	b.met.RecordSet()
	b.met.SetMemoryUsage(b.strat.MemoryUsage())
	b.brk.OnSuccess()
	return nil
}

func (b *Memory) Delete(_ context.Context, key string) (bool, error) {
	if b.closed.Load() {
		return false, ErrClosed
	}
	if !b.brk.Allow() {
		b.met.RecordError("breaker_open")
		return false, ErrBreakerOpen
	}

	ok := b.strat.Delete(key)
	if ok {
		b.met.RecordDelete()
		b.met.SetMemoryUsage(b.strat.MemoryUsage())
	}
	b.brk.OnSuccess()
	return ok, nil
}

func (b *Memory) Exists(_ context.Context, key string) (bool, error) {
	if b.closed.Load() {
		return false, ErrClosed
	}
	if !b.brk.Allow() {
		return false, ErrBreakerOpen
	}
	return b.strat.Contains(key), nil
}

func (b *Memory) Clear(_ context.Context) error {
	if b.closed.Load() {
		return ErrClosed
	}
	b.strat.Clear()
	b.met.SetMemoryUsage(0)
	return nil
}

func (b *Memory) Size(_ context.Context) (int, error) {
	if b.closed.Load() {
		return 0, ErrClosed
	}
	return b.strat.Len(), nil
}

func (b *Memory) MemoryUsage(_ context.Context) (int64, error) {
	if b.closed.Load() {
		return 0, ErrClosed
	}
	return b.strat.MemoryUsage(), nil
}

func (b *Memory) Keys(_ context.Context) ([]string, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}
	return b.strat.Keys(), nil
}

func (b *Memory) GetMany(ctx context.Context, keys []string) (map[string]any, error) {
	result := make(map[string]any, len(keys))
	for _, key := range keys {
		v, ok, err := b.Get(ctx, key)
		if err != nil {
			continue // failing keys are simply absent from the result
		}
		if ok {
			result[key] = v
		}
	}
	return result, nil
}

func (b *Memory) SetMany(ctx context.Context, items map[string]any, ttl time.Duration) (map[string]bool, error) {
	result := make(map[string]bool, len(items))
	for key, value := range items {
		result[key] = b.Set(ctx, key, value, ttl) == nil
	}
	return result, nil
}

func (b *Memory) DeleteMany(ctx context.Context, keys []string) (map[string]bool, error) {
	result := make(map[string]bool, len(keys))
	for _, key := range keys {
		ok, err := b.Delete(ctx, key)
		result[key] = err == nil && ok
	}
	return result, nil
}

// HealthCheck writes, reads back and deletes a probe key.
func (b *Memory) HealthCheck(ctx context.Context) error {
	const probe = "__health_check__"

	if err := b.Set(ctx, probe, "ok", time.Second); err != nil {
		return err
	}
	v, ok, err := b.Get(ctx, probe)
	if err != nil {
		return err
	}
	if !ok || v != "ok" {
		return ErrStoreRejected
	}
	_, err = b.Delete(ctx, probe)
	return err
}

// Close stops the cleanup loop and marks the backend closed. It is
// idempotent.
func (b *Memory) Close() error {
	b.closeOnce.Do(func() {
		b.closed.Store(true)
		close(b.stop)
		<-b.done
	})
	return nil
}

// Breaker exposes the circuit breaker for inspection.
func (b *Memory) Breaker() *breaker.Breaker {
	return b.brk
}

// cleanupLoop periodically sweeps expired entries. It runs as a single
// goroutine, so at most one sweep is active at a time; each sweep contends
// for the strategy lock with foreground callers.
func (b *Memory) cleanupLoop(interval time.Duration) {
	defer close(b.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
			expired := b.strat.SweepExpired()
			if len(expired) > 0 {
				b.met.RecordEvictions(len(expired))
				b.met.SetMemoryUsage(b.strat.MemoryUsage())
				b.log.Debug("expiry sweep", "removed", len(expired))
			}
		}
	}
}
