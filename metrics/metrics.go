// Package metrics tracks per-cache counters and access latencies. It is
// self-contained — the cache works without any external monitoring — but
// every event can be forwarded to a Sink such as the Prometheus
// implementation in this package.
package metrics

import (
	"sync"
	"time"
)

// windowSize bounds the rolling window of access-time samples.
const windowSize = 1000

// Stats is a point-in-time snapshot of cache activity.
type Stats struct {
	Hits          int64
	Misses        int64
	Sets          int64
	Deletes       int64
	Evictions     int64
	Errors        int64
	HitRate       float64
	MissRate      float64
	AvgAccessTime time.Duration
}

// CacheMetrics collects cache counters and a bounded rolling window of
// access-time samples. All methods are safe for concurrent use.
type CacheMetrics struct {
	mu sync.Mutex

	hits      int64
	misses    int64
	sets      int64
	deletes   int64
	evictions int64
	errors    int64

	window [windowSize]time.Duration
	count  int // samples stored, capped at windowSize
	next   int // ring cursor

	sink Sink
}

// New creates a CacheMetrics forwarding to sink. A nil sink disables
// forwarding.
func New(sink Sink) *CacheMetrics {
	if sink == nil {
		sink = NopSink{}
	}
	return &CacheMetrics{sink: sink}
}

// RecordHit counts a cache hit and its access time.
func (m *CacheMetrics) RecordHit(accessTime time.Duration) {
	m.mu.Lock()
	m.hits++
	m.sample(accessTime)
	m.mu.Unlock()

	m.sink.IncrementCounter("cache_hits_total", 1, nil)
	m.sink.RecordHistogram("cache_access_seconds", accessTime.Seconds(), nil)
}

// RecordMiss counts a cache miss and its access time.
func (m *CacheMetrics) RecordMiss(accessTime time.Duration) {
	m.mu.Lock()
	m.misses++
	m.sample(accessTime)
	m.mu.Unlock()

	m.sink.IncrementCounter("cache_misses_total", 1, nil)
	m.sink.RecordHistogram("cache_access_seconds", accessTime.Seconds(), nil)
}

// RecordSet counts a store.
func (m *CacheMetrics) RecordSet() {
	m.mu.Lock()
	m.sets++
	m.mu.Unlock()

	m.sink.IncrementCounter("cache_sets_total", 1, nil)
}

// RecordDelete counts a removal.
func (m *CacheMetrics) RecordDelete() {
	m.mu.Lock()
	m.deletes++
	m.mu.Unlock()

	m.sink.IncrementCounter("cache_deletes_total", 1, nil)
}

// RecordEvictions counts n evicted entries.
func (m *CacheMetrics) RecordEvictions(n int) {
	if n <= 0 {
		return
	}
	m.mu.Lock()
	m.evictions += int64(n)
	m.mu.Unlock()

	m.sink.IncrementCounter("cache_evictions_total", float64(n), nil)
}

// RecordError counts a failed operation, labeled by category.
func (m *CacheMetrics) RecordError(category string) {
	m.mu.Lock()
	m.errors++
	m.mu.Unlock()

	m.sink.IncrementCounter("cache_errors_total", 1, map[string]string{"category": category})
}

// SetMemoryUsage forwards the current memory gauge.
func (m *CacheMetrics) SetMemoryUsage(bytes int64) {
	m.sink.SetGauge("cache_memory_bytes", float64(bytes), nil)
}

// Snapshot returns current statistics with derived rates. Rates are zero
// before the first request.
func (m *CacheMetrics) Snapshot() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Stats{
		Hits:      m.hits,
		Misses:    m.misses,
		Sets:      m.sets,
		Deletes:   m.deletes,
		Evictions: m.evictions,
		Errors:    m.errors,
	}
	if total := m.hits + m.misses; total > 0 {
		s.HitRate = float64(m.hits) / float64(total)
		s.MissRate = float64(m.misses) / float64(total)
	}
	if m.count > 0 {
		var sum time.Duration
		for i := 0; i < m.count; i++ {
			sum += m.window[i]
		}
		s.AvgAccessTime = sum / time.Duration(m.count)
	}
	return s
}

// Reset zeroes every counter and drops the sample window.
func (m *CacheMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.hits, m.misses, m.sets, m.deletes, m.evictions, m.errors = 0, 0, 0, 0, 0, 0
	m.count, m.next = 0, 0
}

// sample pushes an access time into the ring. Must be called with m.mu held.
func (m *CacheMetrics) sample(d time.Duration) {
	m.window[m.next] = d
	m.next = (m.next + 1) % windowSize
	if m.count < windowSize {
		m.count++
	}
}
