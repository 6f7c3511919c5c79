// Package strategy implements the eviction policies of the cache: LRU, FIFO,
// TTL and LFU. All four operate over a shared locked entry table and differ
// only in the auxiliary index used to pick eviction victims.
//
// The entry table is authoritative. Auxiliary indices (the TTL and LFU heaps
// in particular) may contain stale references to entries that were deleted or
// superseded; they are reconciled lazily when popped. They are never allowed
// to miss a live entry.
package strategy

import (
	"fmt"
	"sync"
	"time"
)

// Kind names an eviction policy.
type Kind string

const (
	LRU  Kind = "lru"
	TTL  Kind = "ttl"
	FIFO Kind = "fifo"
	LFU  Kind = "lfu"
)

// Strategy is the uniform contract all eviction policies implement. Values
// are opaque byte slices (the backend serializes before storing). Every
// method is safe for concurrent use; a single mutex per instance serializes
// the whole check→evict→insert sequence.
type Strategy interface {
	// Get returns the stored value and whether it was found. Expired entries
	// are removed and reported as misses.
	Get(key string) ([]byte, bool)

	// Set stores a value, evicting as needed to stay within the size and
	// memory bounds. It returns false when room could not be made.
	Set(key string, value []byte, ttl time.Duration) bool

	// Delete removes a key, reporting whether it was present.
	Delete(key string) bool

	// Contains reports whether a live (non-expired) entry exists for key
	// without touching its access metadata.
	Contains(key string) bool

	// Len returns the number of live entries.
	Len() int

	// MemoryUsage returns the aggregate estimated size of all live entries.
	MemoryUsage() int64

	// Clear removes every entry.
	Clear()

	// Keys returns the live keys in unspecified order.
	Keys() []string

	// SweepExpired removes all expired entries and returns their keys. The
	// background cleanup loop calls this periodically; Get paths may also
	// sweep opportunistically.
	SweepExpired() []string

	// Stats returns a snapshot of the table counters.
	Stats() TableStats
}

// TableStats is a point-in-time snapshot of a strategy's entry table.
type TableStats struct {
	Size        int
	MaxSize     int
	MemoryUsage int64
	MaxMemory   int64
	Hits        int64
	Misses      int64
	Evictions   int64
}

// HitRate returns hits/(hits+misses), or zero before any request.
func (s TableStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// New constructs the strategy named by kind. maxMemory is in bytes.
// defaultTTL is only meaningful for the TTL strategy, which applies it to
// entries stored without an explicit TTL.
func New(kind Kind, maxSize int, maxMemory int64, defaultTTL time.Duration) (Strategy, error) {
	switch kind {
	case LRU:
		return NewLRU(maxSize, maxMemory), nil
	case TTL:
		return NewTTL(maxSize, maxMemory, defaultTTL), nil
	case FIFO:
		return NewFIFO(maxSize, maxMemory), nil
	case LFU:
		return NewLFU(maxSize, maxMemory), nil
	default:
		return nil, fmt.Errorf("unsupported cache strategy %q", kind)
	}
}

// table is the entry store shared by all strategies: a key→entry map plus the
// running memory aggregate and hit/miss/eviction counters. It is not
// goroutine-safe on its own; the owning strategy's mutex guards it.
type table struct {
	mu sync.Mutex

	entries       map[string]*Entry
	currentMemory int64
	maxSize       int
	maxMemory     int64

	hits      int64
	misses    int64
	evictions int64

	nowFunc func() time.Time // for testing; defaults to time.Now
}

func newTable(maxSize int, maxMemory int64) table {
	return table{
		entries:   make(map[string]*Entry),
		maxSize:   maxSize,
		maxMemory: maxMemory,
		nowFunc:   time.Now,
	}
}

func (t *table) now() time.Time {
	return t.nowFunc()
}

// lookup returns the live entry for key, counting a hit and touching it.
// Expired entries are removed through onRemove and counted as misses.
// Must be called with t.mu held.
func (t *table) lookup(key string, onRemove func(string)) *Entry {
	e, ok := t.entries[key]
	if !ok {
		t.misses++
		return nil
	}
	if e.Expired(t.now()) {
		t.removeEntry(key)
		if onRemove != nil {
			onRemove(key)
		}
		t.misses++
		return nil
	}
	e.Touch(t.now())
	t.hits++
	return e
}

// addEntry inserts a new entry, running the strategy's eviction callback
// until the size and memory bounds admit it. Returns false when eviction
// cannot make room. Must be called with t.mu held.
func (t *table) addEntry(e *Entry, evictOne func() []string) bool {
	for len(t.entries) >= t.maxSize || t.currentMemory+e.Size > t.maxMemory {
		evicted := evictOne()
		if len(evicted) == 0 {
			return false
		}
		t.evictions += int64(len(evicted))
	}
	t.entries[e.Key] = e
	t.currentMemory += e.Size
	t.checkMemory()
	return true
}

// updateEntry replaces the value of an existing entry in place, preserving
// its access count and resetting its creation time (a TTL refresh). The
// memory delta is re-accounted, evicting if the entry grew past the bound.
// Must be called with t.mu held.
func (t *table) updateEntry(key string, value []byte, ttl time.Duration, evictOne func() []string) bool {
	old, ok := t.entries[key]
	if !ok {
		return false
	}
	now := t.now()
	fresh := &Entry{
		Key:         key,
		Value:       value,
		CreatedAt:   now,
		AccessedAt:  now,
		AccessCount: old.AccessCount,
		TTL:         ttl,
	}
	fresh.Size = fresh.EstimateSize()

	delta := fresh.Size - old.Size
	for delta > 0 && t.currentMemory+delta > t.maxMemory {
		evicted := evictOne()
		if len(evicted) == 0 {
			return false
		}
		t.evictions += int64(len(evicted))
		// Eviction may have removed the entry being updated.
		if _, still := t.entries[key]; !still {
			return false
		}
	}

	t.entries[key] = fresh
	t.currentMemory += delta
	t.checkMemory()
	return true
}

// removeEntry deletes key from the table and releases its accounted memory.
// Must be called with t.mu held.
func (t *table) removeEntry(key string) bool {
	e, ok := t.entries[key]
	if !ok {
		return false
	}
	delete(t.entries, key)
	t.currentMemory -= e.Size
	t.checkMemory()
	return true
}

// expiredKeys returns the keys of all currently expired entries.
// Must be called with t.mu held.
func (t *table) expiredKeys() []string {
	now := t.now()
	var expired []string
	for key, e := range t.entries {
		if e.Expired(now) {
			expired = append(expired, key)
		}
	}
	return expired
}

func (t *table) clearTable() {
	t.entries = make(map[string]*Entry)
	t.currentMemory = 0
}

func (t *table) statsLocked() TableStats {
	return TableStats{
		Size:        len(t.entries),
		MaxSize:     t.maxSize,
		MemoryUsage: t.currentMemory,
		MaxMemory:   t.maxMemory,
		Hits:        t.hits,
		Misses:      t.misses,
		Evictions:   t.evictions,
	}
}

func (t *table) keysLocked() []string {
	keys := make([]string, 0, len(t.entries))
	for key := range t.entries {
		keys = append(keys, key)
	}
	return keys
}

// checkMemory guards the memory aggregate invariant: currentMemory is the
// exact sum of live entry sizes and can never go negative.
func (t *table) checkMemory() {
	if t.currentMemory < 0 {
		panic("strategy: memory accounting underflow")
	}
}
