package strategy

import (
	"container/heap"
	"time"
)

// expItem is one tuple on the expiration heap. The heap intentionally carries
// duplicate and stale tuples: refreshing a TTL pushes a new tuple and leaves
// the old one to be discarded when popped.
type expItem struct {
	at  time.Time
	key string
}

type expHeap []expItem

func (h expHeap) Len() int            { return len(h) }
func (h expHeap) Less(i, j int) bool  { return h[i].at.Before(h[j].at) }
func (h expHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *expHeap) Push(x any)         { *h = append(*h, x.(expItem)) }
func (h *expHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// TTLCache expires entries after their time to live. A min-heap keyed by
// absolute expiration time drives both lazy sweeps and eviction; when nothing
// has expired, eviction falls back to the globally oldest entry.
type TTLCache struct {
	table
	defaultTTL time.Duration
	exp        expHeap
}

// NewTTL creates a TTL strategy. Entries stored without an explicit TTL get
// defaultTTL.
func NewTTL(maxSize int, maxMemory int64, defaultTTL time.Duration) *TTLCache {
	return &TTLCache{
		table:      newTable(maxSize, maxMemory),
		defaultTTL: defaultTTL,
	}
}

func (s *TTLCache) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Opportunistic purge, independent of eviction pressure.
	s.sweepLocked()

	e := s.lookup(key, nil)
	if e == nil {
		return nil, false
	}
	return e.Value, true
}

func (s *TTLCache) Set(key string, value []byte, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	if _, ok := s.entries[key]; ok {
		if !s.updateEntry(key, value, ttl, s.evictOne) {
			return false
		}
	} else {
		e := newEntry(key, value, ttl, s.now())
		if !s.addEntry(e, s.evictOne) {
			return false
		}
	}

	heap.Push(&s.exp, expItem{at: s.now().Add(ttl), key: key})
	return true
}

func (s *TTLCache) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	// The heap tuple stays behind and is discarded when popped.
	return s.removeEntry(key)
}

func (s *TTLCache) Contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return false
	}
	if e.Expired(s.now()) {
		s.removeEntry(key)
		return false
	}
	return true
}

func (s *TTLCache) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	return len(s.entries)
}

func (s *TTLCache) MemoryUsage() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentMemory
}

func (s *TTLCache) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearTable()
	s.exp = s.exp[:0]
}

func (s *TTLCache) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	return s.keysLocked()
}

func (s *TTLCache) SweepExpired() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked()
}

func (s *TTLCache) Stats() TableStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statsLocked()
}

// RemainingTTL returns how long until key expires. The second return is false
// when the key is absent.
func (s *TTLCache) RemainingTTL(key string) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return 0, false
	}
	remaining := e.CreatedAt.Add(e.TTL).Sub(s.now())
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

// ExtendTTL adds delta to an entry's time to live and pushes a fresh heap
// tuple for the new deadline. The superseded tuple becomes stale.
func (s *TTLCache) ExtendTTL(key string, delta time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || e.Expired(s.now()) {
		return false
	}
	e.TTL += delta
	heap.Push(&s.exp, expItem{at: e.CreatedAt.Add(e.TTL), key: key})
	return true
}

// evictOne prefers true-expired entries; only when none are expired does it
// evict the globally oldest entry by creation time. Must be called with s.mu
// held.
func (s *TTLCache) evictOne() []string {
	if expired := s.sweepLocked(); len(expired) > 0 {
		return expired
	}
	if len(s.entries) == 0 {
		return nil
	}

	var oldest string
	var oldestAt time.Time
	for key, e := range s.entries {
		if oldest == "" || e.CreatedAt.Before(oldestAt) {
			oldest = key
			oldestAt = e.CreatedAt
		}
	}
	s.removeEntry(oldest)
	return []string{oldest}
}

// sweepLocked pops every due heap tuple, removing entries that are truly
// expired and discarding tuples that no longer match the table. Must be
// called with s.mu held.
func (s *TTLCache) sweepLocked() []string {
	now := s.now()
	var expired []string

	for len(s.exp) > 0 && !s.exp[0].at.After(now) {
		item := heap.Pop(&s.exp).(expItem)
		e, ok := s.entries[item.key]
		if !ok || !e.Expired(now) {
			continue // stale tuple
		}
		s.removeEntry(item.key)
		expired = append(expired, item.key)
	}
	return expired
}
