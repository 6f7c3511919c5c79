package strategy

import (
	"container/heap"
	"time"
)

// freqItem is one tuple on the frequency heap. seq is a monotonically
// increasing tiebreak assigned at each frequency bump, so between equal
// frequencies the older bump wins.
type freqItem struct {
	freq int64
	seq  uint64
	key  string
}

type freqHeap []freqItem

func (h freqHeap) Len() int { return len(h) }
func (h freqHeap) Less(i, j int) bool {
	if h[i].freq != h[j].freq {
		return h[i].freq < h[j].freq
	}
	return h[i].seq < h[j].seq
}
func (h freqHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *freqHeap) Push(x any)   { *h = append(*h, x.(freqItem)) }
func (h *freqHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// LFUCache evicts the least frequently used entry. The frequency map is
// authoritative; the heap accumulates stale tuples (one per bump) that are
// validated on pop and rebuilt from the map if the heap runs dry.
type LFUCache struct {
	table
	freq  freqHeap
	freqs map[string]int64
	seq   uint64
}

// NewLFU creates an LFU strategy bounded by maxSize entries and maxMemory
// bytes.
func NewLFU(maxSize int, maxMemory int64) *LFUCache {
	return &LFUCache{
		table: newTable(maxSize, maxMemory),
		freqs: make(map[string]int64),
	}
}

func (s *LFUCache) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.lookup(key, s.dropFreq)
	if e == nil {
		return nil, false
	}
	s.bump(key)
	return e.Value, true
}

func (s *LFUCache) Set(key string, value []byte, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key]; ok {
		// Value update; frequency is unchanged.
		return s.updateEntry(key, value, ttl, s.evictOne)
	}

	e := newEntry(key, value, ttl, s.now())
	if !s.addEntry(e, s.evictOne) {
		return false
	}
	s.freqs[key] = 1
	s.seq++
	heap.Push(&s.freq, freqItem{freq: 1, seq: s.seq, key: key})
	return true
}

func (s *LFUCache) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.removeEntry(key) {
		return false
	}
	s.dropFreq(key)
	return true
}

func (s *LFUCache) Contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return false
	}
	if e.Expired(s.now()) {
		s.removeEntry(key)
		s.dropFreq(key)
		return false
	}
	return true
}

func (s *LFUCache) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *LFUCache) MemoryUsage() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentMemory
}

func (s *LFUCache) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearTable()
	s.freq = s.freq[:0]
	s.freqs = make(map[string]int64)
	s.seq = 0
}

func (s *LFUCache) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keysLocked()
}

func (s *LFUCache) SweepExpired() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	expired := s.expiredKeys()
	for _, key := range expired {
		s.removeEntry(key)
		s.dropFreq(key)
	}
	return expired
}

func (s *LFUCache) Stats() TableStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statsLocked()
}

// Frequency returns the authoritative access frequency for key.
func (s *LFUCache) Frequency(key string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.freqs[key]
}

// bump increments key's frequency and pushes a fresh heap tuple; the previous
// tuple for this key becomes stale. Must be called with s.mu held.
func (s *LFUCache) bump(key string) {
	f, ok := s.freqs[key]
	if !ok {
		return
	}
	s.freqs[key] = f + 1
	s.seq++
	heap.Push(&s.freq, freqItem{freq: f + 1, seq: s.seq, key: key})
}

// evictOne pops the heap until it finds a tuple whose (key, freq) still
// matches the authoritative map, then evicts that key. If the heap empties
// while entries remain, every popped tuple was stale: rebuild from the map
// and retry. Must be called with s.mu held.
func (s *LFUCache) evictOne() []string {
	for {
		for len(s.freq) > 0 {
			item := heap.Pop(&s.freq).(freqItem)
			if f, ok := s.freqs[item.key]; !ok || f != item.freq {
				continue // stale tuple
			}
			if _, ok := s.entries[item.key]; !ok {
				continue
			}
			s.removeEntry(item.key)
			delete(s.freqs, item.key)
			return []string{item.key}
		}
		if len(s.entries) == 0 {
			return nil
		}
		s.rebuildHeap()
		if len(s.freq) == 0 {
			return nil
		}
	}
}

// rebuildHeap reconstructs the frequency heap from the authoritative map.
// Must be called with s.mu held.
func (s *LFUCache) rebuildHeap() {
	s.freq = s.freq[:0]
	for key, f := range s.freqs {
		s.seq++
		s.freq = append(s.freq, freqItem{freq: f, seq: s.seq, key: key})
	}
	heap.Init(&s.freq)
}

// dropFreq removes key's authoritative frequency; heap tuples are left to be
// discarded lazily. Must be called with s.mu held.
func (s *LFUCache) dropFreq(key string) {
	delete(s.freqs, key)
}
