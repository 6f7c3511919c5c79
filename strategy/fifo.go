package strategy

import (
	"container/list"
	"time"
)

// FIFOCache evicts the oldest surviving insertion regardless of access
// pattern. Updating an existing key keeps its place in the queue.
type FIFOCache struct {
	table
	queue *list.List               // front = oldest insertion
	elems map[string]*list.Element // key → queue node
}

// NewFIFO creates a FIFO strategy bounded by maxSize entries and maxMemory
// bytes.
func NewFIFO(maxSize int, maxMemory int64) *FIFOCache {
	return &FIFOCache{
		table: newTable(maxSize, maxMemory),
		queue: list.New(),
		elems: make(map[string]*list.Element),
	}
}

func (s *FIFOCache) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.lookup(key, s.dropQueue)
	if e == nil {
		return nil, false
	}
	return e.Value, true
}

func (s *FIFOCache) Set(key string, value []byte, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key]; ok {
		// Position in the queue is unchanged.
		return s.updateEntry(key, value, ttl, s.evictOne)
	}

	e := newEntry(key, value, ttl, s.now())
	if !s.addEntry(e, s.evictOne) {
		return false
	}
	s.elems[key] = s.queue.PushBack(key)
	return true
}

func (s *FIFOCache) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.removeEntry(key) {
		return false
	}
	s.dropQueue(key)
	return true
}

func (s *FIFOCache) Contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return false
	}
	if e.Expired(s.now()) {
		s.removeEntry(key)
		s.dropQueue(key)
		return false
	}
	return true
}

func (s *FIFOCache) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *FIFOCache) MemoryUsage() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentMemory
}

func (s *FIFOCache) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearTable()
	s.queue.Init()
	s.elems = make(map[string]*list.Element)
}

func (s *FIFOCache) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keysLocked()
}

func (s *FIFOCache) SweepExpired() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	expired := s.expiredKeys()
	for _, key := range expired {
		s.removeEntry(key)
		s.dropQueue(key)
	}
	return expired
}

func (s *FIFOCache) Stats() TableStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statsLocked()
}

// PeekOldest returns the key next in line for eviction, if any.
func (s *FIFOCache) PeekOldest() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	front := s.queue.Front()
	if front == nil {
		return "", false
	}
	return front.Value.(string), true
}

// evictOne removes the oldest insertion. Must be called with s.mu held.
func (s *FIFOCache) evictOne() []string {
	front := s.queue.Front()
	if front == nil {
		return nil
	}
	key := front.Value.(string)
	s.removeEntry(key)
	s.queue.Remove(front)
	delete(s.elems, key)
	return []string{key}
}

// dropQueue removes key from the insertion queue. Must be called with s.mu
// held.
func (s *FIFOCache) dropQueue(key string) {
	if el, ok := s.elems[key]; ok {
		s.queue.Remove(el)
		delete(s.elems, key)
	}
}
