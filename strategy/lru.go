package strategy

import (
	"container/list"
	"time"
)

// LRUCache evicts the least recently used entry. The auxiliary index is an
// access-ordered list with the most recently used key at the back.
type LRUCache struct {
	table
	order *list.List               // front = LRU, back = MRU
	elems map[string]*list.Element // key → node holding the key
}

// NewLRU creates an LRU strategy bounded by maxSize entries and maxMemory
// bytes.
func NewLRU(maxSize int, maxMemory int64) *LRUCache {
	return &LRUCache{
		table: newTable(maxSize, maxMemory),
		order: list.New(),
		elems: make(map[string]*list.Element),
	}
}

func (s *LRUCache) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.lookup(key, s.dropOrder)
	if e == nil {
		return nil, false
	}
	s.order.MoveToBack(s.elems[key])
	return e.Value, true
}

func (s *LRUCache) Set(key string, value []byte, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key]; ok {
		if !s.updateEntry(key, value, ttl, s.evictOne) {
			return false
		}
		if el, ok := s.elems[key]; ok {
			s.order.MoveToBack(el)
		}
		return true
	}

	e := newEntry(key, value, ttl, s.now())
	if !s.addEntry(e, s.evictOne) {
		return false
	}
	s.elems[key] = s.order.PushBack(key)
	return true
}

func (s *LRUCache) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.removeEntry(key) {
		return false
	}
	s.dropOrder(key)
	return true
}

func (s *LRUCache) Contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return false
	}
	if e.Expired(s.now()) {
		s.removeEntry(key)
		s.dropOrder(key)
		return false
	}
	return true
}

func (s *LRUCache) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *LRUCache) MemoryUsage() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentMemory
}

func (s *LRUCache) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearTable()
	s.order.Init()
	s.elems = make(map[string]*list.Element)
}

func (s *LRUCache) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keysLocked()
}

func (s *LRUCache) SweepExpired() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	expired := s.expiredKeys()
	for _, key := range expired {
		s.removeEntry(key)
		s.dropOrder(key)
	}
	return expired
}

func (s *LRUCache) Stats() TableStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statsLocked()
}

// evictOne removes the entry at the LRU end. Must be called with s.mu held.
func (s *LRUCache) evictOne() []string {
	front := s.order.Front()
	if front == nil {
		return nil
	}
	key := front.Value.(string)
	s.removeEntry(key)
	s.order.Remove(front)
	delete(s.elems, key)
	return []string{key}
}

// dropOrder removes key from the access-order list. Must be called with s.mu
// held.
func (s *LRUCache) dropOrder(key string) {
	if el, ok := s.elems[key]; ok {
		s.order.Remove(el)
		delete(s.elems, key)
	}
}
