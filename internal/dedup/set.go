package dedup

import "sync"

// Set records identifiers that have already been delivered or persisted.
type Set interface {
	Contains(id string) bool
	// Add is idempotent.
	Add(id string)
	Len() int
}

// MemorySet is a volatile, unbounded Set safe for concurrent use.
type MemorySet struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

// NewMemorySet creates a set seeded with ids.
func NewMemorySet(ids ...string) *MemorySet {
	s := &MemorySet{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

func (s *MemorySet) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}

func (s *MemorySet) Add(id string) {
	s.mu.Lock()
	s.ids[id] = struct{}{}
	s.mu.Unlock()
}

func (s *MemorySet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}
