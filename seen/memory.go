package seen

import (
	"context"
	"sync"
)

// MemoryStore keeps the set in process memory. It backs dry runs and tests.
type MemoryStore struct {
	mu    sync.Mutex
	set   Set
	saves int
}

// NewMemoryStore creates a store preloaded with fingerprints.
func NewMemoryStore(fingerprints ...string) *MemoryStore {
	return &MemoryStore{set: NewSet(fingerprints...)}
}

// Load returns a copy of the stored set.
func (m *MemoryStore) Load(ctx context.Context) (Set, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return NewSet(m.set.Sorted()...), nil
}

// Save replaces the stored set with a copy of set.
func (m *MemoryStore) Save(ctx context.Context, set Set) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set = NewSet(set.Sorted()...)
	m.saves++
	return nil
}

// Saves returns how many times Save was called.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *MemoryStore) Close() error {
	return nil
}
