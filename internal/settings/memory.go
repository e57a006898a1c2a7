package settings

import (
	"context"
	"sync"
)

// MemoryStore keeps settings in process memory. Changes are lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	current Settings
}

// NewMemoryStore creates a store seeded with initial.
func NewMemoryStore(initial Settings) *MemoryStore {
	return &MemoryStore{current: initial}
}

// Snapshot returns a copy of the current settings.
func (m *MemoryStore) Snapshot(context.Context) (Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current, nil
}

// Update applies fn under the write lock.
func (m *MemoryStore) Update(_ context.Context, fn Mutation) (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.current
	if err := fn(&next); err != nil {
		return Settings{}, err
	}
	if err := next.Validate(); err != nil {
		return Settings{}, err
	}
	m.current = next
	return next, nil
}

// Ping always succeeds.
func (m *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }
