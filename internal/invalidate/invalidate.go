// Package invalidate tracks a generation counter per namespace so that
// processes sharing a metadata database notice each other's structural
// changes.
package invalidate

import (
	"context"
	"sync"
)

// Tracker hands out namespace generations. A generation only ever increases.
type Tracker interface {
	// Current returns the current generation of namespace
	Current(ctx context.Context, namespace string) (int64, error)
	// Bump advances the generation of namespace and returns the new value
	Bump(ctx context.Context, namespace string) (int64, error)
	// Close releases any resources held by the tracker
	Close() error
}

// MemoryTracker keeps generations in process memory
type MemoryTracker struct {
	mu          sync.Mutex
	generations map[string]int64
}

// NewMemoryTracker creates an in-process tracker
func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{generations: make(map[string]int64)}
}

// Current implements Tracker
func (m *MemoryTracker) Current(ctx context.Context, namespace string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generations[namespace], nil
}

// Bump implements Tracker
func (m *MemoryTracker) Bump(ctx context.Context, namespace string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generations[namespace]++
	return m.generations[namespace], nil
}

// Close implements Tracker
func (m *MemoryTracker) Close() error {
	return nil
}
