package locking

import (
	"fmt"
	"sync"
)

// Manager provides named in-process locks. Jobs use it to prevent
// concurrent runs of themselves; the campaign lifecycle service uses it
// to linearize transitions per campaign id.
type Manager struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
	held  map[string]bool
}

// NewManager creates a new lock manager
func NewManager() *Manager {
	return &Manager{
		locks: make(map[string]*sync.Mutex),
		held:  make(map[string]bool),
	}
}

// Acquire takes the named lock without blocking. Returns an error if
// the lock is already held.
func (m *Manager) Acquire(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.held[name] {
		return fmt.Errorf("lock %q already held", name)
	}
	m.held[name] = true
	return nil
}

// Release releases the named lock
func (m *Manager) Release(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, name)
}

// Lock blocks until the named lock is available, then holds it until
// Unlock. Distinct names never contend with each other.
func (m *Manager) Lock(name string) {
	m.mutexFor(name).Lock()
}

// Unlock releases a blocking lock taken with Lock
func (m *Manager) Unlock(name string) {
	m.mutexFor(name).Unlock()
}

func (m *Manager) mutexFor(name string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	if mu, ok := m.locks[name]; ok {
		return mu
	}
	mu := &sync.Mutex{}
	m.locks[name] = mu
	return mu
}
