// Package database provides the key-value store backing contract state,
// plus an edit-layer wrapper that gives nested transactional frames on
// top of any backend.
package database

import "sync"

// Backend is a flat string key-value store.
type Backend interface {
	Get(key string) (string, bool, error)
	Put(key, value string) error
	Close() error
}

// MemoryBackend keeps the store in a map. It is the default for runs,
// checks and tests.
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string]string)}
}

func (m *MemoryBackend) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryBackend) Put(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MemoryBackend) Close() error { return nil }

// Len reports the number of stored keys.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
