package store

import (
	"fmt"
	"sync"
)

// Memory is an in-process Store used by tests and as the fallback when no
// durable directory is available. FailSaves simulates a store that has
// become unavailable (quota exceeded, disabled).
type Memory struct {
	mu        sync.Mutex
	values    map[string][]byte
	FailSaves bool
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string][]byte)}
}

// Save stores a copy of the value.
func (m *Memory) Save(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSaves {
		return fmt.Errorf("store unavailable")
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	m.values[key] = cp
	return nil
}

// Load returns a copy of the stored value, or (nil, nil) if absent.
func (m *Memory) Load(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return nil, nil
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, nil
}
