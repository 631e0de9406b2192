package store

import (
	"bytes"
	"context"
	"sort"
	"sync"
)

// Memory is an in-process Store used by tests and single-process demos.
type Memory struct {
	mu      sync.RWMutex
	records map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{records: map[string][]byte{}}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	value, ok := m.records[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return bytes.Clone(value), nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	m.records[key] = bytes.Clone(value)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Create(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[key]; ok {
		return ErrExists
	}
	m.records[key] = bytes.Clone(value)
	return nil
}

func (m *Memory) CompareAndSwap(_ context.Context, key string, old, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.records[key]
	if !ok || !bytes.Equal(current, old) {
		return writeError(key, ErrPreconditionFailed)
	}
	m.records[key] = bytes.Clone(value)
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }

// Keys lists every stored key in lexical order.
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.records))
	for key := range m.records {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
