package kv

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// Memory is an in-process Store backed by a sorted key slice. Contents are
// lost on restart; it serves tests and single-node development.
type Memory struct {
	mu     sync.RWMutex
	keys   []string
	values map[string][]byte
	closed bool
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string][]byte)}
}

func (m *Memory) Set(ctx context.Context, key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrNotInitialized
	}

	m.put(key, value)
	return nil
}

func (m *Memory) SetIfAbsent(ctx context.Context, key string, value []byte) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false, ErrNotInitialized
	}

	if _, exists := m.values[key]; exists {
		return false, nil
	}
	m.put(key, value)
	return true, nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrNotInitialized
	}

	if _, exists := m.values[key]; !exists {
		return nil
	}
	delete(m.values, key)
	if idx, found := slices.BinarySearch(m.keys, key); found {
		m.keys = slices.Delete(m.keys, idx, idx+1)
	}
	return nil
}

func (m *Memory) GetByPrefix(ctx context.Context, prefix string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrNotInitialized
	}

	start, _ := slices.BinarySearch(m.keys, prefix)

	var entries []Entry
	for _, key := range m.keys[start:] {
		if !strings.HasPrefix(key, prefix) {
			break
		}
		entries = append(entries, Entry{Key: key, Value: slices.Clone(m.values[key])})
	}
	return entries, nil
}

func (m *Memory) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrNotInitialized
	}
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *Memory) Driver() string {
	return DriverMemory
}

// Len reports the number of stored keys.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.keys)
}

// put must be called with mu held for writing.
func (m *Memory) put(key string, value []byte) {
	if _, exists := m.values[key]; !exists {
		idx, _ := slices.BinarySearch(m.keys, key)
		m.keys = slices.Insert(m.keys, idx, key)
	}
	m.values[key] = slices.Clone(value)
}
