package blob

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Memory is a process-local Store.
type Memory struct {
	mu   sync.RWMutex
	objs map[string][]byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory { return &Memory{objs: make(map[string][]byte)} }

func (m *Memory) Driver() Driver { return DriverMemory }

// Put stores a copy of data under key, replacing any previous value.
func (m *Memory) Put(_ context.Context, key string, data []byte) error {
	k, err := CleanKey(key)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objs[k] = slices.Clone(data)
	return nil
}

// Get returns a copy of the payload stored under key.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objs[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if data == nil {
		return []byte{}, nil
	}
	return slices.Clone(data), nil
}

// Delete removes key.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objs[key]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	delete(m.objs, key)
	return nil
}

// List returns the keys starting with prefix, sorted.
func (m *Memory) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []string
	for k := range m.objs {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys, nil
}
