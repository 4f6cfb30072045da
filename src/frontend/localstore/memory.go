package localstore

import (
	"context"
	"sync"
)

// Memory keeps everything in process. Used for single-node runs and tests.
type Memory struct {
	mu    sync.RWMutex
	store map[string]map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{store: make(map[string]map[string][]byte)}
}

func (m *Memory) Get(ctx context.Context, scope, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.store[scope][key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *Memory) Set(ctx context.Context, scope, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.store[scope]
	if !ok {
		s = make(map[string][]byte)
		m.store[scope] = s
	}
	v := make([]byte, len(value))
	copy(v, value)
	s[key] = v
	return nil
}

func (m *Memory) Delete(ctx context.Context, scope, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.store[scope]; ok {
		delete(s, key)
		if len(s) == 0 {
			delete(m.store, scope)
		}
	}
	return nil
}
