// Package securestore is the durable persistence collaborator. The engine
// works entirely in memory; a SecureStore lets it survive a restart.
package securestore

import (
	"context"
	"sync"
)

type SecureStore interface {
	Put(ctx context.Context, key string, value []byte) error
	// Get returns (nil, false, nil) for an unknown key.
	Get(ctx context.Context, key string) ([]byte, bool, error)
}

// Memory is the default store: nothing survives a restart.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Put(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}
