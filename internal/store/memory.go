package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/rotisserie/eris"
)

// MemoryBackend keeps documents in process memory. Used by tests and by
// dry runs that should not touch disk.
type MemoryBackend struct {
	mu          sync.RWMutex
	data        map[string][]byte
	quarantined int
	puts        map[string]int
}

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		data: make(map[string][]byte),
		puts: make(map[string]int),
	}
}

func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (m *MemoryBackend) Put(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := make([]byte, len(data))
	copy(v, data)
	m.data[key] = v
	m.puts[key]++
	return nil
}

func (m *MemoryBackend) Quarantine(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", eris.Errorf("memory: quarantine %s: not found", key)
	}
	m.quarantined++
	dst := fmt.Sprintf("%s.corrupt-%d", key, m.quarantined)
	m.data[dst] = v
	delete(m.data, key)
	return dst, nil
}

// Puts returns how many times key has been written.
func (m *MemoryBackend) Puts(key string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.puts[key]
}

func (m *MemoryBackend) Close() error { return nil }
