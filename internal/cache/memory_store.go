package cache

import (
	"context"
	"strings"
	"sync"
)

// DefaultMemoryQuota mirrors the ~5 MiB budget browsers give local storage.
const DefaultMemoryQuota int64 = 5 * 1024 * 1024

// MemoryStore keeps entries in process memory under a byte quota counting
// keys and values.
type MemoryStore struct {
	mu    sync.RWMutex
	data  map[string][]byte
	used  int64
	quota int64
}

// NewMemoryStore returns a store limited to quota bytes (DefaultMemoryQuota
// when quota <= 0).
func NewMemoryStore(quota int64) *MemoryStore {
	if quota <= 0 {
		quota = DefaultMemoryQuota
	}
	return &MemoryStore{data: map[string][]byte{}, quota: quota}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Set fails with ErrQuotaExceeded, storing nothing, when the write would
// exceed the quota.
func (m *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	used := m.used + int64(len(key)+len(value))
	if old, ok := m.data[key]; ok {
		used -= int64(len(key) + len(old))
	}
	if used > m.quota {
		return ErrQuotaExceeded
	}
	m.data[key] = append([]byte(nil), value...)
	m.used = used
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		if v, ok := m.data[k]; ok {
			m.used -= int64(len(k) + len(v))
			delete(m.data, k)
		}
	}
	return nil
}

func (m *MemoryStore) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.data))
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}

// Used returns the bytes currently accounted against the quota.
func (m *MemoryStore) Used() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.used
}
