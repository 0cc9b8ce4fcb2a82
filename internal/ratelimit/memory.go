package ratelimit

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jonboulle/clockwork"
)

type record struct {
	count     int
	resetTime time.Time
}

// Memory keeps per-key windows in a fixed-capacity LRU. Evicting a key
// forgets its window, so its next request starts fresh.
type Memory struct {
	max    int
	window time.Duration
	clock  clockwork.Clock

	mu      sync.Mutex
	records *lru.Cache[string, *record]
}

// MemoryOption configures a Memory limiter.
type MemoryOption func(*Memory)

// WithClock replaces the time source.
func WithClock(c clockwork.Clock) MemoryOption {
	return func(m *Memory) { m.clock = c }
}

// NewMemory builds an in-process limiter. Non-positive arguments fall back
// to the defaults.
func NewMemory(max int, window time.Duration, capacity int, opts ...MemoryOption) (*Memory, error) {
	if max <= 0 {
		max = DefaultMax
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	records, err := lru.New[string, *record](capacity)
	if err != nil {
		return nil, err
	}
	m := &Memory{max: max, window: window, clock: clockwork.NewRealClock(), records: records}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Allow implements Limiter. It never fails.
func (m *Memory) Allow(_ context.Context, key string) (Decision, error) {
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records.Get(key)
	if !ok || !now.Before(rec.resetTime) {
		rec = &record{count: 1, resetTime: now.Add(m.window)}
		m.records.Add(key, rec)
	} else {
		rec.count++
	}
	return Decision{
		Allowed: rec.count <= m.max,
		Count:   rec.count,
		Limit:   m.max,
		ResetAt: rec.resetTime,
	}, nil
}

// Len returns the number of tracked keys.
func (m *Memory) Len() int { return m.records.Len() }
