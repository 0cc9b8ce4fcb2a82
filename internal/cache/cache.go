// Package cache implements a TTL cache of JSON values over a pluggable
// key/value store.
//
// Entries are stored as a versioned envelope
//
//	{"v": 1, "data": ..., "timestamp": <epoch ms>, "ttl": <ms>}
//
// and expire lazily on read. A failed write prunes the oldest half of the
// namespace and drops the value.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/qanuni/legalai/internal/adapter/observability"
)

// Defaults.
const (
	DefaultTTL       = 24 * time.Hour
	DefaultNamespace = "fastcache:"
	// SchemaVersion is the envelope version written by this build.
	SchemaVersion = 1
)

// Migration upgrades the payload of an entry from version N to N+1.
type Migration func(data json.RawMessage) (json.RawMessage, error)

type envelope struct {
	V         int             `json:"v"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
	TTL       int64           `json:"ttl"`
}

func (e envelope) expired(nowMs int64) bool {
	return nowMs-e.Timestamp > e.TTL
}

// Cache is a namespaced TTL cache. The zero value is not usable; use New.
type Cache struct {
	store      Store
	namespace  string
	defaultTTL time.Duration
	clock      clockwork.Clock
	version    int
	enabled    atomic.Bool

	mu         sync.RWMutex
	migrations map[int]Migration
}

// Option configures a Cache.
type Option func(*Cache)

// WithNamespace sets the key prefix under which entries are stored.
func WithNamespace(ns string) Option { return func(c *Cache) { c.namespace = ns } }

// WithDefaultTTL sets the TTL applied when Set is given ttl <= 0.
func WithDefaultTTL(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.defaultTTL = d
		}
	}
}

// WithClock replaces the time source.
func WithClock(clk clockwork.Clock) Option { return func(c *Cache) { c.clock = clk } }

// WithSchemaVersion overrides the envelope version written and expected.
func WithSchemaVersion(v int) Option { return func(c *Cache) { c.version = v } }

// WithMigration registers the upgrade of payloads stored at version from.
func WithMigration(from int, m Migration) Option {
	return func(c *Cache) { c.migrations[from] = m }
}

// WithEnabled sets the initial enabled state (default true).
func WithEnabled(on bool) Option { return func(c *Cache) { c.enabled.Store(on) } }

// New builds a Cache over store.
func New(store Store, opts ...Option) *Cache {
	c := &Cache{
		store:      store,
		namespace:  DefaultNamespace,
		defaultTTL: DefaultTTL,
		clock:      clockwork.NewRealClock(),
		version:    SchemaVersion,
		migrations: map[int]Migration{},
	}
	c.enabled.Store(true)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetEnabled toggles the cache. Disabling keeps stored entries.
func (c *Cache) SetEnabled(on bool) { c.enabled.Store(on) }

// Enabled reports whether the cache serves reads and accepts writes.
func (c *Cache) Enabled() bool { return c.enabled.Load() }

// RegisterMigration adds an upgrade step after construction.
func (c *Cache) RegisterMigration(from int, m Migration) {
	c.mu.Lock()
	c.migrations[from] = m
	c.mu.Unlock()
}

func (c *Cache) key(k string) string { return c.namespace + k }

func (c *Cache) nowMs() int64 { return c.clock.Now().UnixMilli() }

// Set stores data under key for ttl (DefaultTTL when ttl <= 0). Failures are
// logged and swallowed; a failed write triggers Prune and is not retried.
func Set[T any](ctx context.Context, c *Cache, key string, data T, ttl time.Duration) {
	if !c.Enabled() {
		return
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	lg := observability.LoggerFromContext(ctx)
	payload, err := json.Marshal(data)
	if err != nil {
		lg.Warn("cache marshal failed", slog.String("key", key), slog.Any("error", err))
		return
	}
	raw, err := json.Marshal(envelope{V: c.version, Data: payload, Timestamp: c.nowMs(), TTL: ttl.Milliseconds()})
	if err != nil {
		lg.Warn("cache marshal failed", slog.String("key", key), slog.Any("error", err))
		return
	}
	if err := c.store.Set(ctx, c.key(key), raw); err != nil {
		observability.CacheWrite(false)
		lg.Warn("cache write failed; pruning", slog.String("key", key), slog.Any("error", err))
		if _, perr := c.Prune(ctx); perr != nil {
			lg.Warn("cache prune failed", slog.Any("error", perr))
		}
		return
	}
	observability.CacheWrite(true)
}

// Get returns the value stored under key. Disabled caches, missing, corrupt,
// expired and unmigratable entries are all misses; expired and unmigratable
// entries are deleted.
func Get[T any](ctx context.Context, c *Cache, key string) (T, bool) {
	var zero T
	if !c.Enabled() {
		return zero, false
	}
	lg := observability.LoggerFromContext(ctx)
	k := c.key(key)

	raw, err := c.store.Get(ctx, k)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			lg.Warn("cache read failed", slog.String("key", key), slog.Any("error", err))
		}
		observability.CacheMiss()
		return zero, false
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		lg.Debug("cache entry corrupt", slog.String("key", key), slog.Any("error", err))
		observability.CacheMiss()
		return zero, false
	}
	if env.expired(c.nowMs()) {
		c.remove(ctx, k)
		observability.CacheMiss()
		return zero, false
	}
	if env.V != c.version {
		data, err := c.migrate(env.V, env.Data)
		if err != nil {
			lg.Info("cache entry dropped", slog.String("key", key), slog.Int("version", env.V), slog.Any("error", err))
			c.remove(ctx, k)
			observability.CacheMiss()
			return zero, false
		}
		env.V, env.Data = c.version, data
		if upgraded, err := json.Marshal(env); err == nil {
			if err := c.store.Set(ctx, k, upgraded); err != nil {
				lg.Debug("cache write back of migrated entry failed", slog.String("key", key), slog.Any("error", err))
			}
		}
	}

	var out T
	if err := json.Unmarshal(env.Data, &out); err != nil {
		lg.Debug("cache payload corrupt", slog.String("key", key), slog.Any("error", err))
		observability.CacheMiss()
		return zero, false
	}
	observability.CacheHit()
	return out, true
}

func (c *Cache) migrate(from int, data json.RawMessage) (json.RawMessage, error) {
	if from > c.version {
		return nil, fmt.Errorf("entry version %d is newer than %d", from, c.version)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for v := from; v < c.version; v++ {
		m, ok := c.migrations[v]
		if !ok {
			return nil, fmt.Errorf("no migration from version %d", v)
		}
		next, err := m(data)
		if err != nil {
			return nil, fmt.Errorf("migration from version %d: %w", v, err)
		}
		data = next
	}
	return data, nil
}

func (c *Cache) remove(ctx context.Context, key string) {
	if err := c.store.Delete(ctx, key); err != nil {
		observability.LoggerFromContext(ctx).Warn("cache delete failed", slog.String("key", key), slog.Any("error", err))
	}
}

// Delete removes a single entry.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.store.Delete(ctx, c.key(key))
}

// Clear removes every entry of the namespace.
func (c *Cache) Clear(ctx context.Context) error {
	keys, err := c.store.Keys(ctx, c.namespace)
	if err != nil {
		return fmt.Errorf("op=cache.Clear: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.store.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("op=cache.Clear: %w", err)
	}
	return nil
}

// Prune removes the oldest half (rounded up) of the namespace by write
// timestamp. Unreadable entries sort first. It returns the number removed.
func (c *Cache) Prune(ctx context.Context) (int, error) {
	keys, err := c.store.Keys(ctx, c.namespace)
	if err != nil {
		return 0, fmt.Errorf("op=cache.Prune: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	type aged struct {
		key string
		ts  int64
	}
	entries := make([]aged, 0, len(keys))
	for _, k := range keys {
		ts := int64(math.MinInt64)
		if raw, err := c.store.Get(ctx, k); err == nil {
			var env envelope
			if json.Unmarshal(raw, &env) == nil {
				ts = env.Timestamp
			}
		}
		entries = append(entries, aged{k, ts})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].ts != entries[j].ts {
			return entries[i].ts < entries[j].ts
		}
		return strings.Compare(entries[i].key, entries[j].key) < 0
	})

	n := (len(entries) + 1) / 2
	victims := make([]string, 0, n)
	for _, e := range entries[:n] {
		victims = append(victims, e.key)
	}
	if err := c.store.Delete(ctx, victims...); err != nil {
		return 0, fmt.Errorf("op=cache.Prune: %w", err)
	}
	observability.CachePrune(n)
	return n, nil
}

// Len returns the number of entries in the namespace, expired ones included.
func (c *Cache) Len(ctx context.Context) (int, error) {
	keys, err := c.store.Keys(ctx, c.namespace)
	if err != nil {
		return 0, fmt.Errorf("op=cache.Len: %w", err)
	}
	return len(keys), nil
}
