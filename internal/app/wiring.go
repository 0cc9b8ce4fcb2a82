package app

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/qanuni/legalai/internal/cache"
	"github.com/qanuni/legalai/internal/config"
	"github.com/qanuni/legalai/internal/ratelimit"
)

// NewRedisClient parses REDIS_URL. The client connects lazily.
func NewRedisClient(cfg config.Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("op=app.NewRedisClient: %w", err)
	}
	return redis.NewClient(opts), nil
}

// NewCacheStore builds the cache backend selected by CACHE_BACKEND. The
// returned close func is never nil.
func NewCacheStore(cfg config.Config, rdb redis.Cmdable) (cache.Store, func() error, error) {
	noop := func() error { return nil }
	switch cfg.CacheBackend {
	case "redis":
		if rdb == nil {
			return nil, noop, fmt.Errorf("op=app.NewCacheStore: redis backend without client")
		}
		return cache.NewRedisStore(rdb), noop, nil
	case "sqlite":
		s, err := cache.OpenSQLiteStore(cfg.CacheSQLitePath, cfg.CacheSQLiteMaxPages)
		if err != nil {
			return nil, noop, fmt.Errorf("op=app.NewCacheStore: %w", err)
		}
		return s, s.Close, nil
	default:
		return cache.NewMemoryStore(cfg.CacheMemoryQuotaBytes), noop, nil
	}
}

// NewCache wraps the store with the configured namespace, TTL and toggle.
func NewCache(cfg config.Config, store cache.Store) *cache.Cache {
	return cache.New(store,
		cache.WithNamespace(cfg.CacheNamespace),
		cache.WithDefaultTTL(cfg.CacheDefaultTTL),
		cache.WithEnabled(cfg.CacheEnabled),
	)
}

// NewLimiter builds the chat limiter selected by RATE_LIMIT_BACKEND.
func NewLimiter(cfg config.Config, rdb redis.Scripter) (ratelimit.Limiter, error) {
	if cfg.RateLimitBackend == "redis" {
		if rdb == nil {
			return nil, fmt.Errorf("op=app.NewLimiter: redis backend without client")
		}
		return ratelimit.NewRedis(rdb, cfg.RateLimitMax, cfg.RateLimitWindow), nil
	}
	l, err := ratelimit.NewMemory(cfg.RateLimitMax, cfg.RateLimitWindow, cfg.RateLimitCapacity)
	if err != nil {
		return nil, fmt.Errorf("op=app.NewLimiter: %w", err)
	}
	return l, nil
}
