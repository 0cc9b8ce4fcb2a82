package app_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpserver "github.com/qanuni/legalai/internal/adapter/httpserver"
	"github.com/qanuni/legalai/internal/app"
	"github.com/qanuni/legalai/internal/cache"
	"github.com/qanuni/legalai/internal/config"
	"github.com/qanuni/legalai/internal/ratelimit"
	"github.com/qanuni/legalai/internal/usecase"
)

type echoReplier struct{}

func (echoReplier) Reply(_ context.Context, msg string) (string, error) { return "re: " + msg, nil }

func testConfig() config.Config {
	return config.Config{
		AppEnv:            "test",
		CacheBackend:      "memory",
		CacheNamespace:    "fastcache:",
		CacheDefaultTTL:   time.Hour,
		CacheEnabled:      true,
		RateLimitBackend:  "memory",
		RateLimitMax:      2,
		RateLimitWindow:   time.Minute,
		RateLimitCapacity: 10,
		AIRateLimitPerMin: 30,
		MaxUploadMB:       1,
	}
}

func TestBuildRouter_Routes(t *testing.T) {
	cfg := testConfig()
	lim, err := app.NewLimiter(cfg, nil)
	require.NoError(t, err)
	cat, err := usecase.LoadCatalog()
	require.NoError(t, err)
	srv := &httpserver.Server{
		Cfg:       cfg,
		Chat:      echoReplier{},
		Generator: usecase.NewGenerationService(nil, cat),
		Limiter:   lim,
		Probes:    []usecase.Probe{{Name: "db", Check: func(context.Context) error { return nil }}},
	}
	h := app.BuildRouter(cfg, srv)

	do := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/readyz", "").Code)
	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/metrics", "").Code)
	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/api/ai/providers", "").Code)

	rec := do(http.MethodPost, "/api/whatsapp-chat", `{"message":"hi","session_id":"x"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"response":"re: hi"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, http.StatusOK, do(http.MethodPost, "/api/whatsapp-chat", `{"message":"hi","session_id":"x"}`).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(http.MethodPost, "/api/whatsapp-chat", `{"message":"hi","session_id":"x"}`).Code)

	// Without a structured backend the wrappers report an upstream auth error.
	rec = do(http.MethodPost, "/api/ai/news", `{"query":"labour law"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "UPSTREAM_AUTH")

	// Cache admin is not mounted without credentials.
	assert.Equal(t, http.StatusNotFound, do(http.MethodDelete, "/api/ai/cache", "").Code)
}

func TestParseOrigins(t *testing.T) {
	assert.Equal(t, []string{"*"}, app.ParseOrigins(""))
	assert.Equal(t, []string{"*"}, app.ParseOrigins(" , "))
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, app.ParseOrigins("https://a.example, https://b.example"))
}

func TestNewCacheStore(t *testing.T) {
	cfg := testConfig()

	s, closeFn, err := app.NewCacheStore(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &cache.MemoryStore{}, s)
	assert.NoError(t, closeFn())

	cfg.CacheBackend = "sqlite"
	cfg.CacheSQLitePath = t.TempDir() + "/cache.db"
	s, closeFn, err = app.NewCacheStore(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &cache.SQLiteStore{}, s)
	assert.NoError(t, closeFn())

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cfg.CacheBackend = "redis"
	s, _, err = app.NewCacheStore(cfg, rdb)
	require.NoError(t, err)
	c := app.NewCache(cfg, s)
	cache.Set(context.Background(), c, "k", 1, 0)
	assert.True(t, mr.Exists("fastcache:k"))
}

func TestNewLimiter(t *testing.T) {
	cfg := testConfig()
	l, err := app.NewLimiter(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &ratelimit.Memory{}, l)

	cfg.RateLimitBackend = "redis"
	_, err = app.NewLimiter(cfg, nil)
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	l, err = app.NewLimiter(cfg, redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	require.NoError(t, err)
	d, err := l.Allow(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestBuildReadinessProbes(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	checks, ok := usecase.RunProbes(context.Background(), time.Second, app.BuildReadinessProbes(nil, rdb)...)
	assert.False(t, ok)
	assert.Equal(t, "db not configured", checks[0].Details)
	assert.True(t, checks[1].OK)
}

func TestNewRedisClient(t *testing.T) {
	_, err := app.NewRedisClient(config.Config{RedisURL: "redis://localhost:6379/0"})
	assert.NoError(t, err)
	_, err = app.NewRedisClient(config.Config{RedisURL: "mysql://nope"})
	assert.Error(t, err)
}
