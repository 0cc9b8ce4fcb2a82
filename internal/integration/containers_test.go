//go:build integration

// Package integration runs the storage adapters against real Postgres and
// Redis containers. Run with: go test -tags integration ./internal/integration/...
package integration

import (
	"context"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/qanuni/legalai/internal/adapter/repo/postgres"
	"github.com/qanuni/legalai/internal/cache"
	"github.com/qanuni/legalai/internal/domain"
	"github.com/qanuni/legalai/internal/ratelimit"
)

func startContainer(t *testing.T, req testcontainers.ContainerRequest, port string) string {
	t.Helper()
	ctx := context.Background()
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(ctx) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	p, err := c.MappedPort(ctx, port)
	require.NoError(t, err)
	return host + ":" + p.Port()
}

func Test_ProviderRepo_Postgres(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	addr := startContainer(t, testcontainers.ContainerRequest{
		Image:        "postgres:16",
		Env:          map[string]string{"POSTGRES_PASSWORD": "postgres", "POSTGRES_USER": "postgres", "POSTGRES_DB": "legalai"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(90 * time.Second),
	}, "5432")

	pool, err := postgres.Connect(ctx, "postgres://postgres:postgres@"+addr+"/legalai?sslmode=disable", 30*time.Second)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, postgres.Migrate(ctx, pool))
	require.NoError(t, postgres.Migrate(ctx, pool), "migrations are idempotent")

	repo := postgres.NewProviderRepo(pool)
	require.NoError(t, repo.SyncProviders(ctx, []domain.ProviderInfo{
		{Name: "gemini", Kind: "gemini", Model: "gemini-2.5-flash", Priority: 1},
		{Name: "openrouter", Kind: "openrouter", Model: "llama", Priority: 2},
	}))
	require.NoError(t, repo.RecordCall(ctx, "gemini", true, 100))
	require.NoError(t, repo.RecordCall(ctx, "gemini", false, 20))

	require.NoError(t, repo.SyncProviders(ctx, []domain.ProviderInfo{
		{Name: "gemini", Kind: "gemini", Model: "gemini-2.5-pro", Priority: 1},
	}))

	statuses, err := repo.ListStatuses(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.Equal(t, "gemini", statuses[0].Name)
	assert.Equal(t, "gemini-2.5-pro", statuses[0].Model)
	assert.True(t, statuses[0].Enabled)
	assert.EqualValues(t, 2, statuses[0].RequestsToday)
	assert.EqualValues(t, 1, statuses[0].SuccessesToday)
	assert.EqualValues(t, 1, statuses[0].FailuresToday)
	assert.EqualValues(t, 120, statuses[0].TokensToday)
	assert.Equal(t, "openrouter", statuses[1].Name)
	assert.False(t, statuses[1].Enabled)
}

func Test_RedisAdapters(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	addr := startContainer(t, testcontainers.ContainerRequest{
		Image:        "redis:7",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
	}, "6379")
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })
	require.Eventually(t, func() bool { return rdb.Ping(ctx).Err() == nil }, 30*time.Second, time.Second)

	c := cache.New(cache.NewRedisStore(rdb))
	cache.Set(ctx, c, "news-labour", []string{"headline"}, time.Hour)
	got, ok := cache.Get[[]string](ctx, c, "news-labour")
	require.True(t, ok)
	assert.Equal(t, []string{"headline"}, got)
	require.NoError(t, c.Clear(ctx))
	_, ok = cache.Get[[]string](ctx, c, "news-labour")
	assert.False(t, ok)

	lim := ratelimit.NewRedis(rdb, 2, time.Second)
	for i := 0; i < 2; i++ {
		d, err := lim.Allow(ctx, "it")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}
	d, err := lim.Allow(ctx, "it")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	require.Eventually(t, func() bool {
		d, err := lim.Allow(ctx, "it")
		return err == nil && d.Allowed && d.Count == 1
	}, 5*time.Second, 200*time.Millisecond)
}
