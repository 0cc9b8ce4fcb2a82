package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T, max int, window time.Duration) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedis(rdb, max, window), mr
}

func TestRedis_FixedWindow(t *testing.T) {
	ctx := context.Background()
	l, mr := newTestRedis(t, 3, time.Minute)

	for i := 1; i <= 3; i++ {
		d, err := l.Allow(ctx, "s1")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, i, d.Count)
	}
	d, err := l.Allow(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 3, d.Limit)
	assert.True(t, mr.Exists("ratelimit:s1"))
	assert.Equal(t, time.Minute, mr.TTL("ratelimit:s1"))

	mr.FastForward(time.Minute)
	d, err = l.Allow(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Count)
}

func TestRedis_FailOpen(t *testing.T) {
	ctx := context.Background()
	l, mr := newTestRedis(t, 1, time.Minute)
	mr.Close()

	d, err := l.Allow(ctx, "s1")
	assert.Error(t, err)
	assert.True(t, d.Allowed)
}

func TestRedis_Defaults(t *testing.T) {
	l := NewRedis(nil, 0, 0)
	assert.Equal(t, DefaultMax, l.max)
	assert.Equal(t, DefaultWindow, l.window)
}
