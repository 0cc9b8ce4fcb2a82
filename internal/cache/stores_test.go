package cache

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(rdb), mr
}

func exerciseStore(t *testing.T, st Store) {
	t.Helper()
	ctx := context.Background()

	_, err := st.Get(ctx, "ns:missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, st.Set(ctx, "ns:a", []byte("1")))
	require.NoError(t, st.Set(ctx, "ns:b", []byte("2")))
	require.NoError(t, st.Set(ctx, "ns:a", []byte("3")))
	require.NoError(t, st.Set(ctx, "other:c", []byte("4")))

	v, err := st.Get(ctx, "ns:a")
	require.NoError(t, err)
	assert.Equal(t, "3", string(v))

	keys, err := st.Keys(ctx, "ns:")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ns:a", "ns:b"}, keys)

	require.NoError(t, st.Delete(ctx, "ns:a", "ns:b"))
	require.NoError(t, st.Delete(ctx))
	keys, err = st.Keys(ctx, "ns:")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestMemoryStore_Contract(t *testing.T) {
	exerciseStore(t, NewMemoryStore(0))
}

func TestRedisStore_Contract(t *testing.T) {
	st, _ := setupRedisStore(t)
	exerciseStore(t, st)
}

func TestRedisStore_GlobCharactersInPrefix(t *testing.T) {
	st, _ := setupRedisStore(t)
	ctx := context.Background()
	require.NoError(t, st.Set(ctx, "a*:1", []byte("x")))
	require.NoError(t, st.Set(ctx, "ab:2", []byte("x")))

	keys, err := st.Keys(ctx, "a*:")
	require.NoError(t, err)
	assert.Equal(t, []string{"a*:1"}, keys)
}

func TestRedisStore_ManyKeys(t *testing.T) {
	st, _ := setupRedisStore(t)
	ctx := context.Background()
	for i := 0; i < 450; i++ {
		require.NoError(t, st.Set(ctx, fmt.Sprintf("fastcache:%d", i), []byte("x")))
	}
	keys, err := st.Keys(ctx, "fastcache:")
	require.NoError(t, err)
	assert.Len(t, keys, 450)
}

func TestRedisStore_ErrorsAreMisses(t *testing.T) {
	st, mr := setupRedisStore(t)
	ctx := context.Background()
	c := New(st, WithClock(clockwork.NewFakeClock()))
	Set(ctx, c, "k", "v", time.Hour)
	_, ok := Get[string](ctx, c, "k")
	require.True(t, ok)

	mr.SetError("OOM command not allowed when used memory > 'maxmemory'")
	Set(ctx, c, "k2", "v", time.Hour)
	_, ok = Get[string](ctx, c, "k")
	assert.False(t, ok, "read errors are misses")
	mr.SetError("")

	_, ok = Get[string](ctx, c, "k2")
	assert.False(t, ok, "failed write is dropped")
	_, ok = Get[string](ctx, c, "k")
	assert.True(t, ok)
}

func openSQLite(t *testing.T, maxPages int) *SQLiteStore {
	t.Helper()
	st, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "nested", "cache.db"), maxPages)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestSQLiteStore_Contract(t *testing.T) {
	st := openSQLite(t, 0)
	require.NoError(t, st.Ping(context.Background()))
	exerciseStore(t, st)
}

func TestSQLiteStore_NonASCIIPrefix(t *testing.T) {
	st := openSQLite(t, 0)
	ctx := context.Background()
	require.NoError(t, st.Set(ctx, "حقوق:1", []byte("x")))
	require.NoError(t, st.Set(ctx, "حقوق:2", []byte("y")))
	require.NoError(t, st.Set(ctx, "حق:3", []byte("z")))

	keys, err := st.Keys(ctx, "حقوق:")
	require.NoError(t, err)
	assert.Equal(t, []string{"حقوق:1", "حقوق:2"}, keys)

	c := New(st, WithNamespace("حقوق:"))
	require.NoError(t, c.Clear(ctx))
	n, err := c.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	_, err = st.Get(ctx, "حق:3")
	assert.NoError(t, err, "other namespaces are untouched")
}

func TestSQLiteStore_PersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")
	st, err := OpenSQLiteStore(path, 0)
	require.NoError(t, err)
	c := New(st)
	Set(ctx, c, "news-law", []string{"a", "b"}, time.Hour)
	require.NoError(t, st.Close())

	st2, err := OpenSQLiteStore(path, 0)
	require.NoError(t, err)
	defer st2.Close()
	got, ok := Get[[]string](ctx, New(st2), "news-law")
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestSQLiteStore_FullDatabase(t *testing.T) {
	st := openSQLite(t, 16)
	ctx := context.Background()
	big := []byte(strings.Repeat("z", 8192))

	var werr error
	for i := 0; i < 200 && werr == nil; i++ {
		werr = st.Set(ctx, fmt.Sprintf("fastcache:%03d", i), big)
	}
	require.Error(t, werr)
	assert.Contains(t, strings.ToLower(werr.Error()), "full")
}
