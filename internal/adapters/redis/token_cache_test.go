package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*TokenCache, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewTokenCache(client), srv
}

func TestTokenCacheRoundTrip(t *testing.T) {
	t.Parallel()

	cache, srv := newTestCache(t)
	ctx := context.Background()

	// Absent key reads as empty, not an error.
	got, err := cache.Get(ctx, "acct-1")
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, cache.Set(ctx, "acct-1", `{"token":"tok"}`, time.Hour))

	got, err = cache.Get(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, `{"token":"tok"}`, got)

	// Keys are namespaced per account.
	assert.True(t, srv.Exists("punchd:session:acct-1"))

	require.NoError(t, cache.Delete(ctx, "acct-1"))
	got, err = cache.Get(ctx, "acct-1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTokenCacheExpiry(t *testing.T) {
	t.Parallel()

	cache, srv := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "acct-1", "state", time.Minute))
	srv.FastForward(2 * time.Minute)

	got, err := cache.Get(ctx, "acct-1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTokenCacheValidation(t *testing.T) {
	t.Parallel()

	cache, _ := newTestCache(t)
	ctx := context.Background()

	got, err := cache.Get(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, got)

	assert.Error(t, cache.Set(ctx, "", "state", time.Hour))
	assert.Error(t, cache.Set(ctx, "acct-1", "state", 0))
	assert.NoError(t, cache.Delete(ctx, ""))
}

func TestTokenCacheCustomPrefix(t *testing.T) {
	t.Parallel()

	srv := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cache := NewTokenCacheWithPrefix(client, "alt:")
	require.NoError(t, cache.Set(context.Background(), "acct-1", "state", time.Hour))
	assert.True(t, srv.Exists("alt:acct-1"))
}
