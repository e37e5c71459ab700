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

func newTestHolidayCache(t *testing.T) (*HolidayCache, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewHolidayCache(client), srv
}

func TestHolidayCacheRoundTrip(t *testing.T) {
	t.Parallel()

	cache, srv := newTestHolidayCache(t)
	ctx := context.Background()

	got, err := cache.GetYear(ctx, 2026)
	require.NoError(t, err)
	assert.Empty(t, got)

	payload := `{"year":2026,"days":[{"date":"2026-02-17","isOffDay":true}]}`
	require.NoError(t, cache.SetYear(ctx, 2026, payload))

	got, err = cache.GetYear(ctx, 2026)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.True(t, srv.Exists("punchd:holiday:2026"))

	// Years are independent keys.
	got, err = cache.GetYear(ctx, 2027)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestHolidayCacheExpiry(t *testing.T) {
	t.Parallel()

	cache, srv := newTestHolidayCache(t)
	ctx := context.Background()

	require.NoError(t, cache.SetYear(ctx, 2026, `{"days":[]}`))
	srv.FastForward(25 * time.Hour)

	got, err := cache.GetYear(ctx, 2026)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestHolidayCacheRejectsEmptyPayload(t *testing.T) {
	t.Parallel()

	cache, _ := newTestHolidayCache(t)
	assert.Error(t, cache.SetYear(context.Background(), 2026, ""))
}
