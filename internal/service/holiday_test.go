package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punchd-io/punchd/config"
)

func TestHolidayCalendarLookup(t *testing.T) {
	t.Parallel()

	var fetches atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		assert.Equal(t, "/2026.json", r.URL.Path)
		fmt.Fprint(w, `{"year":2026,"days":[
			{"name":"春节","date":"2026-02-17","isOffDay":true},
			{"name":"春节调休","date":"2026-02-14","isOffDay":false}
		]}`)
	}))
	defer server.Close()

	cal := NewHolidayCalendar(HolidayOptions{
		Config: config.RemoteConfig{HolidayURL: server.URL + "/{year}.json"},
		Logger: slog.New(slog.DiscardHandler),
	})

	ctx := context.Background()

	// Statutory holiday on a Tuesday.
	off, err := cal.IsHoliday(ctx, time.Date(2026, time.February, 17, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, off)

	// Saturday swapped into a working day.
	off, err = cal.IsHoliday(ctx, time.Date(2026, time.February, 14, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, off)

	// Ordinary weekend, not in the calendar.
	off, err = cal.IsHoliday(ctx, time.Date(2026, time.February, 21, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, off)

	// Ordinary Wednesday.
	off, err = cal.IsHoliday(ctx, time.Date(2026, time.February, 25, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, off)

	// The year is fetched once and cached.
	assert.Equal(t, int32(1), fetches.Load())
}

func TestHolidayCalendarWithoutURL(t *testing.T) {
	t.Parallel()

	cal := NewHolidayCalendar(HolidayOptions{Logger: slog.New(slog.DiscardHandler)})

	off, err := cal.IsHoliday(context.Background(), time.Date(2026, time.March, 7, 9, 0, 0, 0, time.UTC)) // Saturday
	require.NoError(t, err)
	assert.True(t, off)

	off, err = cal.IsHoliday(context.Background(), time.Date(2026, time.March, 4, 9, 0, 0, 0, time.UTC)) // Wednesday
	require.NoError(t, err)
	assert.False(t, off)
}

type mapHolidayCache struct {
	years map[int]string
}

func (c *mapHolidayCache) GetYear(_ context.Context, year int) (string, error) {
	return c.years[year], nil
}

func (c *mapHolidayCache) SetYear(_ context.Context, year int, calendarJSON string) error {
	c.years[year] = calendarJSON
	return nil
}

func TestHolidayCalendarSharedCache(t *testing.T) {
	t.Parallel()

	var fetches atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fetches.Add(1)
		fmt.Fprint(w, `{"year":2026,"days":[{"name":"春节","date":"2026-02-17","isOffDay":true}]}`)
	}))
	defer server.Close()

	cache := &mapHolidayCache{years: map[int]string{}}
	opts := HolidayOptions{
		Config: config.RemoteConfig{HolidayURL: server.URL + "/{year}.json"},
		Logger: slog.New(slog.DiscardHandler),
		Cache:  cache,
	}

	ctx := context.Background()
	day := time.Date(2026, time.February, 17, 9, 0, 0, 0, time.UTC)

	off, err := NewHolidayCalendar(opts).IsHoliday(ctx, day)
	require.NoError(t, err)
	assert.True(t, off)
	assert.Contains(t, cache.years[2026], "2026-02-17")

	// A fresh instance, as after a restart, answers from the cache.
	off, err = NewHolidayCalendar(opts).IsHoliday(ctx, day)
	require.NoError(t, err)
	assert.True(t, off)
	assert.Equal(t, int32(1), fetches.Load())
}

func TestHolidayCalendarUpstreamError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cal := NewHolidayCalendar(HolidayOptions{
		Config: config.RemoteConfig{HolidayURL: server.URL + "/{year}.json"},
		Logger: slog.New(slog.DiscardHandler),
	})

	_, err := cal.IsHoliday(context.Background(), time.Date(2026, time.March, 4, 9, 0, 0, 0, time.UTC))
	assert.Error(t, err)
}
