package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/punchd-io/punchd/internal/core"
)

const (
	defaultHolidayPrefix = "punchd:holiday:"
	defaultHolidayTTL    = 24 * time.Hour
)

// HolidayCache stores published year calendars so every process restart does
// not re-fetch them from the upstream mirror.
type HolidayCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ core.HolidayCache = (*HolidayCache)(nil)

// NewHolidayCache creates a Redis-backed holiday calendar cache with a 24h TTL.
func NewHolidayCache(client redis.UniversalClient) *HolidayCache {
	return &HolidayCache{client: client, prefix: defaultHolidayPrefix, ttl: defaultHolidayTTL}
}

// GetYear returns the cached calendar JSON for the year, or "" when absent.
func (c *HolidayCache) GetYear(ctx context.Context, year int) (string, error) {
	data, err := c.client.Get(ctx, c.key(year)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("redis get: %w", err)
	}
	return data, nil
}

// SetYear stores the calendar JSON for the year.
func (c *HolidayCache) SetYear(ctx context.Context, year int, calendarJSON string) error {
	if calendarJSON == "" {
		return errors.New("calendar payload cannot be empty")
	}
	return c.client.Set(ctx, c.key(year), calendarJSON, c.ttl).Err()
}

func (c *HolidayCache) key(year int) string {
	return fmt.Sprintf("%s%d", c.prefix, year)
}
