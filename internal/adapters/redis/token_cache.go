// Package redis provides Redis-backed adapters.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/punchd-io/punchd/internal/core"
)

const defaultTokenPrefix = "punchd:session:"

// TokenCache stores serialized remote session state per account so runs can
// reuse a live platform token instead of logging in (and solving a captcha)
// every time.
type TokenCache struct {
	client redis.UniversalClient
	prefix string
}

var _ core.TokenCache = (*TokenCache)(nil)

// NewTokenCache creates a Redis-backed token cache.
func NewTokenCache(client redis.UniversalClient) *TokenCache {
	return &TokenCache{client: client, prefix: defaultTokenPrefix}
}

// NewTokenCacheWithPrefix creates a token cache with a custom key prefix.
func NewTokenCacheWithPrefix(client redis.UniversalClient, prefix string) *TokenCache {
	return &TokenCache{client: client, prefix: prefix}
}

// Get returns the cached session JSON for the account, or "" when absent.
func (c *TokenCache) Get(ctx context.Context, accountID string) (string, error) {
	if accountID == "" {
		return "", nil
	}
	data, err := c.client.Get(ctx, c.prefix+accountID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("redis get: %w", err)
	}
	return data, nil
}

// Set stores the session JSON with the given TTL.
func (c *TokenCache) Set(ctx context.Context, accountID, sessionJSON string, ttl time.Duration) error {
	if accountID == "" {
		return errors.New("account id cannot be empty")
	}
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}
	return c.client.Set(ctx, c.prefix+accountID, sessionJSON, ttl).Err()
}

// Delete drops the cached session, forcing a fresh login on the next run.
func (c *TokenCache) Delete(ctx context.Context, accountID string) error {
	if accountID == "" {
		return nil
	}
	return c.client.Del(ctx, c.prefix+accountID).Err()
}
