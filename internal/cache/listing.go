// Package cache keeps the rendered GET /activities body in Redis. The
// registry stays the source of truth. Entries are keyed by registry version,
// so a stored body always describes exactly one registry state.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const ListingKey = "activities:list"

type ListingCache struct {
	client     redis.Cmdable
	ttl        time.Duration
	instanceID string
}

// NewListingCache scopes keys to instanceID so several processes, each with
// its own in-memory registry, can share one Redis.
func NewListingCache(client redis.Cmdable, ttl time.Duration, instanceID string) *ListingCache {
	return &ListingCache{client: client, ttl: ttl, instanceID: instanceID}
}

// Key returns the Redis key for the listing at version.
func (c *ListingCache) Key(version uint64) string {
	return fmt.Sprintf("%s:%s:%d", ListingKey, c.instanceID, version)
}

// Get returns the cached body for version. A miss is (nil, false, nil).
func (c *ListingCache) Get(ctx context.Context, version uint64) ([]byte, bool, error) {
	key := c.Key(version)
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return val, true, nil
}

func (c *ListingCache) Set(ctx context.Context, version uint64, body []byte) error {
	key := c.Key(version)
	if err := c.client.Set(ctx, key, body, c.ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Invalidate drops the entry for a version that is no longer current.
func (c *ListingCache) Invalidate(ctx context.Context, version uint64) error {
	key := c.Key(version)
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}
