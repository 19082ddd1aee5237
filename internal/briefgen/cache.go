package briefgen

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores generated briefs in redis keyed by payload hash, so an
// unchanged insight never pays for a second model call.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache creates a brief cache.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{client: client, ttl: ttl}
}

func cacheKey(hash string) string { return "brief:" + hash }

// Get returns a cached brief. Missing entries return ok == false.
func (c *Cache) Get(ctx context.Context, hash string) (string, bool, error) {
	text, err := c.client.Get(ctx, cacheKey(hash)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("brief cache get: %w", err)
	}
	return text, true, nil
}

// Set stores a brief for the cache TTL.
func (c *Cache) Set(ctx context.Context, hash, text string) error {
	if err := c.client.Set(ctx, cacheKey(hash), text, c.ttl).Err(); err != nil {
		return fmt.Errorf("brief cache set: %w", err)
	}
	return nil
}
