package tokencache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const tokenKeyPrefix = "sip2:token:"

// RedisCache shares backend tokens across gateway instances. Expiry is
// enforced by Redis key TTL.
type RedisCache struct {
	client *redis.Client
	// expirySlack shortens the TTL so a token is never served right at
	// its expiry.
	expirySlack time.Duration
}

// NewRedisCache constructs a Redis-backed token cache.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client, expirySlack: 30 * time.Second}
}

func (c *RedisCache) Get(ctx context.Context, tenant string) (string, bool, error) {
	token, err := c.client.Get(ctx, tokenKeyPrefix+tenant).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return token, true, nil
}

func (c *RedisCache) Set(ctx context.Context, tenant, token string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt) - c.expirySlack
	if ttl <= 0 {
		return nil
	}
	return c.client.Set(ctx, tokenKeyPrefix+tenant, token, ttl).Err()
}
