package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache implements the service.ReportCache interface
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a report cache backed by the redis instance at addr
func NewRedisCache(addr string) *RedisCache {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	return &RedisCache{client: rdb}
}

// Get returns the cached value for key, if present. Connection errors read as
// cache misses so reports fall back to computing from the database.
func (r *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		return "", false
	}
	return val, true
}

// Set stores value under key for the given TTL
func (r *RedisCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// Close releases the underlying client
func (r *RedisCache) Close() error {
	return r.client.Close()
}
