package redis

import "github.com/redis/go-redis/v9"

// NewRedisClient creates a Redis client for refresh token storage and the
// task queue broker.
func NewRedisClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr})
}
