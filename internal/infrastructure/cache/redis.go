package cache

import (
	"time"

	"github.com/bloom/bloomctl/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
)

// NewRedisClient builds a client for the Redis instance the application uses
// as cache, throttler store and broker. It does not connect until first use.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        cfg.Addr(),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
		MaxRetries:  -1, // the readiness probe retries, not the client
	})
}
