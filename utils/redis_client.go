package utils

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/keyshelf/keyshelf/config"
)

var (
	redisClient *redis.Client
	redisOnce   sync.Once
)

// redisOptions sizes the pool for the cache-aside workload: short bursts of
// small reads on the category endpoints, never long-held connections.
func redisOptions(cfg config.AppConfig) *redis.Options {
	return &redis.Options{
		Addr:         net.JoinHostPort(cfg.RedisHost, strconv.Itoa(cfg.RedisPort)),
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// GetRedis returns the shared Redis client, connecting lazily on first use.
// Redis is optional here: callers treat every failure as a cache miss, so an
// unreachable server degrades to database-only reads instead of erroring.
func GetRedis() *redis.Client {
	redisOnce.Do(func() {
		redisClient = redis.NewClient(redisOptions(config.Get()))

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := redisClient.Ping(ctx).Err(); err != nil && Sugar != nil {
			Sugar.Warnf("redis unreachable, caching disabled until it recovers: %v", err)
		}
	})
	return redisClient
}
