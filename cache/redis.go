package cache

import (
	"context"
	"fmt"
	"time"

	"cuebase/config"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the global Redis client. Nil when the cache is disabled.
var RedisClient *redis.Client

// Connect initializes the Redis connection.
func Connect(cfg *config.Config) error {
	RedisClient = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := RedisClient.Ping(ctx).Result(); err != nil {
		RedisClient = nil
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func Close() error {
	if RedisClient != nil {
		return RedisClient.Close()
	}
	return nil
}
