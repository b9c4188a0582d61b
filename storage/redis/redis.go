package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"courierbot/config"
	"courierbot/pkg/logger"
)

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, cfg config.Config, log logger.ILogger) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Error("failed to connect Redis", logger.Error(err))
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Info("Redis connected")
	return client, nil
}
