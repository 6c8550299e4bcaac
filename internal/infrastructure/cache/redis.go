package cache

import (
	"context"
	"fmt"
	"time"

	"atmledger/internal/config"

	"github.com/go-redis/redis/v8"
)

// NewRedis connects to redis and verifies the connection with a PING.
func NewRedis(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Addr(), err)
	}
	return client, nil
}
