package main

import (
	"context"
	"fmt"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// connectRedis returns a client that answered PING, retrying with exponential backoff. With
// embedded set it starts an in-process miniredis instead; its data is lost on exit.
func connectRedis(ctx context.Context, cfg *appConfig, logger *zap.Logger) (redis.UniversalClient, func(), error) {
	addr := cfg.Redis.Addr
	var mr *miniredis.Miniredis
	if cfg.Redis.Embedded {
		mr = miniredis.NewMiniRedis()
		if err := mr.Start(); err != nil {
			return nil, nil, fmt.Errorf("start embedded redis: %w", err)
		}
		addr = mr.Addr()
		logger.Warn("using embedded redis; sessions do not survive restarts", zap.String("addr", addr))
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{addr},
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	cleanup := func() {
		_ = client.Close()
		if mr != nil {
			mr.Close()
		}
	}

	backoff := retry.NewExponential(100 * time.Millisecond)
	backoff = retry.WithCappedDuration(2*time.Second, backoff)
	backoff = retry.WithMaxRetries(cfg.Redis.ConnectRetries, backoff)

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("redis not ready", zap.String("addr", addr), zap.Error(err))
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}

	return client, cleanup, nil
}
