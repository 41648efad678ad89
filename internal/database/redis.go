package database

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func ConnectRedis(ctx context.Context, addr, password string, db int, maxWait time.Duration, logger *zap.SugaredLogger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	err := retry(ctx, "Redis", maxWait, logger, func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
	if err != nil {
		logger.Errorf("Redis ping failed: %v", err)
		_ = rdb.Close()
		return nil, err
	}

	logger.Infow("Redis connected", "addr", addr)
	return rdb, nil
}
