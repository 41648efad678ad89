package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTracker keeps socket ids in <prefix>:conn:<user> sets. The set expires
// after ttl so a crashed process cannot pin a user online forever; live
// sockets refresh it on every connect. An expired set counts as empty, so
// the disconnect that finds it gone is still the last one.
type RedisTracker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisTracker(r *redis.Client, prefix string, ttl time.Duration) *RedisTracker {
	return &RedisTracker{client: r, prefix: prefix, ttl: ttl}
}

func (s *RedisTracker) connKey(userID string) string {
	return fmt.Sprintf("%s:conn:%s", s.prefix, userID)
}

func (s *RedisTracker) Connect(ctx context.Context, userID, socketID string) (bool, error) {
	key := s.connKey(userID)
	var card *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, key, socketID)
		pipe.Expire(ctx, key, s.ttl)
		card = pipe.SCard(ctx, key)
		return nil
	})
	if err != nil {
		return false, err
	}
	return card.Val() == 1, nil
}

func (s *RedisTracker) Disconnect(ctx context.Context, userID, socketID string) (bool, error) {
	key := s.connKey(userID)
	var card *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, key, socketID)
		card = pipe.SCard(ctx, key)
		return nil
	})
	if err != nil {
		return false, err
	}
	return card.Val() == 0, nil
}

func (s *RedisTracker) Online(ctx context.Context, userID string) (bool, error) {
	n, err := s.client.SCard(ctx, s.connKey(userID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
