package presence

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRedisTracker needs a reachable server in REDIS_TEST_ADDR.
func newTestRedisTracker(t *testing.T) (*RedisTracker, *redis.Client) {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	require.NoError(t, client.Ping(context.Background()).Err())
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisTracker(client, "chat_test_"+uuid.NewString(), time.Minute), client
}

func TestRedisTrackerFirstAndLast(t *testing.T) {
	ctx := context.Background()
	tr, _ := newTestRedisTracker(t)

	first, err := tr.Connect(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.True(t, first)
	first, err = tr.Connect(ctx, "u1", "s2")
	require.NoError(t, err)
	assert.False(t, first)

	last, err := tr.Disconnect(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.False(t, last)
	last, err = tr.Disconnect(ctx, "u1", "s2")
	require.NoError(t, err)
	assert.True(t, last)

	online, err := tr.Online(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, online)
}

func TestRedisTrackerExpiredSetIsLastDisconnect(t *testing.T) {
	ctx := context.Background()
	tr, client := newTestRedisTracker(t)

	_, err := tr.Connect(ctx, "u1", "s1")
	require.NoError(t, err)
	require.NoError(t, client.Del(ctx, tr.connKey("u1")).Err())

	last, err := tr.Disconnect(ctx, "u1", "s1")
	require.NoError(t, err)
	assert.True(t, last)
}
