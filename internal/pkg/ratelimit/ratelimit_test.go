package ratelimit

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChallengeLimiter_NilClientFailsOpen(t *testing.T) {
	l := NewChallengeLimiter(nil, 1, time.Minute)
	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow(context.Background(), "g1", "u1"))
	}

	var nilLimiter *ChallengeLimiter
	assert.True(t, nilLimiter.Allow(context.Background(), "g1", "u1"))
}

func TestChallengeLimiter_UnreachableRedisFailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	l := NewChallengeLimiter(client, 1, time.Minute)
	assert.True(t, l.Allow(context.Background(), "g1", "u1"))
	assert.True(t, l.Allow(context.Background(), "g1", "u1"))
}

func TestNewClient_EmptyAddrDisables(t *testing.T) {
	c, err := NewClient(context.Background(), "", "", 0)
	require.NoError(t, err)
	assert.Nil(t, c)
}

// Integration-style test: runs only if REDIS_ADDR env is set.
func TestChallengeLimiter_RedisIntegration(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set; skipping integration test")
	}
	db := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			db = n
		}
	}

	ctx := context.Background()
	client, err := NewClient(ctx, addr, os.Getenv("REDIS_PASSWORD"), db)
	require.NoError(t, err)
	defer client.Close()

	l := NewChallengeLimiter(client, 2, 2*time.Second)
	user := uuid.NewString()

	assert.True(t, l.Allow(ctx, "g1", user))
	assert.True(t, l.Allow(ctx, "g1", user))
	assert.False(t, l.Allow(ctx, "g1", user))
	assert.True(t, l.Allow(ctx, "g2", user), "limits are per community")

	ttl, err := client.TTL(ctx, l.key("g1", user)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0), "window expiry must be set with the counter")
	assert.LessOrEqual(t, ttl, 2*time.Second, "later attempts must not extend the window")

	require.Eventually(t, func() bool { return l.Allow(ctx, "g1", user) }, 5*time.Second, 100*time.Millisecond)
}
