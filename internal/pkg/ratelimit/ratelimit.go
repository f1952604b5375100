// Package ratelimit implements a redis fixed-window limiter for challenge creation.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ChallengeLimiter counts challenges per user per window. A nil client or a
// redis error lets the request through.
type ChallengeLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// NewClient opens a redis client for addr. An empty addr returns nil, which
// disables limiting.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	if addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// NewChallengeLimiter creates a limiter. limit <= 0 disables limiting.
func NewChallengeLimiter(client *redis.Client, limit int, window time.Duration) *ChallengeLimiter {
	return &ChallengeLimiter{client: client, limit: limit, window: window}
}

// Allow records one attempt for the user and reports whether it is within the
// limit. The counter and its window expiry are written in one MULTI so a key
// never outlives its window.
func (l *ChallengeLimiter) Allow(ctx context.Context, guildID, userID string) bool {
	if l == nil || l.client == nil || l.limit <= 0 {
		return true
	}

	key := l.key(guildID, userID)
	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, l.window)
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Challenge rate limiter unavailable, allowing")
		return true
	}
	return incr.Val() <= int64(l.limit)
}

func (l *ChallengeLimiter) key(guildID, userID string) string {
	return "rps_rl:" + guildID + ":" + userID + ":" + strconv.FormatInt(int64(l.window.Seconds()), 10)
}
