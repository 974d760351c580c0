package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimitStore keeps fixed-window request counters in Redis.
type RateLimitStore struct {
	client *redis.Client
	prefix string
}

func NewRateLimitStore(client *redis.Client, prefix string) *RateLimitStore {
	return &RateLimitStore{client: client, prefix: prefix}
}

// Hit counts one request for key and returns the count so far in the current window
// together with the time left until the window resets.
func (s *RateLimitStore) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	redisKey := s.prefix + key

	count, err := s.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	// The first hit opens the window.
	if count == 1 {
		if err := s.client.Expire(ctx, redisKey, window).Err(); err != nil {
			return count, window, fmt.Errorf("failed to set rate limit expiry: %w", err)
		}
		return count, window, nil
	}

	ttl, err := s.client.TTL(ctx, redisKey).Result()
	if err != nil {
		return count, window, fmt.Errorf("failed to read rate limit ttl: %w", err)
	}
	if ttl < 0 {
		// A previous Expire was lost; reopen the window rather than block forever.
		if err := s.client.Expire(ctx, redisKey, window).Err(); err != nil {
			return count, window, fmt.Errorf("failed to set rate limit expiry: %w", err)
		}
		ttl = window
	}
	return count, ttl, nil
}
