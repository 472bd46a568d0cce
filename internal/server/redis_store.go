package server

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisStore implements tokenStore with a fixed-window counter per key. The
// first INCR in a window also sets the expiry, so the window starts at the
// first attempt and the counter disappears on its own.
type redisStore struct {
	client  redis.UniversalClient
	timeout time.Duration
}

func newRedisStore(addr, password string, timeout time.Duration) *redisStore {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
		MaxRetries:   2,
	})
	return &redisStore{client: client, timeout: timeout}
}

func newRedisStoreWithClient(client redis.UniversalClient, timeout time.Duration) *redisStore {
	return &redisStore{client: client, timeout: timeout}
}

func (s *redisStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	if limit <= 0 {
		return true, 0, nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	pipe := s.client.TxPipeline()
	count := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, err
	}
	if count.Val() <= int64(limit) {
		return true, 0, nil
	}

	retryAfter, err := s.client.TTL(ctx, key).Result()
	if err != nil || retryAfter < 0 {
		retryAfter = window
	}
	return false, retryAfter, nil
}

func (s *redisStore) Close() error {
	return s.client.Close()
}
