package auth

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// AttemptTracker counts failed logins per key and reports lockouts.
type AttemptTracker interface {
	Locked(ctx context.Context, key string) (bool, error)
	Fail(ctx context.Context, key string) (int, error)
	Reset(ctx context.Context, key string) error
}

type noopAttempts struct{}

func (noopAttempts) Locked(context.Context, string) (bool, error) { return false, nil }
func (noopAttempts) Fail(context.Context, string) (int, error)    { return 0, nil }
func (noopAttempts) Reset(context.Context, string) error          { return nil }

// RedisAttempts keeps failure counters in Redis with a fixed window that starts
// at the first failure.
type RedisAttempts struct {
	client redis.UniversalClient
	prefix string
	max    int
	window time.Duration
}

// NewRedisAttempts locks a key once max failures happen within window.
func NewRedisAttempts(client redis.UniversalClient, max int, window time.Duration) *RedisAttempts {
	if max <= 0 {
		max = 5
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &RedisAttempts{client: client, prefix: "login_attempts:", max: max, window: window}
}

func (r *RedisAttempts) Locked(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Get(ctx, r.prefix+key).Int()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return n >= r.max, nil
}

func (r *RedisAttempts) Fail(ctx context.Context, key string) (int, error) {
	k := r.prefix + key
	n, err := r.client.Incr(ctx, k).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		if err := r.client.Expire(ctx, k, r.window).Err(); err != nil {
			return int(n), err
		}
	}
	return int(n), nil
}

func (r *RedisAttempts) Reset(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}
