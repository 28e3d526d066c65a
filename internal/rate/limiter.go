package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds verify throttle tuning parameters.
type Config struct {
	Prefix      string
	MaxAttempts int
	Cooldown    time.Duration
}

// Limiter enforces a per-subject budget of failed password verifications
// using Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckVerify returns ErrRateLimited once subject has used its failure budget
// for the current window.
func (l *Limiter) CheckVerify(ctx context.Context, subject string) error {
	count, err := l.redis.Get(ctx, l.verifyKey(subject)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count >= int64(l.config.MaxAttempts) {
		return ErrRateLimited
	}

	return nil
}

// IncrementVerify records a failed verification for subject. It returns
// ErrRateLimited when this failure exhausts the budget.
func (l *Limiter) IncrementVerify(ctx context.Context, subject string) error {
	count, err := l.incrementWithTTL(ctx, l.verifyKey(subject), l.config.Cooldown)
	if err != nil {
		return err
	}
	if count >= int64(l.config.MaxAttempts) {
		return ErrRateLimited
	}

	return nil
}

// ResetVerify clears the failure counter for subject after a successful match.
func (l *Limiter) ResetVerify(ctx context.Context, subject string) error {
	if err := l.redis.Del(ctx, l.verifyKey(subject)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// GetVerifyAttempts returns the current failure count for subject.
// Missing keys return zero.
func (l *Limiter) GetVerifyAttempts(ctx context.Context, subject string) (int, error) {
	count, err := l.redis.Get(ctx, l.verifyKey(subject)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

func (l *Limiter) verifyKey(subject string) string {
	return l.config.Prefix + ":vf:" + subject
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}

// Ping measures a Redis round trip.
func (l *Limiter) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := l.redis.Ping(ctx).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}
