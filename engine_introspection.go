package goScrypt

import (
	"context"
	"fmt"
	"time"
)

// HealthStatus is an on-demand backend health result.
type HealthStatus struct {
	ThrottleConfigured bool
	RedisAvailable     bool
	RedisLatency       time.Duration
}

// Health pings the throttle backend. Engines without throttling report a
// zero HealthStatus.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	if e == nil || e.limiter == nil {
		return HealthStatus{}
	}

	latency, err := e.limiter.Ping(ctx)
	return HealthStatus{
		ThrottleConfigured: true,
		RedisAvailable:     err == nil,
		RedisLatency:       latency,
	}
}

// GetVerifyAttempts returns the failed verification count of subject in the
// current window.
func (e *Engine) GetVerifyAttempts(ctx context.Context, subject string) (int, error) {
	if e == nil || e.limiter == nil {
		return 0, ErrEngineNotInitialized
	}
	if subject == "" {
		return 0, nil
	}

	n, err := e.limiter.GetVerifyAttempts(ctx, subject)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrThrottleUnavailable, err)
	}
	return n, nil
}

// ResetVerifyAttempts clears the throttle counter of subject, for example
// after an out-of-band password reset.
func (e *Engine) ResetVerifyAttempts(ctx context.Context, subject string) error {
	if e == nil || e.limiter == nil {
		return ErrEngineNotInitialized
	}
	if err := e.limiter.ResetVerify(ctx, subject); err != nil {
		return fmt.Errorf("%w: %w", ErrThrottleUnavailable, err)
	}
	return nil
}
