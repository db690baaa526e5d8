package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	errs "followwatch/pkg/errors"
)

// BackoffStrategy defines the interface for different backoff strategies
type BackoffStrategy interface {
	// NextDelay returns the delay before attempt+1
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff implements exponential backoff with jitter
type ExponentialBackoff struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	// JitterFactor adds randomness, 0.0 to 1.0
	JitterFactor float64
}

// DefaultExponentialBackoff returns a backoff with sensible defaults
func DefaultExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:    1 * time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// NextDelay calculates the next delay with exponential backoff and jitter
func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delay := float64(eb.BaseDelay) * math.Pow(eb.Multiplier, float64(attempt-1))
	if delay > float64(eb.MaxDelay) {
		delay = float64(eb.MaxDelay)
	}
	return jitter(delay, eb.JitterFactor)
}

// ConstantBackoff implements constant delay backoff
type ConstantBackoff struct {
	Delay time.Duration
}

// NextDelay returns a constant delay
func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return cb.Delay
}

// ErrorAware strategies choose a delay from the failure that caused the retry
type ErrorAware interface {
	DelayFor(attempt int, err error) time.Duration
}

// ReasonBackoff backs off harder after rate limiting than after other
// transient failures.
type ReasonBackoff struct {
	RateLimited BackoffStrategy
	Default     BackoffStrategy
}

// NewReasonBackoff scales every strategy from base
func NewReasonBackoff(base time.Duration) *ReasonBackoff {
	return &ReasonBackoff{
		RateLimited: &ExponentialBackoff{
			BaseDelay:    base * 15,
			MaxDelay:     5 * time.Minute,
			Multiplier:   1.5,
			JitterFactor: 0.3,
		},
		Default: &ExponentialBackoff{
			BaseDelay:    base,
			MaxDelay:     base * 30,
			Multiplier:   2.0,
			JitterFactor: 0.2,
		},
	}
}

// NextDelay implements BackoffStrategy using the default strategy
func (rb *ReasonBackoff) NextDelay(attempt int) time.Duration {
	return rb.Default.NextDelay(attempt)
}

// DelayFor implements ErrorAware
func (rb *ReasonBackoff) DelayFor(attempt int, err error) time.Duration {
	if errs.ReasonOf(err) == errs.ReasonRateLimited {
		return rb.RateLimited.NextDelay(attempt)
	}
	return rb.Default.NextDelay(attempt)
}

// Wait waits for the specified duration or until context is cancelled
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func jitter(delay, factor float64) time.Duration {
	if factor > 0 {
		j := delay * factor
		delay += (rand.Float64() * 2 * j) - j
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}
