package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Allow checks if a request is allowed under the current rate limit
	Allow() bool
	// Wait blocks until the rate limit allows another request or ctx is done
	Wait(ctx context.Context) error
}

// TokenBucket is a Limiter backed by golang.org/x/time/rate
type TokenBucket struct {
	limiter *rate.Limiter
}

// NewTokenBucket allows perMinute requests per minute with the given burst
func NewTokenBucket(perMinute, burst int) *TokenBucket {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
	}
	return &TokenBucket{limiter: rate.NewLimiter(limit, burst)}
}

// Allow checks if a request can proceed
func (tb *TokenBucket) Allow() bool {
	return tb.limiter.Allow()
}

// Wait blocks until a token is available
func (tb *TokenBucket) Wait(ctx context.Context) error {
	return tb.limiter.Wait(ctx)
}

// Keyed hands out one TokenBucket per key, so each scraper account is
// throttled on its own.
type Keyed struct {
	perMinute int
	burst     int

	mu       sync.Mutex
	limiters map[string]*TokenBucket
}

// NewKeyed creates a keyed limiter where every key gets the same budget
func NewKeyed(perMinute, burst int) *Keyed {
	return &Keyed{
		perMinute: perMinute,
		burst:     burst,
		limiters:  make(map[string]*TokenBucket),
	}
}

// For returns the limiter for key, creating it on first use
func (k *Keyed) For(key string) Limiter {
	k.mu.Lock()
	defer k.mu.Unlock()

	l, ok := k.limiters[key]
	if !ok {
		l = NewTokenBucket(k.perMinute, k.burst)
		k.limiters[key] = l
	}
	return l
}

// Wait blocks on the limiter for key
func (k *Keyed) Wait(ctx context.Context, key string) error {
	return k.For(key).Wait(ctx)
}

// Forget drops the limiter for key
func (k *Keyed) Forget(key string) {
	k.mu.Lock()
	delete(k.limiters, key)
	k.mu.Unlock()
}
