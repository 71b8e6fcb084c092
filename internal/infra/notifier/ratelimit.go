package notifier

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter implements token bucket algorithm for rate limiting.
// It keeps a robot endpoint from being sent more than its documented quota.
type RateLimiter struct {
	rate    rate.Limit
	burst   int
	limiter *rate.Limiter
}

// NewRateLimiter creates a new RateLimiter with the specified rate and burst capacity.
//
// The token bucket allows up to 'burst' requests immediately,
// then refills tokens at 'requestsPerSecond' rate.
//
// Example:
//
//	limiter := NewRateLimiter(20.0/60, 5) // 20 req/min with burst of 5
func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	r := rate.Limit(requestsPerSecond)
	return &RateLimiter{
		rate:    r,
		burst:   burst,
		limiter: rate.NewLimiter(r, burst),
	}
}

// Allow blocks until a token is available or the context is canceled.
// A wait that would outlast the ctx deadline fails at once with an error
// wrapping context.DeadlineExceeded.
func (r *RateLimiter) Allow(ctx context.Context) error {
	err := r.limiter.Wait(ctx)
	if err == nil || ctx.Err() != nil {
		return err
	}
	// x/time/rate reports this case without wrapping the context error
	if _, ok := ctx.Deadline(); ok {
		return fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
	}
	return err
}

// EndpointLimiter hands out one RateLimiter per endpoint, so two channels
// pointing at the same robot share its quota.
type EndpointLimiter struct {
	perMinute int
	burst     int

	mu       sync.Mutex
	limiters map[string]*RateLimiter
}

// NewEndpointLimiter creates a limiter allowing perMinute requests per endpoint.
// A non-positive perMinute disables limiting.
func NewEndpointLimiter(perMinute, burst int) *EndpointLimiter {
	if burst < 1 {
		burst = 1
	}
	return &EndpointLimiter{
		perMinute: perMinute,
		burst:     burst,
		limiters:  make(map[string]*RateLimiter),
	}
}

// Wait blocks until endpoint may be called again.
// The time spent waiting is recorded against channelType.
func (e *EndpointLimiter) Wait(ctx context.Context, channelType, endpoint string) error {
	if e == nil || e.perMinute <= 0 {
		return nil
	}

	start := time.Now()
	err := e.limiterFor(endpoint).Allow(ctx)
	if waited := time.Since(start); waited > time.Millisecond {
		recordRateLimitWait(channelType, waited)
	}
	return err
}

func (e *EndpointLimiter) limiterFor(endpoint string) *RateLimiter {
	e.mu.Lock()
	defer e.mu.Unlock()

	l, ok := e.limiters[endpoint]
	if !ok {
		l = NewRateLimiter(float64(e.perMinute)/60, e.burst)
		e.limiters[endpoint] = l
	}
	return l
}
