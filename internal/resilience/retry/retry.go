// Package retry re-runs a failing operation with capped exponential backoff
// and jitter.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"net"
	"syscall"
	"time"
)

// Config controls WithBackoff.
type Config struct {
	// MaxAttempts counts every call to fn, the first one included.
	MaxAttempts int

	// InitialDelay is the wait after the first failure.
	InitialDelay time.Duration

	// MaxDelay caps the wait before jitter is added.
	MaxDelay time.Duration

	// Multiplier grows the wait after each further failure.
	Multiplier float64

	// JitterFraction adds up to this share of the wait at random (0 to 1).
	JitterFraction float64

	// Retryable classifies errors; nil means IsRetryable.
	Retryable func(error) bool
}

// DeliveryConfig is used for one channel delivery. Short waits keep a
// dispatch bounded while riding out brief endpoint blips.
func DeliveryConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

// IntakeConfig is used to redispatch a queued message. Every error is
// retried; the queue driver decides what happens once attempts run out.
func IntakeConfig() Config {
	return Config{
		MaxAttempts:    5,
		InitialDelay:   1 * time.Second,
		MaxDelay:       30 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Retryable:      func(error) bool { return true },
	}
}

// ExhaustedError reports that every attempt failed with a retryable error.
type ExhaustedError struct {
	Attempts int
	Err      error // last failure
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// WithBackoff calls fn until it succeeds, fails with a non-retryable error,
// or MaxAttempts is reached. A non-retryable error is returned as is, running
// out of attempts yields an *ExhaustedError and a cancelled ctx stops the wait
// with an error wrapping ctx.Err().
//
// An error with a RetryDelay() time.Duration method (a server Retry-After)
// stretches the wait to at least that long. If the wait would end after the
// ctx deadline, WithBackoff gives up at once with an *ExhaustedError.
func WithBackoff(ctx context.Context, cfg Config, fn func() error) error {
	retryable := cfg.Retryable
	if retryable == nil {
		retryable = IsRetryable
	}
	maxAttempts := max(cfg.MaxAttempts, 1)

	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				slog.DebugContext(ctx, "operation succeeded after retry", slog.Int("attempt", attempt))
			}
			return nil
		}
		if !retryable(err) {
			return err
		}
		if attempt >= maxAttempts {
			return &ExhaustedError{Attempts: attempt, Err: err}
		}

		delay := max(Delay(cfg, attempt), RequestedDelay(err))
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < delay {
			slog.WarnContext(ctx, "retry wait exceeds deadline, giving up",
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.Any("error", err))
			return &ExhaustedError{Attempts: attempt, Err: err}
		}
		slog.WarnContext(ctx, "operation failed, retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", maxAttempts),
			slog.Duration("delay", delay),
			slog.Any("error", err))

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry aborted after %d attempts: %w", attempt, ctx.Err())
		}
	}
}

// RequestedDelay returns the wait err asks for through a RetryDelay method,
// or zero.
func RequestedDelay(err error) time.Duration {
	var d interface{ RetryDelay() time.Duration }
	if errors.As(err, &d) {
		return max(d.RetryDelay(), 0)
	}
	return 0
}

// Delay returns the wait after failed attempt n (1-based):
// InitialDelay * Multiplier^(n-1), capped at MaxDelay, plus jitter.
func Delay(cfg Config, n int) time.Duration {
	multiplier := cfg.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	d := float64(cfg.InitialDelay) * math.Pow(multiplier, float64(n-1))
	if cfg.MaxDelay > 0 && d > float64(cfg.MaxDelay) {
		d = float64(cfg.MaxDelay)
	}
	return addJitter(time.Duration(d), cfg.JitterFraction)
}

// IsRetryable accepts network timeouts, refused or reset connections and
// errors whose Temporary method reports true. Context errors never retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return true
	}

	// adapters mark 5xx, 429 and transient SMTP replies this way
	var tmp interface{ Temporary() bool }
	return errors.As(err, &tmp) && tmp.Temporary()
}

func addJitter(d time.Duration, fraction float64) time.Duration {
	if fraction <= 0 || d <= 0 {
		return d
	}
	fraction = min(fraction, 1.0)
	// #nosec G404 -- jitter does not need a cryptographic source
	return d + time.Duration(rand.Float64()*float64(d)*fraction)
}
