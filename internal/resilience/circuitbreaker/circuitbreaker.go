// Package circuitbreaker guards each notification channel with a
// github.com/sony/gobreaker breaker, so a channel that keeps failing is
// skipped instead of slowing every dispatch down.
package circuitbreaker

import (
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// Config holds the settings of one breaker.
type Config struct {
	// Name appears in logs, conventionally "type/name" of the channel.
	Name string

	// MaxRequests is the number of probes let through while half-open.
	MaxRequests uint32

	// Interval resets the closed-state counts; zero never resets them.
	Interval time.Duration

	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration

	// FailureThreshold is the failure ratio that trips the breaker, e.g. 0.6.
	FailureThreshold float64

	// MinRequests is the sample size needed before the ratio is considered.
	MinRequests uint32

	// IsSuccessful decides whether an error counts against the channel.
	// nil means only a nil error is a success.
	IsSuccessful func(err error) bool

	// OnStateChange is called after every transition, in addition to logging.
	OnStateChange func(name string, from, to gobreaker.State)
}

// ChannelConfig returns the settings used for one notification channel:
// trip at 60% failures over at least 5 deliveries within a minute, stay
// open for 30s, then let a single probe through.
func ChannelConfig(name string) Config {
	return Config{
		Name:             name,
		MaxRequests:      1,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

// CircuitBreaker wraps gobreaker.CircuitBreaker for calls that return only an error.
type CircuitBreaker struct {
	breaker *gobreaker.CircuitBreaker
}

// Snapshot is a point-in-time view of a breaker.
type Snapshot struct {
	State               gobreaker.State
	Open                bool
	ConsecutiveFailures uint32
}

// New creates a breaker from cfg.
func New(cfg Config) *CircuitBreaker {
	settings := gobreaker.Settings{
		Name:         cfg.Name,
		MaxRequests:  cfg.MaxRequests,
		Interval:     cfg.Interval,
		Timeout:      cfg.Timeout,
		IsSuccessful: cfg.IsSuccessful,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state changed",
				slog.String("channel", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(name, from, to)
			}
		},
	}
	return &CircuitBreaker{breaker: gobreaker.NewCircuitBreaker(settings)}
}

// Do runs fn unless the breaker rejects the call, in which case fn is not
// called and the error satisfies IsRejected.
func (cb *CircuitBreaker) Do(fn func() error) error {
	_, err := cb.breaker.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return err
}

// Snapshot reports the current state and failure streak.
func (cb *CircuitBreaker) Snapshot() Snapshot {
	state := cb.breaker.State()
	return Snapshot{
		State:               state,
		Open:                state == gobreaker.StateOpen,
		ConsecutiveFailures: cb.breaker.Counts().ConsecutiveFailures,
	}
}

// Name returns the configured name.
func (cb *CircuitBreaker) Name() string {
	return cb.breaker.Name()
}

// IsRejected reports whether err came from an open breaker or from a
// half-open one that already had its probes in flight.
func IsRejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
