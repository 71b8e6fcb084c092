package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type temporary struct{ msg string }

func (e *temporary) Error() string   { return e.msg }
func (e *temporary) Temporary() bool { return true }

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return false }

var _ net.Error = timeoutErr{}

func fast(attempts int) Config {
	return Config{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
	}
}

func TestWithBackoff(t *testing.T) {
	errBadRequest := errors.New("unexpected status 400")

	tests := []struct {
		name        string
		cfg         Config
		errs        []error // returned in order, nil afterwards
		wantCalls   int
		wantErr     error
		wantExhaust bool
	}{
		{
			name:      "TC-1: first call succeeds",
			cfg:       fast(3),
			wantCalls: 1,
		},
		{
			name:      "TC-2: succeeds on third call",
			cfg:       fast(3),
			errs:      []error{&temporary{"status 502"}, &temporary{"status 503"}},
			wantCalls: 3,
		},
		{
			name:      "TC-3: non-retryable error stops at once",
			cfg:       fast(3),
			errs:      []error{errBadRequest},
			wantCalls: 1,
			wantErr:   errBadRequest,
		},
		{
			name:        "TC-4: attempts run out",
			cfg:         fast(2),
			errs:        []error{&temporary{"a"}, &temporary{"b"}, &temporary{"c"}},
			wantCalls:   2,
			wantExhaust: true,
		},
		{
			name:        "TC-5: zero attempts means one call",
			cfg:         fast(0),
			errs:        []error{&temporary{"a"}},
			wantCalls:   1,
			wantExhaust: true,
		},
		{
			name: "TC-6: custom classifier",
			cfg: func() Config {
				c := fast(3)
				c.Retryable = func(error) bool { return true }
				return c
			}(),
			errs:      []error{errBadRequest},
			wantCalls: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := WithBackoff(context.Background(), tt.cfg, func() error {
				calls++
				if calls <= len(tt.errs) {
					return tt.errs[calls-1]
				}
				return nil
			})

			assert.Equal(t, tt.wantCalls, calls)
			switch {
			case tt.wantExhaust:
				var ex *ExhaustedError
				require.ErrorAs(t, err, &ex)
				assert.Equal(t, tt.wantCalls, ex.Attempts)
				assert.Equal(t, tt.errs[tt.wantCalls-1], ex.Err)
				assert.Contains(t, err.Error(), fmt.Sprintf("gave up after %d attempts", tt.wantCalls))
			case tt.wantErr != nil:
				assert.Same(t, tt.wantErr, err)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestWithBackoff_CancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fast(5)
	cfg.InitialDelay = time.Hour
	cfg.MaxDelay = time.Hour

	calls := 0
	err := WithBackoff(ctx, cfg, func() error {
		calls++
		cancel()
		return &temporary{"status 503"}
	})

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "retry aborted after 1 attempts")
}

type throttled struct{ after time.Duration }

func (e *throttled) Error() string             { return "rate limit exceeded" }
func (e *throttled) Temporary() bool           { return true }
func (e *throttled) RetryDelay() time.Duration { return e.after }

func TestWithBackoff_ServerRequestedDelay(t *testing.T) {
	t.Run("TC-1: waits at least as long as asked", func(t *testing.T) {
		var stamps []time.Time
		err := WithBackoff(context.Background(), fast(2), func() error {
			stamps = append(stamps, time.Now())
			if len(stamps) == 1 {
				return fmt.Errorf("post: %w", &throttled{after: 150 * time.Millisecond})
			}
			return nil
		})

		require.NoError(t, err)
		require.Len(t, stamps, 2)
		assert.GreaterOrEqual(t, stamps[1].Sub(stamps[0]), 150*time.Millisecond)
	})

	t.Run("TC-2: gives up when the wait outlasts the deadline", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		calls := 0
		start := time.Now()
		err := WithBackoff(ctx, fast(3), func() error {
			calls++
			return &throttled{after: time.Minute}
		})

		assert.Equal(t, 1, calls)
		assert.Less(t, time.Since(start), 500*time.Millisecond, "no sleep before giving up")
		var exhausted *ExhaustedError
		require.ErrorAs(t, err, &exhausted)
		assert.Equal(t, 1, exhausted.Attempts)
		assert.Equal(t, "rate limit exceeded", exhausted.Err.Error())
	})
}

func TestRequestedDelay(t *testing.T) {
	assert.Equal(t, 3*time.Second, RequestedDelay(fmt.Errorf("wrapped: %w", &throttled{after: 3 * time.Second})))
	assert.Zero(t, RequestedDelay(&throttled{after: -time.Second}))
	assert.Zero(t, RequestedDelay(errors.New("plain")))
}

func TestDelay(t *testing.T) {
	cfg := Config{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2}

	assert.Equal(t, 100*time.Millisecond, Delay(cfg, 1))
	assert.Equal(t, 200*time.Millisecond, Delay(cfg, 2))
	assert.Equal(t, 800*time.Millisecond, Delay(cfg, 4))
	assert.Equal(t, time.Second, Delay(cfg, 5), "capped")
	assert.Equal(t, time.Second, Delay(cfg, 40), "capped without overflow")

	cfg.Multiplier = 0
	assert.Equal(t, 100*time.Millisecond, Delay(cfg, 3), "multiplier below 1 keeps the delay flat")

	cfg.Multiplier = 2
	cfg.JitterFraction = 0.5
	for i := 0; i < 50; i++ {
		d := Delay(cfg, 2)
		assert.GreaterOrEqual(t, d, 200*time.Millisecond)
		assert.LessOrEqual(t, d, 300*time.Millisecond)
	}
}

func TestAddJitter(t *testing.T) {
	assert.Equal(t, time.Second, addJitter(time.Second, 0))
	assert.Equal(t, time.Duration(0), addJitter(0, 0.5))
	for i := 0; i < 50; i++ {
		d := addJitter(time.Second, 3) // clamped to 1
		assert.GreaterOrEqual(t, d, time.Second)
		assert.LessOrEqual(t, d, 2*time.Second)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"TC-1: nil", nil, false},
		{"TC-2: cancelled", context.Canceled, false},
		{"TC-3: deadline", fmt.Errorf("post: %w", context.DeadlineExceeded), false},
		{"TC-4: net timeout", timeoutErr{}, true},
		{"TC-5: connection refused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true},
		{"TC-6: connection reset", syscall.ECONNRESET, true},
		{"TC-7: temporary", fmt.Errorf("dingtalk: %w", &temporary{"status 503"}), true},
		{"TC-8: plain error", errors.New("errcode 310000: sign not match"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestPresets(t *testing.T) {
	d := DeliveryConfig()
	assert.Equal(t, 3, d.MaxAttempts)
	assert.Nil(t, d.Retryable)

	in := IntakeConfig()
	require.NotNil(t, in.Retryable)
	assert.True(t, in.Retryable(errors.New("anything")))
	assert.Greater(t, in.MaxAttempts, d.MaxAttempts)
}
