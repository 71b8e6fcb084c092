// Package notifier implements the channel adapters that deliver a notification
// message to DingTalk, Feishu, WeChat Work, SMTP and generic webhook endpoints.
//
// Every adapter exposes the same two methods:
//
//	Type() entity.ChannelType
//	Deliver(ctx context.Context, msg *entity.Message, cfg *entity.ChannelConfig) error
//
// A nil error means the remote side accepted the message. Any other error is a
// failed delivery and its text is the diagnostic stored in history. Adapters do
// not retry; retries, timeouts and circuit breaking belong to the dispatch engine.
// Errors that are worth retrying implement Temporary() bool.
package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"notify-dispatch/internal/domain/entity"
)

// DefaultHTTPTimeout is a backstop; the dispatch engine normally cancels earlier.
const DefaultHTTPTimeout = 30 * time.Second

// Options configures the HTTP based adapters.
type Options struct {
	// HTTPClient is used for every outbound request. Nil selects a client
	// with DefaultHTTPTimeout.
	HTTPClient *http.Client

	// Now returns the current time; signatures depend on it.
	Now func() time.Time

	// RatePerMinute overrides the per-endpoint quota. Zero keeps the
	// adapter default, a negative value disables limiting.
	RatePerMinute int
}

func (o Options) client() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	return &http.Client{Timeout: DefaultHTTPTimeout}
}

func (o Options) clock() func() time.Time {
	if o.Now != nil {
		return o.Now
	}
	return time.Now
}

func (o Options) limiter(defaultPerMinute, burst int) *EndpointLimiter {
	perMinute := defaultPerMinute
	if o.RatePerMinute != 0 {
		perMinute = o.RatePerMinute
	}
	return NewEndpointLimiter(perMinute, burst)
}

// send waits for the endpoint quota, runs call and records the outcome.
func send(ctx context.Context, t entity.ChannelType, limiter *EndpointLimiter, endpoint string, call func(context.Context) error) error {
	if err := limiter.Wait(ctx, string(t), endpoint); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	start := time.Now()
	err := call(ctx)
	observe(string(t), start, err)

	if rateErr, ok := IsRateLimited(err); ok {
		slog.WarnContext(ctx, "endpoint rate limited the delivery",
			slog.String("channel_type", string(t)),
			slog.Duration("retry_after", rateErr.RetryAfter))
	} else if err != nil {
		slog.DebugContext(ctx, "channel delivery failed",
			slog.String("channel_type", string(t)),
			slog.Duration("duration", time.Since(start)),
			slog.Any("error", err))
	}
	return err
}

func settingsMismatch(want entity.ChannelType, cfg *entity.ChannelConfig) error {
	if cfg == nil {
		return fmt.Errorf("%w: want %s, got no config", ErrSettingsMismatch, want)
	}
	return fmt.Errorf("%w: want %s, got %q", ErrSettingsMismatch, want, cfg.Type())
}
