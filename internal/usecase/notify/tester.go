package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"notify-dispatch/internal/domain/entity"
)

const (
	testMessageTitle   = "Test notification"
	testMessageContent = "This is a connectivity test sent from the notification settings page. No action is required."
	testMessageSource  = "notify-test"

	// TestSucceededMessage is returned when the adapter accepted the test message.
	TestSucceededMessage = "test notification sent"
)

// StoredConfigs looks up the saved config for a key.
type StoredConfigs interface {
	Get(ctx context.Context, key entity.ChannelKey) (*entity.ChannelConfig, error)
}

// TesterOption configures a Tester.
type TesterOption func(*Tester)

// WithStoredConfigs lets Test fill masked secrets (entity.MaskedValue) from
// the stored config with the same key, so a config copied from the list
// endpoint can be tested as is.
func WithStoredConfigs(store StoredConfigs) TesterOption {
	return func(t *Tester) { t.stored = store }
}

// Tester sends a one-off synthetic message through an unsaved config.
// It never writes to the channel store or history.
type Tester struct {
	registry *Registry
	validate func(*entity.ChannelConfig) error
	timeout  time.Duration
	stored   StoredConfigs
}

// NewTester creates a Tester. validate applies the same rules as the channel
// store; timeout bounds the single adapter call.
func NewTester(registry *Registry, validate func(*entity.ChannelConfig) error, timeout time.Duration, opts ...TesterOption) *Tester {
	t := &Tester{registry: registry, validate: validate, timeout: timeout}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Test validates cfg and, when valid, delivers one test message through it.
// The returned message is either a field-specific validation error, the
// delivery diagnostic or TestSucceededMessage.
func (t *Tester) Test(ctx context.Context, cfg *entity.ChannelConfig) (bool, string) {
	if cfg == nil {
		return false, "config is required"
	}
	cfg = t.unmask(ctx, cfg)
	if t.validate != nil {
		if err := t.validate(cfg); err != nil {
			var ve *entity.ValidationError
			if errors.As(err, &ve) {
				return false, ve.Error()
			}
			return false, err.Error()
		}
	}

	adapter, ok := t.registry.Lookup(cfg.Type())
	if !ok {
		return false, fmt.Sprintf("%s %q", ErrNoAdapter, cfg.Type())
	}

	msg := entity.NewMessage(entity.LevelInfo, testMessageTitle, testMessageContent, testMessageSource)

	actx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	err := t.deliver(actx, adapter, msg, cfg)
	if err != nil {
		if errors.Is(actx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("%w: %w", errAttemptTimeout, err)
		}
		diagnostic := diagnose(ctx, err)
		slog.InfoContext(ctx, "test notification failed",
			slog.String("channel", cfg.Key().String()),
			slog.String("error", diagnostic))
		return false, diagnostic
	}

	slog.InfoContext(ctx, "test notification sent",
		slog.String("channel", cfg.Key().String()))
	return true, TestSucceededMessage
}

// unmask returns a copy of cfg with masked secrets taken from the stored
// config. Unsaved configs are returned unchanged.
func (t *Tester) unmask(ctx context.Context, cfg *entity.ChannelConfig) *entity.ChannelConfig {
	if t.stored == nil || cfg.Settings == nil {
		return cfg
	}
	prev, err := t.stored.Get(ctx, cfg.Key())
	if err != nil || prev == nil {
		return cfg
	}
	next := cfg.Clone()
	entity.KeepMaskedSecrets(next.Settings, prev.Settings)
	return next
}

func (t *Tester) deliver(ctx context.Context, adapter Adapter, msg *entity.Message, cfg *entity.ChannelConfig) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()
	return adapter.Deliver(ctx, msg, cfg.Clone())
}
