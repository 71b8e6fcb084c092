package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notify-dispatch/internal/domain/entity"
)

func TestTester_Test(t *testing.T) {
	validate := func(cfg *entity.ChannelConfig) error { return cfg.Validate() }

	t.Run("TC-1: success sends a synthetic info message", func(t *testing.T) {
		var got *entity.Message
		hook := newMockAdapter(entity.ChannelWebhook, nil)
		capture := &capturingAdapter{Adapter: hook, onDeliver: func(m *entity.Message) { got = m }}
		tester := NewTester(NewRegistry(capture), validate, time.Second)

		ok, msg := tester.Test(context.Background(), webhookConfig("draft", false))

		assert.True(t, ok)
		assert.Equal(t, TestSucceededMessage, msg)
		require.NotNil(t, got)
		assert.Equal(t, entity.LevelInfo, got.Level)
		assert.Equal(t, testMessageTitle, got.Title)
		assert.Equal(t, testMessageSource, got.Source)
	})

	t.Run("TC-2: nil config", func(t *testing.T) {
		ok, msg := NewTester(NewRegistry(), validate, time.Second).Test(context.Background(), nil)
		assert.False(t, ok)
		assert.Equal(t, "config is required", msg)
	})

	t.Run("TC-3: invalid config is not delivered", func(t *testing.T) {
		hook := newMockAdapter(entity.ChannelWebhook, nil)
		cfg := &entity.ChannelConfig{Name: "draft", Settings: &entity.WebhookSettings{}}

		ok, msg := NewTester(NewRegistry(hook), validate, time.Second).Test(context.Background(), cfg)

		assert.False(t, ok)
		assert.Contains(t, msg, "validation error on field")
		assert.Zero(t, hook.callCount())
	})

	t.Run("TC-4: adapter error becomes the diagnostic", func(t *testing.T) {
		hook := newMockAdapter(entity.ChannelWebhook, func(context.Context, *entity.ChannelConfig, int) error {
			return errors.New("webhook client error: status 401: bad token")
		})
		ok, msg := NewTester(NewRegistry(hook), validate, time.Second).Test(context.Background(), webhookConfig("draft", true))
		assert.False(t, ok)
		assert.Equal(t, "webhook client error: status 401: bad token", msg)
		assert.Equal(t, 1, hook.callCount(), "a test is never retried")
	})

	t.Run("TC-5: slow adapter times out", func(t *testing.T) {
		hook := newMockAdapter(entity.ChannelWebhook, func(ctx context.Context, _ *entity.ChannelConfig, _ int) error {
			<-ctx.Done()
			return ctx.Err()
		})
		ok, msg := NewTester(NewRegistry(hook), validate, 20*time.Millisecond).Test(context.Background(), webhookConfig("draft", true))
		assert.False(t, ok)
		assert.Equal(t, entity.DiagnosticTimeout, msg)
	})

	t.Run("TC-6: missing adapter", func(t *testing.T) {
		ok, msg := NewTester(NewRegistry(), validate, time.Second).Test(context.Background(), wechatConfig("draft", true))
		assert.False(t, ok)
		assert.Equal(t, `no adapter registered for channel type "wechat"`, msg)
	})

	t.Run("TC-7: panic is reported", func(t *testing.T) {
		hook := newMockAdapter(entity.ChannelWebhook, func(context.Context, *entity.ChannelConfig, int) error {
			panic("boom")
		})
		ok, msg := NewTester(NewRegistry(hook), validate, time.Second).Test(context.Background(), webhookConfig("draft", true))
		assert.False(t, ok)
		assert.Equal(t, "adapter panicked: boom", msg)
	})

	t.Run("TC-8: adapter cannot mutate the caller's config", func(t *testing.T) {
		hook := newMockAdapter(entity.ChannelWebhook, func(_ context.Context, cfg *entity.ChannelConfig, _ int) error {
			cfg.Settings.(*entity.WebhookSettings).URL = "https://evil.example.com"
			return nil
		})
		cfg := webhookConfig("draft", true)
		ok, _ := NewTester(NewRegistry(hook), validate, time.Second).Test(context.Background(), cfg)
		assert.True(t, ok)
		assert.Equal(t, "https://example.com/draft", cfg.Settings.(*entity.WebhookSettings).URL)
	})
}

type configLookup map[entity.ChannelKey]*entity.ChannelConfig

func (l configLookup) Get(_ context.Context, key entity.ChannelKey) (*entity.ChannelConfig, error) {
	if cfg, ok := l[key]; ok {
		return cfg.Clone(), nil
	}
	return nil, errors.New("not found")
}

func TestTester_MaskedSecrets(t *testing.T) {
	validate := func(cfg *entity.ChannelConfig) error { return cfg.Validate() }
	stored := &entity.ChannelConfig{Name: "ops", Enabled: true, Settings: &entity.DingTalkSettings{
		WebhookURL: "https://oapi.dingtalk.com/robot/send?access_token=abc",
		Secret:     "SECreal",
	}}
	lookup := configLookup{stored.Key(): stored}

	tests := []struct {
		name       string
		cfg        *entity.ChannelConfig
		wantSecret string
	}{
		{"TC-1: listed config uses the stored secret", stored.Redacted(), "SECreal"},
		{
			"TC-2: a new secret wins",
			&entity.ChannelConfig{Name: "ops", Settings: &entity.DingTalkSettings{WebhookURL: "https://oapi.dingtalk.com/robot/send?access_token=abc", Secret: "SECnew"}},
			"SECnew",
		},
		{
			"TC-3: unsaved config is tested as given",
			&entity.ChannelConfig{Name: "draft", Settings: &entity.DingTalkSettings{WebhookURL: "https://oapi.dingtalk.com/robot/send?access_token=abc", Secret: entity.MaskedValue}},
			entity.MaskedValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotSecret string
			robot := newMockAdapter(entity.ChannelDingTalk, func(_ context.Context, cfg *entity.ChannelConfig, _ int) error {
				gotSecret = cfg.Settings.(*entity.DingTalkSettings).Secret
				return nil
			})
			tester := NewTester(NewRegistry(robot), validate, time.Second, WithStoredConfigs(lookup))

			ok, _ := tester.Test(context.Background(), tt.cfg)

			assert.True(t, ok)
			assert.Equal(t, tt.wantSecret, gotSecret)
		})
	}

	t.Run("TC-4: caller's config keeps the mask", func(t *testing.T) {
		robot := newMockAdapter(entity.ChannelDingTalk, nil)
		listed := stored.Redacted()
		_, _ = NewTester(NewRegistry(robot), validate, time.Second, WithStoredConfigs(lookup)).Test(context.Background(), listed)
		assert.Equal(t, entity.MaskedValue, listed.Settings.(*entity.DingTalkSettings).Secret)
	})
}

type capturingAdapter struct {
	Adapter
	onDeliver func(*entity.Message)
}

func (c *capturingAdapter) Deliver(ctx context.Context, msg *entity.Message, cfg *entity.ChannelConfig) error {
	c.onDeliver(msg)
	return c.Adapter.Deliver(ctx, msg, cfg)
}
