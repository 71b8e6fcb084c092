package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"notify-dispatch/internal/domain/entity"
)

// WebhookAdapter sends the message as JSON to an arbitrary HTTP endpoint.
type WebhookAdapter struct {
	client  *http.Client
	limiter *EndpointLimiter
}

// NewWebhookAdapter creates a generic webhook adapter. Generic endpoints have
// no published quota, so limiting is only applied when opts.RatePerMinute > 0.
func NewWebhookAdapter(opts Options) *WebhookAdapter {
	return &WebhookAdapter{
		client:  opts.client(),
		limiter: opts.limiter(0, 5),
	}
}

func (a *WebhookAdapter) Type() entity.ChannelType { return entity.ChannelWebhook }

// Deliver sends msg using the configured method and headers. GET requests
// carry the message fields as query parameters; every other method sends
// the JSON encoded message as the body.
func (a *WebhookAdapter) Deliver(ctx context.Context, msg *entity.Message, cfg *entity.ChannelConfig) error {
	settings, ok := settingsOf[*entity.WebhookSettings](cfg)
	if !ok {
		return settingsMismatch(entity.ChannelWebhook, cfg)
	}

	req, err := buildWebhookRequest(msg, settings)
	if err != nil {
		return err
	}

	return send(ctx, entity.ChannelWebhook, a.limiter, settings.URL, func(ctx context.Context) error {
		_, err := do(ctx, a.client, req)
		return err
	})
}

func buildWebhookRequest(msg *entity.Message, settings *entity.WebhookSettings) (request, error) {
	req := request{
		service: "webhook",
		method:  settings.EffectiveMethod(),
		url:     settings.URL,
		headers: settings.Headers,
	}

	if req.method == http.MethodGet {
		u, err := url.Parse(settings.URL)
		if err != nil {
			return request{}, fmt.Errorf("parse webhook url: %w", err)
		}
		q := u.Query()
		q.Set("id", msg.ID)
		q.Set("level", msg.Level)
		q.Set("title", msg.Title)
		q.Set("content", msg.Content)
		q.Set("source", msg.Source)
		q.Set("timestamp", msg.Timestamp.UTC().Format(time.RFC3339Nano))
		u.RawQuery = q.Encode()
		req.url = u.String()
		return req, nil
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return request{}, fmt.Errorf("marshal webhook payload: %w", err)
	}
	req.body = data
	return req, nil
}
