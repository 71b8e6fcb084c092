package notifier

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"notify-dispatch/internal/domain/entity"
)

// DingTalk robots accept 20 messages per minute per webhook.
const dingTalkPerMinute = 20

// DingTalkAdapter posts markdown messages to a DingTalk group robot.
type DingTalkAdapter struct {
	client  *http.Client
	limiter *EndpointLimiter
	now     func() time.Time
}

// NewDingTalkAdapter creates a DingTalk adapter.
func NewDingTalkAdapter(opts Options) *DingTalkAdapter {
	return &DingTalkAdapter{
		client:  opts.client(),
		limiter: opts.limiter(dingTalkPerMinute, 5),
		now:     opts.clock(),
	}
}

func (a *DingTalkAdapter) Type() entity.ChannelType { return entity.ChannelDingTalk }

type dingTalkPayload struct {
	MsgType  string           `json:"msgtype"`
	Markdown dingTalkMarkdown `json:"markdown"`
}

type dingTalkMarkdown struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Deliver sends msg to the robot configured in cfg.
func (a *DingTalkAdapter) Deliver(ctx context.Context, msg *entity.Message, cfg *entity.ChannelConfig) error {
	settings, ok := settingsOf[*entity.DingTalkSettings](cfg)
	if !ok {
		return settingsMismatch(entity.ChannelDingTalk, cfg)
	}

	target, err := a.signedURL(settings)
	if err != nil {
		return err
	}

	payload := dingTalkPayload{
		MsgType: "markdown",
		Markdown: dingTalkMarkdown{
			Title: headline(msg),
			Text:  markdownText(msg),
		},
	}

	return send(ctx, entity.ChannelDingTalk, a.limiter, settings.WebhookURL, func(ctx context.Context) error {
		body, err := postJSON(ctx, a.client, "DingTalk", target, payload)
		if err != nil {
			return err
		}
		return checkRobotReply("DingTalk", body)
	})
}

// signedURL appends timestamp and sign query parameters when a secret is set.
func (a *DingTalkAdapter) signedURL(settings *entity.DingTalkSettings) (string, error) {
	if settings.Secret == "" {
		return settings.WebhookURL, nil
	}

	u, err := url.Parse(settings.WebhookURL)
	if err != nil {
		return "", fmt.Errorf("parse DingTalk webhook url: %w", err)
	}

	ms := a.now().UnixMilli()
	q := u.Query()
	q.Set("timestamp", strconv.FormatInt(ms, 10))
	q.Set("sign", dingTalkSign(settings.Secret, ms))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// dingTalkSign computes base64(HMAC-SHA256(secret, "<ms>\n<secret>")).
func dingTalkSign(secret string, ms int64) string {
	stringToSign := fmt.Sprintf("%d\n%s", ms, secret)
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(stringToSign))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// settingsOf extracts the settings variant T from cfg.
func settingsOf[T entity.ChannelSettings](cfg *entity.ChannelConfig) (T, bool) {
	var zero T
	if cfg == nil || cfg.Settings == nil {
		return zero, false
	}
	s, ok := cfg.Settings.(T)
	return s, ok
}
