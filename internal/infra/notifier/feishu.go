package notifier

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"notify-dispatch/internal/domain/entity"
)

// Feishu custom bots accept 100 messages per minute.
const feishuPerMinute = 100

// FeishuAdapter posts text messages to a Feishu (Lark) custom bot.
type FeishuAdapter struct {
	client  *http.Client
	limiter *EndpointLimiter
	now     func() time.Time
}

// NewFeishuAdapter creates a Feishu adapter.
func NewFeishuAdapter(opts Options) *FeishuAdapter {
	return &FeishuAdapter{
		client:  opts.client(),
		limiter: opts.limiter(feishuPerMinute, 5),
		now:     opts.clock(),
	}
}

func (a *FeishuAdapter) Type() entity.ChannelType { return entity.ChannelFeishu }

type feishuPayload struct {
	Timestamp string        `json:"timestamp,omitempty"`
	Sign      string        `json:"sign,omitempty"`
	MsgType   string        `json:"msg_type"`
	Content   feishuContent `json:"content"`
}

type feishuContent struct {
	Text string `json:"text"`
}

// feishuReply covers both the current {code,msg} and the legacy
// {StatusCode,StatusMessage} response shapes.
type feishuReply struct {
	Code          *int   `json:"code"`
	Msg           string `json:"msg"`
	StatusCode    *int   `json:"StatusCode"`
	StatusMessage string `json:"StatusMessage"`
}

// Deliver sends msg to the bot configured in cfg.
func (a *FeishuAdapter) Deliver(ctx context.Context, msg *entity.Message, cfg *entity.ChannelConfig) error {
	settings, ok := settingsOf[*entity.FeishuSettings](cfg)
	if !ok {
		return settingsMismatch(entity.ChannelFeishu, cfg)
	}

	payload := feishuPayload{
		MsgType: "text",
		Content: feishuContent{Text: truncateText(plainText(msg), maxRobotContentLength, truncationSuffix)},
	}
	if settings.Secret != "" {
		ts := a.now().Unix()
		sign, err := feishuSign(settings.Secret, ts)
		if err != nil {
			return err
		}
		payload.Timestamp = strconv.FormatInt(ts, 10)
		payload.Sign = sign
	}

	return send(ctx, entity.ChannelFeishu, a.limiter, settings.WebhookURL, func(ctx context.Context) error {
		body, err := postJSON(ctx, a.client, "Feishu", settings.WebhookURL, payload)
		if err != nil {
			return err
		}
		return checkFeishuReply(body)
	})
}

func checkFeishuReply(body []byte) error {
	var reply feishuReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return fmt.Errorf("feishu returned non-JSON response: %s", truncateText(string(body), maxBodyInError, "..."))
	}
	switch {
	case reply.Code != nil && *reply.Code != 0:
		return &APIError{Service: "Feishu", Code: *reply.Code, Message: reply.Msg}
	case reply.Code != nil:
		return nil
	case reply.StatusCode != nil && *reply.StatusCode != 0:
		return &APIError{Service: "Feishu", Code: *reply.StatusCode, Message: reply.StatusMessage}
	case reply.StatusCode != nil:
		return nil
	}
	return fmt.Errorf("feishu response missing code: %s", truncateText(string(body), maxBodyInError, "..."))
}

// feishuSign computes base64(HMAC-SHA256(key="<ts>\n<secret>", msg=empty)).
func feishuSign(secret string, ts int64) (string, error) {
	stringToSign := fmt.Sprintf("%d\n%s", ts, secret)
	h := hmac.New(sha256.New, []byte(stringToSign))
	if _, err := h.Write(nil); err != nil {
		return "", fmt.Errorf("sign Feishu payload: %w", err)
	}
	return base64.StdEncoding.EncodeToString(h.Sum(nil)), nil
}
