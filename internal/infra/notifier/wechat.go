package notifier

import (
	"context"
	"net/http"

	"notify-dispatch/internal/domain/entity"
)

// WeChat Work group robots accept 20 messages per minute.
const weChatPerMinute = 20

// WeChatAdapter posts markdown messages to a WeChat Work group robot.
type WeChatAdapter struct {
	client  *http.Client
	limiter *EndpointLimiter
}

// NewWeChatAdapter creates a WeChat Work adapter.
func NewWeChatAdapter(opts Options) *WeChatAdapter {
	return &WeChatAdapter{
		client:  opts.client(),
		limiter: opts.limiter(weChatPerMinute, 5),
	}
}

func (a *WeChatAdapter) Type() entity.ChannelType { return entity.ChannelWeChat }

type weChatPayload struct {
	MsgType  string         `json:"msgtype"`
	Markdown weChatMarkdown `json:"markdown"`
}

type weChatMarkdown struct {
	Content string `json:"content"`
}

// Deliver sends msg to the robot configured in cfg.
func (a *WeChatAdapter) Deliver(ctx context.Context, msg *entity.Message, cfg *entity.ChannelConfig) error {
	settings, ok := settingsOf[*entity.WeChatSettings](cfg)
	if !ok {
		return settingsMismatch(entity.ChannelWeChat, cfg)
	}

	payload := weChatPayload{
		MsgType:  "markdown",
		Markdown: weChatMarkdown{Content: markdownText(msg)},
	}

	return send(ctx, entity.ChannelWeChat, a.limiter, settings.WebhookURL, func(ctx context.Context) error {
		body, err := postJSON(ctx, a.client, "WeChat", settings.WebhookURL, payload)
		if err != nil {
			return err
		}
		return checkRobotReply("WeChat", body)
	})
}
