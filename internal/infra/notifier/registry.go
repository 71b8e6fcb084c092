package notifier

import "notify-dispatch/internal/usecase/notify"

// NewRegistry returns a registry holding one adapter per supported channel type.
func NewRegistry(opts Options) *notify.Registry {
	return notify.NewRegistry(
		NewDingTalkAdapter(opts),
		NewFeishuAdapter(opts),
		NewWeChatAdapter(opts),
		NewEmailAdapter(),
		NewWebhookAdapter(opts),
	)
}
