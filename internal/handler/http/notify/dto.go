package notify

import (
	"time"

	"notify-dispatch/internal/domain/entity"
	notifyUC "notify-dispatch/internal/usecase/notify"
)

// ConfigDTO is the flat channel config shape used by the admin UI. Only the
// fields belonging to Type are read or written.
type ConfigDTO struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Enabled bool   `json:"enabled"`

	DingTalkWebhook string `json:"dingtalk_webhook,omitempty"`
	DingTalkSecret  string `json:"dingtalk_secret,omitempty"`

	FeishuWebhook string `json:"feishu_webhook,omitempty"`
	FeishuSecret  string `json:"feishu_secret,omitempty"`

	WeChatWebhook string `json:"wechat_webhook,omitempty"`

	SMTPHost     string   `json:"smtp_host,omitempty"`
	SMTPPort     int      `json:"smtp_port,omitempty"`
	SMTPUser     string   `json:"smtp_user,omitempty"`
	SMTPPassword string   `json:"smtp_password,omitempty"`
	SMTPFrom     string   `json:"smtp_from,omitempty"`
	SMTPSecurity string   `json:"smtp_security,omitempty"`
	EmailTo      []string `json:"email_to,omitempty"`

	WebhookURL     string            `json:"webhook_url,omitempty"`
	WebhookMethod  string            `json:"webhook_method,omitempty"`
	WebhookHeaders map[string]string `json:"webhook_headers,omitempty"`
}

// fromDTO converts the wire shape into a ChannelConfig. An unknown type is a
// validation error on the "type" field.
func fromDTO(d ConfigDTO) (*entity.ChannelConfig, error) {
	t, err := entity.ParseChannelType(d.Type)
	if err != nil {
		return nil, err
	}

	var settings entity.ChannelSettings
	switch t {
	case entity.ChannelDingTalk:
		settings = &entity.DingTalkSettings{WebhookURL: d.DingTalkWebhook, Secret: d.DingTalkSecret}
	case entity.ChannelFeishu:
		settings = &entity.FeishuSettings{WebhookURL: d.FeishuWebhook, Secret: d.FeishuSecret}
	case entity.ChannelWeChat:
		settings = &entity.WeChatSettings{WebhookURL: d.WeChatWebhook}
	case entity.ChannelEmail:
		settings = &entity.EmailSettings{
			Host:     d.SMTPHost,
			Port:     d.SMTPPort,
			Username: d.SMTPUser,
			Password: d.SMTPPassword,
			From:     d.SMTPFrom,
			To:       d.EmailTo,
			Security: entity.EmailSecurity(d.SMTPSecurity),
		}
	case entity.ChannelWebhook:
		settings = &entity.WebhookSettings{URL: d.WebhookURL, Method: d.WebhookMethod, Headers: d.WebhookHeaders}
	}

	return &entity.ChannelConfig{Name: d.Name, Enabled: d.Enabled, Settings: settings}, nil
}

// toDTO converts a config for output. Secrets are always masked.
func toDTO(cfg *entity.ChannelConfig) ConfigDTO {
	red := cfg.Redacted()
	d := ConfigDTO{Name: red.Name, Type: string(red.Type()), Enabled: red.Enabled}

	switch s := red.Settings.(type) {
	case *entity.DingTalkSettings:
		d.DingTalkWebhook, d.DingTalkSecret = s.WebhookURL, s.Secret
	case *entity.FeishuSettings:
		d.FeishuWebhook, d.FeishuSecret = s.WebhookURL, s.Secret
	case *entity.WeChatSettings:
		d.WeChatWebhook = s.WebhookURL
	case *entity.EmailSettings:
		d.SMTPHost = s.Host
		d.SMTPPort = s.Port
		d.SMTPUser = s.Username
		d.SMTPPassword = s.Password
		d.SMTPFrom = s.From
		d.SMTPSecurity = string(s.Security)
		d.EmailTo = s.To
	case *entity.WebhookSettings:
		d.WebhookURL, d.WebhookMethod, d.WebhookHeaders = s.URL, s.Method, s.Headers
	}
	return d
}

// EnableRequest toggles one channel.
type EnableRequest struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Enabled *bool  `json:"enabled"`
}

// TestResponse is the outcome of a connectivity test.
type TestResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// SendRequest is the body of POST /notify/send.
type SendRequest struct {
	Level   string `json:"level"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Source  string `json:"source"`
}

// ChannelResultDTO is one channel's outcome within a SendResponse.
type ChannelResultDTO struct {
	Name     string    `json:"name"`
	Type     string    `json:"type"`
	Status   string    `json:"status"`
	Error    string    `json:"error,omitempty"`
	Attempts int       `json:"attempts"`
	Time     time.Time `json:"timestamp"`
}

// SendResponse summarises one dispatch.
type SendResponse struct {
	MessageID string             `json:"message_id"`
	Channels  []ChannelResultDTO `json:"channels"`
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
}

func toSendResponse(report *notifyUC.DispatchReport) SendResponse {
	out := SendResponse{
		MessageID: report.MessageID,
		Channels:  make([]ChannelResultDTO, 0, len(report.Results)),
		Succeeded: report.Succeeded(),
		Failed:    report.Failed(),
	}
	for _, res := range report.Results {
		out.Channels = append(out.Channels, ChannelResultDTO{
			Name:     res.ChannelName,
			Type:     string(res.ChannelType),
			Status:   string(res.Status),
			Error:    res.Error,
			Attempts: res.Attempts,
			Time:     res.Timestamp,
		})
	}
	return out
}

// HistoryDTO is one stored delivery result together with its message.
type HistoryDTO struct {
	ID        string         `json:"id"`
	Message   entity.Message `json:"message"`
	Name      string         `json:"name"`
	Type      string         `json:"type"`
	Status    string         `json:"status"`
	Error     string         `json:"error,omitempty"`
	Attempts  int            `json:"attempts"`
	Timestamp time.Time      `json:"timestamp"`
}

func toHistoryDTO(rec *entity.HistoryRecord) HistoryDTO {
	return HistoryDTO{
		ID:        rec.ID,
		Message:   rec.Message,
		Name:      rec.Result.ChannelName,
		Type:      string(rec.Result.ChannelType),
		Status:    string(rec.Result.Status),
		Error:     rec.Result.Error,
		Attempts:  rec.Result.Attempts,
		Timestamp: rec.Result.Timestamp,
	}
}

// HealthDTO is the breaker view of one channel.
type HealthDTO struct {
	Name                string `json:"name"`
	Type                string `json:"type"`
	Enabled             bool   `json:"enabled"`
	State               string `json:"state"`
	CircuitBreakerOpen  bool   `json:"circuit_breaker_open"`
	ConsecutiveFailures uint32 `json:"consecutive_failures"`
}

func toHealthDTO(s notifyUC.ChannelHealthStatus) HealthDTO {
	return HealthDTO{
		Name:                s.Name,
		Type:                string(s.Type),
		Enabled:             s.Enabled,
		State:               s.State,
		CircuitBreakerOpen:  s.CircuitBreakerOpen,
		ConsecutiveFailures: s.ConsecutiveFailures,
	}
}
