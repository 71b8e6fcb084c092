package entity

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"
)

// MaskedValue replaces secrets in API responses. Sending it back on update
// keeps the stored secret.
const MaskedValue = "******"

// ChannelSettings is the type-specific part of a ChannelConfig.
// It is implemented only by the variants in this package.
type ChannelSettings interface {
	ChannelType() ChannelType
	Validate() error
	// Redacted returns a copy with secrets replaced by MaskedValue.
	Redacted() ChannelSettings
	clone() ChannelSettings
	restoreMasked(prev ChannelSettings)
}

// Endpointer is implemented by variants that deliver to an HTTP endpoint.
type Endpointer interface {
	Endpoint() (field, rawURL string)
}

var settingsFactories = map[ChannelType]func() ChannelSettings{
	ChannelDingTalk: func() ChannelSettings { return &DingTalkSettings{} },
	ChannelFeishu:   func() ChannelSettings { return &FeishuSettings{} },
	ChannelWeChat:   func() ChannelSettings { return &WeChatSettings{} },
	ChannelEmail:    func() ChannelSettings { return &EmailSettings{} },
	ChannelWebhook:  func() ChannelSettings { return &WebhookSettings{} },
}

// NewSettings returns an empty settings variant for t.
func NewSettings(t ChannelType) (ChannelSettings, error) {
	factory, ok := settingsFactories[t]
	if !ok {
		return nil, invalid("type", "unsupported channel type %q", t)
	}
	return factory(), nil
}

// EncodeSettings serializes a settings variant for storage.
func EncodeSettings(s ChannelSettings) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("encode settings: %w", ErrInvalidInput)
	}
	return json.Marshal(s)
}

// DecodeSettings restores the variant for t from its stored form.
func DecodeSettings(t ChannelType, data []byte) (ChannelSettings, error) {
	factory, ok := settingsFactories[t]
	if !ok {
		return nil, fmt.Errorf("decode settings: unsupported channel type %q", t)
	}
	s := factory()
	if len(data) > 0 {
		if err := json.Unmarshal(data, s); err != nil {
			return nil, fmt.Errorf("decode %s settings: %w", t, err)
		}
	}
	return s, nil
}

// KeepMaskedSecrets copies secrets from prev into next wherever next still
// carries MaskedValue. Both must be the same variant; otherwise next is unchanged.
func KeepMaskedSecrets(next, prev ChannelSettings) {
	if next == nil || prev == nil || next.ChannelType() != prev.ChannelType() {
		return
	}
	next.restoreMasked(prev)
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return MaskedValue
}

func unmask(current, previous string) string {
	if current == MaskedValue {
		return previous
	}
	return current
}

/* ───────── DingTalk ───────── */

// DingTalkSettings configures a DingTalk group robot.
type DingTalkSettings struct {
	WebhookURL string `json:"webhook_url" yaml:"webhook_url"`
	Secret     string `json:"secret,omitempty" yaml:"secret,omitempty"`
}

func (s *DingTalkSettings) ChannelType() ChannelType { return ChannelDingTalk }

func (s *DingTalkSettings) Validate() error {
	return ValidateURL("dingtalk_webhook", s.WebhookURL)
}

func (s *DingTalkSettings) Endpoint() (string, string) { return "dingtalk_webhook", s.WebhookURL }

func (s *DingTalkSettings) Redacted() ChannelSettings {
	out := *s
	out.Secret = mask(s.Secret)
	return &out
}

func (s *DingTalkSettings) clone() ChannelSettings {
	out := *s
	return &out
}

func (s *DingTalkSettings) restoreMasked(prev ChannelSettings) {
	p := prev.(*DingTalkSettings)
	s.Secret = unmask(s.Secret, p.Secret)
}

/* ───────── Feishu ───────── */

// FeishuSettings configures a Feishu custom bot.
type FeishuSettings struct {
	WebhookURL string `json:"webhook_url" yaml:"webhook_url"`
	Secret     string `json:"secret,omitempty" yaml:"secret,omitempty"`
}

func (s *FeishuSettings) ChannelType() ChannelType { return ChannelFeishu }

func (s *FeishuSettings) Validate() error {
	return ValidateURL("feishu_webhook", s.WebhookURL)
}

func (s *FeishuSettings) Endpoint() (string, string) { return "feishu_webhook", s.WebhookURL }

func (s *FeishuSettings) Redacted() ChannelSettings {
	out := *s
	out.Secret = mask(s.Secret)
	return &out
}

func (s *FeishuSettings) clone() ChannelSettings {
	out := *s
	return &out
}

func (s *FeishuSettings) restoreMasked(prev ChannelSettings) {
	p := prev.(*FeishuSettings)
	s.Secret = unmask(s.Secret, p.Secret)
}

/* ───────── WeChat Work ───────── */

// WeChatSettings configures a WeChat Work group robot. Signing is not supported.
type WeChatSettings struct {
	WebhookURL string `json:"webhook_url" yaml:"webhook_url"`
}

func (s *WeChatSettings) ChannelType() ChannelType { return ChannelWeChat }

func (s *WeChatSettings) Validate() error {
	return ValidateURL("wechat_webhook", s.WebhookURL)
}

func (s *WeChatSettings) Endpoint() (string, string) { return "wechat_webhook", s.WebhookURL }

func (s *WeChatSettings) Redacted() ChannelSettings { return s.clone() }

func (s *WeChatSettings) clone() ChannelSettings {
	out := *s
	return &out
}

func (s *WeChatSettings) restoreMasked(ChannelSettings) {}

/* ───────── Email ───────── */

// EmailSecurity selects how the SMTP session is protected.
type EmailSecurity string

const (
	// SecurityAuto picks by port: 465 implicit TLS, 587 mandatory STARTTLS,
	// anything else opportunistic STARTTLS.
	SecurityAuto          EmailSecurity = ""
	SecuritySSL           EmailSecurity = "ssl"
	SecuritySTARTTLS      EmailSecurity = "starttls"
	SecurityOpportunistic EmailSecurity = "opportunistic"
	SecurityNone          EmailSecurity = "none"
)

// EmailSettings configures SMTP delivery.
type EmailSettings struct {
	Host     string        `json:"host" yaml:"host"`
	Port     int           `json:"port" yaml:"port"`
	Username string        `json:"username,omitempty" yaml:"username,omitempty"`
	Password string        `json:"password,omitempty" yaml:"password,omitempty"`
	From     string        `json:"from" yaml:"from"`
	To       []string      `json:"to" yaml:"to"`
	Security EmailSecurity `json:"security,omitempty" yaml:"security,omitempty"`
}

func (s *EmailSettings) ChannelType() ChannelType { return ChannelEmail }

func (s *EmailSettings) Validate() error {
	if strings.TrimSpace(s.Host) == "" {
		return invalid("smtp_host", "SMTP host is required")
	}
	if err := ValidatePort("smtp_port", s.Port); err != nil {
		return err
	}
	if err := ValidateAddress("smtp_from", s.From); err != nil {
		return err
	}
	if len(s.To) == 0 {
		return invalid("email_to", "at least one recipient is required")
	}
	for _, addr := range s.To {
		if err := ValidateRecipient("email_to", addr); err != nil {
			return err
		}
	}
	switch s.Security {
	case SecurityAuto, SecuritySSL, SecuritySTARTTLS, SecurityOpportunistic, SecurityNone:
	default:
		return invalid("smtp_security", "must be one of ssl, starttls, opportunistic, none")
	}
	return nil
}

// EffectiveSecurity resolves SecurityAuto using the port convention.
func (s *EmailSettings) EffectiveSecurity() EmailSecurity {
	if s.Security != SecurityAuto {
		return s.Security
	}
	switch s.Port {
	case 465:
		return SecuritySSL
	case 587:
		return SecuritySTARTTLS
	default:
		return SecurityOpportunistic
	}
}

func (s *EmailSettings) Redacted() ChannelSettings {
	out := s.clone().(*EmailSettings)
	out.Password = mask(s.Password)
	return out
}

func (s *EmailSettings) clone() ChannelSettings {
	out := *s
	out.To = slices.Clone(s.To)
	return &out
}

func (s *EmailSettings) restoreMasked(prev ChannelSettings) {
	p := prev.(*EmailSettings)
	s.Password = unmask(s.Password, p.Password)
}

/* ───────── Generic webhook ───────── */

var allowedWebhookMethods = []string{
	http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete,
}

// WebhookSettings configures a generic HTTP endpoint.
type WebhookSettings struct {
	URL     string            `json:"url" yaml:"url"`
	Method  string            `json:"method,omitempty" yaml:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

func (s *WebhookSettings) ChannelType() ChannelType { return ChannelWebhook }

func (s *WebhookSettings) Validate() error {
	if err := ValidateURL("webhook_url", s.URL); err != nil {
		return err
	}
	if s.Method != "" && !slices.Contains(allowedWebhookMethods, strings.ToUpper(s.Method)) {
		return invalid("webhook_method", "unsupported HTTP method %q", s.Method)
	}
	for name, value := range s.Headers {
		if err := validateHeaderName("webhook_headers", name); err != nil {
			return err
		}
		if err := validateHeaderValue("webhook_headers", name, value); err != nil {
			return err
		}
	}
	return nil
}

// EffectiveMethod returns the upper-cased method, defaulting to POST.
func (s *WebhookSettings) EffectiveMethod() string {
	if s.Method == "" {
		return http.MethodPost
	}
	return strings.ToUpper(s.Method)
}

func (s *WebhookSettings) Endpoint() (string, string) { return "webhook_url", s.URL }

func (s *WebhookSettings) Redacted() ChannelSettings {
	out := s.clone().(*WebhookSettings)
	for name, value := range out.Headers {
		if isSensitiveHeader(name) {
			out.Headers[name] = mask(value)
		}
	}
	return out
}

func (s *WebhookSettings) clone() ChannelSettings {
	out := *s
	out.Headers = maps.Clone(s.Headers)
	return &out
}

func (s *WebhookSettings) restoreMasked(prev ChannelSettings) {
	p := prev.(*WebhookSettings)
	for name, value := range s.Headers {
		if value == MaskedValue {
			s.Headers[name] = p.Headers[name]
		}
	}
}

func isSensitiveHeader(name string) bool {
	lower := strings.ToLower(name)
	for _, marker := range []string{"auth", "token", "secret", "key", "cookie", "signature"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
