package entity

import "fmt"

// ChannelType identifies which delivery mechanism a channel uses.
type ChannelType string

const (
	ChannelDingTalk ChannelType = "dingtalk"
	ChannelFeishu   ChannelType = "feishu"
	ChannelWeChat   ChannelType = "wechat"
	ChannelEmail    ChannelType = "email"
	ChannelWebhook  ChannelType = "webhook"
)

// ChannelTypeInfo describes one supported channel type for form rendering.
type ChannelTypeInfo struct {
	ID          ChannelType `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
}

var channelCatalog = []ChannelTypeInfo{
	{ID: ChannelDingTalk, Name: "DingTalk", Description: "DingTalk group robot webhook, optional HMAC signing secret"},
	{ID: ChannelFeishu, Name: "Feishu", Description: "Feishu (Lark) custom bot webhook, optional signature verification secret"},
	{ID: ChannelWeChat, Name: "WeChat Work", Description: "WeChat Work group robot webhook"},
	{ID: ChannelEmail, Name: "Email", Description: "SMTP delivery to a fixed recipient list"},
	{ID: ChannelWebhook, Name: "Webhook", Description: "Generic HTTP endpoint receiving the message as JSON"},
}

// ChannelTypes returns the static catalog of supported channel types.
func ChannelTypes() []ChannelTypeInfo {
	out := make([]ChannelTypeInfo, len(channelCatalog))
	copy(out, channelCatalog)
	return out
}

// Valid reports whether t is one of the supported channel types.
func (t ChannelType) Valid() bool {
	_, ok := settingsFactories[t]
	return ok
}

// ParseChannelType validates a raw type string.
func ParseChannelType(raw string) (ChannelType, error) {
	t := ChannelType(raw)
	if !t.Valid() {
		return "", invalid("type", "unsupported channel type %q", raw)
	}
	return t, nil
}

// ChannelKey is the identity of a channel configuration.
type ChannelKey struct {
	Name string
	Type ChannelType
}

func (k ChannelKey) String() string {
	return fmt.Sprintf("%s/%s", k.Type, k.Name)
}

// ChannelConfig is a named delivery target. The concrete settings variant
// determines the channel type, so a config cannot carry fields of another type.
type ChannelConfig struct {
	Name     string
	Enabled  bool
	Settings ChannelSettings
}

// Type returns the channel type derived from the settings variant.
func (c *ChannelConfig) Type() ChannelType {
	if c.Settings == nil {
		return ""
	}
	return c.Settings.ChannelType()
}

// Key returns the (name, type) identity.
func (c *ChannelConfig) Key() ChannelKey {
	return ChannelKey{Name: c.Name, Type: c.Type()}
}

// Validate checks the name and the variant-specific required fields.
// The first failure is returned as a *ValidationError.
func (c *ChannelConfig) Validate() error {
	if c == nil {
		return invalid("config", "config is required")
	}
	if err := validateName(c.Name); err != nil {
		return err
	}
	if c.Settings == nil {
		return invalid("type", "channel settings are required")
	}
	return c.Settings.Validate()
}

// Clone returns a deep copy so store snapshots cannot be mutated by readers.
func (c *ChannelConfig) Clone() *ChannelConfig {
	if c == nil {
		return nil
	}
	out := *c
	if c.Settings != nil {
		out.Settings = c.Settings.clone()
	}
	return &out
}

// Redacted returns a copy with secrets and passwords masked.
func (c *ChannelConfig) Redacted() *ChannelConfig {
	out := c.Clone()
	if out != nil && out.Settings != nil {
		out.Settings = out.Settings.Redacted()
	}
	return out
}
