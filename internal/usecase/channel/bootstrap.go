package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"notify-dispatch/internal/domain/entity"
)

// bootstrapFile is the layout of NOTIFY_CHANNELS_FILE:
//
//	channels:
//	  - name: ops
//	    type: dingtalk
//	    enabled: true
//	    settings:
//	      webhook_url: https://oapi.dingtalk.com/robot/send?access_token=${DINGTALK_TOKEN}
//	      secret: ${DINGTALK_SECRET}
type bootstrapFile struct {
	Channels []bootstrapEntry `yaml:"channels"`
}

type bootstrapEntry struct {
	Name     string    `yaml:"name"`
	Type     string    `yaml:"type"`
	Enabled  *bool     `yaml:"enabled"` // default true
	Settings yaml.Node `yaml:"settings"`
}

// LoadBootstrapFile reads channel configs from a YAML file. ${VAR} references
// are expanded from the environment before parsing so secrets can stay out
// of the file. Configs are returned unvalidated; Seed validates them.
func LoadBootstrapFile(path string) ([]*entity.ChannelConfig, error) {
	// #nosec G304 -- path comes from NOTIFY_CHANNELS_FILE, set by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read channels file: %w", err)
	}
	return ParseBootstrap([]byte(os.ExpandEnv(string(data))))
}

// ParseBootstrap decodes the channels document.
func ParseBootstrap(data []byte) ([]*entity.ChannelConfig, error) {
	var file bootstrapFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse channels file: %w", err)
	}

	configs := make([]*entity.ChannelConfig, 0, len(file.Channels))
	for i, e := range file.Channels {
		settings, err := entity.NewSettings(entity.ChannelType(e.Type))
		if err != nil {
			return nil, fmt.Errorf("channels[%d] %q: %w", i, e.Name, err)
		}
		if !e.Settings.IsZero() {
			if err := e.Settings.Decode(settings); err != nil {
				return nil, fmt.Errorf("channels[%d] %q: decode settings: %w", i, e.Name, err)
			}
		}

		enabled := true
		if e.Enabled != nil {
			enabled = *e.Enabled
		}
		configs = append(configs, &entity.ChannelConfig{Name: e.Name, Enabled: enabled, Settings: settings})
	}
	return configs, nil
}

// Seed adds configs through the service so they pass the same validation
// as API writes. Configs whose key is already stored are left untouched,
// which keeps a persistent store's edits across restarts. Returns the
// number of configs added.
func (s *Service) Seed(ctx context.Context, configs []*entity.ChannelConfig) (int, error) {
	added := 0
	for _, cfg := range configs {
		err := s.Add(ctx, cfg)
		switch {
		case err == nil:
			added++
		case errors.Is(err, ErrDuplicateConfig):
			slog.InfoContext(ctx, "channel config already stored, skipping seed",
				slog.String("channel", cfg.Key().String()))
		default:
			return added, fmt.Errorf("seed %s: %w", cfg.Key(), err)
		}
	}
	return added, nil
}
