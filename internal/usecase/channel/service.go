package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"notify-dispatch/internal/domain/entity"
	"notify-dispatch/internal/repository"
)

// Guard is an extra check applied to configs on Add and Update after field
// validation. It returns a *entity.ValidationError to reject a config.
type Guard func(cfg *entity.ChannelConfig) error

// PublicTargetsOnly rejects HTTP-based channels whose host resolves to a
// private, loopback or link-local address.
func PublicTargetsOnly(cfg *entity.ChannelConfig) error {
	ep, ok := cfg.Settings.(entity.Endpointer)
	if !ok {
		return nil
	}
	field, rawURL := ep.Endpoint()
	return entity.CheckPublicHost(field, rawURL)
}

// Service provides channel config management use cases.
type Service struct {
	Repo  repository.ChannelRepository
	Guard Guard // optional

	// OnChange is called after a config is added, updated or deleted.
	OnChange func(key entity.ChannelKey)

	mu sync.Mutex
}

// List returns every config in insertion order. The result is a snapshot:
// later writes do not affect it and mutating it does not affect the store.
func (s *Service) List(ctx context.Context) ([]*entity.ChannelConfig, error) {
	configs, err := s.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list configs: %w", err)
	}
	return configs, nil
}

// Get returns the config for key or ErrConfigNotFound.
func (s *Service) Get(ctx context.Context, key entity.ChannelKey) (*entity.ChannelConfig, error) {
	cfg, err := s.Repo.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get config: %w", err)
	}
	if cfg == nil {
		return nil, fmt.Errorf("get config %s: %w", key, ErrConfigNotFound)
	}
	return cfg, nil
}

// Add stores a new config.
// Returns ErrInvalidConfig when validation fails and ErrDuplicateConfig when
// the (name, type) key is taken.
func (s *Service) Add(ctx context.Context, cfg *entity.ChannelConfig) error {
	if err := s.validate(cfg); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.Repo.Create(ctx, cfg.Clone()); err != nil {
		if errors.Is(err, entity.ErrAlreadyExists) {
			return fmt.Errorf("add config %s: %w", cfg.Key(), ErrDuplicateConfig)
		}
		return fmt.Errorf("add config: %w", err)
	}
	slog.InfoContext(ctx, "channel config added",
		slog.String("channel", cfg.Key().String()),
		slog.Bool("enabled", cfg.Enabled))
	s.changed(cfg.Key())
	return nil
}

// Update replaces the config stored under cfg's (name, type) key.
// Masked secrets (entity.MaskedValue) keep their stored value.
func (s *Service) Update(ctx context.Context, cfg *entity.ChannelConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := cfg.Clone()
	if next != nil && next.Settings != nil {
		prev, err := s.Repo.Get(ctx, next.Key())
		if err != nil {
			return fmt.Errorf("update config: %w", err)
		}
		if prev == nil {
			// 存在チェックより検証エラーを優先する
			if err := s.validate(next); err != nil {
				return err
			}
			return fmt.Errorf("update config %s: %w", next.Key(), ErrConfigNotFound)
		}
		entity.KeepMaskedSecrets(next.Settings, prev.Settings)
	}

	if err := s.validate(next); err != nil {
		return err
	}

	if err := s.Repo.Update(ctx, next); err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return fmt.Errorf("update config %s: %w", next.Key(), ErrConfigNotFound)
		}
		return fmt.Errorf("update config: %w", err)
	}
	slog.InfoContext(ctx, "channel config updated", slog.String("channel", next.Key().String()))
	s.changed(next.Key())
	return nil
}

// SetEnabled toggles only the enabled flag of the config under key.
func (s *Service) SetEnabled(ctx context.Context, key entity.ChannelKey, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.Repo.SetEnabled(ctx, key, enabled); err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return fmt.Errorf("set enabled %s: %w", key, ErrConfigNotFound)
		}
		return fmt.Errorf("set enabled: %w", err)
	}
	slog.InfoContext(ctx, "channel config toggled",
		slog.String("channel", key.String()),
		slog.Bool("enabled", enabled))
	return nil
}

// Delete removes the config under key. Deleting a missing key is an error.
func (s *Service) Delete(ctx context.Context, key entity.ChannelKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.Repo.Delete(ctx, key); err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return fmt.Errorf("delete config %s: %w", key, ErrConfigNotFound)
		}
		return fmt.Errorf("delete config: %w", err)
	}
	slog.InfoContext(ctx, "channel config deleted", slog.String("channel", key.String()))
	s.changed(key)
	return nil
}

func (s *Service) changed(key entity.ChannelKey) {
	if s.OnChange != nil {
		s.OnChange(key)
	}
}

// SupportedTypes returns the static channel type catalog.
func (s *Service) SupportedTypes() []entity.ChannelTypeInfo {
	return entity.ChannelTypes()
}

// Validate applies the same rules as Add without storing anything.
func (s *Service) Validate(cfg *entity.ChannelConfig) error {
	return s.validate(cfg)
}

func (s *Service) validate(cfg *entity.ChannelConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if s.Guard != nil {
		if err := s.Guard(cfg); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}
