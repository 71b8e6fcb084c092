// Package memory provides in-process repository implementations used when no
// database is configured and as fakes in tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"notify-dispatch/internal/domain/entity"
	"notify-dispatch/internal/repository"
)

// ChannelRepo keeps channel configs in insertion order.
type ChannelRepo struct {
	mu      sync.RWMutex
	configs []*entity.ChannelConfig
}

func NewChannelRepo() *ChannelRepo {
	return &ChannelRepo{}
}

var _ repository.ChannelRepository = (*ChannelRepo)(nil)

func (r *ChannelRepo) indexOf(key entity.ChannelKey) int {
	for i, c := range r.configs {
		if c.Key() == key {
			return i
		}
	}
	return -1
}

func (r *ChannelRepo) Get(_ context.Context, key entity.ChannelKey) (*entity.ChannelConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i := r.indexOf(key)
	if i < 0 {
		return nil, nil
	}
	return r.configs[i].Clone(), nil
}

func (r *ChannelRepo) List(_ context.Context) ([]*entity.ChannelConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*entity.ChannelConfig, 0, len(r.configs))
	for _, c := range r.configs {
		out = append(out, c.Clone())
	}
	return out, nil
}

func (r *ChannelRepo) Create(_ context.Context, cfg *entity.ChannelConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.indexOf(cfg.Key()) >= 0 {
		return fmt.Errorf("Create %s: %w", cfg.Key(), entity.ErrAlreadyExists)
	}
	r.configs = append(r.configs, cfg.Clone())
	return nil
}

func (r *ChannelRepo) Update(_ context.Context, cfg *entity.ChannelConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(cfg.Key())
	if i < 0 {
		return fmt.Errorf("Update %s: %w", cfg.Key(), entity.ErrNotFound)
	}
	r.configs[i] = cfg.Clone()
	return nil
}

func (r *ChannelRepo) SetEnabled(_ context.Context, key entity.ChannelKey, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(key)
	if i < 0 {
		return fmt.Errorf("SetEnabled %s: %w", key, entity.ErrNotFound)
	}
	r.configs[i].Enabled = enabled
	return nil
}

func (r *ChannelRepo) Delete(_ context.Context, key entity.ChannelKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(key)
	if i < 0 {
		return fmt.Errorf("Delete %s: %w", key, entity.ErrNotFound)
	}
	r.configs = append(r.configs[:i], r.configs[i+1:]...)
	return nil
}
