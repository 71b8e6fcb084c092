package repository

import (
	"context"

	"notify-dispatch/internal/domain/entity"
)

// ChannelRepository persists channel configurations keyed by (name, type).
//
// Create returns entity.ErrAlreadyExists for a duplicate key; Update,
// SetEnabled and Delete return entity.ErrNotFound when the key is absent.
// Get returns (nil, nil) when the key is absent.
type ChannelRepository interface {
	Get(ctx context.Context, key entity.ChannelKey) (*entity.ChannelConfig, error)
	List(ctx context.Context) ([]*entity.ChannelConfig, error)
	Create(ctx context.Context, cfg *entity.ChannelConfig) error
	Update(ctx context.Context, cfg *entity.ChannelConfig) error
	SetEnabled(ctx context.Context, key entity.ChannelKey, enabled bool) error
	Delete(ctx context.Context, key entity.ChannelKey) error
}
