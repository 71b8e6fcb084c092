package repository

import (
	"context"

	"notify-dispatch/internal/domain/entity"
)

// HistoryRepository is the append-only store of delivery outcomes.
// List orders by result timestamp descending, ties by insertion order (latest first).
type HistoryRepository interface {
	Append(ctx context.Context, records []*entity.HistoryRecord) error
	List(ctx context.Context, offset, limit int) ([]*entity.HistoryRecord, error)
	Count(ctx context.Context) (int64, error)
}
