// Package history records delivery outcomes and serves them newest-first.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"notify-dispatch/internal/common/pagination"
	"notify-dispatch/internal/domain/entity"
	"notify-dispatch/internal/repository"
)

// Recorder is the write-once history of delivery outcomes.
type Recorder struct {
	Repo   repository.HistoryRepository
	Paging pagination.Config
}

// NewRecorder returns a Recorder using pagination.DefaultConfig.
func NewRecorder(repo repository.HistoryRepository) *Recorder {
	return &Recorder{Repo: repo, Paging: pagination.DefaultConfig()}
}

// Append stores one record per result, all referring to msg.
func (r *Recorder) Append(ctx context.Context, msg *entity.Message, results ...entity.DeliveryResult) error {
	if msg == nil || len(results) == 0 {
		return nil
	}
	records := make([]*entity.HistoryRecord, 0, len(results))
	for _, res := range results {
		records = append(records, &entity.HistoryRecord{
			ID:      uuid.NewString(),
			Message: *msg,
			Result:  res,
		})
	}
	if err := r.Repo.Append(ctx, records); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// List returns one page of records, newest first. Zero page or limit take
// the configured defaults; a limit above the maximum is capped.
func (r *Recorder) List(ctx context.Context, page, limit int) ([]*entity.HistoryRecord, error) {
	params := pagination.Params{Page: page, Limit: limit}.WithDefaults(r.Paging)

	start := time.Now()
	records, err := r.Repo.List(ctx, params.Offset(), params.Limit)
	pagination.RecordDuration("repository", time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return records, nil
}

// Count returns the number of stored records.
func (r *Recorder) Count(ctx context.Context) (int64, error) {
	n, err := r.Repo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count history: %w", err)
	}
	pagination.UpdateTotalCount(n)
	return n, nil
}

// Group reconstructs the per-message view of a page of records.
func Group(records []*entity.HistoryRecord) []entity.MessageHistory {
	return entity.GroupByMessage(records)
}
