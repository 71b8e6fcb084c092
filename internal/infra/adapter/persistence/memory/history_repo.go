package memory

import (
	"context"
	"slices"
	"sync"

	"notify-dispatch/internal/domain/entity"
	"notify-dispatch/internal/repository"
)

type historyEntry struct {
	seq    uint64
	record entity.HistoryRecord
}

// HistoryRepo is an unbounded in-memory history. Entries are never modified.
type HistoryRepo struct {
	mu      sync.RWMutex
	seq     uint64
	entries []historyEntry
}

func NewHistoryRepo() *HistoryRepo {
	return &HistoryRepo{}
}

var _ repository.HistoryRepository = (*HistoryRepo)(nil)

func (r *HistoryRepo) Append(_ context.Context, records []*entity.HistoryRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range records {
		r.seq++
		r.entries = append(r.entries, historyEntry{seq: r.seq, record: *rec})
	}
	return nil
}

func (r *HistoryRepo) List(_ context.Context, offset, limit int) ([]*entity.HistoryRecord, error) {
	r.mu.RLock()
	sorted := slices.Clone(r.entries)
	r.mu.RUnlock()

	// 新しい順。同時刻は後から追加されたものを先に
	slices.SortFunc(sorted, func(a, b historyEntry) int {
		if c := b.record.Result.Timestamp.Compare(a.record.Result.Timestamp); c != 0 {
			return c
		}
		switch {
		case a.seq > b.seq:
			return -1
		case a.seq < b.seq:
			return 1
		}
		return 0
	})

	offset = max(offset, 0)
	if offset >= len(sorted) || limit <= 0 {
		return []*entity.HistoryRecord{}, nil
	}
	end := offset + min(limit, len(sorted)-offset)
	out := make([]*entity.HistoryRecord, 0, end-offset)
	for _, e := range sorted[offset:end] {
		rec := e.record
		out = append(out, &rec)
	}
	return out, nil
}

func (r *HistoryRepo) Count(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.entries)), nil
}
