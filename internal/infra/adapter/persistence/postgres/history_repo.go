package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"notify-dispatch/internal/domain/entity"
	"notify-dispatch/internal/repository"
)

type HistoryRepo struct{ db *sql.DB }

func NewHistoryRepo(db *sql.DB) repository.HistoryRepository {
	return &HistoryRepo{db: db}
}

// Append writes records in one transaction; either all rows land or none do.
func (repo *HistoryRepo) Append(ctx context.Context, records []*entity.HistoryRecord) (err error) {
	if len(records) == 0 {
		return nil
	}
	tx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("Append: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `
INSERT INTO notify_history (
    record_id, message_id, level, title, content, source, sent_at,
    channel_name, channel_type, status, error, attempts, attempted_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("Append: prepare: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, rec := range records {
		m, r := rec.Message, rec.Result
		if _, err = stmt.ExecContext(ctx,
			rec.ID, m.ID, m.Level, m.Title, m.Content, m.Source, m.Timestamp,
			r.ChannelName, string(r.ChannelType), string(r.Status), r.Error, r.Attempts, r.Timestamp,
		); err != nil {
			return fmt.Errorf("Append: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("Append: commit: %w", err)
	}
	return nil
}

func (repo *HistoryRepo) List(ctx context.Context, offset, limit int) ([]*entity.HistoryRecord, error) {
	const query = `
SELECT record_id, message_id, level, title, content, source, sent_at,
       channel_name, channel_type, status, error, attempts, attempted_at
FROM notify_history
ORDER BY attempted_at DESC, id DESC
LIMIT $1 OFFSET $2`
	offset = max(offset, 0)
	rows, err := repo.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := make([]*entity.HistoryRecord, 0, limit)
	for rows.Next() {
		var (
			rec         entity.HistoryRecord
			channelType string
			status      string
		)
		m, r := &rec.Message, &rec.Result
		if err := rows.Scan(
			&rec.ID, &m.ID, &m.Level, &m.Title, &m.Content, &m.Source, &m.Timestamp,
			&r.ChannelName, &channelType, &status, &r.Error, &r.Attempts, &r.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("List: %w", err)
		}
		r.ChannelType = entity.ChannelType(channelType)
		r.Status = entity.DeliveryStatus(status)
		records = append(records, &rec)
	}
	return records, rows.Err()
}

func (repo *HistoryRepo) Count(ctx context.Context) (int64, error) {
	const query = `SELECT COUNT(*) FROM notify_history`
	var n int64
	if err := repo.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("Count: %w", err)
	}
	return n, nil
}
