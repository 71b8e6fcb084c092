package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"notify-dispatch/internal/domain/entity"
	"notify-dispatch/internal/repository"
)

const uniqueViolation = "23505"

type ChannelRepo struct{ db *sql.DB }

func NewChannelRepo(db *sql.DB) repository.ChannelRepository {
	return &ChannelRepo{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChannel(row rowScanner) (*entity.ChannelConfig, error) {
	var (
		cfg      entity.ChannelConfig
		typ      string
		settings []byte
	)
	if err := row.Scan(&cfg.Name, &typ, &cfg.Enabled, &settings); err != nil {
		return nil, err
	}
	s, err := entity.DecodeSettings(entity.ChannelType(typ), settings)
	if err != nil {
		return nil, fmt.Errorf("decode settings for %s/%s: %w", typ, cfg.Name, err)
	}
	cfg.Settings = s
	return &cfg, nil
}

func (repo *ChannelRepo) Get(ctx context.Context, key entity.ChannelKey) (*entity.ChannelConfig, error) {
	const query = `
SELECT name, type, enabled, settings
FROM notify_channels
WHERE name = $1 AND type = $2
LIMIT 1`
	cfg, err := scanChannel(repo.db.QueryRowContext(ctx, query, key.Name, string(key.Type)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return cfg, nil
}

func (repo *ChannelRepo) List(ctx context.Context) ([]*entity.ChannelConfig, error) {
	const query = `
SELECT name, type, enabled, settings
FROM notify_channels
ORDER BY id ASC`
	rows, err := repo.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	defer func() { _ = rows.Close() }()

	configs := make([]*entity.ChannelConfig, 0, 16)
	for rows.Next() {
		cfg, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("List: %w", err)
		}
		configs = append(configs, cfg)
	}
	return configs, rows.Err()
}

func (repo *ChannelRepo) Create(ctx context.Context, cfg *entity.ChannelConfig) error {
	settings, err := entity.EncodeSettings(cfg.Settings)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	const query = `
INSERT INTO notify_channels (name, type, enabled, settings)
VALUES ($1, $2, $3, $4)`
	_, err = repo.db.ExecContext(ctx, query, cfg.Name, string(cfg.Type()), cfg.Enabled, settings)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("Create %s: %w", cfg.Key(), entity.ErrAlreadyExists)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (repo *ChannelRepo) Update(ctx context.Context, cfg *entity.ChannelConfig) error {
	settings, err := entity.EncodeSettings(cfg.Settings)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	const query = `
UPDATE notify_channels SET
       enabled    = $1,
       settings   = $2,
       updated_at = now()
WHERE name = $3 AND type = $4`
	res, err := repo.db.ExecContext(ctx, query, cfg.Enabled, settings, cfg.Name, string(cfg.Type()))
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("Update %s: %w", cfg.Key(), entity.ErrNotFound)
	}
	return nil
}

func (repo *ChannelRepo) SetEnabled(ctx context.Context, key entity.ChannelKey, enabled bool) error {
	const query = `
UPDATE notify_channels SET enabled = $1, updated_at = now()
WHERE name = $2 AND type = $3`
	res, err := repo.db.ExecContext(ctx, query, enabled, key.Name, string(key.Type))
	if err != nil {
		return fmt.Errorf("SetEnabled: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("SetEnabled %s: %w", key, entity.ErrNotFound)
	}
	return nil
}

func (repo *ChannelRepo) Delete(ctx context.Context, key entity.ChannelKey) error {
	const query = `DELETE FROM notify_channels WHERE name = $1 AND type = $2`
	res, err := repo.db.ExecContext(ctx, query, key.Name, string(key.Type))
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("Delete %s: %w", key, entity.ErrNotFound)
	}
	return nil
}
