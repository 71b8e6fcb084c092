// Package persistence selects the channel config and history backends.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"notify-dispatch/internal/infra/adapter/persistence/memory"
	"notify-dispatch/internal/infra/adapter/persistence/postgres"
	"notify-dispatch/internal/infra/db"
	"notify-dispatch/internal/repository"
)

// Stores bundles the repositories a process runs on.
type Stores struct {
	DB       *sql.DB // nil for the in-memory backend
	Channels repository.ChannelRepository
	History  repository.HistoryRepository
}

// Options controls how a Postgres backend is prepared.
type Options struct {
	// Migrate creates the schema. Only one process should do it.
	Migrate bool

	// WaitForSchema polls until another process has migrated.
	WaitForSchema bool
	WaitAttempts  int
	WaitInterval  time.Duration
}

// Open returns in-memory stores when dsn is empty and Postgres stores
// otherwise.
func Open(ctx context.Context, dsn string, opts Options) (*Stores, error) {
	if dsn == "" {
		slog.Info("using in-memory store; configs and history are lost on restart")
		return &Stores{
			Channels: memory.NewChannelRepo(),
			History:  memory.NewHistoryRepo(),
		}, nil
	}

	database, err := db.Open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if opts.Migrate {
		if err := db.MigrateUp(database); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	if opts.WaitForSchema {
		if err := waitForSchema(ctx, database, opts.WaitAttempts, opts.WaitInterval); err != nil {
			_ = database.Close()
			return nil, err
		}
	}

	return &Stores{
		DB:       database,
		Channels: postgres.NewChannelRepo(database),
		History:  postgres.NewHistoryRepo(database),
	}, nil
}

// Close releases the database pool, if any.
func (s *Stores) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

func waitForSchema(ctx context.Context, database *sql.DB, attempts int, interval time.Duration) error {
	const probe = "SELECT 1 FROM notify_history LIMIT 1"
	if attempts < 1 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		if _, err := database.ExecContext(ctx, probe); err == nil {
			return nil
		}
		slog.Info("waiting for migrations", slog.Int("attempt", i+1), slog.Duration("retry_in", interval))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
	return fmt.Errorf("migrations did not complete after %d attempts", attempts)
}
