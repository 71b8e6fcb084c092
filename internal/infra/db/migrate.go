package db

import (
	"database/sql"
)

// MigrateUp creates the channel and history tables. It is idempotent.
func MigrateUp(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS notify_channels (
    id         SERIAL PRIMARY KEY,
    name       TEXT NOT NULL,
    type       VARCHAR(20) NOT NULL,
    enabled    BOOLEAN NOT NULL DEFAULT TRUE,
    settings   JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (name, type)
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS notify_history (
    id            BIGSERIAL PRIMARY KEY,
    record_id     UUID NOT NULL UNIQUE,
    message_id    UUID NOT NULL,
    level         VARCHAR(16) NOT NULL,
    title         TEXT NOT NULL DEFAULT '',
    content       TEXT NOT NULL DEFAULT '',
    source        TEXT NOT NULL DEFAULT '',
    sent_at       TIMESTAMPTZ NOT NULL,
    channel_name  TEXT NOT NULL,
    channel_type  VARCHAR(20) NOT NULL,
    status        VARCHAR(16) NOT NULL,
    error         TEXT NOT NULL DEFAULT '',
    attempts      INT NOT NULL DEFAULT 1,
    attempted_at  TIMESTAMPTZ NOT NULL
)`); err != nil {
		return err
	}

	indexes := []string{
		// 履歴一覧 (ORDER BY attempted_at DESC, id DESC)
		`CREATE INDEX IF NOT EXISTS idx_notify_history_attempted_at ON notify_history(attempted_at DESC, id DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_notify_history_message_id ON notify_history(message_id)`,
		`CREATE INDEX IF NOT EXISTS idx_notify_channels_enabled ON notify_channels(enabled) WHERE enabled = TRUE`,
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return err
		}
	}

	// 既に存在する場合はエラーを無視
	_, _ = db.Exec(`
DO $$
BEGIN
    IF NOT EXISTS (
        SELECT 1 FROM pg_constraint
        WHERE conname = 'chk_notify_channels_type'
    ) THEN
        ALTER TABLE notify_channels ADD CONSTRAINT chk_notify_channels_type
        CHECK (type IN ('dingtalk', 'feishu', 'wechat', 'email', 'webhook'));
    END IF;
END $$;
`)

	return nil
}

// MigrateDown drops everything MigrateUp creates. History is lost.
func MigrateDown(db *sql.DB) error {
	dropStatements := []string{
		`DROP INDEX IF EXISTS idx_notify_history_message_id`,
		`DROP INDEX IF EXISTS idx_notify_history_attempted_at`,
		`DROP TABLE IF EXISTS notify_history`,
		`DROP TABLE IF EXISTS notify_channels`,
	}
	for _, stmt := range dropStatements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
