package store

import (
	"context"
	"fmt"
)

// migrations are applied in order, once each, tracked in schema_migrations.
// A failed migration is startup-fatal; the schema is never probed or patched
// at runtime.
var migrations = []string{
	// 1: initial schema
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		username TEXT NOT NULL,
		email TEXT UNIQUE,
		login_id TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS chat_messages (
		chat_id BIGSERIAL PRIMARY KEY,
		session_id TEXT NOT NULL,
		sender TEXT NOT NULL CHECK (sender IN ('user', 'ai')),
		message TEXT NOT NULL,
		sent_at TIMESTAMPTZ NOT NULL,
		sentiment_label TEXT,
		sentiment_score DOUBLE PRECISION
	);
	CREATE INDEX IF NOT EXISTS idx_chat_messages_session
		ON chat_messages (session_id, sent_at);
	CREATE TABLE IF NOT EXISTS reports (
		report_id UUID PRIMARY KEY,
		session_id TEXT NOT NULL,
		requestor TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		report_md TEXT,
		report_json TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		processed_at TIMESTAMPTZ
	);
	CREATE INDEX IF NOT EXISTS idx_reports_session
		ON reports (session_id);`,

	// 2: failure reason for failed reports
	`ALTER TABLE reports ADD COLUMN IF NOT EXISTS failure_reason TEXT;`,
}

// Migrate applies all pending migrations. Call once before serving.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	err = s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for i := current; i < len(migrations); i++ {
		version := i + 1
		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", version, err)
		}
		if _, err := tx.Exec(ctx, migrations[i]); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("apply migration %d: %w", version, err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, version); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("record migration %d: %w", version, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit migration %d: %w", version, err)
		}
	}

	return nil
}
