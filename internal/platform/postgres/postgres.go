package postgres

import (
	"context"
	"database/sql"
	"fmt"

	// registers the "pgx" database/sql driver
	_ "github.com/jackc/pgx/v5/stdlib"

	"rollcall/internal/platform/config"
)

// Open connects to Postgres through the pgx stdlib driver.
// Returns nil when the URL is empty so callers fall back to memory stores.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Migrate creates the attendance schema if missing. Statements are idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS attendance_records (
		id UUID PRIMARY KEY,
		session_id UUID NOT NULL,
		class_id TEXT NOT NULL,
		participant_id TEXT NOT NULL,
		method TEXT NOT NULL,
		outcome TEXT NOT NULL,
		recorded_at TIMESTAMPTZ NOT NULL,
		confidence DOUBLE PRECISION,
		supersedes UUID REFERENCES attendance_records(id),
		reason TEXT NOT NULL DEFAULT '',
		device TEXT NOT NULL DEFAULT '',
		client_ip TEXT NOT NULL DEFAULT '',
		seq BIGSERIAL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS attendance_records_checkin_uniq
		ON attendance_records (session_id, participant_id) WHERE supersedes IS NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS attendance_records_supersedes_uniq
		ON attendance_records (supersedes) WHERE supersedes IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS attendance_records_participant_idx
		ON attendance_records (participant_id, recorded_at)`,
	`CREATE TABLE IF NOT EXISTS enrollment_profiles (
		participant_id TEXT PRIMARY KEY,
		version INT NOT NULL,
		status TEXT NOT NULL,
		dimension INT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL,
		finalized_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS enrollment_samples (
		participant_id TEXT NOT NULL REFERENCES enrollment_profiles(participant_id) ON DELETE CASCADE,
		pose TEXT NOT NULL,
		descriptor FLOAT8[] NOT NULL,
		captured_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (participant_id, pose)
	)`,
}
