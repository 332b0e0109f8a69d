package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrConflict is returned when a write violates a uniqueness constraint,
// e.g. a second active session at the same table.
var ErrConflict = errors.New("conflicting record already exists")

type DB struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

func (db *DB) Close() {
	db.pool.Close()
}

// RunMigrations runs database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS players (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			avatar TEXT NOT NULL DEFAULT '',
			avatar_color TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS game_configs (
			id TEXT PRIMARY KEY,
			buy_in_amount DOUBLE PRECISION NOT NULL CHECK (buy_in_amount > 0),
			chip_ratio DOUBLE PRECISION NOT NULL CHECK (chip_ratio > 0),
			blind_level TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			table_id TEXT NOT NULL,
			config_id TEXT NOT NULL,
			buy_in_amount DOUBLE PRECISION NOT NULL,
			chip_ratio DOUBLE PRECISION NOT NULL,
			blind_level TEXT NOT NULL DEFAULT '',
			start_time TIMESTAMPTZ NOT NULL,
			end_time TIMESTAMPTZ,
			active BOOLEAN NOT NULL DEFAULT TRUE
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_active_table ON sessions(table_id) WHERE active;
		CREATE INDEX IF NOT EXISTS idx_sessions_table_start ON sessions(table_id, start_time DESC);

		CREATE TABLE IF NOT EXISTS session_players (
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			player_id TEXT NOT NULL,
			seat INT NOT NULL,
			buy_in_count INT NOT NULL CHECK (buy_in_count >= 0),
			extra_buy_in DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (extra_buy_in >= 0),
			cash_out DOUBLE PRECISION,
			settled BOOLEAN NOT NULL DEFAULT FALSE,
			PRIMARY KEY (session_id, player_id)
		);

		CREATE TABLE IF NOT EXISTS settlement_transfers (
			id BIGSERIAL PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			payer_id TEXT NOT NULL,
			payee_id TEXT NOT NULL,
			amount BIGINT NOT NULL CHECK (amount > 0),
			completed BOOLEAN NOT NULL DEFAULT FALSE,
			completed_at TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS idx_settlement_transfers_session ON settlement_transfers(session_id);

		CREATE TABLE IF NOT EXISTS transfer_reminders (
			session_id TEXT PRIMARY KEY REFERENCES sessions(id) ON DELETE CASCADE,
			enabled BOOLEAN NOT NULL DEFAULT TRUE,
			interval_minutes INT NOT NULL CHECK (interval_minutes > 0),
			next_due_at TIMESTAMPTZ,
			last_sent_at TIMESTAMPTZ
		);
	`)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
