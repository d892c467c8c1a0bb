// internal/database/db.go
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/scoreroom/internal/store"
)

// ConnectDB opens a pgx pool against connStr and pings it.
func ConnectDB(ctx context.Context, connStr string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to parse pgx config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS rooms (
	id             TEXT PRIMARY KEY,
	status         TEXT NOT NULL,
	version        BIGINT NOT NULL DEFAULT 1,
	data           JSONB NOT NULL,
	last_active_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS rooms_settled_idx ON rooms (last_active_at) WHERE status = 'settled';

CREATE TABLE IF NOT EXISTS history_snapshots (
	id         UUID PRIMARY KEY,
	room_id    TEXT NOT NULL,
	settled_at TIMESTAMPTZ NOT NULL,
	data       JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS history_players (
	snapshot_id UUID NOT NULL REFERENCES history_snapshots (id) ON DELETE CASCADE,
	identity    TEXT NOT NULL,
	score       BIGINT NOT NULL,
	PRIMARY KEY (snapshot_id, identity)
);
CREATE INDEX IF NOT EXISTS history_players_identity_idx ON history_players (identity);

CREATE TABLE IF NOT EXISTS audit_entries (
	seq            BIGSERIAL PRIMARY KEY,
	id             UUID NOT NULL UNIQUE,
	room_id        TEXT NOT NULL,
	kind           TEXT NOT NULL,
	actor_identity TEXT NOT NULL,
	amount         BIGINT NOT NULL DEFAULT 0,
	data           JSONB NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS audit_entries_room_idx ON audit_entries (room_id, seq DESC);

CREATE TABLE IF NOT EXISTS users (
	id           UUID PRIMARY KEY,
	email        TEXT NOT NULL UNIQUE,
	password     TEXT NOT NULL,
	is_ephemeral BOOLEAN NOT NULL DEFAULT FALSE,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS profiles (
	identity        TEXT PRIMARY KEY,
	display_name    TEXT NOT NULL DEFAULT '',
	avatar_ref      TEXT NOT NULL DEFAULT '',
	current_room_id TEXT NOT NULL DEFAULT ''
);
`

// Migrate creates any missing tables and indexes.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// Store implements the room, history, audit, profile and user contracts on
// Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an open pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pool exposes the underlying pool, mainly for batch writers.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// SQLSTATE codes mapped onto store errors.
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// mapError translates driver errors into store sentinels, leaving everything
// else (including domain errors returned from callbacks) untouched.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeSerializationFailure, codeDeadlockDetected:
			return fmt.Errorf("%w: %s", store.ErrConflict, pgErr.Message)
		case codeUniqueViolation:
			return fmt.Errorf("%w: %s", store.ErrExists, pgErr.ConstraintName)
		}
	}
	return err
}
