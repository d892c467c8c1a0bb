// internal/database/rooms.go
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/scoreroom/internal/models"
	"github.com/jason-s-yu/scoreroom/internal/store"
)

func (s *Store) CreateRoom(ctx context.Context, room *models.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("marshal room: %w", err)
	}
	q := `
		INSERT INTO rooms (id, status, version, data, last_active_at)
		VALUES ($1, $2, 1, $3, $4)
	`
	_, err = s.pool.Exec(ctx, q, room.ID, room.Status, data, room.LastActiveAt)
	return mapError(err)
}

func (s *Store) GetRoom(ctx context.Context, id string) (*models.Room, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM rooms WHERE id=$1`, id).Scan(&data)
	if err != nil {
		return nil, mapError(err)
	}
	var r models.Room
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode room %s: %w", id, err)
	}
	return &r, nil
}

// UpdateRoom reads the row and its version, runs fn, then writes back with a
// compare-and-swap on the version. Any staged snapshot is inserted in the same
// transaction.
func (s *Store) UpdateRoom(ctx context.Context, id string, fn func(*store.Txn) error) (*models.Room, error) {
	var committed *models.Room
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var (
			data    []byte
			version int64
		)
		if err := tx.QueryRow(ctx, `SELECT data, version FROM rooms WHERE id=$1`, id).Scan(&data, &version); err != nil {
			return err
		}
		var r models.Room
		if err := json.Unmarshal(data, &r); err != nil {
			return fmt.Errorf("decode room %s: %w", id, err)
		}

		txn := store.NewTxn(&r)
		if err := fn(txn); err != nil {
			return err
		}

		if snap := txn.Snapshot(); snap != nil {
			if err := insertSnapshot(ctx, tx, snap); err != nil {
				return err
			}
		}

		if txn.Deleted() {
			ct, err := tx.Exec(ctx, `DELETE FROM rooms WHERE id=$1 AND version=$2`, id, version)
			if err != nil {
				return err
			}
			if ct.RowsAffected() == 0 {
				return store.ErrConflict
			}
			return nil
		}

		out, err := json.Marshal(txn.Room)
		if err != nil {
			return fmt.Errorf("marshal room: %w", err)
		}
		q := `
			UPDATE rooms
			SET data=$1, status=$2, last_active_at=$3, version=version+1
			WHERE id=$4 AND version=$5
		`
		ct, err := tx.Exec(ctx, q, out, txn.Room.Status, txn.Room.LastActiveAt, id, version)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return store.ErrConflict
		}
		committed = txn.Room
		return nil
	})
	if err != nil {
		return nil, mapError(err)
	}
	return committed, nil
}

func (s *Store) DeleteRoom(ctx context.Context, id string) error {
	ct, err := s.pool.Exec(ctx, `DELETE FROM rooms WHERE id=$1`, id)
	if err != nil {
		return mapError(err)
	}
	if ct.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteSettledBefore removes settled rooms idle since before cutoff, along
// with their audit entries.
func (s *Store) DeleteSettledBefore(ctx context.Context, cutoff time.Time) (int, error) {
	var n int
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			DELETE FROM rooms
			WHERE status='settled' AND last_active_at < $1
			RETURNING id
		`, cutoff)
		if err != nil {
			return err
		}
		ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return err
		}
		n = len(ids)
		if n == 0 {
			return nil
		}
		_, err = tx.Exec(ctx, `DELETE FROM audit_entries WHERE room_id = ANY($1)`, ids)
		return err
	})
	return n, mapError(err)
}

func insertSnapshot(ctx context.Context, tx pgx.Tx, snap *models.HistorySnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	q := `
		INSERT INTO history_snapshots (id, room_id, settled_at, data)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := tx.Exec(ctx, q, snap.ID, snap.RoomID, snap.SettledAt, data); err != nil {
		return err
	}
	for _, p := range snap.FinalPlayers {
		q := `INSERT INTO history_players (snapshot_id, identity, score) VALUES ($1, $2, $3)`
		if _, err := tx.Exec(ctx, q, snap.ID, p.Identity, p.Score); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) GetHistory(ctx context.Context, id uuid.UUID) (*models.HistorySnapshot, error) {
	var data []byte
	if err := s.pool.QueryRow(ctx, `SELECT data FROM history_snapshots WHERE id=$1`, id).Scan(&data); err != nil {
		return nil, mapError(err)
	}
	var h models.HistorySnapshot
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", id, err)
	}
	return &h, nil
}

// ListHistory returns every snapshot identity appears in, most recent first.
func (s *Store) ListHistory(ctx context.Context, identity string) ([]models.HistorySnapshot, error) {
	q := `
		SELECT h.data
		FROM history_snapshots h
		JOIN history_players p ON p.snapshot_id = h.id
		WHERE p.identity = $1
		ORDER BY h.settled_at DESC
	`
	rows, err := s.pool.Query(ctx, q, identity)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []models.HistorySnapshot
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var h models.HistorySnapshot
		if err := json.Unmarshal(data, &h); err != nil {
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
