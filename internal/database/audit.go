// internal/database/audit.go
package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/scoreroom/internal/models"
)

const insertAuditQ = `
	INSERT INTO audit_entries (id, room_id, kind, actor_identity, amount, data, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (id) DO NOTHING
`

// AppendAudit inserts entries in one transaction. Re-delivered entries are
// ignored by id.
func (s *Store) AppendAudit(ctx context.Context, entries ...models.AuditEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return InsertAuditTx(ctx, tx, entries)
	})
}

// InsertAuditTx writes entries inside an existing transaction.
func InsertAuditTx(ctx context.Context, tx pgx.Tx, entries []models.AuditEntry) error {
	batch := &pgx.Batch{}
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal audit entry: %w", err)
		}
		batch.Queue(insertAuditQ, e.ID, e.RoomID, e.Kind, e.ActorIdentity, e.Amount, data, e.Timestamp)
	}
	return tx.SendBatch(ctx, batch).Close()
}

// ListAudit returns up to limit entries for the room, newest first.
func (s *Store) ListAudit(ctx context.Context, roomID string, limit int) ([]models.AuditEntry, error) {
	q := `SELECT data FROM audit_entries WHERE room_id=$1 ORDER BY seq DESC`
	args := []any{roomID}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	out := make([]models.AuditEntry, 0)
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var e models.AuditEntry
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("decode audit entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) PurgeAudit(ctx context.Context, roomID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM audit_entries WHERE room_id=$1`, roomID)
	return mapError(err)
}
