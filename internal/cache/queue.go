// internal/cache/queue.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jason-s-yu/scoreroom/internal/models"
	"github.com/jason-s-yu/scoreroom/internal/store"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list the historian drains.
const DefaultQueueName = "scoreroom_audit"

// Queue operations.
const (
	OpAppend = "append"
	OpPurge  = "purge"
)

// AuditRecord is one message on the audit queue.
type AuditRecord struct {
	Op      string              `json:"op"`
	RoomID  string              `json:"room_id"`
	Entries []models.AuditEntry `json:"entries,omitempty"`
}

// AuditQueue is an AuditLog whose writes go through a Redis list for the
// historian to persist in batches. Reads are served by reader, the store the
// historian writes into.
type AuditQueue struct {
	rdb    *redis.Client
	queue  string
	reader store.AuditLog
}

func NewAuditQueue(rdb *redis.Client, queue string, reader store.AuditLog) *AuditQueue {
	if queue == "" {
		queue = DefaultQueueName
	}
	return &AuditQueue{rdb: rdb, queue: queue, reader: reader}
}

// Name is the list key records are pushed to.
func (q *AuditQueue) Name() string { return q.queue }

func (q *AuditQueue) push(ctx context.Context, rec AuditRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal AuditRecord: %w", err)
	}
	if err := q.rdb.RPush(ctx, q.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", q.queue, err)
	}
	return nil
}

func (q *AuditQueue) AppendAudit(ctx context.Context, entries ...models.AuditEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return q.push(ctx, AuditRecord{Op: OpAppend, RoomID: entries[0].RoomID, Entries: entries})
}

// PurgeAudit is queued behind any pending appends for the room so the
// historian applies them in order.
func (q *AuditQueue) PurgeAudit(ctx context.Context, roomID string) error {
	return q.push(ctx, AuditRecord{Op: OpPurge, RoomID: roomID})
}

func (q *AuditQueue) ListAudit(ctx context.Context, roomID string, limit int) ([]models.AuditEntry, error) {
	return q.reader.ListAudit(ctx, roomID, limit)
}
