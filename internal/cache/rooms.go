// internal/cache/rooms.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/scoreroom/internal/models"
	"github.com/jason-s-yu/scoreroom/internal/store"
	"github.com/redis/go-redis/v9"
)

// RoomStore keeps rooms, history, audit lists, profiles and users in Redis.
// Room updates WATCH the room key, so a concurrent writer aborts the EXEC and
// the attempt reports store.ErrConflict.
type RoomStore struct {
	rdb *redis.Client
}

func NewRoomStore(rdb *redis.Client) *RoomStore {
	return &RoomStore{rdb: rdb}
}

func (s *RoomStore) CreateRoom(ctx context.Context, room *models.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("marshal room: %w", err)
	}
	ok, err := s.rdb.SetNX(ctx, roomKey(room.ID), data, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return store.ErrExists
	}
	return nil
}

func (s *RoomStore) GetRoom(ctx context.Context, id string) (*models.Room, error) {
	return getRoom(ctx, s.rdb, id)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func getRoom(ctx context.Context, c getter, id string) (*models.Room, error) {
	data, err := c.Get(ctx, roomKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var r models.Room
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode room %s: %w", id, err)
	}
	return &r, nil
}

func (s *RoomStore) UpdateRoom(ctx context.Context, id string, fn func(*store.Txn) error) (*models.Room, error) {
	key := roomKey(id)
	var committed *models.Room
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		r, err := getRoom(ctx, tx, id)
		if err != nil {
			return err
		}
		txn := store.NewTxn(r)
		if err := fn(txn); err != nil {
			return err
		}

		var snapData []byte
		snap := txn.Snapshot()
		if snap != nil {
			if snapData, err = json.Marshal(snap); err != nil {
				return fmt.Errorf("marshal snapshot: %w", err)
			}
		}
		var roomData []byte
		if !txn.Deleted() {
			if roomData, err = json.Marshal(txn.Room); err != nil {
				return fmt.Errorf("marshal room: %w", err)
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if snap != nil {
				pipe.Set(ctx, historyKey(snap.ID.String()), snapData, 0)
				score := float64(snap.SettledAt.UnixMilli())
				for _, p := range snap.FinalPlayers {
					pipe.ZAdd(ctx, playerHistoryKey(p.Identity), redis.Z{Score: score, Member: snap.ID.String()})
				}
			}
			if txn.Deleted() {
				pipe.Del(ctx, key)
				pipe.ZRem(ctx, settledRoomsKey, id)
				return nil
			}
			pipe.Set(ctx, key, roomData, 0)
			if txn.Room.Status == models.StatusSettled {
				pipe.ZAdd(ctx, settledRoomsKey, redis.Z{Score: float64(txn.Room.LastActiveAt.Unix()), Member: id})
			}
			return nil
		})
		if err != nil {
			return err
		}
		if !txn.Deleted() {
			committed = txn.Room
		}
		return nil
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return nil, store.ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return committed, nil
}

func (s *RoomStore) DeleteRoom(ctx context.Context, id string) error {
	n, err := s.rdb.Del(ctx, roomKey(id)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return s.rdb.ZRem(ctx, settledRoomsKey, id).Err()
}

// DeleteSettledBefore removes settled rooms idle since before cutoff together
// with their audit lists.
func (s *RoomStore) DeleteSettledBefore(ctx context.Context, cutoff time.Time) (int, error) {
	ids, err := s.rdb.ZRangeByScore(ctx, settledRoomsKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff.Unix(), 10),
	}).Result()
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	keys := make([]string, 0, 2*len(ids))
	members := make([]any, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, roomKey(id), auditKey(id))
		members = append(members, id)
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		pipe.ZRem(ctx, settledRoomsKey, members...)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

func (s *RoomStore) GetHistory(ctx context.Context, id uuid.UUID) (*models.HistorySnapshot, error) {
	data, err := s.rdb.Get(ctx, historyKey(id.String())).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var h models.HistorySnapshot
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", id, err)
	}
	return &h, nil
}

// ListHistory returns the identity's snapshots, most recent first.
func (s *RoomStore) ListHistory(ctx context.Context, identity string) ([]models.HistorySnapshot, error) {
	ids, err := s.rdb.ZRevRange(ctx, playerHistoryKey(identity), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = historyKey(id)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]models.HistorySnapshot, 0, len(vals))
	for _, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var h models.HistorySnapshot
		if err := json.Unmarshal([]byte(raw), &h); err != nil {
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
		out = append(out, h)
	}
	return out, nil
}

func (s *RoomStore) AppendAudit(ctx context.Context, entries ...models.AuditEntry) error {
	if len(entries) == 0 {
		return nil
	}
	vals := make([]any, 0, len(entries))
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal audit entry: %w", err)
		}
		vals = append(vals, data)
	}
	return s.rdb.RPush(ctx, auditKey(entries[0].RoomID), vals...).Err()
}

// ListAudit returns up to limit entries, newest first.
func (s *RoomStore) ListAudit(ctx context.Context, roomID string, limit int) ([]models.AuditEntry, error) {
	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}
	raw, err := s.rdb.LRange(ctx, auditKey(roomID), start, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]models.AuditEntry, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var e models.AuditEntry
		if err := json.Unmarshal([]byte(raw[i]), &e); err != nil {
			return nil, fmt.Errorf("decode audit entry: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *RoomStore) PurgeAudit(ctx context.Context, roomID string) error {
	return s.rdb.Del(ctx, auditKey(roomID)).Err()
}
