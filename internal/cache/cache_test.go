// internal/cache/cache_test.go
package cache

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/scoreroom/internal/models"
	"github.com/jason-s-yu/scoreroom/internal/store"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClient connects to REDIS_ADDR, or skips.
func testClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skipping redis integration test")
	}
	db, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	rdb, err := ConnectRedis(context.Background(), addr, db)
	require.NoError(t, err)
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func testRoom() *models.Room {
	return &models.Room{
		ID:           uuid.NewString()[:8],
		OwnerID:      "A",
		Status:       models.StatusActive,
		Mode:         models.ModeBet,
		Players:      []*models.Player{{Identity: "A"}, {Identity: "B"}},
		LastActiveAt: time.Now(),
	}
}

func TestRedisRoomUpdateAndConflict(t *testing.T) {
	s := NewRoomStore(testClient(t))
	ctx := context.Background()
	r := testRoom()
	require.NoError(t, s.CreateRoom(ctx, r))
	assert.ErrorIs(t, s.CreateRoom(ctx, r), store.ErrExists)

	committed, err := s.UpdateRoom(ctx, r.ID, func(txn *store.Txn) error {
		txn.Room.Players[0].Score = -2
		txn.Room.Pot = 2
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), committed.Pot)

	_, err = s.UpdateRoom(ctx, r.ID, func(txn *store.Txn) error {
		_, inner := s.UpdateRoom(ctx, r.ID, func(t2 *store.Txn) error {
			t2.Room.Name = "inner"
			return nil
		})
		require.NoError(t, inner)
		return nil
	})
	assert.ErrorIs(t, err, store.ErrConflict)

	_, err = s.UpdateRoom(ctx, "missing-"+r.ID, func(*store.Txn) error { return nil })
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRedisSettleAndReap(t *testing.T) {
	s := NewRoomStore(testClient(t))
	ctx := context.Background()
	r := testRoom()
	r.LastActiveAt = time.Now().Add(-2 * time.Hour)
	require.NoError(t, s.CreateRoom(ctx, r))

	identity := "player-" + r.ID
	snap := &models.HistorySnapshot{ID: uuid.New(), RoomID: r.ID, SettledAt: time.Now(), FinalPlayers: []models.Player{{Identity: identity}}}
	_, err := s.UpdateRoom(ctx, r.ID, func(txn *store.Txn) error {
		txn.Archive(snap)
		txn.Room.Status = models.StatusSettled
		return nil
	})
	require.NoError(t, err)

	hist, err := s.ListHistory(ctx, identity)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, snap.ID, hist[0].ID)

	// the stored room kept its old lastActiveAt, so it is already past the cutoff
	n, err := s.DeleteSettledBefore(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 1)
	_, err = s.GetRoom(ctx, r.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRedisAuditList(t *testing.T) {
	s := NewRoomStore(testClient(t))
	ctx := context.Background()
	roomID := uuid.NewString()[:8]
	for _, c := range []string{"one", "two", "three"} {
		require.NoError(t, s.AppendAudit(ctx, models.AuditEntry{ID: uuid.New(), RoomID: roomID, Content: c}))
	}
	got, err := s.ListAudit(ctx, roomID, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "three", got[0].Content)
	assert.Equal(t, "two", got[1].Content)
	require.NoError(t, s.PurgeAudit(ctx, roomID))
	got, err = s.ListAudit(ctx, roomID, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRedisNotifierRoundTrip(t *testing.T) {
	rdb := testClient(t)
	n := NewNotifier(rdb, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	roomID := uuid.NewString()[:8]

	events, stop, err := n.Subscribe(ctx, roomID)
	require.NoError(t, err)
	defer stop()

	require.NoError(t, n.Publish(ctx, models.RoomEvent{Type: models.EventRoomUpdate, RoomID: roomID, TS: 7}))
	select {
	case ev := <-events:
		assert.Equal(t, roomID, ev.RoomID)
		assert.Equal(t, int64(7), ev.TS)
	case <-ctx.Done():
		t.Fatal("no event received")
	}
}

func TestAuditQueuePushesRecords(t *testing.T) {
	rdb := testClient(t)
	ctx := context.Background()
	name := "test_audit_" + uuid.NewString()
	q := NewAuditQueue(rdb, name, store.NewMemory())
	t.Cleanup(func() { rdb.Del(context.Background(), name) })

	require.NoError(t, q.AppendAudit(ctx, models.AuditEntry{ID: uuid.New(), RoomID: "R"}))
	require.NoError(t, q.PurgeAudit(ctx, "R"))
	n, err := rdb.LLen(ctx, name).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

var _ store.Backend = (*RoomStore)(nil)
