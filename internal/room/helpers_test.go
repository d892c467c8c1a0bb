// internal/room/helpers_test.go
package room

import (
	"context"
	"io"
	"sync/atomic"
	"testing"

	"github.com/jason-s-yu/scoreroom/internal/models"
	"github.com/jason-s-yu/scoreroom/internal/store"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestEngine(t *testing.T) (*Engine, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	return NewEngine(mem, mem, Options{MaxRetries: 50, Logger: quietLogger()}), mem
}

// seedRoom creates a room owned by ids[0] and joins the rest in order.
func seedRoom(t *testing.T, e *Engine, mode models.RoomMode, ids ...string) string {
	t.Helper()
	ctx := context.Background()
	r, err := e.CreateRoom(ctx, CreateParams{Name: "table", Mode: mode, Identity: ids[0], DisplayName: ids[0]})
	require.NoError(t, err)
	for _, id := range ids[1:] {
		_, _, err := e.JoinRoom(ctx, r.ID, id, id, "")
		require.NoError(t, err)
	}
	return r.ID
}

func scores(t *testing.T, e *Engine, roomID string) map[string]int64 {
	t.Helper()
	r, err := e.GetRoom(context.Background(), roomID)
	require.NoError(t, err)
	out := make(map[string]int64, len(r.Players))
	for _, p := range r.Players {
		out[p.Identity] = p.Score
	}
	return out
}

// flakyStore reports a conflict for the first n updates after running the
// callback against a throwaway copy.
type flakyStore struct {
	*store.Memory
	conflicts atomic.Int32
	calls     atomic.Int32
}

func (f *flakyStore) UpdateRoom(ctx context.Context, id string, fn func(*store.Txn) error) (*models.Room, error) {
	f.calls.Add(1)
	if f.conflicts.Add(-1) >= 0 {
		r, err := f.Memory.GetRoom(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := fn(store.NewTxn(r)); err != nil {
			return nil, err
		}
		return nil, store.ErrConflict
	}
	return f.Memory.UpdateRoom(ctx, id, fn)
}
