// internal/room/engine_test.go
package room

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jason-s-yu/scoreroom/internal/models"
	"github.com/jason-s-yu/scoreroom/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConflictIsRetried(t *testing.T) {
	fs := &flakyStore{Memory: store.NewMemory()}
	e := NewEngine(fs, fs, Options{MaxRetries: 3, Logger: quietLogger()})
	ctx := context.Background()
	id := seedRoom(t, e, models.ModeNormal, "A", "B")

	fs.calls.Store(0)
	fs.conflicts.Store(2)
	_, err := e.Transfer(ctx, id, "A", "B", 5)
	require.NoError(t, err)
	assert.Equal(t, int32(3), fs.calls.Load())
	assert.Equal(t, map[string]int64{"A": -5, "B": 5}, scores(t, e, id))
}

func TestConflictRetriesExhausted(t *testing.T) {
	fs := &flakyStore{Memory: store.NewMemory()}
	e := NewEngine(fs, fs, Options{MaxRetries: 3, Logger: quietLogger()})
	ctx := context.Background()
	id := seedRoom(t, e, models.ModeNormal, "A", "B")

	fs.conflicts.Store(10)
	_, err := e.Transfer(ctx, id, "A", "B", 5)
	assert.ErrorIs(t, err, ErrTransactionConflict)
	assert.Equal(t, map[string]int64{"A": 0, "B": 0}, scores(t, e, id))
}

func TestValidationErrorIsNotRetried(t *testing.T) {
	fs := &flakyStore{Memory: store.NewMemory()}
	e := NewEngine(fs, fs, Options{MaxRetries: 5, Logger: quietLogger()})
	id := seedRoom(t, e, models.ModeNormal, "A", "B")

	fs.calls.Store(0)
	_, err := e.Transfer(context.Background(), id, "A", "B", -1)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	assert.Equal(t, int32(1), fs.calls.Load())
}

func TestCancelledContextStillCommits(t *testing.T) {
	e, _ := newTestEngine(t)
	id := seedRoom(t, e, models.ModeNormal, "A", "B")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Transfer(ctx, id, "A", "B", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), scores(t, e, id)["B"])
}

func TestConcurrentTransfersConserve(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	id := seedRoom(t, e, models.ModeBet, "A", "B", "C", "D")

	var ok atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if _, err := e.Transfer(ctx, id, "A", "B", 1); err == nil {
					ok.Add(1)
				}
				_, _, _ = e.Deposit(ctx, id, "C", DepositBet, 2)
				_, _, _ = e.ClaimPot(ctx, id, "D")
			}
		}()
	}
	wg.Wait()

	r, err := e.GetRoom(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, r.Balance())
	assert.Equal(t, -ok.Load(), r.FindPlayer("A").Score)
	assert.Equal(t, ok.Load(), r.FindPlayer("B").Score)
	assert.Equal(t, -(r.FindPlayer("D").Score + r.Pot), r.FindPlayer("C").Score)
}

func TestIndependentRoomsProceedInParallel(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	first := seedRoom(t, e, models.ModeNormal, "A", "B")
	second := seedRoom(t, e, models.ModeNormal, "C", "D")

	var wg sync.WaitGroup
	for _, tc := range []struct{ room, from, to string }{{first, "A", "B"}, {second, "C", "D"}} {
		wg.Add(1)
		go func(room, from, to string) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				_, err := e.Transfer(ctx, room, from, to, 1)
				assert.NoError(t, err)
			}
		}(tc.room, tc.from, tc.to)
	}
	wg.Wait()
	assert.Equal(t, int64(20), scores(t, e, first)["B"])
	assert.Equal(t, int64(20), scores(t, e, second)["D"])
}

func TestCheckInvariants(t *testing.T) {
	base := func() *models.Room {
		return &models.Room{
			ID: "R", OwnerID: "A", Status: models.StatusActive, Mode: models.ModeBet,
			Players: []*models.Player{{Identity: "A", Score: -5}, {Identity: "B", Score: 5}},
		}
	}
	require.NoError(t, checkInvariants(base()))

	r := base()
	r.Pot = 1
	assert.Error(t, checkInvariants(r))

	r = base()
	r.Mode = models.ModeNormal
	r.Pot = 0
	r.Players[0].Score = -10
	r.Players[1].Score = 10
	assert.NoError(t, checkInvariants(r))

	r = base()
	r.Players[1].Identity = "A"
	assert.Error(t, checkInvariants(r))

	r = base()
	r.Players[0].IsExited = true
	assert.Error(t, checkInvariants(r))
}
