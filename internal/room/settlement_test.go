// internal/room/settlement_test.go
package room

import (
	"context"
	"testing"

	"github.com/jason-s-yu/scoreroom/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettleWritesOneSnapshot(t *testing.T) {
	e, mem := newTestEngine(t)
	ctx := context.Background()
	id := seedRoom(t, e, models.ModeNormal, "A", "B", "C")
	_, err := e.Transfer(ctx, id, "A", "B", 30)
	require.NoError(t, err)

	snap, r, err := e.Settle(ctx, id, "A")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSettled, r.Status)
	assert.Equal(t, id, snap.RoomID)
	require.Len(t, snap.FinalPlayers, 3)

	_, _, err = e.Settle(ctx, id, "A")
	assert.ErrorIs(t, err, ErrRoomNotActive)

	hist, err := mem.ListHistory(ctx, "B")
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, snap.ID, hist[0].ID)
	got, err := mem.GetHistory(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, "table", got.RoomName)
}

func TestSettlePreconditions(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	id := seedRoom(t, e, models.ModeBet, "A", "B")

	_, _, err := e.Settle(ctx, id, "B")
	assert.ErrorIs(t, err, ErrNotOwner)

	_, _, err = e.Deposit(ctx, id, "A", DepositBet, 10)
	require.NoError(t, err)
	_, _, err = e.Settle(ctx, id, "A")
	assert.ErrorIs(t, err, ErrPotNotEmpty)

	_, _, err = e.ClaimPot(ctx, id, "B")
	require.NoError(t, err)
	_, _, err = e.Settle(ctx, id, "A")
	assert.NoError(t, err)
}

func TestSettledRoomIsImmutable(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	id := seedRoom(t, e, models.ModeBet, "A", "B")
	_, err := e.Configure(ctx, id, "A", 20)
	require.NoError(t, err)
	_, _, err = e.Deposit(ctx, id, "A", DepositBet, 10)
	require.NoError(t, err)
	_, _, err = e.ClaimPot(ctx, id, "B")
	require.NoError(t, err)
	_, _, err = e.Settle(ctx, id, "A")
	require.NoError(t, err)
	before := scores(t, e, id)

	_, err = e.Transfer(ctx, id, "A", "B", 1)
	assert.ErrorIs(t, err, ErrRoomClosed)
	_, err = e.BatchTransfer(ctx, id, "A", []TransferItem{{"B", 1}})
	assert.ErrorIs(t, err, ErrRoomClosed)
	for _, kind := range []DepositKind{DepositBet, DepositAllIn, DepositFollow} {
		_, _, err = e.Deposit(ctx, id, "A", kind, 1)
		assert.ErrorIs(t, err, ErrRoomClosed)
	}
	_, _, err = e.ClaimPot(ctx, id, "A")
	assert.ErrorIs(t, err, ErrRoomClosed)
	_, err = e.Pass(ctx, id, "A")
	assert.ErrorIs(t, err, ErrRoomClosed)

	assert.Equal(t, before, scores(t, e, id))
	r, err := e.GetRoom(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSettled, r.Status)
}

func TestSettledRoomMembersCanStillLeave(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	id := seedRoom(t, e, models.ModeNormal, "A", "B")
	_, _, err := e.Settle(ctx, id, "A")
	require.NoError(t, err)

	res, err := e.LeaveRoom(ctx, id, "A")
	require.NoError(t, err)
	assert.Equal(t, "B", res.Room.OwnerID)
	assert.Equal(t, models.StatusSettled, res.Room.Status)

	res, err = e.LeaveRoom(ctx, id, "B")
	require.NoError(t, err)
	assert.False(t, res.Dissolved, "settled rooms are left for the reaper")
	assert.Equal(t, models.StatusSettled, res.Room.Status)
	r, err := e.GetRoom(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, r.ActiveCount())
}

func TestSnapshotRanking(t *testing.T) {
	snap := models.HistorySnapshot{FinalPlayers: []models.Player{
		{Identity: "A", Score: -30},
		{Identity: "B", Score: 20},
		{Identity: "C", Score: 20},
		{Identity: "D", Score: -10},
		{Identity: "E", Score: 0},
	}}
	winners := snap.Winners("C")
	require.Len(t, winners, 2)
	assert.Equal(t, "C", winners[0].Identity)
	assert.Equal(t, "B", winners[1].Identity)

	losers := snap.Losers("D")
	require.Len(t, losers, 2)
	assert.Equal(t, "A", losers[0].Identity)
	assert.Equal(t, "D", losers[1].Identity)

	assert.Equal(t, "B", snap.Winners("nobody")[0].Identity)
}
