// internal/room/membership_test.go
package room

import (
	"context"
	"fmt"
	"testing"

	"github.com/jason-s-yu/scoreroom/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRoom(t *testing.T) {
	e, mem := newTestEngine(t)
	ctx := context.Background()

	r, err := e.CreateRoom(ctx, CreateParams{Name: "friday", Mode: models.ModeBet, AllInValue: 40, Identity: "A", DisplayName: "Alice"})
	require.NoError(t, err)
	assert.Len(t, r.ID, 6)
	assert.Equal(t, models.StatusActive, r.Status)
	assert.Equal(t, "A", r.OwnerID)
	assert.Equal(t, int64(40), r.AllInValue)
	require.Len(t, r.Players, 1)
	assert.Equal(t, int64(0), r.Players[0].Score)

	stored, err := mem.GetRoom(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", stored.Players[0].DisplayName)
}

func TestCreateRoomNormalModeIgnoresAllIn(t *testing.T) {
	e, _ := newTestEngine(t)
	r, err := e.CreateRoom(context.Background(), CreateParams{Mode: models.ModeNormal, AllInValue: 40, Identity: "A"})
	require.NoError(t, err)
	assert.Zero(t, r.AllInValue)
	assert.Equal(t, r.ID, r.Name)
}

func TestCreateRoomValidation(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	_, err := e.CreateRoom(ctx, CreateParams{Mode: "poker", Identity: "A"})
	assert.ErrorIs(t, err, ErrInvalidMode)
	_, err = e.CreateRoom(ctx, CreateParams{Mode: models.ModeBet, AllInValue: -1, Identity: "A"})
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestCreateRoomRetriesCodeCollision(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	codes := []string{"AAAAAA", "AAAAAA", "BBBBBB"}
	e.newRoomID = func() string {
		c := codes[0]
		codes = codes[1:]
		return c
	}
	first, err := e.CreateRoom(ctx, CreateParams{Mode: models.ModeNormal, Identity: "A"})
	require.NoError(t, err)
	second, err := e.CreateRoom(ctx, CreateParams{Mode: models.ModeNormal, Identity: "B"})
	require.NoError(t, err)
	assert.Equal(t, "AAAAAA", first.ID)
	assert.Equal(t, "BBBBBB", second.ID)
}

func TestCreateRoomAlreadyInActiveRoom(t *testing.T) {
	e, mem := newTestEngine(t)
	ctx := context.Background()
	id := seedRoom(t, e, models.ModeNormal, "A")
	require.NoError(t, mem.SetCurrentRoom(ctx, "A", id))

	_, err := e.CreateRoom(ctx, CreateParams{Mode: models.ModeNormal, Identity: "A"})
	assert.ErrorIs(t, err, ErrAlreadyInActiveRoom)

	// a stale pointer to a room the caller already left does not block
	_, _, err = e.JoinRoom(ctx, id, "B", "B", "")
	require.NoError(t, err)
	_, err = e.LeaveRoom(ctx, id, "A")
	require.NoError(t, err)
	_, err = e.CreateRoom(ctx, CreateParams{Mode: models.ModeNormal, Identity: "A"})
	assert.NoError(t, err)
}

func TestJoinRoom(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	id := seedRoom(t, e, models.ModeNormal, "A")

	r, rejoined, err := e.JoinRoom(ctx, id, "B", "Bob", "bob.png")
	require.NoError(t, err)
	assert.False(t, rejoined)
	require.Len(t, r.Players, 2)
	assert.Equal(t, "B", r.Players[1].Identity)

	_, _, err = e.JoinRoom(ctx, id, "B", "Bob", "bob.png")
	assert.ErrorIs(t, err, ErrAlreadyMember)

	_, _, err = e.JoinRoom(ctx, "MISSING", "C", "C", "")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestJoinRoomFull(t *testing.T) {
	e, _ := newTestEngine(t)
	ids := make([]string, models.MaxPlayers)
	for i := range ids {
		ids[i] = fmt.Sprintf("P%d", i)
	}
	id := seedRoom(t, e, models.ModeNormal, ids...)
	_, _, err := e.JoinRoom(context.Background(), id, "late", "late", "")
	assert.ErrorIs(t, err, ErrRoomFull)
}

func TestRejoinPreservesScore(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	id := seedRoom(t, e, models.ModeNormal, "A", "B")
	_, err := e.Transfer(ctx, id, "A", "B", 15)
	require.NoError(t, err)

	_, err = e.LeaveRoom(ctx, id, "B")
	require.NoError(t, err)
	r, rejoined, err := e.JoinRoom(ctx, id, "B", "Bobby", "new.png")
	require.NoError(t, err)
	assert.True(t, rejoined)
	require.Len(t, r.Players, 2)
	b := r.FindPlayer("B")
	assert.False(t, b.IsExited)
	assert.Equal(t, int64(15), b.Score)
	assert.Equal(t, "Bobby", b.DisplayName)
	assert.Equal(t, "new.png", b.AvatarRef)
}

func TestJoinSettledRoom(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	id := seedRoom(t, e, models.ModeNormal, "A")
	_, _, err := e.Settle(ctx, id, "A")
	require.NoError(t, err)
	_, _, err = e.JoinRoom(ctx, id, "B", "B", "")
	assert.ErrorIs(t, err, ErrRoomNotActive)
}

func TestOwnerLeavesPassesOwnership(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	id := seedRoom(t, e, models.ModeNormal, "A", "B")

	res, err := e.LeaveRoom(ctx, id, "A")
	require.NoError(t, err)
	assert.False(t, res.Dissolved)
	assert.Equal(t, "B", res.NewOwner)
	assert.Equal(t, "B", res.Room.OwnerID)
	assert.Equal(t, models.StatusActive, res.Room.Status)
	assert.True(t, res.Room.FindPlayer("A").IsExited)
}

func TestSuccessionSkipsExitedPlayers(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	id := seedRoom(t, e, models.ModeNormal, "A", "B", "C", "D")

	_, err := e.LeaveRoom(ctx, id, "B")
	require.NoError(t, err)
	res, err := e.LeaveRoom(ctx, id, "A")
	require.NoError(t, err)
	assert.Equal(t, "C", res.Room.OwnerID)
}

func TestNonOwnerLeaveKeepsOwner(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	id := seedRoom(t, e, models.ModeNormal, "A", "B")

	res, err := e.LeaveRoom(ctx, id, "B")
	require.NoError(t, err)
	assert.Empty(t, res.NewOwner)
	assert.Equal(t, "A", res.Room.OwnerID)

	_, err = e.LeaveRoom(ctx, id, "B")
	assert.ErrorIs(t, err, ErrNotAMember)
}

func TestLastMemberLeaveDissolves(t *testing.T) {
	e, mem := newTestEngine(t)
	ctx := context.Background()
	id := seedRoom(t, e, models.ModeNormal, "A")

	res, err := e.LeaveRoom(ctx, id, "A")
	require.NoError(t, err)
	assert.True(t, res.Dissolved)
	assert.Nil(t, res.Room)

	_, err = mem.GetRoom(ctx, id)
	assert.Error(t, err)
	_, err = e.GetRoom(ctx, id)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestLastActiveMemberLeaveDissolvesWithExitedSlots(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	id := seedRoom(t, e, models.ModeNormal, "A", "B")
	_, err := e.Transfer(ctx, id, "A", "B", 9)
	require.NoError(t, err)

	_, err = e.LeaveRoom(ctx, id, "B")
	require.NoError(t, err)
	res, err := e.LeaveRoom(ctx, id, "A")
	require.NoError(t, err)
	assert.True(t, res.Dissolved)
}

func TestDismissRoom(t *testing.T) {
	e, mem := newTestEngine(t)
	ctx := context.Background()
	id := seedRoom(t, e, models.ModeNormal, "A", "B")

	_, err := e.DismissRoom(ctx, id, "B")
	assert.ErrorIs(t, err, ErrNotOwner)

	final, err := e.DismissRoom(ctx, id, "A")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDissolved, final.Status)
	assert.Len(t, final.Players, 2)

	_, err = e.GetRoom(ctx, id)
	assert.ErrorIs(t, err, ErrRoomNotFound)
	hist, err := mem.ListHistory(ctx, "A")
	require.NoError(t, err)
	assert.Empty(t, hist)
}
