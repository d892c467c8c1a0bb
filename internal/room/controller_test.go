// internal/room/controller_test.go
package room

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jason-s-yu/scoreroom/internal/models"
	"github.com/jason-s-yu/scoreroom/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.RoomEvent
}

func (n *recordingNotifier) Publish(ctx context.Context, ev models.RoomEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return nil
}

func (n *recordingNotifier) last() models.RoomEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.events[len(n.events)-1]
}

type brokenAudit struct{}

func (brokenAudit) AppendAudit(ctx context.Context, entries ...models.AuditEntry) error {
	return errors.New("audit sink down")
}

func (brokenAudit) ListAudit(ctx context.Context, roomID string, limit int) ([]models.AuditEntry, error) {
	return nil, errors.New("audit sink down")
}

func (brokenAudit) PurgeAudit(ctx context.Context, roomID string) error {
	return errors.New("audit sink down")
}

func newTestController(t *testing.T) (*Controller, *store.Memory, *recordingNotifier) {
	t.Helper()
	e, mem := newTestEngine(t)
	n := &recordingNotifier{}
	c := NewController(ControllerConfig{
		Engine:   e,
		Audit:    mem,
		Profiles: mem,
		Notifier: n,
		Logger:   quietLogger(),
	})
	return c, mem, n
}

func run(t *testing.T, c *Controller, cmd Command, caller string) *Result {
	t.Helper()
	res, err := c.Execute(context.Background(), cmd, caller)
	require.NoError(t, err)
	c.Wait()
	return res
}

func TestControllerCreateAndJoin(t *testing.T) {
	c, mem, n := newTestController(t)
	ctx := context.Background()
	require.NoError(t, mem.PutProfile(ctx, models.Profile{Identity: "A", DisplayName: "Alice", AvatarRef: "a.png"}))

	res := run(t, c, CreateCommand{RoomName: "friday", Mode: models.ModeNormal}, "A")
	assert.Equal(t, ActionCreate, res.Action)
	require.NotNil(t, res.Room)
	assert.Equal(t, "Alice", res.Room.Players[0].DisplayName)
	assert.Equal(t, "a.png", res.Room.Players[0].AvatarRef)

	prof, err := mem.GetProfile(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, res.RoomID, prof.CurrentRoomID)

	run(t, c, JoinCommand{RoomID: res.RoomID, DisplayName: "Bob"}, "B")
	prof, err = mem.GetProfile(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, res.RoomID, prof.CurrentRoomID)

	entries, err := mem.ListAudit(ctx, res.RoomID, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.AuditJoin, entries[0].Kind)
	assert.Equal(t, "Bob joined the room", entries[0].Content)
	assert.Equal(t, models.AuditCreate, entries[1].Kind)

	ev := n.last()
	assert.Equal(t, models.EventRoomUpdate, ev.Type)
	assert.Len(t, ev.Room.Players, 2)
}

func TestControllerTransferAudit(t *testing.T) {
	c, mem, _ := newTestController(t)
	ctx := context.Background()
	res := run(t, c, CreateCommand{Mode: models.ModeNormal, DisplayName: "Alice"}, "A")
	id := res.RoomID
	run(t, c, JoinCommand{RoomID: id, DisplayName: "Bob"}, "B")

	res = run(t, c, TransferCommand{RoomID: id, ToIdentity: "B", Amount: 12}, "A")
	assert.Equal(t, int64(12), res.Amount)

	entries, err := mem.ListAudit(ctx, id, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, models.AuditTransfer, e.Kind)
	assert.Equal(t, "A", e.ActorIdentity)
	assert.Equal(t, "B", e.CounterpartyIdentity)
	assert.Equal(t, "Bob", e.CounterpartyDisplayName)
	assert.Equal(t, "Alice transferred 12 to Bob", e.Content)

	res = run(t, c, BatchTransferCommand{RoomID: id, Transfers: []TransferItem{{"B", 3}, {"B", 4}}}, "A")
	assert.Equal(t, int64(7), res.Amount)
	entries, err = mem.ListAudit(ctx, id, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 5)
}

func TestControllerRejectedActionLeavesNoTrace(t *testing.T) {
	c, mem, n := newTestController(t)
	ctx := context.Background()
	res := run(t, c, CreateCommand{Mode: models.ModeNormal}, "A")
	before := len(n.events)

	_, err := c.Execute(ctx, TransferCommand{RoomID: res.RoomID, ToIdentity: "ghost", Amount: 5}, "A")
	assert.ErrorIs(t, err, ErrUnknownPlayer)
	c.Wait()

	entries, err := mem.ListAudit(ctx, res.RoomID, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Len(t, n.events, before)
}

func TestControllerAuditFailureDoesNotRollBack(t *testing.T) {
	e, mem := newTestEngine(t)
	c := NewController(ControllerConfig{Engine: e, Audit: brokenAudit{}, Profiles: mem, Logger: quietLogger()})
	ctx := context.Background()

	res, err := c.Execute(ctx, CreateCommand{Mode: models.ModeNormal}, "A")
	require.NoError(t, err)
	_, err = c.Execute(ctx, JoinCommand{RoomID: res.RoomID}, "B")
	require.NoError(t, err)
	_, err = c.Execute(ctx, TransferCommand{RoomID: res.RoomID, ToIdentity: "B", Amount: 8}, "A")
	require.NoError(t, err)
	c.Wait()

	assert.Equal(t, int64(8), scores(t, e, res.RoomID)["B"])
}

func TestControllerBetRound(t *testing.T) {
	c, mem, _ := newTestController(t)
	ctx := context.Background()
	id := run(t, c, CreateCommand{Mode: models.ModeBet, AllInValue: 50}, "A").RoomID
	run(t, c, JoinCommand{RoomID: id}, "B")

	assert.Equal(t, int64(10), run(t, c, DepositCommand{RoomID: id, Amount: 10}, "A").Amount)
	assert.Equal(t, int64(10), run(t, c, FollowCommand{RoomID: id}, "B").Amount)
	assert.Equal(t, int64(50), run(t, c, AllInCommand{RoomID: id}, "A").Amount)
	run(t, c, PassCommand{RoomID: id}, "B")
	res := run(t, c, ClaimCommand{RoomID: id}, "A")
	assert.Equal(t, int64(70), res.Amount)
	assert.Equal(t, int64(10), res.Room.FindPlayer("A").Score)
	assert.Equal(t, int64(-10), res.Room.FindPlayer("B").Score)

	run(t, c, ConfigureCommand{RoomID: id, AllInValue: 80}, "A")

	entries, err := mem.ListAudit(ctx, id, 6)
	require.NoError(t, err)
	kinds := make([]models.AuditKind, 0, len(entries))
	for _, e := range entries {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []models.AuditKind{
		models.AuditConfig, models.AuditClaim, models.AuditPass,
		models.AuditAllIn, models.AuditFollow, models.AuditBet,
	}, kinds)
}

func TestControllerSettleClearsPointers(t *testing.T) {
	c, mem, n := newTestController(t)
	ctx := context.Background()
	id := run(t, c, CreateCommand{Mode: models.ModeNormal}, "A").RoomID
	run(t, c, JoinCommand{RoomID: id}, "B")

	res := run(t, c, SettleCommand{RoomID: id}, "A")
	assert.NotEmpty(t, res.SnapshotID)
	assert.Equal(t, models.StatusSettled, res.Room.Status)
	assert.Equal(t, models.EventRoomUpdate, n.last().Type)

	for _, id := range []string{"A", "B"} {
		prof, err := mem.GetProfile(ctx, id)
		require.NoError(t, err)
		assert.Empty(t, prof.CurrentRoomID)
	}

	// a settled room does not block a new one
	run(t, c, CreateCommand{Mode: models.ModeNormal}, "A")
}

func TestControllerClearDoesNotTouchNewerPointer(t *testing.T) {
	c, mem, _ := newTestController(t)
	ctx := context.Background()
	first := run(t, c, CreateCommand{Mode: models.ModeNormal}, "A").RoomID
	run(t, c, JoinCommand{RoomID: first}, "B")
	second := run(t, c, CreateCommand{Mode: models.ModeNormal}, "C").RoomID
	run(t, c, JoinCommand{RoomID: second}, "B")

	run(t, c, DismissCommand{RoomID: first}, "A")
	prof, err := mem.GetProfile(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, second, prof.CurrentRoomID)
}

func TestControllerDismissPurgesAudit(t *testing.T) {
	c, mem, n := newTestController(t)
	ctx := context.Background()
	id := run(t, c, CreateCommand{Mode: models.ModeNormal}, "A").RoomID
	run(t, c, JoinCommand{RoomID: id}, "B")

	_, err := c.Execute(ctx, DismissCommand{RoomID: id}, "B")
	assert.ErrorIs(t, err, ErrNotOwner)

	res := run(t, c, DismissCommand{RoomID: id}, "A")
	assert.True(t, res.Dissolved)

	entries, err := mem.ListAudit(ctx, id, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
	ev := n.last()
	assert.Equal(t, models.EventRoomDissolved, ev.Type)
	assert.Nil(t, ev.Room)
	assert.Equal(t, id, ev.RoomID)
}

func TestControllerLeave(t *testing.T) {
	c, mem, n := newTestController(t)
	ctx := context.Background()
	id := run(t, c, CreateCommand{Mode: models.ModeNormal, DisplayName: "Alice"}, "A").RoomID
	run(t, c, JoinCommand{RoomID: id, DisplayName: "Bob"}, "B")

	res := run(t, c, LeaveCommand{RoomID: id}, "A")
	assert.False(t, res.Dissolved)
	assert.Equal(t, "B", res.Room.OwnerID)
	entries, err := mem.ListAudit(ctx, id, 1)
	require.NoError(t, err)
	assert.Equal(t, "Alice left the room, Bob is now the owner", entries[0].Content)
	prof, err := mem.GetProfile(ctx, "A")
	require.NoError(t, err)
	assert.Empty(t, prof.CurrentRoomID)

	res = run(t, c, LeaveCommand{RoomID: id}, "B")
	assert.True(t, res.Dissolved)
	assert.Nil(t, res.Room)
	assert.Equal(t, models.EventRoomDissolved, n.last().Type)
	entries, err = mem.ListAudit(ctx, id, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestControllerRejoinAudit(t *testing.T) {
	c, mem, _ := newTestController(t)
	ctx := context.Background()
	id := run(t, c, CreateCommand{Mode: models.ModeNormal}, "A").RoomID
	run(t, c, JoinCommand{RoomID: id, DisplayName: "Bob"}, "B")
	run(t, c, TransferCommand{RoomID: id, ToIdentity: "B", Amount: 6}, "A")
	run(t, c, LeaveCommand{RoomID: id}, "B")
	run(t, c, JoinCommand{RoomID: id, DisplayName: "Bob"}, "B")

	entries, err := mem.ListAudit(ctx, id, 1)
	require.NoError(t, err)
	assert.Equal(t, "Bob rejoined the room with 6", entries[0].Content)
}
