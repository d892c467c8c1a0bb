// internal/room/engine.go

// Package room implements the room ledger and lifecycle: score transfers,
// the bet-mode pot, membership with ownership succession, settlement, and the
// controller that dispatches commands into single-room transactions.
package room

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/jason-s-yu/scoreroom/internal/models"
	"github.com/jason-s-yu/scoreroom/internal/store"
	"github.com/sirupsen/logrus"
)

// DefaultMaxRetries bounds optimistic retries per operation.
const DefaultMaxRetries = 5

// Options configures an Engine. Zero values fall back to defaults.
type Options struct {
	MaxRetries int
	Now        func() time.Time
	Logger     *logrus.Logger
}

// Engine runs every room mutation as one transaction against the room store.
type Engine struct {
	rooms      store.RoomStore
	profiles   store.ProfileStore
	maxRetries int
	now        func() time.Time
	log        *logrus.Logger
	newRoomID  func() string
}

// NewEngine builds an engine over the given stores. profiles may be nil, in
// which case the advisory active-room check at create is skipped.
func NewEngine(rooms store.RoomStore, profiles store.ProfileStore, opts Options) *Engine {
	e := &Engine{
		rooms:      rooms,
		profiles:   profiles,
		maxRetries: opts.MaxRetries,
		now:        opts.Now,
		log:        opts.Logger,
		newRoomID:  newRoomCode,
	}
	if e.maxRetries <= 0 {
		e.maxRetries = DefaultMaxRetries
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.log == nil {
		e.log = logrus.StandardLogger()
	}
	return e
}

// GetRoom returns the committed room. Reads stay valid after settlement.
func (e *Engine) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	r, err := e.rooms.GetRoom(ctx, roomID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	return r, err
}

// mutate runs fn as a read-validate-mutate-write transaction on one room and
// retries the whole thing from the read when the store reports a conflict.
// Caller cancellation does not reach the store: once started, a transaction
// runs to commit or abort.
func (e *Engine) mutate(ctx context.Context, roomID string, fn func(txn *store.Txn) error) (*models.Room, error) {
	ctx = context.WithoutCancel(ctx)
	for attempt := 1; attempt <= e.maxRetries; attempt++ {
		committed, err := e.rooms.UpdateRoom(ctx, roomID, func(txn *store.Txn) error {
			if err := fn(txn); err != nil {
				return err
			}
			if txn.Deleted() {
				return nil
			}
			txn.Room.LastActiveAt = e.now()
			return checkInvariants(txn.Room)
		})
		switch {
		case err == nil:
			return committed, nil
		case errors.Is(err, store.ErrNotFound):
			return nil, ErrRoomNotFound
		case errors.Is(err, store.ErrConflict):
			e.log.WithFields(logrus.Fields{
				"room_id": roomID,
				"attempt": attempt,
			}).Debug("room write conflict, retrying")
			backoff(attempt)
		default:
			return nil, err
		}
	}
	return nil, ErrTransactionConflict
}

func backoff(attempt int) {
	d := time.Duration(rand.Intn(attempt*1000)+500) * time.Microsecond
	if d > 5*time.Millisecond {
		d = 5 * time.Millisecond
	}
	time.Sleep(d)
}

// checkInvariants rejects a write that would break conservation, membership
// uniqueness, capacity, pot exclusivity or owner validity.
func checkInvariants(r *models.Room) error {
	if b := r.Balance(); b != 0 {
		return fmt.Errorf("room %s: balance would be %d", r.ID, b)
	}
	if r.Mode != models.ModeBet && r.Pot != 0 {
		return fmt.Errorf("room %s: pot %d in %s mode", r.ID, r.Pot, r.Mode)
	}
	if r.Pot < 0 {
		return fmt.Errorf("room %s: negative pot %d", r.ID, r.Pot)
	}
	if len(r.Players) > models.MaxPlayers {
		return fmt.Errorf("room %s: %d players exceeds capacity", r.ID, len(r.Players))
	}
	seen := make(map[string]bool, len(r.Players))
	for _, p := range r.Players {
		if seen[p.Identity] {
			return fmt.Errorf("room %s: duplicate player %s", r.ID, p.Identity)
		}
		seen[p.Identity] = true
	}
	if r.Status == models.StatusActive && r.ActivePlayer(r.OwnerID) == nil {
		return fmt.Errorf("room %s: owner %s is not an active player", r.ID, r.OwnerID)
	}
	return nil
}

const roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// newRoomCode returns a 6-character join code.
func newRoomCode() string {
	b := make([]byte, 6)
	for i := range b {
		b[i] = roomCodeAlphabet[rand.Intn(len(roomCodeAlphabet))]
	}
	return string(b)
}
