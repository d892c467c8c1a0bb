// internal/room/settlement.go
package room

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/scoreroom/internal/models"
	"github.com/jason-s-yu/scoreroom/internal/store"
	"github.com/sirupsen/logrus"
)

// Settle freezes the room's scores into a history snapshot and marks the
// room settled, in one transaction. The pot must be empty. A room settles at
// most once: a second call fails with ErrRoomNotActive.
func (e *Engine) Settle(ctx context.Context, roomID, caller string) (*models.HistorySnapshot, *models.Room, error) {
	var snap *models.HistorySnapshot
	committed, err := e.mutate(ctx, roomID, func(txn *store.Txn) error {
		r := txn.Room
		if r.OwnerID != caller {
			return ErrNotOwner
		}
		if r.Status != models.StatusActive {
			return ErrRoomNotActive
		}
		if r.Pot != 0 {
			return ErrPotNotEmpty
		}
		snap = newSnapshot(r, e.now())
		txn.Archive(snap)
		r.Status = models.StatusSettled
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	e.log.WithFields(logrus.Fields{
		"room_id":     roomID,
		"snapshot_id": snap.ID,
	}).Info("room settled")
	return snap, committed, nil
}

func newSnapshot(r *models.Room, at time.Time) *models.HistorySnapshot {
	players := make([]models.Player, len(r.Players))
	for i, p := range r.Players {
		players[i] = *p
	}
	return &models.HistorySnapshot{
		ID:           uuid.New(),
		RoomID:       r.ID,
		RoomName:     r.Name,
		Mode:         r.Mode,
		SettledAt:    at,
		FinalPlayers: players,
	}
}
