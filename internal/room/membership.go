// internal/room/membership.go
package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/jason-s-yu/scoreroom/internal/models"
	"github.com/jason-s-yu/scoreroom/internal/store"
	"github.com/sirupsen/logrus"
)

// maxCreateAttempts bounds room code regeneration on collision.
const maxCreateAttempts = 5

// CreateParams describes a new room and its creator.
type CreateParams struct {
	Name        string
	Mode        models.RoomMode
	AllInValue  int64
	Identity    string
	DisplayName string
	AvatarRef   string
}

// LeaveResult reports the outcome of LeaveRoom.
type LeaveResult struct {
	// Room is the committed room, nil when Dissolved.
	Room      *models.Room
	Dissolved bool
	// NewOwner is set when the leaving player owned the room.
	NewOwner string
	// Player is the leaving player's slot as of the leave.
	Player models.Player
}

// CreateRoom opens a room owned by the creator with a single zero-score slot.
func (e *Engine) CreateRoom(ctx context.Context, p CreateParams) (*models.Room, error) {
	if !p.Mode.Valid() {
		return nil, ErrInvalidMode
	}
	if p.AllInValue < 0 {
		return nil, ErrInvalidAmount
	}
	if err := e.checkNotInActiveRoom(ctx, p.Identity); err != nil {
		return nil, err
	}

	now := e.now()
	allIn := p.AllInValue
	if p.Mode != models.ModeBet {
		allIn = 0
	}
	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		r := &models.Room{
			ID:         e.newRoomID(),
			Name:       p.Name,
			OwnerID:    p.Identity,
			Status:     models.StatusActive,
			Mode:       p.Mode,
			AllInValue: allIn,
			Players: []*models.Player{{
				Identity:    p.Identity,
				DisplayName: p.DisplayName,
				AvatarRef:   p.AvatarRef,
				JoinedAt:    now,
			}},
			CreatedAt:    now,
			LastActiveAt: now,
		}
		if r.Name == "" {
			r.Name = r.ID
		}
		err := e.rooms.CreateRoom(ctx, r)
		if errors.Is(err, store.ErrExists) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create room: %w", err)
		}
		return r, nil
	}
	return nil, fmt.Errorf("create room: no free room code after %d attempts", maxCreateAttempts)
}

// checkNotInActiveRoom is advisory: the profile pointer lives outside the
// room store, so it is confirmed against the room it names before refusing.
func (e *Engine) checkNotInActiveRoom(ctx context.Context, identity string) error {
	if e.profiles == nil {
		return nil
	}
	prof, err := e.profiles.GetProfile(ctx, identity)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			e.log.WithError(err).WithField("caller", identity).Warn("profile lookup failed, skipping active room check")
		}
		return nil
	}
	if prof.CurrentRoomID == "" {
		return nil
	}
	current, err := e.rooms.GetRoom(ctx, prof.CurrentRoomID)
	if err != nil {
		return nil
	}
	if current.Status == models.StatusActive && current.ActivePlayer(identity) != nil {
		return ErrAlreadyInActiveRoom
	}
	return nil
}

// JoinRoom admits identity, reactivating an exited slot with its score intact.
// rejoined reports whether an existing slot was reused.
func (e *Engine) JoinRoom(ctx context.Context, roomID, identity, displayName, avatarRef string) (committed *models.Room, rejoined bool, err error) {
	committed, err = e.mutate(ctx, roomID, func(txn *store.Txn) error {
		rejoined = false
		r := txn.Room
		if r.Status != models.StatusActive {
			return ErrRoomNotActive
		}
		if existing := r.FindPlayer(identity); existing != nil {
			if !existing.IsExited {
				return ErrAlreadyMember
			}
			existing.IsExited = false
			existing.DisplayName = displayName
			existing.AvatarRef = avatarRef
			rejoined = true
			return nil
		}
		if len(r.Players) >= models.MaxPlayers {
			return ErrRoomFull
		}
		r.Players = append(r.Players, &models.Player{
			Identity:    identity,
			DisplayName: displayName,
			AvatarRef:   avatarRef,
			JoinedAt:    e.now(),
		})
		return nil
	})
	return committed, rejoined, err
}

// LeaveRoom marks the player exited. An active room is deleted when nobody
// active remains; otherwise ownership passes to the first active player in
// join order. Settled rooms are never deleted here.
func (e *Engine) LeaveRoom(ctx context.Context, roomID, identity string) (*LeaveResult, error) {
	var res LeaveResult
	committed, err := e.mutate(ctx, roomID, func(txn *store.Txn) error {
		res = LeaveResult{}
		r := txn.Room
		p := r.ActivePlayer(identity)
		if p == nil {
			return ErrNotAMember
		}
		p.IsExited = true
		res.Player = *p

		// a settled room stays readable until the reaper removes it
		settled := r.Status == models.StatusSettled
		if r.OwnerID == identity {
			next := nextOwner(r, identity)
			if next == "" && !settled {
				r.Status = models.StatusDissolved
				txn.Delete()
				res.Dissolved = true
				return nil
			}
			if next != "" {
				r.OwnerID = next
				res.NewOwner = next
			}
		}
		if r.ActiveCount() == 0 && !settled {
			r.Status = models.StatusDissolved
			txn.Delete()
			res.Dissolved = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	res.Room = committed
	if res.Dissolved {
		e.log.WithField("room_id", roomID).Info("last active player left, room dissolved")
	}
	return &res, nil
}

// nextOwner picks the first non-exited player other than leaving.
func nextOwner(r *models.Room, leaving string) string {
	for _, p := range r.Players {
		if !p.IsExited && p.Identity != leaving {
			return p.Identity
		}
	}
	return ""
}

// DismissRoom hard-deletes the room without writing history. Owner only.
// The returned room is the state at deletion, for notifying its members.
func (e *Engine) DismissRoom(ctx context.Context, roomID, caller string) (*models.Room, error) {
	var final *models.Room
	_, err := e.mutate(ctx, roomID, func(txn *store.Txn) error {
		if txn.Room.OwnerID != caller {
			return ErrNotOwner
		}
		txn.Room.Status = models.StatusDissolved
		final = txn.Room.Clone()
		txn.Delete()
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.log.WithFields(logrus.Fields{"room_id": roomID, "caller": caller}).Info("room dismissed")
	return final, nil
}
