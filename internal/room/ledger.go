// internal/room/ledger.go
package room

import (
	"context"
	"math"

	"github.com/jason-s-yu/scoreroom/internal/models"
	"github.com/jason-s-yu/scoreroom/internal/store"
)

// TransferItem is one leg of a batch transfer.
type TransferItem struct {
	ToIdentity string `json:"toIdentity"`
	Amount     int64  `json:"amount"`
}

// DepositKind selects how a pot deposit's amount is determined.
type DepositKind string

const (
	DepositBet    DepositKind = "bet"
	DepositAllIn  DepositKind = "allin"
	DepositFollow DepositKind = "follow"
)

func requireOpen(r *models.Room) error {
	if r.Status != models.StatusActive {
		return ErrRoomClosed
	}
	return nil
}

func requireBetMode(r *models.Room) error {
	if r.Mode != models.ModeBet {
		return ErrNotBetMode
	}
	return nil
}

// add returns a+b, or ErrInvalidAmount when the sum leaves int64 range.
func add(a, b int64) (int64, error) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, ErrInvalidAmount
	}
	return a + b, nil
}

// move takes amount from *from and credits it to *to, leaving both unchanged
// when either side would overflow.
func move(from, to *int64, amount int64) error {
	debited, err := add(*from, -amount)
	if err != nil {
		return err
	}
	credited, err := add(*to, amount)
	if err != nil {
		return err
	}
	*from, *to = debited, credited
	return nil
}

// applyTransfer moves amount from one active player to another.
func applyTransfer(r *models.Room, from, to string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if from == to {
		return ErrSelfTransfer
	}
	sender := r.ActivePlayer(from)
	receiver := r.ActivePlayer(to)
	if sender == nil || receiver == nil {
		return ErrUnknownPlayer
	}
	return move(&sender.Score, &receiver.Score, amount)
}

// Transfer moves amount from one player to another.
func (e *Engine) Transfer(ctx context.Context, roomID, from, to string, amount int64) (*models.Room, error) {
	return e.mutate(ctx, roomID, func(txn *store.Txn) error {
		if err := requireOpen(txn.Room); err != nil {
			return err
		}
		return applyTransfer(txn.Room, from, to, amount)
	})
}

// BatchTransfer applies every leg or none of them.
func (e *Engine) BatchTransfer(ctx context.Context, roomID, from string, items []TransferItem) (*models.Room, error) {
	return e.mutate(ctx, roomID, func(txn *store.Txn) error {
		if err := requireOpen(txn.Room); err != nil {
			return err
		}
		if len(items) == 0 {
			return ErrInvalidAmount
		}
		// amounts are checked up front so a bad leg reports InvalidAmount
		// wherever it sits in the list
		var total int64
		for _, it := range items {
			if it.Amount <= 0 {
				return ErrInvalidAmount
			}
			var err error
			if total, err = add(total, it.Amount); err != nil {
				return err
			}
		}
		for _, it := range items {
			if err := applyTransfer(txn.Room, from, it.ToIdentity, it.Amount); err != nil {
				return err
			}
		}
		return nil
	})
}

// Deposit moves score from a player into the pot. It returns the amount
// actually deposited, which for allin and follow comes from the room.
func (e *Engine) Deposit(ctx context.Context, roomID, identity string, kind DepositKind, amount int64) (*models.Room, int64, error) {
	var used int64
	r, err := e.mutate(ctx, roomID, func(txn *store.Txn) error {
		rm := txn.Room
		if err := requireOpen(rm); err != nil {
			return err
		}
		if err := requireBetMode(rm); err != nil {
			return err
		}
		switch kind {
		case DepositAllIn:
			if rm.AllInValue <= 0 {
				return ErrAllInNotConfigured
			}
			used = rm.AllInValue
		case DepositFollow:
			if rm.LastDepositAmount <= 0 {
				return ErrNoDepositToFollow
			}
			used = rm.LastDepositAmount
		default:
			used = amount
		}
		if used <= 0 {
			return ErrInvalidAmount
		}
		p := rm.ActivePlayer(identity)
		if p == nil {
			return ErrNotAMember
		}
		if err := move(&p.Score, &rm.Pot, used); err != nil {
			return err
		}
		rm.LastDepositAmount = used
		rm.LastDepositOperator = identity
		rm.ClaimedBy = ""
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return r, used, nil
}

// Pass records a turn marker. No score moves.
func (e *Engine) Pass(ctx context.Context, roomID, identity string) (*models.Room, error) {
	return e.mutate(ctx, roomID, func(txn *store.Txn) error {
		if err := requireOpen(txn.Room); err != nil {
			return err
		}
		if txn.Room.ActivePlayer(identity) == nil {
			return ErrNotAMember
		}
		return nil
	})
}

// ClaimPot moves the whole pot to the caller and returns the amount claimed.
func (e *Engine) ClaimPot(ctx context.Context, roomID, identity string) (*models.Room, int64, error) {
	var claimed int64
	r, err := e.mutate(ctx, roomID, func(txn *store.Txn) error {
		rm := txn.Room
		if err := requireOpen(rm); err != nil {
			return err
		}
		if err := requireBetMode(rm); err != nil {
			return err
		}
		p := rm.ActivePlayer(identity)
		if p == nil {
			return ErrNotAMember
		}
		if rm.Pot == 0 {
			return ErrPotEmpty
		}
		claimed = rm.Pot
		if err := move(&rm.Pot, &p.Score, claimed); err != nil {
			return err
		}
		rm.ClaimedBy = identity
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return r, claimed, nil
}

// Configure sets the all-in value. Owner only, bet mode only.
func (e *Engine) Configure(ctx context.Context, roomID, caller string, allInValue int64) (*models.Room, error) {
	return e.mutate(ctx, roomID, func(txn *store.Txn) error {
		rm := txn.Room
		if err := requireOpen(rm); err != nil {
			return err
		}
		if err := requireBetMode(rm); err != nil {
			return err
		}
		if rm.OwnerID != caller {
			return ErrNotOwner
		}
		if allInValue <= 0 {
			return ErrInvalidAmount
		}
		rm.AllInValue = allInValue
		return nil
	})
}
