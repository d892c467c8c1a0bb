// internal/models/room.go
package models

import "time"

// RoomStatus is the lifecycle state of a room. Only active -> settled and
// active -> dissolved are legal transitions.
type RoomStatus string

const (
	StatusActive    RoomStatus = "active"
	StatusSettled   RoomStatus = "settled"
	StatusDissolved RoomStatus = "dissolved"
)

// RoomMode is fixed at creation. Bet mode enables the pot.
type RoomMode string

const (
	ModeNormal RoomMode = "normal"
	ModeBet    RoomMode = "bet"
)

// Valid reports whether m is one of the known modes.
func (m RoomMode) Valid() bool {
	return m == ModeNormal || m == ModeBet
}

// MaxPlayers caps the number of player slots in a room, exited slots included.
const MaxPlayers = 8

// Room is the aggregate root for one scorekeeping session. It is always read
// and written as a whole.
type Room struct {
	ID      string     `json:"id"`
	Name    string     `json:"roomName"`
	OwnerID string     `json:"ownerId"`
	Status  RoomStatus `json:"status"`
	Mode    RoomMode   `json:"mode"`
	Players []*Player  `json:"players"`

	// Pot is escrowed score in bet mode; always zero in normal mode.
	Pot        int64 `json:"pot"`
	AllInValue int64 `json:"allInValue"`

	LastDepositAmount   int64  `json:"lastDepositAmount"`
	LastDepositOperator string `json:"lastDepositOperator,omitempty"`
	// ClaimedBy is a display marker only; the next deposit clears it.
	ClaimedBy string `json:"claimedBy,omitempty"`

	CreatedAt    time.Time `json:"createdAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`
}

// FindPlayer returns the slot for identity, exited or not.
func (r *Room) FindPlayer(identity string) *Player {
	for _, p := range r.Players {
		if p.Identity == identity {
			return p
		}
	}
	return nil
}

// ActivePlayer returns the slot for identity only if it has not exited.
func (r *Room) ActivePlayer(identity string) *Player {
	p := r.FindPlayer(identity)
	if p == nil || p.IsExited {
		return nil
	}
	return p
}

// ActiveCount is the number of non-exited players.
func (r *Room) ActiveCount() int {
	n := 0
	for _, p := range r.Players {
		if !p.IsExited {
			n++
		}
	}
	return n
}

// Balance returns sum(scores) + pot, which must be zero for every committed room.
func (r *Room) Balance() int64 {
	total := r.Pot
	for _, p := range r.Players {
		total += p.Score
	}
	return total
}

// CanFollow reports whether a follow deposit has an amount to repeat.
func (r *Room) CanFollow() bool {
	return r.Mode == ModeBet && r.LastDepositAmount > 0
}

// Clone returns a deep copy so transactions never mutate a shared room.
func (r *Room) Clone() *Room {
	if r == nil {
		return nil
	}
	c := *r
	c.Players = make([]*Player, len(r.Players))
	for i, p := range r.Players {
		cp := *p
		c.Players[i] = &cp
	}
	return &c
}
