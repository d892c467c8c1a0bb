// internal/models/history.go
package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// HistorySnapshot is the write-once record of a settled room.
type HistorySnapshot struct {
	ID           uuid.UUID `json:"id"`
	RoomID       string    `json:"roomId"`
	RoomName     string    `json:"roomName"`
	Mode         RoomMode  `json:"mode"`
	SettledAt    time.Time `json:"settledAt"`
	FinalPlayers []Player  `json:"finalPlayers"`
}

// Includes reports whether identity held a slot in the settled room.
func (h *HistorySnapshot) Includes(identity string) bool {
	for _, p := range h.FinalPlayers {
		if p.Identity == identity {
			return true
		}
	}
	return false
}

// Winners returns players with a positive final score, largest first. On equal
// scores the viewer is listed first.
func (h *HistorySnapshot) Winners(viewer string) []Player {
	return h.rank(viewer, func(score int64) bool { return score > 0 })
}

// Losers returns players with a negative final score, largest loss first.
func (h *HistorySnapshot) Losers(viewer string) []Player {
	return h.rank(viewer, func(score int64) bool { return score < 0 })
}

func (h *HistorySnapshot) rank(viewer string, keep func(int64) bool) []Player {
	out := make([]Player, 0, len(h.FinalPlayers))
	for _, p := range h.FinalPlayers {
		if keep(p.Score) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ai, aj := abs(out[i].Score), abs(out[j].Score)
		if ai != aj {
			return ai > aj
		}
		return out[i].Identity == viewer && out[j].Identity != viewer
	})
	return out
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
