// internal/models/event.go
package models

// Realtime event types published after a commit.
const (
	EventRoomUpdate    = "room_update"
	EventRoomDissolved = "room_dissolved"
)

// RoomEvent is what subscribers of a room's channel receive.
type RoomEvent struct {
	Type    string       `json:"type"`
	RoomID  string       `json:"roomId"`
	Room    *Room        `json:"room,omitempty"`
	Entries []AuditEntry `json:"entries,omitempty"`
	TS      int64        `json:"ts"`
}
