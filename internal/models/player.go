// internal/models/player.go
package models

import "time"

// Player is a membership slot nested in a Room. Exited players keep their slot
// and score so a rejoin resumes where they left off.
type Player struct {
	Identity    string    `json:"identity"`
	DisplayName string    `json:"displayName"`
	AvatarRef   string    `json:"avatarRef"`
	Score       int64     `json:"score"`
	IsExited    bool      `json:"isExited"`
	JoinedAt    time.Time `json:"joinedAt"`
}
