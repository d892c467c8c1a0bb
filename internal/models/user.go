// internal/models/user.go
package models

import "github.com/google/uuid"

// User is an account row. Its ID string is the caller identity used by rooms.
type User struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	Password string    `json:"password,omitempty"`

	DisplayName string `json:"displayName"`
	AvatarRef   string `json:"avatarRef"`

	IsEphemeral bool `json:"is_ephemeral"`
}

// Profile is the presentation data and advisory room pointer for one identity.
type Profile struct {
	Identity      string `json:"identity"`
	DisplayName   string `json:"displayName"`
	AvatarRef     string `json:"avatarRef"`
	CurrentRoomID string `json:"currentRoomId,omitempty"`
}
