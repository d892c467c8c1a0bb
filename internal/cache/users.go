// internal/cache/users.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jason-s-yu/scoreroom/internal/models"
	"github.com/jason-s-yu/scoreroom/internal/store"
	"github.com/redis/go-redis/v9"
)

// Profile hash fields.
const (
	fieldDisplayName = "display_name"
	fieldAvatarRef   = "avatar_ref"
	fieldCurrentRoom = "current_room_id"
)

func (s *RoomStore) GetProfile(ctx context.Context, identity string) (*models.Profile, error) {
	vals, err := s.rdb.HGetAll(ctx, profileKey(identity)).Result()
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, store.ErrNotFound
	}
	return &models.Profile{
		Identity:      identity,
		DisplayName:   vals[fieldDisplayName],
		AvatarRef:     vals[fieldAvatarRef],
		CurrentRoomID: vals[fieldCurrentRoom],
	}, nil
}

func (s *RoomStore) SetCurrentRoom(ctx context.Context, identity, roomID string) error {
	return s.rdb.HSet(ctx, profileKey(identity), fieldCurrentRoom, roomID).Err()
}

func (s *RoomStore) UpdateProfile(ctx context.Context, identity, displayName, avatarRef string) error {
	return s.rdb.HSet(ctx, profileKey(identity), fieldDisplayName, displayName, fieldAvatarRef, avatarRef).Err()
}

// CreateUser stores the account under its email and seeds its profile.
func (s *RoomStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	ok, err := s.rdb.SetNX(ctx, userKey(user.Email), data, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return store.ErrExists
	}
	return s.UpdateProfile(ctx, user.ID.String(), user.DisplayName, user.AvatarRef)
}

func (s *RoomStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	data, err := s.rdb.Get(ctx, userKey(email)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var u models.User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	if prof, err := s.GetProfile(ctx, u.ID.String()); err == nil {
		u.DisplayName = prof.DisplayName
		u.AvatarRef = prof.AvatarRef
	}
	return &u, nil
}
