// internal/database/user.go
package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/scoreroom/internal/models"
)

// CreateUser inserts the account and its profile row. user.Password must
// already be hashed.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		id, err := uuid.NewRandom()
		if err != nil {
			return fmt.Errorf("failed to generate user id: %w", err)
		}
		user.ID = id
	}

	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `INSERT INTO users (id, email, password, is_ephemeral) VALUES ($1, $2, $3, $4)`
		if _, err := tx.Exec(ctx, q, user.ID, user.Email, user.Password, user.IsEphemeral); err != nil {
			return err
		}
		q = `
			INSERT INTO profiles (identity, display_name, avatar_ref)
			VALUES ($1, $2, $3)
			ON CONFLICT (identity) DO UPDATE SET display_name=$2, avatar_ref=$3
		`
		_, err := tx.Exec(ctx, q, user.ID.String(), user.DisplayName, user.AvatarRef)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", mapError(err))
	}
	return nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	q := `
	SELECT u.id, u.email, u.password, u.is_ephemeral,
	       COALESCE(p.display_name, ''), COALESCE(p.avatar_ref, '')
	FROM users u
	LEFT JOIN profiles p ON p.identity = u.id::text
	WHERE u.email=$1
	`
	err := s.pool.QueryRow(ctx, q, email).Scan(
		&u.ID, &u.Email, &u.Password, &u.IsEphemeral,
		&u.DisplayName, &u.AvatarRef,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return &u, nil
}

func (s *Store) UpdateProfile(ctx context.Context, identity, displayName, avatarRef string) error {
	q := `
		INSERT INTO profiles (identity, display_name, avatar_ref)
		VALUES ($1, $2, $3)
		ON CONFLICT (identity) DO UPDATE SET display_name=$2, avatar_ref=$3
	`
	_, err := s.pool.Exec(ctx, q, identity, displayName, avatarRef)
	return mapError(err)
}

func (s *Store) GetProfile(ctx context.Context, identity string) (*models.Profile, error) {
	p := models.Profile{Identity: identity}
	q := `SELECT display_name, avatar_ref, current_room_id FROM profiles WHERE identity=$1`
	if err := s.pool.QueryRow(ctx, q, identity).Scan(&p.DisplayName, &p.AvatarRef, &p.CurrentRoomID); err != nil {
		return nil, mapError(err)
	}
	return &p, nil
}

func (s *Store) SetCurrentRoom(ctx context.Context, identity, roomID string) error {
	q := `
		INSERT INTO profiles (identity, current_room_id)
		VALUES ($1, $2)
		ON CONFLICT (identity) DO UPDATE SET current_room_id=$2
	`
	_, err := s.pool.Exec(ctx, q, identity, roomID)
	return mapError(err)
}
