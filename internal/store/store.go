// internal/store/store.go

// Package store defines the persistence contracts for rooms, history
// snapshots, audit logs and profiles, plus an in-memory implementation.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/scoreroom/internal/models"
)

var (
	// ErrNotFound is returned when the keyed record does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict is returned when another writer committed to the same room
	// between this transaction's read and its write.
	ErrConflict = errors.New("store: write conflict")
	// ErrExists is returned by CreateRoom when the id is already taken.
	ErrExists = errors.New("store: already exists")
)

// Txn is handed to an UpdateRoom callback. Room is a private copy of the
// latest committed room; the callback mutates it in place. Archive and Delete
// stage extra effects that commit atomically with the room write.
type Txn struct {
	Room *models.Room

	snapshot *models.HistorySnapshot
	deleted  bool
}

// NewTxn wraps room for a single attempt.
func NewTxn(room *models.Room) *Txn {
	return &Txn{Room: room}
}

// Archive stages a history snapshot to be written in the same commit.
func (t *Txn) Archive(s *models.HistorySnapshot) { t.snapshot = s }

// Delete stages a hard delete of the room instead of a write.
func (t *Txn) Delete() { t.deleted = true }

// Snapshot returns the staged history snapshot, if any.
func (t *Txn) Snapshot() *models.HistorySnapshot { return t.snapshot }

// Deleted reports whether the commit removes the room.
func (t *Txn) Deleted() bool { return t.deleted }

// RoomStore holds Room aggregates keyed by id.
type RoomStore interface {
	CreateRoom(ctx context.Context, room *models.Room) error
	GetRoom(ctx context.Context, id string) (*models.Room, error)
	// UpdateRoom makes one optimistic read-modify-write attempt. If fn returns
	// an error nothing is written. If another writer committed first the
	// attempt fails with ErrConflict and the caller retries from scratch.
	// The committed room is returned, or nil when the txn deleted it.
	UpdateRoom(ctx context.Context, id string, fn func(*Txn) error) (*models.Room, error)
	DeleteRoom(ctx context.Context, id string) error
}

// HistoryStore reads the write-once settlement archive. Writes happen only
// through Txn.Archive.
type HistoryStore interface {
	GetHistory(ctx context.Context, id uuid.UUID) (*models.HistorySnapshot, error)
	ListHistory(ctx context.Context, identity string) ([]models.HistorySnapshot, error)
}

// AuditLog is the append-only per-room event log.
type AuditLog interface {
	AppendAudit(ctx context.Context, entries ...models.AuditEntry) error
	ListAudit(ctx context.Context, roomID string, limit int) ([]models.AuditEntry, error)
	PurgeAudit(ctx context.Context, roomID string) error
}

// ProfileStore supplies presentation data and the advisory current-room
// pointer per identity.
type ProfileStore interface {
	GetProfile(ctx context.Context, identity string) (*models.Profile, error)
	SetCurrentRoom(ctx context.Context, identity, roomID string) error
}

// UserStore holds accounts. Passwords arrive already hashed.
type UserStore interface {
	// CreateUser fails with ErrExists when the email is taken.
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	// UpdateProfile sets presentation data, keeping the current room pointer.
	UpdateProfile(ctx context.Context, identity, displayName, avatarRef string) error
}

// Reaper removes settled rooms that have been idle since before cutoff.
type Reaper interface {
	DeleteSettledBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// Backend bundles the stores one deployment uses. Memory, the Postgres
// store and the Redis store each implement all of it.
type Backend interface {
	RoomStore
	HistoryStore
	AuditLog
	ProfileStore
	UserStore
	Reaper
}
