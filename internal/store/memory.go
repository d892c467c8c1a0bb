// internal/store/memory.go
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/scoreroom/internal/models"
)

type versionedRoom struct {
	room    *models.Room
	version uint64
}

// Memory is a process-local implementation of every store contract. Room
// updates are optimistic: the callback runs without the lock held and the
// write is rejected if the version moved in the meantime.
type Memory struct {
	mu       sync.Mutex
	rooms    map[string]*versionedRoom
	history  []models.HistorySnapshot
	audit    map[string][]models.AuditEntry
	profiles map[string]*models.Profile
	users    map[string]*models.User
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		rooms:    make(map[string]*versionedRoom),
		audit:    make(map[string][]models.AuditEntry),
		profiles: make(map[string]*models.Profile),
		users:    make(map[string]*models.User),
	}
}

func (m *Memory) CreateRoom(ctx context.Context, room *models.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.rooms[room.ID]; exists {
		return ErrExists
	}
	m.rooms[room.ID] = &versionedRoom{room: room.Clone(), version: 1}
	return nil
}

func (m *Memory) GetRoom(ctx context.Context, id string) (*models.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	vr, ok := m.rooms[id]
	if !ok {
		return nil, ErrNotFound
	}
	return vr.room.Clone(), nil
}

func (m *Memory) UpdateRoom(ctx context.Context, id string, fn func(*Txn) error) (*models.Room, error) {
	m.mu.Lock()
	vr, ok := m.rooms[id]
	if !ok {
		m.mu.Unlock()
		return nil, ErrNotFound
	}
	readVersion := vr.version
	txn := NewTxn(vr.room.Clone())
	m.mu.Unlock()

	if err := fn(txn); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.rooms[id]
	if !ok || cur.version != readVersion {
		return nil, ErrConflict
	}
	if snap := txn.Snapshot(); snap != nil {
		m.history = append(m.history, *snap)
	}
	if txn.Deleted() {
		delete(m.rooms, id)
		return nil, nil
	}
	m.rooms[id] = &versionedRoom{room: txn.Room.Clone(), version: readVersion + 1}
	return txn.Room.Clone(), nil
}

func (m *Memory) DeleteRoom(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[id]; !ok {
		return ErrNotFound
	}
	delete(m.rooms, id)
	return nil
}

func (m *Memory) DeleteSettledBefore(ctx context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, vr := range m.rooms {
		if vr.room.Status == models.StatusSettled && vr.room.LastActiveAt.Before(cutoff) {
			delete(m.rooms, id)
			delete(m.audit, id)
			n++
		}
	}
	return n, nil
}

func (m *Memory) GetHistory(ctx context.Context, id uuid.UUID) (*models.HistorySnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.history {
		if m.history[i].ID == id {
			h := m.history[i]
			return &h, nil
		}
	}
	return nil, ErrNotFound
}

// ListHistory returns the identity's snapshots, most recent first.
func (m *Memory) ListHistory(ctx context.Context, identity string) ([]models.HistorySnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.HistorySnapshot
	for _, h := range m.history {
		if h.Includes(identity) {
			out = append(out, h)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SettledAt.After(out[j].SettledAt) })
	return out, nil
}

func (m *Memory) AppendAudit(ctx context.Context, entries ...models.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		m.audit[e.RoomID] = append(m.audit[e.RoomID], e)
	}
	return nil
}

// ListAudit returns up to limit entries, newest first. limit <= 0 means all.
func (m *Memory) ListAudit(ctx context.Context, roomID string, limit int) ([]models.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.audit[roomID]
	out := make([]models.AuditEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, entries[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) PurgeAudit(ctx context.Context, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.audit, roomID)
	return nil
}

// GetProfile returns a copy of the stored profile, or ErrNotFound.
func (m *Memory) GetProfile(ctx context.Context, identity string) (*models.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[identity]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// PutProfile upserts presentation data, keeping the current room pointer.
func (m *Memory) PutProfile(ctx context.Context, profile models.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.profiles[profile.Identity]; ok && profile.CurrentRoomID == "" {
		profile.CurrentRoomID = existing.CurrentRoomID
	}
	m.profiles[profile.Identity] = &profile
	return nil
}

func (m *Memory) SetCurrentRoom(ctx context.Context, identity, roomID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[identity]
	if !ok {
		p = &models.Profile{Identity: identity}
		m.profiles[identity] = p
	}
	p.CurrentRoomID = roomID
	return nil
}

func (m *Memory) CreateUser(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.users[user.Email]; taken {
		return ErrExists
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	u := *user
	m.users[user.Email] = &u
	id := user.ID.String()
	prof, ok := m.profiles[id]
	if !ok {
		prof = &models.Profile{Identity: id}
		m.profiles[id] = prof
	}
	prof.DisplayName = user.DisplayName
	prof.AvatarRef = user.AvatarRef
	return nil
}

func (m *Memory) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[email]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *Memory) UpdateProfile(ctx context.Context, identity, displayName, avatarRef string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prof, ok := m.profiles[identity]
	if !ok {
		prof = &models.Profile{Identity: identity}
		m.profiles[identity] = prof
	}
	prof.DisplayName = displayName
	prof.AvatarRef = avatarRef
	for _, u := range m.users {
		if u.ID.String() == identity {
			u.DisplayName = displayName
			u.AvatarRef = avatarRef
		}
	}
	return nil
}
