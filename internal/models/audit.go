// internal/models/audit.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditKind labels an audit entry.
type AuditKind string

const (
	AuditTransfer AuditKind = "transfer"
	AuditBet      AuditKind = "bet"
	AuditAllIn    AuditKind = "allin"
	AuditFollow   AuditKind = "follow"
	AuditClaim    AuditKind = "claim"
	AuditPass     AuditKind = "pass"
	AuditJoin     AuditKind = "join"
	AuditCreate   AuditKind = "create"
	AuditLeave    AuditKind = "leave"
	AuditSettle   AuditKind = "settle"
	AuditConfig   AuditKind = "configure"
)

// AuditEntry is a display-oriented record of one committed action. It is not
// authoritative; nothing reads it back to compute room state.
type AuditEntry struct {
	ID               uuid.UUID `json:"id"`
	RoomID           string    `json:"roomId"`
	ActorIdentity    string    `json:"actorIdentity"`
	ActorDisplayName string    `json:"actorDisplayName"`
	ActorAvatarRef   string    `json:"actorAvatarRef"`
	Kind             AuditKind `json:"kind"`
	Amount           int64     `json:"amount,omitempty"`

	CounterpartyIdentity    string `json:"counterpartyIdentity,omitempty"`
	CounterpartyDisplayName string `json:"counterpartyDisplayName,omitempty"`
	CounterpartyAvatarRef   string `json:"counterpartyAvatarRef,omitempty"`

	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
