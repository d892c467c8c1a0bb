// internal/room/audit.go
package room

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/scoreroom/internal/models"
)

// auditBuilder stamps entries for one committed action.
type auditBuilder struct {
	roomID string
	room   *models.Room
	actor  models.Player
	at     time.Time
}

func newAuditBuilder(room *models.Room, actor string, at time.Time) *auditBuilder {
	b := &auditBuilder{roomID: room.ID, room: room, at: at}
	if p := room.FindPlayer(actor); p != nil {
		b.actor = *p
	} else {
		b.actor = models.Player{Identity: actor}
	}
	return b
}

func (b *auditBuilder) entry(kind models.AuditKind, amount int64, content string) models.AuditEntry {
	return models.AuditEntry{
		ID:               uuid.New(),
		RoomID:           b.roomID,
		ActorIdentity:    b.actor.Identity,
		ActorDisplayName: b.actor.DisplayName,
		ActorAvatarRef:   b.actor.AvatarRef,
		Kind:             kind,
		Amount:           amount,
		Content:          content,
		Timestamp:        b.at,
	}
}

func (b *auditBuilder) name() string {
	if b.actor.DisplayName != "" {
		return b.actor.DisplayName
	}
	return b.actor.Identity
}

func (b *auditBuilder) transfer(to string, amount int64) models.AuditEntry {
	counter := models.Player{Identity: to}
	if p := b.room.FindPlayer(to); p != nil {
		counter = *p
	}
	label := counter.DisplayName
	if label == "" {
		label = counter.Identity
	}
	e := b.entry(models.AuditTransfer, amount, fmt.Sprintf("%s transferred %d to %s", b.name(), amount, label))
	e.CounterpartyIdentity = counter.Identity
	e.CounterpartyDisplayName = counter.DisplayName
	e.CounterpartyAvatarRef = counter.AvatarRef
	return e
}

func (b *auditBuilder) deposit(kind DepositKind, amount int64) models.AuditEntry {
	switch kind {
	case DepositAllIn:
		return b.entry(models.AuditAllIn, amount, fmt.Sprintf("%s went all in with %d", b.name(), amount))
	case DepositFollow:
		return b.entry(models.AuditFollow, amount, fmt.Sprintf("%s followed with %d", b.name(), amount))
	}
	return b.entry(models.AuditBet, amount, fmt.Sprintf("%s bet %d", b.name(), amount))
}

func (b *auditBuilder) claim(amount int64) models.AuditEntry {
	return b.entry(models.AuditClaim, amount, fmt.Sprintf("%s claimed the pot of %d", b.name(), amount))
}

func (b *auditBuilder) pass() models.AuditEntry {
	return b.entry(models.AuditPass, 0, fmt.Sprintf("%s passed this round", b.name()))
}

func (b *auditBuilder) create() models.AuditEntry {
	return b.entry(models.AuditCreate, 0, fmt.Sprintf("%s created room %s", b.name(), b.room.Name))
}

func (b *auditBuilder) join(rejoined bool) models.AuditEntry {
	if rejoined {
		return b.entry(models.AuditJoin, 0, fmt.Sprintf("%s rejoined the room with %d", b.name(), b.actor.Score))
	}
	return b.entry(models.AuditJoin, 0, fmt.Sprintf("%s joined the room", b.name()))
}

func (b *auditBuilder) leave(newOwner string) models.AuditEntry {
	content := fmt.Sprintf("%s left the room", b.name())
	if newOwner != "" {
		label := newOwner
		if p := b.room.FindPlayer(newOwner); p != nil && p.DisplayName != "" {
			label = p.DisplayName
		}
		content += fmt.Sprintf(", %s is now the owner", label)
	}
	return b.entry(models.AuditLeave, 0, content)
}

func (b *auditBuilder) settle() models.AuditEntry {
	return b.entry(models.AuditSettle, 0, fmt.Sprintf("%s settled the room", b.name()))
}

func (b *auditBuilder) configure(allIn int64) models.AuditEntry {
	return b.entry(models.AuditConfig, allIn, fmt.Sprintf("%s set the all-in value to %d", b.name(), allIn))
}
