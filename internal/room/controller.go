// internal/room/controller.go
package room

import (
	"context"
	"sync"
	"time"

	"github.com/jason-s-yu/scoreroom/internal/models"
	"github.com/jason-s-yu/scoreroom/internal/store"
	"github.com/sirupsen/logrus"
)

// DefaultSideEffectTimeout bounds each best-effort post-commit task.
const DefaultSideEffectTimeout = 2 * time.Second

// Notifier publishes committed room events to realtime subscribers.
type Notifier interface {
	Publish(ctx context.Context, ev models.RoomEvent) error
}

// Result is the success payload of Execute.
type Result struct {
	Action     Action       `json:"action"`
	RoomID     string       `json:"roomId,omitempty"`
	Room       *models.Room `json:"room,omitempty"`
	Dissolved  bool         `json:"dissolved,omitempty"`
	SnapshotID string       `json:"snapshotId,omitempty"`
	Amount     int64        `json:"amount,omitempty"`
}

// ControllerConfig wires the collaborators a Controller needs. Audit,
// Profiles and Notifier are optional.
type ControllerConfig struct {
	Engine            *Engine
	Audit             store.AuditLog
	Profiles          store.ProfileStore
	Notifier          Notifier
	Logger            *logrus.Logger
	SideEffectTimeout time.Duration
}

// Controller is the single entry point for room actions. Each command maps to
// exactly one engine transaction; audit, profile pointer and notification
// work runs in the background only after that transaction commits.
type Controller struct {
	engine   *Engine
	audit    store.AuditLog
	profiles store.ProfileStore
	notifier Notifier
	log      *logrus.Logger
	timeout  time.Duration
	now      func() time.Time

	wg sync.WaitGroup
}

// NewController builds a Controller from cfg.
func NewController(cfg ControllerConfig) *Controller {
	c := &Controller{
		engine:   cfg.Engine,
		audit:    cfg.Audit,
		profiles: cfg.Profiles,
		notifier: cfg.Notifier,
		log:      cfg.Logger,
		timeout:  cfg.SideEffectTimeout,
		now:      cfg.Engine.now,
	}
	if c.log == nil {
		c.log = logrus.StandardLogger()
	}
	if c.timeout <= 0 {
		c.timeout = DefaultSideEffectTimeout
	}
	return c
}

// Engine exposes the underlying engine for read-only views.
func (c *Controller) Engine() *Engine { return c.engine }

// Wait blocks until every background post-commit task has finished.
func (c *Controller) Wait() { c.wg.Wait() }

// pointerUpdate moves or clears an identity's advisory current room.
type pointerUpdate struct {
	identity string
	roomID   string
	// onlyIf, when set, skips clearing unless the pointer still names it
	onlyIf string
}

// committed describes the side work owed for one committed action.
type committed struct {
	roomID    string
	room      *models.Room
	dissolved bool
	entries   []models.AuditEntry
	pointers  []pointerUpdate
	purge     bool
}

// Execute runs cmd on behalf of caller. A returned error means nothing changed.
func (c *Controller) Execute(ctx context.Context, cmd Command, caller string) (*Result, error) {
	var (
		res  *Result
		done *committed
		err  error
	)
	switch cmd := cmd.(type) {
	case CreateCommand:
		res, done, err = c.create(ctx, cmd, caller)
	case JoinCommand:
		res, done, err = c.join(ctx, cmd, caller)
	case LeaveCommand:
		res, done, err = c.leave(ctx, cmd, caller)
	case SettleCommand:
		res, done, err = c.settle(ctx, cmd, caller)
	case DismissCommand:
		res, done, err = c.dismiss(ctx, cmd, caller)
	case TransferCommand:
		res, done, err = c.transfer(ctx, cmd, caller)
	case BatchTransferCommand:
		res, done, err = c.batchTransfer(ctx, cmd, caller)
	case DepositCommand:
		res, done, err = c.deposit(ctx, cmd.RoomID, DepositBet, cmd.Amount, caller)
	case FollowCommand:
		res, done, err = c.deposit(ctx, cmd.RoomID, DepositFollow, 0, caller)
	case AllInCommand:
		res, done, err = c.deposit(ctx, cmd.RoomID, DepositAllIn, 0, caller)
	case ClaimCommand:
		res, done, err = c.claim(ctx, cmd, caller)
	case PassCommand:
		res, done, err = c.pass(ctx, cmd, caller)
	case ConfigureCommand:
		res, done, err = c.configure(ctx, cmd, caller)
	default:
		return nil, ErrUnknownAction
	}

	fields := logrus.Fields{"action": cmd.Action(), "caller": caller}
	if err != nil {
		if IsDomain(err) {
			c.log.WithFields(fields).WithField("reason", Code(err)).Debug("action rejected")
		} else {
			c.log.WithFields(fields).WithError(err).Error("action failed")
		}
		return nil, err
	}
	res.Action = cmd.Action()
	c.log.WithFields(fields).WithField("room_id", done.roomID).Info("action committed")
	c.afterCommit(done)
	return res, nil
}

func (c *Controller) create(ctx context.Context, cmd CreateCommand, caller string) (*Result, *committed, error) {
	name, avatar := c.presentation(ctx, caller, cmd.DisplayName, cmd.AvatarRef)
	r, err := c.engine.CreateRoom(ctx, CreateParams{
		Name:        cmd.RoomName,
		Mode:        cmd.Mode,
		AllInValue:  cmd.AllInValue,
		Identity:    caller,
		DisplayName: name,
		AvatarRef:   avatar,
	})
	if err != nil {
		return nil, nil, err
	}
	b := newAuditBuilder(r, caller, r.CreatedAt)
	return &Result{RoomID: r.ID, Room: r}, &committed{
		roomID:   r.ID,
		room:     r,
		entries:  []models.AuditEntry{b.create()},
		pointers: []pointerUpdate{{identity: caller, roomID: r.ID}},
	}, nil
}

func (c *Controller) join(ctx context.Context, cmd JoinCommand, caller string) (*Result, *committed, error) {
	name, avatar := c.presentation(ctx, caller, cmd.DisplayName, cmd.AvatarRef)
	r, rejoined, err := c.engine.JoinRoom(ctx, cmd.RoomID, caller, name, avatar)
	if err != nil {
		return nil, nil, err
	}
	b := newAuditBuilder(r, caller, r.LastActiveAt)
	return &Result{RoomID: r.ID, Room: r}, &committed{
		roomID:   r.ID,
		room:     r,
		entries:  []models.AuditEntry{b.join(rejoined)},
		pointers: []pointerUpdate{{identity: caller, roomID: r.ID}},
	}, nil
}

func (c *Controller) leave(ctx context.Context, cmd LeaveCommand, caller string) (*Result, *committed, error) {
	lr, err := c.engine.LeaveRoom(ctx, cmd.RoomID, caller)
	if err != nil {
		return nil, nil, err
	}
	done := &committed{
		roomID:    cmd.RoomID,
		room:      lr.Room,
		dissolved: lr.Dissolved,
		pointers:  []pointerUpdate{{identity: caller, onlyIf: cmd.RoomID}},
	}
	if lr.Dissolved {
		done.purge = true
	} else {
		b := newAuditBuilder(lr.Room, caller, lr.Room.LastActiveAt)
		done.entries = []models.AuditEntry{b.leave(lr.NewOwner)}
	}
	return &Result{RoomID: cmd.RoomID, Room: lr.Room, Dissolved: lr.Dissolved}, done, nil
}

func (c *Controller) settle(ctx context.Context, cmd SettleCommand, caller string) (*Result, *committed, error) {
	snap, r, err := c.engine.Settle(ctx, cmd.RoomID, caller)
	if err != nil {
		return nil, nil, err
	}
	b := newAuditBuilder(r, caller, snap.SettledAt)
	return &Result{RoomID: r.ID, Room: r, SnapshotID: snap.ID.String()}, &committed{
		roomID:   r.ID,
		room:     r,
		entries:  []models.AuditEntry{b.settle()},
		pointers: clearAll(r),
	}, nil
}

func (c *Controller) dismiss(ctx context.Context, cmd DismissCommand, caller string) (*Result, *committed, error) {
	final, err := c.engine.DismissRoom(ctx, cmd.RoomID, caller)
	if err != nil {
		return nil, nil, err
	}
	return &Result{RoomID: cmd.RoomID, Dissolved: true}, &committed{
		roomID:    cmd.RoomID,
		dissolved: true,
		purge:     true,
		pointers:  clearAll(final),
	}, nil
}

func (c *Controller) transfer(ctx context.Context, cmd TransferCommand, caller string) (*Result, *committed, error) {
	r, err := c.engine.Transfer(ctx, cmd.RoomID, caller, cmd.ToIdentity, cmd.Amount)
	if err != nil {
		return nil, nil, err
	}
	b := newAuditBuilder(r, caller, r.LastActiveAt)
	return &Result{RoomID: r.ID, Room: r, Amount: cmd.Amount}, &committed{
		roomID:  r.ID,
		room:    r,
		entries: []models.AuditEntry{b.transfer(cmd.ToIdentity, cmd.Amount)},
	}, nil
}

func (c *Controller) batchTransfer(ctx context.Context, cmd BatchTransferCommand, caller string) (*Result, *committed, error) {
	r, err := c.engine.BatchTransfer(ctx, cmd.RoomID, caller, cmd.Transfers)
	if err != nil {
		return nil, nil, err
	}
	b := newAuditBuilder(r, caller, r.LastActiveAt)
	var total int64
	entries := make([]models.AuditEntry, 0, len(cmd.Transfers))
	for _, t := range cmd.Transfers {
		total += t.Amount
		entries = append(entries, b.transfer(t.ToIdentity, t.Amount))
	}
	return &Result{RoomID: r.ID, Room: r, Amount: total}, &committed{
		roomID:  r.ID,
		room:    r,
		entries: entries,
	}, nil
}

func (c *Controller) deposit(ctx context.Context, roomID string, kind DepositKind, amount int64, caller string) (*Result, *committed, error) {
	r, used, err := c.engine.Deposit(ctx, roomID, caller, kind, amount)
	if err != nil {
		return nil, nil, err
	}
	b := newAuditBuilder(r, caller, r.LastActiveAt)
	return &Result{RoomID: r.ID, Room: r, Amount: used}, &committed{
		roomID:  r.ID,
		room:    r,
		entries: []models.AuditEntry{b.deposit(kind, used)},
	}, nil
}

func (c *Controller) claim(ctx context.Context, cmd ClaimCommand, caller string) (*Result, *committed, error) {
	r, claimed, err := c.engine.ClaimPot(ctx, cmd.RoomID, caller)
	if err != nil {
		return nil, nil, err
	}
	b := newAuditBuilder(r, caller, r.LastActiveAt)
	return &Result{RoomID: r.ID, Room: r, Amount: claimed}, &committed{
		roomID:  r.ID,
		room:    r,
		entries: []models.AuditEntry{b.claim(claimed)},
	}, nil
}

func (c *Controller) pass(ctx context.Context, cmd PassCommand, caller string) (*Result, *committed, error) {
	r, err := c.engine.Pass(ctx, cmd.RoomID, caller)
	if err != nil {
		return nil, nil, err
	}
	b := newAuditBuilder(r, caller, r.LastActiveAt)
	return &Result{RoomID: r.ID, Room: r}, &committed{
		roomID:  r.ID,
		room:    r,
		entries: []models.AuditEntry{b.pass()},
	}, nil
}

func (c *Controller) configure(ctx context.Context, cmd ConfigureCommand, caller string) (*Result, *committed, error) {
	r, err := c.engine.Configure(ctx, cmd.RoomID, caller, cmd.AllInValue)
	if err != nil {
		return nil, nil, err
	}
	b := newAuditBuilder(r, caller, r.LastActiveAt)
	return &Result{RoomID: r.ID, Room: r}, &committed{
		roomID:  r.ID,
		room:    r,
		entries: []models.AuditEntry{b.configure(cmd.AllInValue)},
	}, nil
}

func clearAll(r *models.Room) []pointerUpdate {
	if r == nil {
		return nil
	}
	out := make([]pointerUpdate, 0, len(r.Players))
	for _, p := range r.Players {
		out = append(out, pointerUpdate{identity: p.Identity, onlyIf: r.ID})
	}
	return out
}

// presentation fills missing display fields from the profile store. A slow or
// failing lookup falls back to whatever the caller sent.
func (c *Controller) presentation(ctx context.Context, caller, name, avatar string) (string, string) {
	if (name != "" && avatar != "") || c.profiles == nil {
		return name, avatar
	}
	lctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	prof, err := c.profiles.GetProfile(lctx, caller)
	if err != nil {
		return name, avatar
	}
	if name == "" {
		name = prof.DisplayName
	}
	if avatar == "" {
		avatar = prof.AvatarRef
	}
	return name, avatar
}

// afterCommit runs the best-effort side work for done in the background.
// Failures are logged and never retried.
func (c *Controller) afterCommit(done *committed) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		log := c.log.WithField("room_id", done.roomID)

		if c.audit != nil {
			if len(done.entries) > 0 {
				if err := c.audit.AppendAudit(ctx, done.entries...); err != nil {
					log.WithError(err).Warn("audit append failed")
				}
			}
			if done.purge {
				if err := c.audit.PurgeAudit(ctx, done.roomID); err != nil {
					log.WithError(err).Warn("audit purge failed")
				}
			}
		}

		if c.profiles != nil {
			for _, pu := range done.pointers {
				if err := c.movePointer(ctx, pu); err != nil {
					log.WithError(err).WithField("identity", pu.identity).Warn("profile room pointer update failed")
				}
			}
		}

		if c.notifier != nil {
			ev := models.RoomEvent{
				Type:    models.EventRoomUpdate,
				RoomID:  done.roomID,
				Room:    done.room,
				Entries: done.entries,
				TS:      c.now().UnixMilli(),
			}
			if done.dissolved {
				ev.Type = models.EventRoomDissolved
				ev.Room = nil
			}
			if err := c.notifier.Publish(ctx, ev); err != nil {
				log.WithError(err).Warn("room event publish failed")
			}
		}
	}()
}

func (c *Controller) movePointer(ctx context.Context, pu pointerUpdate) error {
	if pu.onlyIf != "" {
		prof, err := c.profiles.GetProfile(ctx, pu.identity)
		if err != nil || prof.CurrentRoomID != pu.onlyIf {
			return nil
		}
	}
	return c.profiles.SetCurrentRoom(ctx, pu.identity, pu.roomID)
}
