// internal/room/command.go
package room

import (
	"encoding/json"
	"fmt"

	"github.com/jason-s-yu/scoreroom/internal/models"
)

// Action names one externally triggered operation.
type Action string

const (
	ActionCreate        Action = "create"
	ActionJoin          Action = "join"
	ActionLeave         Action = "leave"
	ActionSettle        Action = "settle"
	ActionDismiss       Action = "dismiss"
	ActionTransfer      Action = "transfer"
	ActionBatchTransfer Action = "batchTransfer"
	ActionDeposit       Action = "deposit"
	ActionFollow        Action = "follow"
	ActionAllIn         Action = "allin"
	ActionClaim         Action = "claim"
	ActionPass          Action = "pass"
	ActionConfigure     Action = "configure"
)

// Command is the closed set of operations the Controller executes. Only the
// types in this file implement it.
type Command interface {
	Action() Action
	isCommand()
}

type CreateCommand struct {
	RoomName    string
	Mode        models.RoomMode
	DisplayName string
	AvatarRef   string
	AllInValue  int64
}

type JoinCommand struct {
	RoomID      string
	DisplayName string
	AvatarRef   string
}

type LeaveCommand struct{ RoomID string }

type SettleCommand struct{ RoomID string }

type DismissCommand struct{ RoomID string }

type TransferCommand struct {
	RoomID     string
	ToIdentity string
	Amount     int64
}

type BatchTransferCommand struct {
	RoomID    string
	Transfers []TransferItem
}

type DepositCommand struct {
	RoomID string
	Amount int64
}

type FollowCommand struct{ RoomID string }

type AllInCommand struct{ RoomID string }

type ClaimCommand struct{ RoomID string }

type PassCommand struct{ RoomID string }

type ConfigureCommand struct {
	RoomID     string
	AllInValue int64
}

func (CreateCommand) Action() Action        { return ActionCreate }
func (JoinCommand) Action() Action          { return ActionJoin }
func (LeaveCommand) Action() Action         { return ActionLeave }
func (SettleCommand) Action() Action        { return ActionSettle }
func (DismissCommand) Action() Action       { return ActionDismiss }
func (TransferCommand) Action() Action      { return ActionTransfer }
func (BatchTransferCommand) Action() Action { return ActionBatchTransfer }
func (DepositCommand) Action() Action       { return ActionDeposit }
func (FollowCommand) Action() Action        { return ActionFollow }
func (AllInCommand) Action() Action         { return ActionAllIn }
func (ClaimCommand) Action() Action         { return ActionClaim }
func (PassCommand) Action() Action          { return ActionPass }
func (ConfigureCommand) Action() Action     { return ActionConfigure }

func (CreateCommand) isCommand()        {}
func (JoinCommand) isCommand()          {}
func (LeaveCommand) isCommand()         {}
func (SettleCommand) isCommand()        {}
func (DismissCommand) isCommand()       {}
func (TransferCommand) isCommand()      {}
func (BatchTransferCommand) isCommand() {}
func (DepositCommand) isCommand()       {}
func (FollowCommand) isCommand()        {}
func (AllInCommand) isCommand()         {}
func (ClaimCommand) isCommand()         {}
func (PassCommand) isCommand()          {}
func (ConfigureCommand) isCommand()     {}

// wire payload shapes
type payload struct {
	RoomID      string         `json:"roomId"`
	RoomName    string         `json:"roomName"`
	Mode        string         `json:"mode"`
	DisplayName string         `json:"displayName"`
	AvatarRef   string         `json:"avatarRef"`
	AllInValue  json.Number    `json:"allInValue"`
	ToIdentity  string         `json:"toIdentity"`
	Amount      json.Number    `json:"amount"`
	Transfers   []transferWire `json:"transfers"`
}

type transferWire struct {
	ToIdentity string      `json:"toIdentity"`
	Amount     json.Number `json:"amount"`
}

// DecodeCommand turns a wire request into a Command. Amounts must be JSON
// integers; fractional or missing amounts fail with ErrInvalidAmount.
func DecodeCommand(action string, raw json.RawMessage) (Command, error) {
	var p payload
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", action, err)
		}
	}

	switch Action(action) {
	case ActionCreate:
		allIn, err := optionalAmount(p.AllInValue)
		if err != nil {
			return nil, err
		}
		return CreateCommand{
			RoomName:    p.RoomName,
			Mode:        models.RoomMode(p.Mode),
			DisplayName: p.DisplayName,
			AvatarRef:   p.AvatarRef,
			AllInValue:  allIn,
		}, nil
	case ActionJoin:
		return JoinCommand{RoomID: p.RoomID, DisplayName: p.DisplayName, AvatarRef: p.AvatarRef}, nil
	case ActionLeave:
		return LeaveCommand{RoomID: p.RoomID}, nil
	case ActionSettle:
		return SettleCommand{RoomID: p.RoomID}, nil
	case ActionDismiss:
		return DismissCommand{RoomID: p.RoomID}, nil
	case ActionTransfer:
		amt, err := requiredAmount(p.Amount)
		if err != nil {
			return nil, err
		}
		return TransferCommand{RoomID: p.RoomID, ToIdentity: p.ToIdentity, Amount: amt}, nil
	case ActionBatchTransfer:
		items := make([]TransferItem, 0, len(p.Transfers))
		for _, t := range p.Transfers {
			amt, err := requiredAmount(t.Amount)
			if err != nil {
				return nil, err
			}
			items = append(items, TransferItem{ToIdentity: t.ToIdentity, Amount: amt})
		}
		return BatchTransferCommand{RoomID: p.RoomID, Transfers: items}, nil
	case ActionDeposit:
		amt, err := requiredAmount(p.Amount)
		if err != nil {
			return nil, err
		}
		return DepositCommand{RoomID: p.RoomID, Amount: amt}, nil
	case ActionFollow:
		return FollowCommand{RoomID: p.RoomID}, nil
	case ActionAllIn:
		return AllInCommand{RoomID: p.RoomID}, nil
	case ActionClaim:
		return ClaimCommand{RoomID: p.RoomID}, nil
	case ActionPass:
		return PassCommand{RoomID: p.RoomID}, nil
	case ActionConfigure:
		amt, err := requiredAmount(p.AllInValue)
		if err != nil {
			return nil, err
		}
		return ConfigureCommand{RoomID: p.RoomID, AllInValue: amt}, nil
	}
	return nil, ErrUnknownAction
}

func requiredAmount(n json.Number) (int64, error) {
	if n == "" {
		return 0, ErrInvalidAmount
	}
	v, err := n.Int64()
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return v, nil
}

func optionalAmount(n json.Number) (int64, error) {
	if n == "" {
		return 0, nil
	}
	return requiredAmount(n)
}
