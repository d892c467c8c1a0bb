// internal/room/errors.go
package room

import "errors"

// Error is a business-rule failure. Each kind is a package-level sentinel so
// callers classify with errors.Is and render with Message.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

var (
	ErrRoomNotFound        = &Error{"RoomNotFound", "room no longer exists"}
	ErrRoomNotActive       = &Error{"RoomNotActive", "room is not active"}
	ErrRoomClosed          = &Error{"RoomClosed", "game has ended, scores can no longer change"}
	ErrRoomFull            = &Error{"RoomFull", "room is full"}
	ErrNotAMember          = &Error{"NotAMember", "you are not in this room"}
	ErrAlreadyMember       = &Error{"AlreadyMember", "you are already in this room"}
	ErrUnknownPlayer       = &Error{"UnknownPlayer", "player is not in this room"}
	ErrSelfTransfer        = &Error{"SelfTransfer", "cannot transfer to yourself"}
	ErrInvalidAmount       = &Error{"InvalidAmount", "amount must be a positive whole number"}
	ErrAllInNotConfigured  = &Error{"AllInNotConfigured", "all-in value has not been set"}
	ErrNoDepositToFollow   = &Error{"NoDepositToFollow", "there is no bet to follow"}
	ErrPotEmpty            = &Error{"PotEmpty", "the pot is empty"}
	ErrPotNotEmpty         = &Error{"PotNotEmpty", "the pot still holds points, claim it first"}
	ErrNotOwner            = &Error{"NotOwner", "only the room owner can do this"}
	ErrAlreadyInActiveRoom = &Error{"AlreadyInActiveRoom", "you are already playing in another room"}
	ErrTransactionConflict = &Error{"TransactionConflict", "the room is busy, please try again"}
	ErrNotBetMode          = &Error{"NotBetMode", "the pot is only available in bet mode"}
	ErrInvalidMode         = &Error{"InvalidMode", "mode must be normal or bet"}
	ErrUnknownAction       = &Error{"UnknownAction", "unknown action"}
)

// internalMessage is shown for anything that is not a business-rule failure.
const internalMessage = "internal error, please try again later"

// Message returns the user-visible text for err.
func Message(err error) string {
	var re *Error
	if errors.As(err, &re) {
		return re.Message
	}
	return internalMessage
}

// Code returns the error kind name, or "Internal" for non-domain errors.
func Code(err error) string {
	var re *Error
	if errors.As(err, &re) {
		return re.Code
	}
	return "Internal"
}

// IsDomain reports whether err is one of the business-rule kinds above.
func IsDomain(err error) bool {
	var re *Error
	return errors.As(err, &re)
}
