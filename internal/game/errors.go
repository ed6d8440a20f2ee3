package game

import (
	"errors"
	"fmt"
)

// Code identifies a rule violation.
type Code string

const (
	CodeNotYourTurn           Code = "NOT_YOUR_TURN"
	CodePlayerNotFound        Code = "PLAYER_NOT_FOUND"
	CodeAlreadyFolded         Code = "ALREADY_FOLDED"
	CodeInvalidPlayerStatus   Code = "INVALID_PLAYER_STATUS"
	CodeCannotCheck           Code = "CANNOT_CHECK"
	CodeNothingToCall         Code = "NOTHING_TO_CALL"
	CodeNotEnoughChips        Code = "NOT_ENOUGH_CHIPS"
	CodeInvalidRaiseAmount    Code = "INVALID_RAISE_AMOUNT"
	CodeInsufficientChips     Code = "INSUFFICIENT_CHIPS"
	CodeNoChipsForAllIn       Code = "NO_CHIPS_FOR_ALL_IN"
	CodeInvalidAction         Code = "INVALID_ACTION"
	CodeNotEnoughPlayers      Code = "NOT_ENOUGH_PLAYERS"
	CodeGameAlreadyInProgress Code = "GAME_ALREADY_IN_PROGRESS"
	CodeDeckExhausted         Code = "DECK_EXHAUSTED"
	CodeStaleAction           Code = "STALE_ACTION"

	// Seating codes.
	CodeSeatUnavailable Code = "SEAT_UNAVAILABLE"
	CodeAlreadySeated   Code = "ALREADY_SEATED"
	CodeInvalidBuyIn    Code = "INVALID_BUY_IN"
)

// Error is a game rule violation. Context carries numeric details such as the
// minimum raise increment.
type Error struct {
	Code    Code           `json:"code"`
	Message string         `json:"message"`
	Context map[string]int `json:"context,omitempty"`
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any *Error with the same code, so errors.Is(err, ErrCannotCheck)
// works regardless of message or context.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func newError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) with(key string, value int) *Error {
	if e.Context == nil {
		e.Context = make(map[string]int)
	}
	e.Context[key] = value
	return e
}

// Sentinels for errors.Is.
var (
	ErrNotYourTurn           = &Error{Code: CodeNotYourTurn}
	ErrPlayerNotFound        = &Error{Code: CodePlayerNotFound}
	ErrAlreadyFolded         = &Error{Code: CodeAlreadyFolded}
	ErrInvalidPlayerStatus   = &Error{Code: CodeInvalidPlayerStatus}
	ErrCannotCheck           = &Error{Code: CodeCannotCheck}
	ErrNothingToCall         = &Error{Code: CodeNothingToCall}
	ErrNotEnoughChips        = &Error{Code: CodeNotEnoughChips}
	ErrInvalidRaiseAmount    = &Error{Code: CodeInvalidRaiseAmount}
	ErrInsufficientChips     = &Error{Code: CodeInsufficientChips}
	ErrNoChipsForAllIn       = &Error{Code: CodeNoChipsForAllIn}
	ErrInvalidAction         = &Error{Code: CodeInvalidAction}
	ErrNotEnoughPlayers      = &Error{Code: CodeNotEnoughPlayers}
	ErrGameAlreadyInProgress = &Error{Code: CodeGameAlreadyInProgress}
	ErrDeckExhausted         = &Error{Code: CodeDeckExhausted}
	ErrStaleAction           = &Error{Code: CodeStaleAction}
	ErrSeatUnavailable       = &Error{Code: CodeSeatUnavailable}
	ErrAlreadySeated         = &Error{Code: CodeAlreadySeated}
	ErrInvalidBuyIn          = &Error{Code: CodeInvalidBuyIn}
)

// CodeOf returns the code of a game error anywhere in err's chain, or "" if err
// is not a game error.
func CodeOf(err error) Code {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Code
	}
	return ""
}
