package game

import (
	"errors"
	"fmt"
)

var (
	ErrHandInProgress   = errors.New("hand already in progress")
	ErrNoActiveHand     = errors.New("no active hand")
	ErrNotEnoughPlayers = errors.New("not enough players to start a hand")
	ErrSeatTaken        = errors.New("seat already taken")
	ErrPlayerNotFound   = errors.New("player not found")
	ErrNotYourTurn      = errors.New("not your turn")
	ErrHandLocked       = errors.New("hand is locked for automatic runout")
	ErrWaitingOnRIT     = errors.New("waiting on run-it-twice response")
	ErrHandNotResolved  = errors.New("hand not resolved")
)

// IllegalActionError describes why a submitted action was rejected.
// The table state is unchanged when one is returned.
type IllegalActionError struct {
	Reason string
}

func (e *IllegalActionError) Error() string {
	return "illegal action: " + e.Reason
}

func illegalf(format string, args ...any) error {
	return &IllegalActionError{Reason: fmt.Sprintf(format, args...)}
}
