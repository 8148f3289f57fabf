package server

import (
	"errors"

	"github.com/feltserver/felt/internal/game"
)

// Code classifies action failures for the client acknowledgement
// envelope. Input and state errors leave the table unchanged.
type Code string

const (
	CodeTableNotFound  Code = "TableNotFound"
	CodePlayerNotFound Code = "PlayerNotFound"
	CodeNotYourTurn    Code = "NotYourTurn"
	CodeIllegalAction  Code = "IllegalAction"
	CodeHandLocked     Code = "HandLocked"
	CodeWaitingOnRIT   Code = "WaitingOnRIT"
	CodeRateLimited    Code = "RateLimited"
	CodeUnavailable    Code = "Unavailable"
)

// Ack is the acknowledgement envelope returned for every inbound
// action.
type Ack struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Code    Code   `json:"code,omitempty"`
}

func okAck() Ack {
	return Ack{Success: true}
}

func errAck(err error) Ack {
	return Ack{Success: false, Error: err.Error(), Code: codeFor(err)}
}

// codeFor maps engine errors onto the wire taxonomy.
func codeFor(err error) Code {
	var illegal *game.IllegalActionError
	switch {
	case errors.Is(err, game.ErrNotYourTurn):
		return CodeNotYourTurn
	case errors.Is(err, game.ErrPlayerNotFound):
		return CodePlayerNotFound
	case errors.Is(err, game.ErrHandLocked):
		return CodeHandLocked
	case errors.Is(err, game.ErrWaitingOnRIT):
		return CodeWaitingOnRIT
	case errors.As(err, &illegal),
		errors.Is(err, game.ErrHandInProgress),
		errors.Is(err, game.ErrNoActiveHand),
		errors.Is(err, game.ErrNotEnoughPlayers),
		errors.Is(err, game.ErrSeatTaken),
		errors.Is(err, game.ErrHandNotResolved):
		return CodeIllegalAction
	case errors.Is(err, errRateLimited):
		return CodeRateLimited
	case errors.Is(err, errUnavailable):
		return CodeUnavailable
	case errors.Is(err, errTableNotFound):
		return CodeTableNotFound
	}
	return CodeIllegalAction
}

var (
	errTableNotFound = errors.New("table not found")
	errRateLimited   = errors.New("rate limited")
	errUnavailable   = errors.New("server unavailable")
	errBadToken      = errors.New("invalid reconnect token")
)
