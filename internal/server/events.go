package server

import (
	"time"

	"github.com/feltserver/felt/internal/game"
)

// Outbound event names, the broadcaster contract with clients.
const (
	EventStateUpdate    = "state_update"
	EventReconcile      = "reconcile"
	EventPlayerAction   = "player_action"
	EventTimerUpdate    = "timer_update"
	EventTimebankUpdate = "timebank_update"
	EventRITPrompt      = "rit_prompt"
	EventRITEnabled     = "rit_enabled"
	EventHandResult     = "hand_result"
)

// StateUpdatePayload carries a sequenced table state.
type StateUpdatePayload struct {
	TableID  string    `json:"tableId"`
	Sequence uint64    `json:"sequence"`
	State    TableView `json:"state"`
}

// ReconcilePayload is the full recovery message sent to a reconnecting
// player: current state, the stream position, the grace remaining and
// every action they missed, in order.
type ReconcilePayload struct {
	TableID          string         `json:"tableId"`
	Sequence         uint64         `json:"sequence"`
	State            TableView      `json:"fullState"`
	GraceRemainingMs int64          `json:"graceRemainingMs"`
	MissedActions    []LoggedAction `json:"missedActions"`
}

// LoggedAction is one entry of the per-table action log.
type LoggedAction struct {
	Sequence uint64    `json:"sequence"`
	Event    string    `json:"event"`
	Payload  any       `json:"payload"`
	At       time.Time `json:"at"`
}

// PlayerActionEvent echoes an applied action to the table.
type PlayerActionEvent struct {
	TableID  string          `json:"tableId"`
	PlayerID string          `json:"playerId"`
	Type     game.ActionType `json:"type"`
	Amount   int             `json:"amount,omitempty"`
	Auto     bool            `json:"auto,omitempty"`
}

// TimerUpdateEvent reports the turn clock.
type TimerUpdateEvent struct {
	TableID     string `json:"tableId"`
	PlayerID    string `json:"playerId"`
	RemainingMs int64  `json:"remainingMs"`
	Warning     bool   `json:"warning"`
}

// TimebankUpdateEvent reports a time-bank balance change.
type TimebankUpdateEvent struct {
	TableID  string `json:"tableId"`
	PlayerID string `json:"playerId"`
	AmountMs int64  `json:"amount"`
}

// RITEnabledEvent announces an enabled run-it-twice with its audit
// material.
type RITEnabledEvent struct {
	TableID string         `json:"tableId"`
	Runs    int            `json:"runs"`
	RIT     *game.RITState `json:"rit"`
}

// RITPromptEvent asks the decider whether to run it twice.
type RITPromptEvent struct {
	TableID string          `json:"tableId"`
	Prompt  game.RITPrompt  `json:"prompt"`
	MaxRuns int             `json:"maxRuns"`
}

// HandResultEvent announces a resolved hand.
type HandResultEvent struct {
	TableID string           `json:"tableId"`
	Result  *game.HandResult `json:"result"`
}
