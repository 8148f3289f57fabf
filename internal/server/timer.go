package server

import (
	"time"

	"github.com/coder/quartz"
)

// timerKind discriminates timer-driven mailbox messages.
type timerKind int

const (
	timerWarning timerKind = iota
	timerExpiry
	timerReveal
	timerReplenish
	timerNextHand
)

// timerMsg is posted into the table mailbox by timer callbacks; timers
// never mutate state directly. The epoch guards against a timer firing
// for a turn that has already ended.
type timerMsg struct {
	kind     timerKind
	playerID string
	epoch    uint64
}

// turnTimer runs the single active turn clock for a table. All methods
// are called from the table loop; the quartz callbacks only post
// messages back into it.
type turnTimer struct {
	clock quartz.Clock
	cfg   TimerConfig
	post  func(timerMsg)

	epoch    uint64
	playerID string
	deadline time.Time
	warned   bool
	warnT    *quartz.Timer
	expireT  *quartz.Timer
}

func newTurnTimer(clock quartz.Clock, cfg TimerConfig, post func(timerMsg)) *turnTimer {
	return &turnTimer{clock: clock, cfg: cfg, post: post}
}

// StartTurn arms a fresh turn clock of the default duration, replacing
// any previous one.
func (tt *turnTimer) StartTurn(playerID string) {
	tt.Stop()
	tt.epoch++
	tt.playerID = playerID
	tt.warned = false
	tt.deadline = tt.clock.Now().Add(tt.cfg.DefaultDuration)

	epoch := tt.epoch
	tt.warnT = tt.clock.AfterFunc(tt.cfg.DefaultDuration-tt.cfg.WarningThreshold, func() {
		tt.post(timerMsg{kind: timerWarning, playerID: playerID, epoch: epoch})
	})
	tt.expireT = tt.clock.AfterFunc(tt.cfg.DefaultDuration, func() {
		tt.post(timerMsg{kind: timerExpiry, playerID: playerID, epoch: epoch})
	})
}

// Extend pushes the deadline out by d (the time-bank spend) and clears
// the warning state.
func (tt *turnTimer) Extend(d time.Duration) {
	if tt.expireT == nil {
		return
	}
	tt.deadline = tt.deadline.Add(d)
	tt.warned = false
	if tt.warnT != nil {
		tt.warnT.Stop()
		tt.warnT = nil
	}
	tt.expireT.Reset(tt.deadline.Sub(tt.clock.Now()))
}

// Stop cancels the active turn clock.
func (tt *turnTimer) Stop() {
	tt.epoch++
	if tt.warnT != nil {
		tt.warnT.Stop()
		tt.warnT = nil
	}
	if tt.expireT != nil {
		tt.expireT.Stop()
		tt.expireT = nil
	}
	tt.playerID = ""
}

// current reports whether a timer message belongs to the live turn.
func (tt *turnTimer) current(msg timerMsg) bool {
	return msg.epoch == tt.epoch && msg.playerID == tt.playerID
}

// Remaining returns the time left on the active turn clock.
func (tt *turnTimer) Remaining() time.Duration {
	if tt.expireT == nil {
		return 0
	}
	if d := tt.deadline.Sub(tt.clock.Now()); d > 0 {
		return d
	}
	return 0
}
