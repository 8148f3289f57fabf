package server

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/feltserver/felt/internal/game"
)

// Mailbox messages. Every mutation of a table flows through its runner
// loop; timers and the transport only post messages.

type actionMsg struct {
	action game.Action
	auto   bool
	reply  chan Ack
}

type startHandMsg struct{ reply chan Ack }

type joinMsg struct {
	playerID string
	name     string
	seat     int
	stack    int
	reply    chan Ack
}

type leaveMsg struct {
	playerID string
	reply    chan Ack
}

type ritMsg struct {
	playerID string
	runs     int
	accept   bool
	reply    chan Ack
}

type timebankMsg struct {
	playerID string
	reply    chan Ack
}

type rabbitMsg struct {
	playerID string
	street   game.Stage
	reply    chan rabbitReply
}

type rabbitReply struct {
	ack     Ack
	preview *game.RabbitPreview
}

type stateMsg struct {
	playerID string
	reply    chan TableView
}

type disconnectMsg struct {
	playerID string
	reply    chan string
}

type reconnectMsg struct {
	playerID string
	token    string
	reply    chan reconnectReply
}

type reconnectReply struct {
	ack     Ack
	payload *ReconcilePayload
}

// disconnectAutoMsg fires when a disconnected active player's forced
// action comes due. The action itself is computed in the loop.
type disconnectAutoMsg struct{ playerID string }

type graceExpiredMsg struct{ playerID string }

type shutdownMsg struct{ done chan struct{} }

// tableRunner owns one table: a single goroutine dequeues client
// actions, timer fires and reconnect events, and is the only writer of
// the table state.
type tableRunner struct {
	table     *game.Table
	logger    *log.Logger
	clock     quartz.Clock
	timers    TimerConfig
	revealGap time.Duration
	autoStart bool

	bc    *Broadcaster
	turn  *turnTimer
	recon *ReconnectManager
	store Store
	hist  *actionLog

	mailbox chan any

	revealT       *quartz.Timer
	revealEpoch   uint64
	revealPending bool
	replenishT    *quartz.Timer
	nextHandT     *quartz.Timer

	lastReplenish    map[string]time.Time
	disconnectTimers map[string]*quartz.Timer
	lastActor        string
	handledResult    string
	poisoned         bool
}

func newTableRunner(
	table *game.Table,
	logger *log.Logger,
	clock quartz.Clock,
	timers TimerConfig,
	revealGap time.Duration,
	autoStart bool,
	bc *Broadcaster,
	recon *ReconnectManager,
	store Store,
	maxHistory int,
) *tableRunner {
	r := &tableRunner{
		table:            table,
		logger:           logger.WithPrefix("table").With("table", table.ID),
		clock:            clock,
		timers:           timers,
		revealGap:        revealGap,
		autoStart:        autoStart,
		bc:               bc,
		recon:            recon,
		store:            store,
		hist:             newActionLog(maxHistory),
		mailbox:          make(chan any, 128),
		lastReplenish:    make(map[string]time.Time),
		disconnectTimers: make(map[string]*quartz.Timer),
	}
	r.turn = newTurnTimer(clock, timers, r.post)
	return r
}

// post delivers a timer callback into the mailbox.
func (r *tableRunner) post(msg timerMsg) {
	r.mailbox <- msg
}

// run is the table loop. It exits on shutdown.
func (r *tableRunner) run() {
	r.armReplenish()
	for raw := range r.mailbox {
		switch msg := raw.(type) {
		case actionMsg:
			r.handleAction(msg)
		case startHandMsg:
			r.reply(msg.reply, r.startHand())
		case joinMsg:
			r.handleJoin(msg)
		case leaveMsg:
			r.handleLeave(msg)
		case ritMsg:
			r.handleRIT(msg)
		case timebankMsg:
			r.handleTimebank(msg)
		case rabbitMsg:
			r.handleRabbit(msg)
		case stateMsg:
			msg.reply <- BuildView(r.table, msg.playerID)
		case disconnectMsg:
			r.handleDisconnect(msg)
		case reconnectMsg:
			r.handleReconnect(msg)
		case disconnectAutoMsg:
			r.handleDisconnectAuto(msg.playerID)
		case graceExpiredMsg:
			r.handleGraceExpired(msg.playerID)
		case timerMsg:
			r.handleTimer(msg)
		case shutdownMsg:
			r.shutdown()
			close(msg.done)
			return
		}
	}
}

func (r *tableRunner) reply(ch chan Ack, ack Ack) {
	if ch != nil {
		ch <- ack
	}
}

// isInternal separates engine contract violations from user errors.
// Internal failures poison the table until an operator rehydrates it.
func isInternal(err error) bool {
	var illegal *game.IllegalActionError
	if errors.As(err, &illegal) {
		return false
	}
	for _, known := range []error{
		game.ErrNotYourTurn, game.ErrPlayerNotFound, game.ErrHandLocked,
		game.ErrWaitingOnRIT, game.ErrHandInProgress, game.ErrNoActiveHand,
		game.ErrNotEnoughPlayers, game.ErrSeatTaken, game.ErrHandNotResolved,
	} {
		if errors.Is(err, known) {
			return false
		}
	}
	return true
}

// poison marks the table unusable after an internal invariant failure:
// the state is persisted for forensics and every further message gets
// Unavailable until Rehydrate.
func (r *tableRunner) poison(err error) {
	r.logger.Error("internal engine failure; table poisoned", "err", err)
	r.poisoned = true
	r.turn.Stop()
	r.cancelReveal()
	r.persistSync()
}

func (r *tableRunner) handleAction(msg actionMsg) {
	if r.poisoned {
		r.reply(msg.reply, errAck(errUnavailable))
		return
	}
	if !msg.auto && !r.bc.Allow() {
		r.reply(msg.reply, errAck(errRateLimited))
		return
	}
	if err := r.table.Apply(msg.action); err != nil {
		if msg.auto {
			// A stale auto-action: the player acted or reconnected first
			r.logger.Debug("discarding stale auto action", "player", msg.action.PlayerID, "err", err)
			return
		}
		if isInternal(err) {
			r.poison(err)
			r.reply(msg.reply, errAck(errUnavailable))
			return
		}
		r.reply(msg.reply, errAck(err))
		return
	}

	r.reply(msg.reply, okAck())
	r.afterMutation(EventPlayerAction, PlayerActionEvent{
		TableID:  r.table.ID,
		PlayerID: msg.action.PlayerID,
		Type:     msg.action.Type,
		Amount:   msg.action.Amount,
		Auto:     msg.auto,
	})
}

func (r *tableRunner) startHand() Ack {
	if r.poisoned {
		return errAck(errUnavailable)
	}
	if err := r.table.StartHand(); err != nil {
		if isInternal(err) {
			r.poison(err)
			return errAck(errUnavailable)
		}
		return errAck(err)
	}
	r.logger.Info("hand started", "hand", r.table.HandID, "players", len(r.table.Players))
	r.afterMutation("", nil)
	return okAck()
}

func (r *tableRunner) handleJoin(msg joinMsg) {
	if r.poisoned {
		r.reply(msg.reply, errAck(errUnavailable))
		return
	}
	if err := r.table.AddPlayer(msg.playerID, msg.name, msg.seat, msg.stack); err != nil {
		r.reply(msg.reply, errAck(err))
		return
	}
	if p, ok := r.table.Player(msg.playerID); ok {
		p.TimeBankMs = r.timers.TimeBankInitial.Milliseconds()
	}
	r.lastReplenish[msg.playerID] = r.clock.Now()
	r.reply(msg.reply, okAck())

	if r.autoStart && !r.handRunning() {
		if ack := r.startHand(); ack.Success {
			return
		}
	}
	r.afterMutation("", nil)
}

func (r *tableRunner) handleLeave(msg leaveMsg) {
	if err := r.table.RemovePlayer(msg.playerID); err != nil {
		r.reply(msg.reply, errAck(err))
		return
	}
	delete(r.lastReplenish, msg.playerID)
	r.cancelDisconnectTimer(msg.playerID)
	r.reply(msg.reply, okAck())
	r.afterMutation("", nil)
}

func (r *tableRunner) handleRIT(msg ritMsg) {
	if r.poisoned {
		r.reply(msg.reply, errAck(errUnavailable))
		return
	}
	var err error
	if msg.accept {
		err = r.table.EnableRIT(msg.playerID, msg.runs)
	} else {
		err = r.table.DeclineRIT(msg.playerID)
	}
	if err != nil {
		r.reply(msg.reply, errAck(err))
		return
	}
	r.reply(msg.reply, okAck())

	if rit := r.table.RIT; rit != nil && rit.Enabled {
		r.bc.Event(EventRITEnabled, RITEnabledEvent{
			TableID: r.table.ID,
			Runs:    rit.NumberOfRuns,
			RIT:     sanitizeRIT(rit),
		})
	}
	r.afterMutation("", nil)
}

func (r *tableRunner) handleTimebank(msg timebankMsg) {
	if r.poisoned {
		r.reply(msg.reply, errAck(errUnavailable))
		return
	}
	p, ok := r.table.Player(msg.playerID)
	if !ok {
		r.reply(msg.reply, errAck(game.ErrPlayerNotFound))
		return
	}
	if r.table.ActivePlayer != msg.playerID {
		r.reply(msg.reply, errAck(game.ErrNotYourTurn))
		return
	}
	if p.TimeBankMs <= 0 {
		r.reply(msg.reply, errAck(&game.IllegalActionError{Reason: "time bank is empty"}))
		return
	}
	spend := time.Duration(p.TimeBankMs) * time.Millisecond
	p.TimeBankMs = 0
	r.turn.Extend(spend)
	r.reply(msg.reply, okAck())

	r.bc.Event(EventTimebankUpdate, TimebankUpdateEvent{
		TableID: r.table.ID, PlayerID: msg.playerID, AmountMs: 0,
	})
	r.emitTimer(false)
}

func (r *tableRunner) handleRabbit(msg rabbitMsg) {
	if r.poisoned {
		msg.reply <- rabbitReply{ack: errAck(errUnavailable)}
		return
	}
	if !r.table.HandResolved {
		msg.reply <- rabbitReply{ack: errAck(game.ErrHandNotResolved)}
		return
	}
	preview, err := r.table.RabbitHunt(msg.street)
	if err != nil {
		msg.reply <- rabbitReply{ack: errAck(err)}
		return
	}
	msg.reply <- rabbitReply{ack: okAck(), preview: preview}
}

func (r *tableRunner) handleDisconnect(msg disconnectMsg) {
	token := r.recon.HandleDisconnect(r.table.ID, msg.playerID)
	if msg.reply != nil {
		msg.reply <- token
	}

	// The active player gets max(5s, time bank) before a forced action;
	// the regular turn clock yields to that window. Everyone else just
	// rides the grace window.
	if r.table.ActivePlayer == msg.playerID {
		p, ok := r.table.Player(msg.playerID)
		if !ok {
			return
		}
		delay := 5 * time.Second
		if bank := time.Duration(p.TimeBankMs) * time.Millisecond; bank > delay {
			delay = bank
		}
		r.turn.Stop()
		r.lastActor = ""
		playerID := msg.playerID
		r.cancelDisconnectTimer(playerID)
		r.disconnectTimers[playerID] = r.clock.AfterFunc(delay, func() {
			r.mailbox <- disconnectAutoMsg{playerID: playerID}
		})
	}

	playerID := msg.playerID
	r.clock.AfterFunc(r.recon.grace, func() {
		r.mailbox <- graceExpiredMsg{playerID: playerID}
	})
}

// handleDisconnectAuto forces the action of a disconnected player whose
// wait ran out while the hand needed them.
func (r *tableRunner) handleDisconnectAuto(playerID string) {
	delete(r.disconnectTimers, playerID)
	if r.table.ActivePlayer != playerID {
		return
	}
	action := r.table.AutoAction(playerID)
	r.logger.Info("forcing action for disconnected player", "player", playerID, "auto", action.Type)
	r.handleAction(actionMsg{action: action, auto: true})
}

func (r *tableRunner) handleReconnect(msg reconnectMsg) {
	disconnectedAt, _ := r.recon.DisconnectedAt(r.table.ID, msg.playerID)
	remaining, err := r.recon.HandleReconnect(r.table.ID, msg.playerID, msg.token)
	if err != nil {
		msg.reply <- reconnectReply{ack: errAck(&game.IllegalActionError{Reason: err.Error()})}
		return
	}
	r.cancelDisconnectTimer(msg.playerID)

	// A fresh turn clock if it is still their turn
	if r.table.ActivePlayer == msg.playerID {
		r.lastActor = msg.playerID
		r.turn.StartTurn(msg.playerID)
		r.emitTimer(false)
	}

	payload := ReconcilePayload{
		TableID:          r.table.ID,
		Sequence:         r.bc.Sequence(),
		State:            BuildView(r.table, msg.playerID),
		GraceRemainingMs: remaining.Milliseconds(),
		MissedActions:    r.hist.Since(disconnectedAt),
	}
	r.bc.Reconcile(msg.playerID, payload)
	msg.reply <- reconnectReply{ack: okAck(), payload: &payload}
}

// handleGraceExpired commits the forfeiture of a player whose grace
// window lapsed without a reconnect.
func (r *tableRunner) handleGraceExpired(playerID string) {
	if !r.recon.ExpireIfElapsed(r.table.ID, playerID, r.clock.Now()) {
		return // reconnected in time
	}
	r.logger.Info("grace elapsed, removing player", "player", playerID)
	r.cancelDisconnectTimer(playerID)
	if err := r.table.RemovePlayer(playerID); err != nil {
		return
	}
	delete(r.lastReplenish, playerID)
	r.afterMutation("", nil)
}

func (r *tableRunner) handleTimer(msg timerMsg) {
	switch msg.kind {
	case timerWarning:
		if !r.turn.current(msg) {
			return
		}
		r.turn.warned = true
		r.emitTimer(true)

	case timerExpiry:
		if !r.turn.current(msg) {
			return
		}
		action := r.table.AutoAction(msg.playerID)
		r.logger.Info("turn expired", "player", msg.playerID, "auto", action.Type)
		r.handleAction(actionMsg{action: action, auto: true})

	case timerReveal:
		if msg.epoch != r.revealEpoch {
			return
		}
		r.revealPending = false
		r.handleReveal()

	case timerReplenish:
		r.tickReplenish(r.clock.Now())
		r.armReplenish()

	case timerNextHand:
		if r.handRunning() {
			return
		}
		if ack := r.startHand(); !ack.Success {
			r.logger.Debug("auto start skipped", "reason", ack.Error)
		}
	}
}

// handleReveal advances a locked hand by one scheduled step.
func (r *tableRunner) handleReveal() {
	t := r.table
	if t.HandResolved || r.poisoned {
		return
	}
	if t.RITPrompt != nil {
		return // reveals resume once the prompt resolves
	}

	if rit := t.RIT; rit != nil && rit.Enabled {
		res, err := t.RunItTwiceNow()
		if err != nil {
			r.poison(err)
			return
		}
		r.finishHand(res)
		return
	}

	if t.AllInLocked() {
		cards, _, err := t.RevealNextStreet()
		if err != nil {
			r.poison(err)
			return
		}
		r.logger.Info("auto runout reveal", "stage", t.Stage, "cards", len(cards))
		r.broadcastState()
		// One more gap after the final street, then showdown
		r.scheduleReveal()
		return
	}

	// Board complete: enter showdown
	res, err := t.FinishRunout()
	if err != nil {
		r.poison(err)
		return
	}
	r.finishHand(res)
}

func (r *tableRunner) scheduleReveal() {
	r.revealEpoch++
	r.revealPending = true
	epoch := r.revealEpoch
	r.revealT = r.clock.AfterFunc(r.revealGap, func() {
		r.mailbox <- timerMsg{kind: timerReveal, epoch: epoch}
	})
}

func (r *tableRunner) cancelReveal() {
	r.revealEpoch++
	r.revealPending = false
	if r.revealT != nil {
		r.revealT.Stop()
		r.revealT = nil
	}
}

func (r *tableRunner) armReplenish() {
	r.replenishT = r.clock.AfterFunc(r.timers.ReplenishInterval, func() {
		r.mailbox <- timerMsg{kind: timerReplenish}
	})
}

// afterMutation runs the common post-mutation path: echo the action,
// manage timers and runout scheduling, broadcast and persist.
func (r *tableRunner) afterMutation(event string, payload any) {
	t := r.table

	if event != "" {
		r.bc.Event(event, payload)
		r.hist.Append(r.bc.Sequence()+1, event, payload, r.clock.Now())
	}

	if t.HandResolved && t.LastResult != nil && r.handledResult != t.HandID {
		// Resolution happened inside Apply (win by fold, final street
		// showdown)
		r.finishHand(t.LastResult)
		return
	}

	r.broadcastState()

	if t.AllInLocked() {
		r.turn.Stop()
		r.lastActor = ""
		if t.RITPrompt == nil && t.RIT == nil && !t.RITDisabled && t.RITEligible() {
			if prompt := t.PromptRIT(); prompt != nil {
				r.bc.Event(EventRITPrompt, RITPromptEvent{
					TableID: t.ID, Prompt: *prompt, MaxRuns: t.MaxRuns(),
				})
				r.broadcastState()
				r.persistAsync()
				return
			}
		}
		if t.RITPrompt == nil && !r.revealPending {
			r.scheduleReveal()
		}
		r.persistAsync()
		return
	}

	if t.ActivePlayer != "" && t.ActivePlayer != r.lastActor {
		r.lastActor = t.ActivePlayer
		r.turn.StartTurn(t.ActivePlayer)
		r.emitTimer(false)
	} else if t.ActivePlayer == "" {
		r.lastActor = ""
		r.turn.Stop()
	}

	r.persistAsync()
}

// finishHand emits results, persists outcomes and schedules the next
// hand.
func (r *tableRunner) finishHand(res *game.HandResult) {
	r.handledResult = r.table.HandID
	r.turn.Stop()
	r.lastActor = ""
	r.cancelReveal()

	result := HandResultEvent{TableID: r.table.ID, Result: res}
	r.bc.Event(EventHandResult, result)
	r.hist.Append(r.bc.Sequence()+1, EventHandResult, result, r.clock.Now())
	r.broadcastState()

	for _, run := range res.Runs {
		rec := RITOutcomeRecord{
			HandID:      res.HandID,
			BoardNumber: run.BoardNumber,
			PotAmount:   run.PotAmount,
			Winners:     run.Winners,
		}
		for _, c := range run.Board {
			rec.Community = append(rec.Community, c.String())
		}
		r.saveOutcomeAsync(rec)
	}
	r.persistAsync()

	if r.autoStart {
		r.nextHandT = r.clock.AfterFunc(r.revealGap, func() {
			r.mailbox <- timerMsg{kind: timerNextHand}
		})
	}
}

// tickReplenish grants time bank for each full interval elapsed per
// player, capped at the maximum.
func (r *tableRunner) tickReplenish(now time.Time) {
	maxMs := r.timers.TimeBankMax.Milliseconds()
	grantMs := r.timers.ReplenishAmount.Milliseconds()
	for _, p := range r.table.Players {
		last, ok := r.lastReplenish[p.ID]
		if !ok {
			r.lastReplenish[p.ID] = now
			continue
		}
		intervals := int64(now.Sub(last) / r.timers.ReplenishInterval)
		if intervals <= 0 || p.TimeBankMs >= maxMs {
			continue
		}
		p.TimeBankMs += intervals * grantMs
		if p.TimeBankMs > maxMs {
			p.TimeBankMs = maxMs
		}
		r.lastReplenish[p.ID] = last.Add(time.Duration(intervals) * r.timers.ReplenishInterval)
		r.bc.EventTo(p.ID, EventTimebankUpdate, TimebankUpdateEvent{
			TableID: r.table.ID, PlayerID: p.ID, AmountMs: p.TimeBankMs,
		})
	}
}

func (r *tableRunner) emitTimer(warning bool) {
	r.bc.Event(EventTimerUpdate, TimerUpdateEvent{
		TableID:     r.table.ID,
		PlayerID:    r.table.ActivePlayer,
		RemainingMs: r.turn.Remaining().Milliseconds(),
		Warning:     warning,
	})
}

func (r *tableRunner) broadcastState() {
	if _, err := r.bc.StateUpdate(r.table); err != nil {
		r.logger.Warn("state update skipped", "err", err)
	}
}

func (r *tableRunner) handRunning() bool {
	return !r.table.HandResolved && r.table.Stage != game.StageWaiting
}

func (r *tableRunner) cancelDisconnectTimer(playerID string) {
	if t, ok := r.disconnectTimers[playerID]; ok {
		t.Stop()
		delete(r.disconnectTimers, playerID)
	}
}

// persistAsync snapshots the table in-loop and writes it out on a
// side goroutine with retry; failures never block the table.
func (r *tableRunner) persistAsync() {
	snap := r.snapshotCopy()
	if snap == nil {
		return
	}
	tableID := r.table.ID
	go func() {
		backoff := 100 * time.Millisecond
		for attempt := 0; attempt < 3; attempt++ {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := r.store.SaveSnapshot(ctx, tableID, snap)
			cancel()
			if err == nil {
				return
			}
			r.logger.Warn("snapshot save failed", "attempt", attempt+1, "err", err)
			time.Sleep(backoff)
			backoff *= 2
		}
	}()
}

func (r *tableRunner) saveOutcomeAsync(rec RITOutcomeRecord) {
	go func() {
		backoff := 100 * time.Millisecond
		for attempt := 0; attempt < 3; attempt++ {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := r.store.SaveRITOutcome(ctx, rec)
			cancel()
			if err == nil {
				return
			}
			r.logger.Warn("rit outcome save failed", "attempt", attempt+1, "err", err)
			time.Sleep(backoff)
			backoff *= 2
		}
	}()
}

// persistSync writes the snapshot inline; used at shutdown and when
// poisoning.
func (r *tableRunner) persistSync() {
	snap := r.snapshotCopy()
	if snap == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.store.SaveSnapshot(ctx, r.table.ID, snap); err != nil {
		r.logger.Error("final snapshot save failed", "err", err)
	}
}

// snapshotCopy detaches a snapshot from the live table so the store
// goroutine never touches loop-owned state.
func (r *tableRunner) snapshotCopy() *game.Snapshot {
	blob, err := game.EncodeSnapshot(r.table.ToSnapshot())
	if err != nil {
		r.logger.Error("snapshot encode failed", "err", err)
		return nil
	}
	snap, err := game.DecodeSnapshot(blob)
	if err != nil {
		r.logger.Error("snapshot re-decode failed", "err", err)
		return nil
	}
	return snap
}

// shutdown cancels timers and persists a final snapshot.
func (r *tableRunner) shutdown() {
	r.turn.Stop()
	r.cancelReveal()
	if r.replenishT != nil {
		r.replenishT.Stop()
	}
	if r.nextHandT != nil {
		r.nextHandT.Stop()
	}
	for id := range r.disconnectTimers {
		r.cancelDisconnectTimer(id)
	}
	r.persistSync()
	r.bc.Close()
	r.logger.Info("table stopped")
}
