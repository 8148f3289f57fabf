package game

// ActionType enumerates the voluntary betting actions.
type ActionType string

const (
	ActionFold  ActionType = "fold"
	ActionCheck ActionType = "check"
	ActionCall  ActionType = "call"
	ActionBet   ActionType = "bet"
	ActionRaise ActionType = "raise"
)

// Action is a submitted betting action. Amount is the total bet for the
// round ("raise to"), not the increment.
type Action struct {
	Type     ActionType `json:"type"`
	PlayerID string     `json:"playerId"`
	Amount   int        `json:"amount,omitempty"`
}

// Apply validates and applies a betting action, advancing the turn and
// the stage as needed. The table is unchanged when an error is returned.
func (t *Table) Apply(a Action) error {
	if !t.handRunning() || t.Stage == StageShowdown {
		return ErrNoActiveHand
	}
	if t.RITPrompt != nil {
		return ErrWaitingOnRIT
	}
	if t.AllInLocked() {
		return ErrHandLocked
	}
	p, ok := t.Player(a.PlayerID)
	if !ok {
		return ErrPlayerNotFound
	}
	if t.ActivePlayer != a.PlayerID {
		return ErrNotYourTurn
	}

	switch a.Type {
	case ActionFold:
		p.Folded = true
		p.HasActed = true

	case ActionCheck:
		if t.CurrentBet != p.CurrentBet {
			return illegalf("cannot check facing a bet of %d", t.CurrentBet)
		}
		p.HasActed = true

	case ActionCall:
		if t.CurrentBet <= p.CurrentBet {
			return illegalf("nothing to call")
		}
		p.commit(t.CurrentBet - p.CurrentBet)
		p.HasActed = true

	case ActionBet:
		if t.CurrentBet != 0 {
			return illegalf("cannot bet into a bet; raise instead")
		}
		if err := t.validateWager(p, a.Amount, t.BigBlind); err != nil {
			return err
		}
		t.applyWager(p, a.Amount)

	case ActionRaise:
		if t.CurrentBet == 0 {
			return illegalf("nothing to raise; bet instead")
		}
		if t.cannotRaise[p.ID] {
			return illegalf("action not re-opened by the short all-in")
		}
		if err := t.validateWager(p, a.Amount, t.CurrentBet+t.MinRaise); err != nil {
			return err
		}
		t.applyWager(p, a.Amount)

	default:
		return illegalf("unknown action %q", a.Type)
	}

	return t.afterAction(p)
}

// validateWager checks size and cap rules for a bet or raise. minTotal
// is waived when the wager puts the player all-in, but the table bet
// never is: an all-in short of the call must come in as a call.
func (t *Table) validateWager(p *Player, total, minTotal int) error {
	need := total - p.CurrentBet
	if need <= 0 {
		return illegalf("wager must exceed current bet")
	}
	if need > p.Stack {
		return illegalf("wager of %d exceeds stack %d", total, p.Stack+p.CurrentBet)
	}
	if total <= t.CurrentBet {
		return illegalf("wager of %d does not exceed the bet of %d; call instead", total, t.CurrentBet)
	}
	allIn := need == p.Stack
	if total < minTotal && !allIn {
		return illegalf("wager %d below minimum %d", total, minTotal)
	}
	if t.Mode == PotLimit {
		if max := t.potLimitMax(p); total > max {
			return illegalf("wager %d exceeds pot limit %d", total, max)
		}
	}
	return nil
}

// potLimitMax returns the largest legal total wager: a pot-sized raise
// is the call amount plus the pot after calling.
func (t *Table) potLimitMax(p *Player) int {
	toCall := t.CurrentBet - p.CurrentBet
	potAfterCall := t.Pot + toCall
	for _, q := range t.Players {
		potAfterCall += q.CurrentBet
	}
	return p.CurrentBet + toCall + potAfterCall
}

// applyWager commits a validated bet or raise, updating min-raise state.
// A short all-in raise does not re-open the action for players who have
// already matched the previous bet.
func (t *Table) applyWager(p *Player, total int) {
	raiseBy := total - t.CurrentBet
	prevBet := t.CurrentBet
	p.commit(total - p.CurrentBet)
	p.HasActed = true
	t.CurrentBet = total

	if raiseBy >= t.MinRaise || prevBet == 0 {
		if prevBet == 0 && raiseBy < t.MinRaise {
			// Short all-in opening bet: keep the min-raise floor
			t.LastRaise = raiseBy
		} else {
			t.MinRaise = raiseBy
			t.LastRaise = raiseBy
		}
		t.cannotRaise = make(map[string]bool)
		return
	}

	// Short all-in raise: matched players may call but not raise again
	t.LastRaise = raiseBy
	for _, q := range t.Players {
		if q.ID != p.ID && q.CanAct() && q.HasActed && q.CurrentBet == prevBet {
			t.cannotRaise[q.ID] = true
		}
	}
}

// LegalActions lists the actions currently available to a player.
func (t *Table) LegalActions(playerID string) []ActionType {
	p, ok := t.Player(playerID)
	if !ok || t.ActivePlayer != playerID || !t.handRunning() ||
		t.RITPrompt != nil || t.AllInLocked() {
		return nil
	}
	out := []ActionType{ActionFold}
	if t.CurrentBet == p.CurrentBet {
		out = append(out, ActionCheck)
	} else {
		out = append(out, ActionCall)
	}
	if p.Stack > 0 {
		if t.CurrentBet == 0 {
			out = append(out, ActionBet)
		} else if !t.cannotRaise[playerID] && p.Stack > t.CurrentBet-p.CurrentBet {
			out = append(out, ActionRaise)
		}
	}
	return out
}

// AutoAction returns the fallback action for a timed-out or disconnected
// player: check when free, fold when facing a bet.
func (t *Table) AutoAction(playerID string) Action {
	p, ok := t.Player(playerID)
	if ok && t.CurrentBet == p.CurrentBet {
		return Action{Type: ActionCheck, PlayerID: playerID}
	}
	return Action{Type: ActionFold, PlayerID: playerID}
}
