package game

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/feltserver/felt/internal/deck"
)

// SchemaVersion tags persisted snapshots; bump on incompatible changes.
const SchemaVersion = 1

// Snapshot is the serialisable form of a table: the observable state,
// the deck order and cursor, and the bookkeeping that must survive a
// restart mid-hand.
type Snapshot struct {
	SchemaVersion   int         `json:"schemaVersion"`
	Table           *Table      `json:"tableState"`
	Deck            []deck.Card `json:"deck"`
	DeckCursor      int         `json:"deckCursor"`
	RemovedPlayers  []string    `json:"removedPlayers"`
	RabbitPreviewed bool        `json:"rabbitPreviewed"`
	RITConsents     []string    `json:"ritConsents"`
	CannotRaise     []string    `json:"cannotRaise,omitempty"`

	RITDecider RITDeciderConvention `json:"ritDeciderConvention,omitempty"`
}

// ToSnapshot captures the table for persistence.
func (t *Table) ToSnapshot() *Snapshot {
	s := &Snapshot{
		SchemaVersion:   SchemaVersion,
		Table:           t,
		Deck:            []deck.Card{},
		RemovedPlayers:  append([]string{}, t.removed...),
		RabbitPreviewed: t.RabbitPreviewed,
		RITDecider:      t.decider,
	}
	if t.Players == nil {
		t.Players = []*Player{}
	}
	if t.deck != nil {
		s.Deck = t.deck.Cards()
		s.DeckCursor = t.deck.DrawnCount()
	}
	if t.RIT != nil {
		for id := range t.RIT.Consents {
			s.RITConsents = append(s.RITConsents, id)
		}
		sort.Strings(s.RITConsents)
	}
	for id := range t.cannotRaise {
		s.CannotRaise = append(s.CannotRaise, id)
	}
	sort.Strings(s.CannotRaise)
	return s
}

// Validate checks the structural requirements for restore. A snapshot
// that fails validation is treated as absent by callers.
func (s *Snapshot) Validate() error {
	if s.Table == nil {
		return fmt.Errorf("snapshot missing table state")
	}
	if s.Table.ID == "" {
		return fmt.Errorf("snapshot table id empty")
	}
	if s.Table.Players == nil {
		return fmt.Errorf("snapshot players missing")
	}
	if s.Table.SmallBlind <= 0 || s.Table.BigBlind < s.Table.SmallBlind {
		return fmt.Errorf("snapshot blinds invalid: %d/%d", s.Table.SmallBlind, s.Table.BigBlind)
	}
	if s.Deck == nil {
		return fmt.Errorf("snapshot deck missing")
	}
	if !s.Table.Variant.Valid() {
		return fmt.Errorf("snapshot variant %q unknown", s.Table.Variant)
	}
	return nil
}

// FromSnapshot rebuilds a live table from a snapshot. The RNG stream
// resumes from the hand seed; the deck cursor is authoritative, so
// dealing continues exactly where the snapshot left off.
func FromSnapshot(s *Snapshot, entropy deck.EntropySource) (*Table, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	t := s.Table
	t.rules = t.Variant.Rules()
	t.decider = s.RITDecider
	if t.decider == "" {
		t.decider = DeciderWeakest
	}
	if entropy == nil {
		entropy = deck.CryptoEntropy{}
	}
	t.entropy = entropy
	t.removed = append([]string{}, s.RemovedPlayers...)
	t.RabbitPreviewed = s.RabbitPreviewed
	t.cannotRaise = make(map[string]bool)
	for _, id := range s.CannotRaise {
		t.cannotRaise[id] = true
	}
	if t.RIT != nil && t.RIT.Consents == nil {
		t.RIT.Consents = make(map[string]bool)
		for _, id := range s.RITConsents {
			t.RIT.Consents[id] = true
		}
	}
	if len(s.Deck) > 0 {
		d, err := deck.Restore(s.Deck, s.DeckCursor)
		if err != nil {
			return nil, err
		}
		t.deck = d
	}
	if t.SeedHex != "" {
		rng, err := deck.NewRNGFromHex(t.SeedHex)
		if err != nil {
			return nil, fmt.Errorf("restoring hand rng: %w", err)
		}
		t.rng = rng
	}
	return t, nil
}

// EncodeSnapshot serialises a snapshot for the persistence sink.
func EncodeSnapshot(s *Snapshot) ([]byte, error) {
	return json.Marshal(s)
}

// DecodeSnapshot parses and validates a persisted snapshot blob.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}
