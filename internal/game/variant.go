package game

import (
	"fmt"

	"github.com/feltserver/felt/internal/evaluator"
)

// Variant identifies the poker game being dealt
type Variant string

const (
	Holdem        Variant = "holdem"
	Omaha         Variant = "omaha"
	OmahaHiLo     Variant = "omaha-hi-lo"
	SevenStud     Variant = "7-stud"
	SevenStudHiLo Variant = "7-stud-hi-lo"
	FiveStud      Variant = "5-stud"
)

// BettingMode is the betting structure for a table
type BettingMode string

const (
	NoLimit  BettingMode = "no-limit"
	PotLimit BettingMode = "pot-limit"
)

// VariantRules is the per-variant policy: how cards are dealt, how hole
// cards combine at showdown and whether the pot splits hi/lo
type VariantRules struct {
	HoleCount   int  // cards dealt to each player before the first round
	ExactHole   int  // hole cards that must play (omaha); 0 = any
	HiLo        bool // 8-or-better low half
	Stud        bool // stud dealing, bring-in and up-card turn order
	DownAtStart int  // stud: down cards dealt on third street
	UpAtStart   int  // stud: up cards dealt on third street
	Stages      []Stage
}

// Rules returns the policy for a variant
func (v Variant) Rules() VariantRules {
	switch v {
	case Holdem:
		return VariantRules{
			HoleCount: 2,
			Stages:    []Stage{StagePreflop, StageFlop, StageTurn, StageRiver, StageShowdown},
		}
	case Omaha:
		return VariantRules{
			HoleCount: 4,
			ExactHole: 2,
			Stages:    []Stage{StagePreflop, StageFlop, StageTurn, StageRiver, StageShowdown},
		}
	case OmahaHiLo:
		return VariantRules{
			HoleCount: 4,
			ExactHole: 2,
			HiLo:      true,
			Stages:    []Stage{StagePreflop, StageFlop, StageTurn, StageRiver, StageShowdown},
		}
	case SevenStud:
		return VariantRules{
			HoleCount:   3,
			Stud:        true,
			DownAtStart: 2,
			UpAtStart:   1,
			Stages:      []Stage{StageThird, StageFourth, StageFifth, StageSixth, StageSeventh, StageShowdown},
		}
	case SevenStudHiLo:
		return VariantRules{
			HoleCount:   3,
			Stud:        true,
			HiLo:        true,
			DownAtStart: 2,
			UpAtStart:   1,
			Stages:      []Stage{StageThird, StageFourth, StageFifth, StageSixth, StageSeventh, StageShowdown},
		}
	case FiveStud:
		return VariantRules{
			HoleCount:   2,
			Stud:        true,
			DownAtStart: 1,
			UpAtStart:   1,
			Stages:      []Stage{StageThird, StageFourth, StageFifth, StageSixth, StageShowdown},
		}
	default:
		return VariantRules{}
	}
}

// Valid reports whether v names a supported variant
func (v Variant) Valid() bool {
	return len(v.Rules().Stages) > 0
}

// Selection returns the evaluator selection rule for this variant
func (r VariantRules) Selection() evaluator.Selection {
	return evaluator.Selection{ExactHole: r.ExactHole}
}

// Community reports whether the variant deals shared board cards
func (r VariantRules) Community() bool {
	return !r.Stud
}

// dealOnStage returns the cards dealt when entering a stage mid-hand:
// community count for board games, (up, down) per player for stud
func (r VariantRules) dealOnStage(s Stage) (community, upEach, downEach int) {
	if !r.Stud {
		switch s {
		case StageFlop:
			return 3, 0, 0
		case StageTurn, StageRiver:
			return 1, 0, 0
		}
		return 0, 0, 0
	}
	switch s {
	case StageFourth, StageFifth, StageSixth:
		return 0, 1, 0
	case StageSeventh:
		return 0, 0, 1
	}
	return 0, 0, 0
}

// boardTarget returns the final community card count for the variant
func (r VariantRules) boardTarget() int {
	if r.Stud {
		return 0
	}
	return 5
}

// ParseVariant validates a variant name
func ParseVariant(s string) (Variant, error) {
	v := Variant(s)
	if !v.Valid() {
		return "", fmt.Errorf("unknown variant %q", s)
	}
	return v, nil
}

// ParseBettingMode validates a betting mode name
func ParseBettingMode(s string) (BettingMode, error) {
	switch BettingMode(s) {
	case NoLimit, PotLimit:
		return BettingMode(s), nil
	}
	return "", fmt.Errorf("unknown betting mode %q", s)
}
