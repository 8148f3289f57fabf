package game

// Stage is a betting round within a hand
type Stage string

const (
	StageWaiting  Stage = "waiting"
	StagePreflop  Stage = "preflop"
	StageFlop     Stage = "flop"
	StageTurn     Stage = "turn"
	StageRiver    Stage = "river"
	StageThird    Stage = "third"
	StageFourth   Stage = "fourth"
	StageFifth    Stage = "fifth"
	StageSixth    Stage = "sixth"
	StageSeventh  Stage = "seventh"
	StageShowdown Stage = "showdown"
)

func (s Stage) String() string { return string(s) }

// next returns the stage following s within the given sequence, or
// showdown when s is the last betting round
func nextStage(stages []Stage, s Stage) Stage {
	for i, st := range stages {
		if st == s && i+1 < len(stages) {
			return stages[i+1]
		}
	}
	return StageShowdown
}
