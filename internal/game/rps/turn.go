package rps

import "community-game-bot/internal/model"

// Outcome is the result of one round from the perspective of two sides.
type Outcome int

const (
	Tie Outcome = iota
	SideA
	SideB
)

func (o Outcome) String() string {
	switch o {
	case SideA:
		return model.ResultPlayer1
	case SideB:
		return model.ResultPlayer2
	}
	return model.ResultTie
}

// DecideRound compares two moves. Move i beats move (i+2) mod 3.
func DecideRound(a, b Move) Outcome {
	if a == b {
		return Tie
	}
	if (int(a)+2)%3 == int(b) {
		return SideA
	}
	return SideB
}

// DecideFirstMover picks who moves first between a challenger and an
// opponent given their recent completed matches. The challenger moves first
// unless they moved first strictly more often than the opponent in history.
func DecideFirstMover(history []*model.MatchRecord, challengerID, opponentID string) string {
	var challengerFirst, opponentFirst int
	for _, rec := range history {
		switch rec.FirstMoverID() {
		case challengerID:
			challengerFirst++
		case opponentID:
			opponentFirst++
		}
	}
	if challengerFirst > opponentFirst {
		return opponentID
	}
	return challengerID
}

// roundStep is the state change produced by one decided or tied round.
type roundStep struct {
	outcome  Outcome
	winner   int // side index, -1 on a tie
	finished bool
}

// scoreRound applies an outcome to the win counters. Ties never change the
// round number or the counters.
func scoreRound(wins *[2]int, round int, outcome Outcome) roundStep {
	step := roundStep{outcome: outcome, winner: -1}
	switch outcome {
	case SideA:
		step.winner = 0
	case SideB:
		step.winner = 1
	default:
		return step
	}
	wins[step.winner]++
	step.finished = wins[step.winner] >= WinsNeeded || round >= MaxRounds
	return step
}
