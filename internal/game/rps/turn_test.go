package rps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"community-game-bot/internal/model"
)

func TestDecideRound_Table(t *testing.T) {
	tests := []struct {
		a, b Move
		want Outcome
	}{
		{Rock, Scissors, SideA},
		{Paper, Rock, SideA},
		{Scissors, Paper, SideA},
		{Scissors, Rock, SideB},
		{Rock, Paper, SideB},
		{Paper, Scissors, SideB},
		{Rock, Rock, Tie},
		{Paper, Paper, Tie},
		{Scissors, Scissors, Tie},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DecideRound(tt.a, tt.b), "%s vs %s", tt.a, tt.b)
	}
}

func genMove() *rapid.Generator[Move] {
	return rapid.SampledFrom(Moves[:])
}

// Equal moves tie and distinct moves are anti-symmetric.
func TestDecideRound_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := genMove().Draw(t, "a")
		b := genMove().Draw(t, "b")

		got := DecideRound(a, b)
		if got != DecideRound(a, b) {
			t.Fatalf("not deterministic")
		}
		if a == b {
			if got != Tie {
				t.Fatalf("%s vs itself gave %s", a, got)
			}
			return
		}
		rev := DecideRound(b, a)
		if (got == SideA) != (rev == SideB) || got == Tie {
			t.Fatalf("%s/%s: %s, reversed %s", a, b, got, rev)
		}
	})
}

func TestParseMove(t *testing.T) {
	for _, s := range []string{"rock", "ROCK", " r "} {
		m, err := ParseMove(s)
		require.NoError(t, err)
		assert.Equal(t, Rock, m)
	}
	m, err := ParseMove("Scissors")
	require.NoError(t, err)
	assert.Equal(t, Scissors, m)

	_, err = ParseMove("lizard")
	assert.ErrorIs(t, err, ErrInvalidMove)
	assert.False(t, Move(7).Valid())
	assert.Equal(t, "paper", Paper.String())
}

func historyOf(firstMovers ...string) []*model.MatchRecord {
	out := make([]*model.MatchRecord, 0, len(firstMovers))
	for _, id := range firstMovers {
		other := "x"
		out = append(out, &model.MatchRecord{
			Player1: model.MatchParticipant{UserID: id},
			Player2: model.MatchParticipant{UserID: other},
			Status:  model.MatchStatusCompleted,
		})
	}
	return out
}

func TestDecideFirstMover(t *testing.T) {
	assert.Equal(t, "c", DecideFirstMover(nil, "c", "o"), "no history: challenger first")

	sixFour := historyOf("c", "c", "c", "c", "c", "c", "o", "o", "o", "o")
	assert.Equal(t, "o", DecideFirstMover(sixFour, "c", "o"))

	even := historyOf("c", "o", "c", "o")
	assert.Equal(t, "c", DecideFirstMover(even, "c", "o"))

	behind := historyOf("c", "o", "o")
	assert.Equal(t, "c", DecideFirstMover(behind, "c", "o"))
}

// The opponent goes first exactly when the challenger led strictly more often.
func TestDecideFirstMover_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		firsts := rapid.SliceOfN(rapid.SampledFrom([]string{"c", "o"}), 0, 10).Draw(t, "firsts")

		var cf, of int
		for _, f := range firsts {
			if f == "c" {
				cf++
			} else {
				of++
			}
		}
		got := DecideFirstMover(historyOf(firsts...), "c", "o")
		want := "c"
		if cf > of {
			want = "o"
		}
		if got != want {
			t.Fatalf("c=%d o=%d: got %s want %s", cf, of, got, want)
		}
	})
}

func TestScoreRound_CapsAndTies(t *testing.T) {
	wins := [2]int{1, 1}
	step := scoreRound(&wins, 2, Tie)
	assert.False(t, step.finished)
	assert.Equal(t, -1, step.winner)
	assert.Equal(t, [2]int{1, 1}, wins)

	step = scoreRound(&wins, 3, SideB)
	assert.True(t, step.finished)
	assert.Equal(t, 1, step.winner)
	assert.Equal(t, [2]int{1, 2}, wins)

	wins = [2]int{1, 0}
	step = scoreRound(&wins, 2, SideA)
	assert.True(t, step.finished, "two wins end the match before round 3")
}
