// Package handler adapts chat platforms to the rps engine: inbound events
// become controller calls and engine events are rendered back as messages.
package handler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"community-game-bot/internal/game/rps"
)

// notice translates an engine error into the text shown to the player.
func notice(err error) string {
	switch {
	case errors.Is(err, rps.ErrChallengeNotFound):
		return "❌ This challenge is no longer available."
	case errors.Is(err, rps.ErrNotChallengeTarget):
		return "❌ This challenge isn't addressed to you."
	case errors.Is(err, rps.ErrSelfChallenge):
		return "❌ You can't challenge yourself!"
	case errors.Is(err, rps.ErrBotOpponent):
		return "❌ You can't challenge a bot. Try playing vs AI instead!"
	case errors.Is(err, rps.ErrInvalidWager):
		return "❌ Please enter a valid bet amount (a whole number above 0)."
	case errors.Is(err, rps.ErrWagerTooLarge):
		return "❌ That bet is above the table limit."
	case errors.Is(err, rps.ErrInsufficientBalance):
		return "❌ You don't have enough coins for that bet!"
	case errors.Is(err, rps.ErrOpponentBalance):
		return "❌ Your opponent doesn't have enough coins for that bet!"
	case errors.Is(err, rps.ErrRateLimited):
		return "⏳ You're sending challenges too quickly. Try again in a minute."
	case errors.Is(err, rps.ErrMatchNotFound):
		return "❌ This game has expired or been cancelled."
	case errors.Is(err, rps.ErrNotParticipant):
		return "❌ You're not part of this game!"
	case errors.Is(err, rps.ErrNotYourTurn):
		return "⏳ Please wait for your turn!"
	case errors.Is(err, rps.ErrRoundResolving):
		return "⏳ Hold on, the next round is about to start."
	case errors.Is(err, rps.ErrInvalidMove):
		return "❌ That move isn't recognised."
	}
	return "❌ An error occurred while processing your action."
}

// isUserError reports whether err is an expected rejection rather than a fault.
func isUserError(err error) bool {
	for _, target := range []error{
		rps.ErrChallengeNotFound, rps.ErrNotChallengeTarget, rps.ErrSelfChallenge,
		rps.ErrBotOpponent, rps.ErrInvalidWager, rps.ErrWagerTooLarge,
		rps.ErrInsufficientBalance, rps.ErrOpponentBalance, rps.ErrRateLimited,
		rps.ErrMatchNotFound, rps.ErrNotParticipant, rps.ErrNotYourTurn,
		rps.ErrRoundResolving, rps.ErrInvalidMove,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func parseWager(s string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n <= 0 {
		return 0, rps.ErrInvalidWager
	}
	return n, nil
}

func moveLabel(m rps.Move) string {
	name := m.String()
	return m.Emoji() + " " + strings.ToUpper(name[:1]) + name[1:]
}

func scoreLine(v rps.MatchView) string {
	return fmt.Sprintf("%s %d - %d %s", v.Sides[0].Name, v.Sides[0].Wins, v.Sides[1].Wins, v.Sides[1].Name)
}

func reasonText(r rps.EndReason) string {
	switch r {
	case rps.EndForfeit:
		return "forfeit"
	case rps.EndTimeout:
		return "ran out of time"
	}
	return "best of 3"
}

func formatDuration(d time.Duration) string {
	return d.Round(time.Second).String()
}

func challengeText(c rps.Challenge, ttl time.Duration) string {
	return fmt.Sprintf("%s has challenged %s to Rock, Paper, Scissors!\n\n💰 Bet: %d coins\n⏰ Expires in %s",
		c.ChallengerName, c.OpponentName, c.Wager, formatDuration(ttl))
}

func promptText(v rps.MatchView) string {
	turn := v.Turn()
	var head string
	switch v.Prompt {
	case rps.PromptMatchStart:
		head = fmt.Sprintf("Game started! %s goes first.", turn.Name)
	case rps.PromptSecondMover:
		head = fmt.Sprintf("%s has chosen. %s, it's your turn!", v.Sides[0].Name, turn.Name)
	case rps.PromptTieRedo:
		head = fmt.Sprintf("It's a tie! Replaying round %d. %s goes first.", v.Round, turn.Name)
	default:
		head = fmt.Sprintf("Round %d! %s goes first.", v.Round, turn.Name)
	}
	if v.Kind == rps.KindAI {
		head = "Choose your move!"
	}
	return fmt.Sprintf("Round %d/%d\n💰 Bet: %d coins\n%s\n\n%s",
		v.Round, rps.MaxRounds, v.Wager, scoreLine(v), head)
}

// choosingText is the waiting indicator; the dots cycle with the frame.
func choosingText(name string, frame int) string {
	dots := strings.Repeat(".", (frame-1)%3+1)
	return fmt.Sprintf("⏳ %s is choosing%s", name, dots)
}

func roundText(r rps.RoundView) string {
	v := r.Match
	var outcome string
	switch r.Outcome {
	case rps.SideA:
		outcome = fmt.Sprintf("%s wins round %d!", v.Sides[0].Name, r.Round)
	case rps.SideB:
		outcome = fmt.Sprintf("%s wins round %d!", v.Sides[1].Name, r.Round)
	default:
		outcome = fmt.Sprintf("Round %d is a tie and will be replayed.", r.Round)
	}
	return fmt.Sprintf("%s %s  ⚔️  %s %s\n\n%s\n%s",
		v.Sides[0].Name, moveLabel(r.Moves[0]), moveLabel(r.Moves[1]), v.Sides[1].Name,
		outcome, scoreLine(v))
}

func resultText(r rps.ResultView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🏆 %s wins (%s)!\n\n", r.Winner.Name, reasonText(r.Reason))
	fmt.Fprintf(&b, "%s\n", scoreLine(r.Match))
	if r.Match.Kind == rps.KindAI {
		if r.Winner.IsAI {
			fmt.Fprintf(&b, "💸 %s lost %d coins\n", r.Loser.Name, r.Match.Wager)
		} else {
			fmt.Fprintf(&b, "💰 %s won %d coins\n", r.Winner.Name, r.Match.Wager)
		}
	} else {
		fmt.Fprintf(&b, "💰 %s takes %d coins from %s\n", r.Winner.Name, r.Match.Wager, r.Loser.Name)
	}
	fmt.Fprintf(&b, "⏱️ %s", formatDuration(r.Duration))
	if r.SettlementFailed {
		b.WriteString("\n\n" + unsettledNotice)
	}
	return b.String()
}

const unsettledNotice = "⚠️ Coins could not be transferred. Please contact a moderator."

func dmText(dm rps.DirectMessage) string {
	if dm.Kind == rps.DMTimeoutNotice {
		if dm.SettlementFailed {
			if dm.Won {
				return fmt.Sprintf("⏰ %s ran out of time in game %s. You won!\n\n%s", dm.OpponentName, dm.MatchID, unsettledNotice)
			}
			return fmt.Sprintf("⏰ You ran out of time in game %s against %s.\n\n%s", dm.MatchID, dm.OpponentName, unsettledNotice)
		}
		if dm.Won {
			return fmt.Sprintf("⏰ %s ran out of time in game %s. You won %d coins!", dm.OpponentName, dm.MatchID, dm.Coins)
		}
		return fmt.Sprintf("⏰ You ran out of time in game %s against %s and lost %d coins.", dm.MatchID, dm.OpponentName, dm.Coins)
	}

	result, sign := "Lost", "-"
	if dm.Won {
		result, sign = "Won", "+"
	}
	coins := fmt.Sprintf("%s%d", sign, dm.Coins)
	if dm.SettlementFailed {
		coins = "not transferred"
	}
	text := fmt.Sprintf("🎮 Rock, Paper, Scissors receipt\n\nGame: %s\nOpponent: %s\nResult: %s (%s)\nScore: %d - %d\nCoins: %s\nDuration: %s",
		dm.MatchID, dm.OpponentName, result, reasonText(dm.Reason),
		dm.OwnWins, dm.OpponentWins, coins, formatDuration(dm.Duration))
	if dm.SettlementFailed {
		text += "\n\n" + unsettledNotice
	}
	return text
}
