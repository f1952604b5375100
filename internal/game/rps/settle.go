package rps

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"community-game-bot/internal/model"
	"community-game-bot/internal/pkg/metrics"
)

// coinsExchanged is the recorded pot: both wagers in PvP, and the doubled
// wager only when the human beats the automated opponent.
func coinsExchanged(m *Match, winner int) int64 {
	if m.Kind == KindAI && winner != 0 {
		return 0
	}
	return m.Wager * 2
}

func sideResult(side int) string {
	if side == 0 {
		return model.ResultPlayer1
	}
	return model.ResultPlayer2
}

// finish terminates a match: timers stop, the match leaves the registry, the
// record is finalized, the ledger is settled and both sides are notified.
// Caller holds the match lock.
func (c *Controller) finish(ctx context.Context, m *Match, winner int, reason EndReason) ResultView {
	m.cancelTimer()
	c.matches.Remove(m.ID)

	loser := 1 - winner
	end := c.clock.Now()
	duration := end.Sub(m.CreatedAt)
	coins := coinsExchanged(m, winner)

	err := c.records.Finalize(ctx, m.RecordID, model.MatchFinalization{
		Winner:         sideResult(winner),
		Player1Wins:    m.Sides[0].Wins,
		Player2Wins:    m.Sides[1].Wins,
		EndTime:        end,
		Duration:       duration,
		CoinsExchanged: coins,
	})
	if err != nil {
		log.Error().Err(err).Str("match_id", m.ID).Int64("record_id", m.RecordID).Msg("Failed to finalize match record")
	}

	v := m.view(PromptNextRound, c.clock.Now())
	rv := ResultView{
		Match:          v,
		Winner:         v.Sides[winner],
		Loser:          v.Sides[loser],
		Reason:         reason,
		Duration:       duration,
		CoinsExchanged: coins,
	}

	err = c.ledger.Settle(ctx, model.Settlement{
		GuildID:   m.GuildID,
		MatchID:   m.ID,
		MatchType: m.Kind.String(),
		WinnerID:  m.Sides[winner].UserID,
		LoserID:   m.Sides[loser].UserID,
		Amount:    m.Wager,
	})
	if err != nil {
		rv.SettlementFailed = true
		metrics.SettlementFailures.Inc()
		log.Error().Err(err).
			Str("match_id", m.ID).
			Str("guild_id", m.GuildID).
			Str("winner", m.Sides[winner].UserID).
			Str("loser", m.Sides[loser].UserID).
			Int64("amount", m.Wager).
			Msg("Settlement failed")
	}

	metrics.MatchesFinished.WithLabelValues(m.Kind.String(), reason.String()).Inc()
	metrics.LiveMatches.Set(float64(c.matches.Len()))

	log.Info().
		Str("match_id", m.ID).
		Str("kind", m.Kind.String()).
		Str("winner", m.Sides[winner].UserID).
		Str("reason", reason.String()).
		Int("score_p1", m.Sides[0].Wins).
		Int("score_p2", m.Sides[1].Wins).
		Dur("duration", duration).
		Msg("Match finished")

	if err := c.presenter.MatchOver(ctx, rv); err != nil {
		log.Warn().Err(err).Str("match_id", m.ID).Msg("Failed to render match result")
	}
	c.sendReceipts(ctx, m, winner, reason, duration, rv.SettlementFailed)
	return rv
}

// sendReceipts DMs every human side. A timed-out PvP match gets the timeout
// notice instead of the plain receipt. Delivery failures are only logged.
func (c *Controller) sendReceipts(ctx context.Context, m *Match, winner int, reason EndReason, duration time.Duration, unsettled bool) {
	kind := DMMatchReceipt
	if reason == EndTimeout && m.Kind == KindPvP {
		kind = DMTimeoutNotice
	}

	for i := range m.Sides {
		if m.Kind == KindAI && i == 1 {
			continue
		}
		other := 1 - i
		dm := DirectMessage{
			Kind:         kind,
			MatchID:      m.ID,
			OpponentName: m.Sides[other].Name,
			Won:          i == winner,
			OwnWins:      m.Sides[i].Wins,
			OpponentWins: m.Sides[other].Wins,
			Coins:        m.Wager,
			Duration:     duration,
			Reason:       reason,
			VsAI:         m.Kind == KindAI,

			SettlementFailed: unsettled,
		}
		if err := c.presenter.SendDirectMessage(ctx, m.Sides[i].UserID, dm); err != nil {
			log.Warn().Err(err).Str("match_id", m.ID).Str("user_id", m.Sides[i].UserID).Msg("Failed to deliver result DM")
		}
	}
}
