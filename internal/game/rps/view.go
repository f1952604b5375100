package rps

import (
	"context"
	"time"

	"community-game-bot/internal/model"
)

// Ledger is the currency store the controller settles against.
type Ledger interface {
	Balance(ctx context.Context, userID, guildID string) (int64, error)
	Settle(ctx context.Context, s model.Settlement) error
}

// RecordStore persists match history.
type RecordStore interface {
	Create(ctx context.Context, rec *model.MatchRecord) (int64, error)
	AppendRound(ctx context.Context, id int64, round model.RoundRecord, player1Wins, player2Wins int) error
	Finalize(ctx context.Context, id int64, fin model.MatchFinalization) error
	RecentCompleted(ctx context.Context, guildID, userA, userB string, limit int) ([]*model.MatchRecord, error)
}

// Limiter throttles challenge creation.
type Limiter interface {
	Allow(ctx context.Context, guildID, userID string) bool
}

// Presenter renders engine events on a chat platform. Errors are logged by
// the controller and never change match state.
type Presenter interface {
	ChallengeSent(ctx context.Context, c Challenge) error
	ChallengeDeclined(ctx context.Context, c Challenge) error
	MatchPrompt(ctx context.Context, v MatchView) error
	Choosing(ctx context.Context, v MatchView, frame int) error
	RoundResult(ctx context.Context, r RoundView) error
	MatchOver(ctx context.Context, r ResultView) error
	SendDirectMessage(ctx context.Context, userID string, dm DirectMessage) error
}

// PromptKind says why a prompt is being shown.
type PromptKind int

const (
	PromptMatchStart PromptKind = iota
	PromptSecondMover
	PromptTieRedo
	PromptNextRound
)

// SideView is a read-only snapshot of one side.
type SideView struct {
	UserID   string
	Name     string
	Wins     int
	HasMoved bool
	IsAI     bool
}

// MatchView is a read-only snapshot of a live match.
type MatchView struct {
	ID         string
	Kind       Kind
	GuildID    string
	ChannelID  string
	Wager      int64
	Round      int
	Sides      [2]SideView
	TurnUserID string
	Phase      Phase
	Prompt     PromptKind
	Deadline   time.Time
	// TimeLeft is the countdown remaining when the view was taken, on the
	// engine clock.
	TimeLeft time.Duration
}

// Turn returns the side whose move is awaited.
func (v MatchView) Turn() SideView {
	for _, s := range v.Sides {
		if s.UserID == v.TurnUserID && !s.IsAI {
			return s
		}
	}
	return v.Sides[0]
}

// RoundView describes a round that was just played.
type RoundView struct {
	Match   MatchView
	Round   int
	Moves   [2]Move
	Outcome Outcome
}

// EndReason says how a match terminated.
type EndReason int

const (
	EndWin EndReason = iota
	EndForfeit
	EndTimeout
)

func (r EndReason) String() string {
	switch r {
	case EndForfeit:
		return "forfeit"
	case EndTimeout:
		return "timeout"
	}
	return "win"
}

// ResultView describes a finished match.
type ResultView struct {
	Match            MatchView
	Winner           SideView
	Loser            SideView
	Reason           EndReason
	Duration         time.Duration
	CoinsExchanged   int64
	SettlementFailed bool
}

// DMKind selects the direct message template.
type DMKind int

const (
	DMTimeoutNotice DMKind = iota
	DMMatchReceipt
)

// DirectMessage is a private notice sent to one player.
type DirectMessage struct {
	Kind         DMKind
	MatchID      string
	OpponentName string
	Won          bool
	OwnWins      int
	OpponentWins int
	Coins        int64
	Duration     time.Duration
	Reason       EndReason
	VsAI         bool
	// SettlementFailed means no coins moved for this match.
	SettlementFailed bool
}

func (m *Match) view(prompt PromptKind, now time.Time) MatchView {
	v := MatchView{
		ID:        m.ID,
		Kind:      m.Kind,
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		Wager:     m.Wager,
		Round:     m.Round,
		Phase:     m.Phase,
		Prompt:    prompt,
		Deadline:  m.Deadline,
	}
	if left := m.Deadline.Sub(now); !m.Deadline.IsZero() && left > 0 {
		v.TimeLeft = left
	}
	for i := range m.Sides {
		v.Sides[i] = SideView{
			UserID:   m.Sides[i].UserID,
			Name:     m.Sides[i].Name,
			Wins:     m.Sides[i].Wins,
			HasMoved: m.Sides[i].moved,
			IsAI:     m.Kind == KindAI && i == 1,
		}
	}
	v.TurnUserID = m.Sides[m.Turn].UserID
	return v
}
