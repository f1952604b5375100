// Package model defines the data models for the community game bot.
package model

import "time"

// Profile is a user's currency account inside one community.
// Profiles are created lazily with a zero balance.
type Profile struct {
	UserID    string    `db:"user_id" json:"user_id"`
	GuildID   string    `db:"guild_id" json:"guild_id"`
	Balance   int64     `db:"balance" json:"balance"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Transaction represents a balance change record.
type Transaction struct {
	ID          int64     `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"user_id"`
	GuildID     string    `db:"guild_id" json:"guild_id"`
	Amount      int64     `db:"amount" json:"amount"`
	Type        string    `db:"type" json:"type"`
	Description *string   `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Transaction types for categorizing balance changes.
const (
	TxTypeRPSWin    = "rps_win"     // PvP match won
	TxTypeRPSLoss   = "rps_loss"    // PvP match lost
	TxTypeRPSAIWin  = "rps_ai_win"  // Match against the AI won
	TxTypeRPSAILoss = "rps_ai_loss" // Match against the AI lost
)

// Match kinds as persisted.
const (
	MatchTypePvP = "pvp"
	MatchTypeAI  = "ai"
)

// Match record lifecycle states.
const (
	MatchStatusOngoing   = "ongoing"
	MatchStatusCompleted = "completed"
	MatchStatusAbandoned = "abandoned" // live state lost before the match ended
)

// Winner and round result designations.
const (
	ResultPlayer1 = "player1"
	ResultPlayer2 = "player2"
	ResultTie     = "tie"
)

// AIUserID identifies the automated opponent in match records.
const AIUserID = "ai"

// MatchParticipant summarizes one side of a persisted match.
type MatchParticipant struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Wins     int    `json:"wins"`
}

// RoundRecord is one decided round of a match. Ties are redone and never recorded.
type RoundRecord struct {
	RoundNumber   int       `json:"round_number"`
	Player1Choice string    `json:"player1_choice"`
	Player2Choice string    `json:"player2_choice"`
	Result        string    `json:"result"`
	Timestamp     time.Time `json:"timestamp"`
}

// MatchRecord is the durable audit trail of a match.
// Player1 is always the side that moved first.
type MatchRecord struct {
	ID             int64            `json:"id"`
	MatchID        string           `json:"match_id"`
	GuildID        string           `json:"guild_id"`
	Player1        MatchParticipant `json:"player1"`
	Player2        MatchParticipant `json:"player2"`
	BetAmount      int64            `json:"bet_amount"`
	MatchType      string           `json:"match_type"`
	Status         string           `json:"status"`
	Winner         *string          `json:"winner,omitempty"`
	Rounds         []RoundRecord    `json:"rounds"`
	TotalRounds    int              `json:"total_rounds"`
	StartTime      time.Time        `json:"start_time"`
	EndTime        *time.Time       `json:"end_time,omitempty"`
	DurationMs     *int64           `json:"duration_ms,omitempty"`
	CoinsExchanged int64            `json:"coins_exchanged"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// FirstMoverID returns the user who moved first in the match.
func (r *MatchRecord) FirstMoverID() string {
	return r.Player1.UserID
}

// MatchFinalization carries the terminal fields written when a match ends.
type MatchFinalization struct {
	Winner         string
	Player1Wins    int
	Player2Wins    int
	EndTime        time.Time
	Duration       time.Duration
	CoinsExchanged int64
}

// Settlement describes the currency movement owed at the end of a decided match.
// Against the automated opponent one of WinnerID or LoserID is AIUserID and
// only the human side's balance changes.
type Settlement struct {
	GuildID   string
	MatchID   string
	MatchType string
	WinnerID  string
	LoserID   string
	Amount    int64
}
