package rps

import "errors"

// Errors returned to the adapters, which translate them into player notices.
var (
	ErrChallengeNotFound   = errors.New("challenge expired or cancelled")
	ErrNotChallengeTarget  = errors.New("challenge is addressed to someone else")
	ErrSelfChallenge       = errors.New("cannot challenge yourself")
	ErrBotOpponent         = errors.New("cannot challenge a bot account")
	ErrInvalidWager        = errors.New("wager must be positive")
	ErrWagerTooLarge       = errors.New("wager exceeds the community limit")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrOpponentBalance     = errors.New("opponent has insufficient balance")
	ErrRateLimited         = errors.New("too many challenges, slow down")
	ErrMatchNotFound       = errors.New("match expired or cancelled")
	ErrNotParticipant      = errors.New("not a participant in this match")
	ErrNotYourTurn         = errors.New("wait for your turn")
	ErrRoundResolving      = errors.New("round is being resolved")
	ErrInvalidMove         = errors.New("invalid move")
)
