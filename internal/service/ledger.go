// Package service provides business logic implementations.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"community-game-bot/internal/model"
	"community-game-bot/internal/repository"
)

// Ledger-related errors.
var (
	ErrInvalidAmount = errors.New("invalid amount: must be positive")
	ErrSelfTransfer  = errors.New("cannot settle a match against oneself")
)

// ProfileStore is the balance persistence used by LedgerService.
type ProfileStore interface {
	GetByID(ctx context.Context, userID, guildID string) (*model.Profile, error)
	GetBalance(ctx context.Context, userID, guildID string) (int64, error)
	Adjust(ctx context.Context, userID, guildID string, delta int64, txType string, description *string) (*model.Profile, error)
	Transfer(ctx context.Context, guildID, fromID, toID string, amount int64, fromType, toType string, description *string) (*repository.TransferResult, error)
}

// LedgerService reads balances and applies match settlements.
type LedgerService struct {
	profiles   ProfileStore
	maxRetries uint64
	newBackOff func() backoff.BackOff
}

// NewLedgerService creates a new LedgerService. Failed writes are retried up
// to maxRetries times with exponential backoff.
func NewLedgerService(profiles ProfileStore, maxRetries uint64) *LedgerService {
	return &LedgerService{
		profiles:   profiles,
		maxRetries: maxRetries,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 100 * time.Millisecond
			b.MaxElapsedTime = 5 * time.Second
			return b
		},
	}
}

// Balance returns the user's balance in a community. Missing profiles read as zero.
func (s *LedgerService) Balance(ctx context.Context, userID, guildID string) (int64, error) {
	return s.profiles.GetBalance(ctx, userID, guildID)
}

// Settle moves the wager from loser to winner. Against the automated opponent
// only the human balance changes. A missing losing profile means no transfer
// and is not an error.
func (s *LedgerService) Settle(ctx context.Context, st model.Settlement) error {
	if st.Amount <= 0 {
		return ErrInvalidAmount
	}
	if st.WinnerID == st.LoserID {
		return ErrSelfTransfer
	}

	desc := fmt.Sprintf("rps match %s", st.MatchID)

	var op func() error
	switch {
	case st.LoserID == model.AIUserID:
		op = func() error {
			_, err := s.profiles.Adjust(ctx, st.WinnerID, st.GuildID, st.Amount, model.TxTypeRPSAIWin, &desc)
			return err
		}
	case st.WinnerID == model.AIUserID:
		op = func() error {
			if _, err := s.profiles.GetByID(ctx, st.LoserID, st.GuildID); err != nil {
				return err
			}
			_, err := s.profiles.Adjust(ctx, st.LoserID, st.GuildID, -st.Amount, model.TxTypeRPSAILoss, &desc)
			return err
		}
	default:
		op = func() error {
			_, err := s.profiles.Transfer(ctx, st.GuildID, st.LoserID, st.WinnerID, st.Amount, model.TxTypeRPSLoss, model.TxTypeRPSWin, &desc)
			return err
		}
	}

	err := s.retry(ctx, op)
	if errors.Is(err, repository.ErrProfileNotFound) {
		log.Warn().
			Str("match_id", st.MatchID).
			Str("guild_id", st.GuildID).
			Str("user_id", st.LoserID).
			Msg("Losing side has no profile, skipping transfer")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to settle match %s: %w", st.MatchID, err)
	}

	log.Info().
		Str("match_id", st.MatchID).
		Str("guild_id", st.GuildID).
		Str("winner", st.WinnerID).
		Str("loser", st.LoserID).
		Int64("amount", st.Amount).
		Msg("Match settled")
	return nil
}

func (s *LedgerService) retry(ctx context.Context, op func() error) error {
	attempt := 0
	wrapped := func() error {
		attempt++
		err := op()
		if errors.Is(err, repository.ErrProfileNotFound) || errors.Is(err, repository.ErrCommitUncertain) {
			return backoff.Permanent(err)
		}
		if err != nil {
			log.Warn().Err(err).Int("attempt", attempt).Msg("Ledger write failed")
		}
		return err
	}
	b := backoff.WithContext(backoff.WithMaxRetries(s.newBackOff(), s.maxRetries), ctx)
	return backoff.Retry(wrapped, b)
}
