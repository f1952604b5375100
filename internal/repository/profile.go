// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"community-game-bot/internal/model"
)

// Common errors for repository operations.
var (
	ErrProfileNotFound = errors.New("profile not found")
	// ErrCommitUncertain wraps a failed COMMIT. The server may have applied
	// the transaction, so the write must not be replayed.
	ErrCommitUncertain = errors.New("commit outcome unknown")
)

// ProfileRepository handles per-community currency balances.
type ProfileRepository struct {
	pool *pgxpool.Pool
	txs  *TransactionRepository
}

// NewProfileRepository creates a new ProfileRepository instance.
func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool, txs: NewTransactionRepository(pool)}
}

// GetByID retrieves a profile. Returns ErrProfileNotFound if it does not exist.
func (r *ProfileRepository) GetByID(ctx context.Context, userID, guildID string) (*model.Profile, error) {
	const query = `
		SELECT user_id, guild_id, balance, created_at, updated_at
		FROM user_profiles
		WHERE user_id = $1 AND guild_id = $2
	`

	var p model.Profile
	err := r.pool.QueryRow(ctx, query, userID, guildID).Scan(
		&p.UserID,
		&p.GuildID,
		&p.Balance,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	return &p, nil
}

// GetBalance returns the user's balance. A missing profile reads as zero.
func (r *ProfileRepository) GetBalance(ctx context.Context, userID, guildID string) (int64, error) {
	p, err := r.GetByID(ctx, userID, guildID)
	if errors.Is(err, ErrProfileNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return p.Balance, nil
}

// Adjust adds delta to the user's balance, creating a zero-balance profile
// first if needed, and records the change in the transactions table.
func (r *ProfileRepository) Adjust(ctx context.Context, userID, guildID string, delta int64, txType string, description *string) (*model.Profile, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	p, err := upsertBalance(ctx, tx, userID, guildID, delta)
	if err != nil {
		return nil, err
	}
	if _, err := r.txs.CreateTx(ctx, tx, userID, guildID, delta, txType, description); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit balance adjustment: %w: %w", ErrCommitUncertain, err)
	}
	return p, nil
}

// TransferResult holds both balances after a transfer.
type TransferResult struct {
	FromBalance int64
	ToBalance   int64
}

// Transfer moves amount from one user to another inside a single database
// transaction. The source profile must exist; the destination is created
// lazily. Returns ErrProfileNotFound, with nothing written, if the source
// profile is missing.
func (r *ProfileRepository) Transfer(ctx context.Context, guildID, fromID, toID string, amount int64, fromType, toType string, description *string) (*TransferResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	const lockQuery = `
		SELECT balance FROM user_profiles
		WHERE user_id = $1 AND guild_id = $2
		FOR UPDATE
	`
	var fromBalance int64
	if err := tx.QueryRow(ctx, lockQuery, fromID, guildID).Scan(&fromBalance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to lock source profile: %w", err)
	}

	from, err := upsertBalance(ctx, tx, fromID, guildID, -amount)
	if err != nil {
		return nil, err
	}
	to, err := upsertBalance(ctx, tx, toID, guildID, amount)
	if err != nil {
		return nil, err
	}

	if _, err := r.txs.CreateTx(ctx, tx, fromID, guildID, -amount, fromType, description); err != nil {
		return nil, err
	}
	if _, err := r.txs.CreateTx(ctx, tx, toID, guildID, amount, toType, description); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transfer: %w: %w", ErrCommitUncertain, err)
	}
	return &TransferResult{FromBalance: from.Balance, ToBalance: to.Balance}, nil
}

func upsertBalance(ctx context.Context, tx pgx.Tx, userID, guildID string, delta int64) (*model.Profile, error) {
	const query = `
		INSERT INTO user_profiles (user_id, guild_id, balance, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (user_id, guild_id)
		DO UPDATE SET balance = user_profiles.balance + EXCLUDED.balance, updated_at = NOW()
		RETURNING user_id, guild_id, balance, created_at, updated_at
	`

	var p model.Profile
	err := tx.QueryRow(ctx, query, userID, guildID, delta).Scan(
		&p.UserID,
		&p.GuildID,
		&p.Balance,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update balance: %w", err)
	}
	return &p, nil
}
