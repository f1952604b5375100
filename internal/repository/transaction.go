package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"community-game-bot/internal/model"
)

// TransactionRepository handles the balance change audit trail.
type TransactionRepository struct {
	pool *pgxpool.Pool
}

// NewTransactionRepository creates a new TransactionRepository instance.
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

// CreateTx records a balance change inside an open transaction.
func (r *TransactionRepository) CreateTx(ctx context.Context, tx pgx.Tx, userID, guildID string, amount int64, txType string, description *string) (*model.Transaction, error) {
	const query = `
		INSERT INTO transactions (user_id, guild_id, amount, type, description, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, user_id, guild_id, amount, type, description, created_at
	`

	var t model.Transaction
	err := tx.QueryRow(ctx, query, userID, guildID, amount, txType, description).Scan(
		&t.ID,
		&t.UserID,
		&t.GuildID,
		&t.Amount,
		&t.Type,
		&t.Description,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	return &t, nil
}

// GetByUser retrieves a user's transactions in one community, newest first.
func (r *TransactionRepository) GetByUser(ctx context.Context, userID, guildID string, limit int) ([]*model.Transaction, error) {
	const query = `
		SELECT id, user_id, guild_id, amount, type, description, created_at
		FROM transactions
		WHERE user_id = $1 AND guild_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, userID, guildID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*model.Transaction
	for rows.Next() {
		var t model.Transaction
		err := rows.Scan(
			&t.ID,
			&t.UserID,
			&t.GuildID,
			&t.Amount,
			&t.Type,
			&t.Description,
			&t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return transactions, nil
}
