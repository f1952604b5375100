package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
)

// Execer is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

type migration struct {
	name string
	sql  string
}

var migrations = []migration{
	{
		name: "user_profiles table",
		sql: `
		CREATE TABLE IF NOT EXISTS user_profiles (
			user_id TEXT NOT NULL,
			guild_id TEXT NOT NULL,
			balance BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, guild_id)
		);
		`,
	},
	{
		name: "transactions table",
		sql: `
		CREATE TABLE IF NOT EXISTS transactions (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			guild_id TEXT NOT NULL,
			amount BIGINT NOT NULL,
			type VARCHAR(50) NOT NULL,
			description TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_transactions_user_time ON transactions(user_id, guild_id, created_at DESC);
		`,
	},
	{
		name: "rps_matches table",
		sql: `
		CREATE TABLE IF NOT EXISTS rps_matches (
			id BIGSERIAL PRIMARY KEY,
			match_id VARCHAR(16) NOT NULL,
			guild_id TEXT NOT NULL,
			player1_id TEXT NOT NULL,
			player1_name TEXT NOT NULL,
			player1_wins INT NOT NULL DEFAULT 0,
			player2_id TEXT NOT NULL,
			player2_name TEXT NOT NULL,
			player2_wins INT NOT NULL DEFAULT 0,
			bet_amount BIGINT NOT NULL,
			match_type VARCHAR(8) NOT NULL,
			status VARCHAR(16) NOT NULL DEFAULT 'ongoing',
			winner VARCHAR(16),
			rounds JSONB NOT NULL DEFAULT '[]'::jsonb,
			total_rounds INT NOT NULL DEFAULT 0,
			start_time TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			end_time TIMESTAMPTZ,
			duration_ms BIGINT,
			coins_exchanged BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_rps_matches_guild_p1 ON rps_matches(guild_id, player1_id);
		CREATE INDEX IF NOT EXISTS idx_rps_matches_guild_p2 ON rps_matches(guild_id, player2_id);
		CREATE INDEX IF NOT EXISTS idx_rps_matches_status ON rps_matches(status, start_time);
		CREATE INDEX IF NOT EXISTS idx_rps_matches_match_id ON rps_matches(match_id, created_at DESC);
		`,
	},
	{
		name: "drop unread indexes",
		sql: `
		DROP INDEX IF EXISTS idx_user_profiles_guild_balance;
		DROP INDEX IF EXISTS idx_transactions_type_time;
		`,
	},
}

// Migrate applies the schema. Every statement is idempotent.
func Migrate(ctx context.Context, db Execer) error {
	log.Info().Msg("Running database migrations...")

	for i, m := range migrations {
		if _, err := db.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("migration %d (%s): %w", i+1, m.name, err)
		}
		log.Info().Int("step", i+1).Str("name", m.name).Msg("Migration applied")
	}

	log.Info().Msg("All migrations completed successfully")
	return nil
}
