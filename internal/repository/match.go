package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"community-game-bot/internal/model"
)

// Match record errors.
var (
	ErrMatchRecordNotFound = errors.New("match record not found")
	ErrRecordFinalized     = errors.New("match record already finalized")
)

const matchColumns = `
	id, match_id, guild_id,
	player1_id, player1_name, player1_wins,
	player2_id, player2_name, player2_wins,
	bet_amount, match_type, status, winner, rounds, total_rounds,
	start_time, end_time, duration_ms, coins_exchanged, created_at, updated_at
`

// MatchRepository persists rock-paper-scissors match records.
type MatchRepository struct {
	pool *pgxpool.Pool
}

// NewMatchRepository creates a new MatchRepository instance.
func NewMatchRepository(pool *pgxpool.Pool) *MatchRepository {
	return &MatchRepository{pool: pool}
}

// Create inserts an ongoing record and returns its id.
func (r *MatchRepository) Create(ctx context.Context, rec *model.MatchRecord) (int64, error) {
	const query = `
		INSERT INTO rps_matches (
			match_id, guild_id,
			player1_id, player1_name, player1_wins,
			player2_id, player2_name, player2_wins,
			bet_amount, match_type, status, rounds, total_rounds, start_time
		)
		VALUES ($1, $2, $3, $4, 0, $5, $6, 0, $7, $8, 'ongoing', '[]'::jsonb, 0, $9)
		RETURNING id
	`

	var id int64
	err := r.pool.QueryRow(ctx, query,
		rec.MatchID,
		rec.GuildID,
		rec.Player1.UserID,
		rec.Player1.Username,
		rec.Player2.UserID,
		rec.Player2.Username,
		rec.BetAmount,
		rec.MatchType,
		rec.StartTime,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create match record: %w", err)
	}
	return id, nil
}

// AppendRound adds a decided round and the running score to an ongoing record.
func (r *MatchRepository) AppendRound(ctx context.Context, id int64, round model.RoundRecord, player1Wins, player2Wins int) error {
	payload, err := json.Marshal([]model.RoundRecord{round})
	if err != nil {
		return fmt.Errorf("failed to encode round: %w", err)
	}

	const query = `
		UPDATE rps_matches
		SET rounds = rounds || $2::jsonb,
			total_rounds = total_rounds + 1,
			player1_wins = $3,
			player2_wins = $4,
			updated_at = NOW()
		WHERE id = $1 AND status = 'ongoing'
	`

	result, err := r.pool.Exec(ctx, query, id, payload, player1Wins, player2Wins)
	if err != nil {
		return fmt.Errorf("failed to append round: %w", err)
	}
	if result.RowsAffected() == 0 {
		return r.missingOrFinalized(ctx, id)
	}
	return nil
}

// Finalize marks an ongoing record completed. It succeeds at most once per record.
func (r *MatchRepository) Finalize(ctx context.Context, id int64, fin model.MatchFinalization) error {
	const query = `
		UPDATE rps_matches
		SET status = 'completed',
			winner = $2,
			player1_wins = $3,
			player2_wins = $4,
			end_time = $5,
			duration_ms = $6,
			coins_exchanged = $7,
			updated_at = NOW()
		WHERE id = $1 AND status = 'ongoing'
	`

	result, err := r.pool.Exec(ctx, query,
		id,
		fin.Winner,
		fin.Player1Wins,
		fin.Player2Wins,
		fin.EndTime,
		fin.Duration.Milliseconds(),
		fin.CoinsExchanged,
	)
	if err != nil {
		return fmt.Errorf("failed to finalize match record: %w", err)
	}
	if result.RowsAffected() == 0 {
		return r.missingOrFinalized(ctx, id)
	}
	return nil
}

func (r *MatchRepository) missingOrFinalized(ctx context.Context, id int64) error {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM rps_matches WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check match record: %w", err)
	}
	if !exists {
		return ErrMatchRecordNotFound
	}
	return ErrRecordFinalized
}

// RecentCompleted returns up to limit completed records between two users in
// a community, newest first, regardless of who was player1.
func (r *MatchRepository) RecentCompleted(ctx context.Context, guildID, userA, userB string, limit int) ([]*model.MatchRecord, error) {
	query := `
		SELECT ` + matchColumns + `
		FROM rps_matches
		WHERE guild_id = $1
		  AND status = 'completed'
		  AND ((player1_id = $2 AND player2_id = $3) OR (player1_id = $3 AND player2_id = $2))
		ORDER BY start_time DESC, id DESC
		LIMIT $4
	`
	return r.queryRecords(ctx, "recent matches", query, guildID, userA, userB, limit)
}

// ListByUser returns a user's records in a community, newest first.
func (r *MatchRepository) ListByUser(ctx context.Context, guildID, userID string, limit int) ([]*model.MatchRecord, error) {
	query := `
		SELECT ` + matchColumns + `
		FROM rps_matches
		WHERE guild_id = $1 AND (player1_id = $2 OR player2_id = $2)
		ORDER BY start_time DESC, id DESC
		LIMIT $3
	`
	return r.queryRecords(ctx, "user matches", query, guildID, userID, limit)
}

// GetByID retrieves a record by its database id.
func (r *MatchRepository) GetByID(ctx context.Context, id int64) (*model.MatchRecord, error) {
	query := `SELECT ` + matchColumns + ` FROM rps_matches WHERE id = $1`
	return r.queryOne(ctx, query, id)
}

// GetLatestByMatchID retrieves the newest record carrying a match code.
// Codes are reused once a match leaves memory, so older records may share it.
func (r *MatchRepository) GetLatestByMatchID(ctx context.Context, matchID string) (*model.MatchRecord, error) {
	query := `
		SELECT ` + matchColumns + `
		FROM rps_matches
		WHERE match_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	return r.queryOne(ctx, query, matchID)
}

// SweepOrphans marks ongoing records started before cutoff as abandoned,
// skipping the ids in live. Returns the number of records swept.
func (r *MatchRepository) SweepOrphans(ctx context.Context, cutoff time.Time, live []int64) (int64, error) {
	if live == nil {
		live = []int64{}
	}

	const query = `
		UPDATE rps_matches
		SET status = 'abandoned',
			end_time = NOW(),
			duration_ms = (EXTRACT(EPOCH FROM (NOW() - start_time)) * 1000)::BIGINT,
			coins_exchanged = 0,
			updated_at = NOW()
		WHERE status = 'ongoing'
		  AND start_time < $1
		  AND NOT (id = ANY($2))
	`

	result, err := r.pool.Exec(ctx, query, cutoff, live)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep orphaned matches: %w", err)
	}
	return result.RowsAffected(), nil
}

func (r *MatchRepository) queryOne(ctx context.Context, query string, args ...any) (*model.MatchRecord, error) {
	rec, err := scanMatch(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMatchRecordNotFound
		}
		return nil, fmt.Errorf("failed to get match record: %w", err)
	}
	return rec, nil
}

func (r *MatchRepository) queryRecords(ctx context.Context, what, query string, args ...any) ([]*model.MatchRecord, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", what, err)
	}
	defer rows.Close()

	var records []*model.MatchRecord
	for rows.Next() {
		rec, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match record: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", what, err)
	}

	return records, nil
}

func scanMatch(row pgx.Row) (*model.MatchRecord, error) {
	var (
		rec    model.MatchRecord
		rounds []byte
	)
	err := row.Scan(
		&rec.ID,
		&rec.MatchID,
		&rec.GuildID,
		&rec.Player1.UserID,
		&rec.Player1.Username,
		&rec.Player1.Wins,
		&rec.Player2.UserID,
		&rec.Player2.Username,
		&rec.Player2.Wins,
		&rec.BetAmount,
		&rec.MatchType,
		&rec.Status,
		&rec.Winner,
		&rounds,
		&rec.TotalRounds,
		&rec.StartTime,
		&rec.EndTime,
		&rec.DurationMs,
		&rec.CoinsExchanged,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(rounds, &rec.Rounds); err != nil {
		return nil, fmt.Errorf("failed to decode rounds: %w", err)
	}
	return &rec, nil
}
