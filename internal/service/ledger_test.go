package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"community-game-bot/internal/model"
	"community-game-bot/internal/repository"
)

type profileKey struct{ user, guild string }

// memoryProfiles is an in-memory ProfileStore with optional transient failures.
type memoryProfiles struct {
	mu       sync.Mutex
	balances map[profileKey]int64
	txTypes  []string
	failures int
	calls    int
	// lostAck applies the next write but reports its commit as failed.
	lostAck bool
}

func newMemoryProfiles() *memoryProfiles {
	return &memoryProfiles{balances: make(map[profileKey]int64)}
}

var errTransient = errors.New("connection reset")

func (m *memoryProfiles) ack() error {
	if m.lostAck {
		m.lostAck = false
		return fmt.Errorf("failed to commit transfer: %w: %w", repository.ErrCommitUncertain, errTransient)
	}
	return nil
}

func (m *memoryProfiles) fail() bool {
	m.calls++
	if m.failures > 0 {
		m.failures--
		return true
	}
	return false
}

func (m *memoryProfiles) GetByID(_ context.Context, userID, guildID string) (*model.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.balances[profileKey{userID, guildID}]
	if !ok {
		return nil, repository.ErrProfileNotFound
	}
	return &model.Profile{UserID: userID, GuildID: guildID, Balance: b}, nil
}

func (m *memoryProfiles) GetBalance(_ context.Context, userID, guildID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[profileKey{userID, guildID}], nil
}

func (m *memoryProfiles) Adjust(_ context.Context, userID, guildID string, delta int64, txType string, _ *string) (*model.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail() {
		return nil, errTransient
	}
	k := profileKey{userID, guildID}
	m.balances[k] += delta
	m.txTypes = append(m.txTypes, txType)
	if err := m.ack(); err != nil {
		return nil, err
	}
	return &model.Profile{UserID: userID, GuildID: guildID, Balance: m.balances[k]}, nil
}

func (m *memoryProfiles) Transfer(_ context.Context, guildID, fromID, toID string, amount int64, fromType, toType string, _ *string) (*repository.TransferResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail() {
		return nil, errTransient
	}
	from := profileKey{fromID, guildID}
	if _, ok := m.balances[from]; !ok {
		return nil, repository.ErrProfileNotFound
	}
	to := profileKey{toID, guildID}
	m.balances[from] -= amount
	m.balances[to] += amount
	m.txTypes = append(m.txTypes, fromType, toType)
	if err := m.ack(); err != nil {
		return nil, err
	}
	return &repository.TransferResult{FromBalance: m.balances[from], ToBalance: m.balances[to]}, nil
}

func newTestLedger(store ProfileStore, retries uint64) *LedgerService {
	s := NewLedgerService(store, retries)
	s.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return s
}

// For any sequence of decided PvP matches between a fixed group of players,
// the group's total balance never changes.
func TestLedgerService_PvPSettlementIsZeroSum(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		store := newMemoryProfiles()
		players := []string{"a", "b", "c", "d"}
		var total int64
		for _, p := range players {
			b := rapid.Int64Range(0, 10000).Draw(t, "balance_"+p)
			store.balances[profileKey{p, "g1"}] = b
			total += b
		}
		ledger := newTestLedger(store, 0)

		n := rapid.IntRange(1, 30).Draw(t, "matches")
		for i := 0; i < n; i++ {
			w := rapid.IntRange(0, len(players)-1).Draw(t, "winner")
			l := rapid.IntRange(0, len(players)-1).Filter(func(v int) bool { return v != w }).Draw(t, "loser")
			wager := rapid.Int64Range(1, 500).Draw(t, "wager")

			before := store.balances[profileKey{players[w], "g1"}]
			err := ledger.Settle(context.Background(), model.Settlement{
				GuildID: "g1", MatchID: "M", MatchType: model.MatchTypePvP,
				WinnerID: players[w], LoserID: players[l], Amount: wager,
			})
			if err != nil {
				t.Fatalf("settle: %v", err)
			}
			if got := store.balances[profileKey{players[w], "g1"}]; got != before+wager {
				t.Fatalf("winner balance %d, want %d", got, before+wager)
			}
		}

		var after int64
		for _, p := range players {
			after += store.balances[profileKey{p, "g1"}]
		}
		if after != total {
			t.Fatalf("total changed: %d -> %d", total, after)
		}
	})
}

func TestLedgerService_MissingLoserSkipsTransfer(t *testing.T) {
	store := newMemoryProfiles()
	ledger := newTestLedger(store, 3)

	err := ledger.Settle(context.Background(), model.Settlement{
		GuildID: "g1", MatchID: "M", MatchType: model.MatchTypePvP,
		WinnerID: "w", LoserID: "ghost", Amount: 100,
	})
	require.NoError(t, err)
	assert.Empty(t, store.balances)
	assert.Equal(t, 1, store.calls, "missing profile is not retried")
}

func TestLedgerService_AISettlement(t *testing.T) {
	store := newMemoryProfiles()
	store.balances[profileKey{"human", "g1"}] = 1000
	ledger := newTestLedger(store, 0)
	ctx := context.Background()

	require.NoError(t, ledger.Settle(ctx, model.Settlement{
		GuildID: "g1", MatchID: "A1", MatchType: model.MatchTypeAI,
		WinnerID: "human", LoserID: model.AIUserID, Amount: 100,
	}))
	require.NoError(t, ledger.Settle(ctx, model.Settlement{
		GuildID: "g1", MatchID: "A2", MatchType: model.MatchTypeAI,
		WinnerID: model.AIUserID, LoserID: "human", Amount: 300,
	}))

	bal, err := ledger.Balance(ctx, "human", "g1")
	require.NoError(t, err)
	assert.Equal(t, int64(800), bal)
	assert.Equal(t, []string{model.TxTypeRPSAIWin, model.TxTypeRPSAILoss}, store.txTypes)
	_, hasAI := store.balances[profileKey{model.AIUserID, "g1"}]
	assert.False(t, hasAI, "the automated opponent has no ledger entry")
}

func TestLedgerService_RetriesTransientFailures(t *testing.T) {
	store := newMemoryProfiles()
	store.balances[profileKey{"l", "g1"}] = 500
	store.failures = 2
	ledger := newTestLedger(store, 3)

	err := ledger.Settle(context.Background(), model.Settlement{
		GuildID: "g1", MatchID: "M", MatchType: model.MatchTypePvP,
		WinnerID: "w", LoserID: "l", Amount: 200,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, store.calls)
	assert.Equal(t, int64(300), store.balances[profileKey{"l", "g1"}])
	assert.Equal(t, int64(200), store.balances[profileKey{"w", "g1"}])
}

func TestLedgerService_GivesUpAfterRetries(t *testing.T) {
	store := newMemoryProfiles()
	store.balances[profileKey{"l", "g1"}] = 500
	store.failures = 10
	ledger := newTestLedger(store, 2)

	err := ledger.Settle(context.Background(), model.Settlement{
		GuildID: "g1", MatchID: "M", MatchType: model.MatchTypePvP,
		WinnerID: "w", LoserID: "l", Amount: 200,
	})
	require.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, store.calls)
	assert.Equal(t, int64(500), store.balances[profileKey{"l", "g1"}], "never partially applied")
}

func TestLedgerService_UncertainCommitIsNotReplayed(t *testing.T) {
	store := newMemoryProfiles()
	store.balances[profileKey{"l", "g1"}] = 500
	store.lostAck = true
	ledger := newTestLedger(store, 3)

	err := ledger.Settle(context.Background(), model.Settlement{
		GuildID: "g1", MatchID: "M", MatchType: model.MatchTypePvP,
		WinnerID: "w", LoserID: "l", Amount: 200,
	})
	require.ErrorIs(t, err, repository.ErrCommitUncertain)
	assert.Equal(t, 1, store.calls)
	assert.Equal(t, int64(300), store.balances[profileKey{"l", "g1"}], "applied exactly once")
	assert.Equal(t, int64(200), store.balances[profileKey{"w", "g1"}])
}

func TestLedgerService_AIUncertainCommitIsNotReplayed(t *testing.T) {
	store := newMemoryProfiles()
	store.balances[profileKey{"human", "g1"}] = 1000
	store.lostAck = true
	ledger := newTestLedger(store, 3)

	err := ledger.Settle(context.Background(), model.Settlement{
		GuildID: "g1", MatchID: "A1", MatchType: model.MatchTypeAI,
		WinnerID: "human", LoserID: model.AIUserID, Amount: 100,
	})
	require.ErrorIs(t, err, repository.ErrCommitUncertain)
	assert.Equal(t, 1, store.calls)
	assert.Equal(t, int64(1100), store.balances[profileKey{"human", "g1"}])
}

func TestLedgerService_RejectsInvalidSettlement(t *testing.T) {
	ledger := newTestLedger(newMemoryProfiles(), 0)
	ctx := context.Background()

	err := ledger.Settle(ctx, model.Settlement{WinnerID: "a", LoserID: "b", Amount: 0})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	err = ledger.Settle(ctx, model.Settlement{WinnerID: "a", LoserID: "a", Amount: 10})
	assert.ErrorIs(t, err, ErrSelfTransfer)
}
