package rps

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"community-game-bot/internal/model"
)

// manualClock fires timers synchronously from Advance, in deadline order.
type manualClock struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*manualTimer
}

type manualTimer struct {
	clock   *manualClock
	at      time.Time
	seq     int
	fn      func()
	stopped bool
	fired   bool
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &manualTimer{clock: c, at: c.now.Add(d), seq: c.seq, fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves time forward by d, running every timer that comes due,
// including timers scheduled by earlier callbacks.
func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var next *manualTimer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.at.After(target) {
				continue
			}
			if next == nil || t.at.Before(next.at) || (t.at.Equal(next.at) && t.seq < next.seq) {
				next = t
			}
		}
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		c.now = next.at
		next.fired = true
		c.mu.Unlock()
		next.fn()
	}
}

// Pending counts timers that are neither stopped nor fired.
func (c *manualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type ledgerKey struct{ user, guild string }

// fakeLedger applies settlements zero-sum, skipping missing losers.
type fakeLedger struct {
	mu          sync.Mutex
	balances    map[ledgerKey]int64
	settlements []model.Settlement
	balanceErr  error
	settleErr   error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{balances: make(map[ledgerKey]int64)}
}

func (l *fakeLedger) set(user string, balance int64) {
	l.balances[ledgerKey{user, "g1"}] = balance
}

func (l *fakeLedger) get(user string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[ledgerKey{user, "g1"}]
}

func (l *fakeLedger) Balance(_ context.Context, userID, guildID string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balanceErr != nil {
		return 0, l.balanceErr
	}
	return l.balances[ledgerKey{userID, guildID}], nil
}

func (l *fakeLedger) Settle(_ context.Context, s model.Settlement) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.settleErr != nil {
		return l.settleErr
	}
	l.settlements = append(l.settlements, s)
	winner := ledgerKey{s.WinnerID, s.GuildID}
	loser := ledgerKey{s.LoserID, s.GuildID}
	switch {
	case s.LoserID == model.AIUserID:
		l.balances[winner] += s.Amount
	case s.WinnerID == model.AIUserID:
		if _, ok := l.balances[loser]; ok {
			l.balances[loser] -= s.Amount
		}
	default:
		if _, ok := l.balances[loser]; !ok {
			return nil
		}
		l.balances[loser] -= s.Amount
		l.balances[winner] += s.Amount
	}
	return nil
}

// fakeRecords keeps match records in memory.
type fakeRecords struct {
	mu         sync.Mutex
	nextID     int64
	records    map[int64]*model.MatchRecord
	history    []*model.MatchRecord
	historyErr error
	createErr  error
	finalized  int
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{records: make(map[int64]*model.MatchRecord)}
}

func (r *fakeRecords) Create(_ context.Context, rec *model.MatchRecord) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return 0, r.createErr
	}
	r.nextID++
	cp := *rec
	cp.ID = r.nextID
	cp.Status = model.MatchStatusOngoing
	r.records[cp.ID] = &cp
	return cp.ID, nil
}

func (r *fakeRecords) AppendRound(_ context.Context, id int64, round model.RoundRecord, p1, p2 int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return errors.New("no such record")
	}
	if rec.Status != model.MatchStatusOngoing {
		return errors.New("record finalized")
	}
	rec.Rounds = append(rec.Rounds, round)
	rec.TotalRounds++
	rec.Player1.Wins, rec.Player2.Wins = p1, p2
	return nil
}

func (r *fakeRecords) Finalize(_ context.Context, id int64, fin model.MatchFinalization) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return errors.New("no such record")
	}
	if rec.Status != model.MatchStatusOngoing {
		return errors.New("record finalized")
	}
	r.finalized++
	rec.Status = model.MatchStatusCompleted
	winner := fin.Winner
	rec.Winner = &winner
	end := fin.EndTime
	rec.EndTime = &end
	ms := fin.Duration.Milliseconds()
	rec.DurationMs = &ms
	rec.CoinsExchanged = fin.CoinsExchanged
	rec.Player1.Wins, rec.Player2.Wins = fin.Player1Wins, fin.Player2Wins
	return nil
}

func (r *fakeRecords) RecentCompleted(_ context.Context, guildID, a, b string, limit int) ([]*model.MatchRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.historyErr != nil {
		return nil, r.historyErr
	}
	out := r.history
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeRecords) only() *model.MatchRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int64, 0, len(r.records))
	for id := range r.records {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) == 0 {
		return nil
	}
	return r.records[ids[len(ids)-1]]
}

type sentDM struct {
	userID string
	dm     DirectMessage
}

// recordingPresenter captures every render call.
type recordingPresenter struct {
	mu        sync.Mutex
	sent      []Challenge
	declined  []Challenge
	prompts   []MatchView
	choosing  []int
	rounds    []RoundView
	results   []ResultView
	dms       []sentDM
	dmErr     error
	promptErr error
}

func (p *recordingPresenter) ChallengeSent(_ context.Context, c Challenge) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, c)
	return nil
}

func (p *recordingPresenter) ChallengeDeclined(_ context.Context, c Challenge) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.declined = append(p.declined, c)
	return nil
}

func (p *recordingPresenter) MatchPrompt(_ context.Context, v MatchView) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prompts = append(p.prompts, v)
	return p.promptErr
}

func (p *recordingPresenter) Choosing(_ context.Context, _ MatchView, frame int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.choosing = append(p.choosing, frame)
	return nil
}

func (p *recordingPresenter) RoundResult(_ context.Context, r RoundView) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rounds = append(p.rounds, r)
	return nil
}

func (p *recordingPresenter) MatchOver(_ context.Context, r ResultView) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results = append(p.results, r)
	return nil
}

func (p *recordingPresenter) SendDirectMessage(_ context.Context, userID string, dm DirectMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dms = append(p.dms, sentDM{userID: userID, dm: dm})
	return p.dmErr
}

type denyLimiter struct{}

func (denyLimiter) Allow(context.Context, string, string) bool { return false }

// harness bundles a controller with its fakes.
type harness struct {
	clock     *manualClock
	ledger    *fakeLedger
	records   *fakeRecords
	presenter *recordingPresenter
	ctrl      *Controller
	aiMoves   []Move
}

func newHarness(opts ...Option) *harness {
	h := &harness{
		clock:     newManualClock(),
		ledger:    newFakeLedger(),
		records:   newFakeRecords(),
		presenter: &recordingPresenter{},
	}
	h.ledger.set("alice", 1000)
	h.ledger.set("bob", 1000)

	all := append([]Option{
		WithClock(h.clock),
		WithMoveSource(func() Move {
			if len(h.aiMoves) == 0 {
				return Rock
			}
			m := h.aiMoves[0]
			h.aiMoves = h.aiMoves[1:]
			return m
		}),
	}, opts...)
	h.ctrl = NewController(DefaultConfig(), h.ledger, h.records, h.presenter, all...)
	return h
}

var (
	alice = Player{ID: "alice", Name: "Alice"}
	bob   = Player{ID: "bob", Name: "Bob"}
)

func (h *harness) challenge(wager int64) (Challenge, error) {
	return h.ctrl.IssueChallenge(context.Background(), ChallengeRequest{
		GuildID:    "g1",
		ChannelID:  "c1",
		Challenger: alice,
		Opponent:   bob,
		Wager:      wager,
	})
}

// startPvP issues and accepts an alice-vs-bob challenge.
func (h *harness) startPvP(wager int64) MatchView {
	ch, err := h.challenge(wager)
	if err != nil {
		panic(err)
	}
	v, err := h.ctrl.AcceptChallenge(context.Background(), bob.ID, ch.ID)
	if err != nil {
		panic(err)
	}
	return v
}

func (h *harness) match(id string) *Match {
	m, _ := h.ctrl.matches.Get(id)
	return m
}
