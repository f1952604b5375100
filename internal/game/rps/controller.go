package rps

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog/log"

	"community-game-bot/internal/model"
	"community-game-bot/internal/pkg/lock"
	"community-game-bot/internal/pkg/metrics"
)

// AIName is the display name of the automated opponent.
const AIName = "AI"

// Config holds engine timing and limits.
type Config struct {
	ChallengeTTL      time.Duration
	TurnTimeout       time.Duration
	AIInitialTimeout  time.Duration
	AIRoundTimeout    time.Duration
	TurnPromptDelay   time.Duration
	RoundDelay        time.Duration
	AnimationInterval time.Duration
	HistoryWindow     int
	MaxWager          int64 // 0 means unlimited
	// LockWait bounds how long a timer callback waits for a busy match.
	LockWait time.Duration
}

const defaultLockWait = 10 * time.Second

// DefaultConfig returns the stock timings.
func DefaultConfig() Config {
	return Config{
		ChallengeTTL:      3 * time.Minute,
		TurnTimeout:       60 * time.Second,
		AIInitialTimeout:  30 * time.Second,
		AIRoundTimeout:    60 * time.Second,
		TurnPromptDelay:   time.Second,
		RoundDelay:        2 * time.Second,
		AnimationInterval: 500 * time.Millisecond,
		HistoryWindow:     10,
		LockWait:          defaultLockWait,
	}
}

// Player identifies a chat user to the engine.
type Player struct {
	ID    string
	Name  string
	IsBot bool
}

// ChallengeRequest is an invitation to a wagered match.
type ChallengeRequest struct {
	GuildID    string
	ChannelID  string
	Challenger Player
	Opponent   Player
	Wager      int64
}

// AIMatchRequest starts a match against the automated opponent.
type AIMatchRequest struct {
	GuildID   string
	ChannelID string
	Player    Player
	Wager     int64
}

// MoveResult tells the mover what happened to their move.
type MoveResult struct {
	Move Move
	// AwaitingOpponent is set when the move was stored and the other side
	// has yet to play.
	AwaitingOpponent bool
	Round            *RoundView
	Result           *ResultView
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces the wall clock.
func WithClock(clock Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

// WithLimiter enables challenge rate limiting.
func WithLimiter(l Limiter) Option {
	return func(c *Controller) { c.limiter = l }
}

// WithMoveSource replaces the automated opponent's random move source.
func WithMoveSource(fn func() Move) Option {
	return func(c *Controller) { c.aiMove = fn }
}

// Controller drives challenges and matches from inbound player actions and
// timers. Events for one match are serialized by a per-match lock.
type Controller struct {
	cfg        Config
	clock      Clock
	ledger     Ledger
	records    RecordStore
	presenter  Presenter
	limiter    Limiter
	aiMove     func() Move
	challenges *ChallengeRegistry
	matches    *MatchRegistry
	locks      *lock.KeyLock[string]
	// timer callbacks have no caller context
	baseCtx context.Context
}

// NewController wires the engine to its collaborators.
func NewController(cfg Config, ledger Ledger, records RecordStore, presenter Presenter, opts ...Option) *Controller {
	c := &Controller{
		cfg:       cfg,
		clock:     SystemClock(),
		ledger:    ledger,
		records:   records,
		presenter: presenter,
		aiMove:    func() Move { return Moves[rand.IntN(len(Moves))] },
		matches:   NewMatchRegistry(),
		locks:     lock.New[string](),
		baseCtx:   context.Background(),
	}
	if c.cfg.LockWait <= 0 {
		c.cfg.LockWait = defaultLockWait
	}
	for _, opt := range opts {
		opt(c)
	}
	c.challenges = NewChallengeRegistry(c.clock, cfg.ChallengeTTL)
	c.challenges.OnExpire(func(ch Challenge) {
		metrics.ChallengesTotal.WithLabelValues("expired").Inc()
	})
	return c
}

// Matches exposes the live match registry.
func (c *Controller) Matches() *MatchRegistry { return c.matches }

// Challenges exposes the pending challenge registry.
func (c *Controller) Challenges() *ChallengeRegistry { return c.challenges }

func (c *Controller) validateWager(wager int64) error {
	if wager <= 0 {
		return ErrInvalidWager
	}
	if c.cfg.MaxWager > 0 && wager > c.cfg.MaxWager {
		return ErrWagerTooLarge
	}
	return nil
}

func (c *Controller) checkBalance(ctx context.Context, userID, guildID string, wager int64, short error) error {
	balance, err := c.ledger.Balance(ctx, userID, guildID)
	if err != nil {
		return fmt.Errorf("failed to read balance: %w", err)
	}
	if balance < wager {
		return short
	}
	return nil
}

// IssueChallenge validates and records a challenge, then notifies the opponent.
func (c *Controller) IssueChallenge(ctx context.Context, req ChallengeRequest) (Challenge, error) {
	if err := c.validateWager(req.Wager); err != nil {
		return Challenge{}, err
	}
	if req.Challenger.ID == req.Opponent.ID {
		return Challenge{}, ErrSelfChallenge
	}
	if req.Opponent.IsBot {
		return Challenge{}, ErrBotOpponent
	}
	if c.limiter != nil && !c.limiter.Allow(ctx, req.GuildID, req.Challenger.ID) {
		metrics.ChallengesTotal.WithLabelValues("rate_limited").Inc()
		return Challenge{}, ErrRateLimited
	}
	if err := c.checkBalance(ctx, req.Challenger.ID, req.GuildID, req.Wager, ErrInsufficientBalance); err != nil {
		return Challenge{}, err
	}
	if err := c.checkBalance(ctx, req.Opponent.ID, req.GuildID, req.Wager, ErrOpponentBalance); err != nil {
		return Challenge{}, err
	}

	ch := c.challenges.Create(Challenge{
		GuildID:        req.GuildID,
		ChannelID:      req.ChannelID,
		ChallengerID:   req.Challenger.ID,
		ChallengerName: req.Challenger.Name,
		OpponentID:     req.Opponent.ID,
		OpponentName:   req.Opponent.Name,
		Wager:          req.Wager,
	})
	metrics.ChallengesTotal.WithLabelValues("issued").Inc()

	log.Info().
		Str("challenge_id", ch.ID).
		Str("guild_id", ch.GuildID).
		Str("user_id", ch.ChallengerID).
		Str("opponent_id", ch.OpponentID).
		Int64("wager", ch.Wager).
		Msg("Challenge issued")

	if err := c.presenter.ChallengeSent(ctx, ch); err != nil {
		log.Warn().Err(err).Str("challenge_id", ch.ID).Msg("Failed to announce challenge")
	}
	return ch, nil
}

// ListChallenges returns the pending challenges addressed to userID.
func (c *Controller) ListChallenges(userID string) []Challenge {
	return c.challenges.ListFor(userID)
}

// DeclineChallenge removes a challenge at its opponent's request.
func (c *Controller) DeclineChallenge(ctx context.Context, userID, challengeID string) (Challenge, error) {
	ch, err := c.challenges.Take(challengeID, userID)
	if err != nil {
		return Challenge{}, err
	}
	metrics.ChallengesTotal.WithLabelValues("declined").Inc()
	log.Info().Str("challenge_id", ch.ID).Str("user_id", userID).Msg("Challenge declined")

	if err := c.presenter.ChallengeDeclined(ctx, ch); err != nil {
		log.Warn().Err(err).Str("challenge_id", ch.ID).Msg("Failed to announce decline")
	}
	return ch, nil
}

// AcceptChallenge turns a pending challenge into a live match.
func (c *Controller) AcceptChallenge(ctx context.Context, userID, challengeID string) (MatchView, error) {
	ch, ok := c.challenges.Get(challengeID)
	if !ok {
		return MatchView{}, ErrChallengeNotFound
	}
	if ch.OpponentID != userID {
		return MatchView{}, ErrNotChallengeTarget
	}
	if err := c.checkBalance(ctx, ch.OpponentID, ch.GuildID, ch.Wager, ErrInsufficientBalance); err != nil {
		return MatchView{}, err
	}
	if err := c.checkBalance(ctx, ch.ChallengerID, ch.GuildID, ch.Wager, ErrOpponentBalance); err != nil {
		return MatchView{}, err
	}

	// Lost races with expiry or a second accept surface here
	ch, err := c.challenges.Take(challengeID, userID)
	if err != nil {
		return MatchView{}, err
	}
	metrics.ChallengesTotal.WithLabelValues("accepted").Inc()

	challenger := Side{UserID: ch.ChallengerID, Name: ch.ChallengerName}
	opponent := Side{UserID: ch.OpponentID, Name: ch.OpponentName}
	sides := [2]Side{challenger, opponent}
	if c.firstMover(ctx, ch) == ch.OpponentID {
		sides = [2]Side{opponent, challenger}
	}

	m := &Match{
		Kind:      KindPvP,
		GuildID:   ch.GuildID,
		ChannelID: ch.ChannelID,
		Wager:     ch.Wager,
		Sides:     sides,
		Round:     1,
		CreatedAt: c.clock.Now(),
	}
	return c.startMatch(ctx, m, c.cfg.TurnTimeout)
}

// firstMover consults recent history; any lookup failure means challenger first.
func (c *Controller) firstMover(ctx context.Context, ch Challenge) string {
	history, err := c.records.RecentCompleted(ctx, ch.GuildID, ch.ChallengerID, ch.OpponentID, c.cfg.HistoryWindow)
	if err != nil {
		log.Warn().Err(err).Str("challenge_id", ch.ID).Msg("Match history unavailable, challenger moves first")
		return ch.ChallengerID
	}
	if len(history) > c.cfg.HistoryWindow {
		history = history[:c.cfg.HistoryWindow]
	}
	return DecideFirstMover(history, ch.ChallengerID, ch.OpponentID)
}

// StartAIMatch begins a match against the automated opponent.
func (c *Controller) StartAIMatch(ctx context.Context, req AIMatchRequest) (MatchView, error) {
	if err := c.validateWager(req.Wager); err != nil {
		return MatchView{}, err
	}
	if err := c.checkBalance(ctx, req.Player.ID, req.GuildID, req.Wager, ErrInsufficientBalance); err != nil {
		return MatchView{}, err
	}

	m := &Match{
		Kind:      KindAI,
		GuildID:   req.GuildID,
		ChannelID: req.ChannelID,
		Wager:     req.Wager,
		Sides: [2]Side{
			{UserID: req.Player.ID, Name: req.Player.Name},
			{UserID: model.AIUserID, Name: AIName},
		},
		Round:     1,
		CreatedAt: c.clock.Now(),
	}
	return c.startMatch(ctx, m, c.cfg.AIInitialTimeout)
}

func (c *Controller) startMatch(ctx context.Context, m *Match, timeout time.Duration) (MatchView, error) {
	id := c.matches.Add(m)
	c.locks.Lock(id)
	defer c.locks.Unlock(id)

	recordID, err := c.records.Create(ctx, &model.MatchRecord{
		MatchID:   id,
		GuildID:   m.GuildID,
		Player1:   model.MatchParticipant{UserID: m.Sides[0].UserID, Username: m.Sides[0].Name},
		Player2:   model.MatchParticipant{UserID: m.Sides[1].UserID, Username: m.Sides[1].Name},
		BetAmount: m.Wager,
		MatchType: m.Kind.String(),
		Status:    model.MatchStatusOngoing,
		StartTime: m.CreatedAt,
	})
	if err != nil {
		c.matches.Remove(id)
		return MatchView{}, fmt.Errorf("failed to create match record: %w", err)
	}
	c.matches.SetRecord(m, recordID)

	metrics.MatchesStarted.WithLabelValues(m.Kind.String()).Inc()
	metrics.LiveMatches.Set(float64(c.matches.Len()))

	log.Info().
		Str("match_id", id).
		Int64("record_id", recordID).
		Str("guild_id", m.GuildID).
		Str("kind", m.Kind.String()).
		Str("first_mover", m.Sides[0].UserID).
		Int64("wager", m.Wager).
		Msg("Match started")

	c.armCountdown(m, timeout)
	v := m.view(PromptMatchStart, c.clock.Now())
	if err := c.presenter.MatchPrompt(ctx, v); err != nil {
		log.Warn().Err(err).Str("match_id", id).Msg("Failed to render match prompt")
	}
	return v, nil
}

// SubmitMove records a move from the side holding the turn.
func (c *Controller) SubmitMove(ctx context.Context, userID, matchID string, mv Move) (MoveResult, error) {
	if !mv.Valid() {
		return MoveResult{}, ErrInvalidMove
	}

	c.locks.Lock(matchID)
	defer c.locks.Unlock(matchID)

	m, ok := c.matches.Get(matchID)
	if !ok {
		return MoveResult{}, ErrMatchNotFound
	}
	side := m.sideOf(userID)
	if side < 0 {
		return MoveResult{}, ErrNotParticipant
	}
	if m.Phase == PhaseResolving {
		return MoveResult{}, ErrRoundResolving
	}
	if side != m.Turn || m.Sides[side].moved {
		if m.Kind == KindPvP {
			c.startAnimation(m)
		}
		return MoveResult{}, ErrNotYourTurn
	}

	m.Sides[side].setMove(mv)

	if m.Kind == KindPvP && side == 0 {
		m.Turn = 1
		c.schedule(m, slotDelay, c.cfg.TurnPromptDelay, func(ctx context.Context) {
			c.promptWithCountdown(ctx, m, PromptSecondMover, c.cfg.TurnTimeout)
		})
		return MoveResult{Move: mv, AwaitingOpponent: true}, nil
	}

	if m.Kind == KindAI {
		// drawn only now, after the human committed
		m.Sides[1].setMove(c.aiMove())
	}
	return c.resolveRound(ctx, m), nil
}

// resolveRound scores the two stored moves and either schedules the next
// prompt or finishes the match.
func (c *Controller) resolveRound(ctx context.Context, m *Match) MoveResult {
	a, b := m.Sides[0].move, m.Sides[1].move
	outcome := DecideRound(a, b)
	round := m.Round

	wins := m.wins()
	step := scoreRound(&wins, round, outcome)
	m.Sides[0].Wins, m.Sides[1].Wins = wins[0], wins[1]

	rv := RoundView{Match: m.view(PromptNextRound, c.clock.Now()), Round: round, Moves: [2]Move{a, b}, Outcome: outcome}
	res := MoveResult{Move: m.Sides[m.Turn].move, Round: &rv}

	log.Debug().
		Str("match_id", m.ID).
		Int("round", round).
		Str("result", outcome.String()).
		Msg("Round decided")

	if step.winner >= 0 {
		err := c.records.AppendRound(ctx, m.RecordID, model.RoundRecord{
			RoundNumber:   round,
			Player1Choice: a.String(),
			Player2Choice: b.String(),
			Result:        outcome.String(),
			Timestamp:     c.clock.Now(),
		}, wins[0], wins[1])
		if err != nil {
			log.Error().Err(err).Str("match_id", m.ID).Int("round", round).Msg("Failed to append round")
		}
	}

	if err := c.presenter.RoundResult(ctx, rv); err != nil {
		log.Warn().Err(err).Str("match_id", m.ID).Msg("Failed to render round result")
	}

	if step.finished {
		result := c.finish(ctx, m, step.winner, EndWin)
		res.Result = &result
		return res
	}

	prompt := PromptTieRedo
	if step.winner >= 0 {
		m.Round++
		prompt = PromptNextRound
	}
	m.resetMoves()
	m.Phase = PhaseResolving

	timeout := c.cfg.TurnTimeout
	if m.Kind == KindAI {
		timeout = c.cfg.AIRoundTimeout
	}
	c.schedule(m, slotDelay, c.cfg.RoundDelay, func(ctx context.Context) {
		m.Phase = PhaseAwaitingMove
		c.promptWithCountdown(ctx, m, prompt, timeout)
	})
	return res
}

// Forfeit ends the match in the other side's favour. In PvP only the side
// holding the turn may forfeit.
func (c *Controller) Forfeit(ctx context.Context, userID, matchID string) (ResultView, error) {
	c.locks.Lock(matchID)
	defer c.locks.Unlock(matchID)

	m, ok := c.matches.Get(matchID)
	if !ok {
		return ResultView{}, ErrMatchNotFound
	}
	side := m.sideOf(userID)
	if side < 0 {
		return ResultView{}, ErrNotParticipant
	}
	if m.Kind == KindPvP && side != m.Turn {
		return ResultView{}, ErrNotYourTurn
	}
	return c.finish(ctx, m, 1-side, EndForfeit), nil
}

// timeout awards the match to the side not holding the turn.
func (c *Controller) timeout(ctx context.Context, m *Match) {
	log.Info().
		Str("match_id", m.ID).
		Str("user_id", m.Sides[m.Turn].UserID).
		Int("round", m.Round).
		Msg("Turn countdown expired")
	c.finish(ctx, m, 1-m.Turn, EndTimeout)
}
