package rps

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"community-game-bot/internal/pkg/lock"
)

// schedule replaces the match's single scheduled action with fn after d.
// fn runs under the match lock and only if nothing replaced it meanwhile.
// A callback that cannot get the lock within LockWait retries later instead
// of parking its goroutine. Caller holds the match lock.
func (c *Controller) schedule(m *Match, kind slotKind, d time.Duration, fn func(ctx context.Context)) {
	m.cancelTimer()
	m.slot = kind
	seq := m.timerSeq
	id := m.ID

	var fire func()
	fire = func() {
		err := c.locks.WithLockContext(c.baseCtx, id, c.cfg.LockWait, func() error {
			if cur, ok := c.matches.Get(id); !ok || cur != m || m.timerSeq != seq {
				return nil
			}
			m.timer = nil
			m.slot = slotIdle
			fn(c.baseCtx)
			return nil
		})
		if errors.Is(err, lock.ErrLockTimeout) {
			log.Error().
				Err(err).
				Str("match_id", id).
				Str("timer", kind.String()).
				Dur("wait", c.cfg.LockWait).
				Msg("Match lock busy, retrying timer")
			c.clock.AfterFunc(c.cfg.LockWait, fire)
		}
	}
	m.timer = c.clock.AfterFunc(d, fire)
}

func (c *Controller) armCountdown(m *Match, d time.Duration) {
	m.Deadline = c.clock.Now().Add(d)
	c.schedule(m, slotCountdown, d, func(ctx context.Context) { c.timeout(ctx, m) })
}

func (c *Controller) promptWithCountdown(ctx context.Context, m *Match, prompt PromptKind, timeout time.Duration) {
	c.armCountdown(m, timeout)
	if err := c.presenter.MatchPrompt(ctx, m.view(prompt, c.clock.Now())); err != nil {
		log.Warn().Err(err).Str("match_id", m.ID).Msg("Failed to render match prompt")
	}
}

// startAnimation swaps a running countdown for a ticking "is choosing"
// indicator that still enforces the same deadline. Any later transition
// replaces the tick, which stops the indicator.
func (c *Controller) startAnimation(m *Match) {
	if m.slot != slotCountdown || m.Phase != PhaseAwaitingMove || c.cfg.AnimationInterval <= 0 {
		return
	}
	m.animFrame = 0
	c.scheduleTick(m)
}

func (c *Controller) scheduleTick(m *Match) {
	wait := c.cfg.AnimationInterval
	if left := m.Deadline.Sub(c.clock.Now()); left < wait {
		wait = max(left, 0)
	}
	c.schedule(m, slotAnimation, wait, func(ctx context.Context) { c.tick(ctx, m) })
}

func (c *Controller) tick(ctx context.Context, m *Match) {
	if !c.clock.Now().Before(m.Deadline) {
		c.timeout(ctx, m)
		return
	}
	m.animFrame++
	if err := c.presenter.Choosing(ctx, m.view(PromptSecondMover, c.clock.Now()), m.animFrame); err != nil {
		log.Debug().Err(err).Str("match_id", m.ID).Msg("Failed to update choosing indicator")
	}
	c.scheduleTick(m)
}
