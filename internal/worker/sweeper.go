// Package worker runs background jobs.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"

	"community-game-bot/internal/pkg/metrics"
)

// OrphanStore marks stale ongoing records abandoned.
type OrphanStore interface {
	SweepOrphans(ctx context.Context, cutoff time.Time, live []int64) (int64, error)
}

// LiveRecords lists record ids of matches still in memory.
type LiveRecords interface {
	RecordIDs() []int64
}

// Sweeper abandons ongoing match records whose live match is gone, which
// happens after a restart.
type Sweeper struct {
	store      OrphanStore
	live       LiveRecords
	interval   time.Duration
	staleAfter time.Duration
	now        func() time.Time
	sched      gocron.Scheduler
}

// NewSweeper creates a sweeper. Start schedules it.
func NewSweeper(store OrphanStore, live LiveRecords, interval, staleAfter time.Duration) *Sweeper {
	return &Sweeper{
		store:      store,
		live:       live,
		interval:   interval,
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// Sweep runs one pass and returns how many records were abandoned.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.staleAfter)
	n, err := s.store.SweepOrphans(ctx, cutoff, s.live.RecordIDs())
	if err != nil {
		return 0, fmt.Errorf("sweep orphaned records: %w", err)
	}
	if n > 0 {
		metrics.RecordsSwept.Add(float64(n))
		log.Info().Int64("count", n).Time("cutoff", cutoff).Msg("Abandoned orphaned match records")
	}
	return n, nil
}

// Start runs a sweep immediately and then every interval.
func (s *Sweeper) Start(ctx context.Context) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() {
			if _, err := s.Sweep(ctx); err != nil {
				log.Error().Err(err).Msg("Orphan sweep failed")
			}
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("orphan-sweeper"),
	)
	if err != nil {
		_ = sched.Shutdown()
		return fmt.Errorf("schedule sweeper: %w", err)
	}

	s.sched = sched
	sched.Start()
	log.Info().Dur("interval", s.interval).Dur("stale_after", s.staleAfter).Msg("Orphan sweeper started")
	return nil
}

// Stop waits for a running sweep and stops the schedule.
func (s *Sweeper) Stop() {
	if s.sched == nil {
		return
	}
	if err := s.sched.Shutdown(); err != nil {
		log.Warn().Err(err).Msg("Failed to stop sweeper")
	}
}
