package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	SweepSessionsSpec     = "*/15 * * * *"
	PruneHistorySpec      = "0 * * * *"
	Timezone              = "UTC"
	TimezoneOffsetSeconds = 0
	pruneHistoryTimeout   = 5 * time.Minute
)

type SessionSweeper interface {
	Sweep(now time.Time, idleTTL time.Duration) int
}

type HistoryPruner interface {
	PruneSummaries(ctx context.Context, before time.Time) (int64, error)
}

type Scheduler struct {
	ctx              context.Context
	cron             *cron.Cron
	sessions         SessionSweeper
	history          HistoryPruner
	sessionIdleTTL   time.Duration
	historyRetention time.Duration
	now              func() time.Time
	log              *slog.Logger
}

func New(
	ctx context.Context,
	sessions SessionSweeper,
	history HistoryPruner,
	sessionIdleTTL time.Duration,
	historyRetention time.Duration,
	log *slog.Logger,
) *Scheduler {
	c := cron.New(cron.WithLocation(time.FixedZone(Timezone, TimezoneOffsetSeconds)))

	return &Scheduler{
		ctx:              ctx,
		cron:             c,
		sessions:         sessions,
		history:          history,
		sessionIdleTTL:   sessionIdleTTL,
		historyRetention: historyRetention,
		now:              time.Now,
		log:              log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(SweepSessionsSpec, s.sweepSessions); err != nil {
		return fmt.Errorf("add sweep sessions job: %w", err)
	}

	if _, err := s.cron.AddFunc(PruneHistorySpec, s.pruneHistory); err != nil {
		return fmt.Errorf("add prune history job: %w", err)
	}

	s.cron.Start()

	return nil
}

// Stop stops scheduling and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) sweepSessions() {
	if s.ctx.Err() != nil {
		s.log.InfoContext(s.ctx, "Scheduler context is done",
			"error", s.ctx.Err())
		return
	}

	evicted := s.sessions.Sweep(s.now(), s.sessionIdleTTL)
	if evicted > 0 {
		s.log.InfoContext(s.ctx, "Idle sessions are evicted",
			"evicted", evicted,
			"idleTTL", s.sessionIdleTTL.String())
	}
}

func (s *Scheduler) pruneHistory() {
	ctx, cancel := context.WithTimeout(s.ctx, pruneHistoryTimeout)
	defer cancel()

	select {
	case <-ctx.Done():
		s.log.InfoContext(ctx, "Scheduler context is done",
			"error", ctx.Err())
		return
	default:
	}

	before := s.now().Add(-s.historyRetention)

	pruned, err := s.history.PruneSummaries(ctx, before)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to prune history",
			"error", err,
			"before", before)
		return
	}

	if pruned > 0 {
		s.log.InfoContext(ctx, "History is pruned",
			"pruned", pruned,
			"before", before)
	}
}
