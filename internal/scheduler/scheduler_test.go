package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSweeper struct {
	now     time.Time
	idleTTL time.Duration
	calls   int
}

func (f *fakeSweeper) Sweep(now time.Time, idleTTL time.Duration) int {
	f.now = now
	f.idleTTL = idleTTL
	f.calls++
	return 2
}

type fakePruner struct {
	before time.Time
	err    error
	calls  int
}

func (f *fakePruner) PruneSummaries(_ context.Context, before time.Time) (int64, error) {
	f.before = before
	f.calls++
	return 3, f.err
}

func newTestScheduler(ctx context.Context, sweeper *fakeSweeper, pruner *fakePruner) *Scheduler {
	s := New(ctx, sweeper, pruner, time.Hour, 30*24*time.Hour, slog.New(slog.DiscardHandler))
	s.now = func() time.Time {
		return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	}

	return s
}

func TestSweepSessions(t *testing.T) {
	sweeper := &fakeSweeper{}
	s := newTestScheduler(context.Background(), sweeper, &fakePruner{})

	s.sweepSessions()

	assert.Equal(t, 1, sweeper.calls)
	assert.Equal(t, time.Hour, sweeper.idleTTL)
	assert.Equal(t, time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC), sweeper.now)
}

func TestPruneHistory(t *testing.T) {
	pruner := &fakePruner{}
	s := newTestScheduler(context.Background(), &fakeSweeper{}, pruner)

	s.pruneHistory()

	assert.Equal(t, 1, pruner.calls)
	assert.Equal(t, time.Date(2026, 9, 19, 12, 0, 0, 0, time.UTC), pruner.before)

	pruner.err = errors.New("database is locked")
	s.pruneHistory()
	assert.Equal(t, 2, pruner.calls)
}

func TestJobsSkipWhenContextIsDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sweeper := &fakeSweeper{}
	pruner := &fakePruner{}
	s := newTestScheduler(ctx, sweeper, pruner)

	s.sweepSessions()
	s.pruneHistory()

	assert.Zero(t, sweeper.calls)
	assert.Zero(t, pruner.calls)
}

func TestSpecsParse(t *testing.T) {
	for _, spec := range []string{SweepSessionsSpec, PruneHistorySpec} {
		_, err := cron.ParseStandard(spec)
		require.NoError(t, err, spec)
	}
}

func TestStartAndStop(t *testing.T) {
	s := newTestScheduler(context.Background(), &fakeSweeper{}, &fakePruner{})

	require.NoError(t, s.Start())
	assert.Len(t, s.cron.Entries(), 2)

	s.Stop()
}
