package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakePruner struct {
	fails  int
	calls  int
	before []time.Time
}

func (f *fakePruner) Prune(_ context.Context, before time.Time) (int64, error) {
	f.calls++
	f.before = append(f.before, before)
	if f.calls <= f.fails {
		return 0, errors.New("database is locked")
	}
	return 3, nil
}

func TestParseClock(t *testing.T) {
	cases := map[string][2]int{
		"04:00":  {4, 0},
		"16:30":  {16, 30},
		" 9:05 ": {9, 5},
		"":       {4, 0},
		"25:00":  {4, 0},
		"ab:cd":  {4, 0},
		"12":     {4, 0},
	}
	for in, want := range cases {
		h, m := ParseClock(in)
		assert.Equal(t, want, [2]int{h, m}, "input %q", in)
	}
}

func TestNextRun(t *testing.T) {
	loc := time.UTC
	now := time.Date(2026, 3, 1, 3, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2026, 3, 1, 4, 0, 0, 0, loc), NextRun(now, 4, 0))

	now = time.Date(2026, 3, 1, 4, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2026, 3, 2, 4, 0, 0, 0, loc), NextRun(now, 4, 0))

	now = time.Date(2026, 12, 31, 23, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2027, 1, 1, 4, 0, 0, 0, loc), NextRun(now, 4, 0))
}

func TestPruneWithRetry(t *testing.T) {
	p := &fakePruner{fails: 2}
	opts := PruneOptions{Retention: 24 * time.Hour, RetryCount: 3, RetryInterval: time.Millisecond}

	start := time.Now()
	require.NoError(t, pruneWithRetry(context.Background(), p, opts, zap.NewNop()))
	assert.Equal(t, 3, p.calls)
	assert.WithinDuration(t, start.Add(-24*time.Hour), p.before[0], time.Second)
}

func TestPruneWithRetryGivesUp(t *testing.T) {
	p := &fakePruner{fails: 10}
	opts := PruneOptions{Retention: time.Hour, RetryCount: 1, RetryInterval: time.Millisecond}
	assert.Error(t, pruneWithRetry(context.Background(), p, opts, zap.NewNop()))
	assert.Equal(t, 2, p.calls)
}

func TestSchedulerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := StartFetchLogPruneScheduler(ctx, &fakePruner{}, PruneOptions{Retention: time.Hour}, zap.NewNop())
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestSchedulerDisabled(t *testing.T) {
	done := StartFetchLogPruneScheduler(context.Background(), &fakePruner{}, PruneOptions{}, zap.NewNop())
	_, open := <-done
	assert.False(t, open)
}
