package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-advisor-backend/internal/model"
)

func openTestLog(t *testing.T) *FetchLog {
	t.Helper()
	l, err := OpenFetchLog(filepath.Join(t.TempDir(), "diag", "fetch_log.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestRecordAndRecent(t *testing.T) {
	ctx := context.Background()
	l := openTestLog(t)
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	require.NoError(t, l.Record(ctx, model.FetchRecord{
		Widget: "advisor", Endpoint: "http://a/getStocks", Budget: 100, Risk: 50,
		Outcome: model.OutcomeOK, StatusCode: 200, Count: 3, DurationMs: 12, CreatedAt: base,
	}))
	require.NoError(t, l.Record(ctx, model.FetchRecord{
		Widget: "optistock", Endpoint: "http://b/allocate", Budget: 2500.5, Risk: 90,
		Outcome: model.OutcomeNetwork, StatusCode: 500, Error: "boom", CreatedAt: base.Add(time.Minute),
	}))
	require.NoError(t, l.Record(ctx, model.FetchRecord{
		Widget: "advisor", Endpoint: "http://a/getStocks", Budget: 1, Risk: 0,
		Outcome: model.OutcomeResponseParse, CreatedAt: base.Add(2 * time.Minute),
	}))

	all, err := l.Recent(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, model.OutcomeResponseParse, all[0].Outcome)
	assert.Equal(t, "optistock", all[1].Widget)
	assert.Equal(t, 2500.5, all[1].Budget)
	assert.Equal(t, "boom", all[1].Error)
	assert.True(t, all[2].CreatedAt.Equal(base))

	advisorOnly, err := l.Recent(ctx, "advisor", 1)
	require.NoError(t, err)
	require.Len(t, advisorOnly, 1)
	assert.Equal(t, 0, advisorOnly[0].Risk)

	n, err := l.Prune(ctx, base.Add(90*time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	left, err := l.Recent(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, left, 1)
}

func TestRecordDefaultsTimestamp(t *testing.T) {
	ctx := context.Background()
	l := openTestLog(t)

	require.NoError(t, l.Record(ctx, model.FetchRecord{Widget: "advisor", Endpoint: "x", Outcome: model.OutcomeOK}))
	got, err := l.Recent(ctx, "", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.WithinDuration(t, time.Now(), got[0].CreatedAt, time.Minute)
}

func TestReopenKeepsRecords(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "fetch_log.db")

	l, err := OpenFetchLog(path)
	require.NoError(t, err)
	require.NoError(t, l.Record(ctx, model.FetchRecord{Widget: "advisor", Endpoint: "x", Outcome: model.OutcomeOK}))
	require.NoError(t, l.Close())

	l, err = OpenFetchLog(path)
	require.NoError(t, err)
	defer l.Close()
	got, err := l.Recent(ctx, "", 5)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestRecentClampsLargeLimit(t *testing.T) {
	ctx := context.Background()
	l := openTestLog(t)
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	for i := 0; i < MaxRecentLimit+5; i++ {
		require.NoError(t, l.Record(ctx, model.FetchRecord{
			Widget: "advisor", Endpoint: "http://a/getStocks", Budget: float64(i),
			Outcome: model.OutcomeOK, CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	got, err := l.Recent(ctx, "", 5000)
	require.NoError(t, err)
	assert.Len(t, got, MaxRecentLimit)
	assert.Equal(t, float64(MaxRecentLimit+4), got[0].Budget)

	got, err = l.Recent(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, got, DefaultRecentLimit)
}
