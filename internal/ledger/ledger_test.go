package ledger_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/ocean-data-aggregator/internal/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	l, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestLedger_RunLifecycle(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	runID, err := l.BeginRun(ctx, "2024-04-01", "2024-04-30", 5)
	require.NoError(t, err)
	require.NoError(t, l.FinishRun(ctx, runID, 10, 8, 1, 1))

	runs, err := l.LastRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	r := runs[0]
	assert.Equal(t, runID, r.ID)
	assert.Equal(t, "2024-04-01", r.StartDate)
	assert.Equal(t, "2024-04-30", r.EndDate)
	assert.Equal(t, 5, r.Resolution)
	assert.Equal(t, 10, r.Fetched)
	assert.Equal(t, 8, r.Written)
	assert.Equal(t, 1, r.Skipped)
	assert.Equal(t, 1, r.Failed)
	assert.True(t, r.FinishedAt.Valid)
}

func TestLedger_RecordUnits(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	runID, err := l.BeginRun(ctx, "2024-04-01", "2024-04-30", 5)
	require.NoError(t, err)

	require.NoError(t, l.RecordUnit(ctx, runID, "sst", "sst/csv/a.h3r5.csv", "DONE", ""))
	require.NoError(t, l.RecordUnit(ctx, runID, "sst", "sst/csv/b.h3r5.csv", "FAILED", "fetch failed"))
	require.NoError(t, l.RecordUnit(ctx, runID, "sharks", "sharks/daily/sharks_h3r5_2024-04-01.csv", "SKIPPED", ""))

	states, err := l.UnitStates(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"sst/csv/a.h3r5.csv":                      "DONE",
		"sst/csv/b.h3r5.csv":                      "FAILED",
		"sharks/daily/sharks_h3r5_2024-04-01.csv": "SKIPPED",
	}, states)
}

func TestLedger_UnitsScopedToRun(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	run1, err := l.BeginRun(ctx, "2024-04-01", "2024-04-30", 5)
	require.NoError(t, err)
	run2, err := l.BeginRun(ctx, "2024-05-01", "2024-05-31", 5)
	require.NoError(t, err)

	require.NoError(t, l.RecordUnit(ctx, run1, "sst", "a.csv", "DONE", ""))
	require.NoError(t, l.RecordUnit(ctx, run2, "sst", "b.csv", "DONE", ""))

	states, err := l.UnitStates(ctx, run1)
	require.NoError(t, err)
	assert.Len(t, states, 1)
	assert.Contains(t, states, "a.csv")
}

func TestLedger_LastRunsNewestFirst(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	first, err := l.BeginRun(ctx, "2024-04-01", "2024-04-30", 5)
	require.NoError(t, err)
	second, err := l.BeginRun(ctx, "2024-05-01", "2024-05-31", 5)
	require.NoError(t, err)

	runs, err := l.LastRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, second, runs[0].ID)
	assert.Greater(t, second, first)
}

func TestLedger_ReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()

	l, err := ledger.Open(path)
	require.NoError(t, err)
	runID, err := l.BeginRun(ctx, "2024-04-01", "2024-04-30", 5)
	require.NoError(t, err)
	require.NoError(t, l.FinishRun(ctx, runID, 1, 1, 0, 0))
	require.NoError(t, l.Close())

	l2, err := ledger.Open(path)
	require.NoError(t, err)
	defer l2.Close()

	runs, err := l2.LastRuns(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
