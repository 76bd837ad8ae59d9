package optimizer

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordAt(ts time.Time, results ...ActionResult) Record {
	return Record{
		ID:        fmt.Sprintf("rec-%d", ts.UnixNano()),
		Timestamp: ts,
		Results:   results,
	}
}

func TestHistoryEvictsOldest(t *testing.T) {
	t.Parallel()

	h := NewHistory(3)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		h.Append(recordAt(base.Add(time.Duration(i) * time.Minute)))
	}

	assert.Equal(t, 3, h.Len())
	recent := h.Recent(3)
	require.Len(t, recent, 3)
	assert.Equal(t, base.Add(2*time.Minute), recent[0].Timestamp)
	assert.Equal(t, base.Add(4*time.Minute), recent[2].Timestamp)
}

func TestHistoryRangeInclusive(t *testing.T) {
	t.Parallel()

	h := NewHistory(10)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		h.Append(recordAt(base.Add(time.Duration(i) * time.Hour)))
	}

	got := h.RangeRecords(base.Add(time.Hour), base.Add(3*time.Hour))
	require.Len(t, got, 3)
	assert.Equal(t, base.Add(time.Hour), got[0].Timestamp)
	assert.Equal(t, base.Add(3*time.Hour), got[2].Timestamp)
}

func TestHistoryStatsAveragesSuccessesOnly(t *testing.T) {
	t.Parallel()

	h := NewHistory(10)
	now := time.Now()
	h.Append(recordAt(now,
		ActionResult{StrategyID: "a", Success: true, Improvement: 10},
		ActionResult{StrategyID: "b", Success: false, Improvement: 0},
	))
	h.Append(recordAt(now.Add(time.Minute),
		ActionResult{StrategyID: "a", Success: true, Improvement: 20},
	))

	stats := h.Stats()
	assert.Equal(t, 2, stats.Sessions)
	assert.Equal(t, 3, stats.StrategiesExecuted)
	assert.Equal(t, 2, stats.Successes)
	assert.InDelta(t, 15.0, stats.AvgImprovement, 1e-9)
}

func TestHistoryStatsSurviveEviction(t *testing.T) {
	t.Parallel()

	h := NewHistory(2)
	now := time.Now()
	h.Append(recordAt(now,
		ActionResult{StrategyID: "a", Success: true, Improvement: 10}))
	h.Append(recordAt(now.Add(time.Minute),
		ActionResult{StrategyID: "b", Success: false}))
	h.Append(recordAt(now.Add(2*time.Minute),
		ActionResult{StrategyID: "a", Success: true, Improvement: 20}))

	// The first record has been evicted but the session counters keep
	// counting across the whole run.
	assert.Equal(t, 2, h.Len())
	stats := h.Stats()
	assert.Equal(t, 3, stats.Sessions)
	assert.Equal(t, 3, stats.StrategiesExecuted)
	assert.Equal(t, 2, stats.Successes)
	assert.InDelta(t, 15.0, stats.AvgImprovement, 1e-9)
}

func TestHistoryStatsEmpty(t *testing.T) {
	t.Parallel()

	stats := NewHistory(5).Stats()
	assert.Zero(t, stats.Sessions)
	assert.Zero(t, stats.AvgImprovement)
}

func TestHistoryRecentEdgeCases(t *testing.T) {
	t.Parallel()

	h := NewHistory(5)
	assert.Nil(t, h.Recent(3))
	h.Append(recordAt(time.Now()))
	assert.Len(t, h.Recent(10), 1)
	assert.Nil(t, h.Recent(0))
}
