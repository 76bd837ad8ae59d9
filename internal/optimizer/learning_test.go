package optimizer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shizukutanaka/Mihari/internal/metrics"
)

func TestObserveAggregatesPerStrategy(t *testing.T) {
	t.Parallel()

	l := NewLearningEngine()
	l.Observe([]ActionResult{
		{StrategyID: "a", Success: true, Improvement: 10},
		{StrategyID: "b", Success: false},
	})
	l.Observe([]ActionResult{
		{StrategyID: "a", Success: true, Improvement: 30},
		{StrategyID: "a", Success: false},
	})

	effA, ok := l.Effect("a")
	require.True(t, ok)
	assert.Equal(t, 3, effA.Applications)
	assert.Equal(t, 2, effA.Successes)
	assert.InDelta(t, 20.0, effA.AvgImprovement, 1e-9)

	effB, ok := l.Effect("b")
	require.True(t, ok)
	assert.Equal(t, 1, effB.Applications)
	assert.Zero(t, effB.Successes)
	assert.Zero(t, effB.AvgImprovement)

	_, ok = l.Effect("missing")
	assert.False(t, ok)
}

func TestEffectsSortedBestFirst(t *testing.T) {
	t.Parallel()

	l := NewLearningEngine()
	l.Observe([]ActionResult{
		{StrategyID: "weak", Success: true, Improvement: 5},
		{StrategyID: "strong", Success: true, Improvement: 25},
		{StrategyID: "mid", Success: true, Improvement: 15},
	})

	effects := l.Effects()
	require.Len(t, effects, 3)
	assert.Equal(t, "strong", effects[0].StrategyID)
	assert.Equal(t, "mid", effects[1].StrategyID)
	assert.Equal(t, "weak", effects[2].StrategyID)
}

func trendSnapshots(cpuStart, cpuStep float64, n int, spacing time.Duration) []metrics.Snapshot {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	snaps := make([]metrics.Snapshot, n)
	for i := range snaps {
		snaps[i] = metrics.Snapshot{
			Timestamp: base.Add(time.Duration(i) * spacing),
			CPU:       metrics.CPUMetrics{Usage: cpuStart + float64(i)*cpuStep},
			Memory:    metrics.MemoryMetrics{Total: 1000, Used: 300},
			Disk:      metrics.DiskMetrics{Usage: 50},
		}
	}
	return snaps
}

func TestPredictTrendRisingCPU(t *testing.T) {
	t.Parallel()

	// One snapshot per minute, rising 2% per minute; 5-minute buckets rise
	// 10% per bucket.
	snaps := trendSnapshots(10, 2, 30, time.Minute)
	pred := PredictTrend(snaps, 5*time.Minute)

	assert.Greater(t, pred.CPUSlope, cpuSlopeWarn)
	assert.InDelta(t, 0.0, pred.MemorySlope, 1e-6)
	assert.InDelta(t, 0.0, pred.DiskSlope, 1e-6)
	assert.Equal(t, 0.80, pred.Confidence)
	assert.Equal(t, 29*time.Minute, pred.Window)

	require.NotEmpty(t, pred.Recommendations)
	assert.Contains(t, pred.Recommendations[0], "CPU")
}

func TestPredictTrendFlatSeriesNoRecommendations(t *testing.T) {
	t.Parallel()

	snaps := trendSnapshots(40, 0, 30, time.Minute)
	pred := PredictTrend(snaps, 5*time.Minute)
	assert.InDelta(t, 0.0, pred.CPUSlope, 1e-6)
	assert.Empty(t, pred.Recommendations)
}

func TestPredictTrendTooFewBuckets(t *testing.T) {
	t.Parallel()

	pred := PredictTrend(trendSnapshots(10, 5, 3, time.Second), time.Hour)
	assert.Zero(t, pred.CPUSlope)
	assert.Equal(t, 0.50, pred.Confidence)
	assert.Empty(t, pred.Recommendations)
}

func TestPredictTrendEmpty(t *testing.T) {
	t.Parallel()

	pred := PredictTrend(nil, time.Minute)
	assert.Zero(t, pred.Window)
	assert.Equal(t, 0.50, pred.Confidence)
}
