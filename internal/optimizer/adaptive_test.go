package optimizer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/shizukutanaka/Mihari/internal/metrics"
)

func recordsWithIssue(typ IssueType, breaches, total int) []Record {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	records := make([]Record, total)
	for i := range records {
		records[i] = Record{
			ID:        "r",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}
		if i < breaches {
			records[i].Issues = []Issue{{Type: typ}}
		}
	}
	return records
}

func TestAdjustRelaxesChronicCPUBreaches(t *testing.T) {
	t.Parallel()

	a := NewAdaptiveThresholds(zap.NewNop(), metrics.DefaultThresholds())
	current := metrics.DefaultThresholds()

	next, changed := a.Adjust(current, recordsWithIssue(IssueHighCPU, 8, 10))
	assert.True(t, changed)
	assert.Equal(t, current.CPU+thresholdStep, next.CPU)
	// Quiet metrics stay at their default floor.
	assert.Equal(t, current.Memory, next.Memory)
	assert.Equal(t, current.BatteryLow, next.BatteryLow)
}

func TestAdjustClampsAtCeiling(t *testing.T) {
	t.Parallel()

	a := NewAdaptiveThresholds(zap.NewNop(), metrics.DefaultThresholds())
	current := metrics.DefaultThresholds()
	current.CPU = 93

	next, _ := a.Adjust(current, recordsWithIssue(IssueHighCPU, 10, 10))
	assert.Equal(t, float64(maxCPUThreshold), next.CPU)

	// Already at the ceiling: nothing more to relax.
	next2, _ := a.Adjust(next, recordsWithIssue(IssueHighCPU, 10, 10))
	assert.Equal(t, float64(maxCPUThreshold), next2.CPU)
}

func TestAdjustTightensQuietMetricTowardDefault(t *testing.T) {
	t.Parallel()

	defaults := metrics.DefaultThresholds()
	a := NewAdaptiveThresholds(zap.NewNop(), defaults)

	relaxed := defaults
	relaxed.Memory = 95

	// No memory breaches at all: tighten back by one step.
	next, changed := a.Adjust(relaxed, recordsWithIssue(IssueHighCPU, 2, 10))
	assert.True(t, changed)
	assert.Equal(t, 90.0, next.Memory)

	// Never tightens past the configured default.
	atDefault := defaults
	next, _ = a.Adjust(atDefault, recordsWithIssue(IssueHighCPU, 2, 10))
	assert.Equal(t, defaults.Memory, next.Memory)
}

func TestAdjustBatteryInverted(t *testing.T) {
	t.Parallel()

	defaults := metrics.DefaultThresholds()
	a := NewAdaptiveThresholds(zap.NewNop(), defaults)

	// Chronic low-battery breaches lower the threshold so alerts fire
	// less.
	next, _ := a.Adjust(defaults, recordsWithIssue(IssueLowBattery, 9, 10))
	assert.Equal(t, defaults.BatteryLow-thresholdStep, next.BatteryLow)

	// Clamped at the floor.
	low := defaults
	low.BatteryLow = 7
	next, _ = a.Adjust(low, recordsWithIssue(IssueLowBattery, 9, 10))
	assert.Equal(t, float64(minBatteryThreshold), next.BatteryLow)

	// Quiet battery rises back toward the default ceiling.
	relaxed := defaults
	relaxed.BatteryLow = 10
	next, _ = a.Adjust(relaxed, recordsWithIssue(IssueHighCPU, 2, 10))
	assert.Equal(t, 15.0, next.BatteryLow)
}

func TestAdjustMiddleFrequencyHolds(t *testing.T) {
	t.Parallel()

	a := NewAdaptiveThresholds(zap.NewNop(), metrics.DefaultThresholds())
	current := metrics.DefaultThresholds()
	current.CPU = 85

	// 30% breach rate is between the tighten and relax bands.
	next, _ := a.Adjust(current, recordsWithIssue(IssueHighCPU, 3, 10))
	assert.Equal(t, 85.0, next.CPU)
}

func TestAdjustNoRecords(t *testing.T) {
	t.Parallel()

	a := NewAdaptiveThresholds(zap.NewNop(), metrics.DefaultThresholds())
	current := metrics.DefaultThresholds()
	next, changed := a.Adjust(current, nil)
	assert.False(t, changed)
	assert.Equal(t, current, next)
}
