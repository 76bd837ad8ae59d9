package optimizer

import (
	"sync"

	"go.uber.org/zap"

	"github.com/shizukutanaka/Mihari/internal/metrics"
)

// Adjustment tuning. Frequencies are over the recent record window.
const (
	adaptiveWindow   = 20  // records considered per adjustment
	relaxFrequency   = 0.5 // breach rate above which the threshold relaxes
	tightenFrequency = 0.1 // breach rate below which it tightens back
	thresholdStep    = 5.0
	networkErrorStep = 50.0
)

// Ceilings past which relaxing stops; the defaults are the floor.
const (
	maxCPUThreshold     = 95
	maxMemoryThreshold  = 95
	maxDiskThreshold    = 98
	maxNetworkErrors    = 1000
	minBatteryThreshold = 5
)

// AdaptiveThresholds nudges the reference thresholds toward the observed
// baseline: a metric that breaches constantly relaxes its threshold so
// alerts stay meaningful, and a quiet metric tightens back toward the
// configured defaults. Battery is inverted, lower threshold is more
// relaxed.
type AdaptiveThresholds struct {
	logger *zap.Logger

	mu       sync.Mutex
	defaults metrics.Thresholds
}

// NewAdaptiveThresholds creates an adjuster anchored to the given
// defaults.
func NewAdaptiveThresholds(logger *zap.Logger, defaults metrics.Thresholds) *AdaptiveThresholds {
	return &AdaptiveThresholds{logger: logger, defaults: defaults}
}

// Adjust derives issue-type breach frequencies from the recent records
// and returns the adjusted threshold set, plus whether anything changed.
func (a *AdaptiveThresholds) Adjust(current metrics.Thresholds, recent []Record) (metrics.Thresholds, bool) {
	if len(recent) == 0 {
		return current, false
	}
	if len(recent) > adaptiveWindow {
		recent = recent[len(recent)-adaptiveWindow:]
	}

	counts := make(map[IssueType]int)
	for _, rec := range recent {
		seen := make(map[IssueType]bool)
		for _, issue := range rec.Issues {
			if !seen[issue.Type] {
				seen[issue.Type] = true
				counts[issue.Type]++
			}
		}
	}

	a.mu.Lock()
	defaults := a.defaults
	a.mu.Unlock()

	n := float64(len(recent))
	next := current

	next.CPU = adjustHigh(current.CPU, defaults.CPU, maxCPUThreshold,
		thresholdStep, float64(counts[IssueHighCPU])/n)
	next.Memory = adjustHigh(current.Memory, defaults.Memory, maxMemoryThreshold,
		thresholdStep, float64(counts[IssueHighMemory])/n)
	next.Disk = adjustHigh(current.Disk, defaults.Disk, maxDiskThreshold,
		thresholdStep, float64(counts[IssueHighDisk])/n)
	next.NetworkErrors = adjustHigh(current.NetworkErrors, defaults.NetworkErrors, maxNetworkErrors,
		networkErrorStep, float64(counts[IssueNetworkErrors])/n)
	next.BatteryLow = adjustLow(current.BatteryLow, defaults.BatteryLow, minBatteryThreshold,
		thresholdStep, float64(counts[IssueLowBattery])/n)

	changed := next != current
	if changed {
		a.logger.Info("thresholds adapted",
			zap.Float64("cpu", next.CPU),
			zap.Float64("memory", next.Memory),
			zap.Float64("disk", next.Disk),
			zap.Float64("network_errors", next.NetworkErrors),
			zap.Float64("battery_low", next.BatteryLow),
		)
	}
	return next, changed
}

// adjustHigh handles metrics where exceeding the threshold is a breach:
// chronic breaches raise it toward the ceiling, quiet ones lower it back
// toward the default floor.
func adjustHigh(current, floor, ceiling, step, frequency float64) float64 {
	switch {
	case frequency > relaxFrequency:
		if v := current + step; v < ceiling {
			return v
		}
		return ceiling
	case frequency < tightenFrequency:
		if v := current - step; v > floor {
			return v
		}
		return floor
	}
	return current
}

// adjustLow handles the battery threshold, where dropping below it is the
// breach: chronic breaches lower it toward the floor, quiet ones raise it
// back toward the default ceiling.
func adjustLow(current, ceiling, floor, step, frequency float64) float64 {
	switch {
	case frequency > relaxFrequency:
		if v := current - step; v > floor {
			return v
		}
		return floor
	case frequency < tightenFrequency:
		if v := current + step; v < ceiling {
			return v
		}
		return ceiling
	}
	return current
}
