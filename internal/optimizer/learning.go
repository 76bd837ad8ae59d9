package optimizer

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/shizukutanaka/Mihari/internal/analyzer"
	"github.com/shizukutanaka/Mihari/internal/metrics"
)

// LearningEngine accumulates per-strategy effectiveness and predicts
// resource trends from aggregated history.
type LearningEngine struct {
	mu      sync.RWMutex
	effects map[string]*StrategyEffect
}

// NewLearningEngine creates an empty learning engine.
func NewLearningEngine() *LearningEngine {
	return &LearningEngine{effects: make(map[string]*StrategyEffect)}
}

// Observe folds a cycle's results into the per-strategy aggregates. The
// average improvement per strategy covers its successful runs only.
func (l *LearningEngine) Observe(results []ActionResult) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, res := range results {
		eff, ok := l.effects[res.StrategyID]
		if !ok {
			eff = &StrategyEffect{StrategyID: res.StrategyID}
			l.effects[res.StrategyID] = eff
		}
		eff.Applications++
		if res.Success {
			// Running mean over successes.
			eff.AvgImprovement = (eff.AvgImprovement*float64(eff.Successes) + res.Improvement) /
				float64(eff.Successes+1)
			eff.Successes++
		}
	}
}

// Effects returns the per-strategy aggregates sorted by average
// improvement, best first. Ties break on strategy id for stable output.
func (l *LearningEngine) Effects() []StrategyEffect {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]StrategyEffect, 0, len(l.effects))
	for _, eff := range l.effects {
		out = append(out, *eff)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AvgImprovement != out[j].AvgImprovement {
			return out[i].AvgImprovement > out[j].AvgImprovement
		}
		return out[i].StrategyID < out[j].StrategyID
	})
	return out
}

// Effect returns the aggregate for one strategy.
func (l *LearningEngine) Effect(strategyID string) (StrategyEffect, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	eff, ok := l.effects[strategyID]
	if !ok {
		return StrategyEffect{}, false
	}
	return *eff, true
}

// Slope thresholds (percent per bucket) above which a growing resource
// warrants a recommendation.
const (
	cpuSlopeWarn    = 0.1
	memorySlopeWarn = 0.1
	diskSlopeWarn   = 0.05
)

// PredictTrend buckets the snapshots and regresses each metric family's
// bucket averages against the bucket index. Slopes are in percent (or
// bytes, for network) per bucket. Confidence is tiered on the raw
// snapshot count.
func PredictTrend(snapshots []metrics.Snapshot, bucket time.Duration) TrendPrediction {
	pred := TrendPrediction{Confidence: analyzer.Confidence(len(snapshots))}
	if len(snapshots) >= 2 {
		pred.Window = snapshots[len(snapshots)-1].Timestamp.Sub(snapshots[0].Timestamp)
	}

	buckets := metrics.Aggregate(snapshots, bucket)
	if len(buckets) < 2 {
		return pred
	}

	xs := make([]float64, len(buckets))
	cpu := make([]float64, len(buckets))
	mem := make([]float64, len(buckets))
	dsk := make([]float64, len(buckets))
	netw := make([]float64, len(buckets))
	for i, b := range buckets {
		xs[i] = float64(i)
		cpu[i] = b.AvgCPU
		mem[i] = b.AvgMemory
		dsk[i] = b.AvgDiskUsage
		netw[i] = b.AvgNetworkBytes
	}

	pred.CPUSlope = regressionSlope(xs, cpu)
	pred.MemorySlope = regressionSlope(xs, mem)
	pred.DiskSlope = regressionSlope(xs, dsk)
	pred.NetworkSlope = regressionSlope(xs, netw)

	if pred.CPUSlope > cpuSlopeWarn {
		pred.Recommendations = append(pred.Recommendations,
			fmt.Sprintf("CPU usage is rising %.2f%% per interval; plan to shed or throttle workloads", pred.CPUSlope))
	}
	if pred.MemorySlope > memorySlopeWarn {
		pred.Recommendations = append(pred.Recommendations,
			fmt.Sprintf("memory usage is rising %.2f%% per interval; inspect for leaks before pressure builds", pred.MemorySlope))
	}
	if pred.DiskSlope > diskSlopeWarn {
		pred.Recommendations = append(pred.Recommendations,
			fmt.Sprintf("disk usage is rising %.2f%% per interval; schedule storage trimming", pred.DiskSlope))
	}
	return pred
}

func regressionSlope(xs, ys []float64) float64 {
	_, beta := stat.LinearRegression(xs, ys, nil, false)
	if math.IsNaN(beta) {
		return 0
	}
	return beta
}
