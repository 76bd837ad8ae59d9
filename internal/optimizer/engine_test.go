package optimizer

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shizukutanaka/Mihari/internal/alerting"
	"github.com/shizukutanaka/Mihari/internal/collector"
	"github.com/shizukutanaka/Mihari/internal/config"
	"github.com/shizukutanaka/Mihari/internal/metrics"
	"github.com/shizukutanaka/Mihari/internal/store"
)

type fixedCPU struct{ usage float64 }

func (f fixedCPU) Read() (metrics.CPUMetrics, error) {
	return metrics.CPUMetrics{Usage: f.usage, Cores: 4}, nil
}

type fixedMemory struct{ used uint64 }

func (f fixedMemory) Read() (metrics.MemoryMetrics, error) {
	return metrics.MemoryMetrics{Total: 1000, Used: f.used}, nil
}

type fixedNetwork struct{}

func (fixedNetwork) Read() (metrics.NetworkMetrics, error) {
	return metrics.NetworkMetrics{BytesRecv: 10, BytesSent: 10}, nil
}

type fixedDisk struct{ usage float64 }

func (f fixedDisk) Read() (metrics.DiskMetrics, error) {
	return metrics.DiskMetrics{Usage: f.usage}, nil
}

func testEngine(t *testing.T, cpu float64, memUsed uint64) *Engine {
	t.Helper()
	logger := zap.NewNop()

	providers := collector.Providers{
		CPU:     fixedCPU{cpu},
		Memory:  fixedMemory{memUsed},
		Network: fixedNetwork{},
		Disk:    fixedDisk{30},
		Battery: collector.UnsupportedBattery{},
	}
	monitorCfg := config.MonitorConfig{
		CollectionInterval: time.Hour,
		AnalysisInterval:   time.Hour,
		CleanupInterval:    time.Hour,
		RetentionPeriod:    24 * time.Hour,
		MaxSnapshots:       100,
		AnomalyThreshold:   2.0,
	}
	orch := collector.NewOrchestrator(logger, monitorCfg, providers,
		store.New(logger, 100), alerting.NewManager(logger))

	engine, err := NewEngine(logger, config.OptimizerConfig{
		OptimizationInterval:        time.Hour,
		ThresholdAdjustmentInterval: time.Hour,
		MaxHistory:                  10,
		Thresholds:                  metrics.DefaultThresholds(),
	}, orch)
	require.NoError(t, err)
	return engine
}

func TestPerformOptimizationQuietSystem(t *testing.T) {
	t.Parallel()

	e := testEngine(t, 20, 300)
	res := e.PerformOptimization()
	require.True(t, res.IsOk())

	rec := res.Value()
	assert.Empty(t, rec.Issues)
	assert.Empty(t, rec.Strategies)
	assert.Empty(t, rec.Results)
	assert.Zero(t, rec.Improvement)
	assert.NotEmpty(t, rec.ID)

	// The cycle is still recorded.
	assert.Equal(t, 1, e.Stats().Sessions)
}

func TestPerformOptimizationHotCPU(t *testing.T) {
	t.Parallel()

	e := testEngine(t, 96, 300)
	res := e.PerformOptimization()
	require.True(t, res.IsOk())

	rec := res.Value()
	require.Len(t, rec.Issues, 1)
	assert.Equal(t, IssueHighCPU, rec.Issues[0].Type)

	require.Len(t, rec.Strategies, 1)
	assert.Equal(t, "throttle-background", rec.Strategies[0])

	require.Len(t, rec.Results, 1)
	assert.True(t, rec.Results[0].Success)
	assert.Equal(t, 15.0, rec.Results[0].Improvement)
	assert.Equal(t, 15.0, rec.Improvement)

	stats := e.Stats()
	assert.Equal(t, 1, stats.Sessions)
	assert.Equal(t, 1, stats.Successes)
	assert.InDelta(t, 15.0, stats.AvgImprovement, 1e-9)

	effects := e.StrategyEffects()
	require.Len(t, effects, 1)
	assert.Equal(t, "throttle-background", effects[0].StrategyID)
}

func TestPerformOptimizationTargetFilter(t *testing.T) {
	t.Parallel()

	// Both CPU and memory are hot; restricting to memory leaves one issue.
	e := testEngine(t, 96, 960)
	res := e.PerformOptimization(IssueHighMemory)
	require.True(t, res.IsOk())

	rec := res.Value()
	require.Len(t, rec.Issues, 1)
	assert.Equal(t, IssueHighMemory, rec.Issues[0].Type)
	require.Len(t, rec.Strategies, 1)
	assert.Equal(t, "gc-pressure-relief", rec.Strategies[0])
}

func TestPerformOptimizationSkipsWhenBusy(t *testing.T) {
	t.Parallel()

	e := testEngine(t, 20, 300)
	e.cycleActive.Store(true)
	assert.Equal(t, EngineOptimizing, e.State())

	res := e.PerformOptimization()
	require.False(t, res.IsOk())
	assert.Equal(t, "CYCLE_BUSY", res.Err().Code)

	e.cycleActive.Store(false)
	assert.True(t, e.PerformOptimization().IsOk())
}

func TestRuleTriggeredStrategy(t *testing.T) {
	t.Parallel()

	// CPU is below the issue threshold but a rule fires on it anyway.
	e := testEngine(t, 60, 300)
	require.NoError(t, e.Rules().SetRules([]Rule{
		{ID: "warm-cpu", Metric: "cpu_usage", Operator: ">", Value: 50, Action: ActionReduceSampling, Enabled: true},
	}))

	res := e.PerformOptimization()
	require.True(t, res.IsOk())

	rec := res.Value()
	assert.Empty(t, rec.Issues)
	require.Len(t, rec.Strategies, 1)
	assert.Equal(t, "sampling-backoff", rec.Strategies[0])
	require.Len(t, rec.Results, 1)
	assert.True(t, rec.Results[0].Success)
}

func TestGenerateOptimizationReport(t *testing.T) {
	t.Parallel()

	e := testEngine(t, 96, 300)
	for i := 0; i < 4; i++ {
		require.True(t, e.PerformOptimization().IsOk())
	}

	start := time.Now().Add(-time.Hour)
	end := time.Now().Add(time.Hour)
	report := e.GenerateOptimizationReport(start, end)

	assert.Equal(t, 4, report.TotalCycles)
	assert.Equal(t, 4, report.SuccessfulCycles)
	assert.InDelta(t, 15.0, report.AvgImprovement, 1e-9)

	require.Len(t, report.TopStrategies, 1)
	assert.Equal(t, "throttle-background", report.TopStrategies[0].StrategyID)
	assert.Equal(t, 4, report.TopStrategies[0].Applications)

	// High CPU recurred in every cycle, well past the recurrence bar.
	require.NotEmpty(t, report.Recommendations)
	assert.Contains(t, report.Recommendations[0], "HIGH_CPU_USAGE")
}

func TestGenerateOptimizationReportEmptyRange(t *testing.T) {
	t.Parallel()

	e := testEngine(t, 20, 300)
	report := e.GenerateOptimizationReport(time.Unix(0, 0), time.Unix(1, 0))
	assert.Zero(t, report.TotalCycles)
	assert.Empty(t, report.TopStrategies)
	assert.Empty(t, report.Recommendations)
}

func TestAutoOptimizationLifecycle(t *testing.T) {
	t.Parallel()

	e := testEngine(t, 20, 300)
	assert.Equal(t, EngineIdle, e.State())

	require.NoError(t, e.StartAutoOptimization())
	assert.Equal(t, EngineRunning, e.State())

	// Idempotent while running.
	require.NoError(t, e.StartAutoOptimization())

	e.StopAutoOptimization()
	assert.Equal(t, EngineIdle, e.State())

	// Stopping again is harmless.
	e.StopAutoOptimization()
}

func TestStartFailureEntersErrorState(t *testing.T) {
	t.Parallel()

	e := testEngine(t, 20, 300)
	boot := e.startMonitoring
	e.startMonitoring = func() error { return errors.New("monitoring refused") }

	err := e.StartAutoOptimization()
	require.Error(t, err)
	assert.Equal(t, EngineError, e.State())
	assert.Equal(t, "ERROR", e.State().String())

	// A later start retries from the error state.
	e.startMonitoring = boot
	require.NoError(t, e.StartAutoOptimization())
	assert.Equal(t, EngineRunning, e.State())
	e.StopAutoOptimization()
}

func TestRecommendationsForHotSystem(t *testing.T) {
	t.Parallel()

	e := testEngine(t, 96, 300)
	// Capture a snapshot so the latest-value container is populated.
	require.True(t, e.PerformOptimization().IsOk())

	recs := e.Recommendations()
	require.NotEmpty(t, recs)
	assert.Contains(t, recs[0], "CPU")
}
