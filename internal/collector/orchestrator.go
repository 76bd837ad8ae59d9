package collector

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/shizukutanaka/Mihari/internal/alerting"
	"github.com/shizukutanaka/Mihari/internal/analyzer"
	"github.com/shizukutanaka/Mihari/internal/common"
	"github.com/shizukutanaka/Mihari/internal/config"
	"github.com/shizukutanaka/Mihari/internal/metrics"
	"github.com/shizukutanaka/Mihari/internal/store"
)

// State is the orchestrator lifecycle state.
type State int32

const (
	StateInitializing State = iota
	StateIdle
	StateStarting
	StateRunning
	StateStopping
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateInitializing:
		return "INITIALIZING"
	case StateIdle:
		return "IDLE"
	case StateStarting:
		return "STARTING"
	case StateRunning:
		return "RUNNING"
	case StateStopping:
		return "STOPPING"
	default:
		return "UNKNOWN"
	}
}

// analysisWindow is how many recent snapshots each analysis pass looks at.
const analysisWindow = 100

// Orchestrator owns the five resource collectors, the snapshot store and
// the alert manager, and runs the sampling, cleanup and analysis loops.
type Orchestrator struct {
	logger *zap.Logger

	cpu     *CPUCollector
	memory  *MemoryCollector
	network *NetworkCollector
	disk    *DiskCollector
	battery *BatteryCollector

	store  *store.Store
	alerts *alerting.Manager
	latest *common.Observable[metrics.Snapshot]

	cfgMu sync.RWMutex
	cfg   config.MonitorConfig

	state  atomic.Int32
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator builds the orchestrator and initializes all collectors.
func NewOrchestrator(logger *zap.Logger, cfg config.MonitorConfig, providers Providers, snaps *store.Store, alerts *alerting.Manager) *Orchestrator {
	o := &Orchestrator{
		logger:  logger,
		cpu:     NewCPUCollector(logger, providers.CPU),
		memory:  NewMemoryCollector(logger, providers.Memory),
		network: NewNetworkCollector(logger, providers.Network),
		disk:    NewDiskCollector(logger, providers.Disk),
		battery: NewBatteryCollector(logger, providers.Battery),
		store:   snaps,
		alerts:  alerts,
		latest:  common.NewObservable[metrics.Snapshot](),
		cfg:     cfg,
	}
	o.state.Store(int32(StateInitializing))

	o.cpu.Initialize()
	o.memory.Initialize()
	o.network.Initialize()
	o.disk.Initialize()
	o.battery.Initialize()

	o.state.Store(int32(StateIdle))
	return o
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

// StartMonitoring starts all collectors and launches the sampling,
// cleanup and analysis loops. Calling it while running is a no-op.
func (o *Orchestrator) StartMonitoring() error {
	if !o.state.CompareAndSwap(int32(StateIdle), int32(StateStarting)) {
		if o.State() == StateRunning {
			return nil
		}
		return fmt.Errorf("cannot start monitoring from state %s", o.State())
	}

	o.cpu.Start()
	o.memory.Start()
	o.network.Start()
	o.disk.Start()
	o.battery.Start()

	ctx, cancel := context.WithCancel(context.Background())
	o.cancel = cancel

	o.wg.Add(3)
	go o.samplingLoop(ctx)
	go o.cleanupLoop(ctx)
	go o.analysisLoop(ctx)

	o.state.Store(int32(StateRunning))
	o.logger.Info("monitoring started",
		zap.Duration("collection_interval", o.config().CollectionInterval),
		zap.Duration("analysis_interval", o.config().AnalysisInterval),
		zap.Bool("battery_supported", o.battery.Supported()),
	)
	return nil
}

// StopMonitoring cancels the periodic loops and stops the collectors.
// In-flight synchronous calls are allowed to complete.
func (o *Orchestrator) StopMonitoring() error {
	if !o.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return nil
	}

	o.cancel()
	o.wg.Wait()

	o.cpu.Stop()
	o.memory.Stop()
	o.network.Stop()
	o.disk.Stop()
	o.battery.Stop()

	o.state.Store(int32(StateIdle))
	o.logger.Info("monitoring stopped")
	return nil
}

// UpdateConfig replaces the monitor configuration. Intervals take effect
// on each loop's next tick; retention and the anomaly threshold apply
// immediately.
func (o *Orchestrator) UpdateConfig(cfg config.MonitorConfig) {
	o.cfgMu.Lock()
	o.cfg = cfg
	o.cfgMu.Unlock()
	o.logger.Info("monitor config updated")
}

func (o *Orchestrator) config() config.MonitorConfig {
	o.cfgMu.RLock()
	defer o.cfgMu.RUnlock()
	return o.cfg
}

// CurrentSnapshot fuses a reading across all five collectors, derives the
// system load, stores the snapshot and publishes it. The five reads are
// back-to-back with no atomicity across them.
func (o *Orchestrator) CurrentSnapshot() metrics.Snapshot {
	cpu := o.cpu.Current()
	mem := o.memory.Current()
	netw := o.network.Current()
	dsk := o.disk.Current()
	bat := o.battery.Current()

	snap := metrics.Snapshot{
		Timestamp: time.Now(),
		CPU:       cpu,
		Memory:    mem,
		Network:   netw,
		Disk:      dsk,
		Battery:   bat,
		Load:      metrics.ComputeSystemLoad(cpu, mem),
	}

	o.store.Store(snap)
	o.latest.Set(snap)
	return snap
}

// LatestSnapshot returns the most recently captured snapshot, if any.
func (o *Orchestrator) LatestSnapshot() (metrics.Snapshot, bool) {
	return o.latest.Get()
}

// SubscribeSnapshots returns a channel receiving subsequent snapshots.
// Slow readers miss intermediate values rather than blocking sampling.
func (o *Orchestrator) SubscribeSnapshots() <-chan metrics.Snapshot {
	return o.latest.Subscribe()
}

// RangeSnapshots returns stored snapshots within [start, end], inclusive.
func (o *Orchestrator) RangeSnapshots(start, end time.Time) []metrics.Snapshot {
	return o.store.Range(start, end)
}

// RecentSnapshots returns the last n stored snapshots.
func (o *Orchestrator) RecentSnapshots(n int) []metrics.Snapshot {
	return o.store.Recent(n)
}

// StorageUsage reports snapshot store occupancy.
func (o *Orchestrator) StorageUsage() store.StorageUsage {
	return o.store.Usage()
}

// Aggregated buckets the snapshots in range and averages each family.
func (o *Orchestrator) Aggregated(start, end time.Time, bucket time.Duration) common.Result[[]metrics.AggregatedMetrics] {
	if bucket <= 0 {
		return common.Err[[]metrics.AggregatedMetrics](
			common.NewError(common.ErrorTypeValidation, "AGG_BUCKET", "bucket must be positive"))
	}
	return common.Ok(metrics.Aggregate(o.store.Range(start, end), bucket))
}

// Trends runs trend analysis over the snapshots in range.
func (o *Orchestrator) Trends(start, end time.Time) analyzer.TrendAnalysis {
	return analyzer.AnalyzeTrends(o.store.Range(start, end))
}

// Anomalies runs anomaly detection over the snapshots in range at the
// configured z-score threshold.
func (o *Orchestrator) Anomalies(start, end time.Time) []analyzer.Anomaly {
	return analyzer.DetectAnomalies(o.store.Range(start, end), o.config().AnomalyThreshold)
}

// UpdateThresholds replaces the reference threshold set.
func (o *Orchestrator) UpdateThresholds(t metrics.Thresholds) {
	o.alerts.UpdateThresholds(t)
}

// Thresholds returns the active reference threshold set.
func (o *Orchestrator) Thresholds() metrics.Thresholds {
	return o.alerts.Thresholds()
}

// samplingLoop captures a snapshot every collection interval.
func (o *Orchestrator) samplingLoop(ctx context.Context) {
	defer o.wg.Done()
	o.runLoop(ctx, "sampling",
		func() time.Duration { return o.config().CollectionInterval },
		func() {
			o.CurrentSnapshot()
		})
}

// cleanupLoop evicts snapshots older than the retention period.
func (o *Orchestrator) cleanupLoop(ctx context.Context) {
	defer o.wg.Done()
	o.runLoop(ctx, "cleanup",
		func() time.Duration { return o.config().CleanupInterval },
		func() {
			cutoff := time.Now().Add(-o.config().RetentionPeriod)
			if removed := o.store.CleanupOlderThan(cutoff); removed > 0 {
				o.logger.Info("snapshot retention cleanup",
					zap.Int("removed", removed),
					zap.Int("remaining", o.store.TotalCount()),
				)
			}
		})
}

// analysisLoop detects anomalies over the recent window and forwards each
// one to the alert manager.
func (o *Orchestrator) analysisLoop(ctx context.Context) {
	defer o.wg.Done()
	o.runLoop(ctx, "analysis",
		func() time.Duration { return o.config().AnalysisInterval },
		func() {
			recent := o.store.Recent(analysisWindow)
			anomalies := analyzer.DetectAnomalies(recent, o.config().AnomalyThreshold)
			for _, anomaly := range anomalies {
				o.alerts.TriggerAlert(anomaly)
			}
			if len(anomalies) > 0 {
				o.logger.Info("analysis pass flagged anomalies",
					zap.Int("count", len(anomalies)),
					zap.Int("window", len(recent)),
				)
			}
		})
}

// runLoop executes fn on a resettable timer so interval changes apply on
// the next tick. A panicking iteration is logged and the loop continues;
// loops are never allowed to die silently.
func (o *Orchestrator) runLoop(ctx context.Context, name string, interval func() time.Duration, fn func()) {
	timer := time.NewTimer(interval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			o.runIteration(name, fn)
			timer.Reset(interval())
		}
	}
}

func (o *Orchestrator) runIteration(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("periodic loop iteration failed",
				zap.String("loop", name),
				zap.Any("panic", r),
			)
		}
	}()
	fn()
}
