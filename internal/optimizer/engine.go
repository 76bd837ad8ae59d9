package optimizer

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shizukutanaka/Mihari/internal/collector"
	"github.com/shizukutanaka/Mihari/internal/common"
	"github.com/shizukutanaka/Mihari/internal/config"
	"github.com/shizukutanaka/Mihari/internal/metrics"
)

// EngineState is the optimization engine lifecycle state.
type EngineState int32

const (
	EngineIdle EngineState = iota
	EngineStarting
	EngineRunning
	EngineOptimizing
	EngineStopping
	EngineError
)

// String implements fmt.Stringer.
func (s EngineState) String() string {
	switch s {
	case EngineIdle:
		return "IDLE"
	case EngineStarting:
		return "STARTING"
	case EngineRunning:
		return "RUNNING"
	case EngineOptimizing:
		return "OPTIMIZING"
	case EngineStopping:
		return "STOPPING"
	case EngineError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// reportTopStrategies caps how many strategies a report ranks.
const reportTopStrategies = 5

// recurringIssueFrequency is the share of cycles an issue type must
// appear in before a report recommends acting on it.
const recurringIssueFrequency = 0.3

// Engine runs the optimization control loop on top of the collector
// orchestrator: derive issues from the latest snapshot, select and
// execute strategies, record the outcome and learn from it. Cycles never
// overlap; a tick that lands during a running cycle is skipped, not
// queued.
type Engine struct {
	logger *zap.Logger
	orch   *collector.Orchestrator

	strategies *StrategyEngine
	rules      *RuleEngine
	executor   *Executor
	history    *History
	learning   *LearningEngine
	adaptive   *AdaptiveThresholds

	cfgMu sync.RWMutex
	cfg   config.OptimizerConfig

	state       atomic.Int32
	cycleActive atomic.Bool
	cancel      context.CancelFunc
	wg          sync.WaitGroup

	// startMonitoring defaults to the orchestrator's StartMonitoring.
	startMonitoring func() error
}

// NewEngine builds the engine and its sub-engines. The rules file, when
// configured, is loaded immediately; a broken file fails construction
// rather than silently running without rules.
func NewEngine(logger *zap.Logger, cfg config.OptimizerConfig, orch *collector.Orchestrator) (*Engine, error) {
	e := &Engine{
		logger:     logger,
		orch:       orch,
		strategies: NewStrategyEngine(logger),
		rules:      NewRuleEngine(logger),
		executor:   NewExecutor(logger),
		history:    NewHistory(cfg.MaxHistory),
		learning:   NewLearningEngine(),
		adaptive:   NewAdaptiveThresholds(logger, cfg.Thresholds),
		cfg:        cfg,
	}
	e.state.Store(int32(EngineIdle))
	e.startMonitoring = orch.StartMonitoring

	orch.UpdateThresholds(cfg.Thresholds)

	if cfg.RulesFile != "" {
		if appErr := e.rules.LoadRulesFile(cfg.RulesFile); appErr != nil {
			return nil, appErr
		}
	}
	return e, nil
}

// State returns the engine lifecycle state; a cycle in flight reports as
// OPTIMIZING regardless of how it was triggered.
func (e *Engine) State() EngineState {
	if e.cycleActive.Load() {
		return EngineOptimizing
	}
	return EngineState(e.state.Load())
}

// Strategies exposes the strategy registry.
func (e *Engine) Strategies() *StrategyEngine { return e.strategies }

// Rules exposes the rule engine.
func (e *Engine) Rules() *RuleEngine { return e.rules }

// Stats returns the running session counters.
func (e *Engine) Stats() SessionStats { return e.history.Stats() }

// RecentRecords returns the last n cycle records.
func (e *Engine) RecentRecords(n int) []Record { return e.history.Recent(n) }

// UpdateConfig swaps the optimizer configuration. Intervals apply on the
// next loop tick; history capacity applies to new engines only.
func (e *Engine) UpdateConfig(cfg config.OptimizerConfig) {
	e.cfgMu.Lock()
	e.cfg = cfg
	e.cfgMu.Unlock()
	e.logger.Info("optimizer config updated")
}

func (e *Engine) config() config.OptimizerConfig {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return e.cfg
}

// StartAutoOptimization ensures monitoring is running and launches the
// optimization and threshold-adjustment loops. Calling it while running
// is a no-op. A failed start leaves the engine in ERROR; calling again
// retries from there.
func (e *Engine) StartAutoOptimization() error {
	if !e.state.CompareAndSwap(int32(EngineIdle), int32(EngineStarting)) &&
		!e.state.CompareAndSwap(int32(EngineError), int32(EngineStarting)) {
		if EngineState(e.state.Load()) == EngineRunning {
			return nil
		}
		return fmt.Errorf("cannot start optimization from state %s", e.State())
	}

	if err := e.startMonitoring(); err != nil {
		e.state.Store(int32(EngineError))
		return fmt.Errorf("failed to start monitoring: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	e.wg.Add(2)
	go e.optimizationLoop(ctx)
	go e.thresholdLoop(ctx)

	e.state.Store(int32(EngineRunning))
	e.logger.Info("auto-optimization started",
		zap.Duration("optimization_interval", e.config().OptimizationInterval),
		zap.Duration("threshold_adjustment_interval", e.config().ThresholdAdjustmentInterval),
	)
	return nil
}

// StopAutoOptimization cancels the loops; an in-flight cycle completes.
// Monitoring keeps running, it belongs to the orchestrator's owner.
func (e *Engine) StopAutoOptimization() {
	if !e.state.CompareAndSwap(int32(EngineRunning), int32(EngineStopping)) {
		return
	}
	e.cancel()
	e.wg.Wait()
	e.state.Store(int32(EngineIdle))
	e.logger.Info("auto-optimization stopped")
}

// PerformOptimization runs one cycle: snapshot, derive issues (filtered
// to targets when given), select strategies, fold in rule-triggered
// actions, execute and record. A second call while a cycle is in flight
// is rejected rather than queued.
func (e *Engine) PerformOptimization(targets ...IssueType) common.Result[*Record] {
	if !e.cycleActive.CompareAndSwap(false, true) {
		return common.Err[*Record](
			common.NewError(common.ErrorTypeOptimization, "CYCLE_BUSY",
				"an optimization cycle is already in progress"))
	}
	defer e.cycleActive.Store(false)

	snap := e.orch.CurrentSnapshot()
	thresholds := e.orch.Thresholds()

	issues := DeriveIssues(snap, thresholds)
	if len(targets) > 0 {
		issues = filterIssues(issues, targets)
	}

	strategies := e.strategies.Select(issues)
	strategies = e.appendRuleStrategies(snap, strategies)

	results := e.executor.Execute(strategies)

	rec := Record{
		ID:          uuid.NewString(),
		Timestamp:   snap.Timestamp,
		Snapshot:    snap,
		Issues:      issues,
		Strategies:  strategyIDs(strategies),
		Results:     results,
		Improvement: avgSuccessfulImprovement(results),
	}
	e.history.Append(rec)
	e.learning.Observe(results)

	if len(issues) > 0 || len(strategies) > 0 {
		e.logger.Info("optimization cycle complete",
			zap.String("record", rec.ID),
			zap.Int("issues", len(issues)),
			zap.Int("strategies", len(strategies)),
			zap.Float64("improvement_percent", rec.Improvement),
		)
	}
	return common.Ok(&rec)
}

// appendRuleStrategies resolves fired rules to registered strategies and
// appends those not already selected.
func (e *Engine) appendRuleStrategies(snap metrics.Snapshot, selected []Strategy) []Strategy {
	fired := e.rules.Evaluate(snap)
	if len(fired) == 0 {
		return selected
	}

	seen := make(map[string]bool, len(selected))
	for _, s := range selected {
		seen[s.ID] = true
	}
	for _, rule := range fired {
		s, ok := e.strategies.FirstByAction(rule.Action)
		if !ok {
			e.logger.Warn("rule fired with no strategy for its action",
				zap.String("rule", rule.ID),
				zap.String("action", string(rule.Action)),
			)
			continue
		}
		if seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		selected = append(selected, s)
		e.logger.Info("rule triggered strategy",
			zap.String("rule", rule.ID),
			zap.String("strategy", s.ID),
		)
	}
	return selected
}

// Recommendations renders advisory text for the current state: active
// threshold breaches plus projected resource growth. Nothing is
// executed.
func (e *Engine) Recommendations() []string {
	var out []string

	if snap, ok := e.orch.LatestSnapshot(); ok {
		for _, issue := range DeriveIssues(snap, e.orch.Thresholds()) {
			out = append(out, RecommendationFor(issue))
		}
	}

	now := time.Now()
	pred := e.Predict(now.Add(-time.Hour), now, 5*time.Minute)
	out = append(out, pred.Recommendations...)
	return out
}

// Predict regresses aggregated snapshot history over [start, end].
func (e *Engine) Predict(start, end time.Time, bucket time.Duration) TrendPrediction {
	return PredictTrend(e.orch.RangeSnapshots(start, end), bucket)
}

// StrategyEffects returns the learned per-strategy aggregates, best
// first.
func (e *Engine) StrategyEffects() []StrategyEffect {
	return e.learning.Effects()
}

// GenerateOptimizationReport summarizes the cycles recorded in
// [start, end]: totals, the top strategies by realized improvement and
// recommendations for issues that recur across cycles.
func (e *Engine) GenerateOptimizationReport(start, end time.Time) OptimizationReport {
	records := e.history.RangeRecords(start, end)

	report := OptimizationReport{
		Start:       start,
		End:         end,
		GeneratedAt: time.Now(),
		TotalCycles: len(records),
	}
	if len(records) == 0 {
		return report
	}

	effects := make(map[string]*StrategyEffect)
	issueCounts := make(map[IssueType]int)
	lastIssue := make(map[IssueType]Issue)
	var sum float64
	var successes int

	for _, rec := range records {
		cycleOK := false
		for _, res := range rec.Results {
			eff, ok := effects[res.StrategyID]
			if !ok {
				eff = &StrategyEffect{StrategyID: res.StrategyID}
				effects[res.StrategyID] = eff
			}
			eff.Applications++
			if res.Success {
				eff.AvgImprovement = (eff.AvgImprovement*float64(eff.Successes) + res.Improvement) /
					float64(eff.Successes+1)
				eff.Successes++
				sum += res.Improvement
				successes++
				cycleOK = true
			}
		}
		if cycleOK {
			report.SuccessfulCycles++
		}

		seen := make(map[IssueType]bool)
		for _, issue := range rec.Issues {
			if !seen[issue.Type] {
				seen[issue.Type] = true
				issueCounts[issue.Type]++
			}
			lastIssue[issue.Type] = issue
		}
	}
	if successes > 0 {
		report.AvgImprovement = sum / float64(successes)
	}

	ranked := make([]StrategyEffect, 0, len(effects))
	for _, eff := range effects {
		ranked = append(ranked, *eff)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].AvgImprovement != ranked[j].AvgImprovement {
			return ranked[i].AvgImprovement > ranked[j].AvgImprovement
		}
		return ranked[i].StrategyID < ranked[j].StrategyID
	})
	if len(ranked) > reportTopStrategies {
		ranked = ranked[:reportTopStrategies]
	}
	report.TopStrategies = ranked

	n := float64(len(records))
	for typ, count := range issueCounts {
		if float64(count)/n > recurringIssueFrequency {
			report.Recommendations = append(report.Recommendations,
				fmt.Sprintf("%s recurred in %d of %d cycles: %s",
					typ, count, len(records), RecommendationFor(lastIssue[typ])))
		}
	}
	sort.Strings(report.Recommendations)
	return report
}

// optimizationLoop runs a cycle per optimization interval. The interval
// is re-read each tick so configuration reloads apply without restart.
func (e *Engine) optimizationLoop(ctx context.Context) {
	defer e.wg.Done()
	e.runLoop(ctx, "optimization",
		func() time.Duration { return e.config().OptimizationInterval },
		func() {
			if res := e.PerformOptimization(); !res.IsOk() {
				e.logger.Debug("optimization tick skipped", zap.Error(res.Err()))
			}
		})
}

// thresholdLoop periodically adapts the reference thresholds from the
// recent cycle history.
func (e *Engine) thresholdLoop(ctx context.Context) {
	defer e.wg.Done()
	e.runLoop(ctx, "threshold-adjustment",
		func() time.Duration { return e.config().ThresholdAdjustmentInterval },
		func() {
			recent := e.history.Recent(adaptiveWindow)
			next, changed := e.adaptive.Adjust(e.orch.Thresholds(), recent)
			if changed {
				e.orch.UpdateThresholds(next)
			}
		})
}

func (e *Engine) runLoop(ctx context.Context, name string, interval func() time.Duration, fn func()) {
	timer := time.NewTimer(interval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			e.runIteration(name, fn)
			timer.Reset(interval())
		}
	}
}

func (e *Engine) runIteration(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("optimizer loop iteration failed",
				zap.String("loop", name),
				zap.Any("panic", r),
			)
		}
	}()
	fn()
}

func filterIssues(issues []Issue, targets []IssueType) []Issue {
	allowed := make(map[IssueType]bool, len(targets))
	for _, t := range targets {
		allowed[t] = true
	}
	var out []Issue
	for _, issue := range issues {
		if allowed[issue.Type] {
			out = append(out, issue)
		}
	}
	return out
}

func strategyIDs(strategies []Strategy) []string {
	if len(strategies) == 0 {
		return nil
	}
	ids := make([]string, len(strategies))
	for i, s := range strategies {
		ids[i] = s.ID
	}
	return ids
}

func avgSuccessfulImprovement(results []ActionResult) float64 {
	var sum float64
	var n int
	for _, res := range results {
		if res.Success {
			sum += res.Improvement
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
