package optimizer

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// StrategyEngine holds the registered strategies and selects which to run
// for a set of issues. Registration order is stable and breaks
// expected-improvement ties.
type StrategyEngine struct {
	logger *zap.Logger

	mu         sync.RWMutex
	strategies []Strategy
	byID       map[string]int
}

// NewStrategyEngine creates an engine pre-loaded with the built-in
// strategy set.
func NewStrategyEngine(logger *zap.Logger) *StrategyEngine {
	e := &StrategyEngine{
		logger: logger,
		byID:   make(map[string]int),
	}
	for _, s := range builtinStrategies() {
		// Built-ins are well-formed; ignore the duplicate check.
		_ = e.Register(s)
	}
	return e
}

// Register adds a strategy. IDs must be unique; strategies are immutable
// once registered.
func (e *StrategyEngine) Register(s Strategy) error {
	if s.ID == "" {
		return fmt.Errorf("strategy id cannot be empty")
	}
	if len(s.TargetIssues) == 0 {
		return fmt.Errorf("strategy %s targets no issue types", s.ID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.byID[s.ID]; exists {
		return fmt.Errorf("strategy %s already registered", s.ID)
	}
	e.byID[s.ID] = len(e.strategies)
	e.strategies = append(e.strategies, s)
	return nil
}

// Strategies returns a copy of the registered set in registration order.
func (e *StrategyEngine) Strategies() []Strategy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Strategy, len(e.strategies))
	copy(out, e.strategies)
	return out
}

// ByID looks up a registered strategy.
func (e *StrategyEngine) ByID(id string) (Strategy, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	idx, ok := e.byID[id]
	if !ok {
		return Strategy{}, false
	}
	return e.strategies[idx], true
}

// ForIssue returns the single matching strategy with the highest expected
// improvement; ties go to the earlier registration.
func (e *StrategyEngine) ForIssue(issue Issue) (Strategy, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	best := -1
	for i, s := range e.strategies {
		if !s.Targets(issue.Type) {
			continue
		}
		if best == -1 || s.ExpectedImprovement > e.strategies[best].ExpectedImprovement {
			best = i
		}
	}
	if best == -1 {
		return Strategy{}, false
	}
	return e.strategies[best], true
}

// FirstByAction returns the earliest-registered strategy carrying the
// given action type; used to resolve rule-triggered actions.
func (e *StrategyEngine) FirstByAction(action ActionType) (Strategy, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, s := range e.strategies {
		if s.Action == action {
			return s, true
		}
	}
	return Strategy{}, false
}

// Select picks one strategy per issue, deduplicated by strategy id, in
// issue order.
func (e *StrategyEngine) Select(issues []Issue) []Strategy {
	seen := make(map[string]bool)
	var out []Strategy
	for _, issue := range issues {
		s, ok := e.ForIssue(issue)
		if !ok {
			e.logger.Debug("no strategy registered for issue",
				zap.String("issue", string(issue.Type)))
			continue
		}
		if seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		out = append(out, s)
	}
	return out
}

func builtinStrategies() []Strategy {
	return []Strategy{
		{
			ID:                  "throttle-background",
			Name:                "Throttle background work",
			TargetIssues:        []IssueType{IssueHighCPU},
			Action:              ActionThrottleBackground,
			Parameters:          map[string]string{"target_utilization": "70"},
			ExpectedImprovement: 15,
			Risk:                RiskLow,
			ExecutionTime:       2 * time.Second,
		},
		{
			ID:                  "gc-pressure-relief",
			Name:                "Garbage collection pressure relief",
			TargetIssues:        []IssueType{IssueHighMemory},
			Action:              ActionClearCaches,
			ExpectedImprovement: 20,
			Risk:                RiskLow,
			ExecutionTime:       time.Second,
		},
		{
			ID:                  "heap-compaction",
			Name:                "Heap compaction",
			TargetIssues:        []IssueType{IssueHighMemory},
			Action:              ActionCompactHeap,
			ExpectedImprovement: 12,
			Risk:                RiskMedium,
			ExecutionTime:       3 * time.Second,
		},
		{
			ID:                  "trim-telemetry-storage",
			Name:                "Trim telemetry storage",
			TargetIssues:        []IssueType{IssueHighDisk},
			Action:              ActionTrimStorage,
			Parameters:          map[string]string{"keep_fraction": "0.5"},
			ExpectedImprovement: 10,
			Risk:                RiskLow,
			ExecutionTime:       time.Second,
		},
		{
			ID:                  "network-retry-backoff",
			Name:                "Network retry backoff",
			TargetIssues:        []IssueType{IssueNetworkErrors},
			Action:              ActionThrottleNetwork,
			Parameters:          map[string]string{"backoff_factor": "2"},
			ExpectedImprovement: 8,
			Risk:                RiskLow,
			ExecutionTime:       500 * time.Millisecond,
		},
		{
			ID:                  "power-save",
			Name:                "Enter power-save mode",
			TargetIssues:        []IssueType{IssueLowBattery},
			Action:              ActionPowerSave,
			ExpectedImprovement: 25,
			Risk:                RiskMedium,
			ExecutionTime:       time.Second,
		},
		{
			ID:                  "sampling-backoff",
			Name:                "Reduce sampling frequency",
			TargetIssues:        []IssueType{IssueHighCPU, IssueLowBattery},
			Action:              ActionReduceSampling,
			Parameters:          map[string]string{"factor": "2"},
			ExpectedImprovement: 5,
			Risk:                RiskLow,
			ExecutionTime:       200 * time.Millisecond,
		},
	}
}
