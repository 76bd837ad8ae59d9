// Package optimizer implements the closed control loop that diagnoses
// performance issues from snapshots, applies mitigating strategies and
// learns from the outcome of each cycle.
package optimizer

import (
	"time"

	"github.com/shizukutanaka/Mihari/internal/analyzer"
	"github.com/shizukutanaka/Mihari/internal/metrics"
)

// IssueType identifies a currently-observed threshold breach family.
type IssueType string

const (
	IssueHighCPU       IssueType = "HIGH_CPU_USAGE"
	IssueHighMemory    IssueType = "HIGH_MEMORY_USAGE"
	IssueHighDisk      IssueType = "HIGH_DISK_USAGE"
	IssueNetworkErrors IssueType = "NETWORK_ERRORS"
	IssueLowBattery    IssueType = "LOW_BATTERY"
)

// RiskLevel grades how intrusive a strategy is.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// ActionType names an executable remediation.
type ActionType string

const (
	ActionThrottleBackground ActionType = "THROTTLE_BACKGROUND_WORK"
	ActionClearCaches        ActionType = "CLEAR_CACHES"
	ActionCompactHeap        ActionType = "COMPACT_HEAP"
	ActionReduceSampling     ActionType = "REDUCE_SAMPLING"
	ActionThrottleNetwork    ActionType = "THROTTLE_NETWORK_RETRIES"
	ActionTrimStorage        ActionType = "TRIM_STORAGE"
	ActionPowerSave          ActionType = "ENTER_POWER_SAVE"
)

// Issue is a threshold breach derived synchronously from the latest
// snapshot. Issues are recomputed every cycle, never persisted.
type Issue struct {
	Type        IssueType         `json:"type"`
	Severity    analyzer.Severity `json:"severity"`
	Description string            `json:"description"`
	Value       float64           `json:"value"`
	Threshold   float64           `json:"threshold"`
	Metric      string            `json:"metric"`
}

// Strategy is a named, parameterized remediation template. Immutable once
// registered.
type Strategy struct {
	ID                  string            `json:"id"`
	Name                string            `json:"name"`
	TargetIssues        []IssueType       `json:"target_issues"`
	Action              ActionType        `json:"action"`
	Parameters          map[string]string `json:"parameters,omitempty"`
	ExpectedImprovement float64           `json:"expected_improvement"`
	Risk                RiskLevel         `json:"risk"`
	ExecutionTime       time.Duration     `json:"execution_time"`
}

// Targets reports whether the strategy addresses the given issue type.
func (s Strategy) Targets(t IssueType) bool {
	for _, it := range s.TargetIssues {
		if it == t {
			return true
		}
	}
	return false
}

// ActionResult is the outcome of executing one strategy against one
// snapshot.
type ActionResult struct {
	StrategyID    string        `json:"strategy_id"`
	Success       bool          `json:"success"`
	Message       string        `json:"message"`
	Improvement   float64       `json:"improvement_percent"`
	ExecutionTime time.Duration `json:"execution_time"`
	ExecutedAt    time.Time     `json:"executed_at"`
}

// Record is the full audit of one optimization cycle.
type Record struct {
	ID          string           `json:"id"`
	Timestamp   time.Time        `json:"timestamp"`
	Snapshot    metrics.Snapshot `json:"snapshot"`
	Issues      []Issue          `json:"issues"`
	Strategies  []string         `json:"strategies"`
	Results     []ActionResult   `json:"results"`
	Improvement float64          `json:"improvement_percent"`
}

// SessionStats are running counters across optimization cycles. The
// average improvement covers successful results only.
type SessionStats struct {
	Sessions           int     `json:"sessions"`
	StrategiesExecuted int     `json:"strategies_executed"`
	Successes          int     `json:"successes"`
	AvgImprovement     float64 `json:"avg_improvement_percent"`
}

// TrendPrediction carries per-metric regression slopes over an aggregated
// history window plus advisory text.
type TrendPrediction struct {
	Window          time.Duration `json:"window"`
	CPUSlope        float64       `json:"cpu_slope"`
	MemorySlope     float64       `json:"memory_slope"`
	DiskSlope       float64       `json:"disk_slope"`
	NetworkSlope    float64       `json:"network_slope"`
	Confidence      float64       `json:"confidence"`
	Recommendations []string      `json:"recommendations,omitempty"`
}

// StrategyEffect summarizes one strategy's applications in a report
// window.
type StrategyEffect struct {
	StrategyID     string  `json:"strategy_id"`
	Applications   int     `json:"applications"`
	Successes      int     `json:"successes"`
	AvgImprovement float64 `json:"avg_improvement_percent"`
}

// OptimizationReport summarizes the cycles recorded in a time range.
type OptimizationReport struct {
	Start            time.Time        `json:"start"`
	End              time.Time        `json:"end"`
	GeneratedAt      time.Time        `json:"generated_at"`
	TotalCycles      int              `json:"total_cycles"`
	SuccessfulCycles int              `json:"successful_cycles"`
	AvgImprovement   float64          `json:"avg_improvement_percent"`
	TopStrategies    []StrategyEffect `json:"top_strategies,omitempty"`
	Recommendations  []string         `json:"recommendations,omitempty"`
}
