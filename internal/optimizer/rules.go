package optimizer

import (
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/shizukutanaka/Mihari/internal/common"
	"github.com/shizukutanaka/Mihari/internal/metrics"
)

// Rule is a declarative trigger: when a metric satisfies the comparison
// for at least the For duration, the named action fires.
type Rule struct {
	ID       string        `yaml:"id" json:"id"`
	Metric   string        `yaml:"metric" json:"metric"`
	Operator string        `yaml:"operator" json:"operator"`
	Value    float64       `yaml:"value" json:"value"`
	For      time.Duration `yaml:"for" json:"for"`
	Action   ActionType    `yaml:"action" json:"action"`
	Enabled  bool          `yaml:"enabled" json:"enabled"`
}

// UnmarshalYAML decodes the rule with For given as a duration string
// like "90s" or "2m".
func (r *Rule) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		ID       string     `yaml:"id"`
		Metric   string     `yaml:"metric"`
		Operator string     `yaml:"operator"`
		Value    float64    `yaml:"value"`
		For      string     `yaml:"for"`
		Action   ActionType `yaml:"action"`
		Enabled  bool       `yaml:"enabled"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*r = Rule{
		ID:       raw.ID,
		Metric:   raw.Metric,
		Operator: raw.Operator,
		Value:    raw.Value,
		Action:   raw.Action,
		Enabled:  raw.Enabled,
	}
	if raw.For != "" {
		d, err := time.ParseDuration(raw.For)
		if err != nil {
			return fmt.Errorf("rule %s: invalid for duration %q: %w", raw.ID, raw.For, err)
		}
		r.For = d
	}
	return nil
}

// Validate checks the rule is evaluable.
func (r Rule) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("rule id cannot be empty")
	}
	switch r.Metric {
	case "cpu_usage", "memory_usage", "disk_usage", "network_errors", "battery_level":
	default:
		return fmt.Errorf("rule %s: unknown metric %q", r.ID, r.Metric)
	}
	switch r.Operator {
	case ">", "<", ">=", "<=", "==", "!=":
	default:
		return fmt.Errorf("rule %s: unknown operator %q", r.ID, r.Operator)
	}
	if r.For < 0 {
		return fmt.Errorf("rule %s: for duration cannot be negative", r.ID)
	}
	return nil
}

// RuleEngine evaluates rules against snapshots and tracks how long each
// rule's condition has held, so For durations survive across evaluations.
type RuleEngine struct {
	logger *zap.Logger

	mu       sync.Mutex
	rules    []Rule
	firstMet map[string]time.Time
}

// NewRuleEngine creates an empty rule engine.
func NewRuleEngine(logger *zap.Logger) *RuleEngine {
	return &RuleEngine{
		logger:   logger,
		firstMet: make(map[string]time.Time),
	}
}

// SetRules replaces the rule set after validating every rule. Condition
// tracking restarts for all rules.
func (e *RuleEngine) SetRules(rules []Rule) error {
	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return err
		}
		if seen[r.ID] {
			return fmt.Errorf("duplicate rule id %s", r.ID)
		}
		seen[r.ID] = true
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append([]Rule(nil), rules...)
	e.firstMet = make(map[string]time.Time)
	return nil
}

// Rules returns a copy of the active rule set.
func (e *RuleEngine) Rules() []Rule {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Evaluate returns the rules whose condition has held for at least their
// For duration as of the snapshot's timestamp. Disabled rules and rules
// whose condition lapsed have their tracking reset.
func (e *RuleEngine) Evaluate(snap metrics.Snapshot) []Rule {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := snap.Timestamp
	var fired []Rule
	for _, r := range e.rules {
		if !r.Enabled {
			delete(e.firstMet, r.ID)
			continue
		}
		v, ok := ruleMetricValue(snap, r.Metric)
		if !ok {
			// Battery metric on unsupported hardware.
			delete(e.firstMet, r.ID)
			continue
		}
		if !compare(v, r.Operator, r.Value) {
			delete(e.firstMet, r.ID)
			continue
		}

		first, tracked := e.firstMet[r.ID]
		if !tracked {
			first = now
			e.firstMet[r.ID] = first
		}
		if now.Sub(first) >= r.For {
			fired = append(fired, r)
		}
	}
	return fired
}

func ruleMetricValue(snap metrics.Snapshot, metric string) (float64, bool) {
	switch metric {
	case "cpu_usage":
		return snap.CPU.Usage, true
	case "memory_usage":
		return snap.Memory.UsagePercent(), true
	case "disk_usage":
		return snap.Disk.Usage, true
	case "network_errors":
		return float64(snap.Network.Errors), true
	case "battery_level":
		if snap.Battery == nil {
			return 0, false
		}
		return snap.Battery.Level, true
	}
	return 0, false
}

func compare(v float64, op string, ref float64) bool {
	switch op {
	case ">":
		return v > ref
	case "<":
		return v < ref
	case ">=":
		return v >= ref
	case "<=":
		return v <= ref
	case "==":
		return v == ref
	case "!=":
		return v != ref
	}
	return false
}

type rulesFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRulesFile reads a YAML rules file and installs its rule set.
func (e *RuleEngine) LoadRulesFile(path string) *common.AppError {
	data, err := os.ReadFile(path)
	if err != nil {
		return common.NewError(common.ErrorTypeConfiguration, "RULES_READ",
			fmt.Sprintf("failed to read rules file %s", path)).WithError(err)
	}

	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return common.NewError(common.ErrorTypeConfiguration, "RULES_PARSE",
			fmt.Sprintf("failed to parse rules file %s", path)).WithError(err)
	}
	if err := e.SetRules(f.Rules); err != nil {
		return common.NewError(common.ErrorTypeConfiguration, "RULES_INVALID",
			err.Error())
	}
	e.logger.Info("rules loaded", zap.String("path", path), zap.Int("rules", len(f.Rules)))
	return nil
}
