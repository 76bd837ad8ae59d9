package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBuiltinStrategiesRegistered(t *testing.T) {
	t.Parallel()

	e := NewStrategyEngine(zap.NewNop())
	assert.Len(t, e.Strategies(), 7)

	s, ok := e.ByID("power-save")
	require.True(t, ok)
	assert.Equal(t, ActionPowerSave, s.Action)

	_, ok = e.ByID("missing")
	assert.False(t, ok)
}

func TestRegisterValidation(t *testing.T) {
	t.Parallel()

	e := NewStrategyEngine(zap.NewNop())

	assert.Error(t, e.Register(Strategy{TargetIssues: []IssueType{IssueHighCPU}}))
	assert.Error(t, e.Register(Strategy{ID: "no-targets"}))
	assert.Error(t, e.Register(Strategy{ID: "power-save", TargetIssues: []IssueType{IssueLowBattery}}))

	assert.NoError(t, e.Register(Strategy{
		ID:           "custom",
		TargetIssues: []IssueType{IssueHighCPU},
		Action:       ActionThrottleBackground,
	}))
}

func TestForIssuePicksHighestExpectedImprovement(t *testing.T) {
	t.Parallel()

	e := NewStrategyEngine(zap.NewNop())

	// Two built-ins target high memory: gc-pressure-relief (20) beats
	// heap-compaction (12).
	s, ok := e.ForIssue(Issue{Type: IssueHighMemory})
	require.True(t, ok)
	assert.Equal(t, "gc-pressure-relief", s.ID)

	_, ok = e.ForIssue(Issue{Type: IssueType("UNKNOWN")})
	assert.False(t, ok)
}

func TestForIssueTieBreaksOnRegistrationOrder(t *testing.T) {
	t.Parallel()

	e := NewStrategyEngine(zap.NewNop())
	require.NoError(t, e.Register(Strategy{
		ID:                  "late-tie",
		TargetIssues:        []IssueType{IssueHighMemory},
		Action:              ActionClearCaches,
		ExpectedImprovement: 20,
	}))

	s, ok := e.ForIssue(Issue{Type: IssueHighMemory})
	require.True(t, ok)
	assert.Equal(t, "gc-pressure-relief", s.ID, "earlier registration wins the tie")
}

func TestSelectDeduplicates(t *testing.T) {
	t.Parallel()

	e := NewStrategyEngine(zap.NewNop())

	issues := []Issue{
		{Type: IssueHighMemory},
		{Type: IssueHighMemory},
		{Type: IssueHighCPU},
		{Type: IssueType("UNKNOWN")},
	}
	selected := e.Select(issues)
	require.Len(t, selected, 2)
	assert.Equal(t, "gc-pressure-relief", selected[0].ID)
	assert.Equal(t, "throttle-background", selected[1].ID)
}

func TestFirstByAction(t *testing.T) {
	t.Parallel()

	e := NewStrategyEngine(zap.NewNop())

	s, ok := e.FirstByAction(ActionTrimStorage)
	require.True(t, ok)
	assert.Equal(t, "trim-telemetry-storage", s.ID)

	_, ok = e.FirstByAction(ActionType("NOT_AN_ACTION"))
	assert.False(t, ok)
}

func TestTargets(t *testing.T) {
	t.Parallel()

	s := Strategy{TargetIssues: []IssueType{IssueHighCPU, IssueLowBattery}}
	assert.True(t, s.Targets(IssueHighCPU))
	assert.True(t, s.Targets(IssueLowBattery))
	assert.False(t, s.Targets(IssueHighDisk))
}
