package optimizer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestExecuteEstimatedAction(t *testing.T) {
	t.Parallel()

	e := NewExecutor(zap.NewNop())
	results := e.Execute([]Strategy{{
		ID:                  "throttle-background",
		Action:              ActionThrottleBackground,
		ExpectedImprovement: 15,
	}})

	require.Len(t, results, 1)
	res := results[0]
	assert.True(t, res.Success)
	assert.Equal(t, "throttle-background", res.StrategyID)
	assert.Equal(t, 15.0, res.Improvement)
	assert.NotEmpty(t, res.Message)
	assert.False(t, res.ExecutedAt.IsZero())
}

func TestExecuteMemoryActionsMeasure(t *testing.T) {
	t.Parallel()

	e := NewExecutor(zap.NewNop())
	results := e.Execute([]Strategy{
		{ID: "gc-pressure-relief", Action: ActionClearCaches},
		{ID: "heap-compaction", Action: ActionCompactHeap},
	})

	require.Len(t, results, 2)
	for _, res := range results {
		assert.True(t, res.Success, res.StrategyID)
		assert.GreaterOrEqual(t, res.Improvement, 0.0)
	}
}

func TestExecuteUnknownAction(t *testing.T) {
	t.Parallel()

	e := NewExecutor(zap.NewNop())
	results := e.Execute([]Strategy{{ID: "odd", Action: ActionType("NO_SUCH_ACTION")}})

	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Message, "no action registered")
}

func TestExecutePanickingActionIsIsolated(t *testing.T) {
	t.Parallel()

	e := NewExecutor(zap.NewNop())
	e.RegisterAction(ActionType("EXPLODE"), func(Strategy) (float64, string, error) {
		panic("boom")
	})

	results := e.Execute([]Strategy{
		{ID: "bad", Action: ActionType("EXPLODE")},
		{ID: "good", Action: ActionThrottleNetwork, ExpectedImprovement: 8},
	})

	require.Len(t, results, 2)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Message, "panicked")
	assert.Zero(t, results[0].Improvement)

	// The panic did not stop the remaining strategies.
	assert.True(t, results[1].Success)
	assert.Equal(t, 8.0, results[1].Improvement)
}

func TestExecuteFailingAction(t *testing.T) {
	t.Parallel()

	e := NewExecutor(zap.NewNop())
	e.RegisterAction(ActionType("FAIL"), func(Strategy) (float64, string, error) {
		return 0, "", errors.New("lever jammed")
	})

	results := e.Execute([]Strategy{{ID: "jammed", Action: ActionType("FAIL")}})
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Equal(t, "lever jammed", results[0].Message)
}

func TestRegisterActionOverrides(t *testing.T) {
	t.Parallel()

	e := NewExecutor(zap.NewNop())
	e.RegisterAction(ActionTrimStorage, func(Strategy) (float64, string, error) {
		return 33, "trimmed for real", nil
	})

	results := e.Execute([]Strategy{{ID: "trim", Action: ActionTrimStorage, ExpectedImprovement: 10}})
	require.Len(t, results, 1)
	assert.Equal(t, 33.0, results[0].Improvement)
	assert.Equal(t, "trimmed for real", results[0].Message)
}
