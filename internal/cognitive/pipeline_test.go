package cognitive

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunPipeline_DeadlineAlreadyExpired(t *testing.T) {
	c := newTestCore()
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	result := c.runPipeline(ctx, "a query", nil)
	assert.True(t, result.Degraded)
	assert.Equal(t, AlgoDeadlineFallback, result.SelectionAlgorithm)
}

func TestVerifyPaths_NegativeRewardOnInfeasible(t *testing.T) {
	c := NewCore(DefaultConfig(), nil, nil, stubVerifier{feasibility: 0.1, reward: 0.6}, nil, NewStaticToolRegistry(), 1)
	paths := c.PathGen.GeneratePaths(context.Background(), "seed", "query", 2)
	require.NotEmpty(t, paths)

	verified := c.verifyPaths(context.Background(), paths, nil)
	for _, v := range verified {
		assert.False(t, v.IsFeasible)
		arm, ok := c.Selector.ArmSnapshot(v.Path.StrategyID)
		require.True(t, ok)
		assert.Equal(t, 1, arm.FailureCount)
	}
}

func TestVerifyPaths_PositiveRewardOnFeasible(t *testing.T) {
	c := NewCore(DefaultConfig(), nil, nil, stubVerifier{feasibility: 0.9, reward: 0.7}, nil, NewStaticToolRegistry(), 1)
	paths := c.PathGen.GeneratePaths(context.Background(), "seed", "query", 2)
	require.NotEmpty(t, paths)

	verified := c.verifyPaths(context.Background(), paths, nil)
	for _, v := range verified {
		assert.True(t, v.IsFeasible)
		arm, ok := c.Selector.ArmSnapshot(v.Path.StrategyID)
		require.True(t, ok)
		assert.Equal(t, 1, arm.SuccessCount)
	}
}
