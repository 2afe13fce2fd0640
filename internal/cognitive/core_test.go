package cognitive

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubVerifier deems every proposition feasible with a fixed reward, for
// exercising the pipeline's happy path without needing a real LLM.
type stubVerifier struct {
	feasibility float64
	reward      float64
}

func (s stubVerifier) Verify(ctx context.Context, text string, ctxMap map[string]any) (VerificationResult, error) {
	return VerificationResult{Feasibility: s.feasibility, Reward: s.reward}, nil
}

func TestDecide_EmptyQueryIsContractError(t *testing.T) {
	c := NewCore(DefaultConfig(), nil, nil, nil, nil, nil, 1)
	_, err := c.Decide(context.Background(), "", nil)
	assert.Error(t, err)
}

func TestDecide_AllPathsInfeasibleProducesIntelligentDetour(t *testing.T) {
	c := NewCore(DefaultConfig(), nil, nil, NullVerifier{}, nil, NewStaticToolRegistry(), 1)

	result, err := c.Decide(context.Background(), "tell me something", nil)
	require.NoError(t, err)

	assert.True(t, result.AllPathsInfeasible)
	assert.Equal(t, AlgoIntelligentDetour, result.SelectionAlgorithm)
	assert.Equal(t, DetourStrategyID, result.ChosenPath.StrategyID)
}

func TestDecide_FeasiblePathsProduceMABSelection(t *testing.T) {
	c := NewCore(DefaultConfig(), nil, nil, stubVerifier{feasibility: 0.9, reward: 0.8}, nil, NewStaticToolRegistry(), 1)

	result, err := c.Decide(context.Background(), "explain how this works", nil)
	require.NoError(t, err)

	assert.False(t, result.AllPathsInfeasible)
	assert.NotEmpty(t, result.ChosenPath.StrategyID)
	assert.Contains(t, []string{AlgoThompson, AlgoUCB, AlgoEpsilonGreedy, AlgoGoldenTemplate}, result.SelectionAlgorithm)
	assert.NotZero(t, result.Round)
}

func TestDecide_GreetingProducesDirectAnswerPlan(t *testing.T) {
	c := NewCore(DefaultConfig(), nil, nil, stubVerifier{feasibility: 0.9, reward: 0.8}, nil, NewStaticToolRegistry(), 1)

	result, err := c.Decide(context.Background(), "Hello there!", nil)
	require.NoError(t, err)

	plan, err := c.Plan(context.Background(), "Hello there!", result)
	require.NoError(t, err)
	assert.True(t, plan.IsDirectAnswer())
}

func TestDecide_SearchQueryProducesWebSearchAction(t *testing.T) {
	c := NewCore(DefaultConfig(), nil, nil, stubVerifier{feasibility: 0.9, reward: 0.8}, nil, NewStaticToolRegistry(), 1)

	query := "What is the latest Rust release?"
	result, err := c.Decide(context.Background(), query, nil)
	require.NoError(t, err)

	plan, err := c.Plan(context.Background(), query, result)
	require.NoError(t, err)

	require.Len(t, plan.Actions, 1)
	assert.Equal(t, "web_search", plan.Actions[0].ToolName)
	assert.Contains(t, plan.Actions[0].ToolInput["query"], "Rust")
}

func TestDecide_GoldenFastPathSkipsMABButRecordsUsage(t *testing.T) {
	c := NewCore(DefaultConfig(), nil, nil, stubVerifier{feasibility: 0.9, reward: 0.8}, nil, NewStaticToolRegistry(), 1)

	// Promote every vocabulary strategy_id to golden so whichever path the
	// generator produces, the fast path fires deterministically.
	for _, pt := range pathTypeVocabulary {
		sid := normalize(pt)
		arm := c.Selector.EnsureArm(ReasoningPath{StrategyID: sid})
		arm.SuccessCount = 25
		arm.ActivationCount = 25
		for i := 0; i < 10; i++ {
			arm.RecentResults = append(arm.RecentResults, true)
		}
		c.Selector.golden.maybePromote(arm, c.cfg.Golden)
	}
	require.Equal(t, len(pathTypeVocabulary), c.Selector.GoldenTemplateCount())

	result, err := c.Decide(context.Background(), "explain something", nil)
	require.NoError(t, err)

	assert.Equal(t, AlgoGoldenTemplate, result.SelectionAlgorithm)
	tmpl, ok := c.Selector.golden.get(result.ChosenPath.StrategyID)
	require.True(t, ok)
	assert.Equal(t, 1, tmpl.UsageAsTemplate)
}

func TestRecordOutcome_UpdatesSelectorDirectly(t *testing.T) {
	c := newTestCore()
	c.Selector.EnsureArm(pathFor("strategy_out"))

	c.RecordOutcome("strategy_out", true, 0.9, FeedbackUserFeedback)
	arm, ok := c.Selector.ArmSnapshot("strategy_out")
	require.True(t, ok)
	assert.Equal(t, 1, arm.SuccessCount)
}

func TestStats_ReflectsRoundsAndGoldenCount(t *testing.T) {
	c := NewCore(DefaultConfig(), nil, nil, stubVerifier{feasibility: 0.9, reward: 0.8}, nil, NewStaticToolRegistry(), 1)
	_, err := c.Decide(context.Background(), "question one", nil)
	require.NoError(t, err)
	_, err = c.Decide(context.Background(), "question two", nil)
	require.NoError(t, err)

	stats := c.Stats()
	assert.Equal(t, 2, stats.TotalRounds)
	assert.NotEmpty(t, stats.Arms)
	assert.NotEmpty(t, stats.PerComponentPerformance)
	assert.GreaterOrEqual(t, stats.TrialGroundAnalytics.LearnedPaths, 0)
}

func TestDefaultCore_SetAndGet(t *testing.T) {
	c := newTestCore()
	SetDefault(c)
	assert.Same(t, c, Default())
	SetDefault(nil)
	assert.Nil(t, Default())
}
