package cognitive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrialGroundState_EnterAndBoost(t *testing.T) {
	cfg := DefaultConfig().Trial
	ts := newTrialGroundState()

	ts.enter("learned_a", cfg)
	assert.True(t, ts.isLearned("learned_a"))

	factor := ts.explorationBoostFactor("learned_a", cfg)
	expected := 1.0 + cfg.LearnedPathBonus + 0.05
	assert.InDelta(t, expected, factor, 1e-9)

	for i := 0; i < cfg.ExplorationBoostRounds; i++ {
		ts.decrementBoost("learned_a")
	}
	_, active := ts.explorationBoost["learned_a"]
	assert.False(t, active)
	assert.InDelta(t, 1.05, ts.explorationBoostFactor("learned_a", cfg), 1e-9)
}

func TestShouldCull_FourConditions(t *testing.T) {
	cfg := DefaultConfig().Trial
	cfg.TrialDurationSeconds = 0
	cfg.WatchDurationSeconds = 0

	// condition: learned path past trial duration with low rate.
	t.Run("learned_trial_expired_low_rate", func(t *testing.T) {
		ts := newTrialGroundState()
		ts.learnedPaths["a"] = learnedMeta{TrialStartTime: time.Now().Add(-time.Hour)}
		ts.cullingCandidates["a"] = true
		arm := &MABArm{StrategyID: "a", SuccessCount: 1, FailureCount: 99}
		assert.True(t, ts.shouldCull(arm, cfg))
	})

	t.Run("consecutive_failures_limit", func(t *testing.T) {
		ts := newTrialGroundState()
		ts.cullingCandidates["b"] = true
		ts.watchList["b"] = &watchEntry{ConsecutiveFailures: cfg.ConsecutiveFailuresLimit, AddedTS: time.Now()}
		arm := &MABArm{StrategyID: "b", SuccessCount: 5, FailureCount: 5}
		assert.True(t, ts.shouldCull(arm, cfg))
	})

	t.Run("watch_duration_expired_moderate_low_rate", func(t *testing.T) {
		ts := newTrialGroundState()
		ts.cullingCandidates["c"] = true
		ts.watchList["c"] = &watchEntry{ConsecutiveFailures: 1, AddedTS: time.Now().Add(-time.Hour)}
		arm := &MABArm{StrategyID: "c", SuccessCount: 1, FailureCount: 9}
		assert.True(t, ts.shouldCull(arm, cfg))
	})

	t.Run("high_activation_low_rate", func(t *testing.T) {
		ts := newTrialGroundState()
		ts.cullingCandidates["d"] = true
		arm := &MABArm{StrategyID: "d", SuccessCount: 1, FailureCount: 99, ActivationCount: 51}
		assert.True(t, ts.shouldCull(arm, cfg))
	})

	t.Run("not_a_candidate_never_culled", func(t *testing.T) {
		ts := newTrialGroundState()
		arm := &MABArm{StrategyID: "e", SuccessCount: 1, FailureCount: 99, ActivationCount: 51}
		assert.False(t, ts.shouldCull(arm, cfg))
	})
}

func TestCheckCullingCandidate_RecoveryAboveThreshold(t *testing.T) {
	cfg := DefaultConfig().Trial
	cfg.CullingMinSamples = 1
	ts := newTrialGroundState()

	arm := &MABArm{StrategyID: "recovering", SuccessCount: 0, FailureCount: 10}
	ts.checkCullingCandidate(arm, cfg)
	assert.True(t, ts.cullingCandidates["recovering"])

	arm.SuccessCount = 10
	arm.FailureCount = 0
	ts.checkCullingCandidate(arm, cfg)
	assert.False(t, ts.cullingCandidates["recovering"], "rate above 1.2x threshold should clear candidacy")
	_, stillWatched := ts.watchList["recovering"]
	assert.False(t, stillWatched)
}

func TestCheckCullingCandidate_ConsecutiveFailuresResetOnSuccess(t *testing.T) {
	cfg := DefaultConfig().Trial
	cfg.CullingMinSamples = 1

	ts := newTrialGroundState()
	arm := &MABArm{
		StrategyID:   "flaky",
		SuccessCount: 2,
		FailureCount: 8,
		RecentResults: []bool{
			true, false, false, false,
		},
	}

	ts.checkCullingCandidate(arm, cfg)
	require.Contains(t, ts.watchList, "flaky")
	assert.Equal(t, 3, ts.watchList["flaky"].ConsecutiveFailures, "three trailing failures since the last success")

	arm.RecentResults = append(arm.RecentResults, true)
	ts.checkCullingCandidate(arm, cfg)
	assert.Equal(t, 0, ts.watchList["flaky"].ConsecutiveFailures, "a success resets the streak even though the arm is still below threshold")

	arm.RecentResults = append(arm.RecentResults, false, false)
	ts.checkCullingCandidate(arm, cfg)
	assert.Equal(t, 2, ts.watchList["flaky"].ConsecutiveFailures, "streak counts from the most recent success, not cumulative failures ever seen")
}

func TestCull_BoundedHistoryAndBookkeepingCleared(t *testing.T) {
	cfg := DefaultConfig().Trial
	cfg.MaxCulledHistory = 4
	ts := newTrialGroundState()
	ts.cullingCandidates["x"] = true
	ts.watchList["x"] = &watchEntry{}
	ts.learnedPaths["x"] = learnedMeta{}
	ts.explorationBoost["x"] = 3

	for i := 0; i < 10; i++ {
		ts.cull("x", "test", cfg)
	}
	require.LessOrEqual(t, len(ts.culledPaths), cfg.MaxCulledHistory)
	assert.False(t, ts.cullingCandidates["x"])
	_, learned := ts.learnedPaths["x"]
	assert.False(t, learned)
}
