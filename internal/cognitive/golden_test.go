package cognitive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaybePromote_RequiresAllThreeCriteria(t *testing.T) {
	cfg := DefaultConfig().Golden
	g := newGoldenRegistry()

	arm := &MABArm{StrategyID: "x", SuccessCount: 18, FailureCount: 2, ActivationCount: 20}
	// no recent results yet: stability window can't hold.
	g.maybePromote(arm, cfg)
	_, ok := g.get("x")
	assert.False(t, ok, "should not promote without a stable recent-results window")

	for i := 0; i < cfg.StabilityWindow; i++ {
		arm.RecentResults = append(arm.RecentResults, true)
	}
	g.maybePromote(arm, cfg)
	_, ok = g.get("x")
	assert.True(t, ok, "should promote once rate, samples, and stability all clear")
}

func TestQualityScore_WeightedFormula(t *testing.T) {
	tmpl := &GoldenTemplate{
		SuccessRate:     0.9,
		UsageAsTemplate: 5,
		StabilityScore:  0.8,
		LastUpdated:     time.Now(),
	}
	q := qualityScore(tmpl)
	expected := 0.4*0.9 + 0.3*0.5 + 0.2*0.8 + 0.1*1.0
	assert.InDelta(t, expected, q, 1e-9)
}

func TestEvictWorst_OnOverflow(t *testing.T) {
	cfg := DefaultConfig().Golden
	cfg.MaxTemplates = 2
	g := newGoldenRegistry()

	low := &MABArm{StrategyID: "low", SuccessCount: 18, FailureCount: 2, ActivationCount: 20}
	mid := &MABArm{StrategyID: "mid", SuccessCount: 19, FailureCount: 1, ActivationCount: 20}
	high := &MABArm{StrategyID: "high", SuccessCount: 20, FailureCount: 0, ActivationCount: 20}
	for _, arm := range []*MABArm{low, mid, high} {
		for i := 0; i < cfg.StabilityWindow; i++ {
			arm.RecentResults = append(arm.RecentResults, true)
		}
	}

	g.promote(low, cfg)
	g.promote(mid, cfg)
	require.Equal(t, 2, g.count())
	g.promote(high, cfg)
	assert.Equal(t, 2, g.count())

	_, lowStillThere := g.get("low")
	assert.False(t, lowStillThere, "lowest quality template should be evicted")
}

func TestRecencyScore_Decay(t *testing.T) {
	assert.Equal(t, 1.0, recencyScore(time.Now()))
	assert.Equal(t, 0.0, recencyScore(time.Now().Add(-8*24*time.Hour)))
	mid := recencyScore(time.Now().Add(-4 * 24 * time.Hour))
	assert.Greater(t, mid, 0.0)
	assert.Less(t, mid, 1.0)
}

func TestBestMatch_ThresholdGating(t *testing.T) {
	g := newGoldenRegistry()
	tmpl := &GoldenTemplate{StrategyID: "systematic_analytical", SuccessRate: 0.95}
	g.templates["systematic_analytical"] = tmpl

	matching := pathFor("systematic_analytical")
	matching.PathType = "systematic_analytical"
	matching.Description = "systematic_analytical"

	_, _, score, ok := g.bestMatch([]ReasoningPath{matching})
	require.True(t, ok, "exact strategy_id + path_type match should clear the 0.85 threshold, got score %f", score)

	nonMatching := pathFor("creative_exploratory")
	nonMatching.PathType = "creative_exploratory"
	nonMatching.Description = "unrelated text"
	_, _, _, ok2 := g.bestMatch([]ReasoningPath{nonMatching})
	assert.False(t, ok2)
}

func TestRecordMatch_IncrementsUsageAndBoundsHistory(t *testing.T) {
	g := newGoldenRegistry()
	g.templates["x"] = &GoldenTemplate{StrategyID: "x"}

	for i := 0; i < 250; i++ {
		g.recordMatch("x", 0.9)
	}
	assert.Equal(t, 250, g.templates["x"].UsageAsTemplate)
	assert.LessOrEqual(t, len(g.matchHistory), 200)
}

func TestForcePromoteAndForceRevoke(t *testing.T) {
	g := newGoldenRegistry()
	cfg := DefaultConfig().Golden
	arm := &MABArm{StrategyID: "forced", SuccessCount: 1}

	g.ForcePromote(arm, cfg)
	_, ok := g.get("forced")
	require.True(t, ok)

	g.ForceRevoke("forced")
	_, ok = g.get("forced")
	assert.False(t, ok)
}
