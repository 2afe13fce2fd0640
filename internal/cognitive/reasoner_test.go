package cognitive

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeuristicClassify_ComplexityAndIntent(t *testing.T) {
	low := heuristicClassify("hi there")
	assert.Equal(t, "low", low.Complexity)
	assert.Equal(t, "social", low.Intent)

	long := heuristicClassify("why does this particular algorithm behave so strangely under load when the input distribution shifts dramatically across several different dimensions at once")
	assert.Equal(t, "high", long.Complexity)
	assert.Equal(t, "analytical", long.Intent)

	search := heuristicClassify("search for the latest news on this topic")
	assert.Equal(t, "search", search.Intent)
}

func TestClassifyAndRoute_NilMuxUsesHeuristic(t *testing.T) {
	r := &PriorReasoner{}
	triage := r.ClassifyAndRoute(context.Background(), "hello", nil)
	assert.Equal(t, "social", triage.Intent)
}

func TestGetThinkingSeed_BoundedAndDeterministic(t *testing.T) {
	triage := Triage{Complexity: "high", Intent: "analytical", Domain: "general", RouteStrategy: "systematic_analytical"}
	seed1 := GetThinkingSeed("why is the sky blue", triage)
	seed2 := GetThinkingSeed("why is the sky blue", triage)

	assert.Equal(t, seed1, seed2)
	assert.LessOrEqual(t, len(seed1), 400)
	assert.Contains(t, seed1, "high complexity")
}
