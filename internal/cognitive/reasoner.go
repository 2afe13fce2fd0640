package cognitive

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/aixgo-dev/aixgo/internal/llm/provider"
	"github.com/aixgo-dev/aixgo/internal/llmmux"
)

// Triage is the Prior Reasoner's query classification.
type Triage struct {
	Complexity    string  `json:"complexity"`
	Domain        string  `json:"domain"`
	Intent        string  `json:"intent"`
	Urgency       string  `json:"urgency"`
	RouteStrategy string  `json:"route_strategy"`
	Confidence    float64 `json:"confidence"`
	Reasoning     string  `json:"reasoning"`
}

// PriorReasoner performs fast query triage and thinking-seed synthesis.
// It tries the LLM first and falls back to a keyword heuristic, grounded
// on agents/classifier.go's structured-request + fallback shape.
type PriorReasoner struct {
	Mux   *llmmux.Multiplexer
	Model string
}

func (r *PriorReasoner) ClassifyAndRoute(ctx context.Context, query string, ctxMap map[string]any) Triage {
	heuristic := heuristicClassify(query)

	if r.Mux == nil {
		return heuristic
	}

	llmTriage, ok := r.classifyWithLLM(ctx, query)
	if !ok {
		return heuristic
	}

	merged := llmTriage
	diff := math.Abs(llmTriage.Confidence - heuristic.Confidence)
	merged.Confidence = 0.7*llmTriage.Confidence + 0.3*heuristic.Confidence
	if diff > 0.3 {
		penalty := math.Min(0.15, 0.2*diff)
		merged.Confidence -= penalty
	}
	merged.Confidence = clip(merged.Confidence, 0, 1)
	return merged
}

func (r *PriorReasoner) classifyWithLLM(ctx context.Context, query string) (Triage, bool) {
	prompt := fmt.Sprintf(`Classify the following query. Respond with strict JSON:
{"complexity": "low|medium|high", "domain": "...", "intent": "...", "urgency": "low|medium|high", "route_strategy": "...", "confidence": 0.0-1.0, "reasoning": "..."}

Query: %s`, query)

	req := provider.CompletionRequest{
		Messages:    []provider.Message{{Role: "user", Content: prompt}},
		Model:       r.Model,
		Temperature: 0.1,
	}
	resp := r.Mux.Complete(ctx, req, "")
	if !resp.Success {
		return Triage{}, false
	}

	var t Triage
	if !decodeJSONLenient(resp.Content, &t) {
		return Triage{}, false
	}
	if t.Complexity == "" || t.Domain == "" || t.RouteStrategy == "" {
		return Triage{}, false
	}
	return t, true
}

// heuristicClassify is the keyword-based fallback used when the LLM path
// is disabled, returns malformed JSON, or omits required fields.
func heuristicClassify(query string) Triage {
	q := strings.ToLower(query)

	complexity := "low"
	if len(strings.Fields(q)) > 20 {
		complexity = "high"
	} else if len(strings.Fields(q)) > 8 {
		complexity = "medium"
	}

	intent := "informational"
	switch {
	case containsAny(q, "你好", "hello", "hi ", "thanks", "谢谢"):
		intent = "social"
	case containsAny(q, "search", "latest", "最新", "find", "look up"):
		intent = "search"
	case containsAny(q, "why", "how", "what", "为什么", "怎么"):
		intent = "analytical"
	}

	return Triage{
		Complexity:    complexity,
		Domain:        "general",
		Intent:        intent,
		Urgency:       "medium",
		RouteStrategy: "systematic_analytical",
		Confidence:    0.5,
		Reasoning:     "heuristic fallback classification",
	}
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// GetThinkingSeed composes a short prose summary from triage fields. It is
// a pure function of its inputs, with no side effects.
func GetThinkingSeed(query string, t Triage) string {
	seed := fmt.Sprintf(
		"Query classified as %s complexity, %s intent in the %s domain (route: %s). Query: %q",
		t.Complexity, t.Intent, t.Domain, t.RouteStrategy, truncate(query, 160),
	)
	return truncate(seed, 400)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
