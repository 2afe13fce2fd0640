package cognitive

import "strings"

// visualDecision is the outcome of the visual-intelligence check: whether
// to include a visual, and how.
type visualDecision struct {
	ShouldGenerate bool
	VisualType     string
	Style          string
	Timing         string
}

var visualOpportunityWords = []string{"draw", "image", "picture", "illustrate", "visualize", "diagram", "画", "图"}
var visualEmotionalWords = []string{"feel", "excited", "love", "beautiful", "心情"}
var visualRiskWords = []string{"urgent", "now", "quick", "simple", "紧急"}

// evaluateVisual scores opportunity and risk for including an
// image-generation step. This is the one place tool selection needs
// nontrivial local reasoning rather than a direct LLM/heuristic pass-through.
func evaluateVisual(query string) visualDecision {
	q := strings.ToLower(query)

	opportunity := 0.0
	if containsAny(q, visualOpportunityWords...) {
		opportunity += 0.5
	}
	if containsAny(q, "learn", "explain", "教") {
		opportunity += 0.2
	}
	if containsAny(q, "creative", "imagine", "创意") {
		opportunity += 0.2
	}
	if containsAny(q, visualEmotionalWords...) {
		opportunity += 0.1
	}

	risk := 0.0
	if containsAny(q, visualRiskWords...) {
		risk += 0.3
	}
	if len(strings.Fields(q)) > 40 {
		risk += 0.2 // complex query, visual may distract
	}

	combined := opportunity - risk
	threshold := 0.3

	decision := visualDecision{ShouldGenerate: combined >= threshold}
	if decision.ShouldGenerate {
		decision.VisualType = "illustration"
		decision.Style = "clean, informative"
		decision.Timing = "after_explanation"
		if containsAny(q, "creative", "imagine", "创意") {
			decision.Style = "expressive"
		}
	}
	return decision
}

// maybeApplyVisual runs the visual-intelligence decision when an
// image-generation tool was recommended, adjusting the plan's actions to
// match the decision (drop the action if the combined score doesn't clear
// the threshold).
func (in *Interpreter) maybeApplyVisual(plan Plan, query string) (bool, Plan) {
	hasImageGen := false
	for _, a := range plan.Actions {
		if a.ToolName == "image_generation" {
			hasImageGen = true
			break
		}
	}
	if !hasImageGen {
		return false, plan
	}

	decision := evaluateVisual(query)
	if plan.Metadata == nil {
		plan.Metadata = map[string]any{}
	}
	plan.Metadata["visual_decision"] = decision

	if decision.ShouldGenerate {
		return true, plan
	}

	filtered := plan.Actions[:0]
	for _, a := range plan.Actions {
		if a.ToolName != "image_generation" {
			filtered = append(filtered, a)
		}
	}
	plan.Actions = filtered
	if len(plan.Actions) == 0 {
		plan.FinalAnswer = "Here's my answer without an accompanying image."
	}
	return true, plan
}
