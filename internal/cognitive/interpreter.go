package cognitive

import (
	"context"
	"fmt"
	"strings"

	"github.com/aixgo-dev/aixgo/internal/llm/provider"
	"github.com/aixgo-dev/aixgo/internal/llmmux"
)

// Interpreter is the Strategy Interpreter / Workflow Translator: it turns a
// chosen ReasoningPath into an executable Plan, using an LLM as the
// primary arbiter and a rule-based fallback ladder when the LLM path is
// unavailable or its output can't be trusted.
type Interpreter struct {
	Mux            *llmmux.Multiplexer
	Model          string
	Tools          ToolRegistry
	FeasibleCutoff float64
}

type interpreterResponse struct {
	NeedsTools       bool     `json:"needs_tools"`
	RecommendedTools []string `json:"recommended_tools"`
	ToolReasoning    string   `json:"tool_reasoning"`
	DirectAnswer     string   `json:"direct_answer"`
	Explanation      string   `json:"explanation"`
}

func (in *Interpreter) Interpret(ctx context.Context, path ReasoningPath, query, seed string) Plan {
	if in.Mux != nil {
		if plan, ok := in.interpretWithLLM(ctx, path, query, seed); ok {
			if visualOK, visual := in.maybeApplyVisual(plan, query); visualOK {
				plan = visual
			}
			return plan
		}
	}
	return in.heuristicFallback(path, query)
}

func (in *Interpreter) interpretWithLLM(ctx context.Context, path ReasoningPath, query, seed string) (Plan, bool) {
	prompt := in.buildPrompt(path, query, seed)
	req := provider.CompletionRequest{
		Messages:    []provider.Message{{Role: "user", Content: prompt}},
		Model:       in.Model,
		Temperature: 0.2,
	}
	resp := in.Mux.Complete(ctx, req, "")
	if !resp.Success || resp.Content == "" {
		return Plan{}, false
	}

	var parsed interpreterResponse
	if !decodeJSONLenient(resp.Content, &parsed) {
		return Plan{}, false
	}

	plan := Plan{
		Thought:    parsed.ToolReasoning,
		Confidence: path.ConfidenceScore,
		Metadata:   map[string]any{"strategy_id": path.StrategyID},
	}
	if plan.Thought == "" {
		plan.Thought = parsed.Explanation
	}

	if !parsed.NeedsTools {
		answer := parsed.DirectAnswer
		if answer == "" {
			return Plan{}, false
		}
		plan.FinalAnswer = answer
		return in.validate(plan, path, query)
	}

	var actions []Action
	for _, tool := range parsed.RecommendedTools {
		if in.Tools != nil && !in.Tools.Has(tool) {
			continue // tool_missing: drop the action and continue
		}
		actions = append(actions, Action{ToolName: tool, ToolInput: buildToolInput(tool, query)})
	}
	if len(actions) == 0 {
		// every recommended tool was missing: convert to direct answer
		answer := parsed.DirectAnswer
		if answer == "" {
			answer = directAnswerFromDescription(path)
		}
		plan.FinalAnswer = answer
		return in.validate(plan, path, query)
	}
	plan.Actions = actions
	return in.validate(plan, path, query)
}

func (in *Interpreter) buildPrompt(path ReasoningPath, query, seed string) string {
	var catalog strings.Builder
	if in.Tools != nil {
		for _, t := range in.Tools.Describe() {
			fmt.Fprintf(&catalog, "- %s: %s\n", t.Name, t.Description)
		}
	}
	return fmt.Sprintf(`You are deciding how to respond to a user query using a chosen reasoning strategy.

Query: %s
Chosen strategy: %s (%s)
Thinking seed: %s

Available tools:
%s

Respond with strict JSON: {"needs_tools": bool, "recommended_tools": ["..."], "tool_reasoning": "...", "direct_answer": "...", "explanation": "..."}`,
		query, path.PathType, path.Description, seed, catalog.String())
}

// validate enforces Plan validity: thought non-empty, exactly one of
// final_answer/actions, every action references a known tool.
func (in *Interpreter) validate(plan Plan, path ReasoningPath, query string) (Plan, bool) {
	if plan.Thought == "" {
		plan.Thought = "Responding to: " + truncate(query, 80)
	}
	hasAnswer := plan.FinalAnswer != ""
	hasActions := len(plan.Actions) > 0
	if hasAnswer == hasActions { // neither or both: invalid
		return Plan{}, false
	}
	for _, a := range plan.Actions {
		if in.Tools != nil && !in.Tools.Has(a.ToolName) {
			return Plan{}, false
		}
	}
	return plan, true
}

// heuristicFallback runs a three-step keyword ladder in place of the LLM
// planner, used when the LLM path is unavailable, returns malformed JSON,
// or empty content.
func (in *Interpreter) heuristicFallback(path ReasoningPath, query string) Plan {
	q := strings.ToLower(strings.TrimSpace(query))

	if answer, ok := curatedDirectAnswer(q); ok {
		return Plan{
			Thought:     "Recognized a conversational pattern; answering directly.",
			FinalAnswer: answer,
			Confidence:  0.8,
			Metadata:    map[string]any{"strategy_id": path.StrategyID, "fallback": true},
		}
	}

	if isInformational(q) && in.Tools != nil && in.Tools.Has("web_search") {
		return Plan{
			Thought:    "Informational query with a search tool available.",
			Actions:    []Action{{ToolName: "web_search", ToolInput: buildToolInput("web_search", query)}},
			Confidence: 0.6,
			Metadata:   map[string]any{"strategy_id": path.StrategyID, "fallback": true},
		}
	}

	return in.specializedFallback(path, query)
}

// specializedFallback implements the per-strategy specialization: each
// family has a favored tool or behavior when the LLM and heuristic
// triggers above can't decide.
func (in *Interpreter) specializedFallback(path ReasoningPath, query string) Plan {
	base := Plan{Confidence: 0.5, Metadata: map[string]any{"strategy_id": path.StrategyID, "fallback": true}}

	hasSearch := in.Tools != nil && in.Tools.Has("web_search")
	hasVerify := in.Tools != nil && in.Tools.Has("idea_verification")

	switch path.StrategyID {
	case "exploratory_breadth":
		if hasSearch {
			base.Thought = "Exploratory strategy: searching broadly."
			base.Actions = []Action{{ToolName: "web_search", ToolInput: buildToolInput("web_search", query)}}
			return base
		}
	case "critical_verification":
		if hasVerify {
			base.Thought = "Critical strategy: verifying the claim before answering."
			base.Actions = []Action{{ToolName: "idea_verification", ToolInput: buildToolInput("idea_verification", query)}}
			return base
		}
	case "systematic_analytical", "analytical_decomposition":
		if hasSearch {
			base.Thought = "Analytical strategy: searching then synthesizing."
			base.Actions = []Action{{ToolName: "web_search", ToolInput: buildToolInput("web_search", query)}}
			return base
		}
	case DetourStrategyID:
		if hasSearch {
			base.Thought = "Detour strategy: lateral search for a fresh angle."
			base.Actions = []Action{{ToolName: "web_search", ToolInput: buildToolInput("web_search", query)}}
			return base
		}
	}

	base.Thought = "Answering directly from the chosen strategy's framing."
	base.FinalAnswer = directAnswerFromDescription(path)
	return base
}

func directAnswerFromDescription(path ReasoningPath) string {
	if path.Description == "" {
		return "Here is my best direct answer to your question."
	}
	return "Based on a " + strings.ReplaceAll(path.PathType, "_", " ") + " approach: " + path.Description
}

var greetingWords = []string{"你好", "hello", "hi", "hey", "早上好", "晚上好"}
var thanksWords = []string{"thanks", "thank you", "谢谢"}
var selfIntroWords = []string{"who are you", "你是谁", "introduce yourself"}
var capabilityWords = []string{"what can you do", "你能做什么", "your capabilities"}

func curatedDirectAnswer(q string) (string, bool) {
	switch {
	case containsAny(q, greetingWords...):
		return "Hello! How can I help you today?", true
	case containsAny(q, thanksWords...):
		return "You're welcome!", true
	case containsAny(q, selfIntroWords...):
		return "I'm an assistant that helps reason through your questions and find the right tools to answer them.", true
	case containsAny(q, capabilityWords...):
		return "I can analyze questions, search for information, and verify ideas to give you well-grounded answers.", true
	}
	return "", false
}

var informationalTriggers = []string{"what", "how", "why", "where", "when", "who", "latest", "info", "最新", "怎么", "为什么"}

func isInformational(q string) bool {
	return containsAny(q, informationalTriggers...)
}
