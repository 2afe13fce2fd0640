package cognitive

import (
	"context"
	"encoding/json"

	"github.com/aixgo-dev/aixgo/internal/llm/provider"
	"github.com/aixgo-dev/aixgo/internal/llmmux"
)

// VerificationResult is the Idea Verifier's answer to a single proposition.
type VerificationResult struct {
	Feasibility float64        `json:"feasibility_score"`
	Reward      float64        `json:"reward_score"`
	Fallback    bool           `json:"fallback"`
	Details     map[string]any `json:"details,omitempty"`
}

// fallbackVerification is what the core substitutes whenever a verifier
// fails; it is never allowed to throw into the pipeline.
var fallbackVerification = VerificationResult{Feasibility: 0.5, Reward: 0.0, Fallback: true}

// Verifier is the external contract the core consumes: given a text
// proposition and context, return a feasibility score and reward signal.
// Implementations must never return an error the pipeline can't absorb;
// Core wraps every call so a failing Verifier degrades to the fixed
// fallback instead of aborting a decision.
type Verifier interface {
	Verify(ctx context.Context, text string, context_ map[string]any) (VerificationResult, error)
}

// safeVerify calls v.Verify and converts any error, panic-free, into the
// mandated fallback result.
func safeVerify(ctx context.Context, v Verifier, text string, ctxMap map[string]any) VerificationResult {
	if v == nil {
		return fallbackVerification
	}
	res, err := v.Verify(ctx, text, ctxMap)
	if err != nil {
		return fallbackVerification
	}
	return res
}

// NullVerifier always returns the fixed fallback result; useful for tests
// and as a safe zero-configuration default.
type NullVerifier struct{}

func (NullVerifier) Verify(ctx context.Context, text string, ctxMap map[string]any) (VerificationResult, error) {
	return fallbackVerification, nil
}

// LLMVerifier calls the LLM Multiplexer with a structured-JSON prompt
// asking it to judge feasibility and reward for a text proposition.
type LLMVerifier struct {
	Mux   *llmmux.Multiplexer
	Model string
}

var verifierSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "feasibility_score": {"type": "number"},
    "reward_score": {"type": "number"},
    "reasoning": {"type": "string"}
  },
  "required": ["feasibility_score", "reward_score"]
}`)

func (v *LLMVerifier) Verify(ctx context.Context, text string, ctxMap map[string]any) (VerificationResult, error) {
	prompt := "Evaluate the feasibility and expected reward of the following idea. " +
		"Respond with strict JSON {feasibility_score in [0,1], reward_score in [-1,1]}.\n\nIdea: " + text

	req := provider.CompletionRequest{
		Messages:    []provider.Message{{Role: "user", Content: prompt}},
		Model:       v.Model,
		Temperature: 0.1,
	}
	resp := v.Mux.Complete(ctx, req, "")
	if !resp.Success {
		return fallbackVerification, nil
	}

	var parsed struct {
		Feasibility float64 `json:"feasibility_score"`
		Reward      float64 `json:"reward_score"`
	}
	if !decodeJSONLenient(resp.Content, &parsed) {
		return fallbackVerification, nil
	}
	if parsed.Feasibility < 0 || parsed.Feasibility > 1 {
		return fallbackVerification, nil
	}
	return VerificationResult{Feasibility: parsed.Feasibility, Reward: parsed.Reward}, nil
}
