package cognitive

import (
	"context"
	"errors"
	"sync"

	"github.com/aixgo-dev/aixgo/internal/observability"
)

// Core is the explicit object owning all mutable decision-engine state:
// the MAB selector (which itself owns the golden registry and trial
// ground), the prior reasoner, path generator, verifier, and interpreter.
// Tests construct a fresh Core per test; no process-wide globals exist
// except the optional default instance (SetDefault/Default) below.
type Core struct {
	Reasoner    *PriorReasoner
	PathGen     *PathGenerator
	Verifier    Verifier
	Selector    *Selector
	Interpreter *Interpreter
	Tools       ToolRegistry

	cfg Config

	mu      sync.Mutex
	history []*DecisionResult // bounded to ~100, trim to 50
	round   int
}

// NewCore wires the five-stage pipeline together from a Config. Verifier,
// Tools, and the LLM-backed components may be nil/zero-valued for
// heuristic-only operation (useful in tests and for degraded mode).
func NewCore(cfg Config, reasoner *PriorReasoner, pathGen *PathGenerator, verifier Verifier, interpreter *Interpreter, tools ToolRegistry, seed int64) *Core {
	cfg.applyDefaults()
	SetUUIDInstanceIDs(cfg.PathGenerator.UseUUIDInstanceIDs)
	if verifier == nil {
		verifier = NullVerifier{}
	}
	if reasoner == nil {
		reasoner = &PriorReasoner{}
	}
	if pathGen == nil {
		pathGen = &PathGenerator{}
	}
	if tools == nil {
		tools = NewStaticToolRegistry()
	}
	sel := NewSelector(cfg, seed)
	if interpreter == nil {
		interpreter = &Interpreter{Tools: tools, FeasibleCutoff: cfg.Verifier.FeasibleCutoff}
	}
	return &Core{
		Reasoner:    reasoner,
		PathGen:     pathGen,
		Verifier:    verifier,
		Selector:    sel,
		Interpreter: interpreter,
		Tools:       tools,
		cfg:         cfg,
	}
}

// Decide runs the five-stage pipeline. The returned error is reserved for
// caller-contract violations (empty query); all internal stage failures
// degrade gracefully onto the DecisionResult instead.
func (c *Core) Decide(ctx context.Context, query string, ctxMap map[string]any) (*DecisionResult, error) {
	if query == "" {
		return nil, errors.New("cognitive: query must not be empty")
	}

	ctx, span := observability.StartSpanWithOtel(ctx, "cognitive.decide")
	defer span.End()

	result := c.runPipeline(ctx, query, ctxMap)

	c.mu.Lock()
	c.round++
	result.Round = c.round
	c.mu.Unlock()

	return result, nil
}

// Plan turns a DecisionResult's chosen path into an executable Plan via
// the Strategy Interpreter.
func (c *Core) Plan(ctx context.Context, query string, decision *DecisionResult) (*Plan, error) {
	if decision == nil {
		return nil, errors.New("cognitive: decision must not be nil")
	}
	ctx, span := observability.StartSpanWithOtel(ctx, "cognitive.plan")
	defer span.End()

	plan := c.Interpreter.Interpret(ctx, decision.ChosenPath, query, decision.ThinkingSeed)
	return &plan, nil
}

// RecordOutcome applies post-hoc feedback to the selector, outside the
// pipeline (e.g. once the tool executor and the user have responded).
func (c *Core) RecordOutcome(strategyID string, success bool, reward float64, source FeedbackSource) {
	c.Selector.UpdatePathPerformance(strategyID, success, reward, source)
}

// recordDecision appends to the bounded decision history, trimming to half
// on overflow.
func (c *Core) recordDecision(result *DecisionResult) {
	const maxHistory = 100
	const trimTo = 50

	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(c.history, result)
	if len(c.history) > maxHistory {
		c.history = append([]*DecisionResult{}, c.history[len(c.history)-trimTo:]...)
	}
}

// CoreStats is the full stats snapshot a caller (operator dashboard, health
// endpoint) can pull from a running Core: round count, per-origin arm
// performance, every tracked arm and golden template, and trial ground
// lifecycle counters.
type CoreStats struct {
	TotalRounds             int                                    `json:"total_rounds"`
	PerComponentPerformance map[LearningSource]ComponentPerformance `json:"per_component_performance"`
	Arms                    []MABArm                               `json:"arms"`
	GoldenTemplates         []GoldenTemplate                       `json:"golden_templates"`
	TrialGroundAnalytics    TrialGroundAnalytics                   `json:"trial_ground_analytics"`
}

// Stats returns a snapshot of process-wide pipeline statistics.
func (c *Core) Stats() CoreStats {
	c.mu.Lock()
	rounds := c.round
	c.mu.Unlock()

	return CoreStats{
		TotalRounds:             rounds,
		PerComponentPerformance: c.Selector.PerComponentPerformance(),
		Arms:                    c.Selector.AllArms(),
		GoldenTemplates:         c.Selector.AllGoldenTemplates(),
		TrialGroundAnalytics:    c.Selector.TrialGroundAnalytics(),
	}
}

// defaultCore is the one permitted process-wide convenience instance; it is
// nil until SetDefault is called, and callers are never required to use it.
var (
	defaultCoreMu sync.RWMutex
	defaultCore   *Core
)

// SetDefault installs the process-wide default Core.
func SetDefault(c *Core) {
	defaultCoreMu.Lock()
	defer defaultCoreMu.Unlock()
	defaultCore = c
}

// Default returns the process-wide default Core, or nil if none was set.
func Default() *Core {
	defaultCoreMu.RLock()
	defer defaultCoreMu.RUnlock()
	return defaultCore
}
