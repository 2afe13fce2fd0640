package cognitive

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aixgo-dev/aixgo/internal/observability"
)

// runPipeline executes the five decision stages against a query and
// returns a well-formed DecisionResult. It never returns a Go error for
// internal stage failures; every recognized ErrorKind degrades gracefully
// into a fallback result instead.
func (c *Core) runPipeline(ctx context.Context, query string, ctxMap map[string]any) *DecisionResult {
	timings := make(map[string]time.Duration)
	result := &DecisionResult{StageTimings: timings}

	if deadline, ok := ctx.Deadline(); ok && time.Now().After(deadline) {
		return c.deadlineFallback(result)
	}

	// Stage 1: seed.
	t0 := time.Now()
	triage := c.Reasoner.ClassifyAndRoute(ctx, query, ctxMap)
	seed := GetThinkingSeed(query, triage)
	result.ThinkingSeed = seed
	timings["seed"] = time.Since(t0)

	if ctx.Err() != nil {
		return c.deadlineFallback(result)
	}

	// Stage 2: seed verification.
	t1 := time.Now()
	seedVerification := safeVerify(ctx, c.Verifier, seed, ctxMap)
	result.SeedVerification = seedVerification
	timings["seed_verification"] = time.Since(t1)

	// Stage 3: path generation.
	t2 := time.Now()
	paths := c.PathGen.GeneratePaths(ctx, seed, query, c.cfg.MaxPaths)
	if len(paths) == 0 {
		paths = []ReasoningPath{synthesizeDetour()}
	}
	result.AvailablePaths = paths
	timings["path_generation"] = time.Since(t2)

	if ctx.Err() != nil {
		return c.deadlineFallback(result)
	}

	// Stage 4: per-path verification + online learning.
	t3 := time.Now()
	verified := c.verifyPaths(ctx, paths, ctxMap)
	result.VerifiedPaths = verified
	timings["verification"] = time.Since(t3)

	// Stage 5: final selection.
	t4 := time.Now()
	var feasible []ReasoningPath
	for _, vp := range verified {
		if vp.IsFeasible {
			feasible = append(feasible, vp.Path)
		}
	}

	if len(feasible) == 0 {
		detour := synthesizeDetour()
		result.ChosenPath = detour
		result.SelectionAlgorithm = AlgoIntelligentDetour
		result.AllPathsInfeasible = true
		timings["selection"] = time.Since(t4)
		recordDecisionMetric(AlgoIntelligentDetour)
		recordStageTimings(timings)
		c.recordDecision(result)
		return result
	}

	chosen, algo := c.Selector.SelectBestPath(feasible, "auto")
	result.ChosenPath = chosen
	result.SelectionAlgorithm = algo
	timings["selection"] = time.Since(t4)

	recordDecisionMetric(algo)
	recordSelectionMetric(chosen.StrategyID)
	setGoldenTemplateGauge(c.Selector.GoldenTemplateCount())
	recordStageTimings(timings)

	c.recordDecision(result)
	return result
}

// verifyPaths fans the per-path verification calls out with a bounded
// worker pool (errgroup); concurrency across paths is safe as long as stage
// ordering within one decision is respected.
func (c *Core) verifyPaths(ctx context.Context, paths []ReasoningPath, ctxMap map[string]any) []VerifiedPath {
	out := make([]VerifiedPath, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	var mu sync.Mutex
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			res := safeVerify(gctx, c.Verifier, p.Description, ctxMap)
			isFeasible := res.Feasibility > c.cfg.Verifier.FeasibleCutoff && !res.Fallback

			mu.Lock()
			out[i] = VerifiedPath{Path: p, Feasibility: res.Feasibility, Reward: res.Reward, IsFeasible: isFeasible}
			mu.Unlock()

			if isFeasible {
				c.Selector.UpdatePathPerformance(p.StrategyID, true, res.Reward, FeedbackToolVerification)
			} else {
				negReward := res.Reward
				if negReward > 0 {
					negReward = -negReward
				}
				c.Selector.UpdatePathPerformance(p.StrategyID, false, negReward, FeedbackToolVerification)
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (c *Core) deadlineFallback(result *DecisionResult) *DecisionResult {
	_, span := observability.StartSpanWithOtel(context.Background(), "cognitive.deadline_fallback")
	defer span.End()

	if len(result.AvailablePaths) > 0 {
		result.ChosenPath = result.AvailablePaths[0]
	} else {
		result.ChosenPath = synthesizeDetour()
	}
	result.SelectionAlgorithm = AlgoDeadlineFallback
	result.Degraded = true
	return result
}
