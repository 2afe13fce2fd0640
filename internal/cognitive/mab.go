package cognitive

import (
	"math"
	"sort"
	"sync"
	"time"
)

// Selector is the MAB strategy selector. It owns the arms map, the golden
// template registry, and the trial ground state behind a single RWMutex,
// since a single performance update can touch all three in one pass (arm
// feedback, golden promotion check, culling check).
type Selector struct {
	mu sync.RWMutex

	arms   map[string]*MABArm
	golden *GoldenRegistry
	trial  *TrialGroundState

	cfg             Config
	rng             *prng
	totalSelections int
}

// NewSelector builds a Selector with a process-seeded PRNG (seed 0 means
// "use current time", anything else is treated as a fixed seed for
// deterministic tests).
func NewSelector(cfg Config, seed int64) *Selector {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Selector{
		arms:   make(map[string]*MABArm),
		golden: newGoldenRegistry(),
		trial:  newTrialGroundState(),
		cfg:    cfg,
		rng:    newPRNG(seed),
	}
}

// getOrCreateArm returns the arm for strategyID, lazily creating it (with
// the source-dependent warm-start) on first reference. Caller must hold
// s.mu (write lock if creating).
func (s *Selector) getOrCreateArm(strategyID string, source LearningSource) *MABArm {
	if arm, ok := s.arms[strategyID]; ok {
		return arm
	}

	arm := &MABArm{StrategyID: strategyID, Source: source}
	switch source {
	case SourceLearnedExplorer:
		arm.SuccessCount = 1
		arm.TotalReward = 0.3
		arm.RewardHistory = []float64{0.3}
		s.trial.enter(strategyID, s.cfg.Trial)
	case SourceManualAddition:
		arm.SuccessCount = 1
		arm.TotalReward = 0.2
		arm.RewardHistory = []float64{0.2}
		s.trial.enter(strategyID, s.cfg.Trial)
	}
	s.arms[strategyID] = arm
	return arm
}

// EnsureArm creates (or returns) the arm for a path without selecting it,
// so callers can pre-register strategies (e.g. in tests) with warm-start
// semantics identical to what select_best_path would produce.
func (s *Selector) EnsureArm(path ReasoningPath) *MABArm {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateArm(path.StrategyID, path.LearningSource)
}

// SelectBestPath checks the golden-template fast path first, then (for 2+
// candidates) runs the auto/explicit MAB algorithm. A
// single candidate is returned unchanged with no PRNG draw. Returns the
// chosen path and the algorithm label to report on the DecisionResult.
func (s *Selector) SelectBestPath(paths []ReasoningPath, algorithm string) (ReasoningPath, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range paths {
		s.getOrCreateArm(p.StrategyID, p.LearningSource)
	}

	if bestPath, tmpl, score, ok := s.golden.bestMatch(paths); ok {
		s.golden.recordMatch(bestPath.StrategyID, score)
		_ = tmpl
		return bestPath, AlgoGoldenTemplate
	}

	if len(paths) == 1 {
		s.finalizeSelection(paths[0].StrategyID)
		return paths[0], s.resolveAlgorithm(algorithm)
	}

	algo := s.resolveAlgorithm(algorithm)
	var chosen ReasoningPath
	switch algo {
	case AlgoUCB:
		chosen = s.selectUCB(paths)
	case AlgoEpsilonGreedy:
		chosen = s.selectEpsilonGreedy(paths)
	default:
		chosen = s.selectThompson(paths)
		algo = AlgoThompson
	}

	s.finalizeSelection(chosen.StrategyID)
	return chosen, algo
}

func (s *Selector) finalizeSelection(strategyID string) {
	s.totalSelections++
	s.trial.decrementBoost(strategyID)
	if arm, ok := s.arms[strategyID]; ok {
		arm.ActivationCount++
		arm.LastUsed = time.Now()
	}
}

// resolveAlgorithm applies the auto-selection thresholds. Caller must hold
// at least the read lock.
func (s *Selector) resolveAlgorithm(requested string) string {
	if requested != "" && requested != "auto" {
		return requested
	}
	if s.totalSelections < 15 {
		return AlgoThompson
	}
	level := s.convergenceLevel()
	switch {
	case level < 0.4:
		return AlgoThompson
	case level < 0.7:
		return AlgoUCB
	default:
		return AlgoEpsilonGreedy
	}
}

// convergenceLevel = max(0, 1 - 3.5*Var(success_rates)) over arms with >=1
// sample.
func (s *Selector) convergenceLevel() float64 {
	var rates []float64
	for _, arm := range s.arms {
		if arm.ActivationCount >= 1 {
			rates = append(rates, arm.SuccessRate())
		}
	}
	if len(rates) < 2 {
		return 0
	}
	v := variance(rates)
	level := 1 - 3.5*v
	if level < 0 {
		return 0
	}
	return level
}

func variance(xs []float64) float64 {
	mean := 0.0
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	sum := 0.0
	for _, x := range xs {
		d := x - mean
		sum += d * d
	}
	return sum / float64(len(xs))
}

func normalizeReward(r float64) float64 {
	return clip((r+1)/2, 0, 1)
}

func rewardBlend(arm *MABArm) float64 {
	if len(arm.RewardHistory) == 0 {
		return 0.5
	}
	sum := 0.0
	for _, r := range arm.RewardHistory {
		sum += r
	}
	return normalizeReward(sum / float64(len(arm.RewardHistory)))
}

func (s *Selector) boost(strategyID string) float64 {
	return s.trial.explorationBoostFactor(strategyID, s.cfg.Trial)
}

// selectThompson draws a Beta sample per arm and picks the highest.
func (s *Selector) selectThompson(paths []ReasoningPath) ReasoningPath {
	var best []tieCandidate
	bestScore := math.Inf(-1)

	for _, p := range paths {
		arm := s.arms[p.StrategyID]
		x := s.rng.betaSample(float64(arm.SuccessCount+1), float64(arm.FailureCount+1))
		if len(arm.RewardHistory) > 0 {
			x = 0.8*x + 0.2*rewardBlend(arm)
		}
		x *= s.boost(p.StrategyID)
		penalty := 0.2 * float64(arm.ActivationCount) / float64(s.totalSelections+1)
		if penalty > 0.1 {
			penalty = 0.1
		}
		x -= penalty

		if x > bestScore {
			bestScore = x
			best = []tieCandidate{{p, x}}
		} else if x == bestScore {
			best = append(best, tieCandidate{p, x})
		}
	}
	return s.breakTies(best)
}

type tieCandidate struct {
	path  ReasoningPath
	score float64
}

// breakTies resolves a stochastic algorithm's ties (Thompson sampling)
// uniformly at random.
func (s *Selector) breakTies(cands []tieCandidate) ReasoningPath {
	if len(cands) == 1 {
		return cands[0].path
	}
	idx := s.rng.Intn(len(cands))
	return cands[idx].path
}

// breakTiesLex resolves a deterministic algorithm's ties (UCB, epsilon-greedy
// exploitation) by lowest strategy ID, so tests stay stable.
func breakTiesLex(cands []tieCandidate) ReasoningPath {
	best := cands[0]
	for _, c := range cands[1:] {
		if c.path.StrategyID < best.path.StrategyID {
			best = c
		}
	}
	return best.path
}

// selectUCB scores each candidate as an exploration-boosted exploitation
// term plus an unboosted confidence term, and returns the highest. Only
// baseValue is multiplied by the boost factor; the confidence term never is.
func (s *Selector) selectUCB(paths []ReasoningPath) ReasoningPath {
	var coldPaths []ReasoningPath
	for _, p := range paths {
		if s.arms[p.StrategyID].ActivationCount == 0 {
			coldPaths = append(coldPaths, p)
		}
	}
	if len(coldPaths) > 0 {
		sort.Slice(coldPaths, func(i, j int) bool {
			return s.boost(coldPaths[i].StrategyID) > s.boost(coldPaths[j].StrategyID)
		})
		return coldPaths[0]
	}

	N := float64(s.totalSelections)
	if N < 1 {
		N = 1
	}

	var best []tieCandidate
	bestScore := math.Inf(-1)
	for _, p := range paths {
		arm := s.arms[p.StrategyID]
		n := float64(arm.ActivationCount)
		baseValue := (0.7*arm.SuccessRate() + 0.3*rewardBlend(arm)) * s.boost(p.StrategyID)
		ucb := baseValue + 1.2*math.Sqrt(2*math.Log(N)/n)

		if ucb > bestScore {
			bestScore = ucb
			best = []tieCandidate{{p, ucb}}
		} else if ucb == bestScore {
			best = append(best, tieCandidate{p, ucb})
		}
	}
	return breakTiesLex(best)
}

// selectEpsilonGreedy explores with probability eps (decaying as selections
// accumulate) and exploits the best-performing arm otherwise.
func (s *Selector) selectEpsilonGreedy(paths []ReasoningPath) ReasoningPath {
	eps := math.Max(0.1, 0.4/(1+0.008*float64(s.totalSelections)))

	var boosted []ReasoningPath
	for _, p := range paths {
		if _, active := s.trial.explorationBoost[p.StrategyID]; active {
			boosted = append(boosted, p)
		}
	}
	if len(boosted) > 0 {
		eps = math.Min(0.6, 1.3*eps)
	}

	if s.rng.Float64() < eps {
		if len(boosted) > 0 && s.rng.Float64() < 0.7 {
			return boosted[s.rng.Intn(len(boosted))]
		}
		return paths[s.rng.Intn(len(paths))]
	}

	var best []tieCandidate
	bestScore := math.Inf(-1)
	for _, p := range paths {
		arm := s.arms[p.StrategyID]
		base := 0.7*arm.SuccessRate() + 0.3*rewardBlend(arm)
		boost := s.boost(p.StrategyID)
		score := base + 0.1*(boost-1)

		if score > bestScore {
			bestScore = score
			best = []tieCandidate{{p, score}}
		} else if score == bestScore {
			best = append(best, tieCandidate{p, score})
		}
	}
	return breakTiesLex(best)
}

// UpdatePathPerformance applies a feedback event: buffer updates, reward
// weighting by source, and the golden-promotion / culling-candidate
// triggers. It is NOT idempotent: calling it twice with identical
// arguments updates counters twice.
func (s *Selector) UpdatePathPerformance(strategyID string, success bool, reward float64, source FeedbackSource) {
	s.mu.Lock()
	defer s.mu.Unlock()

	arm := s.getOrCreateArm(strategyID, SourceStaticTemplate)

	weighted := weightReward(reward, success, source)

	if success {
		arm.SuccessCount++
	} else {
		arm.FailureCount++
	}
	arm.TotalReward += weighted
	arm.LastUsed = time.Now()

	arm.RecentRewards = appendBounded(arm.RecentRewards, weighted, maxRecentRewards, trimRecentRewards)
	arm.RecentResults = appendBounded(arm.RecentResults, success, maxRecentResults, trimRecentResults)
	arm.RewardHistory = appendBounded(arm.RewardHistory, weighted, maxRewardHistory, trimRewardHistory)

	s.golden.maybePromote(arm, s.cfg.Golden)
	s.trial.checkCullingCandidate(arm, s.cfg.Trial)
}

func weightReward(reward float64, success bool, source FeedbackSource) float64 {
	switch source {
	case FeedbackRetrospection:
		w := reward * 0.8
		if success {
			w += 0.1
		} else if w < 0.05 {
			w = 0.05
		}
		return w
	case FeedbackUserFeedback:
		return reward * 1.0
	case FeedbackAutoEvaluation:
		return reward * 0.6
	case FeedbackToolVerification:
		return reward * 0.9
	default:
		return reward
	}
}

// CheckConvergence reports whether per-arm success rates have converged:
// at least MinSamples total activations, at least two activated arms, and a
// success-rate variance below 1.2x the convergence threshold.
func (s *Selector) CheckConvergence() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	sampled := 0
	var rates []float64
	for _, arm := range s.arms {
		total += arm.ActivationCount
		if arm.ActivationCount > 0 {
			sampled++
			rates = append(rates, arm.SuccessRate())
		}
	}
	if total < s.cfg.MAB.MinSamples || sampled < 2 {
		return false
	}
	return variance(rates) < 1.2*s.cfg.MAB.ConvergenceThreshold
}

// RunMaintenance executes a Trial Ground maintenance cycle: cull eligible
// candidates (golden templates are always protected) and trim histories.
func (s *Selector) RunMaintenance() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var culled []string
	for sid, arm := range s.arms {
		if _, isGolden := s.golden.get(sid); isGolden {
			continue
		}
		if s.trial.shouldCull(arm, s.cfg.Trial) {
			s.trial.cull(sid, "culling_criteria_met", s.cfg.Trial)
			delete(s.arms, sid)
			culled = append(culled, sid)
			recordCullingMetric(sid)
		}
	}
	s.trial.maintenance(s.cfg.Trial)
	return culled
}

// ForcePromote manually promotes strategyID to the golden registry,
// bypassing the usual thresholds.
func (s *Selector) ForcePromote(strategyID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	arm, ok := s.arms[strategyID]
	if !ok {
		return false
	}
	s.golden.ForcePromote(arm, s.cfg.Golden)
	return true
}

// ForceRevoke manually removes strategyID from the golden registry.
func (s *Selector) ForceRevoke(strategyID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.golden.ForceRevoke(strategyID)
}

// GoldenTemplateCount reports the current golden registry size.
func (s *Selector) GoldenTemplateCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.golden.count()
}

// ArmSnapshot returns a copy of the arm for strategyID, if any.
func (s *Selector) ArmSnapshot(strategyID string) (MABArm, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	arm, ok := s.arms[strategyID]
	if !ok {
		return MABArm{}, false
	}
	return *arm, true
}

// IsCullingCandidate reports whether strategyID is currently flagged.
func (s *Selector) IsCullingCandidate(strategyID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.trial.cullingCandidates[strategyID]
}

// CullingCandidateCount reports how many arms are currently flagged.
func (s *Selector) CullingCandidateCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.trial.cullingCandidates)
}

// ExplorationBoost reports the current boost factor for strategyID and
// whether it still has an active boost budget.
func (s *Selector) ExplorationBoost(strategyID string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, active := s.trial.explorationBoost[strategyID]
	return s.boost(strategyID), active
}

// AllArms returns a value-copy snapshot of every tracked arm, sorted by
// strategy_id for deterministic reporting.
func (s *Selector) AllArms() []MABArm {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]MABArm, 0, len(s.arms))
	for _, arm := range s.arms {
		out = append(out, *arm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StrategyID < out[j].StrategyID })
	return out
}

// AllGoldenTemplates returns a value-copy snapshot of every promoted
// template.
func (s *Selector) AllGoldenTemplates() []GoldenTemplate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.golden.all()
}

// TrialGroundAnalytics summarizes culling/watch/boost bookkeeping.
func (s *Selector) TrialGroundAnalytics() TrialGroundAnalytics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.trial.analytics()
}

// ComponentPerformance aggregates arm outcomes by LearningSource, i.e. by
// which part of the system originated the strategy (static templates vs.
// learned exploration vs. manual additions vs. evolution).
type ComponentPerformance struct {
	Source           LearningSource `json:"source"`
	ArmCount         int            `json:"arm_count"`
	TotalActivations int            `json:"total_activations"`
	AvgSuccessRate   float64        `json:"avg_success_rate"`
}

// PerComponentPerformance buckets every tracked arm by its LearningSource
// and averages success rate within each bucket.
func (s *Selector) PerComponentPerformance() map[LearningSource]ComponentPerformance {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc := make(map[LearningSource]*ComponentPerformance)
	rateSum := make(map[LearningSource]float64)
	for _, arm := range s.arms {
		source := arm.Source
		if source == "" {
			source = SourceStaticTemplate
		}
		cp, ok := acc[source]
		if !ok {
			cp = &ComponentPerformance{Source: source}
			acc[source] = cp
		}
		cp.ArmCount++
		cp.TotalActivations += arm.ActivationCount
		rateSum[source] += arm.SuccessRate()
	}

	out := make(map[LearningSource]ComponentPerformance, len(acc))
	for source, cp := range acc {
		cp.AvgSuccessRate = rateSum[source] / float64(cp.ArmCount)
		out[source] = *cp
	}
	return out
}
