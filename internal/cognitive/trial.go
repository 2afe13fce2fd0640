package cognitive

import "time"

// culledEntry is one bounded history record of a culled strategy.
type culledEntry struct {
	StrategyID string
	Reason     string
	CulledAt   time.Time
}

// TrialGroundState is the lifecycle manager for learned and manually-added
// strategies: entry, exploration-boost decay, culling-candidate watch, and
// culling execution. It holds no lock of its own; the owning Selector
// serializes all access under its single RWMutex.
type TrialGroundState struct {
	learnedPaths     map[string]learnedMeta
	explorationBoost map[string]int // strategy_id -> remaining rounds
	cullingCandidates map[string]bool
	watchList        map[string]*watchEntry
	culledPaths      []culledEntry // bounded to cfg.Trial.MaxCulledHistory
}

func newTrialGroundState() *TrialGroundState {
	return &TrialGroundState{
		learnedPaths:      make(map[string]learnedMeta),
		explorationBoost:  make(map[string]int),
		cullingCandidates: make(map[string]bool),
		watchList:         make(map[string]*watchEntry),
	}
}

// enter registers a newly-created learned/manual arm for trial tracking and
// activates its exploration boost.
func (t *TrialGroundState) enter(strategyID string, cfg TrialConfig) {
	t.learnedPaths[strategyID] = learnedMeta{TrialStartTime: time.Now()}
	t.explorationBoost[strategyID] = cfg.ExplorationBoostRounds
}

// isLearned reports whether strategyID is tracked as a learned/manual arm.
func (t *TrialGroundState) isLearned(strategyID string) bool {
	_, ok := t.learnedPaths[strategyID]
	return ok
}

// explorationBoostFactor returns the current multiplicative boost for a
// strategy. Learned paths keep a permanent +0.05 once they've entered the
// trial ground, even after their decaying boost budget reaches zero.
func (t *TrialGroundState) explorationBoostFactor(strategyID string, cfg TrialConfig) float64 {
	remaining, active := t.explorationBoost[strategyID]
	_, learned := t.learnedPaths[strategyID]

	factor := 1.0
	if active && remaining > 0 {
		factor += cfg.LearnedPathBonus * (float64(remaining) / float64(cfg.ExplorationBoostRounds))
	}
	if learned {
		factor += 0.05
	}
	return factor
}

// decrementBoost is called once per selection of strategyID; when the
// remaining budget hits zero the entry is removed from the active map
// (the permanent +0.05 bonus still applies via explorationBoostFactor).
func (t *TrialGroundState) decrementBoost(strategyID string) {
	remaining, ok := t.explorationBoost[strategyID]
	if !ok {
		return
	}
	remaining--
	if remaining <= 0 {
		delete(t.explorationBoost, strategyID)
		return
	}
	t.explorationBoost[strategyID] = remaining
}

// trailingFailureCount counts the false entries at the tail of results,
// stopping at the first true. A success anywhere at the tail resets the
// count to 0, so this is the arm's TRUE current failure streak, not a
// monotonic counter.
func trailingFailureCount(results []bool) int {
	n := 0
	for i := len(results) - 1; i >= 0; i-- {
		if results[i] {
			break
		}
		n++
	}
	return n
}

// checkCullingCandidate evaluates an arm after a feedback update and adds
// or removes it from the culling candidate list. ConsecutiveFailures is
// recomputed fresh from RecentResults each call rather than incremented, so
// it always reflects the arm's current failure streak.
func (t *TrialGroundState) checkCullingCandidate(arm *MABArm, cfg TrialConfig) {
	if arm.SampleCount() < cfg.CullingMinSamples {
		return
	}
	rate := arm.SuccessRate()
	streak := trailingFailureCount(arm.RecentResults)

	if rate < cfg.CullingThreshold {
		w, ok := t.watchList[arm.StrategyID]
		if !ok {
			w = &watchEntry{Reason: "success_rate_below_threshold", AddedTS: time.Now()}
			t.watchList[arm.StrategyID] = w
		}
		w.ConsecutiveFailures = streak
		t.cullingCandidates[arm.StrategyID] = true
		return
	}

	if w, ok := t.watchList[arm.StrategyID]; ok {
		w.ConsecutiveFailures = streak
	}

	if rate >= 1.2*cfg.CullingThreshold {
		delete(t.cullingCandidates, arm.StrategyID)
		delete(t.watchList, arm.StrategyID)
	}
}

// shouldCull reports whether a candidate should actually be removed, given
// it is not protected by golden-template status (checked by the caller).
func (t *TrialGroundState) shouldCull(arm *MABArm, cfg TrialConfig) bool {
	if !t.cullingCandidates[arm.StrategyID] {
		return false
	}
	rate := arm.SuccessRate()
	w := t.watchList[arm.StrategyID]

	if meta, learned := t.learnedPaths[arm.StrategyID]; learned {
		trialDuration := time.Since(meta.TrialStartTime).Seconds()
		if trialDuration >= float64(cfg.TrialDurationSeconds) && rate <= 0.5*cfg.CullingThreshold {
			return true
		}
	}

	if w != nil && w.ConsecutiveFailures >= cfg.ConsecutiveFailuresLimit {
		return true
	}

	if w != nil {
		watchDuration := time.Since(w.AddedTS).Seconds()
		if rate < 0.8*cfg.CullingThreshold && watchDuration >= float64(cfg.WatchDurationSeconds) {
			return true
		}
	}

	if arm.ActivationCount > 50 && rate < cfg.CullingThreshold {
		return true
	}

	return false
}

// cull removes all trial-ground bookkeeping for strategyID and records a
// bounded history entry. The caller is responsible for removing the arm
// itself from the Selector's arms map.
func (t *TrialGroundState) cull(strategyID, reason string, cfg TrialConfig) {
	delete(t.cullingCandidates, strategyID)
	delete(t.watchList, strategyID)
	delete(t.learnedPaths, strategyID)
	delete(t.explorationBoost, strategyID)

	t.culledPaths = append(t.culledPaths, culledEntry{
		StrategyID: strategyID,
		Reason:     reason,
		CulledAt:   time.Now(),
	})
	if len(t.culledPaths) > cfg.MaxCulledHistory {
		trim := cfg.MaxCulledHistory / 2
		t.culledPaths = append([]culledEntry{}, t.culledPaths[len(t.culledPaths)-trim:]...)
	}
}

// TrialGroundAnalytics summarizes the lifecycle manager's current state for
// reporting; it is the trial_ground_analytics section of CoreStats.
type TrialGroundAnalytics struct {
	LearnedPaths            int `json:"learned_paths"`
	ActiveExplorationBoosts int `json:"active_exploration_boosts"`
	CullingCandidates       int `json:"culling_candidates"`
	WatchListSize           int `json:"watch_list_size"`
	CulledHistorySize       int `json:"culled_history_size"`
}

func (t *TrialGroundState) analytics() TrialGroundAnalytics {
	return TrialGroundAnalytics{
		LearnedPaths:            len(t.learnedPaths),
		ActiveExplorationBoosts: len(t.explorationBoost),
		CullingCandidates:       len(t.cullingCandidates),
		WatchListSize:           len(t.watchList),
		CulledHistorySize:       len(t.culledPaths),
	}
}

// maintenance cleans up expired boosts (already self-cleaning via
// decrementBoost) and trims the culled history to the configured cap;
// called at the end of Selector.RunMaintenance.
func (t *TrialGroundState) maintenance(cfg TrialConfig) {
	if len(t.culledPaths) > cfg.MaxCulledHistory {
		trim := cfg.MaxCulledHistory / 2
		t.culledPaths = append([]culledEntry{}, t.culledPaths[len(t.culledPaths)-trim:]...)
	}
}
