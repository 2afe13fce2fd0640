package cognitive

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// historyEntry formats a promotion/revocation history record with a unique
// ID, so two "promoted" entries for the same template are distinguishable.
func historyEntry(action string) string {
	return action + ":" + uuid.NewString()
}

// goldenMatchRecord is one bounded fast-path match history entry.
type goldenMatchRecord struct {
	StrategyID string
	Score      float64
	MatchedAt  time.Time
}

// GoldenRegistry holds promoted arm snapshots keyed by strategy_id. It
// holds no lock of its own; the owning Selector serializes all access.
type GoldenRegistry struct {
	templates    map[string]*GoldenTemplate
	matchHistory []goldenMatchRecord
}

func newGoldenRegistry() *GoldenRegistry {
	return &GoldenRegistry{templates: make(map[string]*GoldenTemplate)}
}

func (g *GoldenRegistry) get(strategyID string) (*GoldenTemplate, bool) {
	t, ok := g.templates[strategyID]
	return t, ok
}

func (g *GoldenRegistry) count() int {
	return len(g.templates)
}

// all returns a value-copy snapshot of every promoted template, sorted by
// strategy_id for deterministic reporting.
func (g *GoldenRegistry) all() []GoldenTemplate {
	out := make([]GoldenTemplate, 0, len(g.templates))
	for _, t := range g.templates {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StrategyID < out[j].StrategyID })
	return out
}

// maybePromote checks all three promotion criteria and, if met, stores or
// refreshes the snapshot for arm.StrategyID (no duplicate entries: an
// already-promoted arm's snapshot is simply updated).
func (g *GoldenRegistry) maybePromote(arm *MABArm, cfg GoldenConfig) {
	rate := arm.SuccessRate()
	if rate < cfg.SuccessRateThreshold {
		return
	}
	if arm.SampleCount() < cfg.MinSamplesRequired {
		return
	}
	if !g.stabilityHolds(arm, cfg, rate) {
		return
	}

	if existing, ok := g.templates[arm.StrategyID]; ok {
		existing.SuccessRate = rate
		existing.ActivationCount = arm.ActivationCount
		existing.StabilityScore = stabilityScore(arm, cfg)
		existing.LastUpdated = time.Now()
		return
	}

	g.promote(arm, cfg)
}

func (g *GoldenRegistry) stabilityHolds(arm *MABArm, cfg GoldenConfig, overallRate float64) bool {
	window := cfg.StabilityWindow
	if len(arm.RecentResults) < window {
		window = len(arm.RecentResults)
	}
	if window == 0 {
		return false
	}
	recent := arm.RecentResults[len(arm.RecentResults)-window:]
	successes := 0
	for _, ok := range recent {
		if ok {
			successes++
		}
	}
	windowRate := float64(successes) / float64(window)
	return windowRate >= 0.95*overallRate
}

func stabilityScore(arm *MABArm, cfg GoldenConfig) float64 {
	window := cfg.StabilityWindow
	if len(arm.RecentResults) < window {
		window = len(arm.RecentResults)
	}
	if window == 0 {
		return 0
	}
	recent := arm.RecentResults[len(arm.RecentResults)-window:]
	successes := 0
	for _, ok := range recent {
		if ok {
			successes++
		}
	}
	return float64(successes) / float64(window)
}

// promote stores a brand-new snapshot and evicts the lowest-quality
// template if the registry now exceeds its cap.
func (g *GoldenRegistry) promote(arm *MABArm, cfg GoldenConfig) {
	tmpl := &GoldenTemplate{
		StrategyID:      arm.StrategyID,
		SuccessRate:     arm.SuccessRate(),
		ActivationCount: arm.ActivationCount,
		StabilityScore:  stabilityScore(arm, cfg),
		CreatedTS:       time.Now(),
		LastUpdated:     time.Now(),
	}
	tmpl.History = append(tmpl.History, historyEntry("promoted"))
	g.templates[arm.StrategyID] = tmpl

	if len(g.templates) > cfg.MaxTemplates {
		g.evictWorst()
	}
}

func (g *GoldenRegistry) evictWorst() {
	var worstID string
	worstQuality := 2.0 // above any real quality score
	for id, t := range g.templates {
		q := qualityScore(t)
		if q < worstQuality {
			worstQuality = q
			worstID = id
		}
	}
	if worstID != "" {
		delete(g.templates, worstID)
	}
}

func qualityScore(t *GoldenTemplate) float64 {
	usageTerm := float64(t.UsageAsTemplate) / 10
	if usageTerm > 1 {
		usageTerm = 1
	}
	return 0.4*t.SuccessRate + 0.3*usageTerm + 0.2*t.StabilityScore + 0.1*recencyScore(t.LastUpdated)
}

func recencyScore(last time.Time) float64 {
	age := time.Since(last)
	day := 24 * time.Hour
	if age <= day {
		return 1.0
	}
	week := 7 * day
	if age >= week {
		return 0.0
	}
	return 1.0 - float64(age-day)/float64(week-day)
}

// ForceRevoke manually removes a template, recording the action.
func (g *GoldenRegistry) ForceRevoke(strategyID string) {
	if t, ok := g.templates[strategyID]; ok {
		t.History = append(t.History, historyEntry("revoked"))
		delete(g.templates, strategyID)
	}
}

// ForcePromote manually installs a template snapshot for strategyID,
// bypassing the usual promotion thresholds (used by tests and operators).
func (g *GoldenRegistry) ForcePromote(arm *MABArm, cfg GoldenConfig) {
	tmpl := &GoldenTemplate{
		StrategyID:      arm.StrategyID,
		SuccessRate:     arm.SuccessRate(),
		ActivationCount: arm.ActivationCount,
		StabilityScore:  stabilityScore(arm, cfg),
		CreatedTS:       time.Now(),
		LastUpdated:     time.Now(),
		History:         []string{historyEntry("force_promoted")},
	}
	g.templates[arm.StrategyID] = tmpl
	if len(g.templates) > cfg.MaxTemplates {
		g.evictWorst()
	}
}

// matchScore scores a golden template against a candidate path: strategy_id
// equality, path_type equality, description Jaccard similarity, and a
// performance bonus.
func matchScore(t *GoldenTemplate, path ReasoningPath) float64 {
	score := 0.0
	if t.StrategyID == path.StrategyID {
		score += 0.6
	}
	// path_type equality is judged against the strategy_id as a proxy since
	// the template only stores strategy_id; a matching strategy_id already
	// implies matching path_type under normalize()'s determinism.
	if normalize(path.PathType) == t.StrategyID {
		score += 0.4
	}
	score += jaccard(t.StrategyID, path.Description) * 0.2
	bonus := t.SuccessRate - 0.8
	if bonus > 0.2 {
		bonus = 0.2
	}
	if bonus > 0 {
		score += bonus
	}
	return score
}

func jaccard(a, b string) float64 {
	sa := tokenSet(a)
	sb := tokenSet(b)
	if len(sa) == 0 && len(sb) == 0 {
		return 0
	}
	inter := 0
	for tok := range sa {
		if sb[tok] {
			inter++
		}
	}
	union := len(sa) + len(sb) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func tokenSet(s string) map[string]bool {
	out := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		out[tok] = true
	}
	return out
}

// bestMatch finds the highest-scoring (template, path) pairing. Returns
// ok=false if no match exceeds the 0.85 fast-path threshold.
func (g *GoldenRegistry) bestMatch(paths []ReasoningPath) (ReasoningPath, *GoldenTemplate, float64, bool) {
	const threshold = 0.85
	var bestPath ReasoningPath
	var bestTmpl *GoldenTemplate
	bestScore := -1.0

	for _, p := range paths {
		for _, t := range g.templates {
			s := matchScore(t, p)
			if s > bestScore {
				bestScore = s
				bestPath = p
				bestTmpl = t
			}
		}
	}
	if bestTmpl == nil || bestScore <= threshold {
		return ReasoningPath{}, nil, 0, false
	}
	return bestPath, bestTmpl, bestScore, true
}

func (g *GoldenRegistry) recordMatch(strategyID string, score float64) {
	g.matchHistory = append(g.matchHistory, goldenMatchRecord{StrategyID: strategyID, Score: score, MatchedAt: time.Now()})
	const maxHistory = 200
	if len(g.matchHistory) > maxHistory {
		g.matchHistory = append([]goldenMatchRecord{}, g.matchHistory[len(g.matchHistory)-maxHistory/2:]...)
	}
	if t, ok := g.templates[strategyID]; ok {
		t.UsageAsTemplate++
	}
}
