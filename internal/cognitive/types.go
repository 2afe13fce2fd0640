// Package cognitive implements the five-stage decision pipeline: a prior
// reasoner for query triage, a path generator producing candidate reasoning
// strategies, an idea verifier contract, a multi-armed bandit selector with
// golden-template fast paths and a trial-ground lifecycle, and a strategy
// interpreter that turns the chosen path into an executable plan.
package cognitive

import "time"

// LearningSource identifies how a ReasoningPath entered the system, which
// determines its MAB warm-start and Trial Ground treatment.
type LearningSource string

const (
	SourceStaticTemplate    LearningSource = "static_template"
	SourceLearnedExplorer   LearningSource = "learned_exploration"
	SourceManualAddition    LearningSource = "manual_addition"
	SourceEvolved           LearningSource = "evolved"
)

// ValidationStatus tracks how confident the system is in a path's viability.
type ValidationStatus string

const (
	ValidationUnverified ValidationStatus = "unverified"
	ValidationPending    ValidationStatus = "pending"
	ValidationVerified   ValidationStatus = "verified"
	ValidationConflicting ValidationStatus = "conflicting"
)

// FeedbackSource identifies who produced an outcome reward, which determines
// the weighting update_path_performance applies.
type FeedbackSource string

const (
	FeedbackRetrospection   FeedbackSource = "retrospection"
	FeedbackUserFeedback    FeedbackSource = "user_feedback"
	FeedbackAutoEvaluation  FeedbackSource = "auto_evaluation"
	FeedbackToolVerification FeedbackSource = "tool_verification"
)

// Provenance records where a path came from and how it has evolved. The
// relationship graph is a string-keyed adjacency map rather than an object
// graph, so a ReasoningPath stays a plain, serializable value type even
// when provenance references other strategies.
type Provenance struct {
	Sources          []string            `json:"sources,omitempty"`
	Validations      []string            `json:"validations,omitempty"`
	UpdateHistory    []string            `json:"update_history,omitempty"`
	Relationships    map[string][]string `json:"relationships,omitempty"`
}

// ReasoningPath is a candidate strategy instance. strategy_id is the MAB's
// learning key; instance_id is only for tracing a single generation.
type ReasoningPath struct {
	StrategyID       string           `json:"strategy_id"`
	InstanceID       string           `json:"instance_id"`
	PathType         string           `json:"path_type"`
	Description      string           `json:"description"`
	PromptTemplate   string           `json:"prompt_template"`
	LearningSource   LearningSource   `json:"learning_source"`
	ConfidenceScore  float64          `json:"confidence_score"`
	ValidationStatus ValidationStatus `json:"validation_status"`
	Provenance       *Provenance      `json:"provenance,omitempty"`
}

// MABArm is the per-strategy bandit state bundle. Histories are bounded
// ring buffers trimmed to half their cap on overflow.
type MABArm struct {
	StrategyID      string         `json:"strategy_id"`
	Source          LearningSource `json:"source,omitempty"`
	SuccessCount    int            `json:"success_count"`
	FailureCount    int            `json:"failure_count"`
	TotalReward     float64        `json:"total_reward"`
	ActivationCount int            `json:"activation_count"`
	LastUsed        time.Time      `json:"last_used"`

	RecentRewards []float64 `json:"recent_rewards"` // cap 20, trim to 10
	RecentResults []bool    `json:"recent_results"` // cap 50, trim to 25
	RewardHistory []float64 `json:"reward_history"` // cap 50, trim to 25
}

// SuccessRate returns success_count / max(1, success_count+failure_count).
func (a *MABArm) SuccessRate() float64 {
	total := a.SuccessCount + a.FailureCount
	if total == 0 {
		return 0
	}
	return float64(a.SuccessCount) / float64(total)
}

// SampleCount is the number of feedback events recorded for this arm,
// regardless of whether they came from a MAB selection or from verification
// feedback recorded without the arm ever being chosen. Golden-promotion and
// culling sample thresholds gate on this, not on ActivationCount, since a
// path can accrue reliable signal purely through per-path verification.
func (a *MABArm) SampleCount() int {
	return a.SuccessCount + a.FailureCount
}

const (
	maxRecentRewards = 20
	trimRecentRewards = 10
	maxRecentResults = 50
	trimRecentResults = 25
	maxRewardHistory = 50
	trimRewardHistory = 25
)

func appendBounded[T any](buf []T, v T, max, trim int) []T {
	buf = append(buf, v)
	if len(buf) > max {
		start := len(buf) - trim
		out := make([]T, trim)
		copy(out, buf[start:])
		buf = out
	}
	return buf
}

// GoldenTemplate is a promoted arm snapshot keyed by strategy_id.
type GoldenTemplate struct {
	StrategyID      string    `json:"strategy_id"`
	SuccessRate     float64   `json:"success_rate"`
	ActivationCount int       `json:"activation_count"`
	StabilityScore  float64   `json:"stability_score"`
	CreatedTS       time.Time `json:"created_ts"`
	LastUpdated     time.Time `json:"last_updated"`
	UsageAsTemplate int       `json:"usage_as_template"`

	History []string `json:"history,omitempty"` // bounded promotion/revocation log
}

// watchEntry tracks an arm on the culling watch list.
type watchEntry struct {
	Reason              string
	AddedTS             time.Time
	ConsecutiveFailures int
}

// learnedMeta is the Trial Ground's bookkeeping for a learned/manual arm.
type learnedMeta struct {
	TrialStartTime time.Time
}

// VerifiedPath is one entry of a DecisionResult's per-path verification
// record.
type VerifiedPath struct {
	Path        ReasoningPath `json:"path"`
	Feasibility float64       `json:"feasibility"`
	Reward      float64       `json:"reward"`
	IsFeasible  bool          `json:"is_feasible"`
}

// DecisionResult is the pipeline's output.
type DecisionResult struct {
	ChosenPath          ReasoningPath          `json:"chosen_path"`
	AvailablePaths      []ReasoningPath        `json:"available_paths"`
	VerifiedPaths       []VerifiedPath         `json:"verified_paths"`
	ThinkingSeed        string                 `json:"thinking_seed"`
	SeedVerification    VerificationResult     `json:"seed_verification"`
	StageTimings        map[string]time.Duration `json:"stage_timings"`
	SelectionAlgorithm  string                 `json:"selection_algorithm"`
	Round               int                    `json:"round"`
	Degraded            bool                   `json:"degraded"`
	AllPathsInfeasible  bool                   `json:"all_paths_infeasible"`
}

// Action is one tool invocation in a Plan.
type Action struct {
	ToolName  string         `json:"tool_name"`
	ToolInput map[string]any `json:"tool_input"`
}

// Plan is the interpreter's output: either a direct answer or an ordered
// list of tool actions, never both.
type Plan struct {
	Thought     string         `json:"thought"`
	FinalAnswer string         `json:"final_answer,omitempty"`
	Actions     []Action       `json:"actions,omitempty"`
	Confidence  float64        `json:"confidence"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// IsDirectAnswer reports whether this plan is a direct answer rather than a
// tool-action plan.
func (p Plan) IsDirectAnswer() bool {
	return p.FinalAnswer != "" && len(p.Actions) == 0
}
