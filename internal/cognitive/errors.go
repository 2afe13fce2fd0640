package cognitive

// ErrorKind enumerates the internal conditions the core recognizes and
// recovers from. None of these are ever surfaced as a Go error from Decide
// or Plan; they are recorded on the result instead.
type ErrorKind string

const (
	ErrLLMUnavailable            ErrorKind = "llm_unavailable"
	ErrVerifierUnavailable       ErrorKind = "verifier_unavailable"
	ErrPathGeneratorEmpty        ErrorKind = "path_generator_empty"
	ErrAllPathsInfeasible        ErrorKind = "all_paths_infeasible"
	ErrDeadlineExceeded          ErrorKind = "deadline_exceeded"
	ErrInvalidPlan               ErrorKind = "invalid_plan"
	ErrToolMissing               ErrorKind = "tool_missing"
	ErrInternalInvariantViolation ErrorKind = "internal_invariant_violation"
)

const (
	AlgoThompson           = "thompson"
	AlgoUCB                = "ucb"
	AlgoEpsilonGreedy      = "epsilon_greedy"
	AlgoGoldenTemplate     = "golden_template"
	AlgoIntelligentDetour  = "intelligent_detour"
	AlgoVerificationMAB    = "verification_enhanced_mab"
	AlgoDeadlineFallback   = "deadline_fallback"
)

// DetourStrategyID is the strategy_id synthesized when no candidate path
// is feasible.
const DetourStrategyID = "creative_detour"
