package cognitive

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/aixgo-dev/aixgo/internal/llm/provider"
	"github.com/aixgo-dev/aixgo/internal/llmmux"
)

// pathTypeVocabulary is the fixed set of path_type values the generator may
// draw from; strategy_id is deterministically derived from path_type so the
// MAB always learns at the family level regardless of how many instances a
// single decision generates.
var pathTypeVocabulary = []string{
	"systematic_analytical",
	"creative_exploratory",
	"critical_verification",
	"pragmatic_direct",
	"exploratory_breadth",
	"analytical_decomposition",
}

var pathTypeDescriptions = map[string]string{
	"systematic_analytical":    "Break the problem into structured steps and analyze each methodically.",
	"creative_exploratory":     "Explore unconventional angles and generate novel framings.",
	"critical_verification":    "Scrutinize assumptions and cross-check claims before answering.",
	"pragmatic_direct":         "Answer directly and efficiently with minimal detour.",
	"exploratory_breadth":      "Survey the space of possible answers broadly before narrowing.",
	"analytical_decomposition": "Decompose the query into sub-questions and resolve each.",
}

var nonAlnumRe = regexp.MustCompile(`[^a-z0-9]+`)

// normalize maps a path_type (or any label) to its strategy_id. Deterministic
// and idempotent: two generations with the same path_type always produce the
// same strategy_id.
func normalize(pathType string) string {
	s := strings.ToLower(strings.TrimSpace(pathType))
	s = nonAlnumRe.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

var (
	instanceCounter    int64
	useUUIDInstanceIDs atomic.Bool
)

// SetUUIDInstanceIDs switches instance_id generation between the default
// monotonic-counter+timestamp scheme and github.com/google/uuid. NewCore
// calls this from Config.PathGenerator.UseUUIDInstanceIDs; it's a package
// toggle rather than a PathGenerator field because synthesizeDetour needs it
// too, and that fallback path has no PathGenerator instance to read from.
func SetUUIDInstanceIDs(enabled bool) {
	useUUIDInstanceIDs.Store(enabled)
}

func nextInstanceID(strategyID string) string {
	if useUUIDInstanceIDs.Load() {
		return strategyID + "_" + uuid.NewString()
	}
	n := atomic.AddInt64(&instanceCounter, 1)
	return fmt.Sprintf("%s_%d_%d", strategyID, time.Now().UnixNano(), n)
}

// PathGenerator produces candidate ReasoningPath values from a thinking
// seed and query. LLM-assisted selection of which vocabulary entries are
// most relevant, falling back to the full vocabulary on any LLM failure.
type PathGenerator struct {
	Mux   *llmmux.Multiplexer
	Model string
}

func (g *PathGenerator) GeneratePaths(ctx context.Context, seed, query string, maxPaths int) []ReasoningPath {
	if maxPaths <= 0 {
		maxPaths = 6
	}

	types := pathTypeVocabulary
	if g.Mux != nil {
		if selected, ok := g.selectTypesWithLLM(ctx, seed, query, maxPaths); ok {
			types = selected
		}
	}
	if len(types) > maxPaths {
		types = types[:maxPaths]
	}
	if len(types) == 0 {
		types = pathTypeVocabulary[:1]
	}

	paths := make([]ReasoningPath, 0, len(types))
	for _, pt := range types {
		sid := normalize(pt)
		paths = append(paths, ReasoningPath{
			StrategyID:       sid,
			InstanceID:       nextInstanceID(sid),
			PathType:         pt,
			Description:      pathTypeDescriptions[pt],
			PromptTemplate:   seed,
			LearningSource:   SourceStaticTemplate,
			ConfidenceScore:  0.6,
			ValidationStatus: ValidationUnverified,
		})
	}
	return paths
}

func (g *PathGenerator) selectTypesWithLLM(ctx context.Context, seed, query string, maxPaths int) ([]string, bool) {
	prompt := fmt.Sprintf(`Given this thinking seed and query, pick up to %d reasoning approaches from this fixed list that best fit: %s

Respond with strict JSON: {"path_types": ["..."]}

Seed: %s
Query: %s`, maxPaths, strings.Join(pathTypeVocabulary, ", "), seed, query)

	req := provider.CompletionRequest{
		Messages:    []provider.Message{{Role: "user", Content: prompt}},
		Model:       g.Model,
		Temperature: 0.4,
	}
	resp := g.Mux.Complete(ctx, req, "")
	if !resp.Success {
		return nil, false
	}

	var parsed struct {
		PathTypes []string `json:"path_types"`
	}
	if !decodeJSONLenient(resp.Content, &parsed) || len(parsed.PathTypes) == 0 {
		return nil, false
	}

	valid := make([]string, 0, len(parsed.PathTypes))
	for _, pt := range parsed.PathTypes {
		for _, known := range pathTypeVocabulary {
			if pt == known {
				valid = append(valid, pt)
				break
			}
		}
	}
	if len(valid) == 0 {
		return nil, false
	}
	return valid, true
}

// synthesizeDetour builds the creative_detour fallback path used when no
// candidate is feasible or the generator produced zero paths.
func synthesizeDetour() ReasoningPath {
	return ReasoningPath{
		StrategyID:       DetourStrategyID,
		InstanceID:       nextInstanceID(DetourStrategyID),
		PathType:         "creative_detour",
		Description:      "Lateral, creative reframing used when no generated path proved feasible.",
		LearningSource:   SourceStaticTemplate,
		ConfidenceScore:  0.4,
		ValidationStatus: ValidationUnverified,
	}
}
