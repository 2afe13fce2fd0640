// Package cost estimates USD spend for LLM usage so internal/llmmux and
// internal/llm/provider's InstrumentedProvider can attach a cost figure to
// every call without either package needing to know per-model pricing.
package cost

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ModelPricing is the USD-per-million-token rate for a model.
type ModelPricing struct {
	Model           string
	InputPer1M      float64
	OutputPer1M     float64
	CachedPer1M     float64
	SupportsCaching bool
}

// Usage is the token accounting for one LLM call.
type Usage struct {
	Model        string
	InputTokens  int
	OutputTokens int
	CachedTokens int
	TotalTokens  int
}

// Cost is the USD breakdown computed from a Usage against its ModelPricing.
type Cost struct {
	InputCost  float64
	OutputCost float64
	CachedCost float64
	TotalCost  float64
	Currency   string
}

// Calculator looks up pricing and turns Usage into Cost. The zero value is
// not usable; construct with NewCalculator.
type Calculator struct {
	mu      sync.RWMutex
	pricing map[string]*ModelPricing
}

// NewCalculator returns a Calculator preloaded with the rate card in
// pricingTable below.
func NewCalculator() *Calculator {
	c := &Calculator{pricing: make(map[string]*ModelPricing)}
	for _, p := range pricingTable {
		pp := p
		c.pricing[pp.Model] = &pp
	}
	return c
}

// pricingTable holds published per-provider rates. Free/local runtimes
// (Ollama, vLLM) are listed at zero cost so Calculate still succeeds for
// them instead of treating a local model as "unpriced".
var pricingTable = []ModelPricing{
	{Model: "gpt-4", InputPer1M: 30.0, OutputPer1M: 60.0},
	{Model: "gpt-4-turbo", InputPer1M: 10.0, OutputPer1M: 30.0},
	{Model: "gpt-4-turbo-preview", InputPer1M: 10.0, OutputPer1M: 30.0},
	{Model: "gpt-4o", InputPer1M: 2.5, OutputPer1M: 10.0, CachedPer1M: 1.25, SupportsCaching: true},
	{Model: "gpt-4o-mini", InputPer1M: 0.15, OutputPer1M: 0.60, CachedPer1M: 0.075, SupportsCaching: true},

	{Model: "gpt-3.5-turbo", InputPer1M: 0.5, OutputPer1M: 1.5},
	{Model: "gpt-3.5-turbo-16k", InputPer1M: 3.0, OutputPer1M: 4.0},

	{Model: "o1-preview", InputPer1M: 15.0, OutputPer1M: 60.0},
	{Model: "o1-mini", InputPer1M: 3.0, OutputPer1M: 12.0},

	{Model: "claude-3-opus-20240229", InputPer1M: 15.0, OutputPer1M: 75.0, CachedPer1M: 1.5, SupportsCaching: true},
	{Model: "claude-3-5-sonnet-20241022", InputPer1M: 3.0, OutputPer1M: 15.0, CachedPer1M: 0.3, SupportsCaching: true},
	{Model: "claude-3-5-sonnet-20240620", InputPer1M: 3.0, OutputPer1M: 15.0, CachedPer1M: 0.3, SupportsCaching: true},
	{Model: "claude-3-5-haiku-20241022", InputPer1M: 1.0, OutputPer1M: 5.0, CachedPer1M: 0.1, SupportsCaching: true},
	{Model: "claude-3-haiku-20240307", InputPer1M: 0.25, OutputPer1M: 1.25, CachedPer1M: 0.03, SupportsCaching: true},

	{Model: "gemini-1.5-pro", InputPer1M: 1.25, OutputPer1M: 5.0, CachedPer1M: 0.3125, SupportsCaching: true},
	{Model: "gemini-1.5-flash", InputPer1M: 0.075, OutputPer1M: 0.3, CachedPer1M: 0.01875, SupportsCaching: true},
	{Model: "gemini-2.0-flash-exp", InputPer1M: 0.0, OutputPer1M: 0.0},

	{Model: "ollama/llama3.1", InputPer1M: 0.0, OutputPer1M: 0.0},
	{Model: "ollama/llama3.2", InputPer1M: 0.0, OutputPer1M: 0.0},
	{Model: "ollama/llama3.3", InputPer1M: 0.0, OutputPer1M: 0.0},
	{Model: "ollama/qwen2.5", InputPer1M: 0.0, OutputPer1M: 0.0},
	{Model: "ollama/mistral", InputPer1M: 0.0, OutputPer1M: 0.0},
	{Model: "ollama/phi", InputPer1M: 0.0, OutputPer1M: 0.0},

	{Model: "vllm/meta-llama/Llama-3.1-8B", InputPer1M: 0.0, OutputPer1M: 0.0},
	{Model: "vllm/meta-llama/Llama-3.2-3B", InputPer1M: 0.0, OutputPer1M: 0.0},
}

// AddPricing registers or overrides the rate for a model.
func (c *Calculator) AddPricing(pricing *ModelPricing) {
	if pricing == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pricing[pricing.Model] = pricing
}

// GetPricing resolves a model to its ModelPricing. An exact match wins;
// otherwise the longest registered prefix of model wins, so a caller that
// only knows "claude-3-5-sonnet-20241022-v2" still prices off the base
// model. The returned pointer is a copy so callers can't mutate the table.
func (c *Calculator) GetPricing(model string) (*ModelPricing, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if p, ok := c.pricing[model]; ok {
		cp := *p
		return &cp, true
	}

	candidates := make([]string, 0, len(c.pricing))
	for key := range c.pricing {
		if strings.HasPrefix(model, key) {
			candidates = append(candidates, key)
		}
	}
	if len(candidates) == 0 {
		return nil, false
	}
	sort.Slice(candidates, func(i, j int) bool { return len(candidates[i]) > len(candidates[j]) })

	cp := *c.pricing[candidates[0]]
	return &cp, true
}

// Calculate prices a single Usage record.
func (c *Calculator) Calculate(usage *Usage) (*Cost, error) {
	pricing, ok := c.GetPricing(usage.Model)
	if !ok {
		return nil, fmt.Errorf("cost: no pricing registered for model %q", usage.Model)
	}

	result := &Cost{Currency: "USD"}
	if usage.InputTokens > 0 {
		result.InputCost = float64(usage.InputTokens) / 1_000_000 * pricing.InputPer1M
	}
	if usage.OutputTokens > 0 {
		result.OutputCost = float64(usage.OutputTokens) / 1_000_000 * pricing.OutputPer1M
	}
	if usage.CachedTokens > 0 && pricing.SupportsCaching {
		result.CachedCost = float64(usage.CachedTokens) / 1_000_000 * pricing.CachedPer1M
	}
	result.TotalCost = result.InputCost + result.OutputCost + result.CachedCost

	return result, nil
}

// CalculateMultiple sums the cost of several Usage records, failing on the
// first unpriced model.
func (c *Calculator) CalculateMultiple(usages []*Usage) (*Cost, error) {
	total := &Cost{Currency: "USD"}
	for i, usage := range usages {
		if usage == nil {
			return nil, fmt.Errorf("cost: usage at index %d is nil", i)
		}
		costed, err := c.Calculate(usage)
		if err != nil {
			return nil, err
		}
		total.InputCost += costed.InputCost
		total.OutputCost += costed.OutputCost
		total.CachedCost += costed.CachedCost
		total.TotalCost += costed.TotalCost
	}
	return total, nil
}

// EstimateCost is a convenience wrapper around Calculate for callers that
// only have raw token counts, not a full Usage record.
func (c *Calculator) EstimateCost(model string, inputTokens, outputTokens int) (*Cost, error) {
	return c.Calculate(&Usage{
		Model:        model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		TotalTokens:  inputTokens + outputTokens,
	})
}

// ListModels returns every model with registered pricing.
func (c *Calculator) ListModels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	models := make([]string, 0, len(c.pricing))
	for model := range c.pricing {
		models = append(models, model)
	}
	sort.Strings(models)
	return models
}

// DefaultCalculator is shared by internal/llmmux and internal/llm/provider
// callers that don't need a customized rate card.
var DefaultCalculator = NewCalculator()
