// Package llmmux provides a uniform chat-completion abstraction over N LLM
// providers: routing, health tracking with fallback, retry with backoff,
// cost accounting, and an optional response cache.
package llmmux

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/aixgo-dev/aixgo/internal/llm/cost"
	"github.com/aixgo-dev/aixgo/internal/llm/provider"
	"github.com/aixgo-dev/aixgo/internal/observability"
	"github.com/aixgo-dev/aixgo/pkg/security"
)

// ChatResponse is the Multiplexer's answer to a chat_completion call. It is
// always returned with success=false rather than a Go error when every
// provider in the routing list has failed; the pipeline never has to
// special-case a nil response.
type ChatResponse struct {
	Success       bool
	Content       string
	Usage         provider.Usage
	ErrorType     string
	Provider      string
	Model         string
	ResponseTime  time.Duration
	FallbackCount int
	FromCache     bool
}

// Config controls multiplexer behavior; zero-value fields are replaced by
// the defaults in New.
type Config struct {
	PreferredProviders []string
	FallbackProviders  []string
	RequestInterval    time.Duration
	MaxRetries         int
	HealthProbeEvery   time.Duration
	CacheTTL           time.Duration
	RedisAddr          string
}

func (c *Config) applyDefaults() {
	if c.RequestInterval <= 0 {
		c.RequestInterval = time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.HealthProbeEvery <= 0 {
		c.HealthProbeEvery = 300 * time.Second
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 300 * time.Second
	}
}

// Multiplexer routes chat completions across a provider.Registry with
// health-aware fallback, per-provider rate limiting, retry, and cost
// accounting via internal/llm/cost.
type Multiplexer struct {
	registry *provider.Registry
	cfg      Config
	calc     *cost.Calculator

	mu       sync.Mutex
	health   map[string]*providerHealth
	limiter  *security.RateLimiter
	cache    *responseCache
}

type providerHealth struct {
	breaker         *security.CircuitBreaker
	lastRequest     time.Time
	consecutiveErrs int
}

// New builds a Multiplexer over the given registry. calc may be nil, in
// which case cost.DefaultCalculator is used.
func New(registry *provider.Registry, cfg Config, calc *cost.Calculator) *Multiplexer {
	cfg.applyDefaults()
	if calc == nil {
		calc = cost.DefaultCalculator
	}
	m := &Multiplexer{
		registry: registry,
		cfg:      cfg,
		calc:     calc,
		health:   make(map[string]*providerHealth),
		limiter:  security.NewRateLimiter(1.0/cfg.RequestInterval.Seconds(), 1),
		cache:    newResponseCache(cfg.RedisAddr, cfg.CacheTTL),
	}
	return m
}

func (m *Multiplexer) healthFor(name string) *providerHealth {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.health[name]
	if !ok {
		h = &providerHealth{breaker: security.NewCircuitBreaker(3, m.cfg.HealthProbeEvery)}
		m.health[name] = h
	}
	return h
}

func (m *Multiplexer) isHealthy(name string) bool {
	return m.healthFor(name).breaker.GetState() != security.CircuitOpen
}

// Complete performs a chat completion, routing across providers per the
// spec's A.4 routing algorithm: explicit preferred provider if healthy,
// otherwise the preferred list, otherwise any healthy provider, falling
// through an ordered fallback list on failure.
func (m *Multiplexer) Complete(ctx context.Context, req provider.CompletionRequest, explicit string) ChatResponse {
	ctx, span := observability.StartSpanWithOtel(ctx, "llmmux.complete")
	defer span.End()

	if cached, ok := m.cache.get(req); ok {
		cached.FromCache = true
		return cached
	}

	order := m.routingOrder(explicit)
	if len(order) == 0 {
		return ChatResponse{Success: false, ErrorType: "no_provider", Content: ""}
	}

	var lastErr error
	fallbacks := 0
	for i, name := range order {
		if i > 0 {
			fallbacks++
		}
		p, err := m.registry.Get(name)
		if err != nil {
			continue
		}
		resp, err := m.callWithRetry(ctx, provider.WrapProvider(p), req)
		if err == nil {
			out := ChatResponse{
				Success:       true,
				Content:       resp.Content,
				Usage:         resp.Usage,
				Provider:      name,
				Model:         req.Model,
				FallbackCount: fallbacks,
			}
			m.cache.put(req, out)
			m.recordCost(name, req.Model, resp.Usage)
			return out
		}
		lastErr = err
		m.recordFailure(name)
	}

	return ChatResponse{
		Success:       false,
		ErrorType:     classifyError(lastErr),
		FallbackCount: fallbacks,
	}
}

// routingOrder builds the provider name sequence to try, honoring the
// explicit provider, then preferred, then any healthy, then the configured
// fallback list, deduplicating as it goes.
func (m *Multiplexer) routingOrder(explicit string) []string {
	seen := make(map[string]bool)
	var order []string
	add := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		order = append(order, name)
	}

	if explicit != "" && m.isHealthy(explicit) {
		add(explicit)
	}
	for _, name := range m.cfg.PreferredProviders {
		if m.isHealthy(name) {
			add(name)
		}
	}
	for _, name := range m.registry.List() {
		if m.isHealthy(name) {
			add(name)
		}
	}
	for _, name := range m.cfg.FallbackProviders {
		add(name)
	}
	return order
}

func (m *Multiplexer) recordFailure(name string) {
	h := m.healthFor(name)
	_ = h.breaker.Execute(func() error { return errors.New("provider call failed") })
}

func (m *Multiplexer) recordCost(providerName, model string, u provider.Usage) {
	if m.calc == nil {
		return
	}
	_, _ = m.calc.Calculate(&cost.Usage{
		Model:        model,
		InputTokens:  u.PromptTokens,
		OutputTokens: u.CompletionTokens,
		TotalTokens:  u.TotalTokens,
	})
}

func classifyError(err error) string {
	if err == nil {
		return ""
	}
	var perr *provider.ProviderError
	if errors.As(err, &perr) {
		switch perr.Code {
		case provider.ErrorCodeAuthentication:
			return "authentication"
		case provider.ErrorCodeRateLimit:
			return "rate_limit"
		case provider.ErrorCodeQuotaExceeded:
			return "quota"
		case provider.ErrorCodeServerError:
			return "server"
		case provider.ErrorCodeTimeout:
			return "timeout"
		case provider.ErrorCodeNetwork:
			return "network"
		case provider.ErrorCodeParse:
			return "parse"
		case provider.ErrorCodeInvalidRequest:
			return "invalid_request"
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "unknown"
}
