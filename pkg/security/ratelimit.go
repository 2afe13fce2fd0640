// Package security holds the request-shaping primitives internal/llmmux
// composes around each provider call: per-caller rate limiting, a circuit
// breaker for unhealthy providers, and per-operation timeouts.
package security

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiterGroup is a lazily-populated, mutex-guarded set of token-bucket
// limiters keyed by an arbitrary string (a client ID or a tool name).
// RateLimiter's per-client limiters and ToolRateLimiter's per-tool limiters
// are the same shape, so both build on this instead of duplicating the
// double-checked-locking dance twice.
type limiterGroup struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
}

func newLimiterGroup() *limiterGroup {
	return &limiterGroup{limiters: make(map[string]*rate.Limiter)}
}

func (g *limiterGroup) get(key string) (*rate.Limiter, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	l, ok := g.limiters[key]
	return l, ok
}

func (g *limiterGroup) getOrCreate(key string, rps float64, burst int) *rate.Limiter {
	if l, ok := g.get(key); ok {
		return l
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if l, ok := g.limiters[key]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(rps), burst)
	g.limiters[key] = l
	return l
}

func (g *limiterGroup) set(key string, rps float64, burst int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.limiters[key] = rate.NewLimiter(rate.Limit(rps), burst)
}

// RateLimiter enforces both a global request rate and a per-client rate
// within that global ceiling. internal/llmmux uses one RateLimiter per
// Multiplexer, keyed by provider name, to implement the minimum
// request-interval hygiene between calls to the same provider.
type RateLimiter struct {
	global *rate.Limiter
	byKey  *limiterGroup

	rps   float64
	burst int
}

// NewRateLimiter builds a RateLimiter where both the global bucket and every
// per-client bucket refill at rps with the given burst.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		global: rate.NewLimiter(rate.Limit(rps), burst),
		byKey:  newLimiterGroup(),
		rps:    rps,
		burst:  burst,
	}
}

// Allow reports whether a request for clientID may proceed now, consuming a
// token from both the global and per-client buckets if so.
func (rl *RateLimiter) Allow(clientID string) bool {
	if !rl.global.Allow() {
		return false
	}
	return rl.byKey.getOrCreate(clientID, rl.rps, rl.burst).Allow()
}

// Wait blocks until both the global and per-client buckets admit a request,
// or ctx is done first.
func (rl *RateLimiter) Wait(ctx context.Context, clientID string) error {
	if err := rl.global.Wait(ctx); err != nil {
		return fmt.Errorf("global rate limit: %w", err)
	}
	if err := rl.byKey.getOrCreate(clientID, rl.rps, rl.burst).Wait(ctx); err != nil {
		return fmt.Errorf("client rate limit: %w", err)
	}
	return nil
}

// ToolRateLimiter enforces an independent rate per named tool, with no
// limit at all for tools that were never configured.
type ToolRateLimiter struct {
	limits *limiterGroup
}

// NewToolRateLimiter returns a ToolRateLimiter with nothing limited yet.
func NewToolRateLimiter() *ToolRateLimiter {
	return &ToolRateLimiter{limits: newLimiterGroup()}
}

// SetToolLimit installs (or replaces) the rate limit for toolName.
func (trl *ToolRateLimiter) SetToolLimit(toolName string, rps float64, burst int) {
	trl.limits.set(toolName, rps, burst)
}

// Allow reports whether toolName may run now. A tool with no configured
// limit is always allowed.
func (trl *ToolRateLimiter) Allow(toolName string) bool {
	l, ok := trl.limits.get(toolName)
	if !ok {
		return true
	}
	return l.Allow()
}

// Wait blocks until toolName's limit admits a call, or ctx is done. A tool
// with no configured limit never blocks.
func (trl *ToolRateLimiter) Wait(ctx context.Context, toolName string) error {
	l, ok := trl.limits.get(toolName)
	if !ok {
		return nil
	}
	return l.Wait(ctx)
}

// CircuitState is one of the three states in the breaker's state machine.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

// CircuitBreaker trips to open after maxFailures consecutive Execute
// failures and refuses further calls until resetTimeout has elapsed, at
// which point the next call is allowed through as a half-open probe.
// internal/llmmux keeps one CircuitBreaker per provider to decide routing
// health independently of the rate limiter.
type CircuitBreaker struct {
	maxFailures  int
	resetTimeout time.Duration

	mu       sync.Mutex
	state    CircuitState
	failures int
	openedAt time.Time
}

// NewCircuitBreaker returns a breaker that starts closed.
func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{maxFailures: maxFailures, resetTimeout: resetTimeout}
}

// Execute runs fn through the breaker: rejected outright while open (unless
// resetTimeout has elapsed, which demotes the state to half-open first),
// and counted toward the failure threshold otherwise.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()
	if cb.state == CircuitOpen {
		if time.Since(cb.openedAt) > cb.resetTimeout {
			cb.state = CircuitHalfOpen
			cb.failures = 0
		} else {
			cb.mu.Unlock()
			return fmt.Errorf("circuit breaker is open")
		}
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err != nil {
		cb.failures++
		if cb.failures >= cb.maxFailures {
			cb.state = CircuitOpen
			cb.openedAt = time.Now()
		}
		return err
	}
	cb.failures = 0
	cb.state = CircuitClosed
	return nil
}

// GetState reports the breaker's current state.
func (cb *CircuitBreaker) GetState() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset forces the breaker closed, discarding any accumulated failures.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.state = CircuitClosed
}

// TimeoutManager hands out a per-tool context deadline, falling back to a
// default when a tool hasn't been given its own.
type TimeoutManager struct {
	mu      sync.RWMutex
	def     time.Duration
	perTool map[string]time.Duration
}

// NewTimeoutManager returns a TimeoutManager using def for any tool that
// hasn't been configured with SetToolTimeout.
func NewTimeoutManager(def time.Duration) *TimeoutManager {
	return &TimeoutManager{def: def, perTool: make(map[string]time.Duration)}
}

// SetToolTimeout overrides the timeout for a specific tool.
func (tm *TimeoutManager) SetToolTimeout(toolName string, timeout time.Duration) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.perTool[toolName] = timeout
}

// GetTimeout returns toolName's configured timeout, or the default.
func (tm *TimeoutManager) GetTimeout(toolName string) time.Duration {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	if t, ok := tm.perTool[toolName]; ok {
		return t
	}
	return tm.def
}

// WithTimeout derives a context bounded by toolName's timeout.
func (tm *TimeoutManager) WithTimeout(ctx context.Context, toolName string) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, tm.GetTimeout(toolName))
}
