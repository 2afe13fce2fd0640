package llmmux

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/aixgo-dev/aixgo/internal/llm/provider"
)

// callWithRetry calls the provider's CreateCompletion, applying exponential
// backoff with jitter. Authentication, parse, and invalid-request errors are
// never retried; provider.ProviderError.IsRetryable already encodes that
// rule, so this loop only has to consult it.
func (m *Multiplexer) callWithRetry(ctx context.Context, p provider.Provider, req provider.CompletionRequest) (*provider.CompletionResponse, error) {
	name := p.Name()
	if err := m.limiter.Wait(ctx, name); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < m.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * 500 * time.Millisecond
			jitter := time.Duration(rand.Int63n(int64(backoff) / 2))
			select {
			case <-time.After(backoff + jitter):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, err := p.CreateCompletion(ctx, req)
		if err == nil {
			h := m.healthFor(name)
			h.breaker.Reset()
			return resp, nil
		}
		lastErr = err

		var perr *provider.ProviderError
		if errors.As(err, &perr) && !perr.IsRetryable {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}
