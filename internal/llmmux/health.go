package llmmux

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/aixgo-dev/aixgo/internal/llm/provider"
)

// Prober periodically probes unhealthy providers with a cheap completion
// and resets their circuit breaker on success, so a provider that recovers
// is used again without waiting for the next real request to retry it.
type Prober struct {
	mux *Multiplexer
	cr  *cron.Cron
}

// StartProber schedules a cron job at the multiplexer's configured health
// probe interval. Call Stop to release the cron goroutine.
func StartProber(mux *Multiplexer) *Prober {
	p := &Prober{mux: mux, cr: cron.New()}
	spec := "@every " + mux.cfg.HealthProbeEvery.String()
	_, _ = p.cr.AddFunc(spec, p.probeAll)
	p.cr.Start()
	return p
}

func (p *Prober) Stop() {
	ctx := p.cr.Stop()
	<-ctx.Done()
}

func (p *Prober) probeAll() {
	for _, name := range p.mux.registry.List() {
		if p.mux.isHealthy(name) {
			continue
		}
		p.probe(name)
	}
}

func (p *Prober) probe(name string) {
	prov, err := p.mux.registry.Get(name)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	req := provider.CompletionRequest{
		Messages:  []provider.Message{{Role: "user", Content: "ping"}},
		MaxTokens: 1,
	}
	_, err = prov.CreateCompletion(ctx, req)
	h := p.mux.healthFor(name)
	if err == nil {
		h.breaker.Reset()
	}
}
