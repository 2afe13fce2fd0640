package provider

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/aixgo-dev/aixgo/internal/llm/cost"
	"github.com/aixgo-dev/aixgo/internal/observability"
)

// InstrumentedProvider decorates a Provider with an OTel span per call and a
// cost estimate derived from internal/llm/cost, without the wrapped
// provider having to know either concern exists.
type InstrumentedProvider struct {
	inner   Provider
	calc    *cost.Calculator
	enabled bool
}

// InstrumentedConfig configures an InstrumentedProvider.
type InstrumentedConfig struct {
	Calculator *cost.Calculator
	Enabled    bool
}

// NewInstrumentedProvider wraps inner for tracing and cost tracking. A nil
// config enables instrumentation with the default cost calculator.
func NewInstrumentedProvider(inner Provider, config *InstrumentedConfig) *InstrumentedProvider {
	if config == nil {
		config = &InstrumentedConfig{Enabled: true}
	}
	calc := config.Calculator
	if calc == nil {
		calc = cost.DefaultCalculator
	}
	return &InstrumentedProvider{inner: inner, calc: calc, enabled: config.Enabled}
}

func (p *InstrumentedProvider) Name() string { return p.inner.Name() }

// usageAttrs and recordCost are shared between CreateCompletion and
// CreateStructured, which both produce a CompletionResponse under the hood.
func usageAttrs(u Usage) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int("llm.usage.prompt_tokens", u.PromptTokens),
		attribute.Int("llm.usage.completion_tokens", u.CompletionTokens),
		attribute.Int("llm.usage.total_tokens", u.TotalTokens),
	}
}

func (p *InstrumentedProvider) recordCost(span trace.Span, model string, u Usage) {
	result, err := p.calc.Calculate(&cost.Usage{
		Model:        model,
		InputTokens:  u.PromptTokens,
		OutputTokens: u.CompletionTokens,
		TotalTokens:  u.TotalTokens,
	})
	if err != nil {
		return
	}
	span.SetAttributes(
		attribute.Float64("llm.cost.input_usd", result.InputCost),
		attribute.Float64("llm.cost.output_usd", result.OutputCost),
		attribute.Float64("llm.cost.total_usd", result.TotalCost),
	)
}

// CreateCompletion instruments a single completion call.
func (p *InstrumentedProvider) CreateCompletion(ctx context.Context, request CompletionRequest) (*CompletionResponse, error) {
	if !p.enabled {
		return p.inner.CreateCompletion(ctx, request)
	}

	ctx, span := observability.StartSpanWithOtel(ctx, fmt.Sprintf("llm.%s.completion", p.inner.Name()),
		trace.WithAttributes(
			attribute.String("llm.provider", p.inner.Name()),
			attribute.String("llm.model", request.Model),
			attribute.Float64("llm.temperature", request.Temperature),
			attribute.Int("llm.messages_count", len(request.Messages)),
			attribute.Int("llm.tools_count", len(request.Tools)),
		),
	)
	defer span.End()

	start := time.Now()
	response, err := p.inner.CreateCompletion(ctx, request)
	span.SetAttributes(
		attribute.Int64("llm.duration_ms", time.Since(start).Milliseconds()),
		attribute.Bool("llm.success", err == nil),
	)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(usageAttrs(response.Usage)...)
	span.SetAttributes(attribute.String("llm.finish_reason", response.FinishReason))
	if len(response.ToolCalls) > 0 {
		span.SetAttributes(attribute.Int("llm.tool_calls_count", len(response.ToolCalls)))
	}
	p.recordCost(span, request.Model, response.Usage)

	return response, nil
}

// CreateStructured instruments a schema-validated call.
func (p *InstrumentedProvider) CreateStructured(ctx context.Context, request StructuredRequest) (*StructuredResponse, error) {
	if !p.enabled {
		return p.inner.CreateStructured(ctx, request)
	}

	ctx, span := observability.StartSpanWithOtel(ctx, fmt.Sprintf("llm.%s.structured", p.inner.Name()),
		trace.WithAttributes(
			attribute.String("llm.provider", p.inner.Name()),
			attribute.String("llm.model", request.Model),
			attribute.String("llm.response_format", request.ResponseFormat),
			attribute.Bool("llm.strict_schema", request.StrictSchema),
		),
	)
	defer span.End()

	start := time.Now()
	response, err := p.inner.CreateStructured(ctx, request)
	span.SetAttributes(
		attribute.Int64("llm.duration_ms", time.Since(start).Milliseconds()),
		attribute.Bool("llm.success", err == nil),
	)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(usageAttrs(response.Usage)...)
	p.recordCost(span, request.Model, response.Usage)

	return response, nil
}

// CreateStreaming instruments a streaming call; per-chunk bookkeeping moves
// to instrumentedStream since the span must stay open across Recv calls.
func (p *InstrumentedProvider) CreateStreaming(ctx context.Context, request CompletionRequest) (Stream, error) {
	if !p.enabled {
		return p.inner.CreateStreaming(ctx, request)
	}

	ctx, span := observability.StartSpanWithOtel(ctx, fmt.Sprintf("llm.%s.streaming", p.inner.Name()),
		trace.WithAttributes(
			attribute.String("llm.provider", p.inner.Name()),
			attribute.String("llm.model", request.Model),
		),
	)

	stream, err := p.inner.CreateStreaming(ctx, request)
	if err != nil {
		span.RecordError(err)
		span.End()
		return nil, err
	}

	return &instrumentedStream{stream: stream, span: span}, nil
}

type instrumentedStream struct {
	stream  Stream
	span    trace.Span
	chunks  int
	elapsed time.Duration
}

func (s *instrumentedStream) Recv() (*StreamChunk, error) {
	start := time.Now()
	chunk, err := s.stream.Recv()
	s.elapsed += time.Since(start)
	s.chunks++

	if err != nil {
		s.span.RecordError(err)
		return nil, err
	}
	if chunk != nil && chunk.FinishReason != "" {
		s.span.SetAttributes(attribute.String("llm.finish_reason", chunk.FinishReason))
	}
	return chunk, nil
}

func (s *instrumentedStream) Close() error {
	err := s.stream.Close()
	s.span.SetAttributes(
		attribute.Int("llm.streaming.chunks_total", s.chunks),
		attribute.Int64("llm.streaming.duration_ms", s.elapsed.Milliseconds()),
	)
	if err != nil {
		s.span.RecordError(err)
	}
	s.span.End()
	return err
}

// WrapProvider instruments p unless it already is one.
func WrapProvider(p Provider) Provider {
	if _, ok := p.(*InstrumentedProvider); ok {
		return p
	}
	return NewInstrumentedProvider(p, &InstrumentedConfig{Enabled: true})
}

// UnwrapProvider returns the provider underneath an InstrumentedProvider, or
// p itself if it isn't wrapped.
func UnwrapProvider(p Provider) Provider {
	if ip, ok := p.(*InstrumentedProvider); ok {
		return ip.inner
	}
	return p
}
