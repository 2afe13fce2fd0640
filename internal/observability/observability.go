// Package observability wires OpenTelemetry tracing for the cognitive
// pipeline and the LLM layer beneath it, with an OTLP endpoint that defaults
// to Langfuse's ingestion API so traces land somewhere useful out of the
// box. See langfuse.go for the LLM-specific Generation/Score client that
// rides alongside the OTel exporter.
package observability

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultServiceName = "aixgo"
	LangfuseEndpoint   = "https://cloud.langfuse.com/api/public/otel"
)

var (
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
)

// Config controls how Init wires up the tracer provider.
type Config struct {
	ServiceName string

	Enabled bool

	// ExporterType is "otlp", "stdout", or "none".
	ExporterType string

	OTLPEndpoint string
	OTLPHeaders  map[string]string
}

// InitFromEnv builds a Config from the standard OTEL_* environment
// variables plus LANGFUSE_PUBLIC_KEY/LANGFUSE_SECRET_KEY, and calls Init.
func InitFromEnv() error {
	cfg := Config{
		ServiceName:  getEnv("OTEL_SERVICE_NAME", DefaultServiceName),
		Enabled:      getEnv("OTEL_TRACES_ENABLED", "true") == "true",
		ExporterType: getEnv("OTEL_TRACES_EXPORTER", "otlp"),
		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", LangfuseEndpoint),
		OTLPHeaders:  parseHeaders(getEnv("OTEL_EXPORTER_OTLP_HEADERS", "")),
	}

	if publicKey, secretKey := os.Getenv("LANGFUSE_PUBLIC_KEY"), os.Getenv("LANGFUSE_SECRET_KEY"); publicKey != "" && secretKey != "" {
		if cfg.OTLPHeaders == nil {
			cfg.OTLPHeaders = make(map[string]string)
		}
		cfg.OTLPHeaders["Authorization"] = fmt.Sprintf("Basic %s:%s", publicKey, secretKey)
	}

	return Init(cfg)
}

// Init sets up the global tracer provider per cfg. Calling it with
// Enabled=false (or ExporterType "none") installs a no-op tracer instead of
// failing, so callers don't have to special-case tracing being off.
func Init(cfg Config) error {
	if !cfg.Enabled || cfg.ExporterType == "none" {
		log.Println("observability: tracing disabled")
		tracer = otel.GetTracerProvider().Tracer(cfg.ServiceName)
		return nil
	}

	res, err := resource.New(context.Background(), resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		return fmt.Errorf("observability: build resource: %w", err)
	}

	exporter, err := newExporter(cfg)
	if err != nil {
		return err
	}

	tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	tracer = tracerProvider.Tracer(cfg.ServiceName)

	return nil
}

func newExporter(cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.ExporterType {
	case "otlp":
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.OTLPEndpoint)}
		if len(cfg.OTLPHeaders) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(cfg.OTLPHeaders))
		}
		exp, err := otlptrace.New(context.Background(), otlptracehttp.NewClient(opts...))
		if err != nil {
			return nil, fmt.Errorf("observability: otlp exporter: %w", err)
		}
		log.Printf("observability: otlp exporter targeting %s", cfg.OTLPEndpoint)
		return exp, nil

	case "stdout":
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("observability: stdout exporter: %w", err)
		}
		log.Println("observability: stdout exporter")
		return exp, nil

	default:
		return nil, fmt.Errorf("observability: unknown exporter type %q", cfg.ExporterType)
	}
}

// Shutdown flushes and stops the tracer provider, if one was started.
func Shutdown(ctx context.Context) error {
	if tracerProvider == nil {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	return tracerProvider.Shutdown(ctx)
}

func currentTracer() trace.Tracer {
	if tracer == nil {
		return otel.GetTracerProvider().Tracer(DefaultServiceName)
	}
	return tracer
}

// StartSpan creates a span carrying an arbitrary key/value bag, for call
// sites that haven't been threaded through with a context yet.
//
// Deprecated: prefer StartSpanWithOtel, which propagates ctx and accepts
// native OTel SpanStartOptions instead of an any-typed map.
func StartSpan(name string, data map[string]any) *Span {
	ctx, span := currentTracer().Start(context.Background(), name)
	return newSpan(ctx, span, name, data)
}

// StartSpanWithContext is StartSpan but derives the span from an existing
// context instead of context.Background().
func StartSpanWithContext(ctx context.Context, name string, data map[string]any) (context.Context, *Span) {
	spanCtx, span := currentTracer().Start(ctx, name)
	wrapped := newSpan(spanCtx, span, name, data)
	return spanCtx, wrapped
}

// StartSpanWithOtel starts a span using native OTel options and returns the
// raw trace.Span. This is what internal/llm/provider and internal/cognitive
// use; the map-based Span wrapper exists only for the legacy call sites
// above.
func StartSpanWithOtel(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return currentTracer().Start(ctx, name, opts...)
}

func newSpan(ctx context.Context, raw trace.Span, name string, data map[string]any) *Span {
	if data != nil {
		attrs := make([]attribute.KeyValue, 0, len(data))
		for k, v := range data {
			attrs = append(attrs, convertToAttribute(k, v))
		}
		raw.SetAttributes(attrs...)
	}
	return &Span{ctx: ctx, span: raw, name: name, data: data}
}

// Span is a thin, map-attribute wrapper around an OTel span for call sites
// that predate context-first tracing.
type Span struct {
	ctx   context.Context
	span  trace.Span
	name  string
	data  map[string]any
	ended bool
}

func (s *Span) End() {
	if s.ended || s.span == nil {
		return
	}
	s.span.End()
	s.ended = true
}

func (s *Span) Name() string             { return s.name }
func (s *Span) Data() map[string]any     { return s.data }
func (s *Span) IsEnded() bool            { return s.ended }
func (s *Span) Context() context.Context { return s.ctx }

func (s *Span) SetAttribute(key string, value any) {
	if s.span != nil {
		s.span.SetAttributes(convertToAttribute(key, value))
	}
}

func (s *Span) SetError(err error) {
	if s.span != nil && err != nil {
		s.span.RecordError(err)
	}
}

func convertToAttribute(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case bool:
		return attribute.Bool(key, v)
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// parseHeaders parses "key1=value1,key2=value2" into a map, skipping any
// pair that doesn't contain '='.
func parseHeaders(raw string) map[string]string {
	if raw == "" {
		return nil
	}
	headers := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		if ok {
			headers[k] = v
		}
	}
	return headers
}
