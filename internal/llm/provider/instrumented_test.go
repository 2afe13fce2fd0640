package provider

import (
	"context"
	"errors"
	"testing"
)

type fakeStream struct {
	chunks []*StreamChunk
	i      int
}

func (f *fakeStream) Recv() (*StreamChunk, error) {
	if f.i >= len(f.chunks) {
		return nil, errors.New("eof")
	}
	c := f.chunks[f.i]
	f.i++
	return c, nil
}

func (f *fakeStream) Close() error { return nil }

type fakeProvider struct {
	name     string
	resp     *CompletionResponse
	err      error
	stream   Stream
	streamFn error
}

func (f *fakeProvider) CreateCompletion(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	return f.resp, f.err
}

func (f *fakeProvider) CreateStructured(ctx context.Context, req StructuredRequest) (*StructuredResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &StructuredResponse{CompletionResponse: *f.resp}, nil
}

func (f *fakeProvider) CreateStreaming(ctx context.Context, req CompletionRequest) (Stream, error) {
	return f.stream, f.streamFn
}

func (f *fakeProvider) Name() string { return f.name }

func TestInstrumentedProvider_CreateCompletion_PassesThroughResponse(t *testing.T) {
	inner := &fakeProvider{name: "fake", resp: &CompletionResponse{
		Content: "hi",
		Usage:   Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}}
	p := NewInstrumentedProvider(inner, &InstrumentedConfig{Enabled: true})

	resp, err := p.CreateCompletion(context.Background(), CompletionRequest{Model: "gpt-4o"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "hi" {
		t.Errorf("expected content 'hi', got %q", resp.Content)
	}
}

func TestInstrumentedProvider_CreateCompletion_PropagatesError(t *testing.T) {
	wantErr := NewProviderError("fake", ErrorCodeServerError, "boom", nil)
	inner := &fakeProvider{name: "fake", err: wantErr}
	p := NewInstrumentedProvider(inner, nil)

	_, err := p.CreateCompletion(context.Background(), CompletionRequest{Model: "gpt-4o"})
	if err != wantErr {
		t.Errorf("expected the original provider error to propagate unwrapped, got %v", err)
	}
}

func TestInstrumentedProvider_Disabled_SkipsSpans(t *testing.T) {
	inner := &fakeProvider{name: "fake", resp: &CompletionResponse{Content: "raw"}}
	p := NewInstrumentedProvider(inner, &InstrumentedConfig{Enabled: false})

	resp, err := p.CreateCompletion(context.Background(), CompletionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "raw" {
		t.Errorf("expected passthrough content, got %q", resp.Content)
	}
}

func TestInstrumentedStream_CountsChunksAndClosesUnderlying(t *testing.T) {
	inner := &fakeStream{chunks: []*StreamChunk{
		{Delta: "a"},
		{Delta: "b", FinishReason: "stop"},
	}}
	fp := &fakeProvider{name: "fake", stream: inner}
	p := NewInstrumentedProvider(fp, nil)

	stream, err := p.CreateStreaming(context.Background(), CompletionRequest{Model: "gpt-4o"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := stream.Recv(); err != nil {
			t.Fatalf("unexpected recv error on chunk %d: %v", i, err)
		}
	}
	if _, err := stream.Recv(); err == nil {
		t.Fatal("expected error once chunks are exhausted")
	}
	if err := stream.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
}

func TestWrapProvider_DoesNotDoubleWrap(t *testing.T) {
	inner := &fakeProvider{name: "fake"}
	once := WrapProvider(inner)
	twice := WrapProvider(once)

	if once != twice {
		t.Error("expected WrapProvider to be idempotent on an already-instrumented provider")
	}
	if UnwrapProvider(twice) != Provider(inner) {
		t.Error("expected UnwrapProvider to recover the original provider")
	}
}
