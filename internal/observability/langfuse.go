package observability

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// minSecretKeyLength is a sanity floor on LANGFUSE_SECRET_KEY, not an
// attempt to validate Langfuse's actual key format.
const minSecretKeyLength = 16

// LangfuseClient talks to Langfuse's ingestion API directly for the
// LLM-specific events (Generation, Score) that don't map cleanly onto an
// OTel span: a generation carries prompt/completion payloads and per-call
// token cost, and a score is posted well after its trace has ended.
type LangfuseClient struct {
	baseURL    string
	publicKey  string
	secretKey  string
	httpClient *http.Client
	enabled    bool
	mu         sync.Mutex
}

// LangfuseConfig controls NewLangfuseClient.
type LangfuseConfig struct {
	// BaseURL is the Langfuse API endpoint (e.g. https://cloud.langfuse.com).
	// Required to be HTTPS whenever Enabled is true, since PublicKey/SecretKey
	// ride over it as HTTP basic auth.
	BaseURL string

	PublicKey string
	SecretKey string

	Enabled bool
}

// Generation is one LLM call reported to Langfuse.
type Generation struct {
	ID              string                 `json:"id,omitempty"`
	Name            string                 `json:"name,omitempty"`
	StartTime       time.Time              `json:"startTime"`
	EndTime         time.Time              `json:"endTime,omitempty"`
	Model           string                 `json:"model"`
	ModelParameters map[string]interface{} `json:"modelParameters,omitempty"`
	Input           interface{}            `json:"input,omitempty"`
	Output          interface{}            `json:"output,omitempty"`
	Usage           *LangfuseUsage         `json:"usage,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
	Level           string                 `json:"level,omitempty"`
	StatusMessage   string                 `json:"statusMessage,omitempty"`
	Version         string                 `json:"version,omitempty"`
	TraceID         string                 `json:"traceId,omitempty"`
	ParentID        string                 `json:"parentObservationId,omitempty"`
}

// LangfuseUsage is the token/cost breakdown attached to a Generation.
type LangfuseUsage struct {
	PromptTokens     int     `json:"promptTokens,omitempty"`
	CompletionTokens int     `json:"completionTokens,omitempty"`
	TotalTokens      int     `json:"totalTokens,omitempty"`
	Unit             string  `json:"unit,omitempty"`
	InputCost        float64 `json:"inputCost,omitempty"`
	OutputCost       float64 `json:"outputCost,omitempty"`
	TotalCost        float64 `json:"totalCost,omitempty"`
}

// Score is a named evaluation attached to a trace or a specific observation
// within it, e.g. a golden-template promotion posting a quality score back
// onto the generation that earned it.
type Score struct {
	ID            string                 `json:"id,omitempty"`
	TraceID       string                 `json:"traceId"`
	Name          string                 `json:"name"`
	Value         float64                `json:"value"`
	Comment       string                 `json:"comment,omitempty"`
	ObservationID string                 `json:"observationId,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

var (
	// DefaultLangfuseClient is the process-wide client InitLangfuse builds.
	// Everything else takes a *LangfuseClient explicitly; this exists only
	// for callers that don't want to thread one through.
	DefaultLangfuseClient *LangfuseClient
	langfuseInitOnce      sync.Once
	langfuseInitErr       error
)

// InitLangfuse builds DefaultLangfuseClient from LANGFUSE_* environment
// variables. Missing credentials disable the client rather than erroring,
// since tracing being off is a valid deployment choice; a malformed BaseURL
// or a too-short secret key that IS set still fails loudly.
func InitLangfuse() error {
	langfuseInitOnce.Do(func() {
		cfg := LangfuseConfig{
			BaseURL:   getEnv("LANGFUSE_BASE_URL", "https://cloud.langfuse.com"),
			PublicKey: getEnv("LANGFUSE_PUBLIC_KEY", ""),
			SecretKey: getEnv("LANGFUSE_SECRET_KEY", ""),
			Enabled:   getEnv("LANGFUSE_ENABLED", "true") == "true",
		}
		if cfg.PublicKey == "" || cfg.SecretKey == "" {
			cfg.Enabled = false
		}
		DefaultLangfuseClient, langfuseInitErr = NewLangfuseClient(cfg)
	})
	return langfuseInitErr
}

// NewLangfuseClient validates config and returns a ready client. Validation
// is skipped entirely when Enabled is false, so a disabled client never
// blocks startup on a placeholder BaseURL or absent keys.
func NewLangfuseClient(config LangfuseConfig) (*LangfuseClient, error) {
	if config.Enabled {
		if !strings.HasPrefix(config.BaseURL, "https://") {
			return nil, fmt.Errorf("observability: langfuse base URL %q must use HTTPS", config.BaseURL)
		}
		if config.PublicKey == "" || config.SecretKey == "" {
			return nil, fmt.Errorf("observability: langfuse credentials required when enabled")
		}
		if len(config.SecretKey) < minSecretKeyLength {
			return nil, fmt.Errorf("observability: langfuse secret key is too short (minimum %d characters)", minSecretKeyLength)
		}
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
	}

	return &LangfuseClient{
		baseURL:   config.BaseURL,
		publicKey: config.PublicKey,
		secretKey: config.SecretKey,
		enabled:   config.Enabled,
		httpClient: &http.Client{
			Timeout:   10 * time.Second,
			Transport: transport,
		},
	}, nil
}

// TrackGeneration posts gen to Langfuse's ingestion endpoint. A no-op when
// the client is disabled, so call sites don't need their own enabled check.
func (c *LangfuseClient) TrackGeneration(ctx context.Context, gen *Generation) error {
	if !c.enabled {
		return nil
	}
	return c.ingest(ctx, "generation-create", gen)
}

// TrackScore posts score to Langfuse's ingestion endpoint.
func (c *LangfuseClient) TrackScore(ctx context.Context, score *Score) error {
	if !c.enabled {
		return nil
	}
	return c.ingest(ctx, "score-create", score)
}

func (c *LangfuseClient) ingest(ctx context.Context, eventType string, body interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := json.Marshal(map[string]interface{}{"type": eventType, "body": body})
	if err != nil {
		return fmt.Errorf("observability: marshal langfuse %s: %w", eventType, err)
	}

	url := fmt.Sprintf("%s/api/public/ingestion", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("observability: build langfuse request: %w", err)
	}
	req.SetBasicAuth(c.publicKey, c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("observability: send langfuse %s: %w", eventType, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("observability: langfuse API returned status %d", resp.StatusCode)
	}
	return nil
}

// Flush exists for API parity with buffered Langfuse SDKs; this client
// sends every event inline, so there's nothing to flush.
func (c *LangfuseClient) Flush(ctx context.Context) error {
	return nil
}

// Close releases idle connections held by the underlying HTTP client.
func (c *LangfuseClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// NewGeneration starts building a Generation event.
func NewGeneration(name, model string, startTime time.Time) *Generation {
	return &Generation{Name: name, Model: model, StartTime: startTime, Level: "DEFAULT"}
}

func (g *Generation) WithInput(input interface{}) *Generation {
	g.Input = input
	return g
}

func (g *Generation) WithOutput(output interface{}) *Generation {
	g.Output = output
	return g
}

func (g *Generation) WithUsage(promptTokens, completionTokens int, inputCost, outputCost float64) *Generation {
	g.Usage = &LangfuseUsage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
		Unit:             "TOKENS",
		InputCost:        inputCost,
		OutputCost:       outputCost,
		TotalCost:        inputCost + outputCost,
	}
	return g
}

func (g *Generation) WithMetadata(metadata map[string]interface{}) *Generation {
	g.Metadata = metadata
	return g
}

func (g *Generation) WithTraceID(traceID string) *Generation {
	g.TraceID = traceID
	return g
}

func (g *Generation) Finish() *Generation {
	g.EndTime = time.Now()
	return g
}

// NewScore starts building a Score event.
func NewScore(traceID, name string, value float64) *Score {
	return &Score{TraceID: traceID, Name: name, Value: value}
}

func (s *Score) WithComment(comment string) *Score {
	s.Comment = comment
	return s
}

func (s *Score) WithObservationID(observationID string) *Score {
	s.ObservationID = observationID
	return s
}
