package llmmux

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aixgo-dev/aixgo/internal/llm/provider"
)

// responseCache is a TTL-bounded cache of chat completions keyed by a hash
// of the normalized request. A Redis backend is used when an address is
// configured; otherwise an in-process map with lazy expiry is used, so tests
// never need a running Redis instance.
type responseCache struct {
	ttl time.Duration

	redis *redis.Client

	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	resp    ChatResponse
	expires time.Time
}

func newResponseCache(addr string, ttl time.Duration) *responseCache {
	c := &responseCache{ttl: ttl, entries: make(map[string]cacheEntry)}
	if addr != "" {
		c.redis = redis.NewClient(&redis.Options{Addr: addr})
	}
	return c
}

func requestKey(req provider.CompletionRequest) string {
	norm := struct {
		Messages    []provider.Message `json:"messages"`
		Model       string             `json:"model"`
		Temperature float64            `json:"temperature"`
		MaxTokens   int                `json:"max_tokens"`
	}{req.Messages, req.Model, req.Temperature, req.MaxTokens}
	b, _ := json.Marshal(norm)
	sum := sha256.Sum256(b)
	return "llmmux:cache:" + hex.EncodeToString(sum[:])
}

func (c *responseCache) get(req provider.CompletionRequest) (ChatResponse, bool) {
	key := requestKey(req)

	if c.redis != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		raw, err := c.redis.Get(ctx, key).Result()
		if err == nil {
			var resp ChatResponse
			if json.Unmarshal([]byte(raw), &resp) == nil {
				return resp, true
			}
		}
		return ChatResponse{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expires) {
		delete(c.entries, key)
		return ChatResponse{}, false
	}
	return e.resp, true
}

func (c *responseCache) put(req provider.CompletionRequest, resp ChatResponse) {
	key := requestKey(req)

	if c.redis != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if b, err := json.Marshal(resp); err == nil {
			_ = c.redis.Set(ctx, key, b, c.ttl).Err()
		}
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{resp: resp, expires: time.Now().Add(c.ttl)}
}
