package reranker

import (
	"fmt"
	"time"
)

// Config holds an HTTP-backed reranker's connection and concurrency
// settings, named the way the `reranking` config section names
// them. Mirrors the ApplyDefaults/Validate convention used throughout
// (outbox.Config, graph.ResolverConfig, search.Config).
type Config struct {
	// Enabled gates whether the caller should construct a reranker at
	// all; NewReranker itself does not consult it, since a caller that
	// built a Config with Enabled=false typically skips calling
	// NewReranker entirely and leaves search.Coordinator.Reranker nil.
	Enabled bool

	// Provider selects the backend: "jina" or "vllm".
	Provider string

	// Model is the reranker model name sent with every request.
	Model string

	// APIBaseURL is the reranker service's base URL.
	APIBaseURL string

	// TimeoutSecs bounds each HTTP rerank call.
	TimeoutSecs int

	// MaxConcurrentRequests bounds how many rerank HTTP calls run at
	// once when a single Rerank call's document set is split into
	// provider-sized batches.
	MaxConcurrentRequests int
}

// ApplyDefaults fills zero-valued fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = "jina"
	}
	if c.TimeoutSecs == 0 {
		c.TimeoutSecs = 30
	}
	if c.MaxConcurrentRequests == 0 {
		c.MaxConcurrentRequests = 4
	}
}

// Validate checks the config is usable after ApplyDefaults has run.
func (c Config) Validate() error {
	if c.Provider != "jina" && c.Provider != "vllm" {
		return fmt.Errorf("%w: provider must be jina or vllm, got %q", ErrInvalidConfig, c.Provider)
	}
	if c.APIBaseURL == "" {
		return fmt.Errorf("%w: api_base_url is required", ErrInvalidConfig)
	}
	if c.TimeoutSecs <= 0 {
		return fmt.Errorf("%w: timeout_secs must be positive, got %d", ErrInvalidConfig, c.TimeoutSecs)
	}
	if c.MaxConcurrentRequests <= 0 {
		return fmt.Errorf("%w: max_concurrent_requests must be positive, got %d", ErrInvalidConfig, c.MaxConcurrentRequests)
	}
	return nil
}

func (c Config) timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}
