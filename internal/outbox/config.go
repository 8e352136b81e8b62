package outbox

import (
	"fmt"
	"time"
)

// Config holds the projector's tuning knobs, named the way the
// `outbox` config section names them. Mirrors the ApplyDefaults/Validate
// convention used by pipeline.Config and relational.PostgresConfig.
type Config struct {
	// PollInterval is how often the projector checks for unprocessed rows.
	PollInterval time.Duration
	// EntriesPerPoll bounds how many rows one poll fetches.
	EntriesPerPoll int
	// MaxCachedCollections bounds the LRU cache of per-collection
	// vector-store setup state (dimension, sparse support).
	MaxCachedCollections int
	// MaxRetries is how many consecutive failures a row tolerates before
	// it is skipped (but never removed) pending operator intervention.
	MaxRetries int
	// MaxEmbeddingDim rejects Insert/Update rows whose dense vector
	// exceeds this length, guarding against a corrupt or mismatched cache
	// entry reaching the vector store.
	MaxEmbeddingDim int
	// DrainTimeout bounds how long Drain polls for an empty queue before
	// giving up.
	DrainTimeout time.Duration
}

// ApplyDefaults fills zero-valued fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.PollInterval == 0 {
		c.PollInterval = 500 * time.Millisecond
	}
	if c.EntriesPerPoll == 0 {
		c.EntriesPerPoll = 100
	}
	if c.MaxCachedCollections == 0 {
		c.MaxCachedCollections = 50
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 5
	}
	if c.MaxEmbeddingDim == 0 {
		c.MaxEmbeddingDim = 4096
	}
	if c.DrainTimeout == 0 {
		c.DrainTimeout = 60 * time.Second
	}
}

// Validate checks the config is usable after ApplyDefaults has run.
func (c Config) Validate() error {
	for name, v := range map[string]int{
		"entries_per_poll":       c.EntriesPerPoll,
		"max_cached_collections": c.MaxCachedCollections,
		"max_retries":            c.MaxRetries,
		"max_embedding_dim":      c.MaxEmbeddingDim,
	} {
		if v <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidConfig, name, v)
		}
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll_interval_ms must be positive, got %s", ErrInvalidConfig, c.PollInterval)
	}
	if c.DrainTimeout <= 0 {
		return fmt.Errorf("%w: drain_timeout_secs must be positive, got %s", ErrInvalidConfig, c.DrainTimeout)
	}
	return nil
}
