package search

import "fmt"

// Config holds the coordinator's tuning knobs, named the way the
// `hybrid_search` and `reranking` config sections name them. Mirrors the
// ApplyDefaults/Validate convention used by outbox.Config and
// graph.ResolverConfig.
type Config struct {
	// PrefetchMultiplier is search_similar_hybrid's per-modality prefetch
	// factor: each modality retrieves top-(k * PrefetchMultiplier) before
	// RRF fusion. Bounded to 1..=100.
	PrefetchMultiplier int

	// DefaultInstruction is the instruction text used to prefix query
	// text for dense embedding (`<instruct>{instruction}\n<query>{text}`)
	// when a request does not specify its own.
	DefaultInstruction string

	// CandidatesCount is how many hybrid hits HybridRerank retrieves
	// before reranking down to TopK. Must be >= TopK.
	CandidatesCount int

	// TopK is HybridRerank's default result count when a request does
	// not specify its own.
	TopK int
}

// ApplyDefaults fills zero-valued fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.PrefetchMultiplier == 0 {
		c.PrefetchMultiplier = 5
	}
	if c.CandidatesCount == 0 {
		c.CandidatesCount = 50
	}
	if c.TopK == 0 {
		c.TopK = 10
	}
}

// Validate checks the config is usable after ApplyDefaults has run.
func (c Config) Validate() error {
	if c.PrefetchMultiplier < 1 || c.PrefetchMultiplier > 100 {
		return fmt.Errorf("%w: prefetch_multiplier must be in 1..=100, got %d", ErrInvalidConfig, c.PrefetchMultiplier)
	}
	if c.CandidatesCount <= 0 {
		return fmt.Errorf("%w: candidates must be positive, got %d", ErrInvalidConfig, c.CandidatesCount)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("%w: top_k must be positive, got %d", ErrInvalidConfig, c.TopK)
	}
	if c.TopK > c.CandidatesCount {
		return fmt.Errorf("%w: top_k (%d) must not exceed candidates (%d)", ErrInvalidConfig, c.TopK, c.CandidatesCount)
	}
	return nil
}
