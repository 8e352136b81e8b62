package embeddings

import (
	"fmt"
	"strings"
)

// SparseConfig selects and configures a SparseProvider. Provider "granite"
// calls a hosted Granite sparse-embedding endpoint; "bm25" computes sparse
// vectors client-side with no external dependency. Device is informational
// only for the bm25 provider (it runs on the host CPU regardless) and is
// accepted so the same config shape serves both providers.
type SparseConfig struct {
	Provider  string // "granite" or "bm25"
	BaseURL   string // required for granite
	Model     string
	Device    string // "auto", "cpu", "cuda", "cuda:N", "metal"
	TopK      int    // sparse vector truncation before storage
	BatchSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *SparseConfig) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = "bm25"
	}
	if c.Device == "" {
		c.Device = "auto"
	}
	if c.TopK == 0 {
		c.TopK = 128
	}
	if c.BatchSize == 0 {
		c.BatchSize = 32
	}
}

// Validate checks the configuration for consistency.
func (c SparseConfig) Validate() error {
	switch c.Provider {
	case "granite":
		if c.BaseURL == "" {
			return fmt.Errorf("%w: base_url required for granite sparse provider", ErrInvalidConfig)
		}
	case "bm25":
	default:
		return fmt.Errorf("%w: sparse provider must be granite or bm25, got %q", ErrInvalidConfig, c.Provider)
	}
	switch c.Device {
	case "auto", "cpu", "cuda", "metal":
	default:
		if !strings.HasPrefix(c.Device, "cuda:") {
			return fmt.Errorf("%w: invalid device %q", ErrInvalidConfig, c.Device)
		}
	}
	if c.TopK <= 0 {
		return fmt.Errorf("%w: top_k must be positive, got %d", ErrInvalidConfig, c.TopK)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch_size must be positive, got %d", ErrInvalidConfig, c.BatchSize)
	}
	return nil
}

// NewSparseProvider builds the SparseProvider named by cfg.Provider,
// mirroring NewProvider's switch-on-provider construction for the dense
// providers.
func NewSparseProvider(cfg SparseConfig) (SparseProvider, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Provider {
	case "granite":
		return NewGraniteProvider(GraniteConfig{BaseURL: cfg.BaseURL, Model: cfg.Model})
	case "bm25":
		return NewBM25SparseProvider(DefaultBM25Params(0)), nil
	default:
		return nil, fmt.Errorf("%w: unknown sparse provider %q", ErrInvalidConfig, cfg.Provider)
	}
}
