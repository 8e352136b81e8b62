package pipeline

import "fmt"

// Config holds the per-stage tuning knobs named under the
// `indexer` config section. Mirrors the ApplyDefaults/Validate convention
// used by vectorstore.QdrantConfig and relational.PostgresConfig.
type Config struct {
	// FilesPerDiscoveryBatch bounds the discovery stage's FileBatch size.
	FilesPerDiscoveryBatch int
	// MaxConcurrentFileExtractions bounds the extraction stage's worker pool.
	MaxConcurrentFileExtractions int
	// EntitiesPerEmbeddingBatch bounds the extraction stage's EntityBatch size (consumed by the embedding stage).
	EntitiesPerEmbeddingBatch int
	// MaxConcurrentAPIRequests bounds the embedding stage's provider concurrency.
	MaxConcurrentAPIRequests int
	// TextsPerAPIRequest bounds how many texts the embedding stage sends in one embedding call.
	TextsPerAPIRequest int
	// MaxConcurrentSnapshotUpdates bounds the snapshot stage's worker pool.
	MaxConcurrentSnapshotUpdates int
	// PipelineChannelCapacity is the uniform bounded-channel capacity
	// between every pair of stages.
	PipelineChannelCapacity int
}

// ApplyDefaults fills zero-valued fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.FilesPerDiscoveryBatch == 0 {
		c.FilesPerDiscoveryBatch = 50
	}
	if c.MaxConcurrentFileExtractions == 0 {
		c.MaxConcurrentFileExtractions = 16
	}
	if c.EntitiesPerEmbeddingBatch == 0 {
		c.EntitiesPerEmbeddingBatch = 200
	}
	if c.MaxConcurrentAPIRequests == 0 {
		c.MaxConcurrentAPIRequests = 4
	}
	if c.TextsPerAPIRequest == 0 {
		c.TextsPerAPIRequest = 32
	}
	if c.MaxConcurrentSnapshotUpdates == 0 {
		c.MaxConcurrentSnapshotUpdates = 8
	}
	if c.PipelineChannelCapacity == 0 {
		c.PipelineChannelCapacity = 4
	}
}

// Validate checks the config is usable after ApplyDefaults has run.
func (c Config) Validate() error {
	for name, v := range map[string]int{
		"files_per_discovery_batch":       c.FilesPerDiscoveryBatch,
		"max_concurrent_file_extractions": c.MaxConcurrentFileExtractions,
		"entities_per_embedding_batch":    c.EntitiesPerEmbeddingBatch,
		"max_concurrent_api_requests":     c.MaxConcurrentAPIRequests,
		"texts_per_api_request":           c.TextsPerAPIRequest,
		"max_concurrent_snapshot_updates": c.MaxConcurrentSnapshotUpdates,
		"pipeline_channel_capacity":       c.PipelineChannelCapacity,
	} {
		if v <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidConfig, name, v)
		}
	}
	return nil
}
