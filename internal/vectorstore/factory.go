package vectorstore

import "fmt"

// StoreOption configures a Store after creation.
type StoreOption func(store *QdrantStore)

// NewStoreFromConfig builds the Qdrant-backed Store the indexing pipeline
// pipeline, outbox projector, and search coordinator all share one
// instance of. There is a single provider today; the factory exists so
// call sites depend on this constructor rather than on QdrantStore
// directly, matching how the rest of the module depends on interfaces.
func NewStoreFromConfig(cfg QdrantConfig, opts ...StoreOption) (Store, error) {
	store, err := NewQdrantStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating qdrant store: %w", err)
	}
	for _, opt := range opts {
		opt(store)
	}
	return store, nil
}
