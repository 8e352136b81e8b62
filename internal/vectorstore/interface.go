// Package vectorstore defines the interface for vector storage operations.
package vectorstore

import (
	"context"
	"errors"
)

// Sentinel errors for vector store operations.
var (
	// ErrCollectionNotFound is returned when a collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrCollectionExists is returned when attempting to create an existing collection.
	ErrCollectionExists = errors.New("collection already exists")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyPoints indicates an empty or nil point batch.
	ErrEmptyPoints = errors.New("empty or nil points")

	// ErrConnectionFailed indicates gRPC connection issues.
	ErrConnectionFailed = errors.New("failed to connect to Qdrant")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrDimensionMismatch indicates a vector's dimension does not match
	// the collection's configured dense size.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Store is the interface for vector storage operations needed by the
// indexing pipeline, the outbox projector, and the hybrid search
// coordinator.
//
// Every operation is idempotent where it matters: repeated
// upserts of the same point id are safe (last write wins), and deleting an
// absent point id is a no-op. This is what lets the outbox projector offer an at-least-once
// delivery guarantee without a two-phase commit.
type Store interface {
	// EnsureCollection creates the collection if absent. denseSize is the
	// embedding model's output dimension; withSparse requests a named
	// sparse vector config alongside the dense one. Idempotent.
	EnsureCollection(ctx context.Context, collection string, denseSize int, withSparse bool) error

	// DeleteCollection removes a collection and all its points.
	DeleteCollection(ctx context.Context, collection string) error

	// CollectionExists reports whether a collection exists.
	CollectionExists(ctx context.Context, collection string) (bool, error)

	// GetCollectionInfo returns metadata about a collection.
	GetCollectionInfo(ctx context.Context, collection string) (*CollectionInfo, error)

	// UpsertPoints writes or replaces points in a collection.
	UpsertPoints(ctx context.Context, collection string, points []Point) error

	// DeletePoints removes points by point id. Deleting an absent id is a
	// no-op, not an error.
	DeletePoints(ctx context.Context, collection string, pointIDs []string) error

	// SearchSimilar performs dense-only similarity search, ordered by
	// descending cosine similarity.
	SearchSimilar(ctx context.Context, collection string, dense []float32, k int, filter map[string]any) ([]SearchResult, error)

	// SearchSimilarHybrid performs the two-modality prefetch + Reciprocal
	// Rank Fusion query: top-(k*prefetchMultiplier)
	// by dense similarity, top-(k*prefetchMultiplier) by sparse similarity,
	// fused by RRF, truncated to k.
	SearchSimilarHybrid(ctx context.Context, collection string, dense []float32, sparse *SparseVector, k int, prefetchMultiplier int, filter map[string]any) ([]SearchResult, error)

	// Close releases the store's connection and resources.
	Close() error
}
