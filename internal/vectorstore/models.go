package vectorstore

// SparseVector is a sparse embedding: parallel slices of dimension index and
// weight. Produced either by the Granite sparse model or client-side BM25
// (see internal/embeddings).
type SparseVector struct {
	Indices []uint32
	Values  []float32
}

// Point is a single vector-store record for one entity. PointID is the
// qdrant_point_id stored alongside the entity in the relational store
// relational store, so upserts and deletes are addressed by a value the relational
// store already owns.
type Point struct {
	PointID      string
	RepositoryID string
	EntityID     string
	Payload      map[string]any
	Dense        []float32
	Sparse       *SparseVector
}

// SearchResult is a single scored hit, already joined back to the
// identifiers the relational store needs to hydrate the full entity.
type SearchResult struct {
	PointID      string
	EntityID     string
	RepositoryID string
	Score        float32
	Payload      map[string]any
}

// CollectionInfo describes an existing collection.
type CollectionInfo struct {
	Name       string
	PointCount int
	VectorSize int
	HasSparse  bool
}
