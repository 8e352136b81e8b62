package search

import "github.com/google/uuid"

// Query is one request's free text plus the optional per-request overrides
// Query carries everything a search mode allows: an instruction for dense embedding, a payload filter,
// and result sizing.
type Query struct {
	RepositoryID uuid.UUID
	// CollectionName is the vector-store collection to search. The
	// coordinator never resolves it from RepositoryID itself — the
	// caller already holds both (they came from the same repositories
	// row) by the time a query reaches here.
	CollectionName string
	Text           string

	// Instruction overrides Config.DefaultInstruction for this request's
	// dense query-side formatting. Empty means "use the default".
	Instruction string

	// Filter is an opaque vector-store payload filter, passed through to
	// SearchSimilar/SearchSimilarHybrid unchanged.
	Filter map[string]any

	// Limit is the result count for Semantic, Fulltext, and Hybrid modes.
	// Zero means Config.TopK.
	Limit int

	// CandidatesCount and TopK override Config's values for HybridRerank
	// only. Zero means use the configured default.
	CandidatesCount int
	TopK            int
}

// Result is one hydrated hit: the entity's stored record plus the score
// and (for reranked results) rank metadata the caller can use to explain
// ordering.
type Result struct {
	EntityID      string
	QualifiedName string
	Name          string
	EntityType    string
	FilePath      string
	Documentation string
	Content       string
	Score         float32

	// Reranked is true for HybridRerank results and false otherwise.
	Reranked bool
	// RerankerScore is populated only when Reranked is true.
	RerankerScore float32
	// OriginalRank is this result's rank before reranking, 0-indexed.
	// Populated only when Reranked is true.
	OriginalRank int
}
