package search

import "errors"

var (
	// ErrInvalidConfig indicates a Config field failed validation.
	ErrInvalidConfig = errors.New("search: invalid config")

	// ErrEmptyQuery is returned when a request's query text is empty.
	ErrEmptyQuery = errors.New("search: empty query")

	// ErrSparseUnavailable is returned by the sparse embedding step so
	// callers can distinguish "fell back to dense-only" from a hard
	// failure; Hybrid and HybridRerank catch it internally and never
	// surface it to their own callers.
	ErrSparseUnavailable = errors.New("search: sparse provider unavailable")

	// ErrRerankerUnavailable is the rerank-step analogue of
	// ErrSparseUnavailable: HybridRerank catches it and falls back to
	// plain hybrid results rather than failing the request.
	ErrRerankerUnavailable = errors.New("search: reranker unavailable")
)
