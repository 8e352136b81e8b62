package outbox

import "errors"

var (
	// ErrInvalidConfig indicates a Config field failed validation.
	ErrInvalidConfig = errors.New("outbox: invalid config")

	// ErrEmbeddingNotFound is recorded as a row failure when an
	// Insert/Update row's embedding_id has no matching embedding_cache row.
	ErrEmbeddingNotFound = errors.New("outbox: embedding not found")

	// ErrEmbeddingTooLarge is recorded when a dense vector exceeds
	// Config.MaxEmbeddingDim.
	ErrEmbeddingTooLarge = errors.New("outbox: embedding exceeds max dimension")

	// ErrMaxRetriesExceeded marks a row skipped after Config.MaxRetries
	// failed attempts; the row is left unprocessed for an operator to
	// investigate, never deleted.
	ErrMaxRetriesExceeded = errors.New("outbox: max retries exceeded")
)
