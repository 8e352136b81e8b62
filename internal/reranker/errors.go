package reranker

import "errors"

// ErrInvalidConfig indicates a Config field failed validation.
var ErrInvalidConfig = errors.New("reranker: invalid config")
