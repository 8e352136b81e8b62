package pipeline

import "errors"

var (
	// ErrInvalidConfig indicates a Config field failed validation.
	ErrInvalidConfig = errors.New("pipeline: invalid config")
	// ErrStageFailed wraps the first error any stage returns, which
	// cancels the whole run.
	ErrStageFailed = errors.New("pipeline: stage failed")
)
