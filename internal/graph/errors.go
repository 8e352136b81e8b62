package graph

import "errors"

// Sentinel errors for the graph store and relationship resolver.
var (
	// ErrInvalidConfig indicates invalid Neo4jConfig.
	ErrInvalidConfig = errors.New("graph: invalid configuration")
)
