// Package graph implements the relationship resolver:
// a second-pass conversion of the unresolved reference strings the storage stage queues
// during extraction into concrete graph edges, plus the Neo4j-backed graph
// store those edges are written to.
package graph
