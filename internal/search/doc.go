// Package search implements the hybrid search coordinator:
// query-time fanout over the dense/sparse vector store and the
// relational store's fulltext index, Reciprocal Rank Fusion across
// modalities, optional reranking, and hydration of results back into full
// entity records.
package search
