// Package vectorstore implements the vector store adapter: collection
// lifecycle, dense and sparse point upsert/delete, and dense-only and hybrid
// (dense+sparse+RRF) similarity search over Qdrant.
//
// The adapter is transport-agnostic at the Store interface level so the
// indexing pipeline and the search coordinator never import the Qdrant
// client directly.
package vectorstore
