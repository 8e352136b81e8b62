// Package relational defines and implements the relational store adapter:
// repository identity, entity metadata, file snapshots, the transactional
// outbox, the content-addressed embedding cache, and BM25 corpus
// statistics, all backed by PostgreSQL.
package relational

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors for relational store operations.
var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrBatchTooLarge is returned when a batch operation exceeds
	// MaxEntitiesPerOperation.
	ErrBatchTooLarge = errors.New("batch exceeds maximum entities per operation")

	// ErrRepositoryNotFound indicates no repository row exists for the
	// given id or path.
	ErrRepositoryNotFound = errors.New("repository not found")
)

// OutboxOperation is the kind of change an outbox row projects downstream.
type OutboxOperation string

const (
	OutboxInsert OutboxOperation = "insert"
	OutboxUpdate OutboxOperation = "update"
	OutboxDelete OutboxOperation = "delete"
)

// TargetStore is the downstream system an outbox row is destined for.
// Qdrant is the only target today; the graph resolver's Neo4j projection reads the same
// table filtered by target_store once relationship resolution lands.
type TargetStore string

const (
	TargetQdrant TargetStore = "qdrant"
	TargetNeo4j  TargetStore = "neo4j"
)

// EntityRecord is the JSONB-serializable form of an extracted entity as
// stored in entity_metadata. It mirrors extractor.Entity's exported fields
// closely enough to round-trip through JSON without importing the
// extractor package, keeping the storage layer decoupled from the
// extraction layer's internal representation.
type EntityRecord struct {
	EntityID        string         `json:"entity_id"`
	RepositoryID    string         `json:"repository_id"`
	QualifiedName   string         `json:"qualified_name"`
	Name            string         `json:"name"`
	EntityType      string         `json:"entity_type"`
	Language        string         `json:"language"`
	FilePath        string         `json:"file_path"`
	Visibility      string         `json:"visibility"`
	ParentScope     string         `json:"parent_scope,omitempty"`
	StartLine       int            `json:"start_line"`
	EndLine         int            `json:"end_line"`
	Signature       string         `json:"signature,omitempty"`
	Documentation   string         `json:"documentation,omitempty"`
	Content         string         `json:"content,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	ContentHash     string         `json:"content_hash"`
	GitCommitHash   string         `json:"git_commit_hash,omitempty"`
}

// EntityMetadataLookup is the result row of GetEntitiesMetadataBatch: the
// vector-store point id and soft-delete timestamp (zero if not deleted)
// for one entity.
type EntityMetadataLookup struct {
	QdrantPointID string
	DeletedAt     time.Time
}

// EntityOutboxBatchEntry is one unit of work for StoreEntitiesWithOutboxBatch:
// an entity plus everything needed to write both the entity_metadata row and
// its companion outbox row in the same transaction.
type EntityOutboxBatchEntry struct {
	Entity               EntityRecord
	EmbeddingID          int64
	Operation            OutboxOperation
	PointID              string
	TargetStore          TargetStore
	GitCommitHash        string
	TokenCount           int
	PendingRelationships []PendingRelationship
}

// RelationshipKind is the edge kind a pending relationship resolves to,
// the CALLS / USES / IMPLEMENTS / CONTAINS / IMPORTS enum.
type RelationshipKind string

const (
	RelationshipCalls      RelationshipKind = "calls"
	RelationshipUses       RelationshipKind = "uses"
	RelationshipImplements RelationshipKind = "implements"
	RelationshipContains   RelationshipKind = "contains"
	RelationshipImports    RelationshipKind = "imports"
)

// PendingRelationship is an unresolved reference awaiting conversion into
// a graph edge by the relationship resolver: a (source, target, kind) triple keyed by qualified
// name rather than entity id, since the target may not be indexed yet (or
// may be external to the repository entirely).
type PendingRelationship struct {
	PendingID    uuid.UUID
	RepositoryID uuid.UUID
	SourceFQN    string
	TargetFQN    string
	Kind         RelationshipKind
}

// OutboxEntry is a row read back off the outbox for projection by the outbox projector.
type OutboxEntry struct {
	OutboxID       uuid.UUID
	RepositoryID   uuid.UUID
	EntityID       string
	Operation      OutboxOperation
	TargetStore    TargetStore
	Payload        []byte // raw JSON
	CreatedAt      time.Time
	ProcessedAt    *time.Time
	RetryCount     int
	LastError      string
	CollectionName string
	EmbeddingID    *int64
}

// FileSnapshotUpdate is one row of UpdateFileSnapshotsBatch: the entity ids
// current file_path now owns, and the commit it was extracted at.
type FileSnapshotUpdate struct {
	FilePath      string
	EntityIDs     []string
	GitCommitHash string
}

// EmbeddingCacheEntry is one row to write via StoreEmbeddings: content hash,
// dense vector, and optional sparse vector.
type EmbeddingCacheEntry struct {
	ContentHash string
	Dense       []float32
	Sparse      []SparseEntry
}

// SparseEntry is one (dimension, weight) pair of a sparse embedding.
type SparseEntry struct {
	Index  uint32
	Weight float32
}

// CachedEmbedding is a row read back via GetEmbeddingsByContentHash.
type CachedEmbedding struct {
	EmbeddingID int64
	Dense       []float32
	Sparse      []SparseEntry
}

// BM25Statistics is the corpus-level state BM25 scoring needs: average
// document length, total token count, and entity count, all scoped to one
// repository.
type BM25Statistics struct {
	AvgDL       float64
	TotalTokens int64
	EntityCount int64
}

// FulltextHit is one row of SearchEntitiesFulltext: an entity id plus its
// Postgres ts_rank score against the query.
type FulltextHit struct {
	EntityID string
	Rank     float64
}

// Store is the relational store adapter: repository
// identity, entity metadata, file snapshots, the transactional outbox, the
// embedding cache, and BM25 statistics. Every write this layer requires
// to be atomic with an outbox append runs inside one transaction; there is
// no separate "write, then queue" step anywhere in this interface.
type Store interface {
	// EnsureRepository returns the repository's id, creating its row if
	// absent. The id is deterministic: derived from repositoryPath alone,
	// so re-indexing the same path after a restart (or from a second
	// process) always resolves to the same row rather than creating a
	// duplicate.
	EnsureRepository(ctx context.Context, repositoryPath, collectionName, repositoryName string) (uuid.UUID, error)

	// GetRepositoryByCollection looks up a repository by its vector-store
	// collection name.
	GetRepositoryByCollection(ctx context.Context, collectionName string) (uuid.UUID, string, error)

	// GetEntitiesMetadataBatch returns, for each known entity id, its
	// vector-store point id and deletion state. Entity ids with no row are
	// simply absent from the result map.
	GetEntitiesMetadataBatch(ctx context.Context, repositoryID uuid.UUID, entityIDs []string) (map[string]EntityMetadataLookup, error)

	// GetEntitiesByIDsBatch hydrates full EntityRecords for a batch of
	// entity ids, the form the search coordinator needs to return result
	// bodies (and the form rerank needs as candidate document content).
	// Entity ids with no row, or that are soft-deleted, are absent from
	// the result map.
	GetEntitiesByIDsBatch(ctx context.Context, repositoryID uuid.UUID, entityIDs []string) (map[string]EntityRecord, error)

	// SearchEntitiesFulltext runs a GIN-indexed Postgres full-text search
	// (the Fulltext search mode) over qualified name, name,
	// documentation, and content, ranked by ts_rank, scoped to
	// non-deleted entities in repositoryID.
	SearchEntitiesFulltext(ctx context.Context, repositoryID uuid.UUID, query string, limit int) ([]FulltextHit, error)

	// GetFileSnapshot returns the entity ids last recorded for filePath, or
	// nil if the file has never been indexed.
	GetFileSnapshot(ctx context.Context, repositoryID uuid.UUID, filePath string) ([]string, error)

	// UpdateFileSnapshotsBatch atomically upserts the snapshot row for
	// every file in updates.
	UpdateFileSnapshotsBatch(ctx context.Context, repositoryID uuid.UUID, updates []FileSnapshotUpdate) error

	// StoreEntitiesWithOutboxBatch writes entity metadata and a matching
	// outbox row for every entry, all inside one transaction, and returns
	// the generated outbox ids in entries order. len(entries) must not
	// exceed MaxEntitiesPerOperation. Each entry's PendingRelationships
	// are inserted in the same transaction as the entities they reference.
	StoreEntitiesWithOutboxBatch(ctx context.Context, repositoryID uuid.UUID, collectionName string, entries []EntityOutboxBatchEntry) ([]uuid.UUID, error)

	// InsertPendingRelationshipsBatch queues unresolved references for
	// later resolution by the relationship resolver. Exposed standalone (in addition to being
	// called internally by StoreEntitiesWithOutboxBatch) for callers that
	// want to seed rows without a full entity write.
	InsertPendingRelationshipsBatch(ctx context.Context, repositoryID uuid.UUID, rels []PendingRelationship) error

	// GetPendingRelationships returns up to limit unresolved rows for
	// repositoryID, ordered FIFO by created_at.
	GetPendingRelationships(ctx context.Context, repositoryID uuid.UUID, limit int) ([]PendingRelationship, error)

	// GetEntitiesByQualifiedNames resolves a batch of qualified names to
	// their entity ids. Names with no match (including any "external::"
	// prefixed name, which by construction never matches an indexed
	// entity) are simply absent from the result.
	GetEntitiesByQualifiedNames(ctx context.Context, repositoryID uuid.UUID, qualifiedNames []string) (map[string]string, error)

	// DeletePendingRelationshipsBatch removes resolved pending rows by id.
	DeletePendingRelationshipsBatch(ctx context.Context, pendingIDs []uuid.UUID) error

	// MarkEntitiesDeletedWithOutbox transactionally sets deleted_at on each
	// entity that exists, appends a Delete outbox row for each one
	// actually deleted, and decrements the repository's BM25 totals by
	// tokenCounts (index-aligned with entityIDs).
	MarkEntitiesDeletedWithOutbox(ctx context.Context, repositoryID uuid.UUID, entityIDs []string, tokenCounts []int) error

	// GetUnprocessedOutboxEntries returns up to limit outbox rows for
	// targetStore that have not yet been marked processed, ordered FIFO by
	// created_at.
	GetUnprocessedOutboxEntries(ctx context.Context, targetStore TargetStore, limit int) ([]OutboxEntry, error)

	// MarkOutboxProcessed sets processed_at on the given outbox row.
	MarkOutboxProcessed(ctx context.Context, outboxID uuid.UUID) error

	// RecordOutboxFailure increments retry_count and records lastError on
	// the given outbox row, for the caller's backoff/circuit-breaker logic
	// to act on.
	RecordOutboxFailure(ctx context.Context, outboxID uuid.UUID, lastError string) error

	// GetEmbeddingsByContentHash looks up cached embeddings for a batch of
	// content hashes, scoped to modelVersion. Hashes with no cache entry
	// are simply absent from the result.
	GetEmbeddingsByContentHash(ctx context.Context, contentHashes []string, modelVersion string) (map[string]CachedEmbedding, error)

	// GetEmbeddingsByID looks up cached embeddings by embedding_id, the
	// form the outbox projector needs: each OutboxEntry carries an
	// EmbeddingID rather than the content hash it was cached under. Ids
	// with no matching row are simply absent from the result.
	GetEmbeddingsByID(ctx context.Context, embeddingIDs []int64) (map[int64]CachedEmbedding, error)

	// StoreEmbeddings inserts new embedding cache rows, deduplicating on
	// (content_hash, model_version): an entry whose hash already exists
	// for modelVersion returns the existing embedding_id rather than
	// inserting a duplicate. Returns one id per entry, in entries order.
	StoreEmbeddings(ctx context.Context, entries []EmbeddingCacheEntry, modelVersion string, dimension int) ([]int64, error)

	// UpdateBM25StatisticsIncremental folds newTokenCounts into the
	// repository's running avgdl/total_tokens/entity_count and returns the
	// updated avgdl, in its own transaction. StoreEntitiesWithOutboxBatch
	// performs the equivalent update inline, in the same transaction as
	// the entity write, using each entry's TokenCount; this method exists
	// for standalone recomputation (e.g. a maintenance pass) and is not
	// called during normal indexing.
	UpdateBM25StatisticsIncremental(ctx context.Context, repositoryID uuid.UUID, newTokenCounts []int) (float64, error)

	// GetBM25Statistics returns the repository's current BM25 corpus
	// statistics for query-time scoring.
	GetBM25Statistics(ctx context.Context, repositoryID uuid.UUID) (BM25Statistics, error)

	// UpdateLastIndexedCommit stamps the repository's last_indexed_commit
	// column, recorded once per pipeline run after every stage completes
	// (the per-run recording step).
	UpdateLastIndexedCommit(ctx context.Context, repositoryID uuid.UUID, commitHash string) error

	// Close releases the store's connection pool.
	Close()
}
