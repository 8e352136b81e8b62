package graph

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/codeindexd/internal/relational"
)

// fakeRelationalStore is an in-memory relational.Store double exercising
// exactly the resolver's dependencies: pending relationship storage and
// qualified-name lookup. Methods the resolver never calls return zero
// values rather than panicking.
type fakeRelationalStore struct {
	mu sync.Mutex

	pending     []relational.PendingRelationship
	deleted     map[uuid.UUID]bool
	entityByFQN map[string]string
}

func newFakeRelationalStore() *fakeRelationalStore {
	return &fakeRelationalStore{
		deleted:     make(map[uuid.UUID]bool),
		entityByFQN: make(map[string]string),
	}
}

func (f *fakeRelationalStore) EnsureRepository(ctx context.Context, repositoryPath, collectionName, repositoryName string) (uuid.UUID, error) {
	return uuid.Nil, nil
}

func (f *fakeRelationalStore) GetRepositoryByCollection(ctx context.Context, collectionName string) (uuid.UUID, string, error) {
	return uuid.Nil, "", nil
}

func (f *fakeRelationalStore) GetEntitiesMetadataBatch(ctx context.Context, repositoryID uuid.UUID, entityIDs []string) (map[string]relational.EntityMetadataLookup, error) {
	return map[string]relational.EntityMetadataLookup{}, nil
}

func (f *fakeRelationalStore) GetEntitiesByIDsBatch(ctx context.Context, repositoryID uuid.UUID, entityIDs []string) (map[string]relational.EntityRecord, error) {
	return map[string]relational.EntityRecord{}, nil
}

func (f *fakeRelationalStore) SearchEntitiesFulltext(ctx context.Context, repositoryID uuid.UUID, query string, limit int) ([]relational.FulltextHit, error) {
	return nil, nil
}

func (f *fakeRelationalStore) GetFileSnapshot(ctx context.Context, repositoryID uuid.UUID, filePath string) ([]string, error) {
	return nil, nil
}

func (f *fakeRelationalStore) UpdateFileSnapshotsBatch(ctx context.Context, repositoryID uuid.UUID, updates []relational.FileSnapshotUpdate) error {
	return nil
}

func (f *fakeRelationalStore) StoreEntitiesWithOutboxBatch(ctx context.Context, repositoryID uuid.UUID, collectionName string, entries []relational.EntityOutboxBatchEntry) ([]uuid.UUID, error) {
	return nil, nil
}

func (f *fakeRelationalStore) MarkEntitiesDeletedWithOutbox(ctx context.Context, repositoryID uuid.UUID, entityIDs []string, tokenCounts []int) error {
	return nil
}

func (f *fakeRelationalStore) GetUnprocessedOutboxEntries(ctx context.Context, targetStore relational.TargetStore, limit int) ([]relational.OutboxEntry, error) {
	return nil, nil
}

func (f *fakeRelationalStore) MarkOutboxProcessed(ctx context.Context, outboxID uuid.UUID) error {
	return nil
}

func (f *fakeRelationalStore) RecordOutboxFailure(ctx context.Context, outboxID uuid.UUID, lastError string) error {
	return nil
}

func (f *fakeRelationalStore) GetEmbeddingsByContentHash(ctx context.Context, contentHashes []string, modelVersion string) (map[string]relational.CachedEmbedding, error) {
	return map[string]relational.CachedEmbedding{}, nil
}

func (f *fakeRelationalStore) GetEmbeddingsByID(ctx context.Context, embeddingIDs []int64) (map[int64]relational.CachedEmbedding, error) {
	return map[int64]relational.CachedEmbedding{}, nil
}

func (f *fakeRelationalStore) StoreEmbeddings(ctx context.Context, entries []relational.EmbeddingCacheEntry, modelVersion string, dimension int) ([]int64, error) {
	return nil, nil
}

func (f *fakeRelationalStore) UpdateBM25StatisticsIncremental(ctx context.Context, repositoryID uuid.UUID, newTokenCounts []int) (float64, error) {
	return 0, nil
}

func (f *fakeRelationalStore) GetBM25Statistics(ctx context.Context, repositoryID uuid.UUID) (relational.BM25Statistics, error) {
	return relational.BM25Statistics{}, nil
}

func (f *fakeRelationalStore) UpdateLastIndexedCommit(ctx context.Context, repositoryID uuid.UUID, commitHash string) error {
	return nil
}

func (f *fakeRelationalStore) InsertPendingRelationshipsBatch(ctx context.Context, repositoryID uuid.UUID, rels []relational.PendingRelationship) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, rels...)
	return nil
}

func (f *fakeRelationalStore) GetPendingRelationships(ctx context.Context, repositoryID uuid.UUID, limit int) ([]relational.PendingRelationship, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []relational.PendingRelationship
	for _, rel := range f.pending {
		if f.deleted[rel.PendingID] {
			continue
		}
		out = append(out, rel)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeRelationalStore) GetEntitiesByQualifiedNames(ctx context.Context, repositoryID uuid.UUID, qualifiedNames []string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make(map[string]string)
	for _, fqn := range qualifiedNames {
		if id, ok := f.entityByFQN[fqn]; ok {
			result[fqn] = id
		}
	}
	return result, nil
}

func (f *fakeRelationalStore) DeletePendingRelationshipsBatch(ctx context.Context, pendingIDs []uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range pendingIDs {
		f.deleted[id] = true
	}
	return nil
}

func (f *fakeRelationalStore) Close() {}

var _ relational.Store = (*fakeRelationalStore)(nil)

// fakeGraphStore is an in-memory Store double recording every edge/node
// call for assertion.
type fakeGraphStore struct {
	mu sync.Mutex

	edges      []Edge
	nodes      map[string]string // entity_id -> entity_type
	deletedIDs []string
}

func newFakeGraphStore() *fakeGraphStore {
	return &fakeGraphStore{nodes: make(map[string]string)}
}

func (g *fakeGraphStore) EnsureSchema(ctx context.Context) error { return nil }

func (g *fakeGraphStore) UpsertEntityNodes(ctx context.Context, repositoryID uuid.UUID, entityIDs []string, entityTypes map[string]string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, id := range entityIDs {
		g.nodes[id] = entityTypes[id]
	}
	return nil
}

func (g *fakeGraphStore) UpsertEdges(ctx context.Context, edges []Edge) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.edges = append(g.edges, edges...)
	return nil
}

func (g *fakeGraphStore) DeleteEntityNodes(ctx context.Context, repositoryID uuid.UUID, entityIDs []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deletedIDs = append(g.deletedIDs, entityIDs...)
	return nil
}

func (g *fakeGraphStore) Close(ctx context.Context) error { return nil }

var _ Store = (*fakeGraphStore)(nil)
