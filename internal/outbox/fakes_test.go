package outbox

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/codeindexd/internal/relational"
	"github.com/fyrsmithlabs/codeindexd/internal/vectorstore"
)

// fakeStore is an in-memory relational.Store double exercising exactly the
// outbox projector's dependencies: unprocessed rows, processed/failure
// bookkeeping, embedding lookup by id, and entity-id-to-point-id
// resolution for deletes. Methods the projector never calls return zero
// values rather than panicking.
type fakeStore struct {
	mu sync.Mutex

	rows           []relational.OutboxEntry
	processed      map[uuid.UUID]bool
	failures       map[uuid.UUID][]string
	embeddingsByID map[int64]relational.CachedEmbedding
	metadata       map[string]relational.EntityMetadataLookup
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		processed:      make(map[uuid.UUID]bool),
		failures:       make(map[uuid.UUID][]string),
		embeddingsByID: make(map[int64]relational.CachedEmbedding),
		metadata:       make(map[string]relational.EntityMetadataLookup),
	}
}

func (f *fakeStore) EnsureRepository(ctx context.Context, repositoryPath, collectionName, repositoryName string) (uuid.UUID, error) {
	return uuid.Nil, nil
}

func (f *fakeStore) GetRepositoryByCollection(ctx context.Context, collectionName string) (uuid.UUID, string, error) {
	return uuid.Nil, "", nil
}

func (f *fakeStore) GetEntitiesMetadataBatch(ctx context.Context, repositoryID uuid.UUID, entityIDs []string) (map[string]relational.EntityMetadataLookup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make(map[string]relational.EntityMetadataLookup)
	for _, id := range entityIDs {
		if meta, ok := f.metadata[id]; ok {
			result[id] = meta
		}
	}
	return result, nil
}

func (f *fakeStore) GetEntitiesByIDsBatch(ctx context.Context, repositoryID uuid.UUID, entityIDs []string) (map[string]relational.EntityRecord, error) {
	return map[string]relational.EntityRecord{}, nil
}

func (f *fakeStore) SearchEntitiesFulltext(ctx context.Context, repositoryID uuid.UUID, query string, limit int) ([]relational.FulltextHit, error) {
	return nil, nil
}

func (f *fakeStore) GetFileSnapshot(ctx context.Context, repositoryID uuid.UUID, filePath string) ([]string, error) {
	return nil, nil
}

func (f *fakeStore) UpdateFileSnapshotsBatch(ctx context.Context, repositoryID uuid.UUID, updates []relational.FileSnapshotUpdate) error {
	return nil
}

func (f *fakeStore) StoreEntitiesWithOutboxBatch(ctx context.Context, repositoryID uuid.UUID, collectionName string, entries []relational.EntityOutboxBatchEntry) ([]uuid.UUID, error) {
	return nil, nil
}

func (f *fakeStore) MarkEntitiesDeletedWithOutbox(ctx context.Context, repositoryID uuid.UUID, entityIDs []string, tokenCounts []int) error {
	return nil
}

func (f *fakeStore) GetUnprocessedOutboxEntries(ctx context.Context, targetStore relational.TargetStore, limit int) ([]relational.OutboxEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []relational.OutboxEntry
	for _, r := range f.rows {
		if r.TargetStore != targetStore || f.processed[r.OutboxID] {
			continue
		}
		out = append(out, r)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) MarkOutboxProcessed(ctx context.Context, outboxID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed[outboxID] = true
	return nil
}

func (f *fakeStore) RecordOutboxFailure(ctx context.Context, outboxID uuid.UUID, lastError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[outboxID] = append(f.failures[outboxID], lastError)
	for i := range f.rows {
		if f.rows[i].OutboxID == outboxID {
			f.rows[i].RetryCount++
		}
	}
	return nil
}

func (f *fakeStore) GetEmbeddingsByContentHash(ctx context.Context, contentHashes []string, modelVersion string) (map[string]relational.CachedEmbedding, error) {
	return map[string]relational.CachedEmbedding{}, nil
}

func (f *fakeStore) GetEmbeddingsByID(ctx context.Context, embeddingIDs []int64) (map[int64]relational.CachedEmbedding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make(map[int64]relational.CachedEmbedding)
	for _, id := range embeddingIDs {
		if e, ok := f.embeddingsByID[id]; ok {
			result[id] = e
		}
	}
	return result, nil
}

func (f *fakeStore) StoreEmbeddings(ctx context.Context, entries []relational.EmbeddingCacheEntry, modelVersion string, dimension int) ([]int64, error) {
	return nil, nil
}

func (f *fakeStore) UpdateBM25StatisticsIncremental(ctx context.Context, repositoryID uuid.UUID, newTokenCounts []int) (float64, error) {
	return 0, nil
}

func (f *fakeStore) GetBM25Statistics(ctx context.Context, repositoryID uuid.UUID) (relational.BM25Statistics, error) {
	return relational.BM25Statistics{}, nil
}

func (f *fakeStore) UpdateLastIndexedCommit(ctx context.Context, repositoryID uuid.UUID, commitHash string) error {
	return nil
}

func (f *fakeStore) InsertPendingRelationshipsBatch(ctx context.Context, repositoryID uuid.UUID, rels []relational.PendingRelationship) error {
	return nil
}

func (f *fakeStore) GetPendingRelationships(ctx context.Context, repositoryID uuid.UUID, limit int) ([]relational.PendingRelationship, error) {
	return nil, nil
}

func (f *fakeStore) GetEntitiesByQualifiedNames(ctx context.Context, repositoryID uuid.UUID, qualifiedNames []string) (map[string]string, error) {
	return map[string]string{}, nil
}

func (f *fakeStore) DeletePendingRelationshipsBatch(ctx context.Context, pendingIDs []uuid.UUID) error {
	return nil
}

func (f *fakeStore) Close() {}

var _ relational.Store = (*fakeStore)(nil)

// fakeVectorStore is an in-memory vectorstore.Store double recording
// every upsert/delete call for assertion, and every EnsureCollection call
// so tests can check the LRU cache actually amortizes repeat setup.
type fakeVectorStore struct {
	mu sync.Mutex

	ensureCalls int
	upserted    map[string][]vectorstore.Point // collection -> points
	deleted     map[string][]string            // collection -> point ids
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{
		upserted: make(map[string][]vectorstore.Point),
		deleted:  make(map[string][]string),
	}
}

func (v *fakeVectorStore) EnsureCollection(ctx context.Context, collection string, denseSize int, withSparse bool) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.ensureCalls++
	return nil
}

func (v *fakeVectorStore) DeleteCollection(ctx context.Context, collection string) error { return nil }

func (v *fakeVectorStore) CollectionExists(ctx context.Context, collection string) (bool, error) {
	return true, nil
}

func (v *fakeVectorStore) GetCollectionInfo(ctx context.Context, collection string) (*vectorstore.CollectionInfo, error) {
	return &vectorstore.CollectionInfo{Name: collection}, nil
}

func (v *fakeVectorStore) UpsertPoints(ctx context.Context, collection string, points []vectorstore.Point) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.upserted[collection] = append(v.upserted[collection], points...)
	return nil
}

func (v *fakeVectorStore) DeletePoints(ctx context.Context, collection string, pointIDs []string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.deleted[collection] = append(v.deleted[collection], pointIDs...)
	return nil
}

func (v *fakeVectorStore) SearchSimilar(ctx context.Context, collection string, dense []float32, k int, filter map[string]any) ([]vectorstore.SearchResult, error) {
	return nil, nil
}

func (v *fakeVectorStore) SearchSimilarHybrid(ctx context.Context, collection string, dense []float32, sparse *vectorstore.SparseVector, k int, prefetchMultiplier int, filter map[string]any) ([]vectorstore.SearchResult, error) {
	return nil, nil
}

func (v *fakeVectorStore) Close() error { return nil }

var _ vectorstore.Store = (*fakeVectorStore)(nil)
