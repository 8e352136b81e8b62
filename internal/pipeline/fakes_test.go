package pipeline

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/codeindexd/internal/embeddings"
	"github.com/fyrsmithlabs/codeindexd/internal/relational"
	"github.com/fyrsmithlabs/codeindexd/internal/vectorstore"
)

// fakeStore is an in-memory relational.Store double exercising exactly the
// subset of behavior the pipeline stages depend on: the embedding cache,
// entity/outbox writes, file snapshots, and BM25 statistics. Methods the
// pipeline never calls (outbox draining, standalone BM25 recompute) return
// zero values rather than panicking, since some tests construct a fakeStore
// without populating every corner.
type fakeStore struct {
	mu sync.Mutex

	repositoryID uuid.UUID

	cacheByHash map[string]relational.CachedEmbedding
	nextEmbedID int64

	storedEntities       []relational.EntityOutboxBatchEntry
	pendingRelationships []relational.PendingRelationship
	snapshots            map[string][]string

	lastIndexedCommit string

	bm25 relational.BM25Statistics
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		repositoryID: uuid.New(),
		cacheByHash:  make(map[string]relational.CachedEmbedding),
		snapshots:    make(map[string][]string),
	}
}

func (f *fakeStore) EnsureRepository(ctx context.Context, repositoryPath, collectionName, repositoryName string) (uuid.UUID, error) {
	return f.repositoryID, nil
}

func (f *fakeStore) GetRepositoryByCollection(ctx context.Context, collectionName string) (uuid.UUID, string, error) {
	return f.repositoryID, "", nil
}

func (f *fakeStore) GetEntitiesMetadataBatch(ctx context.Context, repositoryID uuid.UUID, entityIDs []string) (map[string]relational.EntityMetadataLookup, error) {
	return map[string]relational.EntityMetadataLookup{}, nil
}

func (f *fakeStore) GetEntitiesByIDsBatch(ctx context.Context, repositoryID uuid.UUID, entityIDs []string) (map[string]relational.EntityRecord, error) {
	return map[string]relational.EntityRecord{}, nil
}

func (f *fakeStore) SearchEntitiesFulltext(ctx context.Context, repositoryID uuid.UUID, query string, limit int) ([]relational.FulltextHit, error) {
	return nil, nil
}

func (f *fakeStore) GetFileSnapshot(ctx context.Context, repositoryID uuid.UUID, filePath string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshots[filePath], nil
}

func (f *fakeStore) UpdateFileSnapshotsBatch(ctx context.Context, repositoryID uuid.UUID, updates []relational.FileSnapshotUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range updates {
		f.snapshots[u.FilePath] = u.EntityIDs
	}
	return nil
}

func (f *fakeStore) StoreEntitiesWithOutboxBatch(ctx context.Context, repositoryID uuid.UUID, collectionName string, entries []relational.EntityOutboxBatchEntry) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.storedEntities = append(f.storedEntities, entries...)
	ids := make([]uuid.UUID, len(entries))
	for i := range entries {
		ids[i] = uuid.New()
	}
	return ids, nil
}

func (f *fakeStore) MarkEntitiesDeletedWithOutbox(ctx context.Context, repositoryID uuid.UUID, entityIDs []string, tokenCounts []int) error {
	return nil
}

func (f *fakeStore) GetUnprocessedOutboxEntries(ctx context.Context, targetStore relational.TargetStore, limit int) ([]relational.OutboxEntry, error) {
	return nil, nil
}

func (f *fakeStore) MarkOutboxProcessed(ctx context.Context, outboxID uuid.UUID) error {
	return nil
}

func (f *fakeStore) RecordOutboxFailure(ctx context.Context, outboxID uuid.UUID, lastError string) error {
	return nil
}

func (f *fakeStore) GetEmbeddingsByContentHash(ctx context.Context, contentHashes []string, modelVersion string) (map[string]relational.CachedEmbedding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make(map[string]relational.CachedEmbedding)
	for _, h := range contentHashes {
		if ce, ok := f.cacheByHash[h]; ok {
			result[h] = ce
		}
	}
	return result, nil
}

func (f *fakeStore) GetEmbeddingsByID(ctx context.Context, embeddingIDs []int64) (map[int64]relational.CachedEmbedding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wanted := make(map[int64]bool, len(embeddingIDs))
	for _, id := range embeddingIDs {
		wanted[id] = true
	}
	result := make(map[int64]relational.CachedEmbedding)
	for _, ce := range f.cacheByHash {
		if wanted[ce.EmbeddingID] {
			result[ce.EmbeddingID] = ce
		}
	}
	return result, nil
}

func (f *fakeStore) StoreEmbeddings(ctx context.Context, entries []relational.EmbeddingCacheEntry, modelVersion string, dimension int) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]int64, len(entries))
	for i, e := range entries {
		if ce, ok := f.cacheByHash[e.ContentHash]; ok {
			ids[i] = ce.EmbeddingID
			continue
		}
		f.nextEmbedID++
		id := f.nextEmbedID
		f.cacheByHash[e.ContentHash] = relational.CachedEmbedding{EmbeddingID: id, Dense: e.Dense, Sparse: e.Sparse}
		ids[i] = id
	}
	return ids, nil
}

func (f *fakeStore) UpdateBM25StatisticsIncremental(ctx context.Context, repositoryID uuid.UUID, newTokenCounts []int) (float64, error) {
	return f.bm25.AvgDL, nil
}

func (f *fakeStore) GetBM25Statistics(ctx context.Context, repositoryID uuid.UUID) (relational.BM25Statistics, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bm25, nil
}

func (f *fakeStore) UpdateLastIndexedCommit(ctx context.Context, repositoryID uuid.UUID, commitHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastIndexedCommit = commitHash
	return nil
}

func (f *fakeStore) InsertPendingRelationshipsBatch(ctx context.Context, repositoryID uuid.UUID, rels []relational.PendingRelationship) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pendingRelationships = append(f.pendingRelationships, rels...)
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

// fakeDenseProvider is a deterministic stand-in for embeddings.Provider:
// every text maps to a 1-dimensional vector keyed on its length, avoiding
// any real model dependency in tests.
type fakeDenseProvider struct {
	calls int
	mu    sync.Mutex
}

func (p *fakeDenseProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

func (p *fakeDenseProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text))}, nil
}

func (p *fakeDenseProvider) Dimension() int { return 1 }
func (p *fakeDenseProvider) Close() error   { return nil }

var _ embeddings.Provider = (*fakeDenseProvider)(nil)

// fakeSparseProvider returns an empty sparse vector per text, sufficient
// for tests that only assert on dense-side cache behavior.
type fakeSparseProvider struct{}

func (fakeSparseProvider) EmbedSparseDocuments(ctx context.Context, texts []string) ([]*vectorstore.SparseVector, error) {
	out := make([]*vectorstore.SparseVector, len(texts))
	for i := range texts {
		out[i] = &vectorstore.SparseVector{}
	}
	return out, nil
}

var _ embeddings.SparseProvider = fakeSparseProvider{}
