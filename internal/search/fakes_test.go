package search

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/codeindexd/internal/embeddings"
	"github.com/fyrsmithlabs/codeindexd/internal/relational"
	"github.com/fyrsmithlabs/codeindexd/internal/reranker"
	"github.com/fyrsmithlabs/codeindexd/internal/vectorstore"
)

// fakeStore is an in-memory relational.Store double exercising exactly
// the coordinator's dependencies: fulltext search and batch hydration.
// Methods the coordinator never calls return zero values.
type fakeStore struct {
	records  map[string]relational.EntityRecord
	fulltext []relational.FulltextHit
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]relational.EntityRecord)}
}

func (f *fakeStore) EnsureRepository(ctx context.Context, repositoryPath, collectionName, repositoryName string) (uuid.UUID, error) {
	return uuid.Nil, nil
}
func (f *fakeStore) GetRepositoryByCollection(ctx context.Context, collectionName string) (uuid.UUID, string, error) {
	return uuid.Nil, "", nil
}
func (f *fakeStore) GetEntitiesMetadataBatch(ctx context.Context, repositoryID uuid.UUID, entityIDs []string) (map[string]relational.EntityMetadataLookup, error) {
	return map[string]relational.EntityMetadataLookup{}, nil
}

func (f *fakeStore) GetEntitiesByIDsBatch(ctx context.Context, repositoryID uuid.UUID, entityIDs []string) (map[string]relational.EntityRecord, error) {
	out := make(map[string]relational.EntityRecord)
	for _, id := range entityIDs {
		if rec, ok := f.records[id]; ok {
			out[id] = rec
		}
	}
	return out, nil
}

func (f *fakeStore) SearchEntitiesFulltext(ctx context.Context, repositoryID uuid.UUID, query string, limit int) ([]relational.FulltextHit, error) {
	hits := make([]relational.FulltextHit, len(f.fulltext))
	copy(hits, f.fulltext)
	sort.Slice(hits, func(i, j int) bool { return hits[i].Rank > hits[j].Rank })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
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
	return nil, nil
}
func (f *fakeStore) MarkOutboxProcessed(ctx context.Context, outboxID uuid.UUID) error { return nil }
func (f *fakeStore) RecordOutboxFailure(ctx context.Context, outboxID uuid.UUID, lastError string) error {
	return nil
}
func (f *fakeStore) GetEmbeddingsByContentHash(ctx context.Context, contentHashes []string, modelVersion string) (map[string]relational.CachedEmbedding, error) {
	return map[string]relational.CachedEmbedding{}, nil
}
func (f *fakeStore) GetEmbeddingsByID(ctx context.Context, embeddingIDs []int64) (map[int64]relational.CachedEmbedding, error) {
	return map[int64]relational.CachedEmbedding{}, nil
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

// fakeVectorStore is an in-memory vectorstore.Store double returning
// canned SearchSimilar/SearchSimilarHybrid results and recording call
// arguments for assertion.
type fakeVectorStore struct {
	denseResults  []vectorstore.SearchResult
	hybridResults []vectorstore.SearchResult
	searchErr     error

	lastDense              []float32
	lastSparse             *vectorstore.SparseVector
	lastK                  int
	lastPrefetchMultiplier int
	hybridCalls            int
	denseOnlyCalls         int
}

func (v *fakeVectorStore) EnsureCollection(ctx context.Context, collection string, denseSize int, withSparse bool) error {
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
	return nil
}
func (v *fakeVectorStore) DeletePoints(ctx context.Context, collection string, pointIDs []string) error {
	return nil
}

func (v *fakeVectorStore) SearchSimilar(ctx context.Context, collection string, dense []float32, k int, filter map[string]any) ([]vectorstore.SearchResult, error) {
	v.denseOnlyCalls++
	v.lastDense = dense
	v.lastK = k
	if v.searchErr != nil {
		return nil, v.searchErr
	}
	return v.denseResults, nil
}

func (v *fakeVectorStore) SearchSimilarHybrid(ctx context.Context, collection string, dense []float32, sparse *vectorstore.SparseVector, k int, prefetchMultiplier int, filter map[string]any) ([]vectorstore.SearchResult, error) {
	v.hybridCalls++
	v.lastDense = dense
	v.lastSparse = sparse
	v.lastK = k
	v.lastPrefetchMultiplier = prefetchMultiplier
	if v.searchErr != nil {
		return nil, v.searchErr
	}
	return v.hybridResults, nil
}

func (v *fakeVectorStore) Close() error { return nil }

var _ vectorstore.Store = (*fakeVectorStore)(nil)

// fakeDenseProvider records the text it was last asked to embed, so tests
// can assert the instruction-prefix formatting was applied.
type fakeDenseProvider struct {
	lastQuery string
}

func (p *fakeDenseProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1}
	}
	return out, nil
}

func (p *fakeDenseProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	p.lastQuery = text
	return []float32{float32(len(text))}, nil
}

func (p *fakeDenseProvider) Dimension() int { return 1 }
func (p *fakeDenseProvider) Close() error   { return nil }

var _ embeddings.Provider = (*fakeDenseProvider)(nil)

// fakeSparseProvider returns a fixed non-empty sparse vector, or an error
// when forced, to exercise the dense-only fallback path.
type fakeSparseProvider struct {
	err error
}

func (p *fakeSparseProvider) EmbedSparseDocuments(ctx context.Context, texts []string) ([]*vectorstore.SparseVector, error) {
	if p.err != nil {
		return nil, p.err
	}
	out := make([]*vectorstore.SparseVector, len(texts))
	for i := range texts {
		out[i] = &vectorstore.SparseVector{Indices: []uint32{1}, Values: []float32{1}}
	}
	return out, nil
}

var _ embeddings.SparseProvider = (*fakeSparseProvider)(nil)

// fakeReranker reverses candidate order to make its effect on result
// order unambiguous in tests, or errors when forced.
type fakeReranker struct {
	err error
}

func (r *fakeReranker) Rerank(ctx context.Context, query string, docs []reranker.Document, topK int) ([]reranker.ScoredDocument, error) {
	if r.err != nil {
		return nil, r.err
	}
	out := make([]reranker.ScoredDocument, 0, len(docs))
	for i := len(docs) - 1; i >= 0; i-- {
		out = append(out, reranker.ScoredDocument{
			Document:      docs[i],
			RerankerScore: float32(i),
			OriginalRank:  len(docs) - 1 - i,
		})
	}
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func (r *fakeReranker) Close() error { return nil }

var _ reranker.Reranker = (*fakeReranker)(nil)
