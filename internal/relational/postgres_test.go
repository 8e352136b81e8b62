package relational_test

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/codeindexd/internal/relational"
)

// testDSN returns the test database DSN from the environment, or skips the
// test if CODEINDEXD_TEST_POSTGRES_DSN is not set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("CODEINDEXD_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CODEINDEXD_TEST_POSTGRES_DSN not set — skipping PostgreSQL integration tests")
	}
	return dsn
}

// newTestStore creates a fresh *relational.PostgresStore against a dropped
// and re-migrated schema.
func newTestStore(t *testing.T) *relational.PostgresStore {
	t.Helper()
	dsn := testDSN(t)
	ctx := context.Background()

	cleanPool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(cleanPool.Close)
	_, err = cleanPool.Exec(ctx, `DROP SCHEMA public CASCADE; CREATE SCHEMA public;`)
	require.NoError(t, err)

	store, err := relational.NewStore(ctx, relational.PostgresConfig{DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(store.Close)
	return store
}

func TestEnsureRepository_DeterministicAndIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id1, err := store.EnsureRepository(ctx, "/repos/widget", "widget_collection", "widget")
	require.NoError(t, err)

	id2, err := store.EnsureRepository(ctx, "/repos/widget", "widget_collection", "widget")
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	// Same deterministic id as a standalone derivation from the same path.
	assert.Equal(t, relational.GenerateRepositoryID("/repos/widget"), id1)
}

func TestStoreEntitiesWithOutboxBatch_AtomicWithOutbox(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	repoID, err := store.EnsureRepository(ctx, "/repos/widget", "widget_collection", "widget")
	require.NoError(t, err)

	entry := relational.EntityOutboxBatchEntry{
		Entity: relational.EntityRecord{
			EntityID:      "entity-1",
			RepositoryID:  repoID.String(),
			QualifiedName: "widget.Widget",
			EntityType:    "struct",
			ContentHash:   "hash-1",
		},
		EmbeddingID: 1,
		Operation:   relational.OutboxInsert,
		PointID:     uuid.New().String(),
		TargetStore: relational.TargetQdrant,
		TokenCount:  10,
	}

	outboxIDs, err := store.StoreEntitiesWithOutboxBatch(ctx, repoID, "widget_collection", []relational.EntityOutboxBatchEntry{entry})
	require.NoError(t, err)
	require.Len(t, outboxIDs, 1)

	meta, err := store.GetEntitiesMetadataBatch(ctx, repoID, []string{"entity-1"})
	require.NoError(t, err)
	require.Contains(t, meta, "entity-1")
	assert.Equal(t, entry.PointID, meta["entity-1"].QdrantPointID)
	assert.True(t, meta["entity-1"].DeletedAt.IsZero())

	entries, err := store.GetUnprocessedOutboxEntries(ctx, relational.TargetQdrant, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "entity-1", entries[0].EntityID)
	assert.Equal(t, relational.OutboxInsert, entries[0].Operation)

	stats, err := store.GetBM25Statistics(ctx, repoID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.EntityCount)
	assert.Equal(t, int64(10), stats.TotalTokens)
	assert.InDelta(t, 10.0, stats.AvgDL, 0.0001)
}

func TestMarkEntitiesDeletedWithOutbox(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	repoID, err := store.EnsureRepository(ctx, "/repos/widget", "widget_collection", "widget")
	require.NoError(t, err)

	entry := relational.EntityOutboxBatchEntry{
		Entity:      relational.EntityRecord{EntityID: "entity-1", RepositoryID: repoID.String(), ContentHash: "hash-1"},
		EmbeddingID: 1,
		Operation:   relational.OutboxInsert,
		PointID:     uuid.New().String(),
		TargetStore: relational.TargetQdrant,
		TokenCount:  10,
	}
	_, err = store.StoreEntitiesWithOutboxBatch(ctx, repoID, "widget_collection", []relational.EntityOutboxBatchEntry{entry})
	require.NoError(t, err)

	err = store.MarkEntitiesDeletedWithOutbox(ctx, repoID, []string{"entity-1", "does-not-exist"}, []int{10, 5})
	require.NoError(t, err)

	meta, err := store.GetEntitiesMetadataBatch(ctx, repoID, []string{"entity-1"})
	require.NoError(t, err)
	assert.False(t, meta["entity-1"].DeletedAt.IsZero())

	entries, err := store.GetUnprocessedOutboxEntries(ctx, relational.TargetQdrant, 10)
	require.NoError(t, err)
	var deleteCount int
	for _, e := range entries {
		if e.Operation == relational.OutboxDelete {
			deleteCount++
		}
	}
	assert.Equal(t, 1, deleteCount, "only the entity that actually existed should get a delete outbox row")

	stats, err := store.GetBM25Statistics(ctx, repoID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.EntityCount)
	assert.Equal(t, int64(0), stats.TotalTokens)
}

func TestOutboxProcessingLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	repoID, err := store.EnsureRepository(ctx, "/repos/widget", "widget_collection", "widget")
	require.NoError(t, err)

	entry := relational.EntityOutboxBatchEntry{
		Entity:      relational.EntityRecord{EntityID: "entity-1", RepositoryID: repoID.String(), ContentHash: "hash-1"},
		EmbeddingID: 1,
		Operation:   relational.OutboxInsert,
		PointID:     uuid.New().String(),
		TargetStore: relational.TargetQdrant,
		TokenCount:  10,
	}
	outboxIDs, err := store.StoreEntitiesWithOutboxBatch(ctx, repoID, "widget_collection", []relational.EntityOutboxBatchEntry{entry})
	require.NoError(t, err)
	require.Len(t, outboxIDs, 1)

	require.NoError(t, store.RecordOutboxFailure(ctx, outboxIDs[0], "transient network error"))

	entries, err := store.GetUnprocessedOutboxEntries(ctx, relational.TargetQdrant, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].RetryCount)
	assert.Equal(t, "transient network error", entries[0].LastError)

	require.NoError(t, store.MarkOutboxProcessed(ctx, outboxIDs[0]))

	entries, err = store.GetUnprocessedOutboxEntries(ctx, relational.TargetQdrant, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEmbeddingCache_DeduplicatesByContentHashAndModel(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entries := []relational.EmbeddingCacheEntry{
		{ContentHash: "hash-a", Dense: []float32{0.1, 0.2}},
	}
	ids1, err := store.StoreEmbeddings(ctx, entries, "model-v1", 2)
	require.NoError(t, err)
	require.Len(t, ids1, 1)

	ids2, err := store.StoreEmbeddings(ctx, entries, "model-v1", 2)
	require.NoError(t, err)
	assert.Equal(t, ids1, ids2, "re-storing the same content hash and model version must reuse the embedding id")

	cached, err := store.GetEmbeddingsByContentHash(ctx, []string{"hash-a"}, "model-v1")
	require.NoError(t, err)
	require.Contains(t, cached, "hash-a")
	assert.Equal(t, ids1[0], cached["hash-a"].EmbeddingID)
}

func TestFileSnapshotsBatch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	repoID, err := store.EnsureRepository(ctx, "/repos/widget", "widget_collection", "widget")
	require.NoError(t, err)

	snap, err := store.GetFileSnapshot(ctx, repoID, "src/widget.rs")
	require.NoError(t, err)
	assert.Nil(t, snap)

	err = store.UpdateFileSnapshotsBatch(ctx, repoID, []relational.FileSnapshotUpdate{
		{FilePath: "src/widget.rs", EntityIDs: []string{"entity-1", "entity-2"}, GitCommitHash: "abc123"},
	})
	require.NoError(t, err)

	snap, err = store.GetFileSnapshot(ctx, repoID, "src/widget.rs")
	require.NoError(t, err)
	assert.Equal(t, []string{"entity-1", "entity-2"}, snap)
}

func TestSearchEntitiesFulltext_RanksByRelevance(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	repoID, err := store.EnsureRepository(ctx, "/repos/widget", "widget_collection", "widget")
	require.NoError(t, err)

	entries := []relational.EntityOutboxBatchEntry{
		{
			Entity: relational.EntityRecord{
				EntityID: "entity-1", RepositoryID: repoID.String(), QualifiedName: "widget.Render",
				Name: "Render", Documentation: "Renders the widget to the screen", ContentHash: "hash-1",
			},
			EmbeddingID: 1, Operation: relational.OutboxInsert, PointID: uuid.New().String(), TargetStore: relational.TargetQdrant,
		},
		{
			Entity: relational.EntityRecord{
				EntityID: "entity-2", RepositoryID: repoID.String(), QualifiedName: "widget.Parse",
				Name: "Parse", Documentation: "Parses widget configuration", ContentHash: "hash-2",
			},
			EmbeddingID: 2, Operation: relational.OutboxInsert, PointID: uuid.New().String(), TargetStore: relational.TargetQdrant,
		},
	}
	_, err = store.StoreEntitiesWithOutboxBatch(ctx, repoID, "widget_collection", entries)
	require.NoError(t, err)

	hits, err := store.SearchEntitiesFulltext(ctx, repoID, "render screen", 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "entity-1", hits[0].EntityID)
}

func TestGetEntitiesByIDsBatch_HydratesFullRecordAndSkipsDeleted(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	repoID, err := store.EnsureRepository(ctx, "/repos/widget", "widget_collection", "widget")
	require.NoError(t, err)

	entries := []relational.EntityOutboxBatchEntry{
		{
			Entity:      relational.EntityRecord{EntityID: "entity-1", RepositoryID: repoID.String(), QualifiedName: "widget.Widget", ContentHash: "hash-1"},
			EmbeddingID: 1, Operation: relational.OutboxInsert, PointID: uuid.New().String(), TargetStore: relational.TargetQdrant,
		},
		{
			Entity:      relational.EntityRecord{EntityID: "entity-2", RepositoryID: repoID.String(), QualifiedName: "widget.Gone", ContentHash: "hash-2"},
			EmbeddingID: 2, Operation: relational.OutboxInsert, PointID: uuid.New().String(), TargetStore: relational.TargetQdrant,
		},
	}
	_, err = store.StoreEntitiesWithOutboxBatch(ctx, repoID, "widget_collection", entries)
	require.NoError(t, err)
	require.NoError(t, store.MarkEntitiesDeletedWithOutbox(ctx, repoID, []string{"entity-2"}, []int{0}))

	records, err := store.GetEntitiesByIDsBatch(ctx, repoID, []string{"entity-1", "entity-2"})
	require.NoError(t, err)
	require.Contains(t, records, "entity-1")
	assert.Equal(t, "widget.Widget", records["entity-1"].QualifiedName)
	assert.NotContains(t, records, "entity-2", "soft-deleted entities must not hydrate")
}
