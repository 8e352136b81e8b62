package outbox

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/codeindexd/internal/relational"
)

func newTestProjector(t *testing.T, store *fakeStore, vector *fakeVectorStore) *Projector {
	t.Helper()
	p, err := NewProjector(store, vector, Config{}, nil)
	require.NoError(t, err)
	return p
}

func insertRow(t *testing.T, repositoryID uuid.UUID, collection, pointID string, embeddingID int64) relational.OutboxEntry {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"entity": relational.EntityRecord{
			EntityID:      "e1",
			RepositoryID:  repositoryID.String(),
			QualifiedName: "pkg.Widget",
			EntityType:    "function",
		},
		"qdrant_point_id": pointID,
	})
	require.NoError(t, err)
	return relational.OutboxEntry{
		OutboxID:       uuid.New(),
		RepositoryID:   repositoryID,
		EntityID:       "e1",
		Operation:      relational.OutboxInsert,
		TargetStore:    relational.TargetQdrant,
		CollectionName: collection,
		EmbeddingID:    &embeddingID,
		Payload:        payload,
	}
}

func TestPollOnce_UpsertsInsertRowAndMarksProcessed(t *testing.T) {
	store := newFakeStore()
	repositoryID := uuid.New()
	row := insertRow(t, repositoryID, "collection-1", "point-1", 42)
	store.rows = append(store.rows, row)
	store.embeddingsByID[42] = relational.CachedEmbedding{EmbeddingID: 42, Dense: []float32{0.1, 0.2, 0.3}}

	vector := newFakeVectorStore()
	p := newTestProjector(t, store, vector)

	applied, err := p.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, applied)
	assert.True(t, store.processed[row.OutboxID])
	require.Len(t, vector.upserted["collection-1"], 1)
	assert.Equal(t, "point-1", vector.upserted["collection-1"][0].PointID)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vector.upserted["collection-1"][0].Dense)
}

func TestPollOnce_MissingEmbeddingRecordsFailureAndLeavesUnprocessed(t *testing.T) {
	store := newFakeStore()
	repositoryID := uuid.New()
	row := insertRow(t, repositoryID, "collection-1", "point-1", 99) // no cached embedding for id 99
	store.rows = append(store.rows, row)

	vector := newFakeVectorStore()
	p := newTestProjector(t, store, vector)

	applied, err := p.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, applied)
	assert.False(t, store.processed[row.OutboxID])
	assert.Len(t, store.failures[row.OutboxID], 1)
}

func TestPollOnce_DeleteResolvesEntityIDsToPointIDsBeforeDeleting(t *testing.T) {
	store := newFakeStore()
	repositoryID := uuid.New()
	store.metadata["e1"] = relational.EntityMetadataLookup{QdrantPointID: "point-1"}
	store.metadata["e2"] = relational.EntityMetadataLookup{QdrantPointID: "point-2"}

	payload, err := json.Marshal(map[string]any{"entity_ids": []string{"e1", "e2"}, "reason": "file_change"})
	require.NoError(t, err)
	row := relational.OutboxEntry{
		OutboxID:       uuid.New(),
		RepositoryID:   repositoryID,
		Operation:      relational.OutboxDelete,
		TargetStore:    relational.TargetQdrant,
		CollectionName: "collection-1",
		Payload:        payload,
	}
	store.rows = append(store.rows, row)

	vector := newFakeVectorStore()
	p := newTestProjector(t, store, vector)

	applied, err := p.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, applied)
	assert.ElementsMatch(t, []string{"point-1", "point-2"}, vector.deleted["collection-1"])
}

func TestPollOnce_RowsAtMaxRetriesAreSkippedWithoutReapplying(t *testing.T) {
	store := newFakeStore()
	repositoryID := uuid.New()
	row := insertRow(t, repositoryID, "collection-1", "point-1", 42)
	row.RetryCount = 5 // default MaxRetries
	store.rows = append(store.rows, row)
	store.embeddingsByID[42] = relational.CachedEmbedding{EmbeddingID: 42, Dense: []float32{0.1}}

	vector := newFakeVectorStore()
	p := newTestProjector(t, store, vector)

	applied, err := p.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, applied)
	assert.Empty(t, vector.upserted["collection-1"], "a row past max retries must not be applied again")
	assert.False(t, store.processed[row.OutboxID])
}

func TestPollOnce_EmbeddingExceedingMaxDimIsRejected(t *testing.T) {
	store := newFakeStore()
	repositoryID := uuid.New()
	row := insertRow(t, repositoryID, "collection-1", "point-1", 42)
	store.rows = append(store.rows, row)
	store.embeddingsByID[42] = relational.CachedEmbedding{EmbeddingID: 42, Dense: make([]float32, 10)}

	vector := newFakeVectorStore()
	p, err := NewProjector(store, vector, Config{MaxEmbeddingDim: 4}, nil)
	require.NoError(t, err)

	applied, err := p.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, applied)
	assert.Empty(t, vector.upserted["collection-1"])
}

func TestCollectionSetupFor_EnsuresCollectionOnceThenReusesCache(t *testing.T) {
	store := newFakeStore()
	vector := newFakeVectorStore()
	p := newTestProjector(t, store, vector)

	_, err := p.collectionSetupFor(context.Background(), "collection-1", 128, false)
	require.NoError(t, err)
	_, err = p.collectionSetupFor(context.Background(), "collection-1", 128, false)
	require.NoError(t, err)

	assert.Equal(t, 1, vector.ensureCalls)
}

func TestDrain_ReturnsImmediatelyWhenQueueEmpty(t *testing.T) {
	store := newFakeStore()
	vector := newFakeVectorStore()
	p, err := NewProjector(store, vector, Config{PollInterval: 0}, nil)
	require.NoError(t, err)

	err = p.Drain(context.Background())
	assert.NoError(t, err)
}

func TestDrain_DrainsPendingRowsBeforeReturning(t *testing.T) {
	store := newFakeStore()
	repositoryID := uuid.New()
	row := insertRow(t, repositoryID, "collection-1", "point-1", 42)
	store.rows = append(store.rows, row)
	store.embeddingsByID[42] = relational.CachedEmbedding{EmbeddingID: 42, Dense: []float32{0.1}}

	vector := newFakeVectorStore()
	p, err := NewProjector(store, vector, Config{PollInterval: time.Millisecond}, nil)
	require.NoError(t, err)

	err = p.Drain(context.Background())
	require.NoError(t, err)
	assert.True(t, store.processed[row.OutboxID])
}
