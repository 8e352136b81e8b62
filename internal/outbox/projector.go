package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/codeindexd/internal/logging"
	"github.com/fyrsmithlabs/codeindexd/internal/relational"
	"github.com/fyrsmithlabs/codeindexd/internal/vectorstore"
)

// collectionSetup is what the projector caches per collection so a row
// destined for a collection it has already seen this process doesn't pay
// for another EnsureCollection round trip.
type collectionSetup struct {
	denseSize int
	hasSparse bool
}

// insertPayload is the JSON shape StoreEntitiesWithOutboxBatch writes for
// Insert/Update rows.
type insertPayload struct {
	Entity        relational.EntityRecord `json:"entity"`
	QdrantPointID string                  `json:"qdrant_point_id"`
}

// deletePayload is the JSON shape MarkEntitiesDeletedWithOutbox writes for
// Delete rows.
type deletePayload struct {
	EntityIDs []string `json:"entity_ids"`
}

// Projector continuously drains the relational outbox targeted at Qdrant,
// applying each row to the vector store and marking it processed. It is
// the only writer of vector-store points in the system: the indexing
// pipeline writes entity metadata and outbox rows transactionally but
// never touches the vector store directly.
type Projector struct {
	Store  relational.Store
	Vector vectorstore.Store
	Config Config
	Logger *logging.Logger

	collections *lru.Cache[string, collectionSetup]
}

// NewProjector validates cfg, applies its defaults, and builds the
// per-collection LRU cache sized at MaxCachedCollections.
func NewProjector(store relational.Store, vector vectorstore.Store, cfg Config, logger *logging.Logger) (*Projector, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cache, err := lru.New[string, collectionSetup](cfg.MaxCachedCollections)
	if err != nil {
		return nil, fmt.Errorf("outbox: new collection cache: %w", err)
	}
	return &Projector{Store: store, Vector: vector, Config: cfg, Logger: logger, collections: cache}, nil
}

// Run polls every Config.PollInterval until ctx is cancelled. A failed poll
// is logged and retried on the next tick rather than aborting the loop.
func (p *Projector) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.Config.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := p.PollOnce(ctx); err != nil && p.Logger != nil {
			p.Logger.Error(ctx, "outbox poll failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// PollOnce fetches up to Config.EntriesPerPoll unprocessed rows, groups
// them by target collection, and applies each one. Returns the count
// successfully applied; a row that fails is logged and left for the next
// poll rather than aborting the batch.
func (p *Projector) PollOnce(ctx context.Context) (int, error) {
	entries, err := p.Store.GetUnprocessedOutboxEntries(ctx, relational.TargetQdrant, p.Config.EntriesPerPoll)
	if err != nil {
		return 0, fmt.Errorf("outbox: fetch unprocessed entries: %w", err)
	}

	byCollection := make(map[string][]relational.OutboxEntry)
	for _, e := range entries {
		byCollection[e.CollectionName] = append(byCollection[e.CollectionName], e)
	}

	var applied int
	for collection, rows := range byCollection {
		for _, row := range rows {
			select {
			case <-ctx.Done():
				return applied, ctx.Err()
			default:
			}

			if err := p.applyRow(ctx, collection, row); err != nil {
				if p.Logger != nil {
					p.Logger.Warn(ctx, "outbox row failed",
						zap.String("outbox_id", row.OutboxID.String()),
						zap.String("operation", string(row.Operation)),
						zap.Error(err))
				}
				continue
			}
			applied++
		}
	}
	return applied, nil
}

// applyRow dispatches one row by operation, then marks it processed on
// success or records the failure for the next poll's retry. A row that has
// already failed Config.MaxRetries times is skipped without another
// attempt, left unprocessed for an operator to investigate.
func (p *Projector) applyRow(ctx context.Context, collection string, row relational.OutboxEntry) error {
	if row.RetryCount >= p.Config.MaxRetries {
		return fmt.Errorf("%w: row %s has failed %d times", ErrMaxRetriesExceeded, row.OutboxID, row.RetryCount)
	}

	var applyErr error
	switch row.Operation {
	case relational.OutboxInsert, relational.OutboxUpdate:
		applyErr = p.applyUpsert(ctx, collection, row)
	case relational.OutboxDelete:
		applyErr = p.applyDelete(ctx, collection, row)
	default:
		applyErr = fmt.Errorf("outbox: unknown operation %q", row.Operation)
	}

	if applyErr != nil {
		if recErr := p.Store.RecordOutboxFailure(ctx, row.OutboxID, applyErr.Error()); recErr != nil {
			return fmt.Errorf("record failure: %w (applying row: %s)", recErr, applyErr)
		}
		return applyErr
	}

	if err := p.Store.MarkOutboxProcessed(ctx, row.OutboxID); err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	return nil
}

// applyUpsert loads the row's embedding by embedding_id, builds the
// vector-store point from the payload's entity snapshot, and upserts it.
func (p *Projector) applyUpsert(ctx context.Context, collection string, row relational.OutboxEntry) error {
	if row.EmbeddingID == nil {
		return fmt.Errorf("outbox: row %s has no embedding_id", row.OutboxID)
	}

	var payload insertPayload
	if err := json.Unmarshal(row.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	cached, err := p.Store.GetEmbeddingsByID(ctx, []int64{*row.EmbeddingID})
	if err != nil {
		return fmt.Errorf("load embedding %d: %w", *row.EmbeddingID, err)
	}
	embedding, ok := cached[*row.EmbeddingID]
	if !ok {
		return fmt.Errorf("%w: embedding_id %d", ErrEmbeddingNotFound, *row.EmbeddingID)
	}
	if len(embedding.Dense) > p.Config.MaxEmbeddingDim {
		return fmt.Errorf("%w: got %d, max %d", ErrEmbeddingTooLarge, len(embedding.Dense), p.Config.MaxEmbeddingDim)
	}

	setup, err := p.collectionSetupFor(ctx, collection, len(embedding.Dense), len(embedding.Sparse) > 0)
	if err != nil {
		return err
	}

	point := vectorstore.Point{
		PointID:      payload.QdrantPointID,
		RepositoryID: payload.Entity.RepositoryID,
		EntityID:     payload.Entity.EntityID,
		Dense:        embedding.Dense,
		Payload:      entityPayload(payload.Entity),
	}
	if setup.hasSparse && len(embedding.Sparse) > 0 {
		point.Sparse = toSparseVector(embedding.Sparse)
	}

	if err := p.Vector.UpsertPoints(ctx, collection, []vectorstore.Point{point}); err != nil {
		return fmt.Errorf("upsert point: %w", err)
	}
	return nil
}

// applyDelete resolves the payload's entity ids to their vector-store
// point ids via the relational store's metadata table (the outbox payload
// itself only carries entity ids, not point ids) and deletes them.
// Deleting an already-absent point is a no-op, not an error.
func (p *Projector) applyDelete(ctx context.Context, collection string, row relational.OutboxEntry) error {
	var payload deletePayload
	if err := json.Unmarshal(row.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal delete payload: %w", err)
	}
	if len(payload.EntityIDs) == 0 {
		return nil
	}

	lookup, err := p.Store.GetEntitiesMetadataBatch(ctx, row.RepositoryID, payload.EntityIDs)
	if err != nil {
		return fmt.Errorf("resolve point ids: %w", err)
	}
	pointIDs := make([]string, 0, len(payload.EntityIDs))
	for _, entityID := range payload.EntityIDs {
		if meta, ok := lookup[entityID]; ok && meta.QdrantPointID != "" {
			pointIDs = append(pointIDs, meta.QdrantPointID)
		}
	}
	if len(pointIDs) == 0 {
		return nil
	}

	if err := p.Vector.DeletePoints(ctx, collection, pointIDs); err != nil {
		return fmt.Errorf("delete points: %w", err)
	}
	return nil
}

// collectionSetupFor returns the cached setup for collection, calling
// EnsureCollection and populating the cache on a miss.
func (p *Projector) collectionSetupFor(ctx context.Context, collection string, denseSize int, withSparse bool) (collectionSetup, error) {
	if setup, ok := p.collections.Get(collection); ok {
		return setup, nil
	}
	if err := p.Vector.EnsureCollection(ctx, collection, denseSize, withSparse); err != nil {
		return collectionSetup{}, fmt.Errorf("ensure collection %q: %w", collection, err)
	}
	setup := collectionSetup{denseSize: denseSize, hasSparse: withSparse}
	p.collections.Add(collection, setup)
	return setup, nil
}

// Drain polls until no unprocessed Qdrant rows remain or Config.DrainTimeout
// elapses, letting the pipeline driver wait for projection to catch up
// before considering a run fully complete.
func (p *Projector) Drain(ctx context.Context) error {
	deadline := time.Now().Add(p.Config.DrainTimeout)
	ticker := time.NewTicker(p.Config.PollInterval)
	defer ticker.Stop()

	for {
		pending, err := p.Store.GetUnprocessedOutboxEntries(ctx, relational.TargetQdrant, 1)
		if err != nil {
			return fmt.Errorf("outbox: drain: check pending: %w", err)
		}
		if len(pending) == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("outbox: drain: timed out after %s with rows still pending", p.Config.DrainTimeout)
		}

		if _, err := p.PollOnce(ctx); err != nil {
			return fmt.Errorf("outbox: drain: %w", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func entityPayload(e relational.EntityRecord) map[string]any {
	return map[string]any{
		"repository_id":  e.RepositoryID,
		"entity_id":      e.EntityID,
		"qualified_name": e.QualifiedName,
		"name":           e.Name,
		"entity_type":    e.EntityType,
		"language":       e.Language,
		"file_path":      e.FilePath,
		"visibility":     e.Visibility,
	}
}

func toSparseVector(entries []relational.SparseEntry) *vectorstore.SparseVector {
	sv := &vectorstore.SparseVector{
		Indices: make([]uint32, len(entries)),
		Values:  make([]float32, len(entries)),
	}
	for i, e := range entries {
		sv.Indices[i] = e.Index
		sv.Values[i] = e.Weight
	}
	return sv
}
