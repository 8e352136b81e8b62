package relational

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("codeindexd.relational.postgres")

// PostgresStore is the Store implementation backing the relational store
// Adapter). It holds one pgxpool.Pool shared across every operation; all
// methods are safe for concurrent use, which is what lets the pipeline's storage
// stage run several concurrent writers against one Store value.
type PostgresStore struct {
	pool   *pgxpool.Pool
	config PostgresConfig
}

var _ Store = (*PostgresStore)(nil)

// NewStore opens a connection pool to PostgreSQL, applies cfg's defaults,
// pings the database, and runs Migrate before returning.
func NewStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.connString())
	if err != nil {
		return nil, fmt.Errorf("relational: parse dsn: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns

	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("relational: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("relational: ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool, config: cfg}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) EnsureRepository(ctx context.Context, repositoryPath, collectionName, repositoryName string) (uuid.UUID, error) {
	ctx, span := tracer.Start(ctx, "EnsureRepository")
	defer span.End()

	var repoID uuid.UUID
	err := s.pool.QueryRow(ctx,
		`SELECT repository_id FROM repositories WHERE collection_name = $1`, collectionName,
	).Scan(&repoID)
	if err == nil {
		return repoID, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, fmt.Errorf("relational: ensure repository: lookup: %w", err)
	}

	repoID = GenerateRepositoryID(repositoryPath)
	err = s.pool.QueryRow(ctx,
		`INSERT INTO repositories (repository_id, repository_path, repository_name, collection_name)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (repository_path) DO UPDATE SET collection_name = EXCLUDED.collection_name
		 RETURNING repository_id`,
		repoID, repositoryPath, repositoryName, collectionName,
	).Scan(&repoID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("relational: ensure repository: insert: %w", err)
	}
	return repoID, nil
}

func (s *PostgresStore) GetRepositoryByCollection(ctx context.Context, collectionName string) (uuid.UUID, string, error) {
	var repoID uuid.UUID
	var path string
	err := s.pool.QueryRow(ctx,
		`SELECT repository_id, repository_path FROM repositories WHERE collection_name = $1`, collectionName,
	).Scan(&repoID, &path)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, "", ErrRepositoryNotFound
	}
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("relational: get repository by collection: %w", err)
	}
	return repoID, path, nil
}

func (s *PostgresStore) GetEntitiesMetadataBatch(ctx context.Context, repositoryID uuid.UUID, entityIDs []string) (map[string]EntityMetadataLookup, error) {
	if len(entityIDs) == 0 {
		return map[string]EntityMetadataLookup{}, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT entity_id, qdrant_point_id, deleted_at
		 FROM entity_metadata
		 WHERE repository_id = $1 AND entity_id = ANY($2)`,
		repositoryID, entityIDs)
	if err != nil {
		return nil, fmt.Errorf("relational: get entities metadata batch: %w", err)
	}
	defer rows.Close()

	result := make(map[string]EntityMetadataLookup, len(entityIDs))
	for rows.Next() {
		var entityID string
		var pointID uuid.UUID
		var deletedAt *time.Time
		if err := rows.Scan(&entityID, &pointID, &deletedAt); err != nil {
			return nil, fmt.Errorf("relational: get entities metadata batch: scan: %w", err)
		}
		lookup := EntityMetadataLookup{QdrantPointID: pointID.String()}
		if deletedAt != nil {
			lookup.DeletedAt = *deletedAt
		}
		result[entityID] = lookup
	}
	return result, rows.Err()
}

func (s *PostgresStore) GetFileSnapshot(ctx context.Context, repositoryID uuid.UUID, filePath string) ([]string, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT entity_ids FROM file_snapshots WHERE repository_id = $1 AND file_path = $2`,
		repositoryID, filePath,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("relational: get file snapshot: %w", err)
	}
	var entityIDs []string
	if err := json.Unmarshal(raw, &entityIDs); err != nil {
		return nil, fmt.Errorf("relational: get file snapshot: unmarshal: %w", err)
	}
	return entityIDs, nil
}

func (s *PostgresStore) UpdateFileSnapshotsBatch(ctx context.Context, repositoryID uuid.UUID, updates []FileSnapshotUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("relational: update file snapshots: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, u := range updates {
		idsJSON, err := json.Marshal(u.EntityIDs)
		if err != nil {
			return fmt.Errorf("relational: update file snapshots: marshal entity ids: %w", err)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO file_snapshots (repository_id, file_path, entity_ids, git_commit_hash, updated_at)
			 VALUES ($1, $2, $3, $4, now())
			 ON CONFLICT (repository_id, file_path) DO UPDATE SET
			   entity_ids = EXCLUDED.entity_ids,
			   git_commit_hash = EXCLUDED.git_commit_hash,
			   updated_at = now()`,
			repositoryID, u.FilePath, idsJSON, u.GitCommitHash)
		if err != nil {
			return fmt.Errorf("relational: update file snapshots: upsert %q: %w", u.FilePath, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("relational: update file snapshots: commit: %w", err)
	}
	return nil
}

func (s *PostgresStore) StoreEntitiesWithOutboxBatch(ctx context.Context, repositoryID uuid.UUID, collectionName string, entries []EntityOutboxBatchEntry) ([]uuid.UUID, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	if len(entries) > s.config.MaxEntitiesPerOperation {
		return nil, fmt.Errorf("%w: got %d, max %d", ErrBatchTooLarge, len(entries), s.config.MaxEntitiesPerOperation)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("relational: store entities with outbox: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	outboxIDs := make([]uuid.UUID, 0, len(entries))
	var tokenCounts []int
	var newEntities int
	var pendingRels []PendingRelationship

	for _, entry := range entries {
		entityJSON, err := json.Marshal(entry.Entity)
		if err != nil {
			return nil, fmt.Errorf("relational: store entities with outbox: marshal entity %q: %w", entry.Entity.EntityID, err)
		}
		pointID, err := uuid.Parse(entry.PointID)
		if err != nil {
			return nil, fmt.Errorf("relational: store entities with outbox: invalid point id %q: %w", entry.PointID, err)
		}

		tag, err := tx.Exec(ctx,
			`INSERT INTO entity_metadata (repository_id, entity_id, qualified_name, qdrant_point_id, entity, content_hash, git_commit_hash, deleted_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, NULL, now())
			 ON CONFLICT (repository_id, entity_id) DO UPDATE SET
			   qualified_name = EXCLUDED.qualified_name,
			   qdrant_point_id = EXCLUDED.qdrant_point_id,
			   entity = EXCLUDED.entity,
			   content_hash = EXCLUDED.content_hash,
			   git_commit_hash = EXCLUDED.git_commit_hash,
			   deleted_at = NULL,
			   updated_at = now()`,
			repositoryID, entry.Entity.EntityID, entry.Entity.QualifiedName, pointID, entityJSON, entry.Entity.ContentHash, entry.GitCommitHash)
		if err != nil {
			return nil, fmt.Errorf("relational: store entities with outbox: upsert entity %q: %w", entry.Entity.EntityID, err)
		}
		if entry.Operation == OutboxInsert && tag.RowsAffected() > 0 {
			newEntities++
		}

		payload, err := json.Marshal(map[string]any{
			"entity":          entry.Entity,
			"qdrant_point_id": entry.PointID,
		})
		if err != nil {
			return nil, fmt.Errorf("relational: store entities with outbox: marshal payload: %w", err)
		}

		var outboxID uuid.UUID
		err = tx.QueryRow(ctx,
			`INSERT INTO entity_outbox (repository_id, entity_id, operation, target_store, collection_name, embedding_id, payload)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING outbox_id`,
			repositoryID, entry.Entity.EntityID, string(entry.Operation), string(entry.TargetStore), collectionName, entry.EmbeddingID, payload,
		).Scan(&outboxID)
		if err != nil {
			return nil, fmt.Errorf("relational: store entities with outbox: insert outbox row: %w", err)
		}
		outboxIDs = append(outboxIDs, outboxID)
		tokenCounts = append(tokenCounts, entry.TokenCount)
		pendingRels = append(pendingRels, entry.PendingRelationships...)
	}

	if _, err := updateBM25StatsTx(ctx, tx, repositoryID, tokenCounts, newEntities); err != nil {
		return nil, fmt.Errorf("relational: store entities with outbox: update bm25 stats: %w", err)
	}

	if err := insertPendingRelationshipsTx(ctx, tx, repositoryID, pendingRels); err != nil {
		return nil, fmt.Errorf("relational: store entities with outbox: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("relational: store entities with outbox: commit: %w", err)
	}
	return outboxIDs, nil
}

// insertPendingRelationshipsTx inserts rels inside tx. A no-op for an empty
// slice so callers needn't special-case entries with no unresolved
// references.
func insertPendingRelationshipsTx(ctx context.Context, tx pgx.Tx, repositoryID uuid.UUID, rels []PendingRelationship) error {
	for _, rel := range rels {
		_, err := tx.Exec(ctx,
			`INSERT INTO pending_relationships (repository_id, source_fqn, target_fqn, kind)
			 VALUES ($1, $2, $3, $4)`,
			repositoryID, rel.SourceFQN, rel.TargetFQN, string(rel.Kind))
		if err != nil {
			return fmt.Errorf("insert pending relationship %s->%s: %w", rel.SourceFQN, rel.TargetFQN, err)
		}
	}
	return nil
}

func (s *PostgresStore) MarkEntitiesDeletedWithOutbox(ctx context.Context, repositoryID uuid.UUID, entityIDs []string, tokenCounts []int) error {
	if len(entityIDs) == 0 {
		return nil
	}
	if len(entityIDs) > s.config.MaxEntitiesPerOperation {
		return fmt.Errorf("%w: got %d, max %d", ErrBatchTooLarge, len(entityIDs), s.config.MaxEntitiesPerOperation)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("relational: mark entities deleted: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	rows, err := tx.Query(ctx,
		`UPDATE entity_metadata SET deleted_at = now()
		 WHERE repository_id = $1 AND entity_id = ANY($2) AND deleted_at IS NULL
		 RETURNING entity_id`,
		repositoryID, entityIDs)
	if err != nil {
		return fmt.Errorf("relational: mark entities deleted: update: %w", err)
	}
	deletedIndex := make(map[string]bool, len(entityIDs))
	for rows.Next() {
		var entityID string
		if err := rows.Scan(&entityID); err != nil {
			rows.Close()
			return fmt.Errorf("relational: mark entities deleted: scan: %w", err)
		}
		deletedIndex[entityID] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("relational: mark entities deleted: %w", err)
	}

	var deletedTokenCounts []int
	for i, entityID := range entityIDs {
		if !deletedIndex[entityID] {
			continue
		}
		payload, err := json.Marshal(map[string]any{
			"entity_ids": []string{entityID},
			"reason":     "file_change",
		})
		if err != nil {
			return fmt.Errorf("relational: mark entities deleted: marshal payload: %w", err)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO entity_outbox (repository_id, entity_id, operation, target_store, payload)
			 VALUES ($1, $2, $3, $4, $5)`,
			repositoryID, entityID, string(OutboxDelete), string(TargetQdrant), payload)
		if err != nil {
			return fmt.Errorf("relational: mark entities deleted: insert outbox row: %w", err)
		}
		if i < len(tokenCounts) {
			deletedTokenCounts = append(deletedTokenCounts, -tokenCounts[i])
		}
	}

	if len(deletedTokenCounts) > 0 {
		if _, err := updateBM25StatsTx(ctx, tx, repositoryID, deletedTokenCounts, -len(deletedTokenCounts)); err != nil {
			return fmt.Errorf("relational: mark entities deleted: update bm25 stats: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("relational: mark entities deleted: commit: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUnprocessedOutboxEntries(ctx context.Context, targetStore TargetStore, limit int) ([]OutboxEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT outbox_id, repository_id, entity_id, operation, target_store, collection_name,
		        embedding_id, payload, created_at, processed_at, retry_count, last_error
		 FROM entity_outbox
		 WHERE target_store = $1 AND processed_at IS NULL
		 ORDER BY created_at ASC
		 LIMIT $2`,
		string(targetStore), limit)
	if err != nil {
		return nil, fmt.Errorf("relational: get unprocessed outbox entries: %w", err)
	}
	defer rows.Close()

	var entries []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		var operation, targetStoreCol string
		var embeddingID *int64
		var lastError string
		if err := rows.Scan(&e.OutboxID, &e.RepositoryID, &e.EntityID, &operation, &targetStoreCol,
			&e.CollectionName, &embeddingID, &e.Payload, &e.CreatedAt, &e.ProcessedAt, &e.RetryCount, &lastError); err != nil {
			return nil, fmt.Errorf("relational: get unprocessed outbox entries: scan: %w", err)
		}
		e.Operation = OutboxOperation(operation)
		e.TargetStore = TargetStore(targetStoreCol)
		e.EmbeddingID = embeddingID
		e.LastError = lastError
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) MarkOutboxProcessed(ctx context.Context, outboxID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `UPDATE entity_outbox SET processed_at = now() WHERE outbox_id = $1`, outboxID)
	if err != nil {
		return fmt.Errorf("relational: mark outbox processed: %w", err)
	}
	return nil
}

func (s *PostgresStore) RecordOutboxFailure(ctx context.Context, outboxID uuid.UUID, lastError string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE entity_outbox SET retry_count = retry_count + 1, last_error = $2 WHERE outbox_id = $1`,
		outboxID, lastError)
	if err != nil {
		return fmt.Errorf("relational: record outbox failure: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetEmbeddingsByContentHash(ctx context.Context, contentHashes []string, modelVersion string) (map[string]CachedEmbedding, error) {
	if len(contentHashes) == 0 {
		return map[string]CachedEmbedding{}, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT content_hash, embedding_id, dense, sparse
		 FROM embedding_cache
		 WHERE model_version = $1 AND content_hash = ANY($2)`,
		modelVersion, contentHashes)
	if err != nil {
		return nil, fmt.Errorf("relational: get embeddings by content hash: %w", err)
	}
	defer rows.Close()

	result := make(map[string]CachedEmbedding, len(contentHashes))
	for rows.Next() {
		var hash string
		var cached CachedEmbedding
		var sparseJSON []byte
		if err := rows.Scan(&hash, &cached.EmbeddingID, &cached.Dense, &sparseJSON); err != nil {
			return nil, fmt.Errorf("relational: get embeddings by content hash: scan: %w", err)
		}
		if sparseJSON != nil {
			if err := json.Unmarshal(sparseJSON, &cached.Sparse); err != nil {
				return nil, fmt.Errorf("relational: get embeddings by content hash: unmarshal sparse: %w", err)
			}
		}
		result[hash] = cached
	}
	return result, rows.Err()
}

func (s *PostgresStore) GetEmbeddingsByID(ctx context.Context, embeddingIDs []int64) (map[int64]CachedEmbedding, error) {
	if len(embeddingIDs) == 0 {
		return map[int64]CachedEmbedding{}, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT embedding_id, dense, sparse
		 FROM embedding_cache
		 WHERE embedding_id = ANY($1)`,
		embeddingIDs)
	if err != nil {
		return nil, fmt.Errorf("relational: get embeddings by id: %w", err)
	}
	defer rows.Close()

	result := make(map[int64]CachedEmbedding, len(embeddingIDs))
	for rows.Next() {
		var cached CachedEmbedding
		var sparseJSON []byte
		if err := rows.Scan(&cached.EmbeddingID, &cached.Dense, &sparseJSON); err != nil {
			return nil, fmt.Errorf("relational: get embeddings by id: scan: %w", err)
		}
		if sparseJSON != nil {
			if err := json.Unmarshal(sparseJSON, &cached.Sparse); err != nil {
				return nil, fmt.Errorf("relational: get embeddings by id: unmarshal sparse: %w", err)
			}
		}
		result[cached.EmbeddingID] = cached
	}
	return result, rows.Err()
}

func (s *PostgresStore) StoreEmbeddings(ctx context.Context, entries []EmbeddingCacheEntry, modelVersion string, dimension int) ([]int64, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	ids := make([]int64, len(entries))
	for i, entry := range entries {
		var sparseJSON []byte
		if entry.Sparse != nil {
			var err error
			sparseJSON, err = json.Marshal(entry.Sparse)
			if err != nil {
				return nil, fmt.Errorf("relational: store embeddings: marshal sparse: %w", err)
			}
		}
		err := s.pool.QueryRow(ctx,
			`INSERT INTO embedding_cache (content_hash, model_version, dimension, dense, sparse)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (content_hash, model_version) DO UPDATE SET model_version = EXCLUDED.model_version
			 RETURNING embedding_id`,
			entry.ContentHash, modelVersion, dimension, entry.Dense, sparseJSON,
		).Scan(&ids[i])
		if err != nil {
			return nil, fmt.Errorf("relational: store embeddings: upsert %q: %w", entry.ContentHash, err)
		}
	}
	return ids, nil
}

func (s *PostgresStore) UpdateBM25StatisticsIncremental(ctx context.Context, repositoryID uuid.UUID, newTokenCounts []int) (float64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("relational: update bm25 statistics: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	avgdl, err := updateBM25StatsTx(ctx, tx, repositoryID, newTokenCounts, len(newTokenCounts))
	if err != nil {
		return 0, fmt.Errorf("relational: update bm25 statistics: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("relational: update bm25 statistics: commit: %w", err)
	}
	return avgdl, nil
}

func (s *PostgresStore) GetBM25Statistics(ctx context.Context, repositoryID uuid.UUID) (BM25Statistics, error) {
	var stats BM25Statistics
	err := s.pool.QueryRow(ctx,
		`SELECT total_tokens, entity_count, avgdl FROM bm25_statistics WHERE repository_id = $1`,
		repositoryID,
	).Scan(&stats.TotalTokens, &stats.EntityCount, &stats.AvgDL)
	if errors.Is(err, pgx.ErrNoRows) {
		return BM25Statistics{}, nil
	}
	if err != nil {
		return BM25Statistics{}, fmt.Errorf("relational: get bm25 statistics: %w", err)
	}
	return stats, nil
}

func (s *PostgresStore) UpdateLastIndexedCommit(ctx context.Context, repositoryID uuid.UUID, commitHash string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE repositories SET last_indexed_commit = $1 WHERE repository_id = $2`,
		commitHash, repositoryID)
	if err != nil {
		return fmt.Errorf("relational: update last indexed commit: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertPendingRelationshipsBatch(ctx context.Context, repositoryID uuid.UUID, rels []PendingRelationship) error {
	if len(rels) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("relational: insert pending relationships: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := insertPendingRelationshipsTx(ctx, tx, repositoryID, rels); err != nil {
		return fmt.Errorf("relational: insert pending relationships: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("relational: insert pending relationships: commit: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPendingRelationships(ctx context.Context, repositoryID uuid.UUID, limit int) ([]PendingRelationship, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT pending_id, repository_id, source_fqn, target_fqn, kind
		 FROM pending_relationships
		 WHERE repository_id = $1
		 ORDER BY created_at ASC
		 LIMIT $2`,
		repositoryID, limit)
	if err != nil {
		return nil, fmt.Errorf("relational: get pending relationships: %w", err)
	}
	defer rows.Close()

	var rels []PendingRelationship
	for rows.Next() {
		var rel PendingRelationship
		var kind string
		if err := rows.Scan(&rel.PendingID, &rel.RepositoryID, &rel.SourceFQN, &rel.TargetFQN, &kind); err != nil {
			return nil, fmt.Errorf("relational: get pending relationships: scan: %w", err)
		}
		rel.Kind = RelationshipKind(kind)
		rels = append(rels, rel)
	}
	return rels, rows.Err()
}

func (s *PostgresStore) GetEntitiesByQualifiedNames(ctx context.Context, repositoryID uuid.UUID, qualifiedNames []string) (map[string]string, error) {
	if len(qualifiedNames) == 0 {
		return map[string]string{}, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT entity_id, qualified_name
		 FROM entity_metadata
		 WHERE repository_id = $1 AND qualified_name = ANY($2) AND deleted_at IS NULL`,
		repositoryID, qualifiedNames)
	if err != nil {
		return nil, fmt.Errorf("relational: get entities by qualified names: %w", err)
	}
	defer rows.Close()

	result := make(map[string]string, len(qualifiedNames))
	for rows.Next() {
		var entityID, qualifiedName string
		if err := rows.Scan(&entityID, &qualifiedName); err != nil {
			return nil, fmt.Errorf("relational: get entities by qualified names: scan: %w", err)
		}
		result[qualifiedName] = entityID
	}
	return result, rows.Err()
}

func (s *PostgresStore) DeletePendingRelationshipsBatch(ctx context.Context, pendingIDs []uuid.UUID) error {
	if len(pendingIDs) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM pending_relationships WHERE pending_id = ANY($1)`, pendingIDs)
	if err != nil {
		return fmt.Errorf("relational: delete pending relationships: %w", err)
	}
	return nil
}

// updateBM25StatsTx folds tokenCounts (each may be negative, for deletions)
// and entityCountDelta into the repository's running BM25 totals within tx,
// creating the row on first use, and returns the new avgdl. tokenCounts and
// entityCountDelta are applied together so a caller can express "N new
// entities worth these token counts" or "remove these tokens and these
// entities" with one call.
func updateBM25StatsTx(ctx context.Context, tx pgx.Tx, repositoryID uuid.UUID, tokenCounts []int, entityCountDelta int) (float64, error) {
	_, err := tx.Exec(ctx,
		`INSERT INTO bm25_statistics (repository_id, total_tokens, entity_count, avgdl)
		 VALUES ($1, 0, 0, 0)
		 ON CONFLICT (repository_id) DO NOTHING`,
		repositoryID)
	if err != nil {
		return 0, fmt.Errorf("ensure bm25_statistics row: %w", err)
	}

	var tokenDelta int64
	for _, c := range tokenCounts {
		tokenDelta += int64(c)
	}

	var totalTokens, entityCount int64
	var avgdl float64
	err = tx.QueryRow(ctx,
		`UPDATE bm25_statistics SET
		   total_tokens = GREATEST(total_tokens + $2, 0),
		   entity_count = GREATEST(entity_count + $3, 0)
		 WHERE repository_id = $1
		 RETURNING total_tokens, entity_count`,
		repositoryID, tokenDelta, entityCountDelta,
	).Scan(&totalTokens, &entityCount)
	if err != nil {
		return 0, fmt.Errorf("update bm25_statistics: %w", err)
	}

	if entityCount > 0 {
		avgdl = float64(totalTokens) / float64(entityCount)
	}

	if _, err := tx.Exec(ctx, `UPDATE bm25_statistics SET avgdl = $2 WHERE repository_id = $1`, repositoryID, avgdl); err != nil {
		return 0, fmt.Errorf("update bm25_statistics avgdl: %w", err)
	}
	return avgdl, nil
}

func (s *PostgresStore) GetEntitiesByIDsBatch(ctx context.Context, repositoryID uuid.UUID, entityIDs []string) (map[string]EntityRecord, error) {
	if len(entityIDs) == 0 {
		return map[string]EntityRecord{}, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT entity_id, entity
		 FROM entity_metadata
		 WHERE repository_id = $1 AND entity_id = ANY($2) AND deleted_at IS NULL`,
		repositoryID, entityIDs)
	if err != nil {
		return nil, fmt.Errorf("relational: get entities by ids batch: %w", err)
	}
	defer rows.Close()

	result := make(map[string]EntityRecord, len(entityIDs))
	for rows.Next() {
		var entityID string
		var entityJSON []byte
		if err := rows.Scan(&entityID, &entityJSON); err != nil {
			return nil, fmt.Errorf("relational: get entities by ids batch: scan: %w", err)
		}
		var record EntityRecord
		if err := json.Unmarshal(entityJSON, &record); err != nil {
			return nil, fmt.Errorf("relational: get entities by ids batch: unmarshal %q: %w", entityID, err)
		}
		result[entityID] = record
	}
	return result, rows.Err()
}

func (s *PostgresStore) SearchEntitiesFulltext(ctx context.Context, repositoryID uuid.UUID, query string, limit int) ([]FulltextHit, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT entity_id, ts_rank(search_vector, plainto_tsquery('english', $2)) AS rank
		 FROM entity_metadata
		 WHERE repository_id = $1
		   AND deleted_at IS NULL
		   AND search_vector @@ plainto_tsquery('english', $2)
		 ORDER BY rank DESC
		 LIMIT $3`,
		repositoryID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("relational: search entities fulltext: %w", err)
	}
	defer rows.Close()

	var hits []FulltextHit
	for rows.Next() {
		var hit FulltextHit
		if err := rows.Scan(&hit.EntityID, &hit.Rank); err != nil {
			return nil, fmt.Errorf("relational: search entities fulltext: scan: %w", err)
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}
