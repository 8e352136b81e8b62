package relational

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is the DDL for every table the relational store adapter owns:
// repositories, entity_metadata, file_snapshots, entity_outbox,
// embedding_cache, and bm25_statistics. Execute it via Migrate, or apply it
// manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS repositories (
    repository_id   UUID PRIMARY KEY,
    repository_path TEXT NOT NULL UNIQUE,
    repository_name TEXT NOT NULL DEFAULT '',
    collection_name TEXT NOT NULL UNIQUE,
    last_indexed_commit TEXT NOT NULL DEFAULT '',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS entity_metadata (
    repository_id   UUID NOT NULL REFERENCES repositories (repository_id) ON DELETE CASCADE,
    entity_id       TEXT NOT NULL,
    qualified_name  TEXT NOT NULL DEFAULT '',
    qdrant_point_id UUID NOT NULL,
    entity          JSONB NOT NULL,
    content_hash    TEXT NOT NULL DEFAULT '',
    git_commit_hash TEXT NOT NULL DEFAULT '',
    deleted_at      TIMESTAMPTZ,
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    search_vector   tsvector GENERATED ALWAYS AS (
        to_tsvector('english',
            coalesce(entity->>'qualified_name', '') || ' ' ||
            coalesce(entity->>'name', '') || ' ' ||
            coalesce(entity->>'documentation', '') || ' ' ||
            coalesce(entity->>'content', ''))
    ) STORED,
    PRIMARY KEY (repository_id, entity_id)
);

CREATE INDEX IF NOT EXISTS idx_entity_metadata_active
    ON entity_metadata (repository_id) WHERE deleted_at IS NULL;

CREATE INDEX IF NOT EXISTS idx_entity_metadata_qualified_name
    ON entity_metadata (repository_id, qualified_name);

CREATE INDEX IF NOT EXISTS idx_entity_metadata_search_vector
    ON entity_metadata USING GIN (search_vector);

CREATE TABLE IF NOT EXISTS file_snapshots (
    repository_id   UUID NOT NULL REFERENCES repositories (repository_id) ON DELETE CASCADE,
    file_path       TEXT NOT NULL,
    entity_ids      JSONB NOT NULL DEFAULT '[]',
    git_commit_hash TEXT NOT NULL DEFAULT '',
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (repository_id, file_path)
);

CREATE TABLE IF NOT EXISTS entity_outbox (
    outbox_id       UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    repository_id   UUID NOT NULL REFERENCES repositories (repository_id) ON DELETE CASCADE,
    entity_id       TEXT NOT NULL,
    operation       TEXT NOT NULL,
    target_store    TEXT NOT NULL,
    collection_name TEXT NOT NULL DEFAULT '',
    embedding_id    BIGINT,
    payload         JSONB NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    processed_at    TIMESTAMPTZ,
    retry_count     INTEGER NOT NULL DEFAULT 0,
    last_error      TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_entity_outbox_unprocessed
    ON entity_outbox (target_store, created_at) WHERE processed_at IS NULL;

CREATE TABLE IF NOT EXISTS embedding_cache (
    embedding_id  BIGSERIAL PRIMARY KEY,
    content_hash  TEXT NOT NULL,
    model_version TEXT NOT NULL,
    dimension     INTEGER NOT NULL,
    dense         REAL[] NOT NULL,
    sparse        JSONB,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (content_hash, model_version)
);

CREATE TABLE IF NOT EXISTS bm25_statistics (
    repository_id UUID PRIMARY KEY REFERENCES repositories (repository_id) ON DELETE CASCADE,
    total_tokens  BIGINT NOT NULL DEFAULT 0,
    entity_count  BIGINT NOT NULL DEFAULT 0,
    avgdl         DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS pending_relationships (
    pending_id    UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    repository_id UUID NOT NULL REFERENCES repositories (repository_id) ON DELETE CASCADE,
    source_fqn    TEXT NOT NULL,
    target_fqn    TEXT NOT NULL,
    kind          TEXT NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_pending_relationships_repo
    ON pending_relationships (repository_id, created_at);
`

// Migrate creates or ensures all required tables, indexes, and constraints
// exist. It is idempotent and safe to call on every application start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS pgcrypto`); err != nil {
		return fmt.Errorf("relational: migrate: enable pgcrypto: %w", err)
	}
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("relational: migrate: %w", err)
	}
	return nil
}
