package graph

import (
	"context"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/codeindexd/internal/relational"
)

// Edge is one resolved relationship ready to write to the graph store: both
// endpoints are concrete entity ids within the same repository.
type Edge struct {
	RepositoryID   uuid.UUID
	SourceEntityID string
	TargetEntityID string
	Kind           relational.RelationshipKind
}

// Store is the graph store adapter: idempotent entity
// node upserts and relationship edge upserts, scoped per repository so a
// re-index never duplicates a node or edge already present.
type Store interface {
	// EnsureSchema creates the constraints/indexes the graph schema needs
	// (a uniqueness constraint on Entity.entity_id, scoped by repository).
	// Idempotent; safe to call on every application start.
	EnsureSchema(ctx context.Context) error

	// UpsertEntityNodes ensures one Entity node per id exists, tagged with
	// repositoryID and entityType, merging rather than duplicating on
	// re-index.
	UpsertEntityNodes(ctx context.Context, repositoryID uuid.UUID, entityIDs []string, entityTypes map[string]string) error

	// UpsertEdges writes a batch of resolved relationship edges. Writing
	// the same edge twice is a no-op: edges are merged on
	// (source, target, kind), never duplicated.
	UpsertEdges(ctx context.Context, edges []Edge) error

	// DeleteEntityNodes removes the given entities (and any edge touching
	// them) from the graph, mirroring a relational soft-delete.
	DeleteEntityNodes(ctx context.Context, repositoryID uuid.UUID, entityIDs []string) error

	// Close releases the underlying driver.
	Close(ctx context.Context) error
}
