package pipeline

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/codeindexd/internal/extractor"
	"github.com/fyrsmithlabs/codeindexd/internal/relational"
)

// storeStage is the storage stage: for each EmbeddedBatch, calls
// StoreEntitiesWithOutboxBatch once per batch (one transaction writing
// metadata + outbox + incremental BM25 update), then emits a StoredBatch
// carrying just the file→entity-id mapping the snapshot stage needs.
func storeStage(ctx context.Context, in <-chan EmbeddedBatch, out chan<- StoredBatch, store relational.Store, repositoryID uuid.UUID, collectionName, gitCommitHash string, entitiesStored *atomic.Int64) error {
	defer close(out)

	for batch := range in {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var entries []relational.EntityOutboxBatchEntry
		stored := StoredBatch{Files: make([]storedFile, len(batch.Files))}
		for fi, f := range batch.Files {
			ids := make([]string, len(f.Entities))
			for ei, ee := range f.Entities {
				ids[ei] = ee.Entity.EntityID
				entries = append(entries, relational.EntityOutboxBatchEntry{
					Entity:               toEntityRecord(ee, repositoryID.String(), gitCommitHash),
					EmbeddingID:          ee.EmbeddingID,
					Operation:            relational.OutboxInsert,
					PointID:              ee.PointID,
					TargetStore:          relational.TargetQdrant,
					GitCommitHash:        gitCommitHash,
					TokenCount:           ee.TokenCount,
					PendingRelationships: pendingRelationshipsFor(ee.Entity),
				})
			}
			stored.Files[fi] = storedFile{FilePath: f.FilePath, EntityIDs: ids}
		}

		if len(entries) > 0 {
			if _, err := store.StoreEntitiesWithOutboxBatch(ctx, repositoryID, collectionName, entries); err != nil {
				return err
			}
			if entitiesStored != nil {
				entitiesStored.Add(int64(len(entries)))
			}
		}

		select {
		case out <- stored:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// toEntityRecord projects an extractor.Entity (carried inside
// embeddedEntity) into the relational store's JSONB row shape.
func toEntityRecord(ee embeddedEntity, repositoryID, gitCommitHash string) relational.EntityRecord {
	e := ee.Entity
	return relational.EntityRecord{
		EntityID:      e.EntityID,
		RepositoryID:  repositoryID,
		GitCommitHash: gitCommitHash,
		QualifiedName: e.QualifiedName,
		Name:          e.Name,
		EntityType:    string(e.EntityType),
		Language:      string(e.Language),
		FilePath:      e.FilePath,
		Visibility:    string(e.Visibility),
		ParentScope:   e.ParentScope,
		StartLine:     e.Location.StartLine,
		EndLine:       e.Location.EndLine,
		Signature:     e.Signature,
		Documentation: e.DocumentationSummary,
		Content:       e.Content,
		Metadata: map[string]any{
			"is_async":         e.Metadata.IsAsync,
			"is_const":         e.Metadata.IsConst,
			"is_generic":       e.Metadata.IsGeneric,
			"generic_params":   e.Metadata.GenericParams,
			"calls":            e.Metadata.Calls,
			"uses_types":       e.Metadata.UsesTypes,
			"implements":       e.Metadata.Implements,
			"implements_trait": e.Metadata.ImplementsTrait,
		},
		ContentHash: ee.ContentHash,
	}
}

// pendingRelationshipsFor derives unresolved references from one
// entity's extracted metadata: a call, type use, or impl target becomes a
// pending relationship keyed by qualified name rather than entity id, since
// the target may not be indexed yet (or may be external to the repository).
// A non-empty ParentScope also queues a CONTAINS row rather than being
// written straight to the graph store — the indexing pipeline has no graph
// store dependency of its own, so CONTAINS resolves through the same
// pending-relationship path the resolver already drains for every other
// kind (see DESIGN.md's relationship-resolver entry for the tradeoff this avoids).
func pendingRelationshipsFor(e extractor.Entity) []relational.PendingRelationship {
	var rels []relational.PendingRelationship
	for _, callee := range e.Metadata.Calls {
		rels = append(rels, relational.PendingRelationship{
			SourceFQN: e.QualifiedName,
			TargetFQN: callee,
			Kind:      relational.RelationshipCalls,
		})
	}
	for _, used := range e.Metadata.UsesTypes {
		rels = append(rels, relational.PendingRelationship{
			SourceFQN: e.QualifiedName,
			TargetFQN: used,
			Kind:      relational.RelationshipUses,
		})
	}
	if e.Metadata.Implements != "" {
		rels = append(rels, relational.PendingRelationship{
			SourceFQN: e.QualifiedName,
			TargetFQN: e.Metadata.Implements,
			Kind:      relational.RelationshipImplements,
		})
	}
	if e.Metadata.ImplementsTrait != "" {
		rels = append(rels, relational.PendingRelationship{
			SourceFQN: e.QualifiedName,
			TargetFQN: e.Metadata.ImplementsTrait,
			Kind:      relational.RelationshipImplements,
		})
	}
	if e.ParentScope != "" {
		rels = append(rels, relational.PendingRelationship{
			SourceFQN: e.ParentScope,
			TargetFQN: e.QualifiedName,
			Kind:      relational.RelationshipContains,
		})
	}
	return rels
}
