package pipeline

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/codeindexd/internal/relational"
)

// snapshotStage is the final stage: for each file in a StoredBatch, diffs the new
// entity-id set against the file's previous snapshot, marks stale
// entities deleted (with their outbox rows), and writes the new snapshot.
// Each file is independent, so work is farmed out to a bounded pool
// (maxConcurrency, config's max_concurrent_snapshot_updates).
func snapshotStage(ctx context.Context, in <-chan StoredBatch, store relational.Store, repositoryID uuid.UUID, gitCommitHash string, maxConcurrency int, entitiesDeleted *atomic.Int64) error {
	sem := make(chan struct{}, maxConcurrency)

	for batch := range in {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var wg sync.WaitGroup
		errs := make([]error, len(batch.Files))
		for i, f := range batch.Files {
			i, f := i, f
			sem <- struct{}{}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() { <-sem }()
				errs[i] = reconcileFile(ctx, store, repositoryID, gitCommitHash, f, entitiesDeleted)
			}()
		}
		wg.Wait()

		for _, err := range errs {
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// reconcileFile diffs one file's new entity-id set against its previous
// snapshot and applies the delete/update.
func reconcileFile(ctx context.Context, store relational.Store, repositoryID uuid.UUID, gitCommitHash string, f storedFile, entitiesDeleted *atomic.Int64) error {
	previous, err := store.GetFileSnapshot(ctx, repositoryID, f.FilePath)
	if err != nil {
		return err
	}

	current := make(map[string]bool, len(f.EntityIDs))
	for _, id := range f.EntityIDs {
		current[id] = true
	}

	var stale []string
	for _, id := range previous {
		if !current[id] {
			stale = append(stale, id)
		}
	}

	if len(stale) > 0 {
		// entity_metadata does not retain each entity's original token
		// count, so a deleted entity's contribution to total_tokens
		// cannot be precisely subtracted here; zero-valued counts leave
		// total_tokens untouched while entity_count still decrements.
		tokenCounts := make([]int, len(stale))
		if err := store.MarkEntitiesDeletedWithOutbox(ctx, repositoryID, stale, tokenCounts); err != nil {
			return err
		}
		entitiesDeleted.Add(int64(len(stale)))
	}

	return store.UpdateFileSnapshotsBatch(ctx, repositoryID, []relational.FileSnapshotUpdate{
		{FilePath: f.FilePath, EntityIDs: f.EntityIDs, GitCommitHash: gitCommitHash},
	})
}
