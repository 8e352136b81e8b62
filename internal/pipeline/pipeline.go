package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/codeindexd/internal/logging"
	"github.com/fyrsmithlabs/codeindexd/internal/relational"
	"github.com/fyrsmithlabs/codeindexd/internal/secrets"
	pkggit "github.com/fyrsmithlabs/codeindexd/pkg/git"
)

// Driver wires all five stages into one run and owns the bounded channels connecting
// them, the relational store used for identity/metadata/outbox/cache, and
// the embedding dependencies the embedding stage needs.
type Driver struct {
	Config Config
	Store  relational.Store
	Embed  EmbedDeps
	// Scrub redacts secrets from entity content before it reaches the
	// embedding stage's provider calls or storage. Nil disables scrubbing entirely.
	Scrub  secrets.Scrubber
	Logger *logging.Logger
}

// Run indexes one repository end to end: ensures its repository row,
// detects the current commit, runs the five stages concurrently connected
// by channels of capacity Config.PipelineChannelCapacity, and on success
// stamps last_indexed_commit. Any stage error cancels the others and is
// returned wrapped in ErrStageFailed; a panic inside a stage is recovered
// and reported the same way rather than crashing the process.
func (d *Driver) Run(ctx context.Context, collectionName, repositoryName string, opts DiscoveryOptions) (RunStats, error) {
	cfg := d.Config
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return RunStats{}, err
	}

	repositoryID, err := d.Store.EnsureRepository(ctx, opts.RepositoryPath, collectionName, repositoryName)
	if err != nil {
		return RunStats{}, fmt.Errorf("pipeline: ensure repository: %w", err)
	}

	commitHash, err := pkggit.DetectCommitHash(opts.RepositoryPath)
	if err != nil {
		return RunStats{}, fmt.Errorf("pipeline: detect commit hash: %w", err)
	}

	embed := d.Embed
	embed.RepositoryID = repositoryID

	fileBatches := make(chan FileBatch, cfg.PipelineChannelCapacity)
	entityBatches := make(chan EntityBatch, cfg.PipelineChannelCapacity)
	embeddedBatches := make(chan EmbeddedBatch, cfg.PipelineChannelCapacity)
	storedBatches := make(chan StoredBatch, cfg.PipelineChannelCapacity)

	var filesDiscovered, failedFiles, entitiesExtracted atomic.Int64
	var embeddingsCached, embeddingsFresh, entitiesStored, entitiesDeleted atomic.Int64

	g, gctx := errgroup.WithContext(ctx)

	g.Go(stageFunc(func() error {
		return discoverFiles(gctx, opts, cfg.FilesPerDiscoveryBatch, fileBatches, &filesDiscovered)
	}))

	g.Go(stageFunc(func() error {
		return extractStage(gctx, fileBatches, entityBatches, repositoryID.String(), cfg.EntitiesPerEmbeddingBatch, cfg.MaxConcurrentFileExtractions, &failedFiles, &entitiesExtracted, d.Scrub, d.Logger)
	}))

	g.Go(stageFunc(func() error {
		return embedStage(gctx, entityBatches, embeddedBatches, embed, cfg, &embeddingsCached, &embeddingsFresh)
	}))

	g.Go(stageFunc(func() error {
		return storeStage(gctx, embeddedBatches, storedBatches, d.Store, repositoryID, collectionName, commitHash, &entitiesStored)
	}))

	g.Go(stageFunc(func() error {
		return snapshotStage(gctx, storedBatches, d.Store, repositoryID, commitHash, cfg.MaxConcurrentSnapshotUpdates, &entitiesDeleted)
	}))

	if err := g.Wait(); err != nil {
		return RunStats{}, fmt.Errorf("%w: %w", ErrStageFailed, err)
	}

	if err := d.Store.UpdateLastIndexedCommit(ctx, repositoryID, commitHash); err != nil {
		return RunStats{}, fmt.Errorf("pipeline: record last indexed commit: %w", err)
	}

	return RunStats{
		FilesDiscovered:   int(filesDiscovered.Load()),
		FilesFailed:       int(failedFiles.Load()),
		EntitiesExtracted: int(entitiesExtracted.Load()),
		EntitiesStored:    int(entitiesStored.Load()),
		EntitiesDeleted:   int(entitiesDeleted.Load()),
		EmbeddingsCached:  int(embeddingsCached.Load()),
		EmbeddingsFresh:   int(embeddingsFresh.Load()),
	}, nil
}

// stageFunc wraps a stage body so a panic inside it is captured as an
// error rather than crashing the whole process.
func stageFunc(fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("pipeline: stage panicked: %v", r)
			}
		}()
		return fn()
	}
}
