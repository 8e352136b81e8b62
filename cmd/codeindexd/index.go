package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/codeindexd/internal/pipeline"
	"github.com/fyrsmithlabs/codeindexd/internal/sanitize"
)

var (
	indexRepoPath   string
	indexCollection string
	indexRepoName   string
	indexResolve    bool
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Run the five-stage indexing pipeline over a repository",
	Long: `index walks a repository, extracts entities, embeds them, and stores
them in Postgres and Qdrant, then drains the transactional outbox and
resolves pending cross-references into graph edges.`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().StringVar(&indexRepoPath, "repo", "", "path to the repository root (required)")
	indexCmd.Flags().StringVar(&indexCollection, "collection", "", "vector-store collection name (default: derived from --repo)")
	indexCmd.Flags().StringVar(&indexRepoName, "name", "", "human-readable repository name (default: derived from --repo)")
	indexCmd.Flags().BoolVar(&indexResolve, "resolve", true, "run graph relationship resolution after indexing")
	_ = indexCmd.MarkFlagRequired("repo")
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	indexRepoPath, err = sanitize.ValidatePath(indexRepoPath, "")
	if err != nil {
		return fmt.Errorf("--repo: %w", err)
	}
	if err := sanitize.ValidateGlobPatterns(cfg.Repository.FallbackExcludes); err != nil {
		return fmt.Errorf("repository.fallback_excludes: %w", err)
	}

	collection := indexCollection
	if collection == "" {
		collection = defaultCollectionName(indexRepoPath)
	}
	repoName := indexRepoName
	if repoName == "" {
		repoName = collection
	}

	deps, err := initDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init dependencies: %w", err)
	}
	defer deps.Close()

	driver := &pipeline.Driver{
		Config: cfg.Indexer,
		Store:  deps.Relational,
		Embed: pipeline.EmbedDeps{
			Dense:        deps.Dense,
			Sparse:       deps.Sparse,
			Store:        deps.Relational,
			ModelVersion: cfg.Embeddings.Model,
		},
		Scrub:  deps.Scrub,
		Logger: logger,
	}

	started := time.Now()
	stats, err := driver.Run(ctx, collection, repoName, pipeline.DiscoveryOptions{
		RepositoryPath:  indexRepoPath,
		IncludePatterns: nil,
		ExcludePatterns: cfg.Repository.FallbackExcludes,
	})
	if err != nil {
		return fmt.Errorf("pipeline run: %w", err)
	}

	logger.Info(ctx, "indexing run complete",
		zap.Duration("elapsed", time.Since(started)),
		zap.Int("files_discovered", stats.FilesDiscovered),
		zap.Int("files_failed", stats.FilesFailed),
		zap.Int("entities_extracted", stats.EntitiesExtracted),
		zap.Int("entities_stored", stats.EntitiesStored),
		zap.Int("entities_deleted", stats.EntitiesDeleted),
		zap.Int("embeddings_cached", stats.EmbeddingsCached),
		zap.Int("embeddings_fresh", stats.EmbeddingsFresh),
	)
	fmt.Printf("indexed %s: %d entities extracted, %d stored, %d deleted (%d files, %d failed)\n",
		indexRepoPath, stats.EntitiesExtracted, stats.EntitiesStored, stats.EntitiesDeleted, stats.FilesDiscovered, stats.FilesFailed)

	projector, err := newProjector(deps)
	if err != nil {
		return fmt.Errorf("build outbox projector: %w", err)
	}
	if err := projector.Drain(ctx); err != nil {
		return fmt.Errorf("drain outbox: %w", err)
	}

	if indexResolve {
		repositoryID, _, err := deps.Relational.GetRepositoryByCollection(ctx, collection)
		if err != nil {
			return fmt.Errorf("look up repository: %w", err)
		}
		resolver, err := newResolver(deps)
		if err != nil {
			return fmt.Errorf("build graph resolver: %w", err)
		}
		resolved, err := resolver.ResolveOnce(ctx, repositoryID)
		if err != nil {
			return fmt.Errorf("resolve relationships: %w", err)
		}
		fmt.Printf("resolved %d pending relationships\n", resolved)
	}

	return nil
}
