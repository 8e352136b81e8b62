package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/codeindexd/internal/sanitize"
)

var (
	initRepoPath   string
	initCollection string
	initRepoName   string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Provision a repository's storage: collection, schema, and identity row",
	Long: `init ensures a repository is known to every backing store before the
first index run: a repositories row in Postgres, a Qdrant collection sized
for the configured embedding model, and the Neo4j entity/edge schema.

It is idempotent; running it again against an already-initialized
repository is a no-op.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initRepoPath, "repo", "", "path to the repository root (required)")
	initCmd.Flags().StringVar(&initCollection, "collection", "", "vector-store collection name (default: derived from --repo)")
	initCmd.Flags().StringVar(&initRepoName, "name", "", "human-readable repository name (default: derived from --repo)")
	_ = initCmd.MarkFlagRequired("repo")
}

func runInit(cmd *cobra.Command, args []string) error {
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

	initRepoPath, err = sanitize.ValidatePath(initRepoPath, "")
	if err != nil {
		return fmt.Errorf("--repo: %w", err)
	}

	collection := initCollection
	if collection == "" {
		collection = defaultCollectionName(initRepoPath)
	}
	repoName := initRepoName
	if repoName == "" {
		repoName = collection
	}

	deps, err := initDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init dependencies: %w", err)
	}
	defer deps.Close()

	repositoryID, err := deps.Relational.EnsureRepository(ctx, initRepoPath, collection, repoName)
	if err != nil {
		return fmt.Errorf("ensure repository: %w", err)
	}

	// Every sparse provider (Granite or the BM25 fallback) produces a
	// sparse vector, so the collection always carries one.
	if err := deps.Vector.EnsureCollection(ctx, collection, deps.Dense.Dimension(), true); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}

	if err := deps.Graph.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure graph schema: %w", err)
	}

	logger.Info(ctx, "repository initialized",
		zap.String("repository_id", repositoryID.String()),
		zap.String("collection", collection),
		zap.String("repo_path", initRepoPath),
	)
	fmt.Printf("initialized %s (repository_id=%s, collection=%s)\n", initRepoPath, repositoryID, collection)
	return nil
}

// defaultCollectionName derives a collection name from a repository path
// when --collection is omitted: the final path element, sanitized to the
// identifier format Qdrant collection names require, so `init --repo
// /work/My Project` defaults to collection "my_project" rather than a
// name Qdrant would reject.
func defaultCollectionName(repoPath string) string {
	base := repoPath
	for len(base) > 0 && base[len(base)-1] == '/' {
		base = base[:len(base)-1]
	}
	for i := len(base) - 1; i >= 0; i-- {
		if base[i] == '/' {
			base = base[i+1:]
			break
		}
	}
	return sanitize.Identifier(base)
}
