package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/codeindexd/internal/search"
)

var (
	searchCollection string
	searchQuery      string
	searchMode       string
	searchLimit      int
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Run a one-shot search query against an indexed repository",
	Long: `search queries an already-indexed repository's collection directly,
without starting the HTTP server. Useful for spot-checking an index or
scripting against it.`,
	Args: cobra.NoArgs,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchCollection, "collection", "", "vector-store collection name (required)")
	searchCmd.Flags().StringVar(&searchQuery, "query", "", "query text (required)")
	searchCmd.Flags().StringVar(&searchMode, "mode", "hybrid", "search mode: semantic, fulltext, hybrid, hybrid-rerank")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "result limit (default: search.top_k from config)")
	_ = searchCmd.MarkFlagRequired("collection")
	_ = searchCmd.MarkFlagRequired("query")
}

func runSearch(cmd *cobra.Command, args []string) error {
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

	deps, err := initDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init dependencies: %w", err)
	}
	defer deps.Close()

	coordinator, err := search.NewCoordinator(deps.Relational, deps.Vector, deps.Dense, deps.Sparse, deps.Reranker, cfg.Search, logger)
	if err != nil {
		return fmt.Errorf("build search coordinator: %w", err)
	}

	repositoryID, _, err := deps.Relational.GetRepositoryByCollection(ctx, searchCollection)
	if err != nil {
		return fmt.Errorf("look up repository for collection %q: %w", searchCollection, err)
	}

	q := search.Query{
		RepositoryID:   repositoryID,
		CollectionName: searchCollection,
		Text:           searchQuery,
		Limit:          searchLimit,
	}

	var results []search.Result
	switch searchMode {
	case "semantic":
		results, err = coordinator.Semantic(ctx, q)
	case "fulltext":
		results, err = coordinator.Fulltext(ctx, q)
	case "hybrid":
		results, err = coordinator.Hybrid(ctx, q)
	case "hybrid-rerank":
		results, err = coordinator.HybridRerank(ctx, q)
	default:
		return fmt.Errorf("unknown mode %q: must be semantic, fulltext, hybrid, or hybrid-rerank", searchMode)
	}
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Results []search.Result `json:"results"`
	}{Results: results})
}
