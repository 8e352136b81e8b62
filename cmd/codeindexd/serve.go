package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/codeindexd/internal/logging"
	"github.com/fyrsmithlabs/codeindexd/internal/search"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the outbox projector and a localhost-only hybrid search API",
	Long: `serve starts the outbox projector as a background loop, draining
newly indexed entities into Qdrant, and exposes a localhost-only HTTP API
implementing the search wire protocol: POST /search/semantic,
/search/fulltext, /search/hybrid, and /search/hybrid_rerank.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "HTTP listen port (default: server.http_port from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

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

	projector, err := newProjector(deps)
	if err != nil {
		return fmt.Errorf("build outbox projector: %w", err)
	}
	go func() {
		if err := projector.Run(ctx); err != nil {
			logger.Error(ctx, "outbox projector stopped", zap.Error(err))
		}
	}()

	port := servePort
	if port == 0 {
		port = cfg.Server.Port
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", port),
		Handler: newSearchMux(coordinator, logger),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "search server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("search server: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown search server: %w", err)
	}
	return <-errCh
}

// newSearchMux builds the localhost search API using the standard
// library's pattern-based ServeMux (Go 1.22+) rather than a third-party
// router: every route here is a single fixed POST path with no path
// parameters or middleware chain to justify a router package.
func newSearchMux(coordinator *search.Coordinator, logger *logging.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /search/semantic", searchHandler(coordinator.Semantic, logger))
	mux.HandleFunc("POST /search/fulltext", fulltextHandler(coordinator, logger))
	mux.HandleFunc("POST /search/hybrid", searchHandler(coordinator.Hybrid, logger))
	mux.HandleFunc("POST /search/hybrid_rerank", searchHandler(coordinator.HybridRerank, logger))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// searchRequest is the wire-protocol request body shared by the
// embedding-backed modes (semantic, hybrid, hybrid_rerank): a repository
// id, query text with an optional instruction override, an opaque
// payload filter, and a result limit.
type searchRequest struct {
	RepositoryID   string         `json:"repository_id"`
	CollectionName string         `json:"collection_name"`
	Query          queryText      `json:"query"`
	Filter         map[string]any `json:"filter,omitempty"`
	Limit          int            `json:"limit,omitempty"`
}

type queryText struct {
	Text        string `json:"text"`
	Instruction string `json:"instruction,omitempty"`
}

type searchResponse struct {
	Results  []search.Result `json:"results"`
	Metadata map[string]any  `json:"metadata"`
}

type searchFunc func(ctx context.Context, q search.Query) ([]search.Result, error)

func searchHandler(fn searchFunc, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		repositoryID, err := uuid.Parse(req.RepositoryID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid repository_id")
			return
		}

		results, err := fn(r.Context(), search.Query{
			RepositoryID:   repositoryID,
			CollectionName: req.CollectionName,
			Text:           req.Query.Text,
			Instruction:    req.Query.Instruction,
			Filter:         req.Filter,
			Limit:          req.Limit,
		})
		if err != nil {
			writeSearchError(r.Context(), w, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, searchResponse{
			Results:  results,
			Metadata: map[string]any{"count": len(results)},
		})
	}
}

// fulltextHandler adapts the Fulltext wire shape (repository_id, query,
// limit — no embedding query object) to the shared response envelope.
func fulltextHandler(coordinator *search.Coordinator, logger *logging.Logger) http.HandlerFunc {
	type fulltextRequest struct {
		RepositoryID   string `json:"repository_id"`
		CollectionName string `json:"collection_name"`
		Query          string `json:"query"`
		Limit          int    `json:"limit,omitempty"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req fulltextRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		repositoryID, err := uuid.Parse(req.RepositoryID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid repository_id")
			return
		}

		results, err := coordinator.Fulltext(r.Context(), search.Query{
			RepositoryID:   repositoryID,
			CollectionName: req.CollectionName,
			Text:           req.Query,
			Limit:          req.Limit,
		})
		if err != nil {
			writeSearchError(r.Context(), w, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, searchResponse{
			Results:  results,
			Metadata: map[string]any{"count": len(results)},
		})
	}
}

func writeSearchError(ctx context.Context, w http.ResponseWriter, logger *logging.Logger, err error) {
	if search.IsCollectionNotFound(err) {
		writeError(w, http.StatusNotFound, "collection not found")
		return
	}
	if errors.Is(err, search.ErrEmptyQuery) {
		writeError(w, http.StatusBadRequest, "query text must not be empty")
		return
	}
	logger.Error(ctx, "search request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

