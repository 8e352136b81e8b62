package main

import (
	"context"
	"fmt"

	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/codeindexd/internal/config"
	"github.com/fyrsmithlabs/codeindexd/internal/embeddings"
	"github.com/fyrsmithlabs/codeindexd/internal/graph"
	"github.com/fyrsmithlabs/codeindexd/internal/logging"
	"github.com/fyrsmithlabs/codeindexd/internal/outbox"
	"github.com/fyrsmithlabs/codeindexd/internal/relational"
	"github.com/fyrsmithlabs/codeindexd/internal/reranker"
	"github.com/fyrsmithlabs/codeindexd/internal/secrets"
	"github.com/fyrsmithlabs/codeindexd/internal/vectorstore"
)

// dependencies holds every external connection and provider wired from
// config, shared across the init/index/serve/search subcommands. Close
// tears everything down in reverse order of construction.
type dependencies struct {
	Config *config.Config
	Logger *logging.Logger

	Relational relational.Store
	Vector     vectorstore.Store
	Graph      graph.Store

	Dense  embeddings.Provider
	Sparse embeddings.SparseProvider

	Reranker reranker.Reranker // nil when Config.Reranker.Enabled is false
	Scrub    secrets.Scrubber
}

// loadConfig reads and validates the config file at configPath (or the
// default path when empty).
func loadConfig() (*config.Config, error) {
	return config.LoadWithFile(configPath)
}

// initLogger translates the flat, koanf-facing config.LoggingConfig into
// internal/logging's nested Config and builds a Logger from it. The two
// shapes are kept deliberately decoupled (see config.LoggingConfig's doc
// comment), so this translation is the only place that bridges them.
func initLogger(cfg *config.Config) (*logging.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Logging.Level)); err != nil {
		return nil, fmt.Errorf("logging.level: %w", err)
	}

	logCfg := &logging.Config{
		Level:  level,
		Format: cfg.Logging.Format,
		Output: logging.OutputConfig{
			Stdout: cfg.Logging.Stdout,
			OTEL:   cfg.Logging.OTEL,
		},
		Sampling: logging.SamplingConfig{
			Enabled: cfg.Logging.SamplingEnabled,
			Tick:    cfg.Logging.SamplingTick,
			Levels:  logging.DefaultLevelSamplingConfig(),
		},
		Caller: logging.CallerConfig{
			Enabled: true,
			Skip:    1,
		},
		Stacktrace: logging.StacktraceConfig{
			Level: zapcore.ErrorLevel,
		},
		Fields: cfg.Logging.Fields,
		Redaction: logging.RedactionConfig{
			Enabled:  cfg.Logging.RedactionEnabled,
			Fields:   cfg.Logging.RedactionFields,
			Patterns: cfg.Logging.RedactionPatterns,
		},
	}
	if logCfg.Fields == nil {
		logCfg.Fields = map[string]string{"service": "codeindexd"}
	}

	// No OTEL LoggerProvider is wired: the search server is a local,
	// single-process tool and cfg.Logging.OTEL is rejected by
	// LoggingConfig.Validate combined with an unset Stdout (at least one
	// output must be enabled), so passing nil here only matters when OTEL
	// output is requested, in which case logs are simply dropped until a
	// provider is wired.
	return logging.NewLogger(logCfg, nil)
}

// initDependencies connects every external store and provider named in
// cfg. Callers must defer deps.Close() on success.
func initDependencies(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*dependencies, error) {
	deps := &dependencies{Config: cfg, Logger: logger}

	relStore, err := relational.NewStore(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	deps.Relational = relStore

	vecStore, err := vectorstore.NewStoreFromConfig(cfg.Qdrant)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("connect qdrant: %w", err)
	}
	deps.Vector = vecStore

	graphStore, err := graph.NewStore(ctx, cfg.Neo4j)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("connect neo4j: %w", err)
	}
	deps.Graph = graphStore

	dense, err := embeddings.NewProvider(cfg.Embeddings)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("build dense embedding provider: %w", err)
	}
	deps.Dense = dense

	sparse, err := embeddings.NewSparseProvider(cfg.Sparse)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("build sparse embedding provider: %w", err)
	}
	deps.Sparse = sparse

	if cfg.Reranker.Enabled {
		rr, err := reranker.NewReranker(cfg.Reranker)
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("build reranker: %w", err)
		}
		deps.Reranker = rr
	}

	scrub, err := secrets.New(&cfg.Secrets)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("build secret scrubber: %w", err)
	}
	deps.Scrub = scrub

	return deps, nil
}

// Close releases every dependency that was successfully constructed,
// tolerating a partially-built dependencies value (the error path during
// initDependencies calls Close before every field is set).
func (d *dependencies) Close() {
	if d.Reranker != nil {
		d.Reranker.Close()
	}
	if d.Dense != nil {
		d.Dense.Close()
	}
	if d.Graph != nil {
		d.Graph.Close(context.Background())
	}
	if d.Vector != nil {
		d.Vector.Close()
	}
	if d.Relational != nil {
		d.Relational.Close()
	}
}

// newProjector builds the outbox projector shared by the index and serve
// commands.
func newProjector(deps *dependencies) (*outbox.Projector, error) {
	return outbox.NewProjector(deps.Relational, deps.Vector, deps.Config.Outbox, deps.Logger)
}

// newResolver builds the relationship resolver shared by the index and
// serve commands.
func newResolver(deps *dependencies) (*graph.Resolver, error) {
	return graph.NewResolver(deps.Relational, deps.Graph, deps.Config.Resolver, deps.Logger)
}
