// Package config provides configuration loading for codeindexd.
//
// Configuration is loaded from a YAML file, then overridden by environment
// variables, with every component falling back to its own package-level
// ApplyDefaults when a field is left unset. This package owns only the
// ambient, process-wide sections (server, logging, repository discovery,
// production safety) plus the composition of every already-self-contained
// component Config into one root Config struct.
package config

import (
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/fyrsmithlabs/codeindexd/internal/embeddings"
	"github.com/fyrsmithlabs/codeindexd/internal/graph"
	"github.com/fyrsmithlabs/codeindexd/internal/outbox"
	"github.com/fyrsmithlabs/codeindexd/internal/pipeline"
	"github.com/fyrsmithlabs/codeindexd/internal/relational"
	"github.com/fyrsmithlabs/codeindexd/internal/reranker"
	"github.com/fyrsmithlabs/codeindexd/internal/search"
	"github.com/fyrsmithlabs/codeindexd/internal/secrets"
	"github.com/fyrsmithlabs/codeindexd/internal/vectorstore"
)

// Config holds the complete codeindexd configuration: the ambient sections
// defined in this package, plus one field per wired component, each using
// that component's own Config type verbatim so the two never drift apart.
//
// Component sections (Postgres, Qdrant, Embeddings, Sparse, Reranker,
// Search, Indexer, Outbox, Neo4j, Resolver) carry no koanf struct tags of
// their own, since each is built and tested independently of this package.
// koanf falls back to case-insensitive whole-name matching for untagged
// fields, so YAML keys and the field segment of environment variables for
// these sections must spell the Go field name with internal underscores
// removed, e.g. `postgres.maxconns` / POSTGRES_MAXCONNS for
// PostgresConfig.MaxConns, not `postgres.max_conns`. The ambient sections
// below use explicit koanf tags and the ordinary snake_case convention.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	Production ProductionConfig `koanf:"production"`
	Repository RepositoryConfig `koanf:"repository"`

	Postgres relational.PostgresConfig `koanf:"postgres"`
	Qdrant   vectorstore.QdrantConfig  `koanf:"qdrant"`
	Neo4j    graph.Neo4jConfig         `koanf:"neo4j"`
	Resolver graph.ResolverConfig      `koanf:"resolver"`

	Embeddings embeddings.ProviderConfig `koanf:"embeddings"`
	Sparse     embeddings.SparseConfig   `koanf:"sparse"`
	Reranker   reranker.Config           `koanf:"reranker"`
	Search     search.Config             `koanf:"search"`

	Indexer pipeline.Config `koanf:"indexer"`
	Outbox  outbox.Config   `koanf:"outbox"`

	// Secrets configures the scrubber the extraction stage runs over
	// every entity's content before it is embedded or stored, so a
	// checked-in credential never ends up in a vector or a snippet
	// served back over search. Disabled by default: scanning every
	// entity's content against dozens of patterns has a real per-file
	// cost, so it's opt-in for repositories where it matters.
	Secrets secrets.Config `koanf:"secrets"`
}

// ApplyDefaults fills every zero-valued field, delegating to each
// component's own ApplyDefaults so this package never duplicates a
// default value another package already owns.
func (c *Config) ApplyDefaults() {
	c.Server.ApplyDefaults()
	c.Logging.ApplyDefaults()
	c.Repository.ApplyDefaults()

	c.Postgres.ApplyDefaults()
	c.Qdrant.ApplyDefaults()
	c.Neo4j.ApplyDefaults()
	c.Resolver.ApplyDefaults()

	c.Embeddings.ApplyDefaults()
	c.Sparse.ApplyDefaults()
	c.Reranker.ApplyDefaults()
	c.Search.ApplyDefaults()

	c.Indexer.ApplyDefaults()
	c.Outbox.ApplyDefaults()

	if c.Secrets.Enabled {
		if len(c.Secrets.Rules) == 0 {
			c.Secrets.Rules = secrets.DefaultRules()
		}
		if c.Secrets.RedactionString == "" {
			c.Secrets.RedactionString = "[REDACTED]"
		}
	}
}

// Validate checks every section, stopping at the first error. Call after
// ApplyDefaults; a zero-valued section that hasn't had defaults applied
// will generally fail its own Validate.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.Production.Validate(); err != nil {
		return fmt.Errorf("production: %w", err)
	}
	if err := validateHostname(c.Qdrant.Host); err != nil {
		return fmt.Errorf("qdrant.host: %w", err)
	}
	if err := c.Qdrant.Validate(); err != nil {
		return fmt.Errorf("qdrant: %w", err)
	}
	if err := c.Postgres.Validate(); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	if err := c.Neo4j.Validate(); err != nil {
		return fmt.Errorf("neo4j: %w", err)
	}
	if err := c.Resolver.Validate(); err != nil {
		return fmt.Errorf("resolver: %w", err)
	}
	if err := c.Embeddings.Validate(); err != nil {
		return fmt.Errorf("embeddings: %w", err)
	}
	if c.Embeddings.BaseURL != "" {
		if err := validateURL(c.Embeddings.BaseURL); err != nil {
			return fmt.Errorf("embeddings.base_url: %w", err)
		}
	}
	if err := c.Sparse.Validate(); err != nil {
		return fmt.Errorf("sparse: %w", err)
	}
	if c.Reranker.Enabled {
		if err := c.Reranker.Validate(); err != nil {
			return fmt.Errorf("reranker: %w", err)
		}
	}
	if err := c.Search.Validate(); err != nil {
		return fmt.Errorf("search: %w", err)
	}
	if err := c.Indexer.Validate(); err != nil {
		return fmt.Errorf("indexer: %w", err)
	}
	if err := c.Outbox.Validate(); err != nil {
		return fmt.Errorf("outbox: %w", err)
	}
	if err := c.Secrets.Validate(); err != nil {
		return fmt.Errorf("secrets: %w", err)
	}
	return nil
}

// ServerConfig holds the HTTP API's listen and shutdown settings.
type ServerConfig struct {
	Port            int           `koanf:"http_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// ApplyDefaults sets default values for unset fields.
func (c *ServerConfig) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
}

// Validate validates the configuration.
func (c ServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid http_port: %d (must be 1-65535)", c.Port)
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("shutdown_timeout must be positive")
	}
	return nil
}

// LoggingConfig is the koanf-facing counterpart of internal/logging.Config;
// cmd/codeindexd translates one into the other when building the logger.
// It lives here rather than embedding internal/logging.Config directly
// because internal/logging has no dependency on this package and must
// stay that way: embedding it here would close an import cycle back
// through logging's own tests, which exercise Secret/duration redaction
// independently of any config loader.
type LoggingConfig struct {
	Level             string            `koanf:"level"` // zapcore level name: debug, info, warn, error
	Format            string            `koanf:"format"`
	Stdout            bool              `koanf:"stdout"`
	OTEL              bool              `koanf:"otel"`
	SamplingEnabled   bool              `koanf:"sampling_enabled"`
	SamplingTick      time.Duration     `koanf:"sampling_tick"`
	RedactionEnabled  bool              `koanf:"redaction_enabled"`
	RedactionFields   []string          `koanf:"redaction_fields"`
	RedactionPatterns []string          `koanf:"redaction_patterns"`
	Fields            map[string]string `koanf:"fields"`
}

// ApplyDefaults sets default values for unset fields.
func (c *LoggingConfig) ApplyDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "json"
	}
	if !c.Stdout && !c.OTEL {
		c.Stdout = true
	}
	if c.SamplingTick == 0 {
		c.SamplingTick = time.Second
	}
	if c.RedactionEnabled && len(c.RedactionFields) == 0 {
		c.RedactionFields = []string{"password", "secret", "token", "api_key", "authorization", "bearer", "credential", "private_key"}
	}
}

// Validate validates the configuration.
func (c LoggingConfig) Validate() error {
	if c.Format != "json" && c.Format != "console" {
		return fmt.Errorf("format must be 'json' or 'console', got %q", c.Format)
	}
	if !c.Stdout && !c.OTEL {
		return errors.New("at least one output must be enabled (stdout or otel)")
	}
	if c.SamplingEnabled && c.SamplingTick <= 0 {
		return errors.New("sampling_tick must be > 0 when sampling enabled")
	}
	for _, pattern := range c.RedactionPatterns {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("invalid redaction pattern %q: %w", pattern, err)
		}
	}
	return nil
}

// RepositoryConfig holds repository discovery configuration: which
// ignore-file conventions to parse and what to exclude when none are
// found.
type RepositoryConfig struct {
	// IgnoreFiles is a list of ignore file names to parse from project
	// root. Patterns from these files are used as exclude patterns
	// during indexing.
	IgnoreFiles []string `koanf:"ignore_files"`

	// FallbackExcludes are used when no ignore files are found in the
	// project.
	FallbackExcludes []string `koanf:"fallback_excludes"`
}

// ApplyDefaults sets default values for unset fields.
func (c *RepositoryConfig) ApplyDefaults() {
	if len(c.IgnoreFiles) == 0 {
		c.IgnoreFiles = []string{".gitignore", ".dockerignore"}
	}
	if len(c.FallbackExcludes) == 0 {
		c.FallbackExcludes = []string{".git/**", "node_modules/**", "vendor/**", "__pycache__/**"}
	}
}

// ProductionConfig holds production deployment safety checks: a handful
// of booleans that gate dangerous defaults (no auth, no TLS, no tenant
// isolation) from silently running in production.
type ProductionConfig struct {
	// Enabled indicates whether production mode is active.
	Enabled bool `koanf:"enabled"`

	// LocalModeAcknowledged allows development features in production
	// mode. Use only for local development/testing.
	LocalModeAcknowledged bool `koanf:"local_mode_acknowledged"`

	// RequireAuthentication enforces authentication in production.
	RequireAuthentication bool `koanf:"require_authentication"`

	// AuthenticationConfigured indicates if auth is properly set up.
	AuthenticationConfigured bool `koanf:"authentication_configured"`

	// RequireTLS enforces TLS for external services (Postgres, Qdrant, Neo4j).
	RequireTLS bool `koanf:"require_tls"`

	// AllowNoIsolation permits running without per-repository isolation
	// (testing only). Always false in production mode.
	AllowNoIsolation bool `koanf:"allow_no_isolation"`
}

// IsProduction returns true if running in production mode.
func (c *ProductionConfig) IsProduction() bool {
	return c.Enabled
}

// IsLocal returns true if local mode is acknowledged.
func (c *ProductionConfig) IsLocal() bool {
	return c.LocalModeAcknowledged
}

// Validate checks production configuration for security issues.
func (c ProductionConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.AllowNoIsolation {
		return errors.New("SECURITY: AllowNoIsolation cannot be enabled in production")
	}
	if c.RequireAuthentication && !c.AuthenticationConfigured {
		return errors.New("SECURITY: RequireAuthentication enabled but authentication not configured")
	}
	return nil
}

// validateHostname checks if a hostname is safe (no command injection attempts).
func validateHostname(host string) error {
	if host == "" {
		return nil
	}
	if net.ParseIP(host) != nil {
		return nil
	}
	hostnameRegex := regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)
	if !hostnameRegex.MatchString(host) {
		return fmt.Errorf("invalid hostname format: %s", host)
	}
	invalidChars := []string{";", "\n", "\r", "$", "`", "|", "&", "<", ">", "(", ")"}
	for _, char := range invalidChars {
		if strings.Contains(host, char) {
			return fmt.Errorf("invalid hostname: contains forbidden character %q", char)
		}
	}
	return nil
}

// validateURL checks if a URL uses allowed schemes (http/https only).
func validateURL(urlStr string) error {
	if !strings.HasPrefix(urlStr, "http://") && !strings.HasPrefix(urlStr, "https://") {
		return fmt.Errorf("URL must use http:// or https:// scheme, got: %s", urlStr)
	}
	return nil
}
