package graph

import (
	"fmt"
	"time"
)

// Neo4jConfig holds configuration for the neo4j-go-driver-backed Store.
type Neo4jConfig struct {
	// URI is the Neo4j Bolt connection URI (bolt://... or neo4j://...).
	URI string

	// Username and Password authenticate the connection.
	Username string
	Password string

	// Database selects the Neo4j database the driver targets. Default: "neo4j".
	Database string

	// MaxConnectionPoolSize bounds the driver's connection pool. Default: 50.
	MaxConnectionPoolSize int

	// ConnectTimeout bounds driver creation and the initial connectivity
	// check. Default: 10s.
	ConnectTimeout time.Duration
}

// ApplyDefaults sets default values for unset fields.
func (c *Neo4jConfig) ApplyDefaults() {
	if c.Database == "" {
		c.Database = "neo4j"
	}
	if c.MaxConnectionPoolSize == 0 {
		c.MaxConnectionPoolSize = 50
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 10 * time.Second
	}
}

// Validate validates the configuration.
func (c Neo4jConfig) Validate() error {
	if c.URI == "" {
		return fmt.Errorf("%w: uri required", ErrInvalidConfig)
	}
	if c.MaxConnectionPoolSize <= 0 {
		return fmt.Errorf("%w: max_connection_pool_size must be positive", ErrInvalidConfig)
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("%w: connect_timeout must be positive", ErrInvalidConfig)
	}
	return nil
}

// ResolverConfig tunes the relationship resolver's pass over pending rows.
type ResolverConfig struct {
	// BatchSize is the number of pending relationships fetched and resolved
	// per repository in one pass. Default: 500.
	BatchSize int

	// PollInterval is the spacing between resolution passes when run
	// continuously via Run. Default: 2s.
	PollInterval time.Duration
}

// ApplyDefaults sets default values for unset fields.
func (c *ResolverConfig) ApplyDefaults() {
	if c.BatchSize == 0 {
		c.BatchSize = 500
	}
	if c.PollInterval == 0 {
		c.PollInterval = 2 * time.Second
	}
}

// Validate validates the configuration.
func (c ResolverConfig) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch_size must be positive", ErrInvalidConfig)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll_interval must be positive", ErrInvalidConfig)
	}
	return nil
}
