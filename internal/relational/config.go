package relational

import (
	"fmt"
	"time"
)

// PostgresConfig holds configuration for the pgxpool-backed Store.
type PostgresConfig struct {
	// DSN is the full PostgreSQL connection string (postgres://...).
	// Takes precedence over Host/Port/etc. when set.
	DSN string

	// Host is the PostgreSQL server hostname, used only when DSN is empty.
	Host string

	// Port is the PostgreSQL server port. Default: 5432.
	Port int

	// Database is the database name.
	Database string

	// User and Password authenticate the connection.
	User     string
	Password string

	// MaxConns bounds the pgxpool connection pool size. Default: 10.
	MaxConns int32

	// MaxEntitiesPerOperation caps the size of any single batch write
	// (StoreEntitiesWithOutboxBatch, MarkEntitiesDeletedWithOutbox).
	// Default: 10000.
	MaxEntitiesPerOperation int

	// ConnectTimeout bounds pool creation and the initial ping.
	// Default: 10s.
	ConnectTimeout time.Duration
}

// ApplyDefaults sets default values for unset fields.
func (c *PostgresConfig) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 5432
	}
	if c.MaxConns == 0 {
		c.MaxConns = 10
	}
	if c.MaxEntitiesPerOperation == 0 {
		c.MaxEntitiesPerOperation = 10000
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 10 * time.Second
	}
}

// Validate validates the configuration.
func (c PostgresConfig) Validate() error {
	if c.DSN == "" && c.Host == "" {
		return fmt.Errorf("%w: either DSN or Host required", ErrInvalidConfig)
	}
	if c.DSN == "" {
		if c.Port <= 0 || c.Port > 65535 {
			return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
		}
		if c.Database == "" {
			return fmt.Errorf("%w: database required", ErrInvalidConfig)
		}
	}
	if c.MaxEntitiesPerOperation <= 0 {
		return fmt.Errorf("%w: max_entities_per_db_operation must be positive", ErrInvalidConfig)
	}
	return nil
}

// connString returns the DSN to hand to pgxpool.ParseConfig: c.DSN verbatim
// if set, otherwise one composed from the discrete fields.
func (c PostgresConfig) connString() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", c.User, c.Password, c.Host, c.Port, c.Database)
}
