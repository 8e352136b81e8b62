package graph

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("codeindexd.graph.neo4j")

// Neo4jStore is the Store implementation backing the relationship resolver's graph store, holding
// one neo4j.DriverWithContext shared across every session. Sessions are
// opened per call and closed before returning, the driver's own connection
// pool doing the reuse.
type Neo4jStore struct {
	driver neo4j.DriverWithContext
	config Neo4jConfig
}

var _ Store = (*Neo4jStore)(nil)

// NewStore opens a driver against cfg.URI, applies cfg's defaults, verifies
// connectivity, and ensures the graph schema before returning.
func NewStore(ctx context.Context, cfg Neo4jConfig) (*Neo4jStore, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	driver, err := neo4j.NewDriverWithContext(
		cfg.URI,
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
		func(c *neo4j.Config) {
			c.MaxConnectionPoolSize = cfg.MaxConnectionPoolSize
		},
	)
	if err != nil {
		return nil, fmt.Errorf("graph: create driver: %w", err)
	}

	verifyCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		driver.Close(ctx) //nolint:errcheck
		return nil, fmt.Errorf("graph: verify connectivity: %w", err)
	}

	store := &Neo4jStore{driver: driver, config: cfg}
	if err := store.EnsureSchema(ctx); err != nil {
		driver.Close(ctx) //nolint:errcheck
		return nil, err
	}
	return store, nil
}

func (s *Neo4jStore) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.config.Database,
		AccessMode:   mode,
	})
}

func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// EnsureSchema creates a uniqueness constraint on (repository_id, entity_id)
// pairs, the graph analogue of entity_metadata's composite primary key.
func (s *Neo4jStore) EnsureSchema(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "EnsureSchema")
	defer span.End()

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx) //nolint:errcheck

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx,
			`CREATE CONSTRAINT entity_repo_id IF NOT EXISTS
			 FOR (e:Entity) REQUIRE (e.repository_id, e.entity_id) IS UNIQUE`,
			nil)
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("graph: ensure schema: %w", err)
	}
	return nil
}

func (s *Neo4jStore) UpsertEntityNodes(ctx context.Context, repositoryID uuid.UUID, entityIDs []string, entityTypes map[string]string) error {
	if len(entityIDs) == 0 {
		return nil
	}
	ctx, span := tracer.Start(ctx, "UpsertEntityNodes")
	defer span.End()

	rows := make([]map[string]any, len(entityIDs))
	for i, id := range entityIDs {
		rows[i] = map[string]any{
			"entity_id":   id,
			"entity_type": entityTypes[id],
		}
	}

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx) //nolint:errcheck

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx,
			`UNWIND $rows AS row
			 MERGE (e:Entity {repository_id: $repository_id, entity_id: row.entity_id})
			 SET e.entity_type = row.entity_type`,
			map[string]any{"repository_id": repositoryID.String(), "rows": rows})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("graph: upsert entity nodes: %w", err)
	}
	return nil
}

func (s *Neo4jStore) UpsertEdges(ctx context.Context, edges []Edge) error {
	if len(edges) == 0 {
		return nil
	}
	ctx, span := tracer.Start(ctx, "UpsertEdges")
	defer span.End()

	rows := make([]map[string]any, len(edges))
	for i, e := range edges {
		rows[i] = map[string]any{
			"repository_id": e.RepositoryID.String(),
			"source_id":     e.SourceEntityID,
			"target_id":     e.TargetEntityID,
			"kind":          string(e.Kind),
		}
	}

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx) //nolint:errcheck

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx,
			`UNWIND $rows AS row
			 MATCH (src:Entity {repository_id: row.repository_id, entity_id: row.source_id})
			 MATCH (dst:Entity {repository_id: row.repository_id, entity_id: row.target_id})
			 MERGE (src)-[r:RELATES {kind: row.kind}]->(dst)`,
			map[string]any{"rows": rows})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("graph: upsert edges: %w", err)
	}
	return nil
}

func (s *Neo4jStore) DeleteEntityNodes(ctx context.Context, repositoryID uuid.UUID, entityIDs []string) error {
	if len(entityIDs) == 0 {
		return nil
	}
	ctx, span := tracer.Start(ctx, "DeleteEntityNodes")
	defer span.End()

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx) //nolint:errcheck

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx,
			`MATCH (e:Entity {repository_id: $repository_id})
			 WHERE e.entity_id IN $entity_ids
			 DETACH DELETE e`,
			map[string]any{"repository_id": repositoryID.String(), "entity_ids": entityIDs})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("graph: delete entity nodes: %w", err)
	}
	return nil
}
