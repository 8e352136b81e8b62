package graph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/codeindexd/internal/logging"
	"github.com/fyrsmithlabs/codeindexd/internal/relational"
)

// externalPrefix marks an FQN the resolver produced by Resolve; such a
// target never produces an edge.
const externalPrefix = "external::"

// Resolver performs the second-pass conversion of pending relationships
// into graph edges: resolve each (source_fqn, target_fqn) pair against the
// repository's indexed entities, emit an edge for every match, and delete
// the resolved rows. Rows whose target cannot be resolved yet (a forward
// reference to a file not indexed, or a genuinely external symbol) are left
// in place for a future pass.
type Resolver struct {
	Relational relational.Store
	Graph      Store
	Config     ResolverConfig
	Logger     *logging.Logger
}

// NewResolver applies cfg's defaults and validates it.
func NewResolver(store relational.Store, graphStore Store, cfg ResolverConfig, logger *logging.Logger) (*Resolver, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Resolver{Relational: store, Graph: graphStore, Config: cfg, Logger: logger}, nil
}

// Run repeatedly calls ResolveOnce for repositoryID every Config.PollInterval
// until ctx is canceled.
func (r *Resolver) Run(ctx context.Context, repositoryID uuid.UUID) error {
	ticker := time.NewTicker(r.Config.PollInterval)
	defer ticker.Stop()

	for {
		n, err := r.ResolveOnce(ctx, repositoryID)
		if err != nil && r.Logger != nil {
			r.Logger.Error(ctx, "graph: resolve pass failed", zap.Error(err))
		} else if n > 0 && r.Logger != nil {
			r.Logger.Info(ctx, "graph: resolved pending relationships", zap.Int("count", n))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// ResolveOnce fetches up to Config.BatchSize pending relationships for
// repositoryID, resolves as many as it can to graph edges, writes those
// edges, deletes the rows it resolved, and returns how many it resolved.
// Unresolved rows are left untouched for a later call.
func (r *Resolver) ResolveOnce(ctx context.Context, repositoryID uuid.UUID) (int, error) {
	pending, err := r.Relational.GetPendingRelationships(ctx, repositoryID, r.Config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("graph: resolve: fetch pending: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	targets := make(map[string]struct{})
	for _, rel := range pending {
		for _, fqn := range candidateTargets(rel.TargetFQN) {
			targets[fqn] = struct{}{}
		}
	}
	wanted := make([]string, 0, len(targets))
	for fqn := range targets {
		wanted = append(wanted, fqn)
	}

	resolved, err := r.Relational.GetEntitiesByQualifiedNames(ctx, repositoryID, wanted)
	if err != nil {
		return 0, fmt.Errorf("graph: resolve: lookup qualified names: %w", err)
	}

	var edges []Edge
	var resolvedIDs []uuid.UUID
	for _, rel := range pending {
		sourceID, ok := resolved[rel.SourceFQN]
		if !ok {
			continue
		}
		targetID := ""
		for _, candidate := range candidateTargets(rel.TargetFQN) {
			if id, ok := resolved[candidate]; ok {
				targetID = id
				break
			}
		}
		if targetID == "" {
			continue
		}
		edges = append(edges, Edge{
			RepositoryID:   repositoryID,
			SourceEntityID: sourceID,
			TargetEntityID: targetID,
			Kind:           rel.Kind,
		})
		resolvedIDs = append(resolvedIDs, rel.PendingID)
	}

	if len(edges) > 0 {
		if err := r.Graph.UpsertEdges(ctx, edges); err != nil {
			return 0, fmt.Errorf("graph: resolve: upsert edges: %w", err)
		}
	}
	if len(resolvedIDs) > 0 {
		if err := r.Relational.DeletePendingRelationshipsBatch(ctx, resolvedIDs); err != nil {
			return 0, fmt.Errorf("graph: resolve: delete resolved: %w", err)
		}
	}
	return len(resolvedIDs), nil
}

// candidateTargets returns the FQN forms to try resolving targetFQN
// against, in priority order. An "external::"-prefixed FQN never resolves
// so it is excluded entirely. A trait-impl FQN of the form
// "<Type as Trait>::method" additionally tries the shortened "Type::method"
// form, matching a caller that invoked the method directly on the type
// rather than through fully-qualified trait syntax.
func candidateTargets(targetFQN string) []string {
	if strings.HasPrefix(targetFQN, externalPrefix) {
		return nil
	}
	if short, ok := traitImplShortForm(targetFQN); ok {
		return []string{targetFQN, short}
	}
	return []string{targetFQN}
}

// traitImplShortForm parses "<Type as Trait>::method" into "Type::method".
// Returns ok=false for any FQN not in that shape.
func traitImplShortForm(fqn string) (string, bool) {
	if !strings.HasPrefix(fqn, "<") {
		return "", false
	}
	closeIdx := strings.Index(fqn, ">::")
	if closeIdx < 0 {
		return "", false
	}
	inner := fqn[1:closeIdx]
	method := fqn[closeIdx+3:]

	asIdx := strings.Index(inner, " as ")
	if asIdx < 0 {
		return "", false
	}
	typeFQN := strings.TrimSpace(inner[:asIdx])
	if typeFQN == "" || method == "" {
		return "", false
	}
	return typeFQN + "::" + method, true
}
