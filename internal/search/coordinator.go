package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/codeindexd/internal/embeddings"
	"github.com/fyrsmithlabs/codeindexd/internal/logging"
	"github.com/fyrsmithlabs/codeindexd/internal/relational"
	"github.com/fyrsmithlabs/codeindexd/internal/reranker"
	"github.com/fyrsmithlabs/codeindexd/internal/vectorstore"
)

// Coordinator implements four search modes over a dense
// embedding provider, an optional sparse provider, the vector store, the
// relational store's fulltext index and entity hydration, and an optional
// reranker. Sparse and Reranker may be nil: Hybrid degrades to
// dense-only when Sparse is nil, and HybridRerank degrades to plain
// Hybrid when Reranker is nil, matching the stated failure
// semantics rather than erroring.
type Coordinator struct {
	Relational relational.Store
	Vector     vectorstore.Store
	Dense      embeddings.Provider
	Sparse     embeddings.SparseProvider
	Reranker   reranker.Reranker
	Config     Config
	Logger     *logging.Logger
}

// NewCoordinator validates cfg, applies its defaults, and returns a ready
// Coordinator. Sparse and rerankerImpl may be nil.
func NewCoordinator(store relational.Store, vector vectorstore.Store, dense embeddings.Provider, sparse embeddings.SparseProvider, rerankerImpl reranker.Reranker, cfg Config, logger *logging.Logger) (*Coordinator, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Coordinator{
		Relational: store,
		Vector:     vector,
		Dense:      dense,
		Sparse:     sparse,
		Reranker:   rerankerImpl,
		Config:     cfg,
		Logger:     logger,
	}, nil
}

// Semantic embeds q.Text (instruction-prefixed) and searches the dense
// vector only.
func (c *Coordinator) Semantic(ctx context.Context, q Query) ([]Result, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, ErrEmptyQuery
	}
	limit := limitOf(q.Limit, c.Config.TopK)

	dense, err := c.embedQuery(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search: semantic: embed query: %w", err)
	}

	hits, err := c.Vector.SearchSimilar(ctx, q.CollectionName, dense, limit, q.Filter)
	if err != nil {
		return nil, fmt.Errorf("search: semantic: %w", err)
	}
	return c.hydrate(ctx, q.RepositoryID, hits)
}

// Fulltext runs the relational store's GIN-indexed full-text search.
func (c *Coordinator) Fulltext(ctx context.Context, q Query) ([]Result, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, ErrEmptyQuery
	}
	limit := limitOf(q.Limit, c.Config.TopK)

	hits, err := c.Relational.SearchEntitiesFulltext(ctx, q.RepositoryID, q.Text, limit)
	if err != nil {
		return nil, fmt.Errorf("search: fulltext: %w", err)
	}

	ids := make([]string, len(hits))
	scores := make(map[string]float32, len(hits))
	for i, h := range hits {
		ids[i] = h.EntityID
		scores[h.EntityID] = float32(h.Rank)
	}
	records, err := c.Relational.GetEntitiesByIDsBatch(ctx, q.RepositoryID, ids)
	if err != nil {
		return nil, fmt.Errorf("search: fulltext: hydrate: %w", err)
	}
	results := make([]Result, 0, len(ids))
	for _, id := range ids {
		rec, ok := records[id]
		if !ok {
			continue
		}
		results = append(results, resultFromRecord(rec, scores[id]))
	}
	return results, nil
}

// Hybrid generates dense and (when available) sparse query vectors and
// fuses both modalities via the vector store's Reciprocal Rank Fusion
// search. A nil Sparse provider, or one that fails, falls back to
// dense-only search rather than failing the request.
func (c *Coordinator) Hybrid(ctx context.Context, q Query) ([]Result, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, ErrEmptyQuery
	}
	limit := limitOf(q.Limit, c.Config.TopK)

	hits, err := c.hybridSearch(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("search: hybrid: %w", err)
	}
	return c.hydrate(ctx, q.RepositoryID, hits)
}

// HybridRerank retrieves CandidatesCount (>= TopK) hybrid hits, hydrates
// their canonical content, and reranks down to TopK. A nil Reranker, or
// one that errors, falls back to the unreranked hybrid candidates
// truncated to TopK (the reranker-unavailable fallback).
func (c *Coordinator) HybridRerank(ctx context.Context, q Query) ([]Result, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, ErrEmptyQuery
	}
	candidatesCount := limitOf(q.CandidatesCount, c.Config.CandidatesCount)
	topK := limitOf(q.TopK, c.Config.TopK)
	if topK > candidatesCount {
		candidatesCount = topK
	}

	hits, err := c.hybridSearch(ctx, q, candidatesCount)
	if err != nil {
		return nil, fmt.Errorf("search: hybrid_rerank: %w", err)
	}
	candidates, err := c.hydrate(ctx, q.RepositoryID, hits)
	if err != nil {
		return nil, fmt.Errorf("search: hybrid_rerank: hydrate: %w", err)
	}

	if c.Reranker == nil {
		return truncate(candidates, topK), nil
	}

	docs := make([]reranker.Document, len(candidates))
	for i, r := range candidates {
		docs[i] = reranker.Document{
			ID:      r.EntityID,
			Content: canonicalContent(r),
			Score:   r.Score,
		}
	}
	scored, err := c.Reranker.Rerank(ctx, q.Text, docs, topK)
	if err != nil {
		if c.Logger != nil {
			c.Logger.Warn(ctx, "search: reranker unavailable, falling back to hybrid order", zap.Error(err))
		}
		return truncate(candidates, topK), nil
	}

	byID := make(map[string]Result, len(candidates))
	for _, r := range candidates {
		byID[r.EntityID] = r
	}
	out := make([]Result, 0, len(scored))
	for _, sd := range scored {
		r, ok := byID[sd.ID]
		if !ok {
			continue
		}
		r.Reranked = true
		r.RerankerScore = sd.RerankerScore
		r.OriginalRank = sd.OriginalRank
		out = append(out, r)
	}
	return out, nil
}

// hybridSearch is the shared dense+sparse retrieval step behind Hybrid and
// HybridRerank.
func (c *Coordinator) hybridSearch(ctx context.Context, q Query, limit int) ([]vectorstore.SearchResult, error) {
	dense, err := c.embedQuery(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	sparse, err := c.embedSparseQuery(ctx, q.Text)
	if err != nil {
		if c.Logger != nil {
			c.Logger.Warn(ctx, "search: sparse provider unavailable, falling back to dense-only", zap.Error(err))
		}
		hits, serr := c.Vector.SearchSimilar(ctx, q.CollectionName, dense, limit, q.Filter)
		if serr != nil {
			return nil, serr
		}
		return hits, nil
	}

	return c.Vector.SearchSimilarHybrid(ctx, q.CollectionName, dense, sparse, limit, c.Config.PrefetchMultiplier, q.Filter)
}

// embedQuery applies the instruction-prefix convention
// (`<instruct>{instruction}\n<query>{text}`) before calling the dense
// provider.
func (c *Coordinator) embedQuery(ctx context.Context, q Query) ([]float32, error) {
	instruction := q.Instruction
	if instruction == "" {
		instruction = c.Config.DefaultInstruction
	}
	text := q.Text
	if instruction != "" {
		text = fmt.Sprintf("<instruct>%s\n<query>%s", instruction, q.Text)
	}
	return c.Dense.EmbedQuery(ctx, text)
}

// embedSparseQuery embeds a single query string by calling the batch
// sparse API with a one-element slice, the convention internal/pipeline's
// the embedding stage also uses. Returns ErrSparseUnavailable if no sparse provider is
// configured.
func (c *Coordinator) embedSparseQuery(ctx context.Context, text string) (*vectorstore.SparseVector, error) {
	if c.Sparse == nil {
		return nil, ErrSparseUnavailable
	}
	vecs, err := c.Sparse.EmbedSparseDocuments(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSparseUnavailable, err)
	}
	if len(vecs) == 0 {
		return nil, ErrSparseUnavailable
	}
	return vecs[0], nil
}

// hydrate resolves vector-store search hits to full entity records, in
// hit order, silently dropping hits whose entity no longer exists (e.g.
// deleted between search and hydration).
func (c *Coordinator) hydrate(ctx context.Context, repositoryID uuid.UUID, hits []vectorstore.SearchResult) ([]Result, error) {
	ids := make([]string, len(hits))
	scores := make(map[string]float32, len(hits))
	for i, h := range hits {
		ids[i] = h.EntityID
		scores[h.EntityID] = h.Score
	}
	records, err := c.Relational.GetEntitiesByIDsBatch(ctx, repositoryID, ids)
	if err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(ids))
	for _, id := range ids {
		rec, ok := records[id]
		if !ok {
			continue
		}
		results = append(results, resultFromRecord(rec, scores[id]))
	}
	return results, nil
}

func resultFromRecord(rec relational.EntityRecord, score float32) Result {
	return Result{
		EntityID:      rec.EntityID,
		QualifiedName: rec.QualifiedName,
		Name:          rec.Name,
		EntityType:    rec.EntityType,
		FilePath:      rec.FilePath,
		Documentation: rec.Documentation,
		Content:       rec.Content,
		Score:         score,
	}
}

// canonicalContent renders the same qualified-name/signature/
// documentation/content composition the embedding stage hashes and embeds,
// so the reranker sees the same canonical text the original ranking did.
func canonicalContent(r Result) string {
	var b strings.Builder
	b.WriteString(r.QualifiedName)
	b.WriteByte('\n')
	b.WriteString(r.Documentation)
	b.WriteByte('\n')
	b.WriteString(r.Content)
	return b.String()
}

func limitOf(requested, fallback int) int {
	if requested > 0 {
		return requested
	}
	return fallback
}

func truncate(results []Result, n int) []Result {
	if n <= 0 || n >= len(results) {
		return results
	}
	return results[:n]
}

// IsCollectionNotFound reports whether err (or one it wraps) is the
// vector store's not-found sentinel, the condition that must
// surface to the caller as a 404 rather than an empty result set.
func IsCollectionNotFound(err error) bool {
	return errors.Is(err, vectorstore.ErrCollectionNotFound)
}
