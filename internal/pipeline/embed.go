package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/codeindexd/internal/embeddings"
	"github.com/fyrsmithlabs/codeindexd/internal/extractor"
	"github.com/fyrsmithlabs/codeindexd/internal/relational"
	"github.com/fyrsmithlabs/codeindexd/internal/vectorstore"
)

// pointIDNamespace derives a deterministic qdrant_point_id from an
// entity_id, mirroring extractor.GenerateEntityID's own fixed-namespace
// construction: re-indexing the same entity always reuses the same point.
var pointIDNamespace = uuid.MustParse("9b6f1c2d-3a4e-4f5a-8b6c-1d2e3f4a5b6c")

func generatePointID(entityID string) string {
	return uuid.NewSHA1(pointIDNamespace, []byte(entityID)).String()
}

// contentHash computes the canonical content hash used for cache lookups:
// qualified name, signature, documentation, body content, in that order.
// Any change to this composition invalidates the entire embedding cache.
func contentHash(e extractor.Entity) string {
	var b strings.Builder
	b.WriteString(e.QualifiedName)
	b.WriteByte('\x00')
	b.WriteString(e.Signature)
	b.WriteByte('\x00')
	b.WriteString(e.DocumentationSummary)
	b.WriteByte('\x00')
	b.WriteString(e.Content)
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// embedTokenCount is the token count fed to the BM25 sparse scorer and to
// the repository's running BM25 statistics. Whitespace splitting is a
// coarse approximation of the tokenizer the embedding model actually uses,
// adequate for the relative document-length weighting BM25 needs.
func embedTokenCount(e extractor.Entity) int {
	return len(strings.Fields(e.Content))
}

// EmbedDeps bundles everything the embedding stage needs beyond per-run config: the dense
// provider (required), an optional sparse provider (Granite; nil falls
// back to BM25SparseProvider seeded from the repository's current avgdl),
// and the relational store for the content-hash cache.
type EmbedDeps struct {
	Dense        embeddings.Provider
	Sparse       embeddings.SparseProvider // nil => BM25 fallback
	Store        relational.Store
	ModelVersion string
	RepositoryID uuid.UUID
}

// embedStage is the embedding stage: computes content hashes, resolves cache hits/misses
// against the relational embedding cache, calls the embedding provider(s)
// for misses with bounded concurrency, and emits EmbeddedBatch values with
// an embedding_id attached to every entity.
func embedStage(ctx context.Context, in <-chan EntityBatch, out chan<- EmbeddedBatch, deps EmbedDeps, cfg Config, embeddingsCached, embeddingsFresh *atomic.Int64) error {
	defer close(out)

	for batch := range in {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		embedded, err := embedBatch(ctx, batch, deps, cfg, embeddingsCached, embeddingsFresh)
		if err != nil {
			return err
		}

		select {
		case out <- embedded:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func embedBatch(ctx context.Context, batch EntityBatch, deps EmbedDeps, cfg Config, embeddingsCached, embeddingsFresh *atomic.Int64) (EmbeddedBatch, error) {
	type indexed struct {
		fileIdx, entIdx int
		entity          extractor.Entity
		hash            string
	}

	var all []indexed
	for fi, f := range batch.Files {
		for ei, e := range f.Entities {
			all = append(all, indexed{fileIdx: fi, entIdx: ei, entity: e, hash: contentHash(e)})
		}
	}

	hashes := make([]string, len(all))
	for i, a := range all {
		hashes[i] = a.hash
	}

	cached, err := deps.Store.GetEmbeddingsByContentHash(ctx, hashes, deps.ModelVersion)
	if err != nil {
		return EmbeddedBatch{}, err
	}

	embeddingIDs := make(map[string]int64, len(all))
	var missHashes []string
	var missEntities []extractor.Entity
	seen := make(map[string]bool)
	for _, a := range all {
		if ce, ok := cached[a.hash]; ok {
			embeddingIDs[a.hash] = ce.EmbeddingID
			if embeddingsCached != nil {
				embeddingsCached.Add(1)
			}
			continue
		}
		if seen[a.hash] {
			continue
		}
		seen[a.hash] = true
		missHashes = append(missHashes, a.hash)
		missEntities = append(missEntities, a.entity)
	}
	if embeddingsFresh != nil {
		embeddingsFresh.Add(int64(len(missEntities)))
	}

	if len(missEntities) > 0 {
		newIDs, err := embedMisses(ctx, missHashes, missEntities, deps, cfg)
		if err != nil {
			return EmbeddedBatch{}, err
		}
		for hash, id := range newIDs {
			embeddingIDs[hash] = id
		}
	}

	out := EmbeddedBatch{Files: make([]embeddedFile, len(batch.Files))}
	for fi, f := range batch.Files {
		out.Files[fi] = embeddedFile{FilePath: f.FilePath, Entities: make([]embeddedEntity, len(f.Entities))}
	}
	for _, a := range all {
		out.Files[a.fileIdx].Entities[a.entIdx] = embeddedEntity{
			Entity:      a.entity,
			EmbeddingID: embeddingIDs[a.hash],
			PointID:     generatePointID(a.entity.EntityID),
			ContentHash: a.hash,
			TokenCount:  embedTokenCount(a.entity),
		}
	}
	return out, nil
}

// embedMisses calls the configured dense provider (and sparse provider, or
// the BM25 fallback) for cache misses, in chunks of cfg.TextsPerAPIRequest,
// and stores the results in the cache. Returns the new embedding_id per
// content hash.
func embedMisses(ctx context.Context, hashes []string, ents []extractor.Entity, deps EmbedDeps, cfg Config) (map[string]int64, error) {
	texts := make([]string, len(ents))
	for i, e := range ents {
		texts[i] = embeddingText(e)
	}

	sparseProvider := deps.Sparse
	if sparseProvider == nil {
		stats, err := deps.Store.GetBM25Statistics(ctx, deps.RepositoryID)
		if err != nil {
			return nil, err
		}
		sparseProvider = embeddings.NewBM25SparseProvider(embeddings.DefaultBM25Params(stats.AvgDL))
	}

	dense := make([][]float32, len(texts))
	sparse := make([]*relationalSparse, len(texts))

	type chunkRange struct{ start, end int }
	var chunks []chunkRange
	for start := 0; start < len(texts); start += cfg.TextsPerAPIRequest {
		end := start + cfg.TextsPerAPIRequest
		if end > len(texts) {
			end = len(texts)
		}
		chunks = append(chunks, chunkRange{start, end})
	}

	sem := make(chan struct{}, cfg.MaxConcurrentAPIRequests)
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range chunks {
		c := c
		sem <- struct{}{}
		g.Go(func() error {
			defer func() { <-sem }()
			chunk := texts[c.start:c.end]

			denseVecs, err := deps.Dense.EmbedDocuments(gctx, chunk)
			if err != nil {
				return err
			}
			sparseVecs, err := sparseProvider.EmbedSparseDocuments(gctx, chunk)
			if err != nil {
				return err
			}
			for i, v := range denseVecs {
				dense[c.start+i] = v
			}
			for i, sv := range sparseVecs {
				sparse[c.start+i] = toRelationalSparse(sv)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	dimension := deps.Dense.Dimension()
	entries := make([]relational.EmbeddingCacheEntry, len(hashes))
	for i, h := range hashes {
		entries[i] = relational.EmbeddingCacheEntry{ContentHash: h, Dense: dense[i], Sparse: sparse[i].entries}
	}

	ids, err := deps.Store.StoreEmbeddings(ctx, entries, deps.ModelVersion, dimension)
	if err != nil {
		return nil, err
	}

	result := make(map[string]int64, len(hashes))
	for i, h := range hashes {
		result[h] = ids[i]
	}
	return result, nil
}

// embeddingText renders the canonical content an entity presents to the
// embedder, matching the composition contentHash hashes: the
// hash and the embedded content must always travel together.
func embeddingText(e extractor.Entity) string {
	var b strings.Builder
	b.WriteString(e.QualifiedName)
	b.WriteByte('\n')
	b.WriteString(e.Signature)
	b.WriteByte('\n')
	b.WriteString(e.DocumentationSummary)
	b.WriteByte('\n')
	b.WriteString(e.Content)
	return b.String()
}

// relationalSparse wraps a possibly-nil *vectorstore.SparseVector already
// converted to relational.SparseEntry form, so embedMisses can append nil
// entries (texts with no sparse weights) without special-casing length.
type relationalSparse struct {
	entries []relational.SparseEntry
}

// toRelationalSparse converts a vectorstore.SparseVector (the embedding
// providers' output type) into the relational store's SparseEntry form.
func toRelationalSparse(sv *vectorstore.SparseVector) *relationalSparse {
	if sv == nil || len(sv.Indices) == 0 {
		return &relationalSparse{}
	}
	entries := make([]relational.SparseEntry, len(sv.Indices))
	for i := range sv.Indices {
		entries[i] = relational.SparseEntry{Index: sv.Indices[i], Weight: sv.Values[i]}
	}
	return &relationalSparse{entries: entries}
}
