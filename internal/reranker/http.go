package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"

	"golang.org/x/sync/errgroup"
)

// docsPerRequest bounds how many documents one HTTP rerank call carries,
// matching internal/pipeline/embed.go's TextsPerAPIRequest chunking
// idiom: a single Rerank call's candidate set is split into
// provider-sized batches scored concurrently (bounded by
// Config.MaxConcurrentRequests), then merged and sorted once every batch
// returns.
const docsPerRequest = 20

// rerankRequest is the Jina/Cohere-compatible rerank request body both
// jina and self-hosted vLLM rerank servers accept: a query, a flat list
// of document strings, and how many top results to return.
type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

// rerankResult is one scored document in the response, referencing its
// position in the request's Documents slice.
type rerankResult struct {
	Index          int     `json:"index"`
	RelevanceScore float32 `json:"relevance_score"`
}

type rerankResponse struct {
	Results []rerankResult `json:"results"`
}

// httpReranker is the shared HTTP client behind jinaReranker and
// vllmReranker: both speak the same Jina/Cohere-style rerank wire
// protocol, differing only in base URL and model name, the same way
// internal/embeddings' teiProvider and FastEmbed provider share the
// Provider interface but differ in transport.
type httpReranker struct {
	config Config
	client *http.Client
	path   string
}

func newHTTPReranker(cfg Config, path string) (*httpReranker, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &httpReranker{
		config: cfg,
		client: &http.Client{Timeout: cfg.timeout()},
		path:   path,
	}, nil
}

// NewReranker builds the HTTP-backed reranker the `reranking`
// section names (provider jina or vllm). Callers that read
// Config.Enabled=false should not call this at all and leave their
// search.Coordinator.Reranker nil, matching the "reranker
// unavailable" fallback path.
func NewReranker(cfg Config) (Reranker, error) {
	cfg.ApplyDefaults()
	switch cfg.Provider {
	case "jina":
		return newHTTPReranker(cfg, "/rerank")
	case "vllm":
		return newHTTPReranker(cfg, "/v1/rerank")
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
}

// Rerank scores docs against query in provider-sized batches run
// concurrently up to Config.MaxConcurrentRequests, then merges every
// batch's relevance scores into one global ranking truncated to topK.
func (r *httpReranker) Rerank(ctx context.Context, query string, docs []Document, topK int) ([]ScoredDocument, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if len(docs) == 0 {
		return []ScoredDocument{}, nil
	}
	if topK <= 0 {
		topK = len(docs)
	}

	scores := make([]float32, len(docs))

	type batchRange struct{ start, end int }
	var batches []batchRange
	for start := 0; start < len(docs); start += docsPerRequest {
		end := start + docsPerRequest
		if end > len(docs) {
			end = len(docs)
		}
		batches = append(batches, batchRange{start, end})
	}

	sem := make(chan struct{}, r.config.MaxConcurrentRequests)
	g, gctx := errgroup.WithContext(ctx)
	for _, b := range batches {
		b := b
		sem <- struct{}{}
		g.Go(func() error {
			defer func() { <-sem }()
			batch := docs[b.start:b.end]
			batchScores, err := r.scoreBatch(gctx, query, batch)
			if err != nil {
				return err
			}
			for i, s := range batchScores {
				scores[b.start+i] = s
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ranked := make([]ScoredDocument, len(docs))
	for i, d := range docs {
		ranked[i] = ScoredDocument{Document: d, RerankerScore: scores[i]}
	}
	sort.Slice(ranked, func(i, j int) bool {
		return ranked[i].RerankerScore > ranked[j].RerankerScore
	})
	for i := range ranked {
		ranked[i].OriginalRank = indexOf(docs, ranked[i].ID)
	}

	if topK > len(ranked) {
		topK = len(ranked)
	}
	return ranked[:topK], nil
}

func (r *httpReranker) scoreBatch(ctx context.Context, query string, docs []Document) ([]float32, error) {
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}

	reqBody, err := json.Marshal(rerankRequest{
		Model:     r.config.Model,
		Query:     query,
		Documents: texts,
		TopN:      len(texts),
	})
	if err != nil {
		return nil, fmt.Errorf("reranker: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.config.APIBaseURL+r.path, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("reranker: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("reranker: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("reranker: status %d: %s", resp.StatusCode, string(body))
	}

	var decoded rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("reranker: decode response: %w", err)
	}

	scores := make([]float32, len(docs))
	for _, res := range decoded.Results {
		if res.Index >= 0 && res.Index < len(scores) {
			scores[res.Index] = res.RelevanceScore
		}
	}
	return scores, nil
}

// Close releases the reranker's resources. The HTTP client needs none.
func (r *httpReranker) Close() error { return nil }

var _ Reranker = (*httpReranker)(nil)

func indexOf(docs []Document, id string) int {
	for i, d := range docs {
		if d.ID == id {
			return i
		}
	}
	return -1
}
