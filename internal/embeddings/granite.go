package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/fyrsmithlabs/codeindexd/internal/vectorstore"
)

// GraniteConfig configures the Granite sparse-embedding HTTP endpoint
// (IBM's Granite sparse retrieval model, served behind a TEI-compatible
// `/embed_sparse` route).
type GraniteConfig struct {
	BaseURL string
	Model   string
}

// Validate mirrors Config.Validate in service.go: a sparse provider is
// only meaningful with somewhere to call.
func (c GraniteConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	return nil
}

// GraniteProvider calls a Granite sparse-embedding HTTP endpoint. The embedding stage of
// the pipeline prefers this over BM25SparseProvider whenever a sparse
// model is configured.
type GraniteProvider struct {
	config GraniteConfig
	client *http.Client
}

// NewGraniteProvider constructs a GraniteProvider.
func NewGraniteProvider(cfg GraniteConfig) (*GraniteProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &GraniteProvider{config: cfg, client: &http.Client{}}, nil
}

// graniteSparseElement is one (index, value) pair as returned by the
// sparse-embedding endpoint.
type graniteSparseElement struct {
	Index uint32  `json:"index"`
	Value float32 `json:"value"`
}

// EmbedSparseDocuments calls the Granite sparse endpoint for a batch of
// texts, returning one sparse vector per input in order.
func (p *GraniteProvider) EmbedSparseDocuments(ctx context.Context, texts []string) ([]*vectorstore.SparseVector, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}

	body, err := json.Marshal(teiRequest{Inputs: texts, Truncate: true})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.config.BaseURL+"/embed_sparse", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d: %s", ErrEmbeddingFailed, resp.StatusCode, string(respBody))
	}

	var raw [][]graniteSparseElement
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	vectors := make([]*vectorstore.SparseVector, len(raw))
	for i, elems := range raw {
		sv := &vectorstore.SparseVector{
			Indices: make([]uint32, len(elems)),
			Values:  make([]float32, len(elems)),
		}
		for j, e := range elems {
			sv.Indices[j] = e.Index
			sv.Values[j] = e.Value
		}
		vectors[i] = sv
	}
	return vectors, nil
}
