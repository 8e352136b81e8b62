package embeddings

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/fyrsmithlabs/codeindexd/internal/vectorstore"
)

// SparseProvider embeds a batch of texts into sparse vectors. The Granite
// sparse model and the client-side BM25 fallback both implement it, so the
// embedding stage of the indexing pipeline can treat them interchangeably:
// use Granite when a sparse model is configured, otherwise compute BM25
// sparse vectors client-side using the current avgdl.
type SparseProvider interface {
	EmbedSparseDocuments(ctx context.Context, texts []string) ([]*vectorstore.SparseVector, error)
}

// BM25Params is the corpus state the BM25 scorer needs, sourced from
// internal/relational's bm25_statistics row for the repository being
// indexed.
type BM25Params struct {
	AvgDL float64
	K1    float64
	B     float64
}

// DefaultBM25Params returns the standard Okapi BM25 constants (k1=1.2,
// b=0.75) with the given corpus average document length.
func DefaultBM25Params(avgdl float64) BM25Params {
	return BM25Params{AvgDL: avgdl, K1: 1.2, B: 0.75}
}

// BM25SparseProvider computes sparse vectors client-side from raw term
// frequencies, with no external model call. Each term is hashed to a
// dimension index (fnv-1a, matching the Qdrant-ecosystem convention of
// hashing tokens into a fixed sparse dimension space rather than
// maintaining a growing vocabulary table), and weighted by the Okapi BM25
// term-frequency saturation curve.
type BM25SparseProvider struct {
	params BM25Params
}

// NewBM25SparseProvider builds a provider against the given corpus
// statistics. The caller re-creates it whenever avgdl changes materially
// (the embedding stage re-derives it once per embedding batch from the current
// bm25_statistics row).
func NewBM25SparseProvider(params BM25Params) *BM25SparseProvider {
	return &BM25SparseProvider{params: params}
}

// EmbedSparseDocuments tokenizes and BM25-weights each text independently;
// document length is the token count of that single document.
func (p *BM25SparseProvider) EmbedSparseDocuments(_ context.Context, texts []string) ([]*vectorstore.SparseVector, error) {
	vectors := make([]*vectorstore.SparseVector, len(texts))
	for i, text := range texts {
		vectors[i] = p.embedOne(text)
	}
	return vectors, nil
}

func (p *BM25SparseProvider) embedOne(text string) *vectorstore.SparseVector {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return &vectorstore.SparseVector{}
	}

	termFreq := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		termFreq[tok]++
	}

	avgdl := p.params.AvgDL
	if avgdl <= 0 {
		avgdl = float64(len(tokens))
	}
	docLen := float64(len(tokens))
	k1, b := p.params.K1, p.params.B

	indices := make([]uint32, 0, len(termFreq))
	values := make([]float32, 0, len(termFreq))
	for term, tf := range termFreq {
		saturated := (float64(tf) * (k1 + 1)) / (float64(tf) + k1*(1-b+b*(docLen/avgdl)))
		indices = append(indices, hashTerm(term))
		values = append(values, float32(saturated))
	}
	return &vectorstore.SparseVector{Indices: indices, Values: values}
}

// hashTerm maps a token to a stable sparse-dimension index.
func hashTerm(term string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(term))
	return h.Sum32()
}

// tokenize lowercases and splits on non-alphanumeric boundaries. It is
// intentionally simple (no stemming, no stopword list) since BM25 sparse
// vectors here exist as a fallback, not the primary retrieval signal.
func tokenize(text string) []string {
	var tokens []string
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			tokens = append(tokens, strings.ToLower(b.String()))
			b.Reset()
		}
	}
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}
