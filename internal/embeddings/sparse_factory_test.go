package embeddings

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSparseConfig_ApplyDefaults(t *testing.T) {
	var cfg SparseConfig
	cfg.ApplyDefaults()

	assert.Equal(t, "bm25", cfg.Provider)
	assert.Equal(t, "auto", cfg.Device)
	assert.Equal(t, 128, cfg.TopK)
	assert.Equal(t, 32, cfg.BatchSize)
}

func TestSparseConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     SparseConfig
		wantErr bool
	}{
		{"valid bm25", SparseConfig{Provider: "bm25", Device: "auto", TopK: 128, BatchSize: 32}, false},
		{"valid granite", SparseConfig{Provider: "granite", BaseURL: "http://localhost:8090", Device: "cuda:0", TopK: 128, BatchSize: 32}, false},
		{"granite missing base url", SparseConfig{Provider: "granite", Device: "auto", TopK: 128, BatchSize: 32}, true},
		{"unknown provider", SparseConfig{Provider: "splade", Device: "auto", TopK: 128, BatchSize: 32}, true},
		{"invalid device", SparseConfig{Provider: "bm25", Device: "tpu", TopK: 128, BatchSize: 32}, true},
		{"non-positive top_k", SparseConfig{Provider: "bm25", Device: "auto", TopK: 0, BatchSize: 32}, true},
		{"non-positive batch_size", SparseConfig{Provider: "bm25", Device: "auto", TopK: 128, BatchSize: 0}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidConfig))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestNewSparseProvider_BM25(t *testing.T) {
	p, err := NewSparseProvider(SparseConfig{Provider: "bm25"})
	require.NoError(t, err)
	_, ok := p.(*BM25SparseProvider)
	assert.True(t, ok)
}

func TestNewSparseProvider_Granite(t *testing.T) {
	p, err := NewSparseProvider(SparseConfig{Provider: "granite", BaseURL: "http://localhost:8090"})
	require.NoError(t, err)
	_, ok := p.(*GraniteProvider)
	assert.True(t, ok)
}

func TestNewSparseProvider_UnknownProviderErrors(t *testing.T) {
	_, err := NewSparseProvider(SparseConfig{Provider: "splade", Device: "auto"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
