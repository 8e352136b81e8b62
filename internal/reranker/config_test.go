package reranker

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_ApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	assert.Equal(t, "jina", cfg.Provider)
	assert.Equal(t, 30, cfg.TimeoutSecs)
	assert.Equal(t, 4, cfg.MaxConcurrentRequests)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid jina", Config{Provider: "jina", APIBaseURL: "http://localhost:8000", TimeoutSecs: 30, MaxConcurrentRequests: 4}, false},
		{"valid vllm", Config{Provider: "vllm", APIBaseURL: "http://localhost:8001", TimeoutSecs: 30, MaxConcurrentRequests: 4}, false},
		{"unknown provider", Config{Provider: "cohere", APIBaseURL: "http://x", TimeoutSecs: 30, MaxConcurrentRequests: 4}, true},
		{"missing base url", Config{Provider: "jina", TimeoutSecs: 30, MaxConcurrentRequests: 4}, true},
		{"non-positive timeout", Config{Provider: "jina", APIBaseURL: "http://x", TimeoutSecs: 0, MaxConcurrentRequests: 4}, true},
		{"non-positive concurrency", Config{Provider: "jina", APIBaseURL: "http://x", TimeoutSecs: 30, MaxConcurrentRequests: 0}, true},
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
