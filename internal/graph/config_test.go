package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNeo4jConfig_ApplyDefaults(t *testing.T) {
	cfg := Neo4jConfig{URI: "bolt://localhost:7687"}
	cfg.ApplyDefaults()
	assert.Equal(t, "neo4j", cfg.Database)
	assert.Equal(t, 50, cfg.MaxConnectionPoolSize)
	assert.NotZero(t, cfg.ConnectTimeout)
}

func TestNeo4jConfig_Validate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Neo4jConfig
		wantErr bool
	}{
		{"missing uri", Neo4jConfig{MaxConnectionPoolSize: 1, ConnectTimeout: 1}, true},
		{"valid", Neo4jConfig{URI: "bolt://localhost:7687", MaxConnectionPoolSize: 1, ConnectTimeout: 1}, false},
		{"zero pool size", Neo4jConfig{URI: "bolt://localhost:7687", ConnectTimeout: 1}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestResolverConfig_ApplyDefaults(t *testing.T) {
	cfg := ResolverConfig{}
	cfg.ApplyDefaults()
	assert.Equal(t, 500, cfg.BatchSize)
	assert.NotZero(t, cfg.PollInterval)
}

func TestResolverConfig_Validate(t *testing.T) {
	assert.NoError(t, ResolverConfig{BatchSize: 1, PollInterval: 1}.Validate())
	assert.Error(t, ResolverConfig{PollInterval: 1}.Validate())
	assert.Error(t, ResolverConfig{BatchSize: 1}.Validate())
}
