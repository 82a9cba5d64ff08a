package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "adal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
	assert.Equal(t, 90*24*time.Hour, cfg.Storage.Retention)
	assert.Equal(t, BackendBadger, cfg.Vector.Backend)
	assert.Equal(t, 0.7, cfg.Retrieval.SemanticWeight)
	assert.Equal(t, 0.3, cfg.Retrieval.KeywordWeight)
	assert.Equal(t, 6, cfg.Retrieval.SpecificK)
	assert.Equal(t, 50, cfg.Retrieval.ExhaustiveK)
	assert.Equal(t, 1.5, cfg.Retrieval.ThresholdMultiplier)
	assert.Equal(t, 2.0, cfg.Retrieval.ThresholdCap)
	assert.Equal(t, 10000, cfg.Generation.MaxChunks)
	assert.Equal(t, 30*time.Second, cfg.Generation.InactivityTimeout)
	assert.Equal(t, 5, cfg.Generation.HistoryExchanges)
	assert.Equal(t, 256, cfg.Sink.QueueSize)
	assert.True(t, cfg.Maintenance.Enabled)
	assert.Equal(t, 24*time.Hour, cfg.Maintenance.SpikeWindow)
	assert.Equal(t, 60.0, cfg.Maintenance.SatisfactionPercent)
	assert.Equal(t, 10, cfg.Maintenance.MinRatings)
	assert.Equal(t, "doc_id", cfg.Vector.Qdrant.IDField)
	assert.Equal(t, "COSINE", cfg.Vector.Milvus.MetricType)
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9000"
vector:
  backend: qdrant
  qdrant:
    url: http://qdrant:6333
    collection: ordinances
retrieval:
  specific_k: 8
generation:
  inactivity_timeout: 45s
`)
	t.Setenv("ADAL_RETRIEVAL_SPECIFIC_K", "10")
	t.Setenv("ADAL_AI_CHAT_MODEL", "gpt-4o-mini")
	t.Setenv("ADAL_MAINTENANCE_ENABLED", "false")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, BackendQdrant, cfg.Vector.Backend)
	assert.Equal(t, "ordinances", cfg.Vector.Qdrant.Collection)
	assert.Equal(t, 10, cfg.Retrieval.SpecificK)
	assert.Equal(t, 45*time.Second, cfg.Generation.InactivityTimeout)
	assert.Equal(t, "gpt-4o-mini", cfg.AI.ChatModel)
	assert.False(t, cfg.Maintenance.Enabled)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.Vector.Backend = "faiss" }},
		{"milvus without collection", func(c *Config) {
			c.Vector.Backend = BackendMilvus
			c.Vector.Milvus.Collection = ""
		}},
		{"zero weights", func(c *Config) {
			c.Retrieval.SemanticWeight = 0
			c.Retrieval.KeywordWeight = 0
		}},
		{"negative weight", func(c *Config) { c.Retrieval.KeywordWeight = -0.1 }},
		{"zero k", func(c *Config) { c.Retrieval.SpecificK = 0 }},
		{"zero chunks", func(c *Config) { c.Generation.MaxChunks = 0 }},
		{"negative history", func(c *Config) { c.Generation.HistoryExchanges = -1 }},
		{"no storage path", func(c *Config) { c.Storage.Path = "" }},
		{"hot temperature", func(c *Config) { c.AI.Temperature = 3 }},
		{"short spike window", func(c *Config) { c.Maintenance.SpikeWindow = time.Minute }},
		{"zero gc interval", func(c *Config) { c.Maintenance.GCInterval = 0 }},
		{"satisfaction over 100", func(c *Config) { c.Maintenance.SatisfactionPercent = 150 }},
		{"zero min ratings", func(c *Config) { c.Maintenance.MinRatings = 0 }},
		{"milvus hamming metric", func(c *Config) {
			c.Vector.Backend = BackendMilvus
			c.Vector.Milvus.MetricType = "HAMMING"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			cfg, err := Load("")
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestAIConfig(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.AI.ChatHost = "http://llm:8000"

	ai := cfg.AIConfig()
	require.NoError(t, ai.Validate())
	assert.Equal(t, "http://llm:8000/v1", ai.ChatHost)
	assert.Equal(t, cfg.AI.EmbeddingModel, ai.EmbeddingModel)
}
