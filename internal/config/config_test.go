package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "localhost", cfg.Qdrant.Host)
	assert.Equal(t, 6334, cfg.Qdrant.Port)
	assert.Equal(t, "pdf_text_vectors", cfg.Qdrant.Collection)
	assert.Equal(t, uint64(1536), cfg.Qdrant.VectorSize)
	assert.Equal(t, 60*time.Second, cfg.Qdrant.Timeout.Duration())
	assert.Equal(t, 50*1024*1024, cfg.Qdrant.MaxMessageSize)
	assert.Equal(t, 500, cfg.Chunker.MaxChunkSize)
	assert.Equal(t, 100, cfg.Chunker.MinChunkSize)
	assert.InDelta(t, 0.5, cfg.Chunker.SimilarityThreshold, 1e-9)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, 100, cfg.Retrieval.EmbedBatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.Retrieval.DeleteSettleDelay.Duration())
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.OpenAI.APIKey = "sk-test"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing api key",
			mutate:  func(c *Config) { c.OpenAI.APIKey = "" },
			wantErr: "api key",
		},
		{
			name:    "zero vector size",
			mutate:  func(c *Config) { c.Qdrant.VectorSize = 0 },
			wantErr: "vector size",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Qdrant.Port = 70000 },
			wantErr: "port",
		},
		{
			name:    "min exceeds max chunk size",
			mutate:  func(c *Config) { c.Chunker.MinChunkSize = 900 },
			wantErr: "min_chunk_size",
		},
		{
			name:    "similarity threshold out of range",
			mutate:  func(c *Config) { c.Chunker.SimilarityThreshold = 1.5 },
			wantErr: "similarity_threshold",
		},
		{
			name:    "non-positive top_k",
			mutate:  func(c *Config) { c.Retrieval.TopK = 0 },
			wantErr: "top_k",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoad_FileAndEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
qdrant:
  host: qdrant.internal
  collection: test_vectors
openai:
  api_key: sk-from-file
chunker:
  max_chunk_size: 400
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	t.Setenv("QDRANT_HOST", "qdrant.override")
	t.Setenv("CHUNKER_MIN_CHUNK_SIZE", "50")

	cfg, err := Load(path)
	require.NoError(t, err)

	// Env beats file, file beats default.
	assert.Equal(t, "qdrant.override", cfg.Qdrant.Host)
	assert.Equal(t, "test_vectors", cfg.Qdrant.Collection)
	assert.Equal(t, 400, cfg.Chunker.MaxChunkSize)
	assert.Equal(t, 50, cfg.Chunker.MinChunkSize)
	// Untouched defaults survive.
	assert.Equal(t, 6334, cfg.Qdrant.Port)
	assert.Equal(t, "sk-from-file", cfg.OpenAI.APIKey.Value())
}

func TestLoad_MissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api key")
}

func TestTransformEnvKey(t *testing.T) {
	assert.Equal(t, "qdrant.vector_size", transformEnvKey("QDRANT_VECTOR_SIZE"))
	assert.Equal(t, "openai.api_key", transformEnvKey("OPENAI_API_KEY"))
	assert.Equal(t, "neo4j.uri", transformEnvKey("NEO4J_URI"))
	assert.Equal(t, "", transformEnvKey("PATH"))
	assert.Equal(t, "", transformEnvKey("HOME"))
}

func TestSecret_Redaction(t *testing.T) {
	s := Secret("sk-super-secret")
	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "sk-super-secret", s.Value())
	assert.True(t, s.IsSet())

	data, err := s.MarshalJSON()
	require.NoError(t, err)
	assert.NotContains(t, string(data), "super-secret")

	var empty Secret
	assert.Equal(t, "", empty.String())
	assert.False(t, empty.IsSet())
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("-5s")))
	assert.Error(t, d.UnmarshalText([]byte("bogus")))
}
