package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8440, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "chromem", cfg.Index.Provider)
	assert.Equal(t, 384, cfg.Index.VectorSize)
	assert.Equal(t, 0.75, cfg.Search.SimilarityFloor)
	assert.Equal(t, 0.5, cfg.Search.ConfidenceFloor)
	assert.Equal(t, 10, cfg.Search.MaxResults)
	assert.Equal(t, 0, cfg.Search.MinVerifiedAttempts)
	assert.Equal(t, 24*time.Hour, cfg.Decay.Interval)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
search:
  similarity_floor: 0.8
  max_results: 5
index:
  provider: qdrant
  host: qdrant.internal
  port: 6334
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 0.8, cfg.Search.SimilarityFloor)
	assert.Equal(t, 5, cfg.Search.MaxResults)
	assert.Equal(t, "qdrant", cfg.Index.Provider)
	assert.Equal(t, "qdrant.internal", cfg.Index.Host)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0o600))

	t.Setenv("FIXD_SERVER_PORT", "9100")
	t.Setenv("FIXD_SEARCH_CONFIDENCE_FLOOR", "0.6")
	t.Setenv("FIXD_LOG_FORMAT", "console")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 0.6, cfg.Search.ConfidenceFloor)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8440, cfg.Server.Port)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"unknown index provider", func(c *Config) { c.Index.Provider = "pinecone" }},
		{"unknown embeddings provider", func(c *Config) { c.Embeddings.Provider = "openai" }},
		{"similarity floor above one", func(c *Config) { c.Search.SimilarityFloor = 1.5 }},
		{"negative max results", func(c *Config) { c.Search.MaxResults = -1 }},
		{"decay interval too short", func(c *Config) { c.Decay.Interval = time.Second }},
		{"unknown log format", func(c *Config) { c.Log.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			applyDefaults(&cfg)
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}
