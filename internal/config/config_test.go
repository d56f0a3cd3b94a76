package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadJSONDefaults(t *testing.T) {
	path := writeFile(t, "config.json", `{
		"ai": {"generators": [{"name": "main", "provider": "gemini", "model": "gemini-2.0-flash", "data": {"api_key": "env:GEMINI_API_KEY"}}]}
	}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 8000, cfg.Port)
	require.Equal(t, "info", cfg.LogConfig.Level)
	require.Equal(t, 1000, cfg.Chunk.Size)
	require.Equal(t, 100, cfg.Chunk.Overlap)
	require.Equal(t, 3, cfg.Retrieval.TopK)
	require.Equal(t, "local", cfg.IndexStore.Type)
	require.Equal(t, "local", cfg.AI.Embedder.Provider)
	require.Equal(t, "hash", cfg.AI.Embedder.Model)
	require.False(t, cfg.Database.Enabled())
	require.Equal(t, int64(20<<20), cfg.Upload.MaxBytes)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
port: 9000
log_config:
  level: debug
  console: true
chunk:
  size: 500
  overlap: 50
index_store:
  type: s3
  data:
    bucket: rag
ai:
  generators:
    - provider: anthropic
      model: claude-sonnet-4-5
  embedder:
    provider: gemini
    model: text-embedding-004
database:
  host: localhost
  port: 5432
embed_cache:
  db_enabled: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9000, cfg.Port)
	require.Equal(t, "debug", cfg.LogConfig.Level)
	require.Equal(t, 500, cfg.Chunk.Size)
	require.Equal(t, 50, cfg.Chunk.Overlap)
	require.Equal(t, "s3", cfg.IndexStore.Type)
	require.Equal(t, "anthropic", cfg.AI.Generators[0].Provider)
	require.Equal(t, "text-embedding-004", cfg.AI.Embedder.Model)
	require.True(t, cfg.Database.Enabled())
}

func TestLoadValidation(t *testing.T) {
	cases := map[string]string{
		"no generators":   `{}`,
		"bad overlap":     `{"chunk": {"size": 10, "overlap": 10}, "ai": {"generators": [{"provider": "gemini", "model": "m"}]}}`,
		"generator model": `{"ai": {"generators": [{"provider": "gemini"}]}}`,
		"db cache no db":  `{"embed_cache": {"db_enabled": true}, "ai": {"generators": [{"provider": "gemini", "model": "m"}]}}`,
		"broken json":     `{`,
	}
	for name, body := range cases {
		_, err := Load(writeFile(t, "config.json", body))
		require.Error(t, err, name)
	}
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
