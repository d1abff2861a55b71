package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 3, cfg.Retriever.K)
	assert.Equal(t, 4, cfg.Memory.KeepRecent)
	assert.Equal(t, 10, cfg.Memory.MaxTurns)
	assert.Equal(t, 64, cfg.Ingest.BatchSize)
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, Default().Server.Port, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Memory.SummaryTimeout)
	assert.Equal(t, "memory", cfg.VectorStore.Backend)
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shopmesh.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 8080
memory:
  threshold: 900
  summary_timeout: 3s
retriever:
  lambda: 0.7
`), 0o600))
	t.Setenv("SHOPMESH_SERVER_PORT", "9090")
	t.Setenv("SHOPMESH_SESSIONS_BACKEND", "sqlite")

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 900, cfg.Memory.Threshold)
	assert.Equal(t, 3*time.Second, cfg.Memory.SummaryTimeout)
	assert.InDelta(t, 0.7, cfg.Retriever.Lambda, 1e-9)
	assert.Equal(t, "sqlite", cfg.Sessions.Backend)
	assert.Equal(t, 4, cfg.Memory.KeepRecent)
}

func TestLoad_ProviderEnvFallbacks(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SHOPMESH_LLM_PROVIDER", "anthropic")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	t.Setenv("DATABASE_URL", "postgres://localhost/shop")

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, "sk-ant", cfg.LLM.APIKey)
	assert.Equal(t, "postgres://localhost/shop", cfg.Sessions.PostgresURL)
	assert.Equal(t, "postgres://localhost/shop", cfg.VectorStore.Postgres.URL)
	assert.Equal(t, "****", cfg.Redacted().LLM.APIKey)
	assert.Equal(t, "sk-ant", cfg.LLM.APIKey)
}

func TestLoad_BrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o600))

	_, err := Load(path)

	assert.Error(t, err)
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "shopmesh.yaml")
	cfg := Default()
	cfg.Memory.Threshold = 1234
	cfg.Sessions.IdleTTL = 2 * time.Hour

	require.NoError(t, Save(path, cfg))
	loaded, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, 1234, loaded.Memory.Threshold)
	assert.Equal(t, 2*time.Hour, loaded.Sessions.IdleTTL)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"negative threshold", func(c *Config) { c.Memory.Threshold = -1 }},
		{"keep >= max turns", func(c *Config) { c.Memory.KeepRecent = 10 }},
		{"unknown vector backend", func(c *Config) { c.VectorStore.Backend = "faiss" }},
		{"unknown session backend", func(c *Config) { c.Sessions.Backend = "redis" }},
		{"lambda out of range", func(c *Config) { c.Retriever.Lambda = 1.5 }},
		{"model summarizer without llm", func(c *Config) { c.Memory.Summarizer = "model" }},
		{"postgres without url", func(c *Config) { c.Sessions.Backend = "postgres" }},
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
