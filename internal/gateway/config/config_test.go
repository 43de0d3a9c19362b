package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("PORT", "")

	cfg, err := load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, ":8081", cfg.Server.Addr)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, 2*time.Second, cfg.LLM.RetryDelay)
	assert.Equal(t, "file", cfg.Store.Backend)
	assert.Equal(t, "data/projects", cfg.Store.Dir)
	assert.Equal(t, 3, cfg.Pipeline.BatchSize)
	assert.Equal(t, int64(10<<20), cfg.Pipeline.MaxUploadBytes)
	assert.Equal(t, "ticketforge", cfg.Events.Prefix)
	assert.Empty(t, cfg.LLM.APIKey)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ticketforge.yaml")
	yaml := []byte("server:\n  addr: \":9000\"\nstore:\n  backend: sqlite\n  dsn: /tmp/tf.db\nllm:\n  retryDelay: 500ms\npipeline:\n  concurrency: 2\n")
	require.NoError(t, os.WriteFile(path, yaml, 0o644))
	t.Setenv("TICKETFORGE_PIPELINE_CONCURRENCY", "4")
	t.Setenv("PORT", "7000")

	cfg, err := load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Addr, "explicit address beats PORT")
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, "/tmp/tf.db", cfg.Store.DSN)
	assert.Equal(t, 500*time.Millisecond, cfg.LLM.RetryDelay)
	assert.Equal(t, 4, cfg.Pipeline.Concurrency)
}

func TestLoad_PortAndKeyFallbacks(t *testing.T) {
	t.Setenv("PORT", "7000")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "google-key")

	cfg, err := load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, "google-key", cfg.LLM.APIKey)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := load(viper.New(), filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
