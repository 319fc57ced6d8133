package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Load reads ./trendsight.yaml when TRENDSIGHT_CONFIG is unset, so every
// test pins the path to keep a stray file in the working directory from
// leaking in.
func pointConfigAt(t *testing.T, path string) {
	t.Helper()
	t.Setenv("TRENDSIGHT_CONFIG", path)
}

func TestLoadDefaults(t *testing.T) {
	pointConfigAt(t, filepath.Join(t.TempDir(), "absent.yaml"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gemini", cfg.Backend)
	assert.Equal(t, "screenshots", cfg.InputDir)
	assert.Equal(t, "trend_report.md", cfg.OutputPath)
	assert.Equal(t, "trendsight.db", cfg.DBPath)
	assert.Equal(t, 60*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 8, cfg.ChunkSize)
	assert.Equal(t, 10, cfg.RequestsPerMinute)
	assert.Equal(t, int64(20<<20), cfg.MaxImageBytes)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trendsight.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
backend: claude
input_dir: /data/shots
chunk_size: 4
request_timeout: 90s
`), 0600))
	pointConfigAt(t, path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "claude", cfg.Backend)
	assert.Equal(t, "/data/shots", cfg.InputDir)
	assert.Equal(t, 4, cfg.ChunkSize)
	assert.Equal(t, 90*time.Second, cfg.RequestTimeout)
	// Untouched keys keep their defaults.
	assert.Equal(t, "trend_report.md", cfg.OutputPath)
	assert.Equal(t, 3, cfg.MaxAttempts)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trendsight.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend: claude\nchunk_size: 4\n"), 0600))
	pointConfigAt(t, path)

	t.Setenv("TRENDSIGHT_BACKEND", "gemini")
	t.Setenv("TRENDSIGHT_CHUNK_SIZE", "2")
	t.Setenv("GEMINI_API_KEY", "test-key-123")
	t.Setenv("TRENDSIGHT_REQUEST_TIMEOUT", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gemini", cfg.Backend)
	assert.Equal(t, 2, cfg.ChunkSize)
	assert.Equal(t, "test-key-123", cfg.GeminiAPIKey)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
}

func TestLoadMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trendsight.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend: [unclosed"), 0600))
	pointConfigAt(t, path)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse")
}

func TestAPIKeyFollowsBackend(t *testing.T) {
	cfg := &Config{
		Backend:      "claude",
		GeminiAPIKey: "gem",
		ClaudeAPIKey: "cla",
	}
	assert.Equal(t, "cla", cfg.APIKey())

	cfg.Backend = "gemini"
	assert.Equal(t, "gem", cfg.APIKey())
}
