package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdirTemp runs the test from an empty directory so no stray .env is loaded.
func chdirTemp(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)
	for _, k := range []string{
		"OPTIMIST_DB", "OPTIMIST_AGENT", "OPTIMIST_NAME", "OPTIMIST_CONVERSATION",
		"OPTIMIST_MAX_HISTORY", "OPTIMIST_CONFIRM_TIMEOUT", "OPTIMIST_LATENCY",
		"OPTIMIST_FAIL_RATE", "LOG_FILE_PATH", "GO_ENV", "OTEL_ENABLED",
		"OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_METRICS_PATH",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	cfg := Load()
	assert.Equal(t, ".optimist/optimist.db", cfg.App.DBPath)
	assert.Equal(t, "general", cfg.App.Conversation)
	assert.Equal(t, 50, cfg.App.MaxHistory)
	assert.Equal(t, "development", cfg.App.Environment)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, 10*time.Second, cfg.Confirm.Timeout)
	assert.Zero(t, cfg.Confirm.Latency)
	assert.Zero(t, cfg.Confirm.FailRate)
	assert.False(t, cfg.Otel.Enabled)
	assert.Equal(t, "localhost:4318", cfg.Otel.Endpoint)
	assert.Equal(t, ".optimist/metrics.jsonl", cfg.Otel.MetricsPath)
}

func TestLoad_Overrides(t *testing.T) {
	chdirTemp(t)
	t.Setenv("OPTIMIST_DB", "/tmp/x.db")
	t.Setenv("OPTIMIST_AGENT", "alice")
	t.Setenv("OPTIMIST_NAME", "Alice")
	t.Setenv("OPTIMIST_MAX_HISTORY", "7")
	t.Setenv("OPTIMIST_CONFIRM_TIMEOUT", "250ms")
	t.Setenv("OPTIMIST_LATENCY", "1s")
	t.Setenv("OPTIMIST_FAIL_RATE", "0.25")
	t.Setenv("GO_ENV", "production")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_METRICS_PATH", "/tmp/m.jsonl")

	cfg := Load()
	assert.Equal(t, "/tmp/x.db", cfg.App.DBPath)
	assert.Equal(t, "alice", cfg.Identity.AgentID)
	assert.Equal(t, "Alice", cfg.Identity.DisplayName)
	assert.Equal(t, 7, cfg.App.MaxHistory)
	assert.Equal(t, 250*time.Millisecond, cfg.Confirm.Timeout)
	assert.Equal(t, time.Second, cfg.Confirm.Latency)
	assert.InDelta(t, 0.25, cfg.Confirm.FailRate, 1e-9)
	assert.True(t, cfg.IsProduction())
	assert.True(t, cfg.Otel.Enabled)
	assert.Equal(t, "/tmp/m.jsonl", cfg.Otel.MetricsPath)
}

func TestLoad_BadValuesFallBack(t *testing.T) {
	chdirTemp(t)
	t.Setenv("OPTIMIST_MAX_HISTORY", "lots")
	t.Setenv("OPTIMIST_CONFIRM_TIMEOUT", "soon")
	t.Setenv("OPTIMIST_FAIL_RATE", "often")

	cfg := Load()
	assert.Equal(t, 50, cfg.App.MaxHistory)
	assert.Equal(t, 10*time.Second, cfg.Confirm.Timeout)
	assert.Zero(t, cfg.Confirm.FailRate)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	os.Unsetenv("OPTIMIST_CONVERSATION")
	t.Cleanup(func() { os.Unsetenv("OPTIMIST_CONVERSATION") })
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("OPTIMIST_CONVERSATION=random\n"), 0o644))

	cfg := Load()
	assert.Equal(t, "random", cfg.App.Conversation)
}
