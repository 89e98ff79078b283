package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "127.0.0.1:9002", cfg.Addr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "127.0.0.1:9003", cfg.MetricsAddr)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PUBSUB_ADDR", "0.0.0.0:9100")
	t.Setenv("PUBSUB_LOG_LEVEL", "debug")
	t.Setenv("PUBSUB_METRICS_ADDR", "0.0.0.0:9101")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9100", cfg.Addr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "0.0.0.0:9101", cfg.MetricsAddr)
}

func TestLoad_YAMLOverlayOverridesEnv(t *testing.T) {
	t.Setenv("PUBSUB_ADDR", "0.0.0.0:9100")

	dir := t.TempDir()
	path := filepath.Join(dir, "broker.yaml")
	content := "addr: 10.0.0.1:9002\nlog_level: warn\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.1:9002", cfg.Addr)
	assert.Equal(t, "warn", cfg.LogLevel)
	// Metrics addr wasn't present in the overlay, so the env/default value survives.
	assert.Equal(t, "127.0.0.1:9003", cfg.MetricsAddr)
}

func TestLoad_MissingYAMLFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoad_MalformedYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("addr: [unterminated"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate_MissingAddr(t *testing.T) {
	cfg := &Config{Addr: "", MetricsAddr: "127.0.0.1:9003"}
	err := cfg.validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PUBSUB_ADDR")
}

func TestValidate_MissingMetricsAddr(t *testing.T) {
	cfg := &Config{Addr: "127.0.0.1:9002", MetricsAddr: ""}
	err := cfg.validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PUBSUB_METRICS_ADDR")
}

func TestGetEnv(t *testing.T) {
	t.Run("returns env value when set", func(t *testing.T) {
		t.Setenv("TEST_GET_ENV_KEY", "custom_value")
		assert.Equal(t, "custom_value", getEnv("TEST_GET_ENV_KEY", "fallback"))
	})

	t.Run("returns fallback when not set", func(t *testing.T) {
		os.Unsetenv("TEST_GET_ENV_KEY_MISSING")
		assert.Equal(t, "fallback", getEnv("TEST_GET_ENV_KEY_MISSING", "fallback"))
	})
}

func TestGetEnvInt(t *testing.T) {
	t.Run("returns parsed int when valid", func(t *testing.T) {
		t.Setenv("TEST_INT_KEY", "42")
		assert.Equal(t, 42, getEnvInt("TEST_INT_KEY", 99))
	})

	t.Run("returns fallback when invalid int", func(t *testing.T) {
		t.Setenv("TEST_INT_KEY_BAD", "not-a-number")
		assert.Equal(t, 99, getEnvInt("TEST_INT_KEY_BAD", 99))
	})
}

func TestGetEnvBool(t *testing.T) {
	t.Run("returns true when set to true", func(t *testing.T) {
		t.Setenv("TEST_BOOL_KEY", "true")
		assert.True(t, getEnvBool("TEST_BOOL_KEY", false))
	})

	t.Run("returns fallback when invalid bool", func(t *testing.T) {
		t.Setenv("TEST_BOOL_KEY_BAD", "maybe")
		assert.False(t, getEnvBool("TEST_BOOL_KEY_BAD", false))
	})
}
