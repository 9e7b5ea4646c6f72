package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithNoFileOrEnv(t *testing.T) {
	cfg, warnings, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoadAppliesYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "monarch.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dataDir: /var/lib/monarch\nlogLevel: debug\n"), 0o600))

	cfg, _, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/monarch", cfg.DataDir)
	assert.Equal(t, LogDebug, cfg.LogLevel)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "monarch.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dataDir: /from/file\n"), 0o600))
	t.Setenv("MONARCH_DATA_DIR", "/from/env")

	cfg, _, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.DataDir)
}

func TestInvalidEnvValueProducesWarningNotError(t *testing.T) {
	t.Setenv("MONARCH_LOG_LEVEL", "not-a-level")
	cfg, warnings, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, LogInfo, cfg.LogLevel) // default kept
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "MONARCH_LOG_LEVEL")
}

func TestOperationTimeoutFromEnv(t *testing.T) {
	t.Setenv("MONARCH_OPERATION_TIMEOUT", "5000")
	cfg, warnings, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, 5*time.Second, cfg.OperationTimeout)
}

func TestMissingFileIsNotAnError(t *testing.T) {
	cfg, _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults().DataDir, cfg.DataDir)
}
