package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValues(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "./data", cfg.DBFilesLocation)
	assert.Equal(t, "UTF-8", cfg.Charset)
	assert.Equal(t, 150*time.Millisecond, cfg.WatchDebounce)
}

func TestValidateRejectsEmptyDataPath(t *testing.T) {
	cfg := Default()
	cfg.DBFilesLocation = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUnsupportedCharset(t *testing.T) {
	cfg := Default()
	cfg.Charset = "latin1"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNegativeDebounce(t *testing.T) {
	cfg := Default()
	cfg.WatchDebounce = -1
	assert.Error(t, cfg.Validate())
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	t.Setenv("DOCBASE_DATA_PATH", "/tmp/custom-data")
	t.Setenv("DOCBASE_CIPHER_SECRET", "s3cret")
	t.Setenv("DOCBASE_WATCH_DEBOUNCE_MS", "250")
	t.Setenv("DOCBASE_DISABLE_WATCHER", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom-data", cfg.DBFilesLocation)
	assert.Equal(t, "s3cret", cfg.CipherSecret)
	assert.Equal(t, 250*time.Millisecond, cfg.WatchDebounce)
	assert.True(t, cfg.DisableWatcher)
}

func TestLoadYAMLFileThenEnvTakesPriority(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dataPath: /from/yaml\ncharset: UTF-8\n"), 0o644))

	t.Setenv("DOCBASE_CONFIG_FILE", path)
	t.Setenv("DOCBASE_DATA_PATH", "/from/env")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.DBFilesLocation, "environment must win over the config file")
}
