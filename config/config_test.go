package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wblog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("flushInterval: 1s\nmaxFlushRetries: 9\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, time.Second, cfg.FlushInterval)
	assert.Equal(t, uint64(9), cfg.MaxFlushRetries)
	// Unnamed keys keep their defaults.
	assert.Equal(t, DefaultConfig().RetryInitialWait, cfg.RetryInitialWait)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
