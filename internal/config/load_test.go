package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFileDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "imagegen.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 64, cfg.Pool.QueueMax)
	assert.Equal(t, 300, cfg.FileRef.TTLSeconds)
	assert.Equal(t, 5000, cfg.Dream.DefaultIntervalMS)
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDurationHelpers(t *testing.T) {
	fr := FileRefConfig{TTLSeconds: 300, SweepIntervalSeconds: 30}
	assert.Equal(t, int64(300), fr.FileRefTTL().Milliseconds()/1000)
	assert.Equal(t, int64(30), fr.SweepInterval().Milliseconds()/1000)

	pc := PoolConfig{JobTimeoutSecond: 120}
	assert.Equal(t, int64(120), pc.JobTimeout().Milliseconds()/1000)
}
