package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamforge/imagegen/internal/config"
)

func TestResolveServerBaseUsesFlagWhenSet(t *testing.T) {
	got := resolveServerBase("http://example.com:9999", nil)
	assert.Equal(t, "http://example.com:9999", got)
}

func TestResolveServerBaseFallsBackToConfigPort(t *testing.T) {
	cfg := &config.Config{Server: config.ServerConfig{Port: 9090}}
	got := resolveServerBase("", cfg)
	assert.Equal(t, "http://localhost:9090", got)
}

func TestResolveServerBaseDefaultsWhenConfigMissing(t *testing.T) {
	got := resolveServerBase("", nil)
	assert.Equal(t, "http://localhost:8080", got)
}

func TestLoadConfigFromSpecificFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "imagegen.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 7070\n"), 0o644))

	configFile = path
	defer func() { configFile = "" }()

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
}
