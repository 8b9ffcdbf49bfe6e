package modeconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDoc = `
default_mode: sdxl-base
model_root: /models
lora_root: /loras
binary_path: /usr/local/bin/imagegen-infer
modes:
  sdxl-base:
    model: sdxl-base.safetensors
    loras:
      - detail-enhancer.safetensors
      - path: style-anime.safetensors
        strength: 0.6
    default_size: 1024x1024
    default_steps: 30
    default_guidance: 7.0
  sdxl-turbo:
    model: sdxl-turbo.safetensors
    default_size: 512x512
    default_steps: 4
    default_guidance: 1.0
`

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "modes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleDoc), 0o644))
	return path
}

func TestFileProviderResolve(t *testing.T) {
	fp, err := NewFileProvider(writeSample(t), "")
	require.NoError(t, err)

	assert.Equal(t, "sdxl-base", fp.DefaultMode())
	assert.True(t, fp.Exists("sdxl-turbo"))
	assert.False(t, fp.Exists("missing-mode"))

	spec, err := fp.Resolve("sdxl-base")
	require.NoError(t, err)
	assert.Equal(t, "/models/sdxl-base.safetensors", spec.ModelPath)
	assert.Len(t, spec.LoraPaths, 2)
	assert.Equal(t, "/loras/detail-enhancer.safetensors", spec.LoraPaths[0])
	assert.Equal(t, "/loras/style-anime.safetensors", spec.LoraPaths[1])
	assert.Equal(t, 30, spec.DefaultSteps)
}

func TestFileProviderResolveUnknownMode(t *testing.T) {
	fp, err := NewFileProvider(writeSample(t), "")
	require.NoError(t, err)

	_, err = fp.Resolve("nope")
	assert.Error(t, err)
}

func TestMissingDefaultModeFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("modes:\n  a:\n    model: x.safetensors\n"), 0o644))

	_, err := NewFileProvider(path, "")
	assert.Error(t, err)
}

func TestReloadPicksUpChanges(t *testing.T) {
	path := writeSample(t)
	fp, err := NewFileProvider(path, "")
	require.NoError(t, err)

	updated := sampleDoc + "\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))
	require.NoError(t, fp.ReloadFrom(path))
	assert.True(t, fp.Exists("sdxl-turbo"))
}

func TestReloadUsesConstructorPath(t *testing.T) {
	path := writeSample(t)
	fp, err := NewFileProvider(path, "")
	require.NoError(t, err)

	updated := sampleDoc + "\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))
	require.NoError(t, fp.Reload())
	assert.True(t, fp.Exists("sdxl-turbo"))
}

func TestResolveRemoteModelWithoutCacheRootFails(t *testing.T) {
	doc := `
default_mode: remote-mode
model_root: ""
lora_root: /loras
modes:
  remote-mode:
    model: https://example.com/models/sdxl.safetensors
    default_size: 1024x1024
    default_steps: 30
    default_guidance: 7.0
`
	path := filepath.Join(t.TempDir(), "remote.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	fp, err := NewFileProvider(path, "")
	require.NoError(t, err)

	_, err = fp.Resolve("remote-mode")
	assert.Error(t, err)
}
