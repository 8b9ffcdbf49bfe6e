// Package modeconfig loads the declarative mode document: named recipes
// of model + LoRA stack + generation defaults that the worker pool
// switches between.
package modeconfig

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	getter "github.com/hashicorp/go-getter"
	"gopkg.in/yaml.v3"

	"github.com/dreamforge/imagegen/errors"
	"github.com/dreamforge/imagegen/internal/worker"
	"github.com/dreamforge/imagegen/logger"
)

// Lora is a single LoRA reference with its blend strength. The document
// may write a bare string for strength 1.0; Lora.UnmarshalYAML accepts
// both shapes.
type Lora struct {
	Path     string
	Strength float64
}

// rawLora exists only to decode the dual string/object YAML shape into Lora.
type rawLora struct {
	Path     string  `yaml:"path"`
	Strength float64 `yaml:"strength"`
}

// UnmarshalYAML accepts either a bare string (implying strength 1.0) or a
// mapping node with path/strength fields.
func (l *Lora) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		l.Path = value.Value
		l.Strength = 1.0
		return nil
	}

	var raw rawLora
	if err := value.Decode(&raw); err != nil {
		return errors.Wrap(err, "failed to decode lora entry")
	}
	l.Path = raw.Path
	l.Strength = raw.Strength
	return nil
}

// Mode is a single named recipe from the document's `modes` map.
type Mode struct {
	Model           string  `yaml:"model"`
	Loras           []Lora  `yaml:"loras"`
	DefaultSize     string  `yaml:"default_size"`
	DefaultSteps    int     `yaml:"default_steps"`
	DefaultGuidance float64 `yaml:"default_guidance"`
}

// Document is the root of the persisted mode config YAML file.
type Document struct {
	DefaultMode string          `yaml:"default_mode"`
	ModelRoot   string          `yaml:"model_root"`
	LoraRoot    string          `yaml:"lora_root"`
	BinaryPath  string          `yaml:"binary_path"`
	Modes       map[string]Mode `yaml:"modes"`
}

// Provider is the pool's dependency-injected view: resolve a mode name
// into a worker.ModeSpec, and report the configured default mode.
type Provider interface {
	Resolve(name string) (worker.ModeSpec, error)
	DefaultMode() string
	Exists(name string) bool
}

// FileProvider loads Document from a YAML file and serves Resolve calls
// against the in-memory parse, swapped under ReloadFrom by both the
// admin reload (through Reload) and the fsnotify-driven Watcher.
type FileProvider struct {
	mu        sync.RWMutex
	doc       Document
	path      string
	cacheRoot string
}

// NewFileProvider loads path once at construction. Remote model/LoRA
// sources (anything go-getter's detector recognizes as non-local) are
// fetched into cacheRoot the first time a mode resolves them.
func NewFileProvider(path, cacheRoot string) (*FileProvider, error) {
	fp := &FileProvider{path: path, cacheRoot: cacheRoot}
	if err := fp.ReloadFrom(path); err != nil {
		return nil, err
	}
	return fp, nil
}

// Reload re-reads the path this provider was last loaded from. This is
// the admin-triggered reload operation; the fsnotify-driven Watcher
// reloads the same document through ReloadFrom when the file changes.
func (fp *FileProvider) Reload() error {
	return fp.ReloadFrom(fp.path)
}

// ReloadFrom re-reads path and atomically swaps the in-memory document.
// Called by the admin reload endpoint and by the config watcher.
func (fp *FileProvider) ReloadFrom(path string) error {
	doc, err := ReadDocument(path)
	if err != nil {
		return err
	}

	fp.mu.Lock()
	fp.doc = doc
	fp.path = path
	fp.mu.Unlock()
	return nil
}

// ReadDocument parses and validates the mode document at path without
// constructing a Provider, for callers that only need to inspect it (the
// `imagegend mode ls` CLI).
func ReadDocument(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, errors.Wrapf(err, "failed to read mode config %s", path)
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Document{}, errors.Wrapf(err, "failed to parse mode config %s", path)
	}

	if err := validate(doc); err != nil {
		return Document{}, err
	}

	return doc, nil
}

func validate(doc Document) error {
	if doc.DefaultMode == "" {
		return errors.New("mode config must declare exactly one default_mode")
	}
	if _, ok := doc.Modes[doc.DefaultMode]; !ok {
		return errors.Newf("default_mode %q is not defined in modes", doc.DefaultMode)
	}
	return nil
}

// DefaultMode returns the document's declared default_mode name.
func (fp *FileProvider) DefaultMode() string {
	fp.mu.RLock()
	defer fp.mu.RUnlock()
	return fp.doc.DefaultMode
}

// Exists reports whether name is a defined mode.
func (fp *FileProvider) Exists(name string) bool {
	fp.mu.RLock()
	defer fp.mu.RUnlock()
	_, ok := fp.doc.Modes[name]
	return ok
}

// Resolve builds a worker.ModeSpec for name, joining model/LoRA paths
// against the document's configured roots. A path naming a remote
// source (detected by go-getter) is fetched into the cache root and
// rewritten to the local copy before the spec is returned.
func (fp *FileProvider) Resolve(name string) (worker.ModeSpec, error) {
	fp.mu.RLock()
	mode, ok := fp.doc.Modes[name]
	modelRoot, loraRoot, cacheRoot := fp.doc.ModelRoot, fp.doc.LoraRoot, fp.cacheRoot
	binaryPath := fp.doc.BinaryPath
	fp.mu.RUnlock()

	if !ok {
		return worker.ModeSpec{}, errors.Newf("mode %q not found", name)
	}

	modelPath, err := fp.resolvePath(joinRoot(modelRoot, mode.Model), cacheRoot)
	if err != nil {
		return worker.ModeSpec{}, errors.Wrapf(err, "failed to resolve model for mode %q", name)
	}

	loraPaths := make([]string, 0, len(mode.Loras))
	for _, l := range mode.Loras {
		resolved, err := fp.resolvePath(joinRoot(loraRoot, l.Path), cacheRoot)
		if err != nil {
			return worker.ModeSpec{}, errors.Wrapf(err, "failed to resolve lora %q for mode %q", l.Path, name)
		}
		loraPaths = append(loraPaths, resolved)
	}

	return worker.ModeSpec{
		Name:         name,
		ModelPath:    modelPath,
		LoraPaths:    loraPaths,
		DefaultSize:  mode.DefaultSize,
		DefaultSteps: mode.DefaultSteps,
		DefaultGuide: mode.DefaultGuidance,
		BinaryPath:   binaryPath,
	}, nil
}

// resolvePath fetches src into cacheRoot via go-getter when detection
// identifies it as a remote source (http(s), s3, gcs, a model-hub
// shorthand); a plain local path or file:// reference passes through
// untouched, mirroring the local-vs-remote scheme check the ingestion
// pipeline this was grounded on uses.
func (fp *FileProvider) resolvePath(src, cacheRoot string) (string, error) {
	pwd, err := os.Getwd()
	if err != nil {
		pwd = "."
	}

	detected, err := getter.Detect(src, pwd, getter.Detectors)
	if err != nil {
		return src, nil
	}

	parsed, err := url.Parse(detected)
	if err != nil || parsed.Scheme == "" || parsed.Scheme == "file" {
		return src, nil
	}

	if cacheRoot == "" {
		return "", errors.Newf("remote source %q requires modeconfig.cache_root to be configured", src)
	}

	dst := filepath.Join(cacheRoot, cacheKeyFor(detected))
	if _, statErr := os.Stat(dst); statErr == nil {
		return dst, nil
	}

	client := &getter.Client{
		Ctx:  context.Background(),
		Src:  detected,
		Dst:  dst,
		Mode: getter.ClientModeFile,
	}

	logger.Infow("fetching remote mode asset", "source", src, "destination", dst)
	if err := client.Get(); err != nil {
		return "", errors.Wrapf(err, "failed to fetch %s", src)
	}
	return dst, nil
}

func cacheKeyFor(src string) string {
	sum := sha256.Sum256([]byte(src))
	return hex.EncodeToString(sum[:])
}

func joinRoot(root, path string) string {
	if root == "" || path == "" || os.IsPathSeparator(path[0]) {
		return path
	}
	return root + string(os.PathSeparator) + path
}
