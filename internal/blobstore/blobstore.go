// Package blobstore is the content-addressed Output Blob store: the
// worker pool writes generation output here, and the HTTP bridge serves
// it back by key. Blobs are immutable once keyed — the same bytes always
// produce the same key, and a key is never overwritten.
package blobstore

import (
	"crypto/sha256"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mr-tron/base58"

	"github.com/dreamforge/imagegen/errors"
)

// Blob is a single immutable output artifact.
type Blob struct {
	Key       string
	MimeType  string
	CreatedAt time.Time
}

// Store persists blobs to disk under root, keyed by the base58-encoded
// sha256 of their contents. An in-memory index avoids re-stating the
// filesystem on every Get.
type Store struct {
	root string

	mu    sync.RWMutex
	index map[string]Blob
}

// New constructs a Store rooted at dir, creating it if necessary.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create blob store root %s", dir)
	}
	return &Store{root: dir, index: make(map[string]Blob)}, nil
}

// Put computes the content key for bytes and writes it to disk if not
// already present, returning the key. Idempotent: re-submitting the same
// bytes (e.g. a retried job with the same seed+params) returns the same
// key without a duplicate write.
func (s *Store) Put(data []byte, mimeType string) (string, error) {
	key := contentKey(data)

	s.mu.Lock()
	_, exists := s.index[key]
	s.mu.Unlock()

	if exists {
		return key, nil
	}

	path := s.pathFor(key)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Wrapf(err, "failed to write blob %s", key)
	}

	blob := Blob{Key: key, MimeType: mimeType, CreatedAt: time.Now()}
	s.mu.Lock()
	s.index[key] = blob
	s.mu.Unlock()

	return key, nil
}

// Get reads back a blob's bytes and metadata by key.
func (s *Store) Get(key string) ([]byte, Blob, error) {
	s.mu.RLock()
	blob, ok := s.index[key]
	s.mu.RUnlock()

	if !ok {
		return nil, Blob{}, errors.Newf("blob %s not found", key)
	}

	data, err := os.ReadFile(s.pathFor(key))
	if err != nil {
		return nil, Blob{}, errors.Wrapf(err, "failed to read blob %s", key)
	}
	return data, blob, nil
}

// URL builds the public path an HTTP bridge serves this key at.
func (s *Store) URL(key string) string {
	return "/storage/" + key
}

func (s *Store) pathFor(key string) string {
	return filepath.Join(s.root, key)
}

func contentKey(data []byte) string {
	sum := sha256.Sum256(data)
	return base58.Encode(sum[:])
}
