// Package fileref is the short-TTL keyed store bridging binary uploads
// (init images, SR inputs) into queued jobs. Entries survive multiple
// reads within their TTL window; only the background sweeper removes
// them, never a Take call.
package fileref

import (
	"crypto/rand"
	"time"

	"github.com/mr-tron/base58"
	"github.com/projectdiscovery/gcache"

	"github.com/dreamforge/imagegen/errors"
	"github.com/dreamforge/imagegen/logger"
)

// DefaultTTL and DefaultSweepInterval mirror the specification's defaults;
// callers normally source these from config instead.
const (
	DefaultTTL           = 300 * time.Second
	DefaultSweepInterval = 30 * time.Second
	maxEntries           = 10000
)

// Entry is a single stored upload.
type Entry struct {
	Ref         string
	Bytes       []byte
	ContentType string
	CreatedAt   time.Time
}

// Store is the TTL-backed file-ref store. Built on gcache's own
// expiration so an expired ref reads back as "not found" without the
// store needing its own expiry bookkeeping; the sweeper below forces
// the lazy expiration check on a fixed cadence so memory is reclaimed
// even for refs that are never read again.
type Store struct {
	cache       gcache.Cache[string, Entry]
	sweepStop   chan struct{}
	sweepPeriod time.Duration
}

// New constructs a Store with the given TTL and sweep cadence.
func New(ttl, sweepInterval time.Duration) *Store {
	cache := gcache.New[string, Entry](maxEntries).
		LRU().
		Expiration(ttl).
		Build()

	s := &Store{
		cache:       cache,
		sweepStop:   make(chan struct{}),
		sweepPeriod: sweepInterval,
	}
	go s.sweepLoop()
	return s
}

// Put stores bytes under a freshly generated opaque 128-bit key, returning
// the ref.
func (s *Store) Put(data []byte, contentType string) (string, error) {
	ref, err := newRef()
	if err != nil {
		return "", err
	}

	entry := Entry{Ref: ref, Bytes: data, ContentType: contentType, CreatedAt: time.Now()}
	if err := s.cache.Set(ref, entry); err != nil {
		return "", errors.Wrap(err, "failed to store file ref")
	}
	return ref, nil
}

// Take resolves ref to its entry. Per the resolved multi-read semantics,
// a successful read does NOT remove the entry; it remains available
// until TTL expiry or the sweeper reclaims it.
func (s *Store) Take(ref string) (Entry, bool) {
	entry, err := s.cache.Get(ref)
	if err != nil {
		return Entry{}, false
	}
	return entry, true
}

// Stop halts the background sweeper.
func (s *Store) Stop() {
	close(s.sweepStop)
}

func (s *Store) sweepLoop() {
	ticker := time.NewTicker(s.sweepPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			before := s.cache.Len(true)
			s.cache.Keys(true) // forces gcache's lazy expiration pass
			after := s.cache.Len(true)
			if before != after {
				logger.Debugw("file ref sweep reclaimed entries", "before", before, "after", after)
			}
		case <-s.sweepStop:
			return
		}
	}
}

func newRef() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "failed to generate file ref key")
	}
	return base58.Encode(buf), nil
}
