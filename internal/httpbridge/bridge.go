// Package httpbridge implements the HTTP Bridge collaborator: a thin,
// feature-parallel surface alongside the WS session router for plain
// HTTP clients — multipart uploads into fileRefs, serving output blobs,
// a health probe, legacy synchronous job adapters, and a couple of
// operator-facing admin endpoints. It shares no session state with the
// WS hub; every request is handled independently.
package httpbridge

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/dreamforge/imagegen/internal/blobstore"
	"github.com/dreamforge/imagegen/internal/fileref"
	"github.com/dreamforge/imagegen/internal/jobcore"
	"github.com/dreamforge/imagegen/internal/pool"
	"github.com/dreamforge/imagegen/internal/queue"
	"github.com/dreamforge/imagegen/internal/registry"
)

// PoolHandle is the bridge's dependency-injected view of the worker pool.
type PoolHandle interface {
	Submit(job *jobcore.Job) error
	Subscribe(jobID string, sub pool.Subscription)
	CurrentMode() string
	QueueSnapshot() []queue.Descriptor
	Running() int
	Registry() *registry.Registry
}

// ModeReloader is the admin reload endpoint's dependency-injected view
// of the mode config provider.
type ModeReloader interface {
	Reload() error
}

// BlobStore is the bridge's dependency-injected view of the output blob
// store, used to serve GET /storage/{key}.
type BlobStore interface {
	Get(key string) ([]byte, blobstore.Blob, error)
}

// FileRefStore is the bridge's dependency-injected view of the file-ref
// store, used to back POST /upload and to resolve init_image_ref on the
// legacy synchronous adapters.
type FileRefStore interface {
	Put(data []byte, contentType string) (string, error)
	Take(ref string) (fileref.Entry, bool)
}

// Bridge wires the HTTP Bridge's collaborators and registers its routes
// on an Echo instance.
type Bridge struct {
	pool      PoolHandle
	blobs     BlobStore
	fileRefs  FileRefStore
	modes     ModeReloader
	uploadMax int64
}

// New constructs a Bridge. uploadMax bounds the accepted multipart body
// size in bytes.
func New(p PoolHandle, blobs BlobStore, fileRefs FileRefStore, modes ModeReloader, uploadMax int64) *Bridge {
	return &Bridge{pool: p, blobs: blobs, fileRefs: fileRefs, modes: modes, uploadMax: uploadMax}
}

// Register mounts the bridge's routes and baseline middleware on e.
func (b *Bridge) Register(e *echo.Echo) {
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(bodyLimitString(b.uploadMax)))

	e.GET("/healthz", b.handleHealthz)
	e.POST("/upload", b.handleUpload)
	e.GET("/storage/:key", b.handleStorageGet)

	e.POST("/generate", b.handleLegacyGenerate)
	e.POST("/superres", b.handleLegacySuperres)

	e.POST("/v1/admin/modes/reload", b.handleAdminModesReload)
	e.GET("/v1/admin/queue", b.handleAdminQueue)
}

// bodyLimitString renders a byte count as the "<n>B" form echo's
// BodyLimit middleware accepts, avoiding a rounding mismatch from
// expressing it in K/M units.
func bodyLimitString(max int64) string {
	if max <= 0 {
		max = 32 << 20
	}
	return strconv.FormatInt(max, 10) + "B"
}
