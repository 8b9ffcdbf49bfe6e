package httpbridge

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamforge/imagegen/internal/blobstore"
	"github.com/dreamforge/imagegen/internal/fileref"
	"github.com/dreamforge/imagegen/internal/jobcore"
	"github.com/dreamforge/imagegen/internal/pool"
	"github.com/dreamforge/imagegen/internal/queue"
	"github.com/dreamforge/imagegen/internal/registry"
)

type fakePool struct {
	mu        sync.Mutex
	submitted []*jobcore.Job
	subs      map[string]pool.Subscription
	submitErr error
	reg       *registry.Registry
}

func newFakePool() *fakePool {
	return &fakePool{subs: make(map[string]pool.Subscription), reg: registry.New()}
}

func (f *fakePool) Submit(job *jobcore.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return f.submitErr
	}
	f.submitted = append(f.submitted, job)
	return nil
}

func (f *fakePool) Subscribe(jobID string, sub pool.Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[jobID] = sub
}

func (f *fakePool) fire(jobID string, ev jobcore.ProgressEvent, job *jobcore.Job) {
	f.mu.Lock()
	sub := f.subs[jobID]
	f.mu.Unlock()
	if sub != nil {
		sub(ev, job)
	}
}

func (f *fakePool) CurrentMode() string              { return "sdxl-base" }
func (f *fakePool) QueueSnapshot() []queue.Descriptor { return nil }
func (f *fakePool) Running() int                      { return 0 }
func (f *fakePool) Registry() *registry.Registry      { return f.reg }

type fakeModes struct {
	reloadErr   error
	reloadCalls int
}

func (f *fakeModes) Reload() error {
	f.reloadCalls++
	return f.reloadErr
}

func newTestBridge(t *testing.T, p *fakePool, modes *fakeModes) (*Bridge, *blobstore.Store, *fileref.Store) {
	t.Helper()
	blobs, err := blobstore.New(t.TempDir())
	require.NoError(t, err)
	refs := fileref.New(fileref.DefaultTTL, fileref.DefaultSweepInterval)
	return New(p, blobs, refs, modes, 1<<20), blobs, refs
}

func newEcho(b *Bridge) *echo.Echo {
	e := echo.New()
	b.Register(e)
	return e
}

func TestHealthzReportsModeAndQueue(t *testing.T) {
	p := newFakePool()
	b, _, _ := newTestBridge(t, p, &fakeModes{})
	e := newEcho(b)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "sdxl-base", body["mode"])
}

func TestUploadStoresAndReturnsFileRef(t *testing.T) {
	p := newFakePool()
	b, _, refs := newTestBridge(t, p, &fakeModes{})
	e := newEcho(b)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "init.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("fake-png-bytes"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body["fileRef"])

	entry, ok := refs.Take(body["fileRef"])
	require.True(t, ok)
	assert.Equal(t, "fake-png-bytes", string(entry.Bytes))
}

func TestUploadMissingFileFieldIsBadRequest(t *testing.T) {
	p := newFakePool()
	b, _, _ := newTestBridge(t, p, &fakeModes{})
	e := newEcho(b)

	req := httptest.NewRequest(http.MethodPost, "/upload", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStorageGetMissingKeyIs404(t *testing.T) {
	p := newFakePool()
	b, _, _ := newTestBridge(t, p, &fakeModes{})
	e := newEcho(b)

	req := httptest.NewRequest(http.MethodGet, "/storage/does-not-exist", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLegacyGenerateBadRequestNeverReachesPool(t *testing.T) {
	p := newFakePool()
	b, _, _ := newTestBridge(t, p, &fakeModes{})
	e := newEcho(b)

	body := `{"size":"512x512","steps":4}` // missing prompt
	req := httptest.NewRequest(http.MethodPost, "/generate", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, p.submitted)
}

func TestLegacyGenerateBlocksUntilTerminalThenReplies(t *testing.T) {
	p := newFakePool()
	b, _, _ := newTestBridge(t, p, &fakeModes{})
	e := newEcho(b)

	go func() {
		var job *jobcore.Job
		for job == nil {
			p.mu.Lock()
			if len(p.submitted) > 0 {
				job = p.submitted[0]
			}
			p.mu.Unlock()
			time.Sleep(time.Millisecond)
		}
		job.MarkRunning()
		job.MarkDone("k1", "/storage/k1", map[string]interface{}{"seed": float64(7)})
		p.fire(job.ID, jobcore.ProgressEvent{Fraction: 1}, job)
	}()

	body := `{"prompt":"a cat","size":"512x512","steps":4,"cfg":7}`
	req := httptest.NewRequest(http.MethodPost, "/generate", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["jobId"])
}

func TestAdminModesReloadDelegatesToProvider(t *testing.T) {
	p := newFakePool()
	modes := &fakeModes{}
	b, _, _ := newTestBridge(t, p, modes)
	e := newEcho(b)

	req := httptest.NewRequest(http.MethodPost, "/v1/admin/modes/reload", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, modes.reloadCalls)
}

func TestAdminQueueReportsSnapshot(t *testing.T) {
	p := newFakePool()
	b, _, _ := newTestBridge(t, p, &fakeModes{})
	e := newEcho(b)

	req := httptest.NewRequest(http.MethodGet, "/v1/admin/queue", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(0), body["pending"])
}
