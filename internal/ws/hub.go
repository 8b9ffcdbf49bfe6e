package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dreamforge/imagegen/internal/dream"
	"github.com/dreamforge/imagegen/internal/fileref"
	"github.com/dreamforge/imagegen/internal/jobcore"
	"github.com/dreamforge/imagegen/internal/metrics"
	"github.com/dreamforge/imagegen/internal/pool"
	"github.com/dreamforge/imagegen/internal/queue"
	"github.com/dreamforge/imagegen/internal/registry"
	"github.com/dreamforge/imagegen/logger"
)

const statusBroadcastInterval = 5 * time.Second

// PoolHandle is the hub's dependency-injected view of the worker pool.
type PoolHandle interface {
	Submit(job *jobcore.Job) error
	Subscribe(jobID string, sub pool.Subscription)
	Cancel(jobID string) bool
	Reprioritize(jobID string, newPriority jobcore.Priority) bool
	SwitchMode(modeName string) (*jobcore.Job, error)
	QueueSnapshot() []queue.Descriptor
	CurrentMode() string
	Running() int
	Registry() *registry.Registry
}

// DreamHandle is the hub's dependency-injected view of the dream controller.
type DreamHandle interface {
	Start(params dream.StartParams) error
	Guide(prompt *string, temperature *float64) error
	Stop() (dream.Stats, error)
	State() dream.State
	Owner() string
}

// FileRefHandle is the hub's dependency-injected view of the file-ref store.
type FileRefHandle interface {
	Take(ref string) (fileref.Entry, bool)
	Put(data []byte, contentType string) (string, error)
}

// Hub is the Session Router: it owns every connected Session, dispatches
// inbound frames, and broadcasts system/queue state.
type Hub struct {
	pool     PoolHandle
	dream    DreamHandle
	fileRefs FileRefHandle

	upgrader websocket.Upgrader

	mu       sync.RWMutex
	sessions map[*Session]struct{}

	register   chan *Session
	unregister chan *Session

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	runDone chan struct{}
}

// NewHub constructs a Hub bound to the given collaborators. allowedOrigins
// empty means accept any origin (development mode).
func NewHub(p PoolHandle, d DreamHandle, fr FileRefHandle, allowedOrigins []string) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		pool:       p,
		dream:      d,
		fileRefs:   fr,
		sessions:   make(map[*Session]struct{}),
		register:   make(chan *Session, 64),
		unregister: make(chan *Session, 64),
		ctx:        ctx,
		cancel:     cancel,
		runDone:    make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// Run is the hub's own event loop: registration bookkeeping and the
// periodic system:status broadcaster. Blocks until Stop cancels it.
func (h *Hub) Run() {
	defer close(h.runDone)

	ticker := time.NewTicker(statusBroadcastInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case s := <-h.register:
			h.mu.Lock()
			h.sessions[s] = struct{}{}
			h.mu.Unlock()
			metrics.WSSessionsGauge.Inc()
			s.sendJSON(h.systemStatusMsg())
		case s := <-h.unregister:
			h.mu.Lock()
			delete(h.sessions, s)
			h.mu.Unlock()
			metrics.WSSessionsGauge.Dec()
		case <-ticker.C:
			if h.sessionCount() > 0 {
				h.broadcast(h.systemStatusMsg())
			}
		}
	}
}

// ServeHTTP upgrades the request to a WS connection and starts the
// session's read/write pumps. Mount at /v1/ws.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warnw("ws upgrade failed", "error", err)
		return
	}

	s := newSession(h, conn)

	select {
	case h.register <- s:
	case <-h.ctx.Done():
		conn.Close()
		return
	}

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		s.writePump()
	}()
	go func() {
		defer h.wg.Done()
		s.readPump()
	}()
}

func (h *Hub) unregisterSession(s *Session) {
	select {
	case h.unregister <- s:
	default:
		logger.Warnw("ws unregister channel full, dropping", "session_id", s.id)
	}
}

func (h *Hub) sessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// broadcast sends msg to every connected session, best-effort.
func (h *Hub) broadcast(msg interface{}) {
	h.mu.RLock()
	sessions := make([]*Session, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.RUnlock()

	for _, s := range sessions {
		s.sendJSON(msg)
	}
}

func (h *Hub) broadcastQueueState() {
	h.broadcast(h.queueStateMsg())
}

func (h *Hub) systemStatusMsg() map[string]interface{} {
	stats := h.pool.Registry().Stats()
	return map[string]interface{}{
		"type": "system:status",
		"mode": h.pool.CurrentMode(),
		"vram": map[string]interface{}{
			"usedBytes":      stats.UsedBytes,
			"availableBytes": stats.AvailableBytes,
			"totalBytes":     stats.TotalBytes,
		},
		"storage": map[string]interface{}{
			"loadedModels": stats.LoadedModels,
		},
		"queueState": h.queueStateMsg(),
	}
}

func (h *Hub) queueStateMsg() map[string]interface{} {
	snapshot := h.pool.QueueSnapshot()
	jobs := make([]map[string]interface{}, 0, len(snapshot))
	for _, d := range snapshot {
		jobs = append(jobs, map[string]interface{}{
			"id":       d.ID,
			"priority": d.Priority.String(),
			"source":   d.Source,
		})
	}
	return map[string]interface{}{
		"type":    "queue:state",
		"pending": len(snapshot),
		"running": h.pool.Running(),
		"jobs":    jobs,
	}
}

// Stop closes every session connection, waits for their pumps to exit
// (up to timeout), then cancels the hub's own background loops. Any
// active dream session is stopped first since it has no session of its
// own to own the stop.
func (h *Hub) Stop(timeout time.Duration) {
	if h.dream.Owner() != "" {
		if _, err := h.dream.Stop(); err != nil {
			logger.Warnw("failed to stop dream session during ws shutdown", "error", err)
		}
	}

	h.mu.Lock()
	sessions := make([]*Session, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		s.conn.Close()
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		logger.Warnw("ws session shutdown timed out, forcing exit", "timeout", timeout)
	}

	h.cancel()
	<-h.runDone
}
