package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/dreamforge/imagegen/logger"
)

// WebSocket timeout constants, mirroring Gorilla's own recommended values.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 1 << 20 // 1MB; frames carry JSON control messages, not image bytes
)

// Session is one connected WS client: a session router endpoint that owns
// its own subscription bookkeeping so a disconnect can tear those down
// without touching the jobs it submitted (they keep running).
type Session struct {
	id   string
	hub  *Hub
	conn *websocket.Conn

	send      chan interface{}
	closeOnce sync.Once
	sendMu    sync.Mutex
	closed    bool

	mu          sync.Mutex
	pendingJobs map[string]struct{}
}

func newSession(hub *Hub, conn *websocket.Conn) *Session {
	return &Session{
		id:          uuid.NewString(),
		hub:         hub,
		conn:        conn,
		send:        make(chan interface{}, 32),
		pendingJobs: make(map[string]struct{}),
	}
}

// readPump reads and dispatches frames until the connection errors or
// closes. On exit it unregisters from the hub; it never cancels the jobs
// this session submitted.
func (s *Session) readPump() {
	defer func() {
		s.hub.unregisterSession(s)
		if s.hub.dream.Owner() == s.id {
			s.hub.dream.Stop()
		}
		s.close()
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			s.handleReadError(err)
			return
		}

		var env inboundEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			s.sendJSON(errorMsg("", "", "BadRequest", "malformed JSON envelope"))
			continue
		}

		s.hub.routeMessage(s, &env)
	}
}

// handleReadError logs unexpected close codes; an expected client-initiated
// close (normal, going away, abnormal, no status) is not worth a warning.
func (s *Session) handleReadError(err error) {
	if websocket.IsUnexpectedCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseNoStatusReceived,
	) {
		logger.Warnw("ws read error", "session_id", s.id, "error", err)
		return
	}
	if closeErr, ok := err.(*websocket.CloseError); ok {
		logger.Debugw("ws session closed", "session_id", s.id, "code", closeErr.Code)
	}
}

// writePump drains the send channel to the connection and keeps the
// keepalive ping cadence. Exits when send is closed by close().
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteJSON(msg); err != nil {
				logger.Warnw("ws write error", "session_id", s.id, "error", err)
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendJSON enqueues msg for delivery. Non-blocking: a full channel means a
// slow or stuck client, and the frame is dropped rather than stalling the
// pool's progress callback that ultimately triggers this send. A session
// that has already closed (e.g. a subscription callback firing after
// disconnect) silently drops the frame instead of sending on a closed
// channel; sendMu serializes this check against close() so the two never
// race.
func (s *Session) sendJSON(msg interface{}) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.send <- msg:
	default:
		logger.Warnw("ws session send channel full, dropping frame", "session_id", s.id)
	}
}

// close shuts the send channel exactly once, waking writePump.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		s.sendMu.Lock()
		s.closed = true
		close(s.send)
		s.sendMu.Unlock()
	})
}

func (s *Session) trackJob(jobID string) {
	s.mu.Lock()
	s.pendingJobs[jobID] = struct{}{}
	s.mu.Unlock()
}

func (s *Session) untrackJob(jobID string) {
	s.mu.Lock()
	delete(s.pendingJobs, jobID)
	s.mu.Unlock()
}

func (s *Session) hasJob(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pendingJobs[jobID]
	return ok
}
