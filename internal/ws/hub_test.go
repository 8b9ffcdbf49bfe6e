package ws

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamforge/imagegen/internal/dream"
	"github.com/dreamforge/imagegen/internal/fileref"
)

func newRunnableHub(p *fakePool, d *fakeDream, fr *fileref.Store) *Hub {
	return NewHub(p, d, fr, nil)
}

func TestRegisterSendsInitialSystemStatus(t *testing.T) {
	h := newRunnableHub(newFakePool(), &fakeDream{}, fileref.New(fileref.DefaultTTL, fileref.DefaultSweepInterval))
	go h.Run()
	defer h.Stop(time.Second)

	s := newTestSession(h)
	h.register <- s

	require.Eventually(t, func() bool {
		select {
		case msg := <-s.send:
			m := msg.(map[string]interface{})
			return m["type"] == "system:status"
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestUnregisterRemovesSession(t *testing.T) {
	h := newRunnableHub(newFakePool(), &fakeDream{}, fileref.New(fileref.DefaultTTL, fileref.DefaultSweepInterval))
	go h.Run()
	defer h.Stop(time.Second)

	s := newTestSession(h)
	h.register <- s
	require.Eventually(t, func() bool { return h.sessionCount() == 1 }, time.Second, 5*time.Millisecond)

	h.unregisterSession(s)
	require.Eventually(t, func() bool { return h.sessionCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestStopStopsOwnedDream(t *testing.T) {
	d := &fakeDream{owner: "sess-1"}
	h := newRunnableHub(newFakePool(), d, fileref.New(fileref.DefaultTTL, fileref.DefaultSweepInterval))
	go h.Run()

	h.Stop(time.Second)
	assert.True(t, d.stopCalled)
}

func TestQueueStateMsgShape(t *testing.T) {
	p := newFakePool()
	h := newRunnableHub(p, &fakeDream{}, fileref.New(fileref.DefaultTTL, fileref.DefaultSweepInterval))

	msg := h.queueStateMsg()
	assert.Equal(t, "queue:state", msg["type"])
	assert.Equal(t, 0, msg["pending"])
}
