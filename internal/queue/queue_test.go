package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamforge/imagegen/internal/jobcore"
)

func newJob(priority jobcore.Priority, delay time.Duration) *jobcore.Job {
	j := jobcore.New("corr", jobcore.TypeGenerate, priority, &jobcore.GenerateParams{}, "")
	time.Sleep(delay)
	return j
}

func TestPriorityOrdering(t *testing.T) {
	q := New()

	batch := newJob(jobcore.PriorityBATCH, 0)
	urgent := newJob(jobcore.PriorityURGENT, time.Millisecond)
	normal := newJob(jobcore.PriorityNORMAL, time.Millisecond)

	q.Put(batch)
	q.Put(urgent)
	q.Put(normal)

	first, ok := q.Get()
	require.True(t, ok)
	assert.Equal(t, urgent.ID, first.ID)

	second, ok := q.Get()
	require.True(t, ok)
	assert.Equal(t, normal.ID, second.ID)

	third, ok := q.Get()
	require.True(t, ok)
	assert.Equal(t, batch.ID, third.ID)
}

func TestFIFOWithinLane(t *testing.T) {
	q := New()

	a := newJob(jobcore.PriorityNORMAL, 0)
	b := newJob(jobcore.PriorityNORMAL, time.Millisecond)
	c := newJob(jobcore.PriorityNORMAL, time.Millisecond)

	q.Put(a)
	q.Put(b)
	q.Put(c)

	for _, want := range []*jobcore.Job{a, b, c} {
		got, ok := q.Get()
		require.True(t, ok)
		assert.Equal(t, want.ID, got.ID)
	}
}

func TestGetBlocksUntilPut(t *testing.T) {
	q := New()
	result := make(chan *jobcore.Job, 1)

	go func() {
		job, ok := q.Get()
		if ok {
			result <- job
		} else {
			result <- nil
		}
	}()

	time.Sleep(20 * time.Millisecond)
	job := jobcore.New("corr", jobcore.TypeGenerate, jobcore.PriorityNORMAL, &jobcore.GenerateParams{}, "")
	q.Put(job)

	select {
	case got := <-result:
		require.NotNil(t, got)
		assert.Equal(t, job.ID, got.ID)
	case <-time.After(time.Second):
		t.Fatal("Get did not unblock after Put")
	}
}

func TestMarkCanceledQueuedJob(t *testing.T) {
	q := New()
	j1 := newJob(jobcore.PriorityNORMAL, 0)
	j2 := newJob(jobcore.PriorityNORMAL, time.Millisecond)

	q.Put(j1)
	q.Put(j2)

	assert.True(t, q.MarkCanceled(j1.ID, jobcore.NewError(jobcore.KindCanceled, "canceled while queued")))
	assert.False(t, q.MarkCanceled(j1.ID, jobcore.NewError(jobcore.KindCanceled, "canceled while queued")))

	got, ok := q.Get()
	require.True(t, ok)
	assert.Equal(t, j1.ID, got.ID)
	assert.Equal(t, jobcore.StateCanceled, got.State())
	require.NotNil(t, got.Result())
	assert.Equal(t, jobcore.KindCanceled, got.Result().Err.Kind)
}

func TestUpdatePriorityMovesLane(t *testing.T) {
	q := New()
	batch := newJob(jobcore.PriorityBATCH, 0)
	urgent := newJob(jobcore.PriorityURGENT, time.Millisecond)

	q.Put(batch)
	q.Put(urgent)

	require.True(t, q.UpdatePriority(batch.ID, jobcore.PriorityURGENT))

	snap := q.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, batch.ID, snap[0].ID)
	assert.Equal(t, urgent.ID, snap[1].ID)
	assert.Equal(t, jobcore.PriorityURGENT, snap[0].Priority)
}

func TestSnapshotReflectsLaneOrder(t *testing.T) {
	q := New()
	urgent := newJob(jobcore.PriorityURGENT, 0)
	normal := newJob(jobcore.PriorityNORMAL, time.Millisecond)
	background := newJob(jobcore.PriorityBACKGROUND, time.Millisecond)

	q.Put(normal)
	q.Put(background)
	q.Put(urgent)

	snap := q.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, urgent.ID, snap[0].ID)
	assert.Equal(t, normal.ID, snap[1].ID)
	assert.Equal(t, background.ID, snap[2].ID)
}

func TestCloseUnblocksWaitingGet(t *testing.T) {
	q := New()
	done := make(chan bool, 1)

	go func() {
		_, ok := q.Get()
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Get did not unblock after Close")
	}
}

func TestLen(t *testing.T) {
	q := New()
	assert.Equal(t, 0, q.Len())
	q.Put(newJob(jobcore.PriorityNORMAL, 0))
	q.Put(newJob(jobcore.PriorityURGENT, 0))
	assert.Equal(t, 2, q.Len())
}
