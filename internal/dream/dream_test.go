package dream

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamforge/imagegen/internal/jobcore"
	"github.com/dreamforge/imagegen/internal/pool"
)

type fakePool struct {
	mu          sync.Mutex
	submitted   []*jobcore.Job
	canceled    []string
	submitErr   error
	subscribers map[string]pool.Subscription
}

func newFakePool() *fakePool {
	return &fakePool{subscribers: make(map[string]pool.Subscription)}
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

func (f *fakePool) Cancel(jobID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.canceled = append(f.canceled, jobID)
	return true
}

func (f *fakePool) Subscribe(jobID string, sub pool.Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribers[jobID] = sub
}

func (f *fakePool) fireTerminal(jobID string) {
	f.mu.Lock()
	sub := f.subscribers[jobID]
	f.mu.Unlock()
	if sub == nil {
		return
	}
	job := jobcore.New("", jobcore.TypeDreamTick, jobcore.PriorityBACKGROUND, &jobcore.DreamTickParams{}, "")
	job.MarkRunning()
	job.MarkDone("key", "url", nil)
	sub(jobcore.ProgressEvent{Fraction: 1}, job)
}

func (f *fakePool) submittedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submitted)
}

func newTestController(pool *fakePool) *Controller {
	return New(pool, Config{DefaultIntervalMS: 20, MaxDuration: time.Minute, MaxTemperature: 1})
}

func TestStartTicksAndStop(t *testing.T) {
	pool := newFakePool()
	c := newTestController(pool)

	require.NoError(t, c.Start(StartParams{Owner: "s1", Prompt: "a cat", Temperature: 0.5, IntervalMS: 20}))
	assert.Equal(t, StateDreaming, c.State())

	require.Eventually(t, func() bool {
		return pool.submittedCount() >= 1
	}, time.Second, 5*time.Millisecond)

	stats, err := c.Stop()
	require.NoError(t, err)
	assert.Equal(t, StateIdle, c.State())
	assert.GreaterOrEqual(t, stats.TicksSubmitted, 1)
	assert.NotEmpty(t, stats.ChildJobIDs)
}

func TestStartFailsWhenAlreadyDreaming(t *testing.T) {
	pool := newFakePool()
	c := newTestController(pool)

	require.NoError(t, c.Start(StartParams{Owner: "s1", Prompt: "a cat"}))
	err := c.Start(StartParams{Owner: "s2", Prompt: "a dog"})
	require.Error(t, err)
	je, ok := err.(*jobcore.Error)
	require.True(t, ok)
	assert.Equal(t, jobcore.KindDreamBusy, je.Kind)

	_, _ = c.Stop()
}

func TestGuideUpdatesPromptAndTemperature(t *testing.T) {
	pool := newFakePool()
	c := newTestController(pool)
	require.NoError(t, c.Start(StartParams{Owner: "s1", Prompt: "a cat", Temperature: 0.1, IntervalMS: 20}))

	newPrompt := "a dog"
	newTemp := 0.9
	require.NoError(t, c.Guide(&newPrompt, &newTemp))

	c.mu.Lock()
	prompt, temp := c.basePrompt, c.temperature
	c.mu.Unlock()
	assert.Equal(t, "a dog", prompt)
	assert.Equal(t, 0.9, temp)

	_, _ = c.Stop()
}

func TestGuideFailsWhenIdle(t *testing.T) {
	pool := newFakePool()
	c := newTestController(pool)

	prompt := "x"
	err := c.Guide(&prompt, nil)
	require.Error(t, err)
}

func TestStartRejectsEmptyPrompt(t *testing.T) {
	pool := newFakePool()
	c := newTestController(pool)

	err := c.Start(StartParams{Owner: "s1"})
	require.Error(t, err)
	je, ok := err.(*jobcore.Error)
	require.True(t, ok)
	assert.Equal(t, jobcore.KindBadRequest, je.Kind)
	assert.Equal(t, StateIdle, c.State())
}

func TestStopFailsWhenIdle(t *testing.T) {
	pool := newFakePool()
	c := newTestController(pool)

	_, err := c.Stop()
	require.Error(t, err)
}

func TestStopCancelsLastChildAndAwaitsTermination(t *testing.T) {
	pool := newFakePool()
	c := newTestController(pool)
	require.NoError(t, c.Start(StartParams{Owner: "s1", Prompt: "a cat", IntervalMS: 20}))

	require.Eventually(t, func() bool {
		return pool.submittedCount() >= 1
	}, time.Second, 5*time.Millisecond)

	c.mu.Lock()
	lastChild := c.lastChildID
	c.mu.Unlock()
	require.NotEmpty(t, lastChild)

	go func() {
		time.Sleep(10 * time.Millisecond)
		pool.fireTerminal(lastChild)
	}()

	stats, err := c.Stop()
	require.NoError(t, err)
	assert.Contains(t, pool.canceled, lastChild)
	assert.NotEmpty(t, stats.ChildJobIDs)
}

func TestOwnerReflectsActiveSession(t *testing.T) {
	pool := newFakePool()
	c := newTestController(pool)
	assert.Equal(t, "", c.Owner())

	require.NoError(t, c.Start(StartParams{Owner: "s1", Prompt: "a cat", IntervalMS: 20}))
	assert.Equal(t, "s1", c.Owner())

	_, _ = c.Stop()
	assert.Equal(t, "", c.Owner())
}
