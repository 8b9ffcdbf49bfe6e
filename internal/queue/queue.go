// Package queue implements the single-consumer, multi-producer priority
// queue that sits between session submission and the worker pool.
package queue

import (
	"sync"

	"github.com/dreamforge/imagegen/internal/jobcore"
)

// numLanes is the count of priority lanes: URGENT, NORMAL, BATCH, BACKGROUND.
const numLanes = 4

// Descriptor is the atomic, read-only view of a queued job exposed by
// Snapshot and serialized into queue:state pushes.
type Descriptor struct {
	ID       string           `json:"id"`
	Priority jobcore.Priority `json:"priority"`
	JobType  jobcore.Type     `json:"jobType"`
	Source   string           `json:"source,omitempty"`
}

// Queue is a FIFO-within-lane priority queue over *jobcore.Job. Get blocks
// until a job is available or the queue is closed. All other operations
// hold the same lock, so Snapshot is always consistent with concurrent
// Put/MarkCanceled/UpdatePriority/DrainAll calls.
type Queue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	lanes    [numLanes][]*jobcore.Job
	closed   bool
}

// New constructs an empty Queue.
func New() *Queue {
	q := &Queue{}
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Put enqueues job into its priority's lane, FIFO ordered by SubmittedAt.
func (q *Queue) Put(job *jobcore.Job) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.insertSorted(laneIndex(job.Priority), job)
	q.notEmpty.Signal()
}

// Get blocks until a job is available, returning the highest-priority,
// oldest-submitted job across all lanes. Returns nil, false if the queue
// was closed while waiting.
func (q *Queue) Get() (*jobcore.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.empty() && !q.closed {
		q.notEmpty.Wait()
	}

	if q.empty() {
		return nil, false
	}

	for lane := 0; lane < numLanes; lane++ {
		if len(q.lanes[lane]) == 0 {
			continue
		}
		job := q.lanes[lane][0]
		q.lanes[lane] = q.lanes[lane][1:]
		return job, true
	}

	return nil, false
}

// MarkCanceled transitions a still-queued job to canceled in place,
// leaving it in its lane so the consumer's next Get delivers it and the
// execution loop can run it through the normal finish/subscriber path.
// Returns false if the job is not currently queued.
func (q *Queue) MarkCanceled(jobID string, err *jobcore.Error) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for lane := 0; lane < numLanes; lane++ {
		for _, job := range q.lanes[lane] {
			if job.ID == jobID {
				if job.State() != jobcore.StateQueued {
					return false
				}
				job.MarkCanceled(err)
				return true
			}
		}
	}
	return false
}

// UpdatePriority moves a still-queued job to a different lane, preserving
// its original SubmittedAt for FIFO ordering within the new lane. Returns
// false if the job is not currently queued.
func (q *Queue) UpdatePriority(jobID string, newPriority jobcore.Priority) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for lane := 0; lane < numLanes; lane++ {
		for i, job := range q.lanes[lane] {
			if job.ID != jobID {
				continue
			}
			if laneIndex(job.Priority) == laneIndex(newPriority) {
				job.Priority = newPriority
				return true
			}

			q.lanes[lane] = append(q.lanes[lane][:i], q.lanes[lane][i+1:]...)
			job.Priority = newPriority
			q.insertSorted(laneIndex(newPriority), job)
			return true
		}
	}
	return false
}

// insertSorted inserts job into lane, keeping lane ordered by SubmittedAt.
// REQUIRES: q.mu held.
func (q *Queue) insertSorted(lane int, job *jobcore.Job) {
	jobs := q.lanes[lane]
	idx := len(jobs)
	for i, existing := range jobs {
		if job.SubmittedAt.Before(existing.SubmittedAt) {
			idx = i
			break
		}
	}
	jobs = append(jobs, nil)
	copy(jobs[idx+1:], jobs[idx:])
	jobs[idx] = job
	q.lanes[lane] = jobs
}

// Snapshot returns an atomic, ordered view of every still-queued job.
func (q *Queue) Snapshot() []Descriptor {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []Descriptor
	for lane := 0; lane < numLanes; lane++ {
		for _, job := range q.lanes[lane] {
			out = append(out, Descriptor{
				ID:       job.ID,
				Priority: job.Priority,
				JobType:  job.JobType,
			})
		}
	}
	return out
}

// Len returns the total number of still-queued jobs across all lanes.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lenLocked()
}

func (q *Queue) lenLocked() int {
	total := 0
	for lane := 0; lane < numLanes; lane++ {
		total += len(q.lanes[lane])
	}
	return total
}

func (q *Queue) empty() bool {
	return q.lenLocked() == 0
}

// DrainAll removes and returns every currently queued job across all
// lanes, in priority/FIFO order. Used by shutdown to cancel the backlog
// without running it.
func (q *Queue) DrainAll() []*jobcore.Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	var drained []*jobcore.Job
	for lane := 0; lane < numLanes; lane++ {
		drained = append(drained, q.lanes[lane]...)
		q.lanes[lane] = nil
	}
	return drained
}

// Close wakes any blocked Get call and marks the queue closed; subsequent
// Get calls return immediately with ok=false once drained.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.notEmpty.Broadcast()
}

func laneIndex(p jobcore.Priority) int {
	if !jobcore.ValidPriority(p) {
		return numLanes - 1
	}
	return int(p)
}
