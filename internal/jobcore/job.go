// Package jobcore defines the Job tagged union, its state machine, and
// the error taxonomy shared by the queue, pool, router, and dream
// controller.
package jobcore

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type identifies which concrete params a Job carries.
type Type string

const (
	TypeGenerate   Type = "generate"
	TypeSR         Type = "sr"
	TypeComfy      Type = "comfy"
	TypeModeSwitch Type = "modeSwitch"
	TypeDreamTick  Type = "dreamTick"
)

// Priority lanes, ascending urgency-to-background.
type Priority int

const (
	PriorityURGENT Priority = iota
	PriorityNORMAL
	PriorityBATCH
	PriorityBACKGROUND
)

func (p Priority) String() string {
	switch p {
	case PriorityURGENT:
		return "URGENT"
	case PriorityNORMAL:
		return "NORMAL"
	case PriorityBATCH:
		return "BATCH"
	case PriorityBACKGROUND:
		return "BACKGROUND"
	default:
		return "UNKNOWN"
	}
}

// ValidPriority reports whether p is one of the four defined lanes.
func ValidPriority(p Priority) bool {
	return p >= PriorityURGENT && p <= PriorityBACKGROUND
}

// State is a node in the Job state DAG:
// queued -> {running -> {done, failed, canceled}, canceled}
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateCanceling State = "canceling"
	StateDone      State = "done"
	StateFailed    State = "failed"
	StateCanceled  State = "canceled"
)

// Terminal reports whether the state has no outgoing transitions.
func (s State) Terminal() bool {
	switch s {
	case StateDone, StateFailed, StateCanceled:
		return true
	default:
		return false
	}
}

// Result is a job's terminal payload: either output references plus
// metadata, or an error.
type Result struct {
	Key  string                 `json:"key,omitempty"`
	URL  string                 `json:"url,omitempty"`
	Meta map[string]interface{} `json:"meta,omitempty"`
	Err  *Error                 `json:"error,omitempty"`
}

// ProgressEvent is emitted zero or more times while a job runs.
type ProgressEvent struct {
	Fraction float64     `json:"fraction"`
	Status   string      `json:"status,omitempty"`
	Payload  interface{} `json:"payload,omitempty"`
}

// ProgressCallback is invoked from the worker's thread; callers MUST NOT
// block in it — schedule downstream fan-out asynchronously instead.
type ProgressCallback func(ProgressEvent)

// Job is the central entity: a tagged union over Type, exclusively owned
// by the worker pool once dequeued. The router retains only its ID and a
// subscription for fan-out.
type Job struct {
	ID           string
	CorrID       string
	JobType      Type
	Priority     Priority
	Params       interface{}
	InitImageRef string
	SubmittedAt  time.Time

	mu     sync.Mutex
	state  State
	result *Result
}

// New constructs a queued Job with a freshly assigned ID.
func New(corrID string, jobType Type, priority Priority, params interface{}, initImageRef string) *Job {
	return &Job{
		ID:           uuid.NewString(),
		CorrID:       corrID,
		JobType:      jobType,
		Priority:     priority,
		Params:       params,
		InitImageRef: initImageRef,
		SubmittedAt:  time.Now(),
		state:        StateQueued,
	}
}

// State returns the job's current state.
func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Result returns the job's terminal result, or nil if not yet terminal.
func (j *Job) Result() *Result {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

// MarkRunning transitions queued -> running. Returns false if the job was
// not queued (e.g. it raced a cancel).
func (j *Job) MarkRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != StateQueued {
		return false
	}
	j.state = StateRunning
	return true
}

// MarkCanceling transitions running -> canceling, signaling that a cancel
// token has been raised but the worker hasn't observed it yet.
func (j *Job) MarkCanceling() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != StateRunning {
		return false
	}
	j.state = StateCanceling
	return true
}

// MarkDone transitions to the done terminal with a success result.
// No-op if already terminal.
func (j *Job) MarkDone(key, url string, meta map[string]interface{}) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Terminal() {
		return
	}
	j.state = StateDone
	j.result = &Result{Key: key, URL: url, Meta: meta}
}

// MarkFailed transitions to the failed terminal. No-op if already terminal.
func (j *Job) MarkFailed(err *Error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Terminal() {
		return
	}
	j.state = StateFailed
	j.result = &Result{Err: err}
}

// MarkCanceled transitions to the canceled terminal, valid from queued,
// running, or canceling. err is attached to the result so callers can
// distinguish why the job was canceled (client request vs. pool
// shutdown); pass nil to default to KindCanceled.
func (j *Job) MarkCanceled(err *Error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Terminal() {
		return
	}
	if err == nil {
		err = &Error{Kind: KindCanceled}
	}
	j.state = StateCanceled
	j.result = &Result{Err: err}
}

// IsTerminal reports whether the job has reached done/failed/canceled.
func (j *Job) IsTerminal() bool {
	return j.State().Terminal()
}
