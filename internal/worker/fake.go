package worker

import (
	"context"
	"sync"

	"github.com/dreamforge/imagegen/internal/jobcore"
)

// Fake is a test double recording Load/Run/Unload invocations. Run
// returns a canned Result/error per call, defaulting to success.
type Fake struct {
	mu sync.Mutex

	LoadCalls   []ModeSpec
	UnloadCalls int
	RunCalls    []*jobcore.Job

	RunResult Result
	RunErr    error
	// Block, if non-nil, is read before Run returns, letting tests hold a
	// job "running" to exercise queue-backlog and cancel-while-running
	// behavior deterministically.
	Block <-chan struct{}

	ProgressEvents []jobcore.ProgressEvent
}

// NewFakeFactory returns a workerFactory producing a single shared Fake,
// so tests can assert on calls regardless of which workerID was used.
func NewFakeFactory(fake *Fake) func(int) Worker {
	return func(int) Worker {
		return fake
	}
}

func (f *Fake) Load(spec ModeSpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LoadCalls = append(f.LoadCalls, spec)
	return nil
}

func (f *Fake) Unload() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.UnloadCalls++
	return nil
}

func (f *Fake) Run(ctx context.Context, job *jobcore.Job, progress jobcore.ProgressCallback, cancel CancelToken) (Result, error) {
	f.mu.Lock()
	f.RunCalls = append(f.RunCalls, job)
	result, err, block := f.RunResult, f.RunErr, f.Block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-cancel:
			return Result{}, jobcore.NewError(jobcore.KindCanceled, "canceled")
		}
	}

	if progress != nil {
		progress(jobcore.ProgressEvent{Fraction: 1.0, Status: "done"})
	}

	select {
	case <-cancel:
		return Result{}, jobcore.NewError(jobcore.KindCanceled, "canceled")
	default:
	}

	return result, err
}
