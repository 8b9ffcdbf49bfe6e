// Package pool implements the Worker Pool: the single background
// execution thread that serializes queued jobs against one accelerator,
// performing mode switches as in-band queue entries.
package pool

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"
	"golang.org/x/sync/singleflight"

	"github.com/dreamforge/imagegen/errors"
	"github.com/dreamforge/imagegen/internal/blobstore"
	"github.com/dreamforge/imagegen/internal/jobcore"
	"github.com/dreamforge/imagegen/internal/metrics"
	"github.com/dreamforge/imagegen/internal/queue"
	"github.com/dreamforge/imagegen/internal/registry"
	"github.com/dreamforge/imagegen/internal/worker"
	"github.com/dreamforge/imagegen/logger"
)

// ModeConfig is the pool's dependency-injected view of mode resolution,
// matching internal/modeconfig.Provider without importing it directly so
// the pool never depends on a concrete mode source.
type ModeConfig interface {
	Resolve(name string) (worker.ModeSpec, error)
	DefaultMode() string
	Exists(name string) bool
}

// WorkerFactory builds a Worker for a given worker id. The pool never
// imports a concrete worker implementation directly.
type WorkerFactory func(workerID int) worker.Worker

// Subscription receives progress/terminal events for one job. Terminal
// events (done/failed/canceled) are the last delivery for a subscription.
type Subscription func(jobcore.ProgressEvent, *jobcore.Job)

// Pool owns the single-threaded execution context for the accelerator.
type Pool struct {
	queue         *queue.Queue
	workerFactory WorkerFactory
	modeConfig    ModeConfig
	registry      *registry.Registry
	blobStore     *blobstore.Store

	queueMax   int
	jobTimeout time.Duration

	mu           sync.Mutex
	currentMode  atomic.String
	activeWorker worker.Worker

	jobsMu       sync.Mutex
	cancelTokens map[string]chan struct{}
	subscribers  map[string]Subscription

	switchGroup singleflight.Group

	shuttingDown atomic.Bool
	inFlight     sync.WaitGroup
	running      atomic.Int32
	loopDone     chan struct{}
}

// Config bundles the pool's construction parameters.
type Config struct {
	QueueMax   int
	JobTimeout time.Duration
}

// New constructs a Pool with injected collaborators. Call Start to begin
// the execution loop.
func New(workerFactory WorkerFactory, modeConfig ModeConfig, reg *registry.Registry, blobStore *blobstore.Store, cfg Config) *Pool {
	if cfg.QueueMax <= 0 {
		cfg.QueueMax = 64
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 120 * time.Second
	}

	return &Pool{
		queue:         queue.New(),
		workerFactory: workerFactory,
		modeConfig:    modeConfig,
		registry:      reg,
		blobStore:     blobStore,
		queueMax:      cfg.QueueMax,
		jobTimeout:    cfg.JobTimeout,
		cancelTokens:  make(map[string]chan struct{}),
		subscribers:   make(map[string]Subscription),
		loopDone:      make(chan struct{}),
	}
}

// Start loads the default mode into a fresh worker and begins the
// execution loop goroutine.
func (p *Pool) Start() error {
	worker0 := p.workerFactory(0)

	defaultMode := p.modeConfig.DefaultMode()
	spec, err := p.modeConfig.Resolve(defaultMode)
	if err != nil {
		return errors.Wrapf(err, "failed to resolve default mode %q", defaultMode)
	}

	if err := worker0.Load(spec); err != nil {
		return errors.Wrapf(err, "failed to load default mode %q", defaultMode)
	}

	p.mu.Lock()
	p.activeWorker = worker0
	p.currentMode.Store(defaultMode)
	p.mu.Unlock()

	go p.loop()
	return nil
}

// Submit enqueues job, failing with QueueFull if the backlog is at
// capacity. Non-blocking: callers use Subscribe for progress/terminal
// notification.
func (p *Pool) Submit(job *jobcore.Job) error {
	if p.shuttingDown.Load() {
		return jobcore.NewError(jobcore.KindShutdown, "pool is shutting down")
	}
	if p.queue.Len() >= p.queueMax {
		return jobcore.NewError(jobcore.KindQueueFull, "queue backlog exceeds limit")
	}
	p.queue.Put(job)
	metrics.QueueDepthGauge.Set(float64(p.queue.Len()))
	return nil
}

// Subscribe attaches a callback invoked for every progress event and the
// terminal event of jobID. The subscription is removed automatically
// after the terminal delivery.
func (p *Pool) Subscribe(jobID string, sub Subscription) {
	p.jobsMu.Lock()
	defer p.jobsMu.Unlock()
	p.subscribers[jobID] = sub
}

// Cancel requests cancellation of jobID. A still-queued job is marked
// canceled in place and delivered its terminal event on the next dequeue
// (loop's StateCanceled check); a running job has its cancel token
// raised for the worker to observe.
func (p *Pool) Cancel(jobID string) bool {
	if p.queue.MarkCanceled(jobID, jobcore.NewError(jobcore.KindCanceled, "canceled while queued")) {
		return true
	}

	p.jobsMu.Lock()
	token, ok := p.cancelTokens[jobID]
	p.jobsMu.Unlock()

	if !ok {
		return false
	}

	select {
	case <-token:
	default:
		close(token)
	}
	return true
}

// Reprioritize moves a still-queued job to a new priority lane.
func (p *Pool) Reprioritize(jobID string, newPriority jobcore.Priority) bool {
	return p.queue.UpdatePriority(jobID, newPriority)
}

// SwitchMode enqueues a modeSwitch job at URGENT priority, unless
// currentMode already equals modeName, in which case it resolves
// immediately without touching the queue. Concurrent requests for the
// same target mode collapse into a single enqueue.
func (p *Pool) SwitchMode(modeName string) (*jobcore.Job, error) {
	if !p.modeConfig.Exists(modeName) {
		return nil, jobcore.NewError(jobcore.KindModeNotFound, "mode "+modeName+" not found")
	}

	if p.currentMode.Load() == modeName {
		job := jobcore.New("", jobcore.TypeModeSwitch, jobcore.PriorityURGENT, &jobcore.ModeSwitchParams{Mode: modeName}, "")
		job.MarkRunning()
		job.MarkDone("", "", map[string]interface{}{"noop": true})
		return job, nil
	}

	result, _, _ := p.switchGroup.Do(modeName, func() (interface{}, error) {
		job := jobcore.New("", jobcore.TypeModeSwitch, jobcore.PriorityURGENT, &jobcore.ModeSwitchParams{Mode: modeName}, "")
		if err := p.Submit(job); err != nil {
			return nil, err
		}
		return job, nil
	})

	if result == nil {
		return nil, jobcore.NewError(jobcore.KindQueueFull, "failed to enqueue mode switch")
	}
	return result.(*jobcore.Job), nil
}

// Shutdown cancels every queued job with Shutdown, closes the queue,
// blocks until the in-flight job completes (or ctx is done), then tears
// down the worker. Idempotent.
func (p *Pool) Shutdown(ctx context.Context) error {
	if !p.shuttingDown.CompareAndSwap(false, true) {
		<-p.loopDone
		return nil
	}

	for _, job := range p.queue.DrainAll() {
		job.MarkCanceled(jobcore.NewError(jobcore.KindShutdown, "pool shutting down"))
		p.finish(job, jobcore.ProgressEvent{Fraction: 1, Status: "canceled"})
	}
	p.queue.Close()

	select {
	case <-p.loopDone:
	case <-ctx.Done():
		return ctx.Err()
	}

	p.mu.Lock()
	w := p.activeWorker
	p.mu.Unlock()
	if w != nil {
		if err := w.Unload(); err != nil {
			logger.Warnw("worker unload failed during shutdown", "error", err)
		}
	}

	return nil
}

// loop is the pool's single execution thread: block on queue non-empty,
// pop the highest-priority head, run it to completion, repeat.
func (p *Pool) loop() {
	defer close(p.loopDone)

	for {
		job, ok := p.queue.Get()
		if !ok {
			p.drainRemainingAsShutdown()
			return
		}
		metrics.QueueDepthGauge.Set(float64(p.queue.Len()))

		if job.State() == jobcore.StateCanceled {
			p.finish(job, jobcore.ProgressEvent{Fraction: 1, Status: "canceled"})
			continue
		}

		p.inFlight.Add(1)
		p.runOne(job)
		p.inFlight.Done()
	}
}

// drainRemainingAsShutdown is called once the queue is closed and empty;
// any jobs that raced the close (submitted just before Shutdown marked
// shuttingDown) are already rejected by Submit, so this is a no-op safety
// net matching queue.join() semantics from the execution-loop contract.
func (p *Pool) drainRemainingAsShutdown() {
	p.inFlight.Wait()
}

func (p *Pool) runOne(job *jobcore.Job) {
	if !job.MarkRunning() {
		p.finish(job, jobcore.ProgressEvent{Fraction: 1, Status: string(job.State())})
		return
	}

	p.running.Add(1)
	metrics.ActiveWorkersGauge.Set(float64(p.running.Load()))
	defer func() {
		p.running.Add(-1)
		metrics.ActiveWorkersGauge.Set(float64(p.running.Load()))
	}()

	cancelToken := make(chan struct{})
	p.jobsMu.Lock()
	p.cancelTokens[job.ID] = cancelToken
	p.jobsMu.Unlock()
	defer func() {
		p.jobsMu.Lock()
		delete(p.cancelTokens, job.ID)
		p.jobsMu.Unlock()
	}()

	if job.JobType == jobcore.TypeModeSwitch {
		p.runModeSwitch(job, cancelToken)
		return
	}

	p.mu.Lock()
	w := p.activeWorker
	p.mu.Unlock()

	progress, stopProgress := p.coalescingCallback(job)
	defer stopProgress()

	runCtx, cancelRun := context.WithTimeout(context.Background(), p.jobTimeout)
	defer cancelRun()

	result, err := w.Run(runCtx, job, progress, cancelToken)
	if err != nil {
		if jobcore.IsKind(err, jobcore.KindCanceled) {
			job.MarkCanceled(jobcore.NewError(jobcore.KindCanceled, "worker observed cancel token"))
			p.finish(job, jobcore.ProgressEvent{Fraction: 1, Status: "canceled"})
			return
		}
		if runCtx.Err() == context.DeadlineExceeded {
			job.MarkFailed(jobcore.NewError(jobcore.KindTimeout, "job exceeded the per-job timeout"))
			p.finish(job, jobcore.ProgressEvent{Fraction: 1, Status: "failed"})
			return
		}
		je, ok := err.(*jobcore.Error)
		if !ok {
			je = jobcore.NewError(jobcore.KindWorkerFailure, err.Error())
		}
		job.MarkFailed(je)
		p.finish(job, jobcore.ProgressEvent{Fraction: 1, Status: "failed"})
		return
	}

	key, putErr := p.blobStore.Put(result.Bytes, result.MimeType)
	if putErr != nil {
		job.MarkFailed(jobcore.NewError(jobcore.KindWorkerFailure, putErr.Error()))
		p.finish(job, jobcore.ProgressEvent{Fraction: 1, Status: "failed"})
		return
	}

	job.MarkDone(key, p.blobStore.URL(key), result.Meta)
	p.finish(job, jobcore.ProgressEvent{Fraction: 1, Status: "done"})
}

// runModeSwitch implements the mode-switch optimization: unload the
// current worker, build a fresh one via workerFactory with the new spec,
// and swap it in. Queued non-switch jobs are untouched and resume
// against the new worker.
func (p *Pool) runModeSwitch(job *jobcore.Job, cancelToken chan struct{}) {
	params := job.Params.(*jobcore.ModeSwitchParams)

	spec, err := p.modeConfig.Resolve(params.Mode)
	if err != nil {
		job.MarkFailed(jobcore.NewError(jobcore.KindModeNotFound, err.Error()))
		p.finish(job, jobcore.ProgressEvent{Fraction: 1, Status: "failed"})
		return
	}

	p.mu.Lock()
	oldWorker := p.activeWorker
	p.mu.Unlock()

	if err := oldWorker.Unload(); err != nil {
		job.MarkFailed(jobcore.NewError(jobcore.KindModelLoadFail, err.Error()))
		p.finish(job, jobcore.ProgressEvent{Fraction: 1, Status: "failed"})
		return
	}

	newWorker := p.workerFactory(0)
	if err := newWorker.Load(spec); err != nil {
		job.MarkFailed(jobcore.NewError(jobcore.KindModelLoadFail, err.Error()))
		p.finish(job, jobcore.ProgressEvent{Fraction: 1, Status: "failed"})
		return
	}

	p.mu.Lock()
	p.activeWorker = newWorker
	p.mu.Unlock()
	p.currentMode.Store(params.Mode)

	job.MarkDone("", "", map[string]interface{}{"mode": params.Mode})
	p.finish(job, jobcore.ProgressEvent{Fraction: 1, Status: "done"})
}

// coalescingCallback returns a ProgressCallback safe to invoke from the
// worker's own goroutine, plus a stop func the caller must invoke once the
// job finishes to release the draining goroutine. The callback never
// blocks the worker; if the subscriber is slower than the event rate,
// only the latest event survives between deliveries.
func (p *Pool) coalescingCallback(job *jobcore.Job) (jobcore.ProgressCallback, func()) {
	events := make(chan jobcore.ProgressEvent, 1)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for ev := range events {
			p.jobsMu.Lock()
			sub := p.subscribers[job.ID]
			p.jobsMu.Unlock()
			if sub != nil {
				sub(ev, job)
			}
		}
	}()

	callback := func(ev jobcore.ProgressEvent) {
		select {
		case events <- ev:
		default:
			select {
			case <-events:
			default:
			}
			select {
			case events <- ev:
			default:
			}
		}
	}

	stop := func() {
		close(events)
		<-done
	}

	return callback, stop
}

// finish delivers the terminal event, records its outcome, and removes
// the subscription.
func (p *Pool) finish(job *jobcore.Job, ev jobcore.ProgressEvent) {
	recordTerminalMetrics(job)

	p.jobsMu.Lock()
	sub := p.subscribers[job.ID]
	delete(p.subscribers, job.ID)
	p.jobsMu.Unlock()

	if sub != nil {
		sub(ev, job)
	}
}

// recordTerminalMetrics updates the job throughput and duration
// collectors once a job reaches a terminal state. Duration is measured
// from submission rather than from start-of-execution, since Job does
// not track a separate started-at timestamp and queue wait time is
// itself a meaningful part of the latency users observe.
func recordTerminalMetrics(job *jobcore.Job) {
	jobType := string(job.JobType)
	duration := time.Since(job.SubmittedAt).Seconds()

	switch job.State() {
	case jobcore.StateDone:
		metrics.JobsProcessedTotal.WithLabelValues(jobType).Inc()
		metrics.JobDurationSeconds.WithLabelValues(jobType).Observe(duration)
		if job.JobType == jobcore.TypeModeSwitch {
			metrics.ModeSwitchesTotal.Inc()
		}
	case jobcore.StateCanceled:
		metrics.JobsFailedTotal.WithLabelValues(jobType, "canceled").Inc()
		metrics.JobDurationSeconds.WithLabelValues(jobType).Observe(duration)
	case jobcore.StateFailed:
		metrics.JobsFailedTotal.WithLabelValues(jobType, "failed").Inc()
		metrics.JobDurationSeconds.WithLabelValues(jobType).Observe(duration)
	}
}

// CurrentMode returns the currently loaded mode name.
func (p *Pool) CurrentMode() string {
	return p.currentMode.Load()
}

// QueueSnapshot exposes the underlying queue's atomic snapshot for
// queue:state pushes and the admin queue-inspection endpoint.
func (p *Pool) QueueSnapshot() []queue.Descriptor {
	return p.queue.Snapshot()
}

// Registry exposes the injected model registry for read-only callers
// (e.g. system:status assembly).
func (p *Pool) Registry() *registry.Registry {
	return p.registry
}

// Running reports whether a job is currently executing against the
// accelerator (0 or 1, since the pool serializes a single worker).
func (p *Pool) Running() int {
	return int(p.running.Load())
}
