// Package dream implements the Dream Controller: a long-running
// exploration loop that submits mutated generation jobs at BACKGROUND
// priority until stopped or its configured duration elapses.
package dream

import (
	"math/rand"
	"sync"
	"time"

	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/dreamforge/imagegen/internal/jobcore"
	"github.com/dreamforge/imagegen/internal/pool"
	"github.com/dreamforge/imagegen/logger"
)

// State is a node in the dream session state machine:
// idle -> starting -> dreaming -> stopping -> idle.
type State string

const (
	StateIdle     State = "idle"
	StateStarting State = "starting"
	StateDreaming State = "dreaming"
	StateStopping State = "stopping"
)

// modifiers is the stochastic suffix pool a tick draws from; count drawn
// scales with temperature.
var modifiers = []string{
	"dramatic lighting", "hyperdetailed", "cinematic composition",
	"soft focus background", "vivid color grading", "volumetric fog",
	"film grain", "wide angle lens", "golden hour", "intricate linework",
	"painterly brushwork", "high contrast", "shallow depth of field",
	"studio lighting", "muted palette",
}

// Pool is the dream controller's view of the worker pool: enough to
// submit background ticks and cancel ones still queued.
type Pool interface {
	Submit(job *jobcore.Job) error
	Cancel(jobID string) bool
	Subscribe(jobID string, sub pool.Subscription)
}

// Config bounds tick behavior.
type Config struct {
	DefaultIntervalMS int
	MaxDuration       time.Duration
	MinTemperature    float64
	MaxTemperature    float64
}

// Stats summarizes a completed or in-progress dream session, returned in
// the dream:stopped payload.
type Stats struct {
	TicksSubmitted int           `json:"ticksSubmitted"`
	ChildJobIDs    []string      `json:"childJobIds"`
	Elapsed        time.Duration `json:"elapsed"`
}

// Controller owns the single process-wide dream session. The zero value
// is not usable; construct with New.
type Controller struct {
	pool Pool
	cfg  Config

	mu          sync.Mutex
	state       State
	basePrompt  string
	temperature float64
	steps       int
	guidance    float64
	size        string
	startedAt   time.Time
	childJobIDs []string
	lastChildID string
	owner       string

	stopCh chan struct{}
	group  *errgroup.Group

	rand *rand.Rand

	tickCount atomic.Int64
}

// New constructs an idle Controller bound to pool.
func New(pool Pool, cfg Config) *Controller {
	if cfg.DefaultIntervalMS <= 0 {
		cfg.DefaultIntervalMS = 5000
	}
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = 24 * time.Hour
	}
	if cfg.MaxTemperature <= cfg.MinTemperature {
		cfg.MaxTemperature = 1.0
	}

	return &Controller{
		pool:  pool,
		cfg:   cfg,
		state: StateIdle,
		rand:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// State returns the controller's current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Owner returns the session id that owns the active dream, or "" if idle.
func (c *Controller) Owner() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateIdle {
		return ""
	}
	return c.owner
}

// StartParams bundles the dream:start request payload.
type StartParams struct {
	Owner       string
	Prompt      string
	Size        string
	Steps       int
	Guidance    float64
	Temperature float64
	IntervalMS  int
	DurationH   float64
}

// Start begins a dream session. Fails with DreamBusy if one is already
// dreaming or winding down.
func (c *Controller) Start(p StartParams) error {
	if p.Prompt == "" {
		return jobcore.NewError(jobcore.KindBadRequest, "prompt is required")
	}

	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return jobcore.NewError(jobcore.KindDreamBusy, "a dream session is already active")
	}
	c.state = StateStarting
	c.mu.Unlock()

	temperature := p.Temperature
	if temperature < c.cfg.MinTemperature {
		temperature = c.cfg.MinTemperature
	}
	if temperature > c.cfg.MaxTemperature {
		temperature = c.cfg.MaxTemperature
	}

	intervalMS := p.IntervalMS
	if intervalMS <= 0 {
		intervalMS = c.cfg.DefaultIntervalMS
	}

	duration := c.cfg.MaxDuration
	if p.DurationH > 0 {
		if d := time.Duration(p.DurationH * float64(time.Hour)); d < duration {
			duration = d
		}
	}

	steps := p.Steps
	if steps <= 0 {
		steps = 20
	}
	guidance := p.Guidance
	if guidance <= 0 {
		guidance = 7.0
	}
	size := p.Size
	if size == "" {
		size = "512x512"
	}

	c.mu.Lock()
	c.basePrompt = p.Prompt
	c.temperature = temperature
	c.steps = steps
	c.guidance = guidance
	c.size = size
	c.owner = p.Owner
	c.startedAt = time.Now()
	c.childJobIDs = nil
	c.lastChildID = ""
	c.tickCount.Store(0)
	c.stopCh = make(chan struct{})
	c.state = StateDreaming
	c.mu.Unlock()

	stopCh := c.stopCh
	g := new(errgroup.Group)
	c.group = g
	g.Go(func() error {
		c.runLoop(stopCh, time.Duration(intervalMS)*time.Millisecond, duration)
		return nil
	})

	logger.Infow("dream started", "symbol", "✺", "owner", p.Owner, "interval_ms", intervalMS, "temperature", temperature)
	return nil
}

// Guide atomically replaces basePrompt and/or temperature mid-session.
// The next tick uses the new values; in-flight ticks are unaffected.
func (c *Controller) Guide(prompt *string, temperature *float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateDreaming {
		return jobcore.NewError(jobcore.KindBadRequest, "no active dream session to guide")
	}
	if prompt != nil {
		c.basePrompt = *prompt
	}
	if temperature != nil {
		t := *temperature
		if t < c.cfg.MinTemperature {
			t = c.cfg.MinTemperature
		}
		if t > c.cfg.MaxTemperature {
			t = c.cfg.MaxTemperature
		}
		c.temperature = t
	}
	return nil
}

// Stop transitions dreaming -> stopping, stops the tick loop, cancels the
// most recently submitted child (queued or running) and waits for its
// terminal event, then returns to idle with stats. Earlier children are
// not canceled.
func (c *Controller) Stop() (Stats, error) {
	c.mu.Lock()
	if c.state != StateDreaming && c.state != StateStarting {
		c.mu.Unlock()
		return Stats{}, jobcore.NewError(jobcore.KindBadRequest, "no active dream session")
	}
	c.state = StateStopping
	stopCh := c.stopCh
	lastChild := c.lastChildID
	c.mu.Unlock()

	close(stopCh)
	if c.group != nil {
		c.group.Wait()
	}

	if lastChild != "" {
		c.awaitChild(lastChild)
	}

	c.mu.Lock()
	stats := Stats{
		TicksSubmitted: int(c.tickCount.Load()),
		ChildJobIDs:    append([]string(nil), c.childJobIDs...),
		Elapsed:        time.Since(c.startedAt),
	}
	c.state = StateIdle
	c.mu.Unlock()

	logger.Infow("dream stopped", "symbol", "✺", "ticks", stats.TicksSubmitted, "elapsed", stats.Elapsed)
	return stats, nil
}

// awaitChild subscribes to jobID before requesting its cancellation, then
// blocks until it reaches a terminal state, so Stop never returns while a
// child it owns is still running. The subscribe-before-cancel order is
// required: a still-queued job is marked canceled in place rather than
// removed (see Pool.Cancel), and the execution loop can dequeue and
// deliver its terminal event at any point after that mark lands. Canceling
// first and subscribing after would race that delivery and block the full
// timeout below.
func (c *Controller) awaitChild(jobID string) {
	done := make(chan struct{})
	var once sync.Once
	c.pool.Subscribe(jobID, func(_ jobcore.ProgressEvent, job *jobcore.Job) {
		if job.IsTerminal() {
			once.Do(func() { close(done) })
		}
	})

	c.pool.Cancel(jobID)

	select {
	case <-done:
	case <-time.After(30 * time.Second):
	}
}

// runLoop ticks on intervalMs until stopCh closes or maxDuration elapses.
func (c *Controller) runLoop(stopCh chan struct{}, interval, maxDuration time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	deadline := time.NewTimer(maxDuration)
	defer deadline.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-deadline.C:
			go c.Stop()
			return
		case <-ticker.C:
			c.tick()
		}
	}
}

// tick mutates the base prompt/steps/guidance, assigns a fresh seed, and
// submits a dreamTick job at BACKGROUND priority. Dropped (not submitted)
// if the session has moved to stopping since the ticker fired.
func (c *Controller) tick() {
	c.mu.Lock()
	if c.state != StateDreaming {
		c.mu.Unlock()
		return
	}
	prompt := c.mutatePrompt(c.basePrompt, c.temperature)
	steps := jitter(c.steps, 0.2, c.rand, 1, 150)
	guidance := jitterF(c.guidance, 0.2, c.rand, 0, 30)
	size := c.size
	seed := c.rand.Uint64()
	tickNum := int(c.tickCount.Load()) + 1
	c.mu.Unlock()

	job := jobcore.New("", jobcore.TypeDreamTick, jobcore.PriorityBACKGROUND, &jobcore.DreamTickParams{
		Prompt:    prompt,
		Size:      size,
		Steps:     steps,
		CFG:       guidance,
		Seed:      seed,
		DreamTick: tickNum,
	}, "")

	if err := c.pool.Submit(job); err != nil {
		logger.Warnw("dream tick submit failed", "error", err)
		return
	}

	c.mu.Lock()
	c.childJobIDs = append(c.childJobIDs, job.ID)
	c.lastChildID = job.ID
	c.mu.Unlock()
	c.tickCount.Inc()
}

// mutatePrompt appends a temperature-scaled count of modifiers, drawn
// uniformly without replacement.
func (c *Controller) mutatePrompt(base string, temperature float64) string {
	count := int(temperature * float64(len(modifiers)))
	if count <= 0 {
		return base
	}
	if count > len(modifiers) {
		count = len(modifiers)
	}

	perm := c.rand.Perm(len(modifiers))
	out := base
	for i := 0; i < count; i++ {
		out += ", " + modifiers[perm[i]]
	}
	return out
}

// jitter mutates an int value by +/-pct, clipped to [lo, hi].
func jitter(v int, pct float64, r *rand.Rand, lo, hi int) int {
	delta := (r.Float64()*2 - 1) * pct
	out := int(float64(v) * (1 + delta))
	if out < lo {
		out = lo
	}
	if out > hi {
		out = hi
	}
	return out
}

// jitterF is jitter's float64 counterpart for guidance/cfg.
func jitterF(v float64, pct float64, r *rand.Rand, lo, hi float64) float64 {
	delta := (r.Float64()*2 - 1) * pct
	out := v * (1 + delta)
	if out < lo {
		out = lo
	}
	if out > hi {
		out = hi
	}
	return out
}
