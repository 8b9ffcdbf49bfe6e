// Package worker defines the Worker contract that owns a single
// accelerator and the subprocess-backed implementation the pool uses by
// default against a real inference binary.
package worker

import (
	"bytes"
	"context"
	"os/exec"
	"strconv"

	"github.com/kballard/go-shellquote"

	"github.com/dreamforge/imagegen/errors"
	"github.com/dreamforge/imagegen/internal/jobcore"
	"github.com/dreamforge/imagegen/logger"
)

// ModeSpec is the minimal view of a loaded mode a Worker needs: which
// model and LoRA stack to run against.
type ModeSpec struct {
	Name         string
	ModelPath    string
	LoraPaths    []string
	DefaultSize  string
	DefaultSteps int
	DefaultGuide float64
	BinaryPath   string
}

// CancelToken is polled by a running worker at its natural checkpoints
// (between diffusion steps). Once closed, the worker must stop promptly.
type CancelToken <-chan struct{}

// Result is the raw output of a single job run, consumed by the pool to
// be handed to the blob store.
type Result struct {
	Bytes    []byte
	MimeType string
	Meta     map[string]interface{}
}

// Worker owns one accelerator. Load/Run/Unload are never called
// concurrently by the pool; the pool enforces single-threaded ownership.
type Worker interface {
	Load(spec ModeSpec) error
	Run(ctx context.Context, job *jobcore.Job, progress jobcore.ProgressCallback, cancel CancelToken) (Result, error)
	Unload() error
}

// SubprocessWorker runs inference by invoking an external binary per job
// and reading its stdout as the output image bytes. This is the default
// Worker implementation; tests substitute a fake.
type SubprocessWorker struct {
	id   int
	spec ModeSpec
}

// NewSubprocessWorker is the workerFactory signature the pool injects:
// func(workerID int) Worker.
func NewSubprocessWorker(id int) Worker {
	return &SubprocessWorker{id: id}
}

// Load records the mode spec for subsequent Run calls. The actual model
// weights are loaded lazily by the subprocess binary itself on first run;
// Load only checks that the spec names a binary path, not that the
// binary exists.
func (w *SubprocessWorker) Load(spec ModeSpec) error {
	if spec.BinaryPath == "" {
		return errors.New("mode spec has no binary path")
	}
	w.spec = spec
	logger.Infow("worker loaded mode", "worker_id", w.id, "mode", spec.Name, "model", spec.ModelPath)
	return nil
}

// Unload clears the worker's mode spec; the subprocess binary owns the
// actual device memory release in its own process lifetime.
func (w *SubprocessWorker) Unload() error {
	logger.Infow("worker unloaded mode", "worker_id", w.id, "mode", w.spec.Name)
	w.spec = ModeSpec{}
	return nil
}

// Run builds an argv for the configured binary from the job's params,
// executes it, and returns its stdout as the output image. Stderr is
// captured only for the error message; no per-step progress is reported,
// only a single event at fraction 1.0 once the binary exits successfully.
func (w *SubprocessWorker) Run(ctx context.Context, job *jobcore.Job, progress jobcore.ProgressCallback, cancel CancelToken) (Result, error) {
	args, err := buildArgs(w.spec, job)
	if err != nil {
		return Result{}, err
	}

	logger.Debugw("worker invoking binary", "worker_id", w.id, "job_id", job.ID, "cmd", shellquote.Join(append([]string{w.spec.BinaryPath}, args...)...))

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	go func() {
		select {
		case <-cancel:
			stop()
		case <-runCtx.Done():
		}
	}()

	cmd := exec.CommandContext(runCtx, w.spec.BinaryPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		select {
		case <-cancel:
			return Result{}, jobcore.NewError(jobcore.KindCanceled, "job canceled during run")
		default:
		}
		return Result{}, jobcore.NewError(jobcore.KindWorkerFailure, err.Error()+": "+stderr.String())
	}

	if progress != nil {
		progress(jobcore.ProgressEvent{Fraction: 1.0, Status: "done"})
	}

	return Result{Bytes: stdout.Bytes(), MimeType: "image/png"}, nil
}

// buildArgs translates a job's typed params into the external binary's
// argv. A comfy job passes its workflowId and inputImage through as given.
func buildArgs(spec ModeSpec, job *jobcore.Job) ([]string, error) {
	args := []string{"--model", spec.ModelPath}
	for _, lora := range spec.LoraPaths {
		args = append(args, "--lora", lora)
	}

	switch job.JobType {
	case jobcore.TypeGenerate:
		p, ok := job.Params.(*jobcore.GenerateParams)
		if !ok {
			return nil, jobcore.NewError(jobcore.KindBadRequest, "generate job missing params")
		}
		args = append(args,
			"--prompt", p.Prompt,
			"--size", p.Size,
			"--steps", strconv.Itoa(p.Steps),
			"--cfg", strconv.FormatFloat(p.CFG, 'f', -1, 64),
			"--seed", strconv.FormatUint(p.Seed, 10),
		)
		if p.InitImageRef != "" {
			args = append(args, "--init-image", p.InitImageRef)
		}
	case jobcore.TypeDreamTick:
		p, ok := job.Params.(*jobcore.DreamTickParams)
		if !ok {
			return nil, jobcore.NewError(jobcore.KindBadRequest, "dreamTick job missing params")
		}
		args = append(args,
			"--prompt", p.Prompt,
			"--size", p.Size,
			"--steps", strconv.Itoa(p.Steps),
			"--cfg", strconv.FormatFloat(p.CFG, 'f', -1, 64),
			"--seed", strconv.FormatUint(p.Seed, 10),
		)
	case jobcore.TypeSR:
		p, ok := job.Params.(*jobcore.SRParams)
		if !ok {
			return nil, jobcore.NewError(jobcore.KindBadRequest, "sr job missing params")
		}
		args = append(args, "--sr-input", p.InitImageRef, "--magnitude", strconv.Itoa(p.Magnitude))
	case jobcore.TypeComfy:
		p, ok := job.Params.(*jobcore.ComfyParams)
		if !ok {
			return nil, jobcore.NewError(jobcore.KindBadRequest, "comfy job missing params")
		}
		args = append(args, "--workflow", p.WorkflowID, "--input-image", p.InputImage)
	default:
		return nil, jobcore.NewError(jobcore.KindBadRequest, "unsupported job type for subprocess worker: "+string(job.JobType))
	}

	return args, nil
}
