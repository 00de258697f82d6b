package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/sausix/scriptycut/internal/logging"
	"github.com/sausix/scriptycut/internal/services"
)

const stderrTailBytes = 4096

// Handle tracks one job. It may be started once.
type Handle struct {
	job    Job
	runner *Runner

	mu     sync.Mutex
	state  State
	result Result

	// scheduled handles belong to a Pool and will start without a Start call.
	scheduled bool
	done      chan struct{}
	closeOnce sync.Once
}

// ID returns the job identifier.
func (h *Handle) ID() string { return h.job.ID }

// Job returns the job description.
func (h *Handle) Job() Job { return h.job }

// State returns the current lifecycle state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Done is closed once the job has finished or timed out.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Start launches the job in the background.
func (h *Handle) Start(ctx context.Context) error {
	if err := h.claim(); err != nil {
		return err
	}
	go h.execute(ctx)
	return nil
}

// Run starts the job and blocks until it completes.
func (h *Handle) Run(ctx context.Context) (Result, error) {
	if err := h.claim(); err != nil {
		return Result{}, err
	}
	h.execute(ctx)
	res, _ := h.Wait(0)
	return res, nil
}

// Wait blocks until the job completes or timeout elapses. A zero timeout
// waits indefinitely. The boolean reports whether the job had completed.
// A handle that was never started returns immediately.
func (h *Handle) Wait(timeout time.Duration) (Result, bool) {
	if h.State() == StateQueued && !h.scheduled {
		return Result{}, false
	}
	if timeout <= 0 {
		<-h.done
		return h.snapshot(), true
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-h.done:
		return h.snapshot(), true
	case <-timer.C:
		return Result{}, false
	}
}

func (h *Handle) snapshot() Result {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.result
}

func (h *Handle) claim() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != StateQueued {
		return fmt.Errorf("runner: job %s: %w", h.job.ID, ErrAlreadyStarted)
	}
	h.state = StateRunning
	return nil
}

func (h *Handle) execute(ctx context.Context) {
	ctx = services.WithJobID(ctx, h.job.ID)
	logger := logging.WithContext(ctx, h.runner.logger)

	h.runner.track(h)
	defer h.runner.untrack(h)

	if len(h.job.Command) == 0 {
		h.finish(Result{ExitCode: -1, Err: ErrEmptyCommand}, false)
		return
	}

	logger.Debug("job start", logging.String("command", h.job.String()))
	result := h.runProcess(ctx)
	h.finish(result, result.TimedOut)

	attrs := []logging.Attr{
		logging.Int("exit_code", result.ExitCode),
		logging.Duration("duration", result.Duration),
	}
	switch {
	case result.TimedOut:
		logging.WarnWithContext(logger, "job timed out", "job_timeout",
			append(attrs, logging.Duration("timeout", h.job.Timeout),
				logging.String(logging.FieldErrorHint, "raise render.job_timeout or simplify the clip"))...)
	case result.Failed():
		logger.Info("job failed", logging.Args(append(attrs, logging.String("stderr_tail", lastLine(result.StderrTail)))...)...)
	default:
		logger.Debug("job finish", logging.Args(attrs...)...)
	}
}

func (h *Handle) runProcess(ctx context.Context) Result {
	runCtx := ctx
	var cancel context.CancelFunc = func() {}
	if h.job.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, h.job.Timeout)
	}
	defer cancel()

	tail := &tailBuffer{max: stderrTailBytes}
	cmd := exec.CommandContext(runCtx, h.job.Command[0], h.job.Command[1:]...) //nolint:gosec
	cmd.Dir = h.job.Dir
	cmd.Stdin = h.job.Stdin
	cmd.Stdout = h.job.Stdout
	if h.job.Stderr != nil {
		cmd.Stderr = io.MultiWriter(h.job.Stderr, tail)
	} else {
		cmd.Stderr = tail
	}
	cmd.WaitDelay = 2 * time.Second

	started := time.Now()
	err := cmd.Run()
	result := Result{Duration: time.Since(started), StderrTail: tail.String()}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		result.ExitCode = 0
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		result.ExitCode = -1
		result.TimedOut = true
		result.Err = fmt.Errorf("runner: job %s after %s: %w", h.job.ID, h.job.Timeout, ErrTimeout)
	case ctx.Err() != nil:
		result.ExitCode = -1
		result.Err = fmt.Errorf("runner: job %s cancelled: %w", h.job.ID, ctx.Err())
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	default:
		result.ExitCode = -1
		result.Err = services.Wrap(services.ErrExternalTool, "runner", "start", h.job.Command[0], err)
	}
	return result
}

// finish records the result, closes owned streams, and releases waiters.
func (h *Handle) finish(result Result, timedOut bool) {
	h.closeStreams()
	h.mu.Lock()
	h.result = result
	if timedOut {
		h.state = StateTimedOut
	} else {
		h.state = StateFinished
	}
	h.mu.Unlock()
	close(h.done)
}

func (h *Handle) closeStreams() {
	if h.job.KeepStreams {
		return
	}
	h.closeOnce.Do(func() {
		seen := make(map[io.Closer]struct{}, 3)
		for _, stream := range []any{h.job.Stdin, h.job.Stdout, h.job.Stderr} {
			closer, ok := stream.(io.Closer)
			if !ok || closer == nil {
				continue
			}
			if _, dup := seen[closer]; dup {
				continue
			}
			seen[closer] = struct{}{}
			if err := closer.Close(); err != nil {
				h.runner.logger.Debug("close job stream", logging.String(logging.FieldJobID, h.job.ID), logging.Error(err))
			}
		}
	})
}

// Runner creates handles and keeps the registry of running jobs.
type Runner struct {
	logger  *slog.Logger
	mu      sync.Mutex
	running map[string]*Handle
}

// New constructs a Runner.
func New(logger *slog.Logger) *Runner {
	return &Runner{
		logger:  logging.NewComponentLogger(logger, "runner"),
		running: make(map[string]*Handle),
	}
}

// NewHandle wraps job in a queued handle, assigning an ID when missing.
func (r *Runner) NewHandle(job Job) *Handle {
	if job.ID == "" {
		job.ID = newJobID()
	}
	return &Handle{job: job, runner: r, state: StateQueued, done: make(chan struct{})}
}

// Running returns the IDs of jobs currently executing.
func (r *Runner) Running() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.running))
	for id := range r.running {
		ids = append(ids, id)
	}
	return ids
}

func (r *Runner) track(h *Handle) {
	r.mu.Lock()
	r.running[h.job.ID] = h
	r.mu.Unlock()
}

func (r *Runner) untrack(h *Handle) {
	r.mu.Lock()
	delete(r.running, h.job.ID)
	r.mu.Unlock()
}
