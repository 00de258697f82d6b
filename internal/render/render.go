package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sausix/scriptycut/internal/clip"
	"github.com/sausix/scriptycut/internal/fileutil"
	"github.com/sausix/scriptycut/internal/journal"
	"github.com/sausix/scriptycut/internal/logging"
	"github.com/sausix/scriptycut/internal/runner"
	"github.com/sausix/scriptycut/internal/services"
)

var (
	// ErrMissingResource aborts a render whose graph references unavailable sources.
	ErrMissingResource = fmt.Errorf("%w: clip graph references missing sources", services.ErrNotFound)
	// ErrJobFailed marks an ffmpeg job that exited non-zero or timed out.
	ErrJobFailed = fmt.Errorf("%w: render job failed", services.ErrExternalTool)
)

const outputClass = "Output"

// Capabilities reports what the ffmpeg binary supports.
type Capabilities interface {
	RequireFilters(ctx context.Context, names ...string) error
	RequireEncoder(ctx context.Context, codec string) error
}

// Recorder persists job lifecycles. *journal.Journal satisfies it.
type Recorder interface {
	Start(ctx context.Context, job journal.Job) (int64, error)
	Finish(ctx context.Context, id int64, outcome journal.Outcome) error
}

// Options control a single Render call.
type Options struct {
	// DryRun plans the render and returns the command lines without running them.
	DryRun bool
	// Copy writes the root payload to the output verbatim instead of encoding it.
	Copy  bool
	RunID string
}

// JobReport describes one executed ffmpeg job.
type JobReport struct {
	JobID    string
	Class    string
	Key      string
	ExitCode int
	Duration time.Duration
}

// Report summarizes a render.
type Report struct {
	RunID       string
	Output      string
	Steps       int
	Rendered    []string
	Hits        []string
	Jobs        []JobReport
	Planned     []string
	PayloadHash string
	Duration    time.Duration
}

// Renderer drives ffmpeg over a clip graph.
type Renderer struct {
	ffmpeg   string
	pool     *runner.Pool
	caps     Capabilities
	settings Settings
	journal  Recorder
	logger   *slog.Logger
}

// Option customizes a Renderer.
type Option func(*Renderer)

// WithJournal records every job in rec.
func WithJournal(rec Recorder) Option {
	return func(r *Renderer) {
		r.journal = rec
	}
}

// New constructs a renderer running ffmpeg jobs on pool.
func New(ffmpeg string, pool *runner.Pool, caps Capabilities, settings Settings, logger *slog.Logger, opts ...Option) *Renderer {
	r := &Renderer{
		ffmpeg:   ffmpeg,
		pool:     pool,
		caps:     caps,
		settings: settings.normalized(),
		logger:   logging.NewComponentLogger(logger, "render"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Settings returns the normalized render settings.
func (r *Renderer) Settings() Settings { return r.settings }

// Plan lists the steps needed to render root, dependencies first.
func (r *Renderer) Plan(root clip.Clip) ([]Step, error) {
	return BuildPlan(root, r.settings)
}

// Render materializes root and writes it to output.
func (r *Renderer) Render(ctx context.Context, root clip.Clip, output string, opts Options) (Report, error) {
	started := time.Now()
	if root == nil {
		return Report{}, errors.New("render: nil clip")
	}
	if output == "" {
		return Report{}, services.Wrap(services.ErrValidation, "render", "output", "output path is empty", nil)
	}
	if abs, err := filepath.Abs(output); err == nil {
		output = abs
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, r.logger)

	if err := checkResources(root); err != nil {
		return Report{RunID: runID, Output: output}, err
	}
	steps, err := r.Plan(root)
	if err != nil {
		return Report{RunID: runID, Output: output}, err
	}
	rep := &reportBuilder{report: Report{RunID: runID, Output: output, Steps: len(steps)}}

	if opts.DryRun {
		for _, step := range steps {
			if step.Cached {
				rep.hit(step.Key())
				continue
			}
			rep.report.Planned = append(rep.report.Planned, r.job(step.Args).String())
		}
		if !opts.Copy {
			rep.report.Planned = append(rep.report.Planned, r.job(r.finalArgs(root, output)).String())
		}
		rep.report.Duration = time.Since(started)
		return rep.report, nil
	}

	if err := r.checkCapabilities(ctx, root, steps, opts); err != nil {
		return rep.report, err
	}

	logger.Info("render started",
		logging.String("output", output),
		logging.Int("steps", len(steps)),
		logging.Int("workers", r.pool.Size()),
	)
	if err := r.execute(ctx, steps, rep); err != nil {
		rep.report.Duration = time.Since(started)
		logging.ErrorWithContext(logger, "render failed", "render_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "inspect the failed job's stderr tail above"),
		)
		return rep.report, err
	}
	hash, err := r.writeOutput(ctx, root, output, opts, rep)
	rep.report.Duration = time.Since(started)
	if err != nil {
		return rep.report, err
	}
	rep.report.PayloadHash = hash
	logger.Info("render finished",
		logging.String("output", output),
		logging.Int("rendered", len(rep.report.Rendered)),
		logging.Int("cache_hits", len(rep.report.Hits)),
		logging.Duration("duration", rep.report.Duration),
	)
	return rep.report, nil
}

// checkResources fails when any leaf of root is missing, naming each one.
func checkResources(root clip.Clip) error {
	if !root.Flags().Has(clip.MissingResource) {
		return nil
	}
	var missing []string
	for leaf := range clip.Leaves(root) {
		if leaf.Flags().Has(clip.MissingResource) {
			missing = append(missing, leaf.Identity())
		}
	}
	return fmt.Errorf("render: %w: %v", ErrMissingResource, missing)
}

func (r *Renderer) checkCapabilities(ctx context.Context, root clip.Clip, steps []Step, opts Options) error {
	if r.caps == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var filters []string
	intermediateVideo := false
	for _, step := range steps {
		if step.Cached {
			continue
		}
		intermediateVideo = intermediateVideo || step.Node.Flags().Has(clip.HasVideo)
		for _, f := range step.Filters {
			if _, ok := seen[f]; ok {
				continue
			}
			seen[f] = struct{}{}
			filters = append(filters, f)
		}
	}
	if len(filters) > 0 {
		if err := r.caps.RequireFilters(ctx, filters...); err != nil {
			return err
		}
	}
	if intermediateVideo {
		if err := r.caps.RequireEncoder(ctx, r.settings.IntermediateCodec); err != nil {
			return err
		}
	}
	if opts.Copy {
		return nil
	}
	if root.Flags().Has(clip.HasVideo) {
		if err := r.caps.RequireEncoder(ctx, r.settings.H264.EncoderName()); err != nil {
			return err
		}
	}
	if root.Flags().Has(clip.HasAudio) {
		if err := r.caps.RequireEncoder(ctx, r.settings.AudioCodec); err != nil {
			return err
		}
	}
	return nil
}

// execute renders every uncached step. A step starts once all of its inputs
// have committed; the first failure cancels the steps still waiting.
func (r *Renderer) execute(ctx context.Context, steps []Step, rep *reportBuilder) error {
	done := make(map[string]chan struct{}, len(steps))
	for _, step := range steps {
		done[step.Key()] = make(chan struct{})
	}

	group, gctx := errgroup.WithContext(ctx)
	for _, step := range steps {
		group.Go(func() error {
			for _, in := range step.Inputs {
				ch, ok := done[in.Entry().Key]
				if !ok {
					continue
				}
				select {
				case <-ch:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			if step.Cached {
				rep.hit(step.Key())
				close(done[step.Key()])
				return nil
			}
			if err := r.runStep(gctx, step, rep); err != nil {
				return err
			}
			close(done[step.Key()])
			return nil
		})
	}
	return group.Wait()
}

func (r *Renderer) runStep(ctx context.Context, step Step, rep *reportBuilder) error {
	entry := step.Entry()
	ctx = services.WithNodeKey(ctx, step.Key())
	logger := logging.WithContext(ctx, r.logger).With(logging.String("class", step.Node.Class()))

	for name, content := range step.Files {
		if err := fileutil.WriteFileAtomic(entry.Path(name), []byte(content), 0o644); err != nil {
			return fmt.Errorf("render: write %s: %w", name, err)
		}
	}
	progress := newProgressWriter(logger, step.Node.Duration())
	job := r.job(step.Args)
	job.Stdout = progress

	res, err := r.run(ctx, job, step.Node.Class(), step.Key(), entry.PartialPayload(payloadName), rep)
	if err != nil {
		entry.DiscardPartial(payloadName)
		return err
	}
	if err := entry.CommitPayload(payloadName); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrJobFailed, step.Node.Class(), err)
	}
	rep.rendered(step.Key())
	logger.Debug("node rendered", logging.Duration("duration", res.Duration), logging.String("payload", Payload(step.Node)))
	return nil
}

// run submits job to the pool, waits for it and journals the outcome.
// produced is hashed for the journal when the job succeeds.
func (r *Renderer) run(ctx context.Context, job runner.Job, class, key, produced string, rep *reportBuilder) (runner.Result, error) {
	runID, _ := services.RunIDFromContext(ctx)
	rowID := r.journalStart(ctx, journal.Job{
		RunID:     runID,
		JobID:     job.ID,
		NodeClass: class,
		CacheKey:  key,
		Command:   job.String(),
	})

	handle := r.pool.Submit(ctx, job)
	<-handle.Done()
	res, _ := handle.Wait(0)
	rep.job(JobReport{JobID: job.ID, Class: class, Key: key, ExitCode: res.ExitCode, Duration: res.Duration})

	if res.Failed() {
		err := fmt.Errorf("%w: %s %s: %w", ErrJobFailed, class, key, res.AsError())
		status := journal.StatusFailed
		if res.TimedOut {
			status = journal.StatusTimedOut
		}
		r.journalFinish(ctx, rowID, journal.Outcome{
			Status:      status,
			ExitCode:    res.ExitCode,
			FailureKind: services.FailureKind(res.AsError()),
			Error:       err.Error(),
		})
		return res, err
	}
	hash, err := fileutil.HashFile(produced)
	if err != nil {
		r.logger.Debug("payload hash unavailable", logging.String("path", produced), logging.Error(err))
	}
	r.journalFinish(ctx, rowID, journal.Outcome{Status: journal.StatusSucceeded, ExitCode: res.ExitCode, PayloadHash: hash})
	return res, nil
}

func (r *Renderer) job(args []string) runner.Job {
	return runner.Job{
		ID:      uuid.NewString(),
		Command: append([]string{r.ffmpeg}, args...),
		Timeout: r.settings.JobTimeout,
	}
}

func (r *Renderer) finalArgs(root clip.Clip, output string) []string {
	args := []string{"-hide_banner", "-nostdin", "-y", "-loglevel", "error", "-progress", "pipe:1", "-nostats", "-i", Payload(root)}
	flags := root.Flags()
	if flags.Has(clip.HasVideo) {
		args = append(args, r.settings.H264.Args()...)
	} else {
		args = append(args, "-vn")
	}
	if flags.Has(clip.HasAudio) {
		args = append(args, "-c:a", r.settings.AudioCodec)
		if r.settings.AudioBitrate != "" {
			args = append(args, "-b:a", r.settings.AudioBitrate)
		}
	} else {
		args = append(args, "-an")
	}
	return append(args, output)
}

func (r *Renderer) writeOutput(ctx context.Context, root clip.Clip, output string, opts Options, rep *reportBuilder) (string, error) {
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return "", fmt.Errorf("render: create output directory: %w", err)
	}
	if opts.Copy {
		hash, err := fileutil.CopyFileVerified(Payload(root), output)
		if err != nil {
			return "", fmt.Errorf("render: copy output: %w", err)
		}
		return hash, nil
	}
	job := r.job(r.finalArgs(root, output))
	job.Stdout = newProgressWriter(logging.WithContext(ctx, r.logger), root.Duration())
	if _, err := r.run(ctx, job, outputClass, root.Entry().Key, output, rep); err != nil {
		_ = os.Remove(output)
		return "", err
	}
	hash, err := fileutil.HashFile(output)
	if err != nil {
		return "", fmt.Errorf("render: hash output: %w", err)
	}
	return hash, nil
}

func (r *Renderer) journalStart(ctx context.Context, job journal.Job) int64 {
	if r.journal == nil {
		return 0
	}
	id, err := r.journal.Start(context.WithoutCancel(ctx), job)
	if err != nil {
		logging.WarnWithContext(r.logger, "journal write failed", "journal_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "job history will be incomplete"),
		)
		return 0
	}
	return id
}

func (r *Renderer) journalFinish(ctx context.Context, id int64, outcome journal.Outcome) {
	if r.journal == nil || id == 0 {
		return
	}
	if err := r.journal.Finish(context.WithoutCancel(ctx), id, outcome); err != nil {
		logging.WarnWithContext(r.logger, "journal write failed", "journal_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "job history will be incomplete"),
		)
	}
}

type reportBuilder struct {
	mu     sync.Mutex
	report Report
}

func (b *reportBuilder) hit(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.report.Hits = append(b.report.Hits, key)
}

func (b *reportBuilder) rendered(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.report.Rendered = append(b.report.Rendered, key)
}

func (b *reportBuilder) job(j JobReport) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.report.Jobs = append(b.report.Jobs, j)
}
