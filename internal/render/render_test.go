package render

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/sausix/scriptycut/internal/cache"
	"github.com/sausix/scriptycut/internal/clip"
	"github.com/sausix/scriptycut/internal/config"
	"github.com/sausix/scriptycut/internal/fftools"
	"github.com/sausix/scriptycut/internal/journal"
	"github.com/sausix/scriptycut/internal/logging"
	"github.com/sausix/scriptycut/internal/runner"
	"github.com/sausix/scriptycut/internal/services"
	"github.com/sausix/scriptycut/internal/testsupport"
)

type harness struct {
	cfg      *config.Config
	calls    string
	cx       *clip.Context
	prober   *testsupport.FakeProber
	runner   *runner.Runner
	pool     *runner.Pool
	renderer *Renderer
}

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	requireShell(t)
	h := &harness{}
	h.cfg = testsupport.NewConfig(t, testsupport.WithFakeFFmpeg(&h.calls), testsupport.WithThreads(3))
	store, err := cache.Open(h.cfg.Paths.CacheDir, cache.Options{Version: 1}, logging.NewNop())
	if err != nil {
		t.Fatalf("cache.Open: %v", err)
	}
	h.prober = testsupport.NewFakeProber()
	h.cx = clip.NewContextFromConfig(h.cfg, store, h.prober, logging.NewNop())
	h.runner = runner.New(logging.NewNop())
	h.pool = runner.NewPool(h.runner, h.cfg.Render.Threads)
	caps := fftools.NewProbe(h.cfg.Tools.FFmpeg, h.runner, logging.NewNop())
	h.renderer = New(h.cfg.Tools.FFmpeg, h.pool, caps, SettingsFromConfig(h.cfg), logging.NewNop(), opts...)
	return h
}

// renderCalls returns the logged ffmpeg invocations that produced a node payload.
func (h *harness) renderCalls(t *testing.T) []string {
	t.Helper()
	data, err := os.ReadFile(h.calls)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatalf("read call log: %v", err)
	}
	var calls []string
	for _, line := range strings.Split(string(data), "\n") {
		if strings.Contains(line, ".partial.mkv") {
			calls = append(calls, line)
		}
	}
	return calls
}

func (h *harness) sequence(t *testing.T) (*clip.Generator, *clip.Generator, *clip.Sequence) {
	t.Helper()
	size := h.cx.DefaultSize()
	a, err := h.cx.TestSrc(2, size)
	if err != nil {
		t.Fatalf("TestSrc: %v", err)
	}
	b, err := h.cx.Color(1, size, "red")
	if err != nil {
		t.Fatalf("Color: %v", err)
	}
	seq, err := h.cx.Concat(a, b)
	if err != nil {
		t.Fatalf("Concat: %v", err)
	}
	return a, b, seq
}

func TestRenderMaterializesEachNodeOnce(t *testing.T) {
	h := newHarness(t)
	a, b, seq := h.sequence(t)
	out := filepath.Join(t.TempDir(), "out", "final.mp4")

	rep, err := h.renderer.Render(context.Background(), seq, out, Options{})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(rep.Rendered) != 3 || len(rep.Hits) != 0 {
		t.Fatalf("expected 3 rendered nodes and no hits, got %+v", rep)
	}
	if len(rep.Jobs) != 4 {
		t.Fatalf("expected 3 node jobs plus the output encode, got %d", len(rep.Jobs))
	}
	for _, c := range []clip.Clip{a, b, seq} {
		if !c.Entry().HasPayload(payloadName) {
			t.Fatalf("expected committed payload for %s", c.Identity())
		}
		if _, err := os.Stat(c.Entry().PartialPayload(payloadName)); !os.IsNotExist(err) {
			t.Fatalf("partial payload left behind for %s: %v", c.Identity(), err)
		}
	}
	data, err := os.ReadFile(out)
	if err != nil || string(data) != "payload" {
		t.Fatalf("unexpected output %q: %v", data, err)
	}
	if rep.PayloadHash == "" || rep.RunID == "" {
		t.Fatalf("expected run id and payload hash, got %+v", rep)
	}

	again, err := h.renderer.Render(context.Background(), seq, out, Options{})
	if err != nil {
		t.Fatalf("second Render: %v", err)
	}
	if len(again.Rendered) != 0 || len(again.Hits) != 1 || len(again.Jobs) != 1 {
		t.Fatalf("expected only cache hits on the second run, got %+v", again)
	}
	if calls := h.renderCalls(t); len(calls) != 3 {
		t.Fatalf("expected each node rendered once, got %d calls", len(calls))
	}
}

func TestRenderDoesNotRebuildInputsOfCachedNode(t *testing.T) {
	h := newHarness(t)
	a, _, seq := h.sequence(t)
	out := filepath.Join(t.TempDir(), "out.mkv")
	if _, err := h.renderer.Render(context.Background(), seq, out, Options{}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if err := os.Remove(Payload(a)); err != nil {
		t.Fatalf("remove payload: %v", err)
	}

	rep, err := h.renderer.Render(context.Background(), seq, out, Options{})
	if err != nil {
		t.Fatalf("second Render: %v", err)
	}
	if len(rep.Rendered) != 0 || len(rep.Hits) != 1 {
		t.Fatalf("expected the cached sequence alone, got %+v", rep)
	}
	if calls := h.renderCalls(t); len(calls) != 3 {
		t.Fatalf("expected no new node renders, got %d calls", len(calls))
	}
	if a.Entry().HasPayload(payloadName) {
		t.Fatal("input of a cached node was rendered again")
	}
}

func TestRenderRunsDependenciesFirst(t *testing.T) {
	h := newHarness(t)
	a, b, seq := h.sequence(t)
	if _, err := h.renderer.Render(context.Background(), seq, filepath.Join(t.TempDir(), "out.mkv"), Options{}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	calls := h.renderCalls(t)
	position := func(c clip.Clip) int {
		for i, line := range calls {
			if strings.Contains(line, c.Entry().PartialPayload(payloadName)) {
				return i
			}
		}
		t.Fatalf("no call for %s", c.Identity())
		return -1
	}
	if position(seq) < position(a) || position(seq) < position(b) {
		t.Fatalf("sequence rendered before its inputs: %v", calls)
	}
}

func TestRenderMissingResourceFailsBeforeAnyJob(t *testing.T) {
	h := newHarness(t)
	missing, err := h.cx.File(context.Background(), filepath.Join(t.TempDir(), "gone.mp4"), clip.FileOptions{})
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	gen, err := h.cx.TestSrc(1, h.cx.DefaultSize())
	if err != nil {
		t.Fatalf("TestSrc: %v", err)
	}
	seq, err := h.cx.Concat(gen, missing)
	if err != nil {
		t.Fatalf("Concat: %v", err)
	}

	_, err = h.renderer.Render(context.Background(), seq, filepath.Join(t.TempDir(), "out.mkv"), Options{})
	if !errors.Is(err, ErrMissingResource) || !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected missing resource error, got %v", err)
	}
	if !strings.Contains(err.Error(), "gone.mp4") {
		t.Fatalf("expected the missing source to be named, got %v", err)
	}
	if _, statErr := os.Stat(h.calls); !os.IsNotExist(statErr) {
		t.Fatalf("expected no ffmpeg call, stat err %v", statErr)
	}
}

func TestRenderDryRunPlansWithoutRunning(t *testing.T) {
	h := newHarness(t)
	_, _, seq := h.sequence(t)
	out := filepath.Join(t.TempDir(), "out.mkv")

	rep, err := h.renderer.Render(context.Background(), seq, out, Options{DryRun: true})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(rep.Planned) != 4 {
		t.Fatalf("expected 3 node commands and the output encode, got %v", rep.Planned)
	}
	if !strings.Contains(rep.Planned[2], "concat=n=2:v=1:a=0") {
		t.Fatalf("expected the sequence last among node commands, got %q", rep.Planned[2])
	}
	if !strings.Contains(rep.Planned[3], "libx264") {
		t.Fatalf("expected final encode to use libx264, got %q", rep.Planned[3])
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("dry run wrote output: %v", err)
	}
	if _, err := os.Stat(h.calls); !os.IsNotExist(err) {
		t.Fatalf("dry run invoked ffmpeg: %v", err)
	}
}

func TestRenderCopySkipsFinalEncode(t *testing.T) {
	h := newHarness(t)
	_, _, seq := h.sequence(t)
	out := filepath.Join(t.TempDir(), "copy.mkv")

	rep, err := h.renderer.Render(context.Background(), seq, out, Options{Copy: true})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(rep.Jobs) != 3 {
		t.Fatalf("expected node jobs only, got %d", len(rep.Jobs))
	}
	data, err := os.ReadFile(out)
	if err != nil || string(data) != "payload" {
		t.Fatalf("unexpected copied output %q: %v", data, err)
	}
	if rep.PayloadHash == "" {
		t.Fatal("expected payload hash of the copy")
	}
}

func TestRenderJournalsEveryJob(t *testing.T) {
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	h := newHarness(t, WithJournal(j))
	_, _, seq := h.sequence(t)

	rep, err := h.renderer.Render(context.Background(), seq, filepath.Join(t.TempDir(), "out.mkv"), Options{RunID: "run-42"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if rep.RunID != "run-42" {
		t.Fatalf("expected caller run id, got %q", rep.RunID)
	}
	jobs, err := j.Run(context.Background(), "run-42")
	if err != nil {
		t.Fatalf("journal Run: %v", err)
	}
	if len(jobs) != 4 {
		t.Fatalf("expected 4 journaled jobs, got %d", len(jobs))
	}
	classes := map[string]int{}
	for _, job := range jobs {
		if job.Status != journal.StatusSucceeded || job.PayloadHash == "" || job.FinishedAt == nil {
			t.Fatalf("unexpected journaled job %+v", job)
		}
		classes[job.NodeClass]++
	}
	if classes["Sequence"] != 1 || classes[outputClass] != 1 {
		t.Fatalf("unexpected journaled classes %v", classes)
	}
}

func TestRenderJobFailureIsReported(t *testing.T) {
	requireShell(t)
	cfg := testsupport.NewConfig(t)
	store, err := cache.Open(cfg.Paths.CacheDir, cache.Options{Version: 1}, logging.NewNop())
	if err != nil {
		t.Fatalf("cache.Open: %v", err)
	}
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	broken := testsupport.WriteScript(t, t.TempDir(), "ffmpeg", "echo 'encoder exploded' >&2\nexit 3\n")
	pool := runner.NewPool(runner.New(logging.NewNop()), 1)
	r := New(broken, pool, nil, SettingsFromConfig(cfg), logging.NewNop(), WithJournal(j))

	cx := clip.NewContextFromConfig(cfg, store, nil, logging.NewNop())
	gen, err := cx.TestSrc(1, cx.DefaultSize())
	if err != nil {
		t.Fatalf("TestSrc: %v", err)
	}
	_, err = r.Render(context.Background(), gen, filepath.Join(t.TempDir(), "out.mkv"), Options{RunID: "broken"})
	if !errors.Is(err, ErrJobFailed) || !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected job failure, got %v", err)
	}
	if !strings.Contains(err.Error(), "encoder exploded") {
		t.Fatalf("expected stderr tail in error, got %v", err)
	}
	if gen.Entry().HasPayload(payloadName) {
		t.Fatal("failed job must not leave a payload")
	}
	jobs, err := j.Run(context.Background(), "broken")
	if err != nil {
		t.Fatalf("journal Run: %v", err)
	}
	if len(jobs) != 1 || jobs[0].Status != journal.StatusFailed || jobs[0].ExitCode == nil || *jobs[0].ExitCode != 3 {
		t.Fatalf("unexpected journaled failure %+v", jobs)
	}
}

type fakeCaps struct {
	missingFilter string
	filters       []string
}

func (f *fakeCaps) RequireFilters(_ context.Context, names ...string) error {
	f.filters = append(f.filters, names...)
	for _, name := range names {
		if name == f.missingFilter {
			return services.Wrap(services.ErrConfiguration, "fftools", "filters", "ffmpeg lacks filters: "+name, nil)
		}
	}
	return nil
}

func (f *fakeCaps) RequireEncoder(context.Context, string) error { return nil }

func TestRenderMissingFilterIsConfigurationError(t *testing.T) {
	h := newHarness(t)
	caps := &fakeCaps{missingFilter: "concat"}
	h.renderer = New(h.cfg.Tools.FFmpeg, h.pool, caps, SettingsFromConfig(h.cfg), logging.NewNop())
	_, _, seq := h.sequence(t)

	_, err := h.renderer.Render(context.Background(), seq, filepath.Join(t.TempDir(), "out.mkv"), Options{})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if calls := h.renderCalls(t); len(calls) != 0 {
		t.Fatalf("expected no jobs after a failed capability check, got %v", calls)
	}
}

func TestRenderRejectsEmptyOutput(t *testing.T) {
	h := newHarness(t)
	_, _, seq := h.sequence(t)
	if _, err := h.renderer.Render(context.Background(), seq, "", Options{}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
