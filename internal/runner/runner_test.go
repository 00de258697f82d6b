package runner

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sausix/scriptycut/internal/logging"
	"github.com/sausix/scriptycut/internal/services"
)

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
}

type countingCloser struct {
	bytes.Buffer
	closes atomic.Int32
}

func (c *countingCloser) Close() error {
	c.closes.Add(1)
	return nil
}

func TestRunCapturesOutputAndClosesStreamsOnce(t *testing.T) {
	requireShell(t)
	r := New(logging.NewNop())
	out := &countingCloser{}
	h := r.NewHandle(Job{Command: []string{"/bin/sh", "-c", "echo hello; echo oops >&2"}, Stdout: out, Stderr: out})

	res, err := h.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Failed() {
		t.Fatalf("expected success, got %+v", res)
	}
	if !strings.Contains(out.String(), "hello") || !strings.Contains(res.StderrTail, "oops") {
		t.Fatalf("unexpected output %q tail %q", out.String(), res.StderrTail)
	}
	if got := out.closes.Load(); got != 1 {
		t.Fatalf("expected shared stream closed once, got %d", got)
	}
	if h.State() != StateFinished {
		t.Fatalf("expected finished state, got %s", h.State())
	}
}

func TestKeepStreamsLeavesStreamsOpen(t *testing.T) {
	requireShell(t)
	r := New(logging.NewNop())
	out := &countingCloser{}
	h := r.NewHandle(Job{Command: []string{"/bin/sh", "-c", "true"}, Stdout: out, KeepStreams: true})
	if _, err := h.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := out.closes.Load(); got != 0 {
		t.Fatalf("expected stream left open, got %d closes", got)
	}
}

func TestNonZeroExitIsRecordedNotRaised(t *testing.T) {
	requireShell(t)
	r := New(logging.NewNop())
	h := r.NewHandle(Job{Command: []string{"/bin/sh", "-c", "echo broken >&2; exit 3"}})
	res, err := h.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Err != nil {
		t.Fatalf("expected no error for non-zero exit, got %v", res.Err)
	}
	if res.ExitCode != 3 || !res.Failed() {
		t.Fatalf("expected exit code 3, got %+v", res)
	}
	if err := res.AsError(); !errors.Is(err, services.ErrExternalTool) || !strings.Contains(err.Error(), "broken") {
		t.Fatalf("unexpected AsError: %v", err)
	}
}

func TestTimeoutKillsAndReportsDistinctly(t *testing.T) {
	requireShell(t)
	r := New(logging.NewNop())
	h := r.NewHandle(Job{Command: []string{"/bin/sh", "-c", "sleep 5"}, Timeout: 100 * time.Millisecond})
	start := time.Now()
	res, err := h.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.TimedOut || !errors.Is(res.Err, ErrTimeout) || !errors.Is(res.Err, services.ErrTimeout) {
		t.Fatalf("expected timeout result, got %+v", res)
	}
	if h.State() != StateTimedOut {
		t.Fatalf("expected timed-out state, got %s", h.State())
	}
	if time.Since(start) > 4*time.Second {
		t.Fatal("process was not killed on timeout")
	}
}

func TestStartTwiceIsStateError(t *testing.T) {
	requireShell(t)
	r := New(logging.NewNop())
	h := r.NewHandle(Job{Command: []string{"/bin/sh", "-c", "sleep 0.2"}})
	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := h.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) || !errors.Is(err, services.ErrState) {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}
	if _, done := h.Wait(5 * time.Second); !done {
		t.Fatal("expected job to finish")
	}
	if err := h.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("expected ErrAlreadyStarted after finish, got %v", err)
	}
}

func TestWaitOnUnstartedReturnsImmediately(t *testing.T) {
	r := New(logging.NewNop())
	h := r.NewHandle(Job{Command: []string{"true"}})
	if _, done := h.Wait(time.Hour); done {
		t.Fatal("expected unstarted handle to report not done")
	}
}

func TestWaitTimeoutLeavesJobRunning(t *testing.T) {
	requireShell(t)
	r := New(logging.NewNop())
	h := r.NewHandle(Job{Command: []string{"/bin/sh", "-c", "sleep 0.5"}})
	if err := h.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, done := h.Wait(10 * time.Millisecond); done {
		t.Fatal("expected wait to time out")
	}
	if len(r.Running()) != 1 {
		t.Fatalf("expected one running job, got %v", r.Running())
	}
	if res, done := h.Wait(0); !done || res.Failed() {
		t.Fatalf("expected clean completion, got %+v done=%v", res, done)
	}
}

func TestMissingBinaryIsExternalToolError(t *testing.T) {
	r := New(logging.NewNop())
	h := r.NewHandle(Job{Command: []string{filepath.Join(t.TempDir(), "no-such-binary")}})
	res, err := h.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !errors.Is(res.Err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %+v", res)
	}
}

func TestEmptyCommand(t *testing.T) {
	r := New(logging.NewNop())
	res, err := r.NewHandle(Job{}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !errors.Is(res.Err, ErrEmptyCommand) {
		t.Fatalf("expected ErrEmptyCommand, got %v", res.Err)
	}
}

func TestPoolBoundsConcurrency(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	marker := filepath.Join(dir, "active")
	// Each job fails if another job holds the marker.
	script := `if ! mkdir "` + marker + `" 2>/dev/null; then exit 9; fi; sleep 0.05; rmdir "` + marker + `"`

	pool := NewPool(New(logging.NewNop()), 1)
	var handles []*Handle
	for range 4 {
		handles = append(handles, pool.Submit(context.Background(), Job{Command: []string{"/bin/sh", "-c", script}}))
	}
	for _, h := range handles {
		res, done := h.Wait(0)
		if !done || res.Failed() {
			t.Fatalf("job %s overlapped or failed: %+v", h.ID(), res)
		}
	}
	pool.Wait()
}

func TestPoolCancelledBeforeStart(t *testing.T) {
	requireShell(t)
	pool := NewPool(New(logging.NewNop()), 1)
	blocker := pool.Submit(context.Background(), Job{Command: []string{"/bin/sh", "-c", "sleep 0.3"}})
	deadline := time.Now().Add(2 * time.Second)
	for blocker.State() != StateRunning {
		if time.Now().After(deadline) {
			t.Fatal("blocker never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	ctx, cancel := context.WithCancel(context.Background())
	out := &countingCloser{}
	queued := pool.Submit(ctx, Job{Command: []string{"/bin/sh", "-c", "echo never"}, Stdout: out})
	cancel()

	res, done := queued.Wait(0)
	if !done || !errors.Is(res.Err, context.Canceled) {
		t.Fatalf("expected cancellation, got %+v", res)
	}
	if out.Len() != 0 {
		t.Fatalf("cancelled job produced output %q", out.String())
	}
	if out.closes.Load() != 1 {
		t.Fatalf("expected stream closed once, got %d", out.closes.Load())
	}
	blocker.Wait(0)
	pool.Wait()
}

func TestJobStringQuotes(t *testing.T) {
	job := Job{Command: []string{"ffmpeg", "-vf", "scale=640:360,setsar=1", "out file.mkv"}}
	got := job.String()
	if !strings.Contains(got, `"scale=640:360,setsar=1"`) || !strings.Contains(got, `"out file.mkv"`) {
		t.Fatalf("unexpected command string %q", got)
	}
}
