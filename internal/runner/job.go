package runner

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sausix/scriptycut/internal/services"
)

var (
	// ErrAlreadyStarted is returned when Start is called on a handle that has left the queued state.
	ErrAlreadyStarted = fmt.Errorf("%w: job already started", services.ErrState)
	// ErrTimeout marks a job killed after exceeding its timeout.
	ErrTimeout = fmt.Errorf("%w: job exceeded its timeout", services.ErrTimeout)
	// ErrEmptyCommand is returned for jobs without a program.
	ErrEmptyCommand = errors.New("runner: empty command")
)

// State is the lifecycle position of a job.
type State int

const (
	StateQueued State = iota
	StateRunning
	StateFinished
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	case StateTimedOut:
		return "timed-out"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Job describes one external process invocation.
type Job struct {
	ID      string
	Command []string
	Dir     string
	Stdin   io.Reader
	Stdout  io.Writer
	Stderr  io.Writer
	Timeout time.Duration
	// KeepStreams leaves Stdin, Stdout and Stderr open after completion.
	KeepStreams bool
}

// String renders the command line for logs and dry runs.
func (j Job) String() string {
	parts := make([]string, len(j.Command))
	for i, arg := range j.Command {
		if arg == "" || strings.ContainsAny(arg, " \t\"'[];,") {
			parts[i] = fmt.Sprintf("%q", arg)
			continue
		}
		parts[i] = arg
	}
	return strings.Join(parts, " ")
}

// Result is the outcome of a completed job.
type Result struct {
	ExitCode int
	// Err is set when the process could not be started, was cancelled, or timed out.
	// A non-zero exit alone leaves Err nil.
	Err        error
	TimedOut   bool
	Duration   time.Duration
	StderrTail string
}

// Failed reports whether the job did not exit cleanly.
func (r Result) Failed() bool {
	return r.Err != nil || r.TimedOut || r.ExitCode != 0
}

// AsError converts a failed result into an error suitable for wrapping.
func (r Result) AsError() error {
	switch {
	case !r.Failed():
		return nil
	case r.Err != nil:
		return r.Err
	default:
		tail := strings.TrimSpace(r.StderrTail)
		if tail == "" {
			return fmt.Errorf("%w: exit status %d", services.ErrExternalTool, r.ExitCode)
		}
		return fmt.Errorf("%w: exit status %d: %s", services.ErrExternalTool, r.ExitCode, lastLine(tail))
	}
}

func lastLine(text string) string {
	if idx := strings.LastIndexByte(text, '\n'); idx >= 0 {
		return strings.TrimSpace(text[idx+1:])
	}
	return text
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	max  int
	data []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.data = append(t.data, p...)
	if over := len(t.data) - t.max; over > 0 {
		t.data = append(t.data[:0], t.data[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string { return string(t.data) }
