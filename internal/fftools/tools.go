package fftools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sausix/scriptycut/internal/config"
	"github.com/sausix/scriptycut/internal/formats"
	"github.com/sausix/scriptycut/internal/runner"
)

// Binaries names the three tools.
type Binaries struct {
	FFmpeg  string
	FFprobe string
	FFplay  string
}

// BinariesFromConfig returns the configured tool names. Environment
// overrides were already applied when the config was loaded.
func BinariesFromConfig(cfg *config.Config) Binaries {
	if cfg == nil {
		return Binaries{FFmpeg: "ffmpeg", FFprobe: "ffprobe", FFplay: "ffplay"}
	}
	return Binaries{FFmpeg: cfg.Tools.FFmpeg, FFprobe: cfg.Tools.FFprobe, FFplay: cfg.Tools.FFplay}
}

// TestSourceArgs returns lavfi input arguments for ffmpeg's test pattern.
func TestSourceArgs(seconds float64, width, height int, rate formats.Rate) []string {
	return []string{"-f", "lavfi", "-i", fmt.Sprintf("testsrc=duration=%s:size=%dx%d:rate=%s", formatSeconds(seconds), width, height, rate)}
}

// Play shows file (or, with no file, the test pattern) in ffplay and waits
// for the window to close.
func Play(ctx context.Context, bins Binaries, file string, logger *slog.Logger) (runner.Result, error) {
	args := []string{bins.FFplay, "-hide_banner", "-autoexit"}
	if file == "" {
		args = append(args, TestSourceArgs(10, 1280, 720, formats.Rate{Num: 30, Den: 1})...)
	} else {
		args = append(args, file)
	}
	h := runner.New(logger).NewHandle(runner.Job{Command: args})
	return h.Run(ctx)
}

func formatSeconds(seconds float64) string {
	return fmt.Sprintf("%.6g", seconds)
}
