package preflight

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/sausix/scriptycut/internal/config"
	"github.com/sausix/scriptycut/internal/deps"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckEncoder verifies that ffmpeg can encode with codec.
func CheckEncoder(ctx context.Context, enc Encoders, name, codec string) Result {
	codec = strings.TrimSpace(codec)
	if codec == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	if err := enc.RequireEncoder(ctx, codec); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", codec, err)}
	}
	return Result{Name: name, Passed: true, Detail: codec}
}

// CheckSystemDeps evaluates the external binaries for the given config.
// Both the render and status commands use this to avoid duplicating the
// requirements list.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(deps.ToolRequirements(cfg.Tools.FFmpeg, cfg.Tools.FFprobe, cfg.Tools.FFplay))
}
