package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sausix/scriptycut/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.CacheDir = filepath.Join(base, "cache")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Render.Width = 320
	cfgVal.Render.Height = 180
	cfgVal.Render.FPSHint = "25"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithThreads sets the worker pool size.
func WithThreads(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Render.Threads = n
	}
}

// WithKeepOrphans disables orphan discarding at cache teardown.
func WithKeepOrphans() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Cache.DiscardOrphans = false
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg, ffprobe and ffplay are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe", "ffplay"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		for _, name := range names {
			WriteScript(b.t, binDir, name, "exit 0\n")
		}
		prependPath(b.t, binDir)
	}
}

// WithFakeFFmpeg installs FakeFFmpeg as the configured ffmpeg binary and
// records its invocations, one per line, in the returned log path.
func WithFakeFFmpeg(logPath *string) ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		log := filepath.Join(b.baseDir, "ffmpeg-calls.log")
		b.cfg.Tools.FFmpeg = WriteScript(b.t, binDir, "ffmpeg", FakeFFmpeg(log))
		if logPath != nil {
			*logPath = log
		}
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.CacheDir)
}

func prependPath(t testing.TB, dir string) {
	t.Helper()
	oldPath := os.Getenv("PATH")
	if err := os.Setenv("PATH", dir+string(os.PathListSeparator)+oldPath); err != nil {
		t.Fatalf("set PATH: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Setenv("PATH", oldPath)
	})
}
