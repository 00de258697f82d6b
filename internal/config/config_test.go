package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"github.com/sausix/scriptycut/internal/config"
)

func clearToolEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"FFMPEG", "FFPROBE", "FFPLAY", "THREADS", "LOGLEVEL", "LOGFILE", "XDG_CACHE_HOME"} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	clearToolEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantCache := filepath.Join(tempHome, ".cache", "scriptycut", "clips")
	if cfg.Paths.CacheDir != wantCache {
		t.Fatalf("unexpected cache dir: got %q want %q", cfg.Paths.CacheDir, wantCache)
	}
	if cfg.Paths.StateDir != filepath.Join(tempHome, ".local", "share", "scriptycut") {
		t.Fatalf("unexpected state dir: %q", cfg.Paths.StateDir)
	}
	if !cfg.Cache.DiscardOrphans {
		t.Fatal("expected orphan discarding enabled by default")
	}
	if cfg.Render.Threads != 1 {
		t.Fatalf("expected one worker by default, got %d", cfg.Render.Threads)
	}
	if cfg.Tools.FFmpeg != "ffmpeg" || cfg.Tools.FFprobe != "ffprobe" || cfg.Tools.FFplay != "ffplay" {
		t.Fatalf("unexpected tool defaults: %+v", cfg.Tools)
	}
	if got := cfg.FPSHint(); got.Num != 30 || got.Den != 1 {
		t.Fatalf("unexpected fps hint: %+v", got)
	}
	if cfg.CacheLockPath() != wantCache+".lock" {
		t.Fatalf("unexpected lock path: %q", cfg.CacheLockPath())
	}
}

func TestLoadAppliesEnvironmentOverrides(t *testing.T) {
	clearToolEnv(t)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("FFMPEG", "/opt/ff/ffmpeg")
	t.Setenv("FFPROBE", "/opt/ff/ffprobe")
	t.Setenv("FFPLAY", "/opt/ff/ffplay")
	t.Setenv("THREADS", "4")
	t.Setenv("LOGLEVEL", "DEBUG")

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Tools.FFmpeg != "/opt/ff/ffmpeg" || cfg.Tools.FFprobe != "/opt/ff/ffprobe" || cfg.Tools.FFplay != "/opt/ff/ffplay" {
		t.Fatalf("expected env tool overrides, got %+v", cfg.Tools)
	}
	if cfg.Render.Threads != 4 {
		t.Fatalf("expected THREADS override, got %d", cfg.Render.Threads)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected LOGLEVEL override, got %q", cfg.Logging.Level)
	}
}

func TestLoadRejectsInvalidThreads(t *testing.T) {
	clearToolEnv(t)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("THREADS", "many")
	if _, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected error for non-numeric THREADS")
	}
	t.Setenv("THREADS", "0")
	if _, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected error for zero THREADS")
	}
}

func TestLoadCustomFile(t *testing.T) {
	clearToolEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	path := filepath.Join(t.TempDir(), "config.toml")
	payload := struct {
		Paths  map[string]string `toml:"paths"`
		Render map[string]any    `toml:"render"`
		Cache  map[string]any    `toml:"cache"`
	}{
		Paths:  map[string]string{"cache_dir": "~/clips"},
		Render: map[string]any{"fps_hint": "30000/1001", "preset": "Slow", "crf": 18},
		Cache:  map[string]any{"discard_orphans": false},
	}
	data, err := toml.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected custom path to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Paths.CacheDir != filepath.Join(tempHome, "clips") {
		t.Fatalf("unexpected cache dir %q", cfg.Paths.CacheDir)
	}
	if cfg.Cache.DiscardOrphans {
		t.Fatal("expected discard_orphans=false from file")
	}
	if got := cfg.FPSHint(); got.Num != 30000 || got.Den != 1001 {
		t.Fatalf("unexpected fps hint %+v", got)
	}
	if h := cfg.H264(); h.CRF != 18 || string(h.Preset) != "slow" {
		t.Fatalf("unexpected encoder settings %+v", h)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*config.Config){
		"decimal fps":   func(c *config.Config) { c.Render.FPSHint = "29.97" },
		"crf range":     func(c *config.Config) { c.Render.CRF = 60 },
		"preset":        func(c *config.Config) { c.Render.Preset = "warp" },
		"cache version": func(c *config.Config) { c.Cache.FormatVersion = 0 },
		"log level":     func(c *config.Config) { c.Logging.Level = "loud" },
	}
	for name, mutate := range cases {
		cfg := config.Default()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	clearToolEnv(t)
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[render]") {
		t.Fatalf("sample missing render section")
	}
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config failed to load: %v", err)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.CacheDir = filepath.Join(base, "cache")
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.CacheDir, cfg.Paths.StateDir, cfg.Paths.LogDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q: %v", dir, err)
		}
	}
}
