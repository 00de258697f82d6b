package preflight

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sausix/scriptycut/internal/config"
)

type fakeEncoders map[string]bool

func (f fakeEncoders) RequireEncoder(_ context.Context, codec string) error {
	if f[codec] {
		return nil
	}
	return errors.New("encoder " + codec + " not available")
}

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckEncoder(t *testing.T) {
	enc := fakeEncoders{"ffv1": true}
	if r := CheckEncoder(context.Background(), enc, "Intermediate", "ffv1"); !r.Passed {
		t.Fatalf("expected pass, got %s", r.Detail)
	}
	if r := CheckEncoder(context.Background(), enc, "Video", "libx265"); r.Passed {
		t.Fatal("expected failure for unknown encoder")
	}
	if r := CheckEncoder(context.Background(), enc, "Video", ""); r.Passed || r.Detail != "not configured" {
		t.Fatalf("unexpected result for blank codec: %+v", r)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil, nil)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_DirectoriesOnly(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.CacheDir = t.TempDir()
	cfg.Paths.StateDir = t.TempDir()

	results := RunAll(context.Background(), &cfg, nil)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %+v", failed)
	}
}

func TestRunAll_ChecksConfiguredEncoders(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.CacheDir = t.TempDir()
	cfg.Paths.StateDir = t.TempDir()

	results := RunAll(context.Background(), &cfg, fakeEncoders{"ffv1": true, "libx264": true})
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	failed := Failed(results)
	if len(failed) != 1 || failed[0].Name != "Audio encoder" {
		t.Fatalf("expected only the aac check to fail, got %+v", failed)
	}
}
