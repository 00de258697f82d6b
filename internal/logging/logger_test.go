package logging_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sausix/scriptycut/internal/config"
	"github.com/sausix/scriptycut/internal/logging"
	"github.com/sausix/scriptycut/internal/services"
)

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello file", logging.String("key", "value"))

	data, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "scriptycut.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(data))), &record); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", data, err)
	}
	if record["msg"] != "hello file" || record["key"] != "value" || record["level"] != "info" {
		t.Fatalf("unexpected record %v", record)
	}
}

func TestConsoleLoggerFormatsComponentAndAttrs(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logging.NewComponentLogger(logger, "cache").Info("entry resolved", logging.String("class", "Sequence"))
	logger.Debug("hidden")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	text := string(content)
	if !strings.Contains(text, "INFO cache: entry resolved class=Sequence") {
		t.Fatalf("unexpected console line %q", text)
	}
	if strings.Contains(text, "hidden") {
		t.Fatalf("debug line leaked at info level: %q", text)
	}
	if strings.Contains(text, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", text)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestWithContextAddsRunFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "ctx.log")
	logger, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	ctx := services.WithRunID(context.Background(), "run-42")
	ctx = services.WithNodeKey(ctx, "Slice_abc")
	logging.WithContext(ctx, logger).Info("rendering")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	for _, fragment := range []string{`"run_id":"run-42"`, `"node_key":"Slice_abc"`} {
		if !strings.Contains(string(content), fragment) {
			t.Fatalf("expected %s in %s", fragment, content)
		}
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "warn.log")
	logger, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "orphan kept", "cache_discard_failed", logging.String(logging.FieldImpact, "disk space not reclaimed"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	for _, fragment := range []string{`"event_type":"cache_discard_failed"`, `"error_hint":"check logs for details"`, `"impact":"disk space not reclaimed"`} {
		if !strings.Contains(string(content), fragment) {
			t.Fatalf("expected %s in %s", fragment, content)
		}
	}
}

func TestProgressSamplerBuckets(t *testing.T) {
	sampler := logging.NewProgressSampler(25)
	var emitted []float64
	for _, p := range []float64{-1, 0, 5, 24, 25, 30, 60, 99, 100, 100} {
		if sampler.ShouldLog(p) {
			emitted = append(emitted, p)
		}
	}
	want := []float64{0, 25, 60, 99, 100}
	if len(emitted) != len(want) {
		t.Fatalf("emitted %v, want %v", emitted, want)
	}
	for i := range want {
		if emitted[i] != want[i] {
			t.Fatalf("emitted %v, want %v", emitted, want)
		}
	}
}

func TestJSONWritesDurationsAsSeconds(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "dur.log")
	logger, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("job finished", logging.Duration("duration", 1500*time.Millisecond))

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(data))), &record); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if record["duration"] != 1.5 {
		t.Fatalf("expected duration 1.5, got %v", record["duration"])
	}
}

func TestTeeHandlerDropsNilAndRespectsLevels(t *testing.T) {
	dir := t.TempDir()
	debugPath := filepath.Join(dir, "debug.log")
	warnPath := filepath.Join(dir, "warn.log")
	debugLogger, err := logging.New(logging.Options{Format: "console", Level: "debug", OutputPaths: []string{debugPath}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	warnLogger, err := logging.New(logging.Options{Format: "console", Level: "warn", OutputPaths: []string{warnPath}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if h := logging.TeeHandler(nil, debugLogger.Handler()); h != debugLogger.Handler() {
		t.Fatal("expected a lone handler to be returned unchanged")
	}

	logger := slog.New(logging.TeeHandler(debugLogger.Handler(), nil, warnLogger.Handler()))
	logger.Info("planned", logging.Strings("cmd", []string{"ffmpeg", "-i", "in.mkv"}))
	logger.Warn("slow job")

	debug, _ := os.ReadFile(debugPath)
	warn, _ := os.ReadFile(warnPath)
	if !strings.Contains(string(debug), `cmd="ffmpeg -i in.mkv"`) || !strings.Contains(string(debug), "slow job") {
		t.Fatalf("unexpected debug log %q", debug)
	}
	if strings.Contains(string(warn), "planned") || !strings.Contains(string(warn), "slow job") {
		t.Fatalf("unexpected warn log %q", warn)
	}
}
