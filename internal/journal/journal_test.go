package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "state", "journal.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestStartAndFinishRoundTrip(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	id, err := j.Start(ctx, Job{
		RunID:     "run-1",
		JobID:     "job-1",
		NodeClass: "Sequence",
		CacheKey:  "Sequence_abc",
		Command:   "ffmpeg -i a.mkv out.mkv",
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	jobs, err := j.Run(ctx, "run-1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(jobs) != 1 || jobs[0].Status != StatusRunning || jobs[0].FinishedAt != nil || jobs[0].ExitCode != nil {
		t.Fatalf("unexpected running job %+v", jobs)
	}

	if err := j.Finish(ctx, id, Outcome{Status: StatusSucceeded, PayloadHash: "deadbeef"}); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	jobs, err = j.Run(ctx, "run-1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := jobs[0]
	if got.Status != StatusSucceeded || got.PayloadHash != "deadbeef" || got.FinishedAt == nil {
		t.Fatalf("unexpected finished job %+v", got)
	}
	if got.ExitCode == nil || *got.ExitCode != 0 {
		t.Fatalf("expected exit code 0, got %v", got.ExitCode)
	}
	if got.Duration() < 0 {
		t.Fatalf("negative duration %v", got.Duration())
	}
}

func TestFinishValidation(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	if err := j.Finish(ctx, 1, Outcome{Status: StatusRunning}); err == nil {
		t.Fatal("expected error for running as final status")
	}
	if err := j.Finish(ctx, 42, Outcome{Status: StatusFailed, ExitCode: 1}); err == nil {
		t.Fatal("expected error for unknown job")
	}
	if _, err := j.Start(ctx, Job{RunID: "r"}); err == nil {
		t.Fatal("expected error without job id")
	}
}

func TestRecentOrdersNewestFirst(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for i, jobID := range []string{"a", "b", "c"} {
		if _, err := j.Start(ctx, Job{RunID: "run", JobID: jobID, StartedAt: base.Add(time.Duration(i) * time.Minute)}); err != nil {
			t.Fatalf("Start: %v", err)
		}
	}
	recent, err := j.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 || recent[0].JobID != "c" || recent[1].JobID != "b" {
		t.Fatalf("unexpected order %+v", recent)
	}

	removed, err := j.Prune(ctx, base.Add(90*time.Second))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 pruned, got %d", removed)
	}
}

func TestReopenKeepsRowsAndRejectsOtherSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ctx := context.Background()
	if _, err := j.Start(ctx, Job{RunID: "run", JobID: "one"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := j.db.ExecContext(ctx, "UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = j.Close()

	if _, err := Open(path); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}
