package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Status is the lifecycle state of a journaled job.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusTimedOut  Status = "timed_out"
)

// Job is one row of the journal.
type Job struct {
	ID          int64
	RunID       string
	JobID       string
	NodeClass   string
	CacheKey    string
	Command     string
	Status      Status
	ExitCode    *int
	FailureKind string
	Error       string
	PayloadHash string
	StartedAt   time.Time
	FinishedAt  *time.Time
}

// Duration returns how long the job ran, or zero while it is still running.
func (j Job) Duration() time.Duration {
	if j.FinishedAt == nil {
		return 0
	}
	return j.FinishedAt.Sub(j.StartedAt)
}

// Outcome is what Finish records.
type Outcome struct {
	Status      Status
	ExitCode    int
	FailureKind string
	Error       string
	PayloadHash string
}

// Start inserts a running job and returns its row id.
func (j *Journal) Start(ctx context.Context, job Job) (int64, error) {
	if job.RunID == "" || job.JobID == "" {
		return 0, errors.New("journal: run id and job id are required")
	}
	started := job.StartedAt
	if started.IsZero() {
		started = time.Now()
	}
	res, err := j.execWithRetry(ctx,
		`INSERT INTO jobs (run_id, job_id, node_class, cache_key, command, status, started_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		job.RunID,
		job.JobID,
		job.NodeClass,
		job.CacheKey,
		job.Command,
		StatusRunning,
		started.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("journal: insert job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("journal: last insert id: %w", err)
	}
	return id, nil
}

// Finish records the outcome of job id.
func (j *Journal) Finish(ctx context.Context, id int64, outcome Outcome) error {
	if outcome.Status == "" || outcome.Status == StatusRunning {
		return fmt.Errorf("journal: invalid final status %q", outcome.Status)
	}
	res, err := j.execWithRetry(ctx,
		`UPDATE jobs SET status = ?, exit_code = ?, failure_kind = ?, error_message = ?,
            payload_hash = ?, finished_at = ?
        WHERE id = ?`,
		outcome.Status,
		outcome.ExitCode,
		nullableString(outcome.FailureKind),
		nullableString(outcome.Error),
		nullableString(outcome.PayloadHash),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("journal: finish job %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("journal: job %d not found", id)
	}
	return nil
}

const selectColumns = `id, run_id, job_id, node_class, cache_key, command, status, exit_code,
    failure_kind, error_message, payload_hash, started_at, finished_at`

// Recent returns up to limit jobs, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 20
	}
	return j.query(ensureContext(ctx),
		`SELECT `+selectColumns+` FROM jobs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
}

// Run returns the jobs of one render run in start order.
func (j *Journal) Run(ctx context.Context, runID string) ([]Job, error) {
	return j.query(ensureContext(ctx),
		`SELECT `+selectColumns+` FROM jobs WHERE run_id = ? ORDER BY started_at, id`, runID)
}

// Prune deletes jobs that started before cutoff and reports how many went.
func (j *Journal) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := j.execWithRetry(ctx, `DELETE FROM jobs WHERE started_at < ?`, cutoff.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("journal: prune: %w", err)
	}
	return res.RowsAffected()
}

func (j *Journal) query(ctx context.Context, query string, args ...any) ([]Job, error) {
	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("journal: query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: iterate jobs: %w", err)
	}
	return jobs, nil
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (Job, error) {
	var (
		job         Job
		status      string
		exitCode    sql.NullInt64
		failureKind sql.NullString
		errorMsg    sql.NullString
		payloadHash sql.NullString
		startedRaw  string
		finishedRaw sql.NullString
	)
	if err := scanner.Scan(
		&job.ID, &job.RunID, &job.JobID, &job.NodeClass, &job.CacheKey, &job.Command,
		&status, &exitCode, &failureKind, &errorMsg, &payloadHash, &startedRaw, &finishedRaw,
	); err != nil {
		return Job{}, fmt.Errorf("journal: scan job: %w", err)
	}
	job.Status = Status(status)
	if exitCode.Valid {
		code := int(exitCode.Int64)
		job.ExitCode = &code
	}
	job.FailureKind = failureKind.String
	job.Error = errorMsg.String
	job.PayloadHash = payloadHash.String
	if ts, err := time.Parse(time.RFC3339Nano, startedRaw); err == nil {
		job.StartedAt = ts
	}
	if finishedRaw.Valid {
		if ts, err := time.Parse(time.RFC3339Nano, finishedRaw.String); err == nil {
			job.FinishedAt = &ts
		}
	}
	return job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
