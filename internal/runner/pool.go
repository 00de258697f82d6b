package runner

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Pool runs jobs with bounded concurrency.
type Pool struct {
	runner *Runner
	slots  chan struct{}
	wg     sync.WaitGroup
}

// NewPool creates a pool running at most size jobs at once.
func NewPool(r *Runner, size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{runner: r, slots: make(chan struct{}, size)}
}

// Size returns the concurrency limit.
func (p *Pool) Size() int { return cap(p.slots) }

// Runner returns the underlying runner.
func (p *Pool) Runner() *Runner { return p.runner }

// Submit queues job and returns its handle immediately. The job starts as
// soon as a slot is free. If ctx ends first the handle finishes with the
// context error and never starts a process.
func (p *Pool) Submit(ctx context.Context, job Job) *Handle {
	h := p.runner.NewHandle(job)
	h.scheduled = true
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		select {
		case p.slots <- struct{}{}:
		case <-ctx.Done():
			if err := h.claim(); err == nil {
				h.finish(Result{ExitCode: -1, Err: fmt.Errorf("runner: job %s not started: %w", h.job.ID, ctx.Err())}, false)
			}
			return
		}
		defer func() { <-p.slots }()
		if _, err := h.Run(ctx); err != nil {
			p.runner.logger.Debug("pooled job not run", "job_id", h.job.ID, "error", err)
		}
	}()
	return h
}

// Wait blocks until every submitted job has completed.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func newJobID() string {
	return uuid.NewString()
}
