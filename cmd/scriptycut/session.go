package main

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofrs/flock"

	"github.com/sausix/scriptycut/internal/cache"
	"github.com/sausix/scriptycut/internal/clip"
	"github.com/sausix/scriptycut/internal/config"
	"github.com/sausix/scriptycut/internal/fftools"
	"github.com/sausix/scriptycut/internal/journal"
	"github.com/sausix/scriptycut/internal/logging"
	"github.com/sausix/scriptycut/internal/media/ffprobe"
	"github.com/sausix/scriptycut/internal/runner"
	"github.com/sausix/scriptycut/internal/services"
)

// session holds the resources one command run needs against the cache.
// close releases them in reverse order of acquisition.
type session struct {
	cfg     *config.Config
	logger  *slog.Logger
	lock    *flock.Flock
	cache   *cache.Cache
	journal *journal.Journal
	runner  *runner.Runner
	pool    *runner.Pool
	probe   *fftools.Probe
	clips   *clip.Context
	// sweep is whether orphans may be discarded once the graph is known.
	sweep bool
}

type sessionOptions struct {
	keepOrphans bool
	journal     bool
}

// openSession takes the cache lock and opens the cache. A second render
// against the same cache root fails instead of waiting. Orphans are kept
// until discardOrphans is called.
func openSession(cfg *config.Config, logger *slog.Logger, opts sessionOptions) (*session, error) {
	s := &session{cfg: cfg, logger: logger, sweep: cfg.Cache.DiscardOrphans && !opts.keepOrphans}

	s.lock = flock.New(cfg.CacheLockPath())
	ok, err := s.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire cache lock: %w", err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrState, "cli", "lock cache",
			fmt.Sprintf("cache %s is in use by another scriptycut process (lock %s)", cfg.Paths.CacheDir, cfg.CacheLockPath()), nil)
	}

	store, err := cache.Open(cfg.Paths.CacheDir, cache.Options{Version: cfg.Cache.FormatVersion}, logger)
	if err != nil {
		_ = s.lock.Unlock()
		return nil, err
	}
	s.cache = store

	if opts.journal {
		jr, err := journal.Open(cfg.JournalPath())
		if err != nil {
			s.close()
			return nil, err
		}
		s.journal = jr
	}

	s.runner = runner.New(logger)
	s.pool = runner.NewPool(s.runner, cfg.Render.Threads)
	s.probe = fftools.NewProbe(cfg.Tools.FFmpeg, s.runner, logger)
	prober := ffprobe.Prober{
		Binary:  cfg.Tools.FFprobe,
		Timeout: time.Duration(cfg.Tools.ProbeTimeout) * time.Second,
	}
	s.clips = clip.NewContextFromConfig(cfg, store, prober, logger)
	return s, nil
}

// discardOrphans arms the orphan sweep at close. Call it only once every
// clip the project uses has been built.
func (s *session) discardOrphans() {
	if s.sweep && s.cache != nil {
		s.cache.SetDiscardOrphans(true)
	}
}

func (s *session) close() {
	if s.pool != nil {
		s.pool.Wait()
	}
	var errs []error
	if s.journal != nil {
		errs = append(errs, s.journal.Close())
	}
	if s.cache != nil {
		s.cache.Close()
	}
	if s.lock != nil {
		errs = append(errs, s.lock.Unlock())
	}
	if err := errors.Join(errs...); err != nil {
		logging.WarnWithContext(s.logger, "session teardown incomplete", "session_close_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove a stale lock file next to the cache root if renders refuse to start"),
		)
	}
}
