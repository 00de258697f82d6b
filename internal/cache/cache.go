package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/sausix/scriptycut/internal/config"
	"github.com/sausix/scriptycut/internal/logging"
)

// statfsFunc allows tests to stub filesystem stats.
type statfsFunc func(path string) (total uint64, free uint64, err error)

// Cache owns one cache root for the duration of a run.
type Cache struct {
	root           string
	version        int
	discardOrphans bool
	logger         *slog.Logger
	statfs         statfsFunc
	now            func() time.Time

	mu      sync.Mutex
	touched map[string]struct{}
	closed  bool
}

// Options configures Open.
type Options struct {
	// Version is baked into every key; bumping it invalidates all entries.
	Version int
	// DiscardOrphans enables removal of untouched entries on Close.
	DiscardOrphans bool
}

// Open prepares root and returns a cache rooted there.
func Open(root string, opts Options, logger *slog.Logger) (*Cache, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("cache: root is empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create root: %w", err)
	}
	version := opts.Version
	if version <= 0 {
		version = 1
	}
	c := &Cache{
		root:           root,
		version:        version,
		discardOrphans: opts.DiscardOrphans,
		statfs:         realStatfs,
		now:            time.Now,
		touched:        make(map[string]struct{}),
	}
	c.SetLogger(logger)
	return c, nil
}

// New opens the cache configured in cfg.
func New(cfg *config.Config, logger *slog.Logger) (*Cache, error) {
	if cfg == nil {
		return nil, errors.New("cache: config is nil")
	}
	return Open(cfg.Paths.CacheDir, Options{
		Version:        cfg.Cache.FormatVersion,
		DiscardOrphans: cfg.Cache.DiscardOrphans,
	}, logger)
}

// SetLogger refreshes the cache's logging destination.
func (c *Cache) SetLogger(logger *slog.Logger) {
	c.logger = logging.NewComponentLogger(logger, "cache")
}

// SetDiscardOrphans switches the orphan sweep on Close on or off.
func (c *Cache) SetDiscardOrphans(on bool) {
	c.mu.Lock()
	c.discardOrphans = on
	c.mu.Unlock()
}

// Root returns the cache root directory.
func (c *Cache) Root() string { return c.root }

// Version returns the format version mixed into every key.
func (c *Cache) Version() int { return c.version }

// Resolve returns the entry directory for (class, identity), creating it when
// absent. Creation is atomic: when several callers race on the same key,
// exactly one of them sees Created and writes the metadata record. Every call
// refreshes the last-access marker and marks the entry touched.
func (c *Cache) Resolve(class, identity string) (Entry, error) {
	class = strings.TrimSpace(class)
	if class == "" {
		return Entry{}, errors.New("cache: class is empty")
	}
	key := Key(class, c.version, identity)
	dir := filepath.Join(c.root, key)

	created := true
	if err := os.Mkdir(dir, 0o755); err != nil {
		if !errors.Is(err, os.ErrExist) {
			return Entry{}, fmt.Errorf("cache: create entry %s: %w", key, err)
		}
		created = false
	}

	now := c.now()
	meta := EntryMetadata{
		Version:       metadataVersion,
		Class:         class,
		FormatVersion: c.version,
		Identity:      identity,
		CreatedAt:     now.UTC(),
	}
	if created {
		if err := writeMetadata(dir, meta); err != nil {
			_ = os.RemoveAll(dir)
			return Entry{}, err
		}
		c.logger.Debug("cache entry created",
			logging.String("cache_key", key),
			logging.String(logging.FieldNodeClass, class),
		)
	} else if err := c.repairMetadata(dir, key, meta); err != nil {
		return Entry{}, err
	}
	if err := writeLastAccess(dir, now); err != nil {
		return Entry{}, err
	}
	c.Touch(key)
	return Entry{Dir: dir, Key: key, Created: created}, nil
}

// repairMetadata writes the record of an existing entry that has none, as
// left behind when its creator died between creating the directory and
// writing the record.
func (c *Cache) repairMetadata(dir, key string, meta EntryMetadata) error {
	_, present, err := LoadMetadata(dir)
	if err != nil {
		c.logger.Warn("cache metadata unreadable",
			logging.String("cache_key", key),
			logging.Error(err),
		)
		return nil
	}
	if present {
		return nil
	}
	if err := writeMetadata(dir, meta); err != nil {
		return err
	}
	c.logger.Debug("cache metadata restored", logging.String("cache_key", key))
	return nil
}

// Touch marks an entry, by key or directory, as used by the current run.
func (c *Cache) Touch(entry string) {
	name := filepath.Base(entry)
	c.mu.Lock()
	c.touched[name] = struct{}{}
	c.mu.Unlock()
}

// Touched reports whether the entry was touched in this run.
func (c *Cache) Touched(entry string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.touched[filepath.Base(entry)]
	return ok
}

// DiscardReport summarises an orphan sweep.
type DiscardReport struct {
	Removed []string
	Failed  []string
}

// DiscardOrphans removes every file and directory in the root that was not
// touched during this run. Failures are logged per entry and never stop the
// sweep.
func (c *Cache) DiscardOrphans(ctx context.Context) DiscardReport {
	var report DiscardReport
	items, err := os.ReadDir(c.root)
	if err != nil {
		logging.WarnWithContext(c.logger, "cache root unreadable; orphans kept", "cache_discard_failed",
			logging.String("cache_dir", c.root),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on the cache directory"),
		)
		return report
	}

	c.mu.Lock()
	keep := make(map[string]struct{}, len(c.touched))
	for name := range c.touched {
		keep[name] = struct{}{}
	}
	c.mu.Unlock()

	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		name := item.Name()
		if _, ok := keep[name]; ok {
			continue
		}
		path := filepath.Join(c.root, name)
		if err := os.RemoveAll(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logging.WarnWithContext(c.logger, "orphaned cache entry not removed", "cache_orphan_remove_failed",
				logging.String("cache_dir", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "remove the entry manually or fix its permissions"),
				logging.String(logging.FieldImpact, "entry stays on disk until the next sweep"),
			)
			report.Failed = append(report.Failed, path)
			continue
		}
		report.Removed = append(report.Removed, path)
	}
	if len(report.Removed) > 0 {
		c.logger.InfoContext(ctx, "discarded orphaned cache entries",
			logging.Int("removed", len(report.Removed)),
			logging.Int("failed", len(report.Failed)),
		)
	}
	return report
}

// Close ends the run. When orphan discarding is enabled the sweep runs here.
// Close never fails and later calls are no-ops.
func (c *Cache) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	discard := c.discardOrphans
	c.mu.Unlock()

	if !discard {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logging.ErrorWithContext(c.logger, "cache teardown panicked", "cache_teardown_failed",
				logging.Any("panic", r),
			)
		}
	}()
	c.DiscardOrphans(context.Background())
}

// Clear removes every entry in the root, touched or not.
func (c *Cache) Clear(ctx context.Context) (int, error) {
	items, err := os.ReadDir(c.root)
	if err != nil {
		return 0, fmt.Errorf("cache: list root: %w", err)
	}
	removed := 0
	var errs []error
	for _, item := range items {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}
		if err := os.RemoveAll(filepath.Join(c.root, item.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	c.mu.Lock()
	clear(c.touched)
	c.mu.Unlock()
	return removed, errors.Join(errs...)
}

// Stats describes current cache usage.
type Stats struct {
	Root           string         `json:"root"`
	Entries        int            `json:"entries"`
	TotalBytes     int64          `json:"total_bytes"`
	FreeBytes      uint64         `json:"free_bytes"`
	TotalFSBytes   uint64         `json:"total_fs_bytes"`
	FreeRatio      float64        `json:"free_ratio"`
	EntrySummaries []EntrySummary `json:"entry_summaries"`
}

// EntrySummary surfaces what a cache entry holds so the CLI can list it.
type EntrySummary struct {
	Directory  string    `json:"directory"`
	Class      string    `json:"class"`
	Identity   string    `json:"identity"`
	SizeBytes  int64     `json:"size_bytes"`
	CreatedAt  time.Time `json:"created_at"`
	LastAccess time.Time `json:"last_access"`
	HasPayload bool      `json:"has_payload"`
}

// Entries lists the entry directories in the root, most recently used first.
func (c *Cache) Entries() ([]EntrySummary, int64, error) {
	items, err := os.ReadDir(c.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("cache: list root: %w", err)
	}
	summaries := make([]EntrySummary, 0, len(items))
	var total int64
	for _, item := range items {
		if !item.IsDir() || strings.HasPrefix(item.Name(), ".") {
			continue
		}
		path := filepath.Join(c.root, item.Name())
		size, mtime, payload, err := dirSummary(path)
		if err != nil {
			logging.WarnWithContext(c.logger, "cache: skip entry; excluded from stats", "cache_entry_skipped",
				logging.String("cache_dir", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "inspect cache directory permissions or remove the corrupted entry"),
			)
			continue
		}
		summary := EntrySummary{Directory: path, SizeBytes: size, LastAccess: mtime, HasPayload: payload}
		if meta, ok, err := LoadMetadata(path); err == nil && ok {
			summary.Class = meta.Class
			summary.Identity = meta.Identity
			summary.CreatedAt = meta.CreatedAt
		}
		if ts, err := LastAccess(path); err == nil {
			summary.LastAccess = ts
		}
		total += size
		summaries = append(summaries, summary)
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LastAccess.After(summaries[j].LastAccess)
	})
	return summaries, total, nil
}

// Stats returns cache usage and filesystem free-space info.
func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	entries, total, err := c.Entries()
	if err != nil {
		return Stats{}, err
	}
	totalFS, freeFS, err := c.statfs(c.root)
	if err != nil {
		return Stats{}, fmt.Errorf("cache: statfs: %w", err)
	}
	ratio := 1.0
	if totalFS > 0 {
		ratio = float64(freeFS) / float64(totalFS)
	}
	if len(entries) == 0 {
		c.logger.InfoContext(ctx, "cache empty", logging.String("cache_dir", c.root))
	}
	return Stats{
		Root:           c.root,
		Entries:        len(entries),
		TotalBytes:     total,
		FreeBytes:      freeFS,
		TotalFSBytes:   totalFS,
		FreeRatio:      ratio,
		EntrySummaries: entries,
	}, nil
}

func dirSummary(path string) (int64, time.Time, bool, error) {
	var (
		size    int64
		latest  time.Time
		payload bool
	)
	err := filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
			name := d.Name()
			if name != metadataFileName && name != lastAccessName && !strings.Contains(name, ".partial") {
				payload = true
			}
		}
		if info.ModTime().After(latest) {
			latest = info.ModTime()
		}
		return nil
	})
	if err != nil {
		return 0, time.Time{}, false, err
	}
	return size, latest, payload, nil
}

func realStatfs(path string) (uint64, uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, 0, err
	}
	return st.Blocks * uint64(st.Bsize), st.Bavail * uint64(st.Bsize), nil
}
