package clip

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/sausix/scriptycut/internal/cache"
	"github.com/sausix/scriptycut/internal/config"
	"github.com/sausix/scriptycut/internal/formats"
	"github.com/sausix/scriptycut/internal/logging"
	"github.com/sausix/scriptycut/internal/media/ffprobe"
)

// Prober inspects media files.
type Prober interface {
	Probe(ctx context.Context, path string) (ffprobe.Result, error)
}

// Context is the arena every node is built in. It replaces process-wide
// state: the cache, the prober, and naming counters all live here.
type Context struct {
	cache   *cache.Cache
	prober  Prober
	fpsHint formats.Rate
	size    Size
	logger  *slog.Logger

	mu    sync.Mutex
	names map[string]int
}

// Option configures a Context.
type Option func(*Context)

// WithFPSHint sets the frame rate used when a node has none of its own.
func WithFPSHint(rate formats.Rate) Option {
	return func(cx *Context) {
		if !rate.IsZero() {
			cx.fpsHint = rate
		}
	}
}

// WithDefaultSize sets the resolution assumed for sequences without a master.
func WithDefaultSize(size Size) Option {
	return func(cx *Context) {
		if !size.IsZero() {
			cx.size = size
		}
	}
}

// WithLogger routes construction logs.
func WithLogger(logger *slog.Logger) Option {
	return func(cx *Context) {
		cx.logger = logging.NewComponentLogger(logger, "clip")
	}
}

// NewContext returns an arena bound to store and prober.
func NewContext(store *cache.Cache, prober Prober, opts ...Option) *Context {
	cx := &Context{
		cache:   store,
		prober:  prober,
		fpsHint: formats.Rate{Num: 30, Den: 1},
		size:    Size{Width: 1920, Height: 1080},
		logger:  logging.NewComponentLogger(nil, "clip"),
		names:   make(map[string]int),
	}
	for _, opt := range opts {
		opt(cx)
	}
	return cx
}

// NewContextFromConfig builds an arena using the render defaults in cfg.
func NewContextFromConfig(cfg *config.Config, store *cache.Cache, prober Prober, logger *slog.Logger) *Context {
	return NewContext(store, prober,
		WithFPSHint(cfg.FPSHint()),
		WithDefaultSize(Size{Width: cfg.Render.Width, Height: cfg.Render.Height}),
		WithLogger(logger),
	)
}

// Cache returns the cache nodes resolve their entries in.
func (cx *Context) Cache() *cache.Cache { return cx.cache }

// FPSHint returns the default frame rate.
func (cx *Context) FPSHint() formats.Rate { return cx.fpsHint }

// DefaultSize returns the fallback resolution.
func (cx *Context) DefaultSize() Size { return cx.size }

// Logger returns the clip component logger.
func (cx *Context) Logger() *slog.Logger { return cx.logger }

// Name returns prefix followed by a per-prefix counter starting at 1.
func (cx *Context) Name(prefix string) string {
	cx.mu.Lock()
	defer cx.mu.Unlock()
	cx.names[prefix]++
	return prefix + strconv.Itoa(cx.names[prefix])
}

// finish computes the identity of n and resolves its cache entry.
func (cx *Context) finish(n *node) error {
	n.identity = formatIdentity(n.class, n.flags, n.data)
	if cx.cache == nil {
		return fmt.Errorf("clip: %s: context has no cache", n.class)
	}
	entry, err := cx.cache.Resolve(n.class, n.identity)
	if err != nil {
		return fmt.Errorf("clip: %s: %w", n.class, err)
	}
	n.entry = entry
	cx.logger.Debug("clip node resolved",
		logging.String(logging.FieldNodeClass, n.class),
		logging.String("cache_key", entry.Key),
		logging.String("flags", n.flags.String()),
		logging.Float64("duration_seconds", n.duration),
	)
	return nil
}
