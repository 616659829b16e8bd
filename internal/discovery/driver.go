package discovery

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/nao1215/webspider/internal/model"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultConcurrency is the number of Crawl calls running at once.
	DefaultConcurrency = 10

	// DefaultMaxDepth is the number of levels expanded below the seeds.
	DefaultMaxDepth = 10

	// DefaultMaxRequests caps the number of distinct requests in a scan.
	DefaultMaxRequests = 1000
)

// Crawler expands one request at a time.
type Crawler interface {
	Crawl(ctx context.Context, seed *model.FuzzableRequest) ([]*model.FuzzableRequest, error)
	End() []model.BrokenLink
	Stats() model.SpiderStats
	InScope(u *url.URL) bool
}

// Driver runs a breadth-first crawl.
type Driver struct {
	crawler     Crawler
	concurrency int
	maxDepth    int
	maxRequests int
	logger      *slog.Logger
	onLevel     func(depth, size int)
}

// Option configures a Driver.
type Option func(*Driver)

// WithConcurrency sets how many Crawl calls run at once.
func WithConcurrency(n int) Option {
	return func(d *Driver) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// WithMaxDepth sets how many levels below the seeds are expanded.
// Zero expands only the seeds.
func WithMaxDepth(n int) Option {
	return func(d *Driver) {
		if n >= 0 {
			d.maxDepth = n
		}
	}
}

// WithMaxRequests caps the number of distinct requests.
func WithMaxRequests(n int) Option {
	return func(d *Driver) {
		if n > 0 {
			d.maxRequests = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) {
		d.logger = logger
	}
}

// WithLevelHook registers a function called before each level is expanded.
func WithLevelHook(fn func(depth, size int)) Option {
	return func(d *Driver) {
		d.onLevel = fn
	}
}

// New creates a Driver around c.
func New(c Crawler, opts ...Option) *Driver {
	d := &Driver{
		crawler:     c,
		concurrency: DefaultConcurrency,
		maxDepth:    DefaultMaxDepth,
		maxRequests: DefaultMaxRequests,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

// Run crawls from seeds and returns the scan report. Seeds count as discovered
// requests. On cancellation the partial report is returned with ctx.Err().
func (d *Driver) Run(ctx context.Context, seeds []*model.FuzzableRequest) (*model.ScanReport, error) {
	targets := make([]string, 0, len(seeds))
	for _, s := range seeds {
		targets = append(targets, s.URLString())
	}
	report := model.NewScanReport(targets)

	seen := make(map[string]struct{})
	enqueue := func(fr *model.FuzzableRequest, level []*model.FuzzableRequest) []*model.FuzzableRequest {
		if len(seen) >= d.maxRequests {
			return level
		}
		key := fr.Key()
		if _, ok := seen[key]; ok {
			return level
		}
		seen[key] = struct{}{}
		report.Requests = append(report.Requests, fr)
		return append(level, fr)
	}

	var level []*model.FuzzableRequest
	for _, s := range seeds {
		level = enqueue(s, level)
	}

	d.logger.Info("starting crawl",
		"seeds", len(level),
		"concurrency", d.concurrency,
		"max_depth", d.maxDepth,
		"max_requests", d.maxRequests,
	)

	var runErr error
	for depth := 0; len(level) > 0 && depth <= d.maxDepth; depth++ {
		if d.onLevel != nil {
			d.onLevel(depth, len(level))
		}
		d.logger.Debug("expanding level", "depth", depth, "requests", len(level))

		found := d.expand(ctx, level)
		if err := ctx.Err(); err != nil {
			runErr = err
		}

		var next []*model.FuzzableRequest
		for _, frs := range found {
			for _, fr := range frs {
				if fr.URL == nil || !d.crawler.InScope(fr.URL) {
					continue
				}
				next = enqueue(fr, next)
			}
		}

		if runErr != nil {
			d.logger.Warn("crawl cancelled, returning partial results", "depth", depth)
			break
		}
		if len(seen) >= d.maxRequests {
			d.logger.Info("request limit reached", "max_requests", d.maxRequests)
		}
		level = next
	}

	report.BrokenLinks = d.crawler.End()
	report.Stats = d.crawler.Stats()
	report.FinishedAt = time.Now()
	report.Cancelled = runErr != nil

	d.logger.Info("crawl complete",
		"requests", len(report.Requests),
		"broken_links", len(report.BrokenLinks),
		"elapsed", report.Duration(),
	)
	return report, runErr
}

// expand crawls every request of a level. The results keep the level order.
func (d *Driver) expand(ctx context.Context, level []*model.FuzzableRequest) [][]*model.FuzzableRequest {
	found := make([][]*model.FuzzableRequest, len(level))

	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for i, fr := range level {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			res, err := d.crawler.Crawl(ctx, fr)
			if err != nil {
				d.logger.Debug("crawl interrupted", "request", fr.String(), "error", err)
			}
			// Each goroutine owns its own slot.
			found[i] = res
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // tasks never fail
	return found
}
