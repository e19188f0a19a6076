package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nao1215/imagefinder/internal/config"
	"github.com/nao1215/imagefinder/internal/model"
)

// Spider crawls a website from a seed URL and collects its images and favicons.
// A Spider holds only configuration; all crawl state lives in a single Crawl
// call, so one Spider can run several crawls concurrently.
type Spider struct {
	// fetcher retrieves and parses pages.
	fetcher Fetcher

	// limiter paces fetches. It is shared by all crawls of this Spider
	// unless newLimiter is set.
	limiter Limiter

	// newLimiter, when set, builds a fresh limiter for every crawl.
	newLimiter func() Limiter

	// workers is the worker pool size per crawl.
	workers int

	// crawlTimeout bounds a whole crawl.
	crawlTimeout time.Duration

	// gracePeriod is how long in-flight tasks may run after the crawl
	// timeout before partial results are returned.
	gracePeriod time.Duration

	logger *slog.Logger
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithWorkers sets the worker pool size. Non-positive values are ignored.
func WithWorkers(n int) SpiderOption {
	return func(s *Spider) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithLimiter sets the limiter shared by every crawl of the Spider.
func WithLimiter(l Limiter) SpiderOption {
	return func(s *Spider) {
		s.limiter = l
		s.newLimiter = nil
	}
}

// WithLimiterFactory builds a new limiter for each crawl, so that a shared
// token bucket is shared only among the workers of one crawl.
func WithLimiterFactory(newLimiter func() Limiter) SpiderOption {
	return func(s *Spider) {
		s.newLimiter = newLimiter
	}
}

// WithDelay is shorthand for WithLimiter(NewDelayLimiter(d)).
func WithDelay(d time.Duration) SpiderOption {
	return WithLimiter(NewDelayLimiter(d))
}

// WithCrawlTimeout sets the overall crawl timeout.
func WithCrawlTimeout(d time.Duration) SpiderOption {
	return func(s *Spider) {
		if d > 0 {
			s.crawlTimeout = d
		}
	}
}

// WithGracePeriod sets how long to wait for in-flight tasks after the crawl timeout.
func WithGracePeriod(d time.Duration) SpiderOption {
	return func(s *Spider) {
		if d >= 0 {
			s.gracePeriod = d
		}
	}
}

// WithLogger sets the logger used for per-page events.
func WithLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSpider creates a Spider that fetches pages with fetcher.
func NewSpider(fetcher Fetcher, opts ...SpiderOption) *Spider {
	s := &Spider{
		fetcher:      fetcher,
		limiter:      NewDelayLimiter(config.DefaultCrawlDelay),
		workers:      config.DefaultWorkers(),
		crawlTimeout: config.DefaultCrawlTimeout,
		gracePeriod:  config.DefaultGracePeriod,
		logger:       slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// RunCrawl crawls seed and returns only the aggregated result.
// The error semantics are those of Crawl.
func (s *Spider) RunCrawl(ctx context.Context, seed string) (model.CrawlResult, error) {
	report, err := s.Crawl(ctx, seed)
	if report == nil {
		return model.NewCrawlResult(), err
	}
	return report.Result, err
}

// Crawl fetches seed, then every page reachable from it whose URL starts
// with seed, and aggregates the images and favicons found on all of them.
//
// Crawl returns once no task is pending. If the crawl timeout elapses or
// ctx is cancelled first, scheduling stops, in-flight work is cancelled and
// given the grace period to finish, and the partial result is returned with
// Stats.TimedOut set.
//
// The returned error wraps ErrInvalidSeed for a malformed seed and
// ErrSeedUnreachable when the seed page itself could not be fetched; in the
// latter case the (empty) report is returned as well. Failures of other
// pages are logged and counted but never returned.
func (s *Spider) Crawl(ctx context.Context, seed string) (*model.CrawlReport, error) {
	if err := validateSeed(seed); err != nil {
		return nil, err
	}

	report := model.NewCrawlReport(seed)
	start := time.Now()

	crawlCtx, cancel := context.WithTimeout(ctx, s.crawlTimeout)
	defer cancel()

	limiter := s.limiter
	if s.newLimiter != nil {
		limiter = s.newLimiter()
	}

	c := &crawl{
		seed:       seed,
		fetcher:    s.fetcher,
		limiter:    limiter,
		logger:     s.logger.With("seed", seed),
		frontier:   NewFrontier(),
		aggregator: NewAggregator(),
		pool:       NewPool(crawlCtx, s.workers),
	}

	c.frontier.TryClaim(seed)
	c.submit(seed)

	// inTime is written before done is closed and read only after.
	var inTime bool
	done := make(chan struct{})
	go func() {
		c.pool.Wait()
		inTime = crawlCtx.Err() == nil
		close(done)
	}()

	timedOut := true
	select {
	case <-done:
		timedOut = !inTime
	case <-crawlCtx.Done():
		c.pool.Close()
		if c.waitGrace(done, s.gracePeriod) {
			timedOut = !inTime
		}
	}

	report.Result = c.aggregator.Snapshot()
	report.FinishedAt = time.Now()
	report.Stats = c.stats(timedOut, time.Since(start))

	if err := c.seedError(); err != nil {
		report.Error = err.Error()
		return report, fmt.Errorf("%w: %s: %w", ErrSeedUnreachable, seed, err)
	}

	s.logger.Debug("crawl finished",
		"seed", seed,
		"images", len(report.Result.Images),
		"favicons", len(report.Result.Favicons),
		"pages", report.Stats.PagesFetched,
		"timed_out", report.Stats.TimedOut,
	)

	return report, nil
}

// validateSeed checks that seed is an absolute http or https URL.
func validateSeed(seed string) error {
	u, err := url.Parse(seed)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSeed, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: %q", ErrInvalidSeed, seed)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: %q has no host", ErrInvalidSeed, seed)
	}
	return nil
}

// crawl is the state of one Crawl call.
type crawl struct {
	seed       string
	fetcher    Fetcher
	limiter    Limiter
	logger     *slog.Logger
	frontier   *Frontier
	aggregator *Aggregator
	pool       *Pool

	fetched    atomic.Int64
	failed     atomic.Int64
	outOfScope atomic.Int64

	// interrupted counts tasks that started but were cut short by shutdown.
	interrupted atomic.Int64

	seedDone atomic.Bool

	mu      sync.Mutex
	seedErr error
}

func (c *crawl) submit(pageURL string) {
	if !c.pool.Submit(func(ctx context.Context) { c.visit(ctx, pageURL) }) {
		c.logger.Debug("task dropped", "url", pageURL)
	}
}

// visit is the task body for one claimed URL.
func (c *crawl) visit(ctx context.Context, pageURL string) {
	isSeed := pageURL == c.seed

	if err := c.limiter.Wait(ctx); err != nil {
		c.interrupted.Add(1)
		if isSeed {
			c.setSeedErr(err)
		}
		return
	}

	doc, err := c.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		if isSeed {
			c.setSeedErr(err)
		}
		if ctx.Err() != nil {
			c.interrupted.Add(1)
			c.logger.Debug("fetch interrupted", "url", pageURL, "error", err)
			return
		}
		c.failed.Add(1)
		c.logger.Warn("fetch failed", "url", pageURL, "error", err)
		return
	}
	c.fetched.Add(1)
	if isSeed {
		c.seedDone.Store(true)
	}
	if final := doc.URL().String(); final != pageURL {
		c.logger.Debug("followed redirect", "url", pageURL, "final_url", final)
	}

	found := Extract(doc)
	c.aggregator.Merge(found.Images, found.Favicons)

	var followed int
	for _, link := range found.Links {
		if !strings.HasPrefix(link, c.seed) {
			c.outOfScope.Add(1)
			continue
		}
		if !c.frontier.TryClaim(link) {
			continue
		}
		followed++
		c.submit(link)
	}

	c.logger.Debug("page crawled",
		"url", pageURL,
		"images", len(found.Images),
		"favicons", len(found.Favicons),
		"links", len(found.Links),
		"followed", followed,
	)
}

func (c *crawl) setSeedErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seedErr = err
}

// seedError returns why the seed was not fetched, or nil if it was.
func (c *crawl) seedError() error {
	if c.seedDone.Load() {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seedErr != nil {
		return c.seedErr
	}
	// The seed task was dropped or is still running after the grace period.
	return errors.New("seed was not fetched before the crawl ended")
}

// waitGrace waits for done, but no longer than grace.
// It reports whether the pool drained in time.
func (c *crawl) waitGrace(done <-chan struct{}, grace time.Duration) bool {
	select {
	case <-done:
		return true
	default:
	}

	c.logger.Warn("crawl interrupted, waiting for in-flight tasks",
		"pending_tasks", c.pool.Pending(), "grace_period", grace)

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-done:
		return true
	case <-timer.C:
		c.logger.Warn("grace period elapsed, returning partial results",
			"pending_tasks", c.pool.Pending())
		return false
	}
}

func (c *crawl) stats(timedOut bool, elapsed time.Duration) model.CrawlStats {
	return model.CrawlStats{
		PagesFetched:    c.fetched.Load(),
		PagesFailed:     c.failed.Load(),
		URLsClaimed:     int64(c.frontier.Len()),
		LinksOutOfScope: c.outOfScope.Load(),
		TasksDropped:    c.pool.Dropped() + c.interrupted.Load(),
		Duration:        elapsed,
		TimedOut:        timedOut,
	}
}
