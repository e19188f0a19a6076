package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nao1215/imagefinder/internal/config"
	"github.com/nao1215/imagefinder/internal/crawler"
	"github.com/nao1215/imagefinder/internal/model"
)

// Step names recorded in CrawlReport.PerformedSteps and StepError.
const (
	CrawlStepName = "crawl"
	SaveStepName  = "save"
)

// Crawler runs a crawl of one seed. *crawler.Spider implements it.
type Crawler interface {
	Crawl(ctx context.Context, seed string) (*model.CrawlReport, error)
}

// CrawlStep crawls the report's seed and copies the outcome into the report.
type CrawlStep struct {
	crawler Crawler
}

// NewCrawlStep creates a crawl step backed by c.
func NewCrawlStep(c Crawler) *CrawlStep {
	return &CrawlStep{crawler: c}
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return CrawlStepName
}

// Do crawls report.Seed. An unreachable seed is returned as an error
// (wrapping crawler.ErrSeedUnreachable) after the report has been filled.
// Any failure marks the report as failed.
func (s *CrawlStep) Do(ctx context.Context, report *model.CrawlReport) error {
	result, err := s.crawler.Crawl(ctx, report.Seed)
	if result != nil {
		report.StartedAt = result.StartedAt
		report.FinishedAt = result.FinishedAt
		report.Result = result.Result
		report.Stats = result.Stats
		report.Error = result.Error
	}
	if err != nil && report.Error == "" {
		report.Error = err.Error()
	}
	return err
}

// ReportSaver persists a finished report. *database.CrawlDB implements it.
type ReportSaver interface {
	SaveReport(ctx context.Context, report *model.CrawlReport) (int64, error)
}

// SaveStep archives the report.
type SaveStep struct {
	saver  ReportSaver
	logger *slog.Logger
}

// NewSaveStep creates a save step writing to saver.
func NewSaveStep(saver ReportSaver, logger *slog.Logger) *SaveStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &SaveStep{saver: saver, logger: logger}
}

// Name returns the step name.
func (s *SaveStep) Name() string {
	return SaveStepName
}

// Do stores the report. Failed crawls are not archived and yield ErrSkipped.
func (s *SaveStep) Do(ctx context.Context, report *model.CrawlReport) error {
	if report.Failed() {
		return ErrSkipped
	}

	id, err := s.saver.SaveReport(ctx, report)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	s.logger.Debug("report saved", "seed", report.Seed, "id", id)
	return nil
}

// NewSpider builds a Spider for seed from cfg, applying the seed's site
// configuration (headers, cookie, user agent, delay) when a config file
// was loaded.
func NewSpider(cfg *config.Config, seed string, logger *slog.Logger) (*crawler.Spider, error) {
	userAgent := cfg.UserAgent
	delay := cfg.CrawlDelay
	var headers map[string]string
	var cookie string

	if cfg.SiteConfigs != nil {
		site := cfg.SiteConfigs.GetSiteConfig(seed)
		headers = site.Headers
		cookie = site.Cookie
		if site.UserAgent != "" {
			userAgent = site.UserAgent
		}
		if site.Delay > 0 {
			delay = site.Delay
		}
	}

	// Build once to validate the policy; the factory below cannot fail.
	if _, err := crawler.NewLimiter(cfg.RatePolicy, delay); err != nil {
		return nil, err
	}
	newLimiter := func() crawler.Limiter {
		l, _ := crawler.NewLimiter(cfg.RatePolicy, delay) //nolint:errcheck // validated above
		return l
	}

	fetcher := crawler.NewHTTPFetcher(
		crawler.WithUserAgent(userAgent),
		crawler.WithHeaders(headers),
		crawler.WithCookie(cookie),
		crawler.WithMaxBodySize(cfg.MaxBodySize),
		crawler.WithFetchTimeout(cfg.FetchTimeout),
	)

	return crawler.NewSpider(fetcher,
		crawler.WithWorkers(cfg.Workers),
		crawler.WithLimiterFactory(newLimiter),
		crawler.WithCrawlTimeout(cfg.CrawlTimeout),
		crawler.WithGracePeriod(cfg.GracePeriod),
		crawler.WithLogger(logger),
	), nil
}
