package config

import (
	"path/filepath"
	"runtime"
	"time"

	"github.com/adrg/xdg"
)

// Rate policies accepted by Config.RatePolicy.
const (
	// RatePolicyDelay sleeps a fixed interval before every fetch. Each worker
	// waits on its own, so the effective request rate grows with the pool size.
	RatePolicyDelay = "delay"

	// RatePolicyShared spreads one token per interval across all workers,
	// so the whole crawl issues at most one request per interval.
	RatePolicyShared = "shared"
)

// Default configuration values.
const (
	// DefaultCrawlDelay is the wait before each fetch. One second keeps a
	// single crawl polite toward small sites.
	DefaultCrawlDelay = 1 * time.Second

	// DefaultRatePolicy is the limiter used when none is configured.
	DefaultRatePolicy = RatePolicyDelay

	// DefaultCrawlTimeout bounds a whole crawl, from seed submission to quiescence.
	DefaultCrawlTimeout = 60 * time.Minute

	// DefaultGracePeriod is how long in-flight tasks may keep running after
	// the crawl timeout fires before partial results are returned anyway.
	DefaultGracePeriod = 60 * time.Second

	// DefaultFetchTimeout bounds a single page fetch.
	DefaultFetchTimeout = 30 * time.Second

	// DefaultBatchSize is the number of seeds crawled concurrently.
	DefaultBatchSize = 2

	// DefaultAddr is the listen address of the HTTP front end.
	DefaultAddr = ":8080"

	// AppName is the application name used for XDG directory paths.
	AppName = "imagefinder"

	// DefaultUserAgent identifies imagefinder in HTTP requests.
	DefaultUserAgent = "imagefinder/1.0 (+https://github.com/nao1215/imagefinder)"

	// DefaultMaxBodySize limits the response body read per page.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB
)

// DefaultWorkers returns the default worker pool size: one less than the
// number of CPUs, but at least one.
func DefaultWorkers() int {
	return max(runtime.NumCPU()-1, 1)
}

// Config holds all configuration options for imagefinder.
// It is populated from CLI flags and the optional config file, then passed
// down explicitly; there is no global configuration state.
type Config struct {
	// Workers is the size of the worker pool, i.e. the maximum number of
	// pages fetched at the same time within one crawl.
	Workers int

	// CrawlDelay is the rate-limit interval applied before each fetch.
	// Zero disables rate limiting.
	CrawlDelay time.Duration

	// RatePolicy selects how CrawlDelay is applied: RatePolicyDelay or RatePolicyShared.
	RatePolicy string

	// CrawlTimeout bounds the whole crawl of a single seed.
	CrawlTimeout time.Duration

	// GracePeriod is how long to wait for in-flight work after CrawlTimeout.
	GracePeriod time.Duration

	// FetchTimeout bounds each individual page fetch.
	FetchTimeout time.Duration

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes to read.
	// Set to 0 to use the default (5MB).
	MaxBodySize int64

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// BatchSize is the number of seeds crawled concurrently when several
	// seeds are given on the command line.
	BatchSize int

	// Addr is the listen address used by the serve command.
	Addr string

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .imagefinder in the current directory
	// and then in the user's home directory.
	ConfigFilePath string

	// SiteConfigs holds site-specific configurations loaded from the config file.
	SiteConfigs *File

	// JSONReport outputs the crawl result as JSON.
	// Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport outputs a GitHub Flavored Markdown report.
	// Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for the report.
	// When set, the report is written to this file instead of stdout.
	ReportFile string

	// Seeds is the list of seed URLs to crawl.
	Seeds []string

	// DBDir is the directory path for storing the SQLite archive.
	// Defaults to XDG data directory (~/.local/share/imagefinder on Linux).
	DBDir string

	// SaveToDB indicates whether finished crawl reports are archived.
	SaveToDB bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Workers:      DefaultWorkers(),
		CrawlDelay:   DefaultCrawlDelay,
		RatePolicy:   DefaultRatePolicy,
		CrawlTimeout: DefaultCrawlTimeout,
		GracePeriod:  DefaultGracePeriod,
		FetchTimeout: DefaultFetchTimeout,
		UserAgent:    DefaultUserAgent,
		MaxBodySize:  DefaultMaxBodySize,
		BatchSize:    DefaultBatchSize,
		Addr:         DefaultAddr,
		DBDir:        XDGDataDir(),
		SaveToDB:     true,
	}
}

// XDGDataDir returns the XDG data directory for imagefinder.
// On Linux: ~/.local/share/imagefinder
// On macOS: ~/Library/Application Support/imagefinder
// On Windows: %LOCALAPPDATA%\imagefinder
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for imagefinder.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the crawl tuning values shared by every command.
// It returns the first problem found as a sentinel error.
func (c *Config) Validate() error {
	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}

	// A zero delay is allowed and disables rate limiting
	if c.CrawlDelay < 0 {
		return ErrInvalidCrawlDelay
	}

	if c.RatePolicy != RatePolicyDelay && c.RatePolicy != RatePolicyShared {
		return ErrInvalidRatePolicy
	}

	if c.CrawlTimeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.GracePeriod < 0 {
		return ErrInvalidGracePeriod
	}

	if c.FetchTimeout <= 0 {
		return ErrInvalidFetchTimeout
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	return nil
}

// ValidateCrawl checks the configuration of the crawl command:
// everything Validate checks plus seeds, batch size and report format.
func (c *Config) ValidateCrawl() error {
	if len(c.Seeds) == 0 {
		return ErrNoSeed
	}

	if err := c.Validate(); err != nil {
		return err
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	return nil
}
