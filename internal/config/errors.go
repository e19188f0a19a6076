package config

import "errors"

// Configuration errors returned by Config.Validate, Config.ValidateCrawl
// and LoadConfigFile. Callers match them with errors.Is.
var (
	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")

	// ErrInvalidConfigFile is returned when the configuration file is not valid YAML
	// or does not match the expected structure.
	ErrInvalidConfigFile = errors.New("invalid configuration file")

	// ErrInvalidSiteKey is returned for a sites entry that is neither an
	// http(s) seed URL nor a bare host name.
	ErrInvalidSiteKey = errors.New("invalid site key: must be an http(s) URL or a host name")

	// ErrInvalidSiteDelay is returned when a site or the defaults set a negative delay.
	ErrInvalidSiteDelay = errors.New("invalid site delay: must be non-negative")

	// ErrInvalidSiteHeader is returned when a site or the defaults set a header with an empty name.
	ErrInvalidSiteHeader = errors.New("invalid site header: name must not be empty")

	// ErrNoSeed is returned when the crawl command receives no seed URL.
	ErrNoSeed = errors.New("no seed specified: provide at least one URL to crawl")

	// ErrInvalidWorkers is returned when the worker pool size is not positive.
	ErrInvalidWorkers = errors.New("invalid workers: must be positive")

	// ErrInvalidTimeout is returned when the crawl timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidGracePeriod is returned when the grace period is negative.
	ErrInvalidGracePeriod = errors.New("invalid grace period: must be non-negative")

	// ErrInvalidFetchTimeout is returned when the per-fetch timeout is not positive.
	ErrInvalidFetchTimeout = errors.New("invalid fetch timeout: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidRatePolicy is returned for a rate policy other than "delay" or "shared".
	ErrInvalidRatePolicy = errors.New(`invalid rate policy: must be "delay" or "shared"`)

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidCrawlDelay is returned when the crawl delay is negative.
	// Use 0 for no delay between requests.
	ErrInvalidCrawlDelay = errors.New("invalid crawl delay: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// Use 0 for the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")
)
