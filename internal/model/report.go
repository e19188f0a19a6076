package model

import (
	"time"
)

// CrawlStats holds counters collected while a crawl runs.
type CrawlStats struct {
	// PagesFetched is the number of pages fetched and parsed successfully.
	PagesFetched int64 `json:"pages_fetched"`

	// PagesFailed is the number of claimed pages whose fetch failed.
	PagesFailed int64 `json:"pages_failed"`

	// URLsClaimed is the number of distinct URLs claimed for fetching,
	// including the seed.
	URLsClaimed int64 `json:"urls_claimed"`

	// LinksOutOfScope is the number of discovered links that did not start
	// with the seed URL and were therefore not followed.
	LinksOutOfScope int64 `json:"links_out_of_scope"`

	// TasksDropped is the number of tasks abandoned because the crawl was
	// shutting down: rejected on submit, still waiting for a slot, or
	// interrupted while waiting for the rate limiter or fetching.
	TasksDropped int64 `json:"tasks_dropped"`

	// Duration is the wall-clock time of the crawl.
	Duration time.Duration `json:"duration"`

	// TimedOut is true when the crawl stopped before reaching quiescence
	// because of the crawl timeout or an external cancellation.
	// The result then holds whatever was collected up to that point.
	TimedOut bool `json:"timed_out"`
}

// CrawlReport is a finished crawl of one seed URL.
type CrawlReport struct {
	// Seed is the URL the crawl started from. It is also the scope prefix.
	Seed string `json:"seed"`

	// StartedAt is when the crawl started.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the crawl returned.
	FinishedAt time.Time `json:"finished_at"`

	// Result is the categorized list of discovered image URLs.
	Result CrawlResult `json:"result"`

	// Stats describes the crawl.
	Stats CrawlStats `json:"stats"`

	// Error is the reason the crawl could not start (for example the seed
	// was unreachable). Empty when the seed page was fetched.
	Error string `json:"error,omitempty"`

	// PerformedSteps lists the pipeline steps that ran for this report.
	PerformedSteps []string `json:"performed_steps,omitempty"`
}

// NewCrawlReport creates an empty report for the given seed.
func NewCrawlReport(seed string) *CrawlReport {
	return &CrawlReport{
		Seed:           seed,
		StartedAt:      time.Now(),
		Result:         NewCrawlResult(),
		PerformedSteps: make([]string, 0),
	}
}

// Failed reports whether the crawl could not start.
func (r *CrawlReport) Failed() bool {
	return r.Error != ""
}

// Status returns a short human-readable status for the report.
func (r *CrawlReport) Status() string {
	switch {
	case r.Failed():
		return "failed"
	case r.Stats.TimedOut:
		return "partial"
	default:
		return "complete"
	}
}
