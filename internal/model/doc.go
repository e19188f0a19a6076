// Package model defines the data structures shared by the crawler, the
// report writers, the result archive and the HTTP front end.
//
// This package contains the following main types:
//   - CrawlResult: The categorized, deduplicated image and favicon URLs
//   - CrawlStats: Counters describing how a crawl went
//   - CrawlReport: A finished crawl with its seed, timing, result and stats
//
// The types serialize to JSON for report output and database storage.
package model
