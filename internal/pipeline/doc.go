// Package pipeline runs a crawl and its follow-up work as a sequence of steps.
//
// A crawl of one seed goes through a Pipeline: CrawlStep fills the report
// with the crawl result, and SaveStep archives it. Each step receives the
// same *model.CrawlReport and records its name in PerformedSteps, so front
// ends can assemble the steps they need (the HTTP server skips archiving
// when no database is configured, for example).
//
// BatchProcessor crawls several seeds concurrently with errgroup, creating a
// fresh pipeline per seed so per-site settings never leak between crawls.
package pipeline
