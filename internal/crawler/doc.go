// Package crawler discovers the images and favicons of a website.
//
// # Architecture
//
// The package is built around the Spider type, which drives a crawl from a
// seed URL to a quiescent, aggregated result. A crawl is made of small
// pieces that each own exactly one concern:
//
//   - Fetcher: turns a URL into a parsed Document (HTTPFetcher over net/http)
//   - Extract: pulls image, favicon and anchor URLs out of a Document
//   - Frontier: the set of claimed URLs, with an atomic TryClaim
//   - Limiter: delays each fetch (fixed delay or shared token bucket)
//   - Pool: bounded worker slots with unbounded, recursive task submission
//   - Aggregator: the deduplicated set of discovered image URLs
//
// Only the Frontier claim and the Aggregator merge are synchronized, and
// each lock covers a single map update. Fetching, extraction and scheduling
// run in parallel on the pool.
//
// # Scope
//
// A discovered link is followed only when its absolute form starts with the
// seed URL string. This is a literal prefix match, not a host comparison:
// "http://example.com" also matches "http://example.com-mirror.net".
//
// # Usage
//
//	fetcher := crawler.NewHTTPFetcher(crawler.WithUserAgent("imagefinder"))
//	spider := crawler.NewSpider(fetcher, crawler.WithWorkers(4))
//	report, err := spider.Crawl(ctx, "https://example.com/")
//	if errors.Is(err, crawler.ErrSeedUnreachable) {
//		// the crawl could not start
//	}
package crawler
