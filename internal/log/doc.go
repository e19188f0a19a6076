// Package log provides structured logging for imagefinder on top of log/slog,
// with automatic masking of credentials that crawl requests may carry.
//
// Crawls can be configured with cookies and custom headers (for example an
// Authorization header for a staging site), and crawled URLs sometimes carry
// session tokens in their query string. SecureHandler keeps those values out
// of log output:
//   - attributes whose key names a credential (cookie, authorization, token, ...)
//   - values that look like a credential (bearer/basic auth, JWTs, key material)
//   - passwords embedded in URLs and sensitive URL query parameters
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Warn("fetch failed",
//	    "url", "https://example.com/cart?sessionid=abc123", // sessionid is masked
//	    "cookie", "session=abc123",                          // fully masked
//	)
//	slog.SetDefault(logger)
package log
