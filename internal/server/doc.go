// Package server exposes crawling over HTTP.
//
// The only endpoint is POST /main with a "url" form or query parameter.
// The seed is crawled synchronously and the response body is the result
// object {"images": [...], "favicons": [...]} with Content-Type text/json.
//
// Status codes:
//   - 400 when url is missing or not an absolute http(s) URL
//   - 405 for methods other than POST
//   - 502 when the seed page itself could not be fetched
//   - 500 for anything else that prevented the crawl
//
// Error bodies are {"error": "..."}.
package server
