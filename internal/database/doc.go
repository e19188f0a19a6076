// Package database provides the SQLite archive of finished crawls.
//
// Every saved crawl is stored as a JSON report together with summary
// columns (counts and a BLAKE2b fingerprint of the result), so history
// listings never have to decode full reports and unchanged results can be
// spotted by comparing fingerprints. A second table keeps one row per
// discovered URL with first and last sighting times.
//
// Only finished results are stored; an interrupted crawl cannot be resumed
// from the archive.
//
// The driver is modernc.org/sqlite, a CGO-free SQLite implementation, so
// the archive is a single file that cross-compiles with the binary.
package database
