// Package report renders crawl reports.
//
// This package contains writers for different output formats:
//   - SimpleWriter: human-readable text for terminal display
//   - JSONWriter: the bare result object, the shape the HTTP front end serves
//   - FullJSONWriter: the whole report with stats, wrapped with the version
//   - MarkdownWriter: a Markdown document for sharing
//
// Every writer can also render the difference between two archived
// reports of the same seed. Writers implement the Writer interface and can
// be combined with MultiWriter.
package report
