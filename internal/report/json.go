package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/nao1215/imagefinder/internal/model"
)

// JSONWriter outputs the crawl result as JSON: an object with exactly the
// "images" and "favicons" keys. Diffs are written as a DiffReport.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	indent bool

	indentPrefix string
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with two-space indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the report's result.
func (w *JSONWriter) Write(report *model.CrawlReport) (int, error) {
	return w.writeJSON(report.Result.Normalize())
}

// WriteDiff outputs the difference between two reports.
func (w *JSONWriter) WriteDiff(older, newer *model.CrawlReport) (int, error) {
	return w.writeJSON(NewDiffReport(older, newer))
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return 0, err
	}

	// Add trailing newline for better terminal output
	data = append(data, '\n')

	return w.output.Write(data)
}

// JSONReport wraps a full report with the version that produced it.
type JSONReport struct {
	// Version is the imagefinder version that generated this report.
	Version string `json:"version"`

	// Status is "complete", "partial" or "failed".
	Status string `json:"status"`

	// Report is the full crawl report.
	Report *model.CrawlReport `json:"report"`
}

// NewJSONReport creates a JSONReport wrapper with version information.
func NewJSONReport(report *model.CrawlReport, version string) *JSONReport {
	return &JSONReport{
		Version: version,
		Status:  report.Status(),
		Report:  report,
	}
}

// DiffReport is the JSON form of a comparison between two reports.
type DiffReport struct {
	Seed      string           `json:"seed"`
	OlderTime time.Time        `json:"older_time"`
	NewerTime time.Time        `json:"newer_time"`
	Changed   bool             `json:"changed"`
	Diff      model.ResultDiff `json:"diff"`
}

// NewDiffReport compares two reports of the same seed.
func NewDiffReport(older, newer *model.CrawlReport) *DiffReport {
	diff := model.Diff(older.Result, newer.Result)
	return &DiffReport{
		Seed:      newer.Seed,
		OlderTime: older.FinishedAt,
		NewerTime: newer.FinishedAt,
		Changed:   diff.HasChanges(),
		Diff:      diff,
	}
}

// FullJSONWriter outputs complete reports with metadata wrapper.
type FullJSONWriter struct {
	*JSONWriter

	version string
}

// NewFullJSONWriter creates a writer for complete reports with metadata.
func NewFullJSONWriter(output io.Writer, version string, opts ...JSONWriterOption) *FullJSONWriter {
	return &FullJSONWriter{
		JSONWriter: NewJSONWriter(output, opts...),
		version:    version,
	}
}

// Write outputs the full report wrapped with metadata.
func (w *FullJSONWriter) Write(report *model.CrawlReport) (int, error) {
	return w.writeJSON(NewJSONReport(report, w.version))
}
