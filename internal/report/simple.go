package report

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/nao1215/imagefinder/internal/model"
)

// SimpleWriter outputs human-readable text reports for the terminal.
// Counts are formatted for the configured locale (English by default).
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether empty categories are listed.
	showEmpty bool

	// verbose adds crawl statistics to the output.
	verbose bool

	printer *message.Printer
	title   cases.Caser
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty categories.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables crawl statistics in the output.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// WithLanguage sets the locale used to format counts.
func WithLanguage(tag language.Tag) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.printer = message.NewPrinter(tag)
		w.title = cases.Title(tag)
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		printer:    message.NewPrinter(language.English),
		title:      cases.Title(language.English),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.CrawlReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	if w.verbose {
		w.writeStats(&sb, report)
	}
	result := report.Result.Normalize()
	for _, kind := range []model.Kind{model.KindImage, model.KindFavicon} {
		w.writeCategory(&sb, kind, result.Get(kind))
	}
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

// WriteDiff outputs the added and removed URLs between two reports.
func (w *SimpleWriter) WriteDiff(older, newer *model.CrawlReport) (int, error) {
	var sb strings.Builder
	diff := model.Diff(older.Result, newer.Result)

	writeRule(&sb, "=")
	sb.WriteString("                        IMAGEFINDER COMPARISON\n")
	writeRule(&sb, "=")
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Seed:  %s\n", newer.Seed)
	fmt.Fprintf(&sb, "Older: %s\n", older.FinishedAt.Format(timeLayout))
	fmt.Fprintf(&sb, "Newer: %s\n\n", newer.FinishedAt.Format(timeLayout))

	if !diff.HasChanges() {
		sb.WriteString("No changes.\n")
	} else {
		w.writeChanges(&sb, "+", "Added images", diff.AddedImages)
		w.writeChanges(&sb, "-", "Removed images", diff.RemovedImages)
		w.writeChanges(&sb, "+", "Added favicons", diff.AddedFavicons)
		w.writeChanges(&sb, "-", "Removed favicons", diff.RemovedFavicons)
	}
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.CrawlReport) {
	sb.WriteString("\n")
	writeRule(sb, "=")
	sb.WriteString("                         IMAGEFINDER REPORT\n")
	writeRule(sb, "=")
	sb.WriteString("\n")

	fmt.Fprintf(sb, "Seed:          %s\n", report.Seed)
	fmt.Fprintf(sb, "Crawl Date:    %s\n", report.StartedAt.Format(timeLayout))
	sb.WriteString(w.printer.Sprintf("Pages Fetched: %d\n", report.Stats.PagesFetched))

	switch report.Status() {
	case "failed":
		fmt.Fprintf(sb, "Status:        ERROR - %s\n", report.Error)
	case "partial":
		sb.WriteString("Status:        TIMED OUT (partial results)\n")
	default:
		sb.WriteString("Status:        Complete\n")
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeStats(sb *strings.Builder, report *model.CrawlReport) {
	writeRule(sb, "-")
	sb.WriteString("CRAWL STATISTICS\n")
	writeRule(sb, "-")
	sb.WriteString("\n")

	stats := report.Stats
	sb.WriteString(w.printer.Sprintf("  URLs claimed:      %d\n", stats.URLsClaimed))
	sb.WriteString(w.printer.Sprintf("  Pages failed:      %d\n", stats.PagesFailed))
	sb.WriteString(w.printer.Sprintf("  Out-of-scope links: %d\n", stats.LinksOutOfScope))
	sb.WriteString(w.printer.Sprintf("  Tasks dropped:     %d\n", stats.TasksDropped))
	fmt.Fprintf(sb, "  Duration:          %s\n", stats.Duration)
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeCategory(sb *strings.Builder, kind model.Kind, urls []string) {
	if len(urls) == 0 && !w.showEmpty {
		return
	}

	writeRule(sb, "-")
	sb.WriteString(w.printer.Sprintf("%s (%d)\n", strings.ToUpper(string(kind)), len(urls)))
	writeRule(sb, "-")
	sb.WriteString("\n")

	if len(urls) == 0 {
		fmt.Fprintf(sb, "  No %s found\n\n", kind)
		return
	}
	for _, u := range urls {
		fmt.Fprintf(sb, "  [+] %s\n", u)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeChanges(sb *strings.Builder, marker, title string, urls []string) {
	if len(urls) == 0 && !w.showEmpty {
		return
	}
	sb.WriteString(w.printer.Sprintf("%s (%d)\n", w.title.String(title), len(urls)))
	for _, u := range urls {
		fmt.Fprintf(sb, "  %s %s\n", marker, u)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	writeRule(sb, "=")
	sb.WriteString("Report generated by imagefinder\n")
	writeRule(sb, "=")
}

func writeRule(sb *strings.Builder, char string) {
	sb.WriteString(strings.Repeat(char, 70))
	sb.WriteString("\n")
}
