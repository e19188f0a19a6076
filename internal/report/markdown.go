package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/imagefinder/internal/model"
)

// MarkdownWriter outputs reports as GitHub-flavored Markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.CrawlReport) (int, error) {
	md := markdown.NewMarkdown(w.output)
	result := report.Result.Normalize()

	w.writeHeader(md, report, result)
	w.writeAlert(md, report, result)
	if !result.IsEmpty() {
		w.writePieChart(md, result)
	}
	w.writeURLTable(md, "Images", result.Images)
	w.writeURLTable(md, "Favicons", result.Favicons)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteDiff outputs the difference between two reports in Markdown format.
func (w *MarkdownWriter) WriteDiff(older, newer *model.CrawlReport) (int, error) {
	md := markdown.NewMarkdown(w.output)
	diff := model.Diff(older.Result, newer.Result)

	md.H1("imagefinder Comparison")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Seed", "`" + newer.Seed + "`"},
			{"Older Crawl", older.FinishedAt.Format(timeLayout)},
			{"Newer Crawl", newer.FinishedAt.Format(timeLayout)},
		},
	})
	md.PlainText("")

	if !diff.HasChanges() {
		md.Tip("No images or favicons were added or removed.")
		md.PlainText("")
	} else {
		md.Importantf("%d URL(s) added, %d URL(s) removed.",
			len(diff.AddedImages)+len(diff.AddedFavicons),
			len(diff.RemovedImages)+len(diff.RemovedFavicons),
		)
		md.PlainText("")
		w.writeChangeList(md, "Added Images", diff.AddedImages)
		w.writeChangeList(md, "Removed Images", diff.RemovedImages)
		w.writeChangeList(md, "Added Favicons", diff.AddedFavicons)
		w.writeChangeList(md, "Removed Favicons", diff.RemovedFavicons)
	}
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.CrawlReport, result model.CrawlResult) {
	md.H1("imagefinder Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Seed", "`" + report.Seed + "`"},
			{"Crawl Date", report.StartedAt.Format(timeLayout)},
			{"Pages Fetched", strconv.FormatInt(report.Stats.PagesFetched, 10)},
			{"Pages Failed", strconv.FormatInt(report.Stats.PagesFailed, 10)},
			{"Images", strconv.Itoa(len(result.Images))},
			{"Favicons", strconv.Itoa(len(result.Favicons))},
			{"Duration", report.Stats.Duration.String()},
			{"Status", statusText(report)},
		},
	})
	md.PlainText("")
}

func statusText(report *model.CrawlReport) string {
	switch report.Status() {
	case "failed":
		return "❌ Error - " + report.Error
	case "partial":
		return "⚠️ Timed Out (partial results)"
	default:
		return "✅ Complete"
	}
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.CrawlReport, result model.CrawlResult) {
	switch {
	case report.Failed():
		md.Cautionf("The seed could not be fetched: %s", report.Error)
	case report.Stats.TimedOut:
		md.Warningf("The crawl timed out after %s. The lists below are partial.", report.Stats.Duration)
	case result.IsEmpty():
		md.Note("No images or favicons were found.")
	default:
		md.Tip("The crawl finished before its deadline.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, result model.CrawlResult) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Discovered URLs"),
		piechart.WithShowData(true),
	)
	if n := len(result.Images); n > 0 {
		chart.LabelAndIntValue("Images", uint64(n))
	}
	if n := len(result.Favicons); n > 0 {
		chart.LabelAndIntValue("Favicons", uint64(n))
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeURLTable(md *markdown.Markdown, title string, urls []string) {
	md.H2(title)
	md.PlainText("")

	if len(urls) == 0 {
		md.PlainText("None found.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(urls))
	for i, u := range urls {
		rows[i] = []string{strconv.Itoa(i + 1), "`" + u + "`"}
	}
	md.Table(markdown.TableSet{
		Header: []string{"#", "URL"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeChangeList(md *markdown.Markdown, title string, urls []string) {
	if len(urls) == 0 {
		return
	}
	md.H2(title)
	md.PlainText("")
	md.BulletList(urls...)
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by imagefinder*")
}
