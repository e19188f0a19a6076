package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/imagefinder/internal/database"
	"github.com/nao1215/imagefinder/internal/report"
)

// NewHistoryCmd creates the history command.
// This command reads crawl results archived by crawl and serve.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [seed-url]",
		Short: "Show archived crawls and compare results over time",
		Long: `History reads the crawl archive written by 'imagefinder crawl' and
'imagefinder serve'.

With a seed URL and no other flag, it compares the latest two archived
crawls of that seed and shows which images and favicons were added or
removed.

Examples:
  # List every archived seed
  imagefinder history -L

  # Compare the latest two crawls of a seed
  imagefinder history https://example.com/

  # List all crawls of a seed
  imagefinder history -l https://example.com/

  # Show every URL ever found under a seed, with first and last sighting
  imagefinder history -i https://example.com/

  # Print an archived report by ID as JSON
  imagefinder history -s 12 -j`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().BoolP("list-seeds", "L", false,
		"List all seeds in the archive")
	cmd.Flags().BoolP("list", "l", false,
		"List archived crawls of the seed")
	cmd.Flags().BoolP("sightings", "i", false,
		"List every URL ever found under the seed")
	cmd.Flags().Int64P("show", "s", 0,
		"Print the archived report with this ID (see --list for IDs)")
	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output in Markdown format")
	addDBDirFlag(cmd)

	return cmd
}

// historyOptions holds the parsed flags of the history command.
type historyOptions struct {
	listSeeds bool
	list      bool
	sightings bool
	showID    int64
	json      bool
	markdown  bool
	dbDir     string
}

func parseHistoryOptions(cmd *cobra.Command) (historyOptions, error) {
	var opts historyOptions
	var err error
	flags := cmd.Flags()

	if opts.listSeeds, err = flags.GetBool("list-seeds"); err != nil {
		return opts, err
	}
	if opts.list, err = flags.GetBool("list"); err != nil {
		return opts, err
	}
	if opts.sightings, err = flags.GetBool("sightings"); err != nil {
		return opts, err
	}
	if opts.showID, err = flags.GetInt64("show"); err != nil {
		return opts, err
	}
	if opts.json, err = flags.GetBool("json"); err != nil {
		return opts, err
	}
	if opts.markdown, err = flags.GetBool("markdown"); err != nil {
		return opts, err
	}
	if opts.dbDir, err = flags.GetString("db-dir"); err != nil {
		return opts, err
	}
	if opts.json && opts.markdown {
		return opts, errors.New("--json and --markdown are mutually exclusive")
	}
	return opts, nil
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	opts, err := parseHistoryOptions(cmd)
	if err != nil {
		return err
	}

	// Validate arguments before opening the database
	var seed string
	if len(args) > 0 {
		seed = args[0]
	}
	if seed == "" && !opts.listSeeds && opts.showID == 0 {
		return errors.New("seed URL is required (use --list-seeds to see archived seeds)")
	}

	out := cmd.OutOrStdout()

	// History never creates an archive
	db, err := database.Open(opts.dbDir, database.Options{CreateIfNotExists: false, EnableWAL: true})
	if errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(out, "No crawls archived yet.")
		fmt.Fprintln(out, "\nUse 'imagefinder crawl <seed-url>' to crawl a site.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	switch {
	case opts.listSeeds:
		return listSeeds(ctx, out, db)
	case opts.showID != 0:
		return showReport(ctx, out, db, opts)
	case opts.list:
		return listHistory(ctx, out, db, seed)
	case opts.sightings:
		return listSightings(ctx, out, db, seed)
	default:
		return compareLatest(ctx, out, db, seed, opts)
	}
}

func listSeeds(ctx context.Context, out io.Writer, db *database.CrawlDB) error {
	seeds, err := db.ListSeeds(ctx)
	if err != nil {
		return fmt.Errorf("failed to list seeds: %w", err)
	}

	if len(seeds) == 0 {
		fmt.Fprintln(out, "No crawls archived yet.")
		return nil
	}

	fmt.Fprintf(out, "Archived seeds (%d):\n\n", len(seeds))
	for _, seed := range seeds {
		fmt.Fprintf(out, "  • %s\n", seed)
	}
	fmt.Fprintln(out, "\nUse 'imagefinder history --list <seed-url>' to see the crawls of a seed.")
	return nil
}

func listHistory(ctx context.Context, out io.Writer, db *database.CrawlDB, seed string) error {
	history, err := db.GetHistoryWithMetadata(ctx, seed)
	if err != nil {
		return fmt.Errorf("failed to get history: %w", err)
	}

	if len(history) == 0 {
		fmt.Fprintf(out, "No crawls archived for %s\n", seed)
		return nil
	}

	fmt.Fprintf(out, "Crawl history for %s (%d crawls):\n\n", seed, len(history))
	fmt.Fprintf(out, "  %-6s  %-20s  %-7s  %-8s  %-6s  %s\n", "ID", "Date", "Images", "Favicons", "Pages", "Status")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 68))

	// history is newest first; a crawl is "changed" when its fingerprint
	// differs from the crawl before it.
	for i, meta := range history {
		status := "complete"
		if meta.TimedOut {
			status = "partial"
		}
		if i+1 < len(history) && history[i+1].Fingerprint != meta.Fingerprint {
			status += " (changed)"
		}
		fmt.Fprintf(out, "  %-6d  %-20s  %-7d  %-8d  %-6d  %s\n",
			meta.ID,
			meta.Timestamp.Format("2006-01-02 15:04:05"),
			meta.ImageCount,
			meta.FaviconCount,
			meta.PagesFetched,
			status,
		)
	}

	fmt.Fprintln(out, "\nUse 'imagefinder history <seed-url>' to compare the latest two crawls.")
	fmt.Fprintln(out, "Use 'imagefinder history --show <id>' to print a crawl.")
	return nil
}

func listSightings(ctx context.Context, out io.Writer, db *database.CrawlDB, seed string) error {
	sightings, err := db.GetSightings(ctx, seed)
	if err != nil {
		return fmt.Errorf("failed to get sightings: %w", err)
	}

	if len(sightings) == 0 {
		fmt.Fprintf(out, "No URLs archived for %s\n", seed)
		return nil
	}

	fmt.Fprintf(out, "URLs found under %s (%d):\n\n", seed, len(sightings))
	for _, s := range sightings {
		fmt.Fprintf(out, "  [%-8s] %s\n", s.Kind, s.URL)
		fmt.Fprintf(out, "             first seen %s, last seen %s\n",
			s.FirstSeen.Format("2006-01-02 15:04:05"),
			s.LastSeen.Format("2006-01-02 15:04:05"),
		)
	}
	return nil
}

func showReport(ctx context.Context, out io.Writer, db *database.CrawlDB, opts historyOptions) error {
	r, err := db.GetReportByID(ctx, opts.showID)
	if err != nil {
		return err
	}

	var w report.Writer
	switch {
	case opts.json:
		w = report.NewFullJSONWriter(out, getVersion(), report.WithPrettyPrint())
	case opts.markdown:
		w = report.NewMarkdownWriter(out)
	default:
		w = report.NewSimpleWriter(out, report.WithVerbose(true))
	}
	_, err = w.Write(r)
	return err
}

func compareLatest(ctx context.Context, out io.Writer, db *database.CrawlDB, seed string, opts historyOptions) error {
	reports, err := db.GetLatestReports(ctx, seed, 2)
	if err != nil {
		return fmt.Errorf("failed to get crawl history: %w", err)
	}
	if len(reports) == 0 {
		return fmt.Errorf("no crawls archived for %s", seed)
	}
	if len(reports) < 2 {
		return fmt.Errorf("at least 2 archived crawls are required for comparison (found %d)", len(reports))
	}

	var w report.Writer
	switch {
	case opts.json:
		w = report.NewJSONWriter(out, report.WithPrettyPrint())
	case opts.markdown:
		w = report.NewMarkdownWriter(out)
	default:
		w = report.NewSimpleWriter(out)
	}
	_, err = w.WriteDiff(reports[1], reports[0])
	return err
}
