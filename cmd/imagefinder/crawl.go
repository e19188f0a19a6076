package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/imagefinder/internal/config"
	"github.com/nao1215/imagefinder/internal/database"
	"github.com/nao1215/imagefinder/internal/model"
	"github.com/nao1215/imagefinder/internal/pipeline"
	"github.com/nao1215/imagefinder/internal/report"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [seed-url]...",
		Short: "Crawl websites and list their images and favicons",
		Long: `Crawl fetches the seed URL, follows every link that starts with the seed URL,
and lists the images (<img src>) and favicons (<link rel="icon">) found on
the fetched pages.

Each page is fetched at most once. A failed page is skipped without retry;
only a seed that cannot be fetched makes the crawl fail. After --timeout the
crawl stops and reports what it found so far.

Examples:
  # Crawl a single site
  imagefinder crawl https://example.com/

  # Crawl several sites, three at a time
  imagefinder crawl -b 3 https://example.com/ https://example.org/blog/

  # Fast crawl of your own site: 8 workers, no delay
  imagefinder crawl -w 8 -d 0 http://localhost:8000/

  # JSON result written to a file, text summary on stdout
  imagefinder crawl --json -o result.json https://example.com/`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	addCrawlFlags(cmd)

	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of seeds crawled concurrently")
	cmd.Flags().BoolP("json", "j", false,
		"Output the result as JSON (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output a Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write the report to the specified file (creates directories if needed) and print a text summary")

	return cmd
}

func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	cfg.Seeds = args

	if cfg.BatchSize, err = cmd.Flags().GetInt("batch"); err != nil {
		return err
	}
	if cfg.JSONReport, err = cmd.Flags().GetBool("json"); err != nil {
		return err
	}
	if cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown"); err != nil {
		return err
	}
	if cfg.ReportFile, err = cmd.Flags().GetString("output"); err != nil {
		return err
	}

	if err := cfg.ValidateCrawl(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := newLogger(cmd, cfg.Verbose)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCrawl(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg, logger)
}

// runCrawl crawls every seed in cfg and writes one report per seed.
// It returns an error if any seed failed.
func runCrawl(ctx context.Context, stdout, stderr io.Writer, cfg *config.Config, logger *slog.Logger) (err error) {
	db, err := openArchive(cfg, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	writer := newReportWriter(cfg, stdout)
	if cfg.ReportFile != "" {
		var f *os.File
		f, err = createReportFile(cfg.ReportFile)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("failed to close report file: %w", cerr)
			}
		}()
		writer = report.NewMultiWriter(newReportWriter(cfg, f), report.NewSimpleWriter(stdout))
	}

	bp := pipeline.NewBatchProcessor(
		func(seed string) (*pipeline.Pipeline, error) {
			return newCrawlPipeline(cfg, seed, db, logger)
		},
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	logger.Info("starting crawl",
		"seeds", len(cfg.Seeds),
		"workers", cfg.Workers,
		"batch", cfg.BatchSize,
		"save", cfg.SaveToDB,
	)
	startTime := time.Now()

	var mu sync.Mutex
	var failed int
	batchErr := bp.ProcessBatch(ctx, cfg.Seeds, func(r *model.CrawlReport, _ int, err error) {
		mu.Lock()
		defer mu.Unlock()

		if r.Failed() || pipeline.StepFailed(err, pipeline.CrawlStepName) {
			failed++
			reason := r.Error
			if reason == "" {
				reason = err.Error()
			}
			fmt.Fprintf(stderr, "Crawl error for %s: %s\n", r.Seed, reason)
			return
		}
		if err != nil {
			fmt.Fprintf(stderr, "Warning: result for %s was not archived: %v\n", r.Seed, err)
		}
		if _, err := writer.Write(r); err != nil {
			logger.Error("report failed", "seed", r.Seed, "error", err)
		}
	})

	logger.Info("crawl finished", "elapsed", time.Since(startTime).Round(time.Millisecond))

	if batchErr != nil {
		return fmt.Errorf("crawl interrupted: %w", batchErr)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d seeds could not be crawled", failed, len(cfg.Seeds))
	}
	return nil
}

// newCrawlPipeline builds the crawl pipeline for one seed: crawl, then
// archive when db is not nil. A failed archive does not discard the result.
func newCrawlPipeline(cfg *config.Config, seed string, db *database.CrawlDB, logger *slog.Logger) (*pipeline.Pipeline, error) {
	spider, err := pipeline.NewSpider(cfg, seed, logger)
	if err != nil {
		return nil, err
	}

	steps := []pipeline.Step{pipeline.NewCrawlStep(spider)}
	if db != nil {
		steps = append(steps, pipeline.NewSaveStep(db, logger))
	}

	p := pipeline.New(pipeline.WithLogger(logger), pipeline.WithContinueOnError(true))
	p.AddSteps(steps...)
	return p, nil
}

// newReportWriter selects the report format. JSON for a single seed is
// pretty-printed; several seeds produce one JSON object per line.
func newReportWriter(cfg *config.Config, output io.Writer) report.Writer {
	switch {
	case cfg.JSONReport && len(cfg.Seeds) == 1:
		return report.NewJSONWriter(output, report.WithPrettyPrint())
	case cfg.JSONReport:
		return report.NewJSONWriter(output)
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}
}

// createReportFile creates (or truncates) the report file and its parent
// directories.
func createReportFile(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // user-chosen output path
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}
