package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/imagefinder/internal/config"
	"github.com/nao1215/imagefinder/internal/model"
)

// BatchProcessor crawls several seeds concurrently.
type BatchProcessor struct {
	// pipelineFactory creates a fresh pipeline for each seed.
	pipelineFactory func(seed string) (*Pipeline, error)

	// concurrency is the maximum number of concurrent crawls.
	concurrency int

	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent crawls.
// Non-positive values keep the default (config.DefaultBatchSize).
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor. pipelineFactory is called
// once per seed.
func NewBatchProcessor(pipelineFactory func(seed string) (*Pipeline, error), opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     config.DefaultBatchSize,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// BatchCallback receives the report of one seed, its index in the input and
// the error returned by the seed's pipeline (nil on success).
type BatchCallback func(report *model.CrawlReport, index int, err error)

// ProcessBatch crawls every seed and calls callback as each crawl finishes.
// The callback runs on the goroutine that ran the crawl, so it must be safe
// for concurrent use. Failed crawls are reported too, with report.Error set.
//
// The returned error is non-nil only when ctx was cancelled before every
// seed could start; seeds that never started get no callback.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, seeds []string, callback BatchCallback) error {
	bp.logger.Debug("starting batch processing",
		"total_seeds", len(seeds),
		"concurrency", bp.concurrency,
	)

	startTime := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, seed := range seeds {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			bp.logger.Debug("crawling seed",
				"seed", seed,
				"index", i+1,
				"total", len(seeds),
			)

			report := model.NewCrawlReport(seed)

			pipeline, err := bp.pipelineFactory(seed)
			if err != nil {
				report.Error = err.Error()
				bp.logger.Warn("failed to build pipeline", "seed", seed, "error", err)
				callback(report, i, err)
				return nil
			}
			bp.logger.Debug("pipeline ready", "seed", seed, "steps", pipeline.StepNames())

			// Failures go to the callback; other seeds keep going.
			err = pipeline.Execute(ctx, report)
			if err != nil {
				bp.logger.Warn("pipeline failed", "seed", seed, "error", err)
			}

			callback(report, i, err)
			return nil
		})
	}

	err := g.Wait()

	bp.logger.Debug("batch processing complete",
		"total_seeds", len(seeds),
		"elapsed", time.Since(startTime),
	)

	return err
}
