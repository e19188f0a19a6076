package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/imagefinder/internal/config"
	applog "github.com/nao1215/imagefinder/internal/log"
	"github.com/nao1215/imagefinder/internal/pipeline"
	"github.com/nao1215/imagefinder/internal/server"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve crawls over HTTP",
		Long: `Serve starts an HTTP server with a single endpoint:

  POST /main?url=<seed-url>

The seed is crawled with the configured settings and the response is
{"images": [...], "favicons": [...]} with Content-Type text/json.
A seed that cannot be fetched returns 502; a missing or invalid url
returns 400.

Logs are written to stderr as JSON.

Examples:
  # Listen on the default address (:8080)
  imagefinder serve

  # Listen on localhost only, with 4 workers per crawl
  imagefinder serve --addr 127.0.0.1:9000 -w 4

  curl -X POST 'http://localhost:8080/main?url=https://example.com/'`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	addCrawlFlags(cmd)
	cmd.Flags().String("addr", config.DefaultAddr, "Address to listen on")

	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Addr, err = cmd.Flags().GetString("addr"); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := applog.NewSecureJSONLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, cleanup, err := newServer(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	return srv.ListenAndServe(ctx, cfg.Addr)
}

// newServer builds the HTTP server for cfg. The returned cleanup closes the
// archive.
func newServer(cfg *config.Config, logger *slog.Logger) (*server.Server, func(), error) {
	db, err := openArchive(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	newCrawler := func(seed string) (pipeline.Crawler, error) {
		spider, err := pipeline.NewSpider(cfg, seed, logger)
		if err != nil {
			return nil, err
		}
		return spider, nil
	}

	opts := []server.Option{server.WithLogger(logger)}
	cleanup := func() {}
	if db != nil {
		opts = append(opts, server.WithSaver(db))
		cleanup = func() {
			if err := db.Close(); err != nil {
				logger.Error("failed to close database", "error", err)
			}
		}
	}

	return server.New(newCrawler, opts...), cleanup, nil
}
