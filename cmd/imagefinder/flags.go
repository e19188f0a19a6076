package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nao1215/imagefinder/internal/config"
	"github.com/nao1215/imagefinder/internal/database"
	applog "github.com/nao1215/imagefinder/internal/log"
)

// addCrawlFlags registers the crawl tuning flags shared by crawl and serve.
func addCrawlFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers(),
		"Number of pages fetched concurrently per crawl")
	cmd.Flags().DurationP("delay", "d", config.DefaultCrawlDelay,
		"Politeness delay between requests (0 disables it)")
	cmd.Flags().String("rate-policy", config.DefaultRatePolicy,
		`How the delay is applied: "delay" (every fetch sleeps) or "shared" (one request per delay across workers)`)
	cmd.Flags().DurationP("timeout", "t", config.DefaultCrawlTimeout,
		"Maximum duration of one crawl; partial results are returned after it")
	cmd.Flags().Duration("grace", config.DefaultGracePeriod,
		"How long in-flight fetches may finish after the crawl timeout")
	cmd.Flags().Duration("fetch-timeout", config.DefaultFetchTimeout,
		"Timeout for each page fetch")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with every request")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum number of bytes read from each page")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .imagefinder in current or home directory)")
	cmd.Flags().Bool("no-save", false,
		"Do not archive results in the local database")
	addDBDirFlag(cmd)
}

// addDBDirFlag registers the archive directory flag.
func addDBDirFlag(cmd *cobra.Command) {
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the crawl archive database")
}

// buildConfig creates a Config from the shared crawl flags.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.Workers, err = flags.GetInt("workers"); err != nil {
		return nil, err
	}
	if cfg.CrawlDelay, err = flags.GetDuration("delay"); err != nil {
		return nil, err
	}
	if cfg.RatePolicy, err = flags.GetString("rate-policy"); err != nil {
		return nil, err
	}
	if cfg.CrawlTimeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.GracePeriod, err = flags.GetDuration("grace"); err != nil {
		return nil, err
	}
	if cfg.FetchTimeout, err = flags.GetDuration("fetch-timeout"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
		return nil, err
	}
	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}
	noSave, err := flags.GetBool("no-save")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noSave
	cfg.Verbose = getVerboseFlag(cmd)

	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}

	// An explicit --config must exist; the default locations are optional.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		if cfg.SiteConfigs, err = config.LoadConfigFile(configPath); err != nil {
			return nil, err
		}
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	default:
		cfg.SiteConfigs = &config.File{
			Sites: make(map[string]config.SiteConfig),
		}
	}

	return cfg, nil
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// openArchive opens the archive database when saving is enabled.
// It returns nil when cfg.SaveToDB is false.
func openArchive(cfg *config.Config, logger *slog.Logger) (*database.CrawlDB, error) {
	if !cfg.SaveToDB {
		return nil, nil
	}
	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	logger.Debug("database opened", "path", db.Path())
	return db, nil
}

// newLogger creates the text logger used by interactive commands.
func newLogger(cmd *cobra.Command, verbose bool) *slog.Logger {
	logger := applog.NewSecureLogger(cmd.ErrOrStderr(), verbose)
	slog.SetDefault(logger)
	return logger
}
