package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for imagefinder.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "imagefinder",
		Short: "Find the images and favicons of a website",
		Long: `imagefinder crawls a website starting from a seed URL and collects the URLs
of every image and favicon on the pages it reaches.

Only links that start with the seed URL are followed, each page is fetched
at most once, and pages are fetched concurrently with a politeness delay.
Results are archived so later crawls can be compared with earlier ones.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
