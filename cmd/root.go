// Package cmd defines the CLI commands for the archiver executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/VertyyBird/Reddit-Archiver/internal/config"
)

var (
	cfgFile string
	dbPath  string
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reddit-archiver",
		Short: "Archives new reddit posts to the Wayback Machine and archive.today",
		Long: `reddit-archiver polls subreddit feeds for new posts, submits each
post's www and old.reddit views to two web-archival services, and tracks
every submission until the service confirms (or fails to confirm) it.
A read-only dashboard serves the collected state.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "override the SQLite database path")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

// loadConfig reads the configuration and applies the --db override.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, err
	}
	if dbPath != "" {
		cfg.DB.Path = dbPath
	}
	return cfg, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
