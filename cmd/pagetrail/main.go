// Package main is the pagetrail command: a daemon that records browsing
// history and rolls it up into hierarchical summaries, plus tools to inspect
// the result.
package main

import (
	"fmt"
	"os"

	"github.com/entrhq/pagetrail/pkg/config"
	"github.com/entrhq/pagetrail/pkg/logging"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	verbose      bool
	daemonPath   string
	settingsPath string
	backend      string
	storePath    string
	llmFlags     config.LLMFlags

	daemonCfg config.DaemonConfig
)

var rootCmd = &cobra.Command{
	Use:     "pagetrail",
	Short:   "Hierarchical browsing history summaries",
	Version: version,
	Long: `pagetrail records the pages you visit and summarizes them in tiers:
every 10 pages become a level 1 summary, every 10 of those a level 2
summary, and every 10 of those a level 3 summary.

Run "pagetrail serve" for the HTTP API used by the browser extension, or
inspect the history with "pagetrail level", "pagetrail pages" and
"pagetrail timeline".`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.SetVerbose(verbose)

		if err := config.Initialize(settingsPath); err != nil {
			return fmt.Errorf("failed to load settings: %w", err)
		}

		cfg, err := config.LoadDaemonConfig(daemonPath)
		if err != nil {
			return err
		}
		if backend != "" {
			cfg.Store.Backend = backend
		}
		if storePath != "" {
			cfg.Store.Path = storePath
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		daemonCfg = cfg
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	flags.StringVar(&daemonPath, "config", "", "Daemon config file (YAML)")
	flags.StringVar(&settingsPath, "settings", "", "Settings file (default ~/.pagetrail/config.json)")
	flags.StringVar(&backend, "backend", "", "Store backend: file, badger or sqlite")
	flags.StringVar(&storePath, "store", "", "Store path (default depends on backend)")
	flags.StringVar(&llmFlags.Model, "model", "", "Summarization model")
	flags.StringVar(&llmFlags.BaseURL, "base-url", "", "OpenAI-compatible API base URL (or set OPENAI_BASE_URL)")
	flags.StringVar(&llmFlags.APIKey, "api-key", "", "API key (or set OPENAI_API_KEY)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(captureCmd)
	rootCmd.AddCommand(levelCmd)
	rootCmd.AddCommand(pagesCmd)
	rootCmd.AddCommand(timelineCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
