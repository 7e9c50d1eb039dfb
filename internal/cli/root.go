// Package cli implements the casebot command line.
package cli

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"casebot/internal/config"
	"casebot/internal/logger"
)

var (
	configPath string
	logLevel   string

	// appConfig is loaded before any subcommand runs.
	appConfig *config.AppConfig
)

var rootCmd = &cobra.Command{
	Use:   "casebot",
	Short: "Answer questions from a curated fact corpus",
	Long: `casebot retrieves the facts most similar to a question and composes
an answer grouped by confidence (secured first, unconfirmed second).

Facts live in a JSONL file or an SQLite database and can be added through
the HTTP API, the admin page or the ingest command.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config (default ./config.yaml or ~/.config/casebot/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	_ = godotenv.Load()

	var (
		cfg *config.AppConfig
		err error
	)
	if configPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(configPath)
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr()); err != nil {
		return err
	}
	appConfig = cfg
	return nil
}
