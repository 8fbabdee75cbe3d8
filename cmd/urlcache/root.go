package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/charlesng35/urlcache/internal/app"
	"github.com/charlesng35/urlcache/pkg/logger"
)

type cliState struct {
	configPath string
	dbPath     string
	windowDays int
	logLevel   string

	cfg *app.Config
	log *zap.Logger
}

func newRootCmd() *cobra.Command {
	state := &cliState{}

	rootCmd := &cobra.Command{
		Use:   "urlcache",
		Short: "A persistent, freshness-aware cache for structured values keyed by URL.",
		Long: `urlcache stores JSON objects and arrays under identifiers such as URLs.

A write is suppressed while the stored entry is younger than the freshness
window (30 days by default); reads always return what is stored.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return state.load(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync() // best effort
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&state.configPath, "config", "", "path to a configuration file or directory")
	flags.StringVar(&state.dbPath, "db", "", "SQLite database path (overrides database.path and selects the sqlite driver)")
	flags.IntVar(&state.windowDays, "window-days", 0, "freshness window in days (overrides cache.freshness_window_days)")
	flags.StringVar(&state.logLevel, "log-level", "", "log level (overrides log.level)")

	rootCmd.AddCommand(
		newPutCmd(state),
		newGetCmd(state),
		newInspectCmd(state),
		newStatsCmd(state),
		newMigrateCmd(state),
		newServeCmd(state),
	)

	return rootCmd
}

func (s *cliState) load(cmd *cobra.Command) error {
	cfg, err := loadApplicationConfig(s.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.Database.Driver = "sqlite"
		cfg.Database.Path = strings.TrimSpace(s.dbPath)
	}
	if flags.Changed("window-days") {
		cfg.Cache.FreshnessWindowDays = s.windowDays
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = s.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := app.ConfigureLogging(cfg.Log); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}

	s.cfg = cfg
	s.log = logger.WithModule("cli")
	return nil
}
