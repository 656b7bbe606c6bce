// Package cmd defines and implements the farascraper command line.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/fara-crawler/internal/config"
	"github.com/JakeFAU/fara-crawler/internal/logging"
)

// runtime carries what PersistentPreRunE loaded to the subcommands.
type runtime struct {
	cfg      config.Config
	logger   *zap.Logger
	closeLog func() error
}

// newRootCmd creates the root command. Configuration and logging are set up
// before any subcommand runs.
func newRootCmd() *cobra.Command {
	var cfgFile string
	rt := &runtime{logger: zap.NewNop()}

	cmd := &cobra.Command{
		Use:   "farascraper",
		Short: "Crawls the FARA eFile list of active foreign principals.",
		Long: `farascraper walks the FARA eFile portal: it opens the Active Foreign
Principals worksheet, requests every row in one response, resolves each
principal's exhibits from its detail page, and writes the results as a JSON
feed and, optionally, to MongoDB or Postgres.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, closeLog, err := logging.New(logging.Options{
				Development: cfg.Logging.Development,
				Level:       cfg.Logging.Level,
				File:        cfg.Logging.File,
				MaxSizeMB:   cfg.Logging.MaxSizeMB,
			})
			if err != nil {
				return fmt.Errorf("logger init failed: %w", err)
			}
			zap.ReplaceGlobals(logger)
			rt.cfg, rt.logger, rt.closeLog = cfg, logger, closeLog
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if rt.closeLog != nil {
				_ = rt.closeLog()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, JSON or TOML)")
	cmd.AddCommand(newCrawlCmd(rt), newVersionCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		zap.L().Fatal("command execution failed", zap.Error(err))
	}
}
