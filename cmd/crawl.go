package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/JakeFAU/fara-crawler/internal/app"
	"github.com/JakeFAU/fara-crawler/internal/config"
	"github.com/JakeFAU/fara-crawler/internal/crawler"
)

// crawlApp is the part of *app.App the command drives.
type crawlApp interface {
	Run(ctx context.Context) (crawler.Result, error)
	Close(ctx context.Context) error
}

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (crawlApp, error) {
	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return a, nil
}

type crawlOptions struct {
	count  int
	db     string
	output string
}

// newCrawlCmd creates the 'crawl' subcommand, which runs one full crawl.
func newCrawlCmd(rt *runtime) *cobra.Command {
	opts := &crawlOptions{}
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Runs one crawl of the Active Foreign Principals list",
		Long: `Runs one crawl. Flags override the loaded configuration: --count replaces
the row count shown on the worksheet, --db selects the document sink and
--output sets the feed path (local file or gs://bucket/object).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.apply(cmd.Flags(), rt.cfg)
			if err != nil {
				return err
			}
			return runCrawl(cmd.Context(), cfg, rt.logger)
		},
	}
	cmd.Flags().IntVar(&opts.count, "count", 0, "number of rows to request instead of the displayed count")
	cmd.Flags().StringVar(&opts.db, "db", "", `document sink: "mongo" or "postgres" (default none)`)
	cmd.Flags().StringVar(&opts.output, "output", "", "feed path; empty disables the feed")
	return cmd
}

// apply overlays the flags that were set and re-validates the result.
func (o *crawlOptions) apply(flags *pflag.FlagSet, cfg config.Config) (config.Config, error) {
	if flags.Changed("count") {
		count := o.count
		cfg.Crawler.RowCount = &count
	}
	if flags.Changed("db") {
		cfg.Sink.Kind = o.db
	}
	if flags.Changed("output") {
		cfg.Output.Path = o.output
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, nil
}

func runCrawl(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize application: %w", err)
	}
	defer func() {
		if cerr := a.Close(context.WithoutCancel(ctx)); cerr != nil {
			logger.Warn("failed to close application", zap.Error(cerr))
		}
	}()

	res, err := a.Run(ctx)
	if err != nil {
		return fmt.Errorf("run crawl: %w", err)
	}
	logger.Info("crawl command finished",
		zap.String("run_id", res.RunID),
		zap.Int("records", res.Completed),
		zap.String("feed_uri", res.FeedURI),
	)
	return nil
}
