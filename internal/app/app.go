// Package app turns a loaded configuration into a runnable crawl and owns the
// clients the crawl depends on.
package app

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/fara-crawler/internal/api"
	"github.com/JakeFAU/fara-crawler/internal/clock/system"
	"github.com/JakeFAU/fara-crawler/internal/config"
	"github.com/JakeFAU/fara-crawler/internal/crawler"
	collyfetcher "github.com/JakeFAU/fara-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/fara-crawler/internal/id/uuid"
	"github.com/JakeFAU/fara-crawler/internal/policy/ratelimit"
	pubsubpublisher "github.com/JakeFAU/fara-crawler/internal/publisher/pubsub"
	gcsstorage "github.com/JakeFAU/fara-crawler/internal/storage/gcs"
	localstorage "github.com/JakeFAU/fara-crawler/internal/storage/local"
	mongosink "github.com/JakeFAU/fara-crawler/internal/storage/mongo"
	pgsink "github.com/JakeFAU/fara-crawler/internal/storage/postgres"
	"github.com/JakeFAU/fara-crawler/internal/telemetry"
)

// App contains the application's dependencies for a single run.
type App struct {
	cfg            config.Config
	logger         *zap.Logger
	runID          string
	engine         *crawler.Engine
	opsServer      *api.Server
	storage        *storage.Client
	mongoSink      *mongosink.Sink
	postgresSink   *pgsink.Sink
	publisher      *pubsubpublisher.Publisher
	tracerShutdown func(context.Context) error
}

// Build creates the application's dependencies. Clients opened before a
// failure are released before the error is returned.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	app := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = app.Close(ctx)
		}
	}()

	app.runID, err = uuid.New().NewID()
	if err != nil {
		return nil, fmt.Errorf("generate run id: %w", err)
	}
	app.logger = logger.With(zap.String("run_id", app.runID))
	app.logger.Info("building application dependencies")

	if cfg.Tracing.Enabled {
		tp, err := telemetry.InitTracerProvider(ctx, cfg.Tracing.ServiceName)
		if err != nil {
			return nil, fmt.Errorf("tracer init failed: %w", err)
		}
		app.tracerShutdown = tp.Shutdown
	}

	fetcher, err := collyfetcher.New(collyfetcher.Config{
		UserAgent:   cfg.Crawler.UserAgent,
		Timeout:     cfg.RequestTimeout(),
		Parallelism: cfg.Crawler.Concurrency,
		MaxBodySize: cfg.Crawler.MaxBodyBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("fetcher init failed: %w", err)
	}
	app.logger.Info("using colly fetcher",
		zap.String("user_agent", cfg.Crawler.UserAgent),
		zap.Duration("timeout", cfg.RequestTimeout()),
	)

	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerSecond: cfg.Crawler.RateLimitPerSecond,
		Burst:             1,
	})
	retry := crawler.NewExponentialRetryPolicy(
		cfg.HTTP.MaxRetries,
		time.Duration(cfg.HTTP.BackoffInitialMs)*time.Millisecond,
		time.Duration(cfg.HTTP.BackoffMaxMs)*time.Millisecond,
	)

	opts := cfg.RunOptions()
	feed, feedObject, err := setupFeed(ctx, app, opts.OutputPath)
	if err != nil {
		return nil, err
	}
	sink, err := setupSink(ctx, app, opts)
	if err != nil {
		return nil, err
	}
	publisher, err := setupPublisher(ctx, app)
	if err != nil {
		return nil, err
	}

	if cfg.Metrics.ListenAddr != "" {
		app.opsServer = api.NewServer(logger.Named("api"))
	}

	app.engine = crawler.NewEngine(
		crawler.Config{
			RunID:            app.runID,
			EntryURL:         cfg.Crawler.EntryURL,
			BaseURL:          cfg.Crawler.BaseURL,
			AjaxURL:          cfg.Crawler.AjaxURL,
			RowCountOverride: opts.RowCountOverride,
			Concurrency:      cfg.Crawler.Concurrency,
			DetailTimeout:    cfg.Crawler.DetailTimeout,
			FeedObject:       feedObject,
		},
		fetcher,
		sink,
		feed,
		publisher,
		retry,
		limiter,
		system.New(),
		logger.Named("engine"),
	)
	return app, nil
}

// RunID identifies this run in logs, sink rows and the published summary.
func (a *App) RunID() string {
	return a.runID
}

// Run executes one crawl. SIGINT and SIGTERM cancel it. The ops server, when
// configured, is served for the duration of the crawl.
func (a *App) Run(ctx context.Context) (crawler.Result, error) {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opsCtx, stopOps := context.WithCancel(ctx)
	var wg sync.WaitGroup
	if a.opsServer != nil {
		wg.Go(func() {
			if err := a.opsServer.Serve(opsCtx, a.cfg.Metrics.ListenAddr); err != nil {
				a.logger.Error("ops server error", zap.Error(err))
			}
		})
	}

	res, err := a.engine.Run(ctx)
	stopOps()
	wg.Wait()
	return res, err
}

// Close releases every client the run opened. Failures are logged, not returned.
func (a *App) Close(ctx context.Context) error {
	a.closeInfrastructure(ctx)
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
	a.logger.Info("shutdown complete")
	return nil
}

func (a *App) closeInfrastructure(ctx context.Context) {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.mongoSink != nil {
		if err := a.mongoSink.Close(ctx); err != nil {
			a.logger.Warn("mongo client close failed", zap.Error(err))
		}
	}
	if a.postgresSink != nil {
		a.postgresSink.Close()
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
}

// setupFeed returns the blob store and object name the feed is written to.
// An empty path disables the feed.
func setupFeed(ctx context.Context, app *App, path string) (crawler.BlobStore, string, error) {
	switch {
	case path == "":
		app.logger.Info("feed output disabled")
		return nil, "", nil
	case gcsstorage.IsURI(path):
		bucket, object, err := gcsstorage.ParseURI(path)
		if err != nil {
			return nil, "", fmt.Errorf("feed path: %w", err)
		}
		app.storage, err = storage.NewClient(ctx)
		if err != nil {
			return nil, "", fmt.Errorf("gcs client init failed: %w", err)
		}
		store, err := gcsstorage.New(app.storage, gcsstorage.Config{Bucket: bucket})
		if err != nil {
			return nil, "", fmt.Errorf("gcs blob store init failed: %w", err)
		}
		if err := store.Verify(ctx); err != nil {
			return nil, "", fmt.Errorf("gcs bucket check failed: %w", err)
		}
		app.logger.Info("using GCS feed output", zap.String("bucket", bucket), zap.String("object", object))
		return store, object, nil
	default:
		store, err := localstorage.New(localstorage.Config{BaseDir: filepath.Dir(path)})
		if err != nil {
			return nil, "", fmt.Errorf("local blob store init failed: %w", err)
		}
		app.logger.Info("using local feed output", zap.String("path", path))
		return store, filepath.Base(path), nil
	}
}

// setupSink opens the configured document sink. No sink is not an error.
func setupSink(ctx context.Context, app *App, opts config.RunOptions) (crawler.Sink, error) {
	if !opts.SinkEnabled {
		app.logger.Info("no document sink configured")
		return nil, nil
	}
	switch app.cfg.Sink.Kind {
	case config.SinkMongo:
		sink, err := mongosink.New(ctx, mongosink.Config{
			URI:            opts.ConnectionString,
			Database:       opts.DatabaseName,
			Collection:     app.cfg.Mongo.Collection,
			ConnectTimeout: time.Duration(app.cfg.Mongo.ConnectTimeoutSeconds) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("mongo sink init failed: %w", err)
		}
		app.mongoSink = sink
		app.logger.Info("mongo sink initialized",
			zap.String("database", opts.DatabaseName),
			zap.String("collection", app.cfg.Mongo.Collection),
		)
		return sink, nil
	case config.SinkPostgres:
		sink, err := pgsink.NewSink(ctx, pgsink.Config{
			DSN:         opts.ConnectionString,
			Table:       opts.DatabaseName,
			RunID:       app.runID,
			CreateTable: app.cfg.Postgres.CreateTable,
			MaxConns:    app.cfg.Postgres.MaxConns,
		})
		if err != nil {
			return nil, fmt.Errorf("postgres sink init failed: %w", err)
		}
		app.postgresSink = sink
		app.logger.Info("postgres sink initialized", zap.String("table", opts.DatabaseName))
		return sink, nil
	default:
		return nil, fmt.Errorf("unknown sink kind %q", app.cfg.Sink.Kind)
	}
}

func setupPublisher(ctx context.Context, app *App) (crawler.Publisher, error) {
	if app.cfg.PubSub.TopicName == "" || app.cfg.PubSub.ProjectID == "" {
		app.logger.Info("no Pub/Sub topic configured, run summary will not be published")
		return nil, nil
	}
	publisher, err := pubsubpublisher.New(ctx, pubsubpublisher.Config{
		ProjectID: app.cfg.PubSub.ProjectID,
		TopicName: app.cfg.PubSub.TopicName,
	})
	if err != nil {
		return nil, fmt.Errorf("pubsub publisher init failed: %w", err)
	}
	app.publisher = publisher
	app.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", app.cfg.PubSub.ProjectID),
		zap.String("topic", app.cfg.PubSub.TopicName),
	)
	return publisher, nil
}
