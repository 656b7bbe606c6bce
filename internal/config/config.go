// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Sink kinds accepted by sink.kind and the --db flag.
const (
	SinkNone     = ""
	SinkMongo    = "mongo"
	SinkPostgres = "postgres"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Output   OutputConfig   `mapstructure:"output"`
	Sink     SinkConfig     `mapstructure:"sink"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// CrawlerConfig governs the portal walk.
type CrawlerConfig struct {
	EntryURL           string        `mapstructure:"entry_url"`
	BaseURL            string        `mapstructure:"base_url"`
	AjaxURL            string        `mapstructure:"ajax_url"`
	RowCount           *int          `mapstructure:"row_count"`
	Concurrency        int           `mapstructure:"concurrency"`
	DetailTimeout      time.Duration `mapstructure:"detail_timeout"`
	RateLimitPerSecond float64       `mapstructure:"rate_limit_per_second"`
	UserAgent          string        `mapstructure:"user_agent"`
	MaxBodyBytes       int           `mapstructure:"max_body_bytes"`
}

// HTTPConfig configures HTTP client timeout and retry behavior.
type HTTPConfig struct {
	TimeoutSeconds   int `mapstructure:"timeout_seconds"`
	MaxRetries       int `mapstructure:"max_retries"`
	BackoffInitialMs int `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int `mapstructure:"backoff_max_ms"`
}

// OutputConfig locates the JSON feed. A gs:// path writes to Cloud Storage;
// an empty path disables the feed.
type OutputConfig struct {
	Path string `mapstructure:"path"`
}

// SinkConfig selects the document sink.
type SinkConfig struct {
	Kind string `mapstructure:"kind"`
}

// MongoConfig locates the MongoDB collection.
type MongoConfig struct {
	URI                   string `mapstructure:"uri"`
	Database              string `mapstructure:"database"`
	Collection            string `mapstructure:"collection"`
	ConnectTimeoutSeconds int    `mapstructure:"connect_timeout_seconds"`
}

// PostgresConfig controls the relational sink.
type PostgresConfig struct {
	DSN         string `mapstructure:"dsn"`
	Table       string `mapstructure:"table"`
	CreateTable bool   `mapstructure:"create_table"`
	MaxConns    int32  `mapstructure:"max_conns"`
}

// PubSubConfig holds metadata for the run summary notification.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// MetricsConfig enables the ops endpoint when ListenAddr is set.
type MetricsConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// TracingConfig toggles the OpenTelemetry tracer provider.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

// LoggingConfig toggles zap development features and file output.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
	File        string `mapstructure:"file"`
	MaxSizeMB   int    `mapstructure:"max_size_mb"`
}

// RunOptions is the run-scoped projection of Config handed to the crawl.
type RunOptions struct {
	OutputPath       string
	SinkEnabled      bool
	ConnectionString string
	DatabaseName     string
	RowCountOverride *int
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindEnv(v); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawler.entry_url", "https://efile.fara.gov/ords/f?p=171:1")
	v.SetDefault("crawler.base_url", "https://efile.fara.gov/ords")
	v.SetDefault("crawler.ajax_url", "https://efile.fara.gov/ords/wwv_flow.ajax")
	v.SetDefault("crawler.concurrency", 4)
	v.SetDefault("crawler.detail_timeout", 120*time.Second)
	v.SetDefault("crawler.rate_limit_per_second", 2.0)
	v.SetDefault("crawler.user_agent", "farascraper/1.0")
	v.SetDefault("crawler.max_body_bytes", 64<<20)
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.backoff_initial_ms", 250)
	v.SetDefault("http.backoff_max_ms", 5000)
	v.SetDefault("output.path", "results/items.json")
	v.SetDefault("sink.kind", SinkNone)
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "afp_db")
	v.SetDefault("mongo.collection", "afp_collection")
	v.SetDefault("mongo.connect_timeout_seconds", 10)
	v.SetDefault("postgres.table", "foreign_principals")
	v.SetDefault("postgres.create_table", true)
	v.SetDefault("tracing.enabled", true)
	v.SetDefault("tracing.service_name", "farascraper")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.max_size_mb", 100)
}

// bindEnv registers keys without defaults so AutomaticEnv can see them, plus
// the unprefixed Mongo variable names earlier deployments relied on.
func bindEnv(v *viper.Viper) error {
	bindings := [][]string{
		{"crawler.row_count"},
		{"mongo.uri", "CRAWLER_MONGO_URI", "MONGO_URI"},
		{"mongo.database", "CRAWLER_MONGO_DATABASE", "MONGO_DATABASE"},
		{"postgres.dsn"},
		{"pubsub.project_id"},
		{"pubsub.topic_name"},
		{"metrics.listen_addr"},
		{"logging.level"},
		{"logging.file"},
	}
	for _, b := range bindings {
		if err := v.BindEnv(b...); err != nil {
			return fmt.Errorf("bind env %s: %w", b[0], err)
		}
	}
	return nil
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	urls := []struct{ key, raw string }{
		{"crawler.entry_url", c.Crawler.EntryURL},
		{"crawler.base_url", c.Crawler.BaseURL},
		{"crawler.ajax_url", c.Crawler.AjaxURL},
	}
	for _, u := range urls {
		parsed, err := url.Parse(u.raw)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", u.key, u.raw)
		}
	}
	if c.Crawler.RowCount != nil && *c.Crawler.RowCount < 0 {
		return fmt.Errorf("crawler.row_count must be >= 0")
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.Crawler.DetailTimeout <= 0 {
		return fmt.Errorf("crawler.detail_timeout must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries <= 0 {
		return fmt.Errorf("http.max_retries must be > 0")
	}
	if budget := time.Duration(c.HTTP.MaxRetries) * c.RequestTimeout(); c.Crawler.DetailTimeout < budget {
		return fmt.Errorf("crawler.detail_timeout must cover http.max_retries * http.timeout_seconds (%s), got %s",
			budget, c.Crawler.DetailTimeout)
	}
	switch c.Sink.Kind {
	case SinkNone:
	case SinkMongo:
	case SinkPostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("postgres.dsn must be set when sink.kind is postgres")
		}
	default:
		return fmt.Errorf("sink.kind must be empty, %q or %q, got %q", SinkMongo, SinkPostgres, c.Sink.Kind)
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set together")
	}
	return nil
}

// RunOptions projects the loaded configuration onto the values a single run needs.
func (c Config) RunOptions() RunOptions {
	opts := RunOptions{
		OutputPath:       c.Output.Path,
		SinkEnabled:      c.Sink.Kind != SinkNone,
		RowCountOverride: c.Crawler.RowCount,
	}
	switch c.Sink.Kind {
	case SinkMongo:
		opts.ConnectionString = c.Mongo.URI
		opts.DatabaseName = c.Mongo.Database
	case SinkPostgres:
		opts.ConnectionString = c.Postgres.DSN
		opts.DatabaseName = c.Postgres.Table
	}
	return opts
}

// RequestTimeout converts http.timeout_seconds to a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}
