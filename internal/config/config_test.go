package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://efile.fara.gov/ords/f?p=171:1", cfg.Crawler.EntryURL)
	assert.Equal(t, "https://efile.fara.gov/ords", cfg.Crawler.BaseURL)
	assert.Equal(t, "https://efile.fara.gov/ords/wwv_flow.ajax", cfg.Crawler.AjaxURL)
	assert.Nil(t, cfg.Crawler.RowCount)
	assert.Equal(t, 4, cfg.Crawler.Concurrency)
	assert.Equal(t, 120*time.Second, cfg.Crawler.DetailTimeout)
	assert.Equal(t, "results/items.json", cfg.Output.Path)
	assert.Equal(t, SinkNone, cfg.Sink.Kind)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Mongo.URI)
	assert.Equal(t, "afp_db", cfg.Mongo.Database)
	assert.Equal(t, "afp_collection", cfg.Mongo.Collection)
	assert.Equal(t, "foreign_principals", cfg.Postgres.Table)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout())
	assert.False(t, cfg.RunOptions().SinkEnabled)
}

func TestLoadWithFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	configYAML := `
crawler:
  row_count: 25
  concurrency: 8
  detail_timeout: 240s
  user_agent: fara-test
http:
  timeout_seconds: 45
  max_retries: 5
output:
  path: gs://fara-feeds/items.json
sink:
  kind: postgres
postgres:
  dsn: postgres://fara@localhost/fara
  table: afp_records
logging:
  development: false
  level: warn
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.NotNil(t, cfg.Crawler.RowCount)
	assert.Equal(t, 25, *cfg.Crawler.RowCount)
	assert.Equal(t, 8, cfg.Crawler.Concurrency)
	assert.Equal(t, 240*time.Second, cfg.Crawler.DetailTimeout)
	assert.Equal(t, 45*time.Second, cfg.RequestTimeout())
	assert.False(t, cfg.Logging.Development)
	assert.Equal(t, "warn", cfg.Logging.Level)

	opts := cfg.RunOptions()
	assert.Equal(t, RunOptions{
		OutputPath:       "gs://fara-feeds/items.json",
		SinkEnabled:      true,
		ConnectionString: "postgres://fara@localhost/fara",
		DatabaseName:     "afp_records",
		RowCountOverride: cfg.Crawler.RowCount,
	}, opts)
}

func TestLoadHonorsMongoEnvironment(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("MONGO_DATABASE", "fara_test")
	t.Setenv("CRAWLER_SINK_KIND", "mongo")
	t.Setenv("CRAWLER_CRAWLER_ROW_COUNT", "12")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "mongodb://localhost:27017", cfg.Mongo.URI)
	assert.Equal(t, "fara_test", cfg.Mongo.Database)
	require.NotNil(t, cfg.Crawler.RowCount)
	assert.Equal(t, 12, *cfg.Crawler.RowCount)

	opts := cfg.RunOptions()
	assert.True(t, opts.SinkEnabled)
	assert.Equal(t, "mongodb://localhost:27017", opts.ConnectionString)
	assert.Equal(t, "fara_test", opts.DatabaseName)
}

func TestLoadDefaultsMongoURI(t *testing.T) {
	t.Setenv("CRAWLER_SINK_KIND", "mongo")

	cfg, err := Load("")
	require.NoError(t, err)

	opts := cfg.RunOptions()
	assert.True(t, opts.SinkEnabled)
	assert.Equal(t, "mongodb://localhost:27017", opts.ConnectionString)
	assert.Equal(t, "afp_db", opts.DatabaseName)
}

func TestLoadRejectsShortDetailTimeout(t *testing.T) {
	t.Setenv("CRAWLER_CRAWLER_DETAIL_TIMEOUT", "60s")

	_, err := Load("")
	require.ErrorContains(t, err, "crawler.detail_timeout must cover")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	valid := func() Config {
		return Config{
			Crawler: CrawlerConfig{
				EntryURL:      "https://efile.fara.gov/ords/f?p=171:1",
				BaseURL:       "https://efile.fara.gov/ords",
				AjaxURL:       "https://efile.fara.gov/ords/wwv_flow.ajax",
				Concurrency:   1,
				DetailTimeout: 10 * time.Second,
			},
			HTTP: HTTPConfig{TimeoutSeconds: 10, MaxRetries: 1},
		}
	}
	require.NoError(t, valid().Validate())

	negative := -1
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"relative entry url", func(c *Config) { c.Crawler.EntryURL = "ords/f?p=171:1" }, "crawler.entry_url"},
		{"negative row count", func(c *Config) { c.Crawler.RowCount = &negative }, "crawler.row_count"},
		{"invalid concurrency", func(c *Config) { c.Crawler.Concurrency = 0 }, "crawler.concurrency"},
		{"invalid detail timeout", func(c *Config) { c.Crawler.DetailTimeout = 0 }, "crawler.detail_timeout"},
		{"invalid timeout", func(c *Config) { c.HTTP.TimeoutSeconds = 0 }, "http.timeout_seconds"},
		{"invalid retries", func(c *Config) { c.HTTP.MaxRetries = 0 }, "http.max_retries"},
		{"unknown sink", func(c *Config) { c.Sink.Kind = "sqlite" }, "sink.kind"},
		{"detail timeout below retry budget", func(c *Config) { c.HTTP.MaxRetries = 2 }, "crawler.detail_timeout must cover"},
		{"postgres without dsn", func(c *Config) { c.Sink.Kind = SinkPostgres }, "postgres.dsn"},
		{"topic without project", func(c *Config) { c.PubSub.TopicName = "fara-runs" }, "pubsub.project_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestExampleConfigLoads(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config.example.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Crawler.Concurrency)
	assert.Equal(t, "results/items.json", cfg.Output.Path)
	assert.False(t, cfg.Logging.Development)
	assert.Nil(t, cfg.Crawler.RowCount)
}
