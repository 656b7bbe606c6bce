// Package postgres stores completed records as JSONB rows.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/fara-crawler/internal/fara"
)

// DefaultTable receives records when Config.Table is empty.
const DefaultTable = "foreign_principals"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for record rows.
type Config struct {
	DSN             string
	Table           string
	RunID           string
	CreateTable     bool
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// Sink writes one row per record into Postgres.
type Sink struct {
	pool  execCloser
	table string
	runID string
}

// NewSink connects to Postgres and, when cfg.CreateTable is set, creates the
// record table if it does not exist.
func NewSink(ctx context.Context, cfg Config) (*Sink, error) {
	if cfg.DSN == "" {
		return nil, errors.New("postgres.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	sink, err := NewSinkWithPool(pool, cfg.Table, cfg.RunID)
	if err != nil {
		pool.Close()
		return nil, err
	}
	if cfg.CreateTable {
		if err := sink.EnsureTable(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return sink, nil
}

// NewSinkWithPool constructs a sink from an existing pool (primarily for testing).
func NewSinkWithPool(pool execCloser, table, runID string) (*Sink, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	if table == "" {
		table = DefaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Sink{pool: pool, table: table, runID: runID}, nil
}

// EnsureTable creates the record table if it is missing.
func (s *Sink) EnsureTable(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	run_id TEXT NOT NULL,
	url TEXT NOT NULL,
	document JSONB NOT NULL,
	inserted_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, s.table)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// Name identifies the sink in logs and metrics.
func (*Sink) Name() string { return "postgres" }

// Store inserts record as a JSONB document.
func (s *Sink) Store(ctx context.Context, record fara.Record) error {
	if s == nil || s.pool == nil {
		return errors.New("postgres sink is not configured")
	}
	document, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	query := fmt.Sprintf(`INSERT INTO %s (run_id, url, document) VALUES ($1, $2, $3)`, s.table)
	if _, err := s.pool.Exec(ctx, query, s.runID, record.URL, document); err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *Sink) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}
