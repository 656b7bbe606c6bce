// Package mongo stores completed records in a MongoDB collection, one
// document per foreign principal.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/JakeFAU/fara-crawler/internal/fara"
)

// Defaults used when Config leaves the fields empty.
const (
	DefaultURI        = "mongodb://localhost:27017"
	DefaultDatabase   = "afp_db"
	DefaultCollection = "afp_collection"
)

// Config describes the target collection.
type Config struct {
	URI            string
	Database       string
	Collection     string
	ConnectTimeout time.Duration
}

type inserter interface {
	InsertOne(ctx context.Context, document any, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
}

// Sink inserts one document per record.
type Sink struct {
	client     *mongo.Client
	collection inserter
}

// New connects to MongoDB and pings the primary before returning.
func New(ctx context.Context, cfg Config) (*Sink, error) {
	if cfg.URI == "" {
		cfg.URI = DefaultURI
	}
	if cfg.Database == "" {
		cfg.Database = DefaultDatabase
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.ConnectTimeout > 0 {
		opts.SetConnectTimeout(cfg.ConnectTimeout).SetServerSelectionTimeout(cfg.ConnectTimeout)
	}
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &Sink{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
	}, nil
}

// NewWithCollection wraps an existing collection (primarily for testing).
func NewWithCollection(collection inserter) (*Sink, error) {
	if collection == nil {
		return nil, errors.New("collection is required")
	}
	return &Sink{collection: collection}, nil
}

// Name identifies the sink in logs and metrics.
func (*Sink) Name() string { return "mongo" }

// Store inserts record as a new document.
func (s *Sink) Store(ctx context.Context, record fara.Record) error {
	if _, err := s.collection.InsertOne(ctx, record); err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// Close disconnects the client, if the sink owns one.
func (s *Sink) Close(ctx context.Context) error {
	if s == nil || s.client == nil {
		return nil
	}
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect mongo: %w", err)
	}
	return nil
}
