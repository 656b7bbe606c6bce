package crawler

import (
	"context"
	"io"
	"time"

	"github.com/JakeFAU/fara-crawler/internal/fara"
)

// Fetcher issues a single HTTP request and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Sink persists completed records, one call per record.
type Sink interface {
	Name() string
	Store(ctx context.Context, record fara.Record) error
}

// BlobStore writes the JSON feed and returns its URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher announces a finished run.
type Publisher interface {
	Publish(ctx context.Context, payload any) (string, error)
}

// RateLimiter throttles outbound requests per host.
type RateLimiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// RetryPolicy decides whether and when a failed request is retried.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// Hasher digests the serialized feed.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
