package crawler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/fara-crawler/internal/clock/system"
	"github.com/JakeFAU/fara-crawler/internal/fara"
	"github.com/JakeFAU/fara-crawler/internal/hash/sha256"
	"github.com/JakeFAU/fara-crawler/internal/metrics"
)

var tracer = otel.Tracer("github.com/JakeFAU/fara-crawler/internal/crawler")

// ErrRecordsFailed marks a run in which at least one row could not be turned
// into a complete record. The run's other records are still delivered.
var ErrRecordsFailed = errors.New("records failed")

// Engine runs one crawl: listing page, worksheet, full table POST, then one
// detail page per row.
type Engine struct {
	cfg       Config
	fetcher   Fetcher
	sink      Sink
	feed      BlobStore
	publisher Publisher
	retry     RetryPolicy
	limiter   RateLimiter
	clock     Clock
	hasher    Hasher
	logger    *zap.Logger
}

// NewEngine wires the crawl. sink, feed, publisher and limiter are optional.
func NewEngine(
	cfg Config,
	fetcher Fetcher,
	sink Sink,
	feed BlobStore,
	publisher Publisher,
	retry RetryPolicy,
	limiter RateLimiter,
	clock Clock,
	logger *zap.Logger,
) *Engine {
	if retry == nil {
		retry = NewExponentialRetryPolicy(0, 0, 0)
	}
	if clock == nil {
		clock = system.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Engine{
		cfg:       cfg,
		fetcher:   fetcher,
		sink:      sink,
		feed:      feed,
		publisher: publisher,
		retry:     retry,
		limiter:   limiter,
		clock:     clock,
		hasher:    sha256.New(),
		logger:    logger.With(zap.String("run_id", cfg.RunID)),
	}
}

// Run executes the crawl. Page-level failures, sink failures and cancellation
// abort the run and return no records. Row-level failures drop the affected
// records and are reported as ErrRecordsFailed alongside the Result.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	if err := e.cfg.Validate(); err != nil {
		return Result{}, fmt.Errorf("invalid crawler config: %w", err)
	}
	if e.fetcher == nil {
		return Result{}, errors.New("no fetcher configured")
	}

	ctx, span := tracer.Start(ctx, "crawler.Run", trace.WithAttributes(attribute.String("run_id", e.cfg.RunID)))
	defer span.End()

	res := Result{RunID: e.cfg.RunID, StartedAt: e.clock.Now()}
	e.logger.Info("crawl started", zap.String("entry_url", e.cfg.EntryURL))

	path, err := e.fetchListingPage(ctx)
	if err != nil {
		return res, spanError(span, err)
	}
	e.logger.Info("worksheet located", zap.String("path", path))

	table, expected, err := e.fetchAllRows(ctx, path)
	if err != nil {
		return res, spanError(span, err)
	}
	res.Expected = expected

	partials, failures, err := e.parseRows(table)
	if err != nil {
		return res, spanError(span, err)
	}
	total := len(partials) + len(failures)
	e.logger.Info("worksheet parsed",
		zap.Int("expected_rows", expected),
		zap.Int("rows", len(partials)),
		zap.Int("bad_rows", len(failures)),
	)

	records, recordFailures, err := e.resolveAll(ctx, partials)
	failures = append(failures, recordFailures...)
	res.Failed = len(failures)
	if err != nil {
		return res, spanError(span, err)
	}
	res.Records = records
	res.Completed = len(records)

	uri, digest, err := e.writeFeed(ctx, records)
	if err != nil {
		return res, spanError(span, err)
	}
	res.FeedURI = uri
	res.FeedSHA256 = digest
	res.FinishedAt = e.clock.Now()

	e.publishSummary(ctx, res)

	e.logger.Info("crawl finished",
		zap.Int("completed", res.Completed),
		zap.Int("failed", res.Failed),
		zap.String("feed_uri", res.FeedURI),
		zap.Duration("elapsed", res.FinishedAt.Sub(res.StartedAt)),
	)
	if len(failures) > 0 {
		err := fmt.Errorf("%w: %d of %d: %w", ErrRecordsFailed, len(failures), total, errors.Join(failures...))
		return res, spanError(span, err)
	}
	return res, nil
}

// fetchListingPage returns the relative path of the worksheet.
func (e *Engine) fetchListingPage(ctx context.Context) (string, error) {
	ctx, span := tracer.Start(ctx, "crawler.listing")
	defer span.End()

	resp, err := e.fetch(ctx, FetchRequest{Kind: KindListing, URL: e.cfg.EntryURL})
	if err != nil {
		return "", spanError(span, fmt.Errorf("fetch listing page: %w", err))
	}
	doc, err := fara.NewDocument(resp.Body)
	if err != nil {
		return "", spanError(span, fmt.Errorf("listing page: %w", err))
	}
	path, err := fara.ListingPath(doc)
	if err != nil {
		return "", spanError(span, fmt.Errorf("listing page: %w", err))
	}
	return path, nil
}

// fetchAllRows loads the worksheet and posts for every row in one response.
// It returns the table response and the row count that was requested.
func (e *Engine) fetchAllRows(ctx context.Context, path string) (FetchResponse, int, error) {
	ctx, span := tracer.Start(ctx, "crawler.worksheet")
	defer span.End()

	worksheetURL := fara.JoinURL(e.cfg.BaseURL, path)
	page, err := e.fetch(ctx, FetchRequest{Kind: KindWorksheet, URL: worksheetURL})
	if err != nil {
		return FetchResponse{}, 0, spanError(span, fmt.Errorf("fetch worksheet: %w", err))
	}
	doc, err := fara.NewDocument(page.Body)
	if err != nil {
		return FetchResponse{}, 0, spanError(span, fmt.Errorf("worksheet: %w", err))
	}
	tokens, err := fara.ParseWorksheetTokens(doc)
	if err != nil {
		return FetchResponse{}, 0, spanError(span, fmt.Errorf("worksheet: %w", err))
	}
	ajaxID, err := fara.AjaxIdentifier(string(page.Body))
	if err != nil {
		return FetchResponse{}, 0, spanError(span, fmt.Errorf("worksheet: %w", err))
	}

	count, source := 0, "override"
	if e.cfg.RowCountOverride != nil {
		count = *e.cfg.RowCountOverride
	} else {
		source = "page"
		count, err = fara.ParseRowCount(doc)
		if err != nil {
			return FetchResponse{}, 0, spanError(span, fmt.Errorf("worksheet: %w", err))
		}
	}
	span.SetAttributes(attribute.Int("row_count", count), attribute.String("row_count_source", source))
	e.logger.Info("requesting full table",
		zap.String("flow_id", tokens.FlowID),
		zap.String("flow_step_id", tokens.FlowStepID),
		zap.Int("row_count", count),
		zap.String("row_count_source", source),
	)

	table, err := e.fetch(ctx, FetchRequest{
		Kind: KindTable,
		URL:  e.cfg.AjaxURL,
		Form: fara.BuildWorksheetPayload(tokens, ajaxID, count),
	})
	if err != nil {
		return FetchResponse{}, 0, spanError(span, fmt.Errorf("post worksheet form: %w", err))
	}
	return table, count, nil
}

// parseRows splits row-level failures from a missing table, which is fatal.
func (e *Engine) parseRows(table FetchResponse) ([]fara.PartialRecord, []error, error) {
	doc, err := fara.NewDocument(table.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("worksheet table: %w", err)
	}
	partials, err := fara.ParseRows(doc, e.cfg.BaseURL)
	if err == nil {
		return partials, nil, nil
	}
	var rowErr *fara.RowError
	if !errors.As(err, &rowErr) {
		return nil, nil, fmt.Errorf("worksheet table: %w", err)
	}
	var failures []error
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		failures = joined.Unwrap()
	} else {
		failures = []error{err}
	}
	for _, f := range failures {
		metrics.ObserveRecord(metrics.OutcomeFailed)
		e.logger.Warn("dropping worksheet row", zap.Error(f))
	}
	return partials, failures, nil
}

// resolveAll fetches every detail page on a bounded pool. Records reach the
// sink as they complete; the returned slice keeps worksheet order.
func (e *Engine) resolveAll(ctx context.Context, partials []fara.PartialRecord) ([]fara.Record, []error, error) {
	slots := make([]*fara.Record, len(partials))
	var (
		mu       sync.Mutex
		failures []error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)
	for i, partial := range partials {
		g.Go(func() error {
			rec, err := e.resolveRecord(gctx, partial)
			if err != nil {
				if gctx.Err() != nil {
					return nil
				}
				metrics.ObserveRecord(metrics.OutcomeFailed)
				e.logger.Warn("dropping record", zap.String("url", partial.URL), zap.Error(err))
				mu.Lock()
				failures = append(failures, fmt.Errorf("record %s: %w", partial.URL, err))
				mu.Unlock()
				return nil
			}
			if err := e.store(gctx, rec); err != nil {
				return err
			}
			metrics.ObserveRecord(metrics.OutcomeCompleted)
			slots[i] = &rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, failures, err
	}
	if err := ctx.Err(); err != nil {
		return nil, failures, fmt.Errorf("crawl interrupted: %w", err)
	}

	records := make([]fara.Record, 0, len(partials))
	for _, rec := range slots {
		if rec != nil {
			records = append(records, *rec)
		}
	}
	return records, failures, nil
}

// resolveRecord fetches one detail page and attaches its exhibits.
func (e *Engine) resolveRecord(ctx context.Context, partial fara.PartialRecord) (fara.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.DetailTimeout)
	defer cancel()
	ctx, span := tracer.Start(ctx, "crawler.detail", trace.WithAttributes(attribute.String("url", partial.URL)))
	defer span.End()

	resp, err := e.fetch(ctx, FetchRequest{Kind: KindDetail, URL: partial.URL})
	if err != nil {
		return fara.Record{}, spanError(span, fmt.Errorf("fetch detail page: %w", err))
	}
	doc, err := fara.NewDocument(resp.Body)
	if err != nil {
		return fara.Record{}, spanError(span, fmt.Errorf("detail page: %w", err))
	}
	exhibits, err := fara.CollectExhibits(doc)
	if err != nil {
		return fara.Record{}, spanError(span, fmt.Errorf("detail page exhibits: %w", err))
	}
	metrics.ObserveExhibits(len(exhibits))
	e.logger.Debug("record resolved", zap.String("url", partial.URL), zap.Int("exhibits", len(exhibits)))
	return partial.Complete(exhibits), nil
}

func (e *Engine) store(ctx context.Context, rec fara.Record) error {
	if e.sink == nil {
		return nil
	}
	if err := e.sink.Store(ctx, rec); err != nil {
		metrics.ObserveSinkWrite(e.sink.Name(), metrics.OutcomeFailed)
		return fmt.Errorf("store record %s in %s: %w", rec.URL, e.sink.Name(), err)
	}
	metrics.ObserveSinkWrite(e.sink.Name(), metrics.OutcomeCompleted)
	return nil
}

// fetch applies rate limiting and the retry policy around one request.
func (e *Engine) fetch(ctx context.Context, req FetchRequest) (FetchResponse, error) {
	for attempt := 1; ; attempt++ {
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx, req.URL); err != nil {
				return FetchResponse{}, err
			}
		}
		start := time.Now()
		resp, err := e.fetcher.Fetch(ctx, req)
		if err == nil {
			metrics.ObserveRequest(req.Kind, metrics.OutcomeCompleted, time.Since(start))
			return resp, nil
		}
		metrics.ObserveRequest(req.Kind, metrics.OutcomeFailed, time.Since(start))
		if ctx.Err() != nil {
			return FetchResponse{}, fmt.Errorf("%s %s: %w", req.Method(), req.URL, errors.Join(err, ctx.Err()))
		}
		if !e.retry.ShouldRetry(err, attempt) {
			return FetchResponse{}, fmt.Errorf("%s %s: %w", req.Method(), req.URL, err)
		}
		wait := e.retry.Backoff(attempt - 1)
		e.logger.Warn("request failed, retrying",
			zap.String("kind", req.Kind),
			zap.String("url", req.URL),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return FetchResponse{}, fmt.Errorf("%s %s: %w", req.Method(), req.URL, ctx.Err())
		case <-timer.C:
		}
	}
}

// writeFeed replaces the feed object and returns its URI and content digest.
func (e *Engine) writeFeed(ctx context.Context, records []fara.Record) (string, string, error) {
	if e.feed == nil || e.cfg.FeedObject == "" {
		return "", "", nil
	}
	payload, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("marshal feed: %w", err)
	}
	digest, err := e.hasher.Hash(payload)
	if err != nil {
		return "", "", fmt.Errorf("hash feed: %w", err)
	}
	uri, err := e.feed.PutObject(ctx, e.cfg.FeedObject, "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", "", fmt.Errorf("write feed: %w", err)
	}
	return uri, digest, nil
}

// publishSummary is best effort: the records are already persisted.
func (e *Engine) publishSummary(ctx context.Context, res Result) {
	if e.publisher == nil {
		return
	}
	id, err := e.publisher.Publish(ctx, res)
	if err != nil {
		e.logger.Error("publish run summary failed", zap.Error(err))
		return
	}
	e.logger.Info("run summary published", zap.String("message_id", id))
}

func spanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
