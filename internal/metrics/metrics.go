// Package metrics exposes Prometheus collectors for the FARA crawler.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels shared by the crawl counters.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
)

var (
	crawlerRequestsTotal          *prometheus.CounterVec
	crawlerRequestDuration        *prometheus.HistogramVec
	crawlerRecordsTotal           *prometheus.CounterVec
	crawlerExhibitsTotal          prometheus.Counter
	crawlerSinkWritesTotal        *prometheus.CounterVec
	crawlerRateLimitDelaysSeconds *prometheus.HistogramVec
	httpRequestsTotal             *prometheus.CounterVec
	httpRequestDurationSeconds    *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors. It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlerRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fara_requests_total",
				Help: "Requests sent to the FARA portal, labeled by page kind and outcome.",
			},
			[]string{"kind", "outcome"},
		)

		crawlerRequestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fara_request_duration_seconds",
				Help:    "Latency of requests to the FARA portal, labeled by page kind.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"kind"},
		)

		crawlerRecordsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fara_records_total",
				Help: "Foreign principal records processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		crawlerExhibitsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "fara_exhibits_total",
				Help: "Exhibits attached to completed records.",
			},
		)

		crawlerSinkWritesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fara_sink_writes_total",
				Help: "Record writes to the document sink, labeled by sink and outcome.",
			},
			[]string{"sink", "outcome"},
		)

		crawlerRateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fara_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"domain"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRequest records one portal request.
func ObserveRequest(kind, outcome string, duration time.Duration) {
	Init()
	crawlerRequestsTotal.WithLabelValues(kind, outcome).Inc()
	crawlerRequestDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// ObserveRecord counts a record as completed or failed.
func ObserveRecord(outcome string) {
	Init()
	crawlerRecordsTotal.WithLabelValues(outcome).Inc()
}

// ObserveExhibits adds n exhibits to the running total.
func ObserveExhibits(n int) {
	Init()
	if n > 0 {
		crawlerExhibitsTotal.Add(float64(n))
	}
}

// ObserveSinkWrite counts one write to the named sink.
func ObserveSinkWrite(sink, outcome string) {
	Init()
	crawlerSinkWritesTotal.WithLabelValues(sink, outcome).Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	crawlerRateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics of the ops server.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
