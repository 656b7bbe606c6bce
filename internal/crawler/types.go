package crawler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/JakeFAU/fara-crawler/internal/fara"
)

// Request kinds used for logging, metrics and span names.
const (
	KindListing   = "listing"
	KindWorksheet = "worksheet"
	KindTable     = "table"
	KindDetail    = "detail"
)

// FetchRequest captures everything needed to issue one portal request.
// A non-nil Form turns the request into a form-encoded POST.
type FetchRequest struct {
	Kind    string
	URL     string
	Form    map[string]string
	Headers http.Header
}

// Method reports the HTTP method implied by the request.
func (r FetchRequest) Method() string {
	if r.Form != nil {
		return http.MethodPost
	}
	return http.MethodGet
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// StatusError reports a response whose status code is not a success.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d (%s) from %s", e.StatusCode, http.StatusText(e.StatusCode), e.URL)
}

// Result summarises a finished run. Records are in worksheet row order.
type Result struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Expected   int           `json:"expected_rows"`
	Records    []fara.Record `json:"-"`
	Completed  int           `json:"completed"`
	Failed     int           `json:"failed"`
	FeedURI    string        `json:"feed_uri,omitempty"`
	FeedSHA256 string        `json:"feed_sha256,omitempty"`
}
