package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/fara-crawler/internal/crawler"
)

func TestFetcherSharesSessionCookieAcrossRequests(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/ords/f", func(w http.ResponseWriter, _ *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "ORA_WWV_APP_171", Value: "session-1", Path: "/"})
		_, _ = w.Write([]byte("<html>worksheet</html>"))
	})
	mux.HandleFunc("/ords/wwv_flow.ajax", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		cookie, err := r.Cookie("ORA_WWV_APP_171")
		if err != nil || cookie.Value != "session-1" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte("rows=" + r.PostForm.Get("p_widget_num_return")))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	f, err := New(Config{UserAgent: "fara-test", Timeout: 2 * time.Second})
	require.NoError(t, err)

	page, err := f.Fetch(context.Background(), crawler.FetchRequest{Kind: crawler.KindWorksheet, URL: srv.URL + "/ords/f?p=171:130"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Contains(t, string(page.Body), "worksheet")

	table, err := f.Fetch(context.Background(), crawler.FetchRequest{
		Kind: crawler.KindTable,
		URL:  srv.URL + "/ords/wwv_flow.ajax",
		Form: map[string]string{"p_widget_num_return": "12"},
	})
	require.NoError(t, err)
	assert.Equal(t, "rows=12", string(table.Body))
}

func TestFetcherRevisitsSameURL(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(srv.Close)

	f, err := New(Config{})
	require.NoError(t, err)
	for range 2 {
		_, err := f.Fetch(context.Background(), crawler.FetchRequest{Kind: crawler.KindDetail, URL: srv.URL + "/detail"})
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), hits.Load())
}

func TestFetcherReturnsStatusError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	f, err := New(Config{})
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), crawler.FetchRequest{Kind: crawler.KindListing, URL: srv.URL})
	var statusErr *crawler.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.Equal(t, srv.URL, statusErr.URL)
}

func TestFetcherHonorsCanceledContext(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	f, err := New(Config{Timeout: 5 * time.Second})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = f.Fetch(ctx, crawler.FetchRequest{Kind: crawler.KindDetail, URL: srv.URL})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f, err := New(Config{})
	require.NoError(t, err)
	req := crawler.FetchRequest{
		URL:     "https://efile.fara.gov/ords/f?p=171:200",
		Headers: http.Header{"X-Trace": {"yes"}},
	}
	var result crawler.FetchResponse
	var fetchErr error

	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, req, time.Unix(0, 0), &result, &fetchErr)
	require.NotNil(t, hooks.onRequest)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	collyReq := &colly.Request{Headers: &http.Header{}}
	hooks.onRequest(collyReq)
	assert.Equal(t, "yes", collyReq.Headers.Get("X-Trace"))

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusOK,
		Body:       []byte("body"),
		Headers:    &http.Header{"X-Resp": {"ok"}},
		Request:    &colly.Request{URL: mustParseURL(t, req.URL)},
	})
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Equal(t, "body", string(result.Body))
	assert.Equal(t, "ok", result.Headers.Get("X-Resp"))

	hooks.onError(nil, errors.New("connection reset"))
	assert.EqualError(t, fetchErr, "connection reset")

	hooks.onError(&colly.Response{StatusCode: http.StatusTooManyRequests}, errors.New("Too Many Requests"))
	var statusErr *crawler.StatusError
	require.ErrorAs(t, fetchErr, &statusErr)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
}

func TestCopyHeadersHandlesNil(t *testing.T) {
	t.Parallel()

	f, err := New(Config{})
	require.NoError(t, err)
	collyReq := &colly.Request{Headers: &http.Header{}}
	f.copyHeaders(crawler.FetchRequest{}, collyReq)
	assert.Empty(t, *collyReq.Headers)
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

type stubHooks struct {
	onRequest  colly.RequestCallback
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnRequest(cb colly.RequestCallback) {
	s.onRequest = cb
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
