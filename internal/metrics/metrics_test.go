package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard https", "https://efile.fara.gov/ords/f?p=171:1", "efile.fara.gov"},
		{"mixed case", "https://EFile.FARA.gov/path", "efile.fara.gov"},
		{"no scheme", "efile.fara.gov/ords", "efile.fara.gov"},
		{"host with port", "127.0.0.1:8080", "127.0.0.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, SanitizeSite(tc.input))
		})
	}
}

func TestInitIdempotent(t *testing.T) {
	Init()
	Init()

	require.NotNil(t, crawlerRequestsTotal)
	require.NotNil(t, crawlerRecordsTotal)
	require.NotNil(t, crawlerSinkWritesTotal)
	require.NotNil(t, httpRequestsTotal)
}

func TestObserveCounters(t *testing.T) {
	Init()

	beforeRecords := testutil.ToFloat64(crawlerRecordsTotal.WithLabelValues(OutcomeFailed))
	ObserveRecord(OutcomeFailed)
	assert.InDelta(t, beforeRecords+1, testutil.ToFloat64(crawlerRecordsTotal.WithLabelValues(OutcomeFailed)), 0)

	beforeReq := testutil.ToFloat64(crawlerRequestsTotal.WithLabelValues("detail", OutcomeCompleted))
	ObserveRequest("detail", OutcomeCompleted, 20*time.Millisecond)
	assert.InDelta(t, beforeReq+1, testutil.ToFloat64(crawlerRequestsTotal.WithLabelValues("detail", OutcomeCompleted)), 0)

	beforeExhibits := testutil.ToFloat64(crawlerExhibitsTotal)
	ObserveExhibits(3)
	ObserveExhibits(0)
	assert.InDelta(t, beforeExhibits+3, testutil.ToFloat64(crawlerExhibitsTotal), 0)

	beforeSink := testutil.ToFloat64(crawlerSinkWritesTotal.WithLabelValues("mongo", OutcomeCompleted))
	ObserveSinkWrite("mongo", OutcomeCompleted)
	assert.InDelta(t, beforeSink+1, testutil.ToFloat64(crawlerSinkWritesTotal.WithLabelValues("mongo", OutcomeCompleted)), 0)

	ObserveRateLimitDelay("efile.fara.gov", 10*time.Millisecond)
	assert.Positive(t, testutil.CollectAndCount(crawlerRateLimitDelaysSeconds))
}

func FuzzSanitizeSite(f *testing.F) {
	for _, tc := range []string{"https://efile.fara.gov", "efile.fara.gov", "ftp://example.com"} {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		if SanitizeSite(orig) == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
