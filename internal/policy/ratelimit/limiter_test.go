package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterWaitThrottlesSameHost(t *testing.T) {
	t.Parallel()

	l := New(Config{RequestsPerSecond: 10, Burst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://efile.fara.gov/ords/f?p=171:1"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://efile.fara.gov/ords/f?p=171:200"))
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestLimiterHostsAreIndependent(t *testing.T) {
	t.Parallel()

	l := New(Config{RequestsPerSecond: 1, Burst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://a.example.com/1"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://b.example.com/1"))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestLimiterDisabled(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	ctx := context.Background()
	start := time.Now()
	for range 20 {
		require.NoError(t, l.Wait(ctx, "https://efile.fara.gov/"))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestLimiterWaitHonorsContext(t *testing.T) {
	t.Parallel()

	l := New(Config{RequestsPerSecond: 0.1, Burst: 1})
	require.NoError(t, l.Wait(context.Background(), "https://efile.fara.gov/"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := l.Wait(ctx, "https://efile.fara.gov/")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
