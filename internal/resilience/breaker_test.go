package resilience_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-rewards/internal/resilience"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(min int, ratio float64, openFor time.Duration) (*resilience.Breaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	return resilience.NewBreaker(min, ratio, openFor).WithClock(clock.Now), clock
}

func TestBreakerTransitions(t *testing.T) {
	breaker, clock := newTestBreaker(2, 0.5, time.Second)
	ctx := context.Background()

	require.True(t, breaker.Allow(ctx))
	breaker.Report(ctx, false)
	require.Equal(t, resilience.Closed, breaker.State(), "below min requests")
	require.True(t, breaker.Allow(ctx))
	breaker.Report(ctx, false)

	require.Equal(t, resilience.Open, breaker.State())
	require.False(t, breaker.Allow(ctx))

	clock.Advance(time.Second)
	require.True(t, breaker.Allow(ctx), "probe after cool off")
	require.Equal(t, resilience.HalfOpen, breaker.State())
	breaker.Report(ctx, true)
	require.Equal(t, resilience.Closed, breaker.State())
	require.True(t, breaker.Allow(ctx))
}

func TestBreakerHalfOpenAdmitsSingleProbe(t *testing.T) {
	breaker, clock := newTestBreaker(1, 0.5, time.Second)
	ctx := context.Background()

	breaker.Report(ctx, false)
	clock.Advance(2 * time.Second)

	require.True(t, breaker.Allow(ctx))
	require.False(t, breaker.Allow(ctx), "second caller waits for the probe")

	breaker.Report(ctx, false)
	require.Equal(t, resilience.Open, breaker.State())
	require.False(t, breaker.Allow(ctx), "failed probe restarts the cool off")
}

func TestBreakerRollingWindowForgetsOldFailures(t *testing.T) {
	breaker, _ := newTestBreaker(2, 0.75, time.Second)
	ctx := context.Background()

	// window of four: F S S S keeps the ratio at 0.25
	breaker.Report(ctx, false)
	breaker.Report(ctx, true)
	breaker.Report(ctx, true)
	breaker.Report(ctx, true)
	require.Equal(t, resilience.Closed, breaker.State())

	// the oldest failure is overwritten first
	breaker.Report(ctx, false)
	breaker.Report(ctx, false)
	require.Equal(t, resilience.Closed, breaker.State())
	breaker.Report(ctx, false)
	require.Equal(t, resilience.Open, breaker.State())
}

func TestBackoff(t *testing.T) {
	base := 100 * time.Millisecond
	require.Equal(t, base, resilience.Backoff(base, 1, 0))
	require.Equal(t, base*4, resilience.Backoff(base, 3, 0))
	require.Equal(t, 30*time.Second, resilience.Backoff(base, 40, 0))

	d := resilience.Backoff(base, 2, 0.2)
	require.GreaterOrEqual(t, d, base*2-base*2/5)
	require.LessOrEqual(t, d, base*2+base*2/5)
}

func TestBreakerPublishesMetrics(t *testing.T) {
	breaker, clock := newTestBreaker(1, 0.5, time.Second)
	breaker.WithTarget("catalog-metrics")
	ctx := context.Background()
	state := func() float64 { return testutil.ToFloat64(resilience.BreakerState.WithLabelValues("catalog-metrics")) }
	transitions := func(from, to string) float64 {
		return testutil.ToFloat64(resilience.BreakerTransitions.WithLabelValues("catalog-metrics", from, to))
	}

	require.Zero(t, state())
	breaker.Report(ctx, false)
	require.Equal(t, 1.0, state())

	clock.Advance(time.Second)
	require.True(t, breaker.Allow(ctx))
	require.Equal(t, 2.0, state())

	breaker.Report(ctx, true)
	require.Zero(t, state())

	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerOpenedTotal.WithLabelValues("catalog-metrics")))
	require.Equal(t, 1.0, transitions("closed", "open"))
	require.Equal(t, 1.0, transitions("open", "half_open"))
	require.Equal(t, 1.0, transitions("half_open", "closed"))
}
