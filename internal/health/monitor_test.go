package health

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/price-sentry/internal/model"
	"github.com/sells-group/price-sentry/internal/store"
)

func newTestMonitor() *Monitor {
	return NewMonitor(store.NewMemory())
}

func record(ctx context.Context, m *Monitor, host string, success bool, conf model.Confidence) {
	m.Record(ctx, model.ExtractionEvent{
		Hostname:   host,
		Success:    success,
		Confidence: conf,
		Method:     model.MethodSiteSelector,
		Tier:       1,
	})
}

func TestMonitor_AggregateCounts(t *testing.T) {
	ctx := context.Background()
	m := newTestMonitor()

	record(ctx, m, "h.test", true, model.ConfidenceHigh)
	record(ctx, m, "h.test", true, model.ConfidenceMedium)
	record(ctx, m, "h.test", false, model.ConfidenceNone)

	h := m.Health(ctx, "h.test")
	assert.Equal(t, 3, h.Attempts)
	assert.Equal(t, 1, h.HighSuccesses)
	assert.Equal(t, 1, h.MediumSuccesses)
	assert.Equal(t, 1, h.Failures)
	assert.InDelta(t, 2.0/3.0, h.SuccessRate, 0.001)
	assert.NotNil(t, h.LastSuccessAt)
	assert.NotNil(t, h.LastFailureAt)
}

func TestMonitor_DegradationNeedsHistory(t *testing.T) {
	ctx := context.Background()
	m := newTestMonitor()

	// Two failures are not enough history to call a host degraded.
	record(ctx, m, "h.test", false, model.ConfidenceNone)
	record(ctx, m, "h.test", false, model.ConfidenceNone)
	assert.False(t, m.Health(ctx, "h.test").IsDegraded)

	// A fourth attempt with one success out of four crosses the line.
	record(ctx, m, "h.test", false, model.ConfidenceNone)
	record(ctx, m, "h.test", true, model.ConfidenceHigh)
	h := m.Health(ctx, "h.test")
	assert.Equal(t, 4, h.Attempts)
	assert.True(t, h.IsDegraded)
}

func TestMonitor_UnknownHostZeroAggregate(t *testing.T) {
	h := newTestMonitor().Health(context.Background(), "never-seen.test")
	assert.Equal(t, 0, h.Attempts)
	assert.False(t, h.IsDegraded)
	assert.Nil(t, h.LastSuccessAt)
}

func TestMonitor_RetentionTrims(t *testing.T) {
	ctx := context.Background()
	m := newTestMonitor().WithRetention(5)

	for range 8 {
		record(ctx, m, "h.test", false, model.ConfidenceNone)
	}
	record(ctx, m, "h.test", true, model.ConfidenceHigh)

	events, err := m.Events(ctx, "h.test")
	require.NoError(t, err)
	assert.Len(t, events, 5)
	assert.True(t, events[4].Success, "newest events survive the trim")
	assert.Equal(t, 5, m.Health(ctx, "h.test").Attempts)
}

func TestMonitor_SanitizesPersistedErrors(t *testing.T) {
	ctx := context.Background()
	m := newTestMonitor()

	m.Record(ctx, model.ExtractionEvent{
		Hostname: "h.test",
		Success:  false,
		Errors: []string{
			"guest alice@example.com not found",
			"card 4111 1111 1111 1111 declined",
			"fetch https://h.test/checkout?token=abc123&step=2 failed",
			strings.Repeat("x", 2000),
		},
	})

	events, err := m.Events(ctx, "h.test")
	require.NoError(t, err)
	require.Len(t, events, 1)

	errs := events[0].Errors
	assert.Contains(t, errs[0], "[redacted-email]")
	assert.NotContains(t, errs[0], "alice@example.com")
	assert.Contains(t, errs[1], "[redacted-number]")
	assert.NotContains(t, errs[1], "4111")
	assert.Contains(t, errs[2], "token=redacted")
	assert.NotContains(t, errs[2], "abc123")
	assert.LessOrEqual(t, len(errs[3]), 500)
}

func TestMonitor_FixedClockTimestamps(t *testing.T) {
	ctx := context.Background()
	ts := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	m := newTestMonitor().WithNow(func() time.Time { return ts })

	record(ctx, m, "h.test", true, model.ConfidenceHigh)
	h := m.Health(ctx, "h.test")
	require.NotNil(t, h.LastSuccessAt)
	assert.Equal(t, ts, *h.LastSuccessAt)
}
