package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/price-sentry/internal/dom"
	"github.com/sells-group/price-sentry/internal/model"
	"github.com/sells-group/price-sentry/internal/pipeline"
)

// priceTier is a controllable tier-1 extractor for driving the watch loop.
type priceTier struct {
	mu     sync.Mutex
	amount float64
	fail   bool
}

func (p *priceTier) Name() string { return "stub" }
func (p *priceTier) Tier() int    { return 1 }

func (p *priceTier) set(amount float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.amount = amount
}

func (p *priceTier) Extract(context.Context, *dom.Document) *model.ExtractionResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return &model.ExtractionResult{Confidence: model.ConfidenceNone, Method: model.MethodNone, Tier: 1}
	}
	return &model.ExtractionResult{
		OK:         true,
		Value:      &model.PriceBreakdown{Total: &model.Money{Amount: p.amount, Currency: "USD"}},
		Confidence: model.ConfidenceHigh,
		Method:     model.MethodSiteSelector,
		Tier:       1,
	}
}

type chanNav struct{ ch chan string }

func (c chanNav) Navigations() <-chan string { return c.ch }

type chanMut struct{ ch chan Mutation }

func (c chanMut) Mutations() <-chan Mutation { return c.ch }

func staticDoc(t *testing.T) DocumentSource {
	t.Helper()
	return func(context.Context) (*dom.Document, error) {
		return dom.ParseString("<html><body></body></html>", "https://watch.test/checkout")
	}
}

func newTestWatcher(t *testing.T, tier *priceTier) (*Watcher, chan Result, chanNav, chanMut) {
	t.Helper()
	nav := chanNav{ch: make(chan string, 4)}
	mut := chanMut{ch: make(chan Mutation, 16)}
	results := make(chan Result, 32)

	w := New(pipeline.New(tier), staticDoc(t), func(r Result) { results <- r }).
		WithSources(nav, mut).
		WithDebounce(20 * time.Millisecond)
	t.Cleanup(w.Stop)
	return w, results, nav, mut
}

func waitResult(t *testing.T, results chan Result) Result {
	t.Helper()
	select {
	case r := <-results:
		return r
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for a watch result")
		return Result{}
	}
}

func TestWatcher_InitialExtraction(t *testing.T) {
	tier := &priceTier{amount: 100}
	w, results, _, _ := newTestWatcher(t, tier)
	require.NoError(t, w.Start(context.Background()))

	r := waitResult(t, results)
	assert.Equal(t, TriggerForced, r.Trigger)
	require.True(t, r.Extraction.Final.OK)
	assert.False(t, r.Stable, "a single read is never stable")
}

func TestWatcher_MutationStormDebouncesToOneRun(t *testing.T) {
	tier := &priceTier{amount: 100}
	w, results, _, mut := newTestWatcher(t, tier)
	require.NoError(t, w.Start(context.Background()))
	waitResult(t, results) // initial run

	for range 5 {
		mut.ch <- Mutation{Text: "$100.00"}
	}

	r := waitResult(t, results)
	assert.Equal(t, TriggerMutation, r.Trigger)
	assert.True(t, r.Stable, "second agreeing read within the window is stable")

	select {
	case extra := <-results:
		t.Fatalf("storm produced a second run: %+v", extra)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestWatcher_NonPriceMutationIgnored(t *testing.T) {
	tier := &priceTier{amount: 100}
	w, results, _, mut := newTestWatcher(t, tier)
	require.NoError(t, w.Start(context.Background()))
	waitResult(t, results)

	mut.ch <- Mutation{Text: "cookie banner dismissed"}

	select {
	case r := <-results:
		t.Fatalf("non-price mutation triggered a run: %+v", r)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestWatcher_NavigationStartsNewSession(t *testing.T) {
	tier := &priceTier{amount: 100}
	w, results, nav, _ := newTestWatcher(t, tier)
	require.NoError(t, w.Start(context.Background()))
	waitResult(t, results)

	w.ForceExtraction(context.Background())
	r := waitResult(t, results)
	assert.True(t, r.Stable)

	tier.set(250) // the new page has a different price
	nav.ch <- "https://watch.test/other"

	r = waitResult(t, results)
	assert.Equal(t, TriggerNavigation, r.Trigger)
	assert.Equal(t, 1, r.Stability.StableReadCount)
	assert.False(t, r.Stability.PriceWasUnstable, "a navigation is not price instability")
	assert.False(t, r.Stable)
}

func TestWatcher_MaxWaitEmitsBestAvailable(t *testing.T) {
	tier := &priceTier{fail: true}
	w, results, _, _ := newTestWatcher(t, tier)
	w.WithMaxWait(60 * time.Millisecond)
	require.NoError(t, w.Start(context.Background()))
	waitResult(t, results) // initial, failed

	r := waitResult(t, results)
	assert.Equal(t, TriggerMaxWait, r.Trigger)
	assert.False(t, r.Extraction.Final.OK)
}

func TestWatcher_StopIsIdempotentAndFinal(t *testing.T) {
	tier := &priceTier{amount: 100}
	w, results, _, _ := newTestWatcher(t, tier)
	require.NoError(t, w.Start(context.Background()))
	waitResult(t, results)

	w.Stop()
	w.Stop() // second stop is a no-op

	w.ForceExtraction(context.Background())
	select {
	case r := <-results:
		t.Fatalf("callback fired after Stop: %+v", r)
	case <-time.After(100 * time.Millisecond):
	}

	require.NoError(t, w.Start(context.Background()), "a stopped watcher can restart")
}

func TestFileSource_EmitsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(path, []byte("<html></html>"), 0o644))

	src, err := NewFileSource(path)
	require.NoError(t, err)
	t.Cleanup(func() { src.Close() })

	require.NoError(t, os.WriteFile(path, []byte("<html><body>$9.99</body></html>"), 0o644))

	select {
	case <-src.Mutations():
	case <-time.After(3 * time.Second):
		t.Fatal("no mutation after file write")
	}
}
