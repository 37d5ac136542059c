package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/price-sentry/internal/dom"
	"github.com/sells-group/price-sentry/internal/model"
	"github.com/sells-group/price-sentry/internal/money"
	"github.com/sells-group/price-sentry/internal/override"
	"github.com/sells-group/price-sentry/internal/registry"
	"github.com/sells-group/price-sentry/internal/store"
)

const checkoutPage = `
<html><body>
  <div id="summary">
    <span>Total due</span>
    <span class="total-price" style="font-size:22px;font-weight:700">$129.99</span>
  </div>
  <p><s>$599.00</s></p>
  <p class="teaser">From $99 per night</p>
  <span class="price-fb">$88.00</span>
  <span id="special">$210.00</span>
  <span data-testid="checkout-total-price">$150.00</span>
</body></html>`

func checkoutDoc(t *testing.T) *dom.Document {
	t.Helper()
	doc, err := dom.ParseString(checkoutPage, "https://booking.example.com/checkout")
	require.NoError(t, err)
	return doc
}

func testRegistry() *registry.Registry {
	return registry.New(registry.Config{
		Sites: map[string]registry.SiteSelectors{
			"booking.example.com": {
				Primary:  []string{".total-price"},
				Fallback: []string{".price-fb"},
			},
		},
	})
}

func TestSiteExtractor_PrimaryHit(t *testing.T) {
	e := NewSiteExtractor(testRegistry(), nil, nil, money.Options{})
	res := e.Extract(context.Background(), checkoutDoc(t))

	require.True(t, res.OK)
	assert.Equal(t, model.MethodSiteSelector, res.Method)
	assert.Equal(t, 1, res.Tier)
	assert.Equal(t, model.ConfidenceHigh, res.Confidence)
	require.NotNil(t, res.Value.Total)
	assert.InDelta(t, 129.99, res.Value.Total.Amount, 0.001)
	assert.Equal(t, "USD", res.Value.Total.Currency)
	assert.Equal(t, ".total-price", res.Evidence.Selector)
	assert.Contains(t, res.Evidence.DOMPath, "div#summary")
}

func TestSiteExtractor_FallbackDowngraded(t *testing.T) {
	reg := registry.New(registry.Config{
		Sites: map[string]registry.SiteSelectors{
			"booking.example.com": {
				Primary:  []string{".does-not-exist"},
				Fallback: []string{".price-fb"},
			},
		},
	})
	e := NewSiteExtractor(reg, nil, nil, money.Options{})
	res := e.Extract(context.Background(), checkoutDoc(t))

	require.True(t, res.OK)
	assert.Equal(t, model.ConfidenceMedium, res.Confidence, "fallback hits lose one confidence level")
	assert.InDelta(t, 88.0, res.Value.Total.Amount, 0.001)
}

func TestSiteExtractor_InvalidSelectorSkipped(t *testing.T) {
	reg := registry.New(registry.Config{
		Sites: map[string]registry.SiteSelectors{
			"booking.example.com": {Primary: []string{"p[[", ".total-price"}},
		},
	})
	e := NewSiteExtractor(reg, nil, nil, money.Options{})
	res := e.Extract(context.Background(), checkoutDoc(t))

	require.True(t, res.OK, "an invalid selector must not abort the cascade")
	assert.InDelta(t, 129.99, res.Value.Total.Amount, 0.001)
}

func TestSiteExtractor_OverrideWinsAndCounts(t *testing.T) {
	ctx := context.Background()
	ovs := override.NewStore(store.NewMemory())
	require.NoError(t, ovs.Save(ctx, model.UserOverride{
		Hostname:  "booking.example.com",
		Field:     model.FieldTotalPrice,
		Selectors: []string{"#special"},
	}))

	e := NewSiteExtractor(testRegistry(), nil, ovs, money.Options{})
	res := e.Extract(ctx, checkoutDoc(t))

	require.True(t, res.OK)
	assert.True(t, res.Evidence.FromOverride)
	assert.InDelta(t, 210.0, res.Value.Total.Amount, 0.001)

	saved, err := ovs.Get(ctx, "booking.example.com", "", model.FieldTotalPrice)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, 1, saved.SuccessCount)
}

func TestSiteExtractor_BrokenOverrideFallsThrough(t *testing.T) {
	ctx := context.Background()
	ovs := override.NewStore(store.NewMemory())
	require.NoError(t, ovs.Save(ctx, model.UserOverride{
		Hostname:  "booking.example.com",
		Field:     model.FieldTotalPrice,
		Selectors: []string{"#removed-by-redesign"},
	}))

	e := NewSiteExtractor(testRegistry(), nil, ovs, money.Options{})
	res := e.Extract(ctx, checkoutDoc(t))

	require.True(t, res.OK)
	assert.False(t, res.Evidence.FromOverride)
	assert.InDelta(t, 129.99, res.Value.Total.Amount, 0.001)

	saved, err := ovs.Get(ctx, "booking.example.com", "", model.FieldTotalPrice)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, 1, saved.FailureCount)
}

func TestSiteExtractor_ReplayCountersStayPerOverride(t *testing.T) {
	ctx := context.Background()
	ovs := override.NewStore(store.NewMemory())
	require.NoError(t, ovs.Save(ctx, model.UserOverride{
		Hostname:  "booking.example.com",
		PageType:  "checkout",
		Field:     model.FieldTotalPrice,
		Selectors: []string{"#removed-by-redesign"},
	}))
	require.NoError(t, ovs.Save(ctx, model.UserOverride{
		Hostname:  "booking.example.com",
		PageType:  "cart",
		Field:     model.FieldTotalPrice,
		Selectors: []string{"#special"},
	}))

	e := NewSiteExtractor(testRegistry(), nil, ovs, money.Options{})
	res := e.Extract(ctx, checkoutDoc(t))
	require.True(t, res.OK)
	assert.True(t, res.Evidence.FromOverride)

	broken, err := ovs.Get(ctx, "booking.example.com", "checkout", model.FieldTotalPrice)
	require.NoError(t, err)
	require.NotNil(t, broken)
	assert.Equal(t, 1, broken.FailureCount)
	assert.Equal(t, 0, broken.SuccessCount)

	working, err := ovs.Get(ctx, "booking.example.com", "cart", model.FieldTotalPrice)
	require.NoError(t, err)
	require.NotNil(t, working)
	assert.Equal(t, 1, working.SuccessCount)
	assert.Equal(t, 0, working.FailureCount)
}

func TestSiteExtractor_NoMatchIsFailureNotError(t *testing.T) {
	e := NewSiteExtractor(registry.Default(), nil, nil, money.Options{})
	doc, err := dom.ParseString("<html><body><p>nothing here</p></body></html>", "https://unknown.test/")
	require.NoError(t, err)

	res := e.Extract(context.Background(), doc)
	require.NotNil(t, res)
	assert.False(t, res.OK)
	assert.Equal(t, model.ConfidenceNone, res.Confidence)
	assert.NotEmpty(t, res.Errors)
}

func TestSemanticExtractor_GenericHit(t *testing.T) {
	e := NewSemanticExtractor(registry.Default(), money.Options{})
	res := e.Extract(context.Background(), checkoutDoc(t))

	require.True(t, res.OK)
	assert.Equal(t, model.MethodSemantic, res.Method)
	assert.Equal(t, 2, res.Tier)
	assert.InDelta(t, 150.0, res.Value.Total.Amount, 0.001)
	assert.Contains(t, res.Evidence.Selector, "data-testid")
}

func TestHeuristicExtractor_PicksProminentLabeledTotal(t *testing.T) {
	e := NewHeuristicExtractor(money.Options{})
	res := e.Extract(context.Background(), checkoutDoc(t))

	require.True(t, res.OK)
	assert.Equal(t, model.MethodHeuristic, res.Method)
	assert.Equal(t, 3, res.Tier)
	assert.InDelta(t, 129.99, res.Value.Total.Amount, 0.001,
		"the bold, large, label-adjacent total beats the teaser price")
	assert.True(t, res.Confidence.AtLeast(model.ConfidenceMedium))

	require.NotEmpty(t, res.Evidence.CandidateScores)
	assert.LessOrEqual(t, len(res.Evidence.CandidateScores), 5)
	for _, c := range res.Evidence.CandidateScores {
		assert.NotContains(t, c.Excerpt, "599", "struck-through prices never rank")
	}
}

func TestHeuristicExtractor_PerNightTeaser(t *testing.T) {
	// No styling at all: a qualified price in plain body text is still a
	// usable low-confidence answer, not a miss.
	doc, err := dom.ParseString(`<html><body><p>From $99/night</p></body></html>`,
		"https://hotel.example.com/rooms")
	require.NoError(t, err)

	e := NewHeuristicExtractor(money.Options{})
	res := e.Extract(context.Background(), doc)

	require.True(t, res.OK)
	assert.Equal(t, 3, res.Tier)
	assert.Equal(t, model.ConfidenceLow, res.Confidence)
	assert.True(t, res.Value.IsFromPrice)
	require.NotNil(t, res.Value.PerNight, "a nightly rate is not reported as a total")
	assert.Nil(t, res.Value.Total)
	assert.InDelta(t, 99.0, res.Value.PerNight.Amount, 0.001)
}

func TestHeuristicExtractor_EmptyPage(t *testing.T) {
	e := NewHeuristicExtractor(money.Options{})
	doc, err := dom.ParseString("<html><body><p>no prices at all</p></body></html>", "https://empty.test/")
	require.NoError(t, err)

	res := e.Extract(context.Background(), doc)
	require.NotNil(t, res)
	assert.False(t, res.OK)
	assert.Empty(t, res.Evidence.CandidateScores)
}
