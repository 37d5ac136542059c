package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/price-sentry/internal/model"
)

func usd(amount float64) model.Money {
	return model.Money{Amount: amount, Currency: "USD"}
}

func TestStability_TwoAgreeingReads(t *testing.T) {
	s := NewStability()

	assert.False(t, s.Record(usd(100), model.ConfidenceHigh), "one read is never stable")
	assert.True(t, s.Record(usd(100), model.ConfidenceHigh))
	assert.True(t, s.IsStable())

	info := s.Info()
	assert.Equal(t, 2, info.StableReadCount)
	assert.False(t, info.PriceWasUnstable)
}

func TestStability_DifferingValueResetsCount(t *testing.T) {
	s := NewStability()

	s.Record(usd(100), model.ConfidenceHigh)
	s.Record(usd(100), model.ConfidenceHigh)
	assert.True(t, s.IsStable())

	assert.False(t, s.Record(usd(120), model.ConfidenceHigh), "a changed value restarts the count")

	info := s.Info()
	assert.Equal(t, 1, info.StableReadCount)
	assert.True(t, info.PriceWasUnstable)
}

func TestStability_CurrencyChangeIsAChange(t *testing.T) {
	s := NewStability()

	s.Record(usd(100), model.ConfidenceHigh)
	assert.False(t, s.Record(model.Money{Amount: 100, Currency: "EUR"}, model.ConfidenceHigh))
	assert.True(t, s.Info().PriceWasUnstable)
}

func TestStability_EpsilonTolerance(t *testing.T) {
	s := NewStability()

	s.Record(usd(100.00), model.ConfidenceHigh)
	assert.True(t, s.Record(usd(100.005), model.ConfidenceHigh),
		"sub-cent float drift is the same price")
}

func TestStability_OldReadsExpire(t *testing.T) {
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	s := NewStability().WithNow(func() time.Time { return now })

	s.Record(usd(100), model.ConfidenceHigh)
	now = now.Add(3 * time.Second)
	assert.False(t, s.Record(usd(100), model.ConfidenceHigh),
		"an agreeing read outside the window does not make the value stable")
	now = now.Add(200 * time.Millisecond)
	assert.True(t, s.Record(usd(100), model.ConfidenceHigh))
}

func TestStability_ResetClearsSession(t *testing.T) {
	s := NewStability()

	s.Record(usd(100), model.ConfidenceHigh)
	s.Record(usd(120), model.ConfidenceHigh)
	assert.True(t, s.Info().PriceWasUnstable)

	s.Reset()
	info := s.Info()
	assert.Equal(t, 0, info.StableReadCount)
	assert.False(t, info.PriceWasUnstable)
	assert.False(t, s.IsStable())
	assert.Nil(t, s.Current())
}
