package override

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/price-sentry/internal/model"
	"github.com/sells-group/price-sentry/internal/store"
)

func newTestStore() (*Store, *time.Time) {
	now := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	s := NewStore(store.NewMemory()).WithNow(func() time.Time { return now })
	return s, &now
}

func ov(host, field string, selectors ...string) model.UserOverride {
	return model.UserOverride{
		Hostname:  host,
		PageType:  "checkout",
		Field:     field,
		Selectors: selectors,
	}
}

func TestStore_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()

	require.NoError(t, s.Save(ctx, ov("h.test", model.FieldTotalPrice, ".total")))

	got, err := s.Get(ctx, "h.test", "checkout", model.FieldTotalPrice)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{".total"}, got.Selectors)
	assert.False(t, got.CreatedAt.IsZero())

	missing, err := s.Get(ctx, "h.test", "checkout", "tax")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStore_SaveReplacesSameField(t *testing.T) {
	ctx := context.Background()
	s, now := newTestStore()

	require.NoError(t, s.Save(ctx, ov("h.test", model.FieldTotalPrice, ".old")))
	created := *now

	*now = now.Add(time.Hour)
	require.NoError(t, s.Save(ctx, ov("h.test", model.FieldTotalPrice, ".new")))

	list, err := s.ForHost(ctx, "h.test")
	require.NoError(t, err)
	require.Len(t, list, 1, "same (pageType, field) replaces, never duplicates")
	assert.Equal(t, []string{".new"}, list[0].Selectors)
	assert.Equal(t, created, list[0].CreatedAt, "replacement keeps the original creation time")
}

func TestStore_EleventhOverrideEvictsStalest(t *testing.T) {
	ctx := context.Background()
	s, now := newTestStore()

	for i := range 10 {
		require.NoError(t, s.Save(ctx, ov("h.test", fmt.Sprintf("field-%d", i), ".x")))
		*now = now.Add(time.Minute)
	}

	// Refresh field-0 so field-1 becomes the least recently updated.
	require.NoError(t, s.RecordResult(ctx, "h.test", "checkout", "field-0", true))
	*now = now.Add(time.Minute)

	require.NoError(t, s.Save(ctx, ov("h.test", "field-10", ".y")))

	list, err := s.ForHost(ctx, "h.test")
	require.NoError(t, err)
	require.Len(t, list, 10, "the cap holds at ten per host")

	fields := make(map[string]bool, len(list))
	for _, o := range list {
		fields[o.Field] = true
	}
	assert.False(t, fields["field-1"], "least recently updated entry is evicted")
	assert.True(t, fields["field-0"])
	assert.True(t, fields["field-10"])
}

func TestStore_RecordResultCounters(t *testing.T) {
	ctx := context.Background()
	s, now := newTestStore()

	require.NoError(t, s.Save(ctx, ov("h.test", model.FieldTotalPrice, ".total")))
	savedAt := *now

	*now = now.Add(time.Hour)
	require.NoError(t, s.RecordResult(ctx, "h.test", "checkout", model.FieldTotalPrice, true))
	require.NoError(t, s.RecordResult(ctx, "h.test", "checkout", model.FieldTotalPrice, false))

	got, err := s.Get(ctx, "h.test", "checkout", model.FieldTotalPrice)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1, got.SuccessCount)
	assert.Equal(t, 1, got.FailureCount)
	assert.True(t, got.UpdatedAt.After(savedAt), "a successful replay refreshes UpdatedAt")

	// Counter updates for unknown fields are a quiet no-op.
	require.NoError(t, s.RecordResult(ctx, "h.test", "checkout", "unknown", true))
	require.NoError(t, s.RecordResult(ctx, "other.test", "checkout", model.FieldTotalPrice, true))
}

func TestStore_RecordResultTouchesOnlyMatchingPageType(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()

	checkout := ov("h.test", model.FieldTotalPrice, ".checkout-total")
	cart := ov("h.test", model.FieldTotalPrice, ".cart-total")
	cart.PageType = "cart"
	require.NoError(t, s.Save(ctx, checkout))
	require.NoError(t, s.Save(ctx, cart))

	require.NoError(t, s.RecordResult(ctx, "h.test", "checkout", model.FieldTotalPrice, false))

	got, err := s.Get(ctx, "h.test", "checkout", model.FieldTotalPrice)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1, got.FailureCount)

	untouched, err := s.Get(ctx, "h.test", "cart", model.FieldTotalPrice)
	require.NoError(t, err)
	require.NotNil(t, untouched)
	assert.Equal(t, 0, untouched.FailureCount, "a replay outcome never bleeds into other page types")
	assert.Equal(t, 0, untouched.SuccessCount)
}

func TestStore_ForHostOrdersByNetSuccess(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()

	require.NoError(t, s.Save(ctx, ov("h.test", "flaky", ".a")))
	require.NoError(t, s.Save(ctx, ov("h.test", "proven", ".b")))

	require.NoError(t, s.RecordResult(ctx, "h.test", "checkout", "proven", true))
	require.NoError(t, s.RecordResult(ctx, "h.test", "checkout", "proven", true))
	require.NoError(t, s.RecordResult(ctx, "h.test", "checkout", "flaky", false))

	list, err := s.ForHost(ctx, "h.test")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "proven", list[0].Field)
}

func TestStore_DeleteHost(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()

	require.NoError(t, s.Save(ctx, ov("h.test", model.FieldTotalPrice, ".total")))
	require.NoError(t, s.Delete(ctx, "h.test"))
	require.NoError(t, s.Delete(ctx, "h.test"), "deleting an absent host is a no-op")

	list, err := s.ForHost(ctx, "h.test")
	require.NoError(t, err)
	assert.Empty(t, list)
}
