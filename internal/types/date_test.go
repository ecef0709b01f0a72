package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddClampedDate(t *testing.T) {
	t.Run("day addition rolls over month boundary", func(t *testing.T) {
		start := time.Date(2024, 1, 25, 10, 0, 0, 0, time.UTC)
		got := AddClampedDate(start, 0, 0, 14)
		assert.Equal(t, time.Date(2024, 2, 8, 10, 0, 0, 0, time.UTC), got)
	})

	t.Run("day addition rolls over year boundary", func(t *testing.T) {
		start := time.Date(2024, 12, 20, 0, 0, 0, 0, time.UTC)
		got := AddClampedDate(start, 0, 0, 30)
		assert.Equal(t, time.Date(2025, 1, 19, 0, 0, 0, 0, time.UTC), got)
	})

	t.Run("month addition clamps to last day of short month", func(t *testing.T) {
		start := time.Date(2024, 1, 31, 12, 30, 0, 0, time.UTC)
		got := AddClampedDate(start, 0, 1, 0)
		assert.Equal(t, time.Date(2024, 2, 29, 12, 30, 0, 0, time.UTC), got)
	})

	t.Run("month addition clamps in non-leap year", func(t *testing.T) {
		start := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
		got := AddClampedDate(start, 0, 1, 0)
		assert.Equal(t, time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC), got)
	})

	t.Run("month addition wraps past december", func(t *testing.T) {
		start := time.Date(2024, 11, 15, 0, 0, 0, 0, time.UTC)
		got := AddClampedDate(start, 0, 2, 0)
		assert.Equal(t, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), got)
	})

	t.Run("year addition clamps leap day", func(t *testing.T) {
		start := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)
		got := AddClampedDate(start, 1, 0, 0)
		assert.Equal(t, time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC), got)
	})

	t.Run("clamped month plus days still rolls forward", func(t *testing.T) {
		// Jan 31 + 1 month lands on Feb 29, then the days advance normally
		start := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
		got := AddClampedDate(start, 0, 1, 3)
		assert.Equal(t, time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC), got)
	})
}

func TestNextBillingDate(t *testing.T) {
	t.Run("monthly", func(t *testing.T) {
		start := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
		got, err := NextBillingDate(start, BillingIntervalMonthly)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), got)
	})

	t.Run("yearly", func(t *testing.T) {
		start := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
		got, err := NextBillingDate(start, BillingIntervalYearly)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), got)
	})

	t.Run("invalid interval", func(t *testing.T) {
		_, err := NextBillingDate(time.Now(), BillingInterval("weekly"))
		require.Error(t, err)
	})
}
