package types

import (
	"fmt"
	"time"
)

// NextBillingDate calculates the next billing date based on the given start
// time and billing interval. This leverages calendar-aware date addition so
// leap years and month-boundary issues (Jan 31 + 1 month) are handled by
// clamping rather than overflowing into the following month.
func NextBillingDate(start time.Time, interval BillingInterval) (time.Time, error) {
	switch interval {
	case BillingIntervalMonthly:
		return AddClampedDate(start, 0, 1, 0), nil
	case BillingIntervalYearly:
		return AddClampedDate(start, 1, 0, 0), nil
	default:
		return start, fmt.Errorf("invalid billing interval: %s", interval)
	}
}

// AddClampedDate adds years/months/days to t. The day of month is clamped to
// the last valid day of the target month instead of normalizing forward the
// way time.AddDate does (Jan 31 + 1 month is the last day of February). The
// clamp applies to the year/month move only; the day offset is applied
// afterwards and rolls over month boundaries normally.
func AddClampedDate(t time.Time, years, months, days int) time.Time {
	y, m, d := t.Date()
	h, min, sec := t.Clock()

	newY := y + years
	newM := time.Month(int(m) + months)

	// If we move beyond December it adjusts correctly, for example adding
	// 2 months to November lands on January next year.
	for newM > 12 {
		newM -= 12
		newY++
	}
	for newM < 1 {
		newM += 12
		newY--
	}

	// Find the last valid day of the new month
	firstOfNextMonth := time.Date(newY, newM+1, 1, 0, 0, 0, 0, t.Location())
	lastDay := firstOfNextMonth.Add(-24 * time.Hour).Day()

	if d > lastDay {
		d = lastDay
	}

	result := time.Date(newY, newM, d, h, min, sec, t.Nanosecond(), t.Location())
	if days != 0 {
		result = result.AddDate(0, 0, days)
	}
	return result
}
