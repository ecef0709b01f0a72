package proration

import (
	"time"

	ierr "github.com/sessionlab/billing/internal/errors"
	"github.com/shopspring/decimal"
)

// Params holds all necessary input for calculating a plan-change proration.
// Prices are in minor currency units.
type Params struct {
	OldPrice    int64
	NewPrice    int64
	PeriodStart time.Time
	PeriodEnd   time.Time
	// ProrationDate is the effective time of the change, normally now
	ProrationDate time.Time
}

// Result holds the output of a proration calculation. Refund is the unused
// value of the old plan, Charge the remaining-period value of the new one;
// Net = Charge - Refund and is negative for a pure credit.
type Result struct {
	Refund int64
	Charge int64
	Net    int64
	// Coefficient is the remaining-time fraction of the period, in [0,1]
	Coefficient decimal.Decimal
}

// Calculate computes the proration for a mid-period plan change. It is pure
// and deterministic: the same inputs always produce the same result. Both
// legs are floored (never rounded) in minor currency units so the engine can
// never over-charge, and the truncation is identical on the refund and
// charge legs.
func Calculate(params Params) (*Result, error) {
	totalSecs := int64(params.PeriodEnd.Sub(params.PeriodStart) / time.Second)
	if totalSecs <= 0 {
		return nil, ierr.NewError("invalid billing period").
			WithHint("Period end must be after period start").
			WithReportableDetails(map[string]any{
				"period_start": params.PeriodStart,
				"period_end":   params.PeriodEnd,
			}).
			Mark(ierr.ErrValidation)
	}
	if params.OldPrice < 0 || params.NewPrice < 0 {
		return nil, ierr.NewError("prices must not be negative").
			WithHint("Plan prices must be zero or positive").
			Mark(ierr.ErrValidation)
	}

	// Remaining time, clamped to [0, total]: a change before the period
	// starts prorates the whole period, a change after it ends prorates
	// nothing.
	remainingSecs := int64(params.PeriodEnd.Sub(params.ProrationDate) / time.Second)
	if remainingSecs < 0 {
		remainingSecs = 0
	}
	if remainingSecs > totalSecs {
		remainingSecs = totalSecs
	}

	remaining := decimal.NewFromInt(remainingSecs)
	total := decimal.NewFromInt(totalSecs)
	coefficient := remaining.Div(total)

	refund := decimal.NewFromInt(params.OldPrice).Mul(remaining).Div(total).Floor().IntPart()
	charge := decimal.NewFromInt(params.NewPrice).Mul(remaining).Div(total).Floor().IntPart()

	return &Result{
		Refund:      refund,
		Charge:      charge,
		Net:         charge - refund,
		Coefficient: coefficient,
	}, nil
}
