package types

import (
	ierr "github.com/sessionlab/billing/internal/errors"
	"github.com/samber/lo"
)

// BillingInterval is how often a plan renews
type BillingInterval string

const (
	BillingIntervalMonthly BillingInterval = "monthly"
	BillingIntervalYearly  BillingInterval = "yearly"
)

func (b BillingInterval) String() string {
	return string(b)
}

func (b BillingInterval) Validate() error {
	allowed := []BillingInterval{
		BillingIntervalMonthly,
		BillingIntervalYearly,
	}
	if !lo.Contains(allowed, b) {
		return ierr.NewError("invalid billing interval").
			WithHint("Billing interval must be monthly or yearly").
			WithReportableDetails(map[string]any{
				"interval": b,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
