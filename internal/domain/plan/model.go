package plan

import (
	ierr "github.com/sessionlab/billing/internal/errors"
	"github.com/sessionlab/billing/internal/types"
)

// Plan is a purchasable plan in the catalog. Plans are immutable once
// referenced by a live subscription except through administrative
// replacement, so the engine only ever reads them.
type Plan struct {
	ID string `db:"id" json:"id"`

	// Code is the stable, unique identifier used by the lifecycle API
	Code string `db:"code" json:"code"`

	Name string `db:"name" json:"name"`

	// Price is the full period charge in minor currency units
	Price int64 `db:"price" json:"price"`

	// Currency is a lowercase 3 letter ISO code
	Currency string `db:"currency" json:"currency"`

	Interval types.BillingInterval `db:"interval" json:"interval"`

	// TrialDays is the default trial length for new subscriptions; a
	// subscribe request may override it.
	TrialDays int `db:"trial_days" json:"trial_days"`

	// Features is the ordered, declarative entitlement mapping for the plan
	Features []Feature `db:"-" json:"features"`

	IsActive bool `db:"is_active" json:"is_active"`

	// Metadata is a narrow escape hatch for provider-specific passthrough
	// data only; known configuration lives in typed fields above.
	Metadata types.Metadata `db:"-" json:"metadata,omitempty"`

	types.BaseModel
}

// Feature is one entry of a plan's entitlement mapping.
type Feature struct {
	Key      types.EntitlementKey `db:"key" json:"key"`
	Included bool                 `db:"included" json:"included"`
	// Limit applies to countable keys; nil means the key's value is not a
	// limit (boolean flags) or carries a tier in Value.
	Limit *int64 `db:"limit" json:"limit,omitempty"`
	// Value carries tier values (analytics_tier, support_tier)
	Value string `db:"value" json:"value,omitempty"`
}

// Validate performs validation on the plan
func (p *Plan) Validate() error {
	if p.Code == "" {
		return ierr.NewError("plan code is required").
			WithHint("Please provide a valid plan code").
			Mark(ierr.ErrValidation)
	}
	if p.Price < 0 {
		return ierr.NewError("plan price must not be negative").
			WithHint("Plan price must be zero or positive").
			WithReportableDetails(map[string]any{
				"price": p.Price,
			}).
			Mark(ierr.ErrValidation)
	}
	if err := p.Interval.Validate(); err != nil {
		return err
	}
	for _, f := range p.Features {
		if err := f.Key.Validate(); err != nil {
			return err
		}
	}
	return nil
}
