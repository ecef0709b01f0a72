package subscription

import (
	"time"

	ierr "github.com/sessionlab/billing/internal/errors"
	"github.com/sessionlab/billing/internal/types"
)

// Subscription is the single billing agreement of an organization. At most
// one row exists per organization; the storage layer enforces this with a
// unique constraint and creation of a second row must fail.
type Subscription struct {
	// ID is the unique identifier for the subscription
	ID string `db:"id" json:"id"`

	// OrgID is the organization that owns the subscription
	OrgID string `db:"org_id" json:"org_id"`

	// PlanID is the identifier of the current plan; mutated by plan changes
	PlanID string `db:"plan_id" json:"plan_id"`

	SubscriptionStatus types.SubscriptionStatus `db:"subscription_status" json:"subscription_status"`

	// Currency is a lowercase 3 letter ISO code copied from the plan
	Currency string `db:"currency" json:"currency"`

	// TrialEnd is when the trial ends, if the subscription started trialing
	TrialEnd *time.Time `db:"trial_end" json:"trial_end"`

	// CurrentPeriodStart is the start of the period the subscription has
	// been invoiced for
	CurrentPeriodStart time.Time `db:"current_period_start" json:"current_period_start"`

	// CurrentPeriodEnd is the end of the period the subscription has been
	// invoiced for; renewal events move both period fields forward
	CurrentPeriodEnd time.Time `db:"current_period_end" json:"current_period_end"`

	// CancelAt is the scheduled cancellation time; the subscription stays
	// usable until then
	CancelAt *time.Time `db:"cancel_at" json:"cancel_at"`

	// CanceledAt is when the cancellation became effective
	CanceledAt *time.Time `db:"canceled_at" json:"canceled_at"`

	// Version is the optimistic concurrency token. Updates must carry the
	// version they read; the storage layer rejects a write whose version no
	// longer matches, so a lifecycle request racing a webhook-driven status
	// change cannot silently lose its update.
	Version int `db:"version" json:"version"`

	types.BaseModel
}

// Validate performs validation on the subscription
func (s *Subscription) Validate() error {
	if s.OrgID == "" {
		return ierr.NewError("org_id is required").
			WithHint("Please provide a valid organization ID").
			Mark(ierr.ErrValidation)
	}
	if s.PlanID == "" {
		return ierr.NewError("plan_id is required").
			WithHint("Please provide a valid plan ID").
			Mark(ierr.ErrValidation)
	}
	if err := s.SubscriptionStatus.Validate(); err != nil {
		return err
	}
	if !s.CurrentPeriodEnd.After(s.CurrentPeriodStart) {
		return ierr.NewError("invalid billing period").
			WithHint("Current period end must be after period start").
			WithReportableDetails(map[string]any{
				"current_period_start": s.CurrentPeriodStart,
				"current_period_end":   s.CurrentPeriodEnd,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// IsCanceled reports whether the subscription reached its terminal state.
func (s *Subscription) IsCanceled() bool {
	return s.SubscriptionStatus.IsTerminal()
}
