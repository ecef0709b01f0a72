package dto

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sessionlab/billing/internal/domain/entitlement"
	"github.com/sessionlab/billing/internal/domain/subscription"
	"github.com/sessionlab/billing/internal/types"
)

type SubscribeRequest struct {
	OrgID    string `json:"org_id" validate:"required"`
	PlanCode string `json:"plan_code" validate:"required"`
	// TrialDays overrides the plan's default trial length when set
	TrialDays *int `json:"trial_days,omitempty" validate:"omitempty,min=0"`
	// PaymentMethodToken is passed through to the provider; the engine
	// never captures payment itself
	PaymentMethodToken string `json:"payment_method_token,omitempty"`
}

func (r *SubscribeRequest) Validate() error {
	return validator.New().Struct(r)
}

type ChangePlanRequest struct {
	OrgID       string `json:"org_id" validate:"required"`
	NewPlanCode string `json:"new_plan_code" validate:"required"`
	// Prorate defaults to true when omitted
	Prorate *bool `json:"prorate,omitempty"`
}

func (r *ChangePlanRequest) Validate() error {
	return validator.New().Struct(r)
}

type CancelSubscriptionRequest struct {
	OrgID             string `json:"org_id" validate:"required"`
	CancelAtPeriodEnd bool   `json:"cancel_at_period_end"`
	Reason            string `json:"reason,omitempty"`
}

func (r *CancelSubscriptionRequest) Validate() error {
	return validator.New().Struct(r)
}

type SubscribeResponse struct {
	SubscriptionID   string                   `json:"subscription_id"`
	Status           types.SubscriptionStatus `json:"status"`
	TrialEnd         *time.Time               `json:"trial_end,omitempty"`
	CurrentPeriodEnd time.Time                `json:"current_period_end"`
}

type ChangePlanResponse struct {
	SubscriptionID   string                   `json:"subscription_id"`
	Status           types.SubscriptionStatus `json:"status"`
	ProrationInvoice *InvoiceResponse         `json:"proration_invoice,omitempty"`
}

type CancelSubscriptionResponse struct {
	SubscriptionID string                   `json:"subscription_id"`
	Status         types.SubscriptionStatus `json:"status"`
	CancelAt       *time.Time               `json:"cancel_at,omitempty"`
	CanceledAt     *time.Time               `json:"canceled_at,omitempty"`
}

// SubscriptionResponse is the read-side view: the subscription with its plan
// and current entitlement set.
type SubscriptionResponse struct {
	*subscription.Subscription
	Plan         *PlanResponse              `json:"plan,omitempty"`
	Entitlements []*entitlement.Entitlement `json:"entitlements,omitempty"`
}
