package provider

import (
	"time"

	ierr "github.com/sessionlab/billing/internal/errors"
	"github.com/sessionlab/billing/internal/types"
)

// Event is a provider notification normalized onto the closed internal
// taxonomy. It is a tagged variant: Type selects exactly one of the payload
// fields, so handler dispatch is an exhaustive switch over the enum instead
// of a flat string match with a silently-ignored default.
type Event struct {
	// ID is the provider's event identifier, for logging and audit context
	ID       string
	Provider types.PaymentProvider
	Type     types.WebhookEventType

	Payment *PaymentData
	Renewal *RenewalData
	Trial   *TrialData
}

// PaymentData is the payload of payment_succeeded and payment_failed events.
type PaymentData struct {
	// ProviderPaymentID together with the provider forms the idempotency
	// key for payment processing
	ProviderPaymentID string
	// InvoiceID is the engine's invoice the payment settles
	InvoiceID string
	// Amount is in minor currency units
	Amount   int64
	Currency string
	// FailureReason is set on payment_failed events when the provider
	// supplied one
	FailureReason string
}

// RenewalData is the payload of subscription_renewed events. The provider
// drives renewal timing; the engine has no internal billing clock.
type RenewalData struct {
	OrgID       string
	PeriodStart time.Time
	PeriodEnd   time.Time
}

// TrialData is the payload of trial_ending events.
type TrialData struct {
	OrgID string
}

// Validate checks the variant invariant: the payload matching Type is set.
func (e *Event) Validate() error {
	if err := e.Provider.Validate(); err != nil {
		return err
	}
	if err := e.Type.Validate(); err != nil {
		return err
	}

	var ok bool
	switch e.Type {
	case types.WebhookEventPaymentSucceeded, types.WebhookEventPaymentFailed:
		ok = e.Payment != nil && e.Payment.ProviderPaymentID != "" && e.Payment.InvoiceID != ""
	case types.WebhookEventSubscriptionRenewed:
		ok = e.Renewal != nil && e.Renewal.OrgID != "" && e.Renewal.PeriodEnd.After(e.Renewal.PeriodStart)
	case types.WebhookEventTrialEnding:
		ok = e.Trial != nil && e.Trial.OrgID != ""
	}
	if !ok {
		return ierr.NewError("webhook event payload does not match its type").
			WithHint("Webhook payload is missing required fields").
			WithReportableDetails(map[string]any{
				"provider":   e.Provider,
				"event_type": e.Type,
				"event_id":   e.ID,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// ErrUnhandled is returned by adapters for provider events outside the
// internal taxonomy; the endpoint acknowledges them without processing.
var ErrUnhandled = ierr.NewError("unhandled provider event type").
	WithHint("Event type is not processed by this engine").
	Mark(ierr.ErrValidation)
