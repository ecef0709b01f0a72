package provider

import (
	"encoding/json"
	"time"

	ierr "github.com/sessionlab/billing/internal/errors"
	"github.com/sessionlab/billing/internal/types"
	"github.com/sessionlab/billing/internal/webhook/verifier"
	stripeapi "github.com/stripe/stripe-go/v82"
)

// StripeAdapter maps Stripe's native event taxonomy onto the internal event
// set. Event-type resolution is payload-based (the event envelope's type
// field); the engine's invoice and organization are carried in Stripe object
// metadata, set when the checkout/portal session is created.
type StripeAdapter struct{}

func NewStripeAdapter() *StripeAdapter {
	return &StripeAdapter{}
}

func (a *StripeAdapter) Provider() types.PaymentProvider {
	return types.PaymentProviderStripe
}

func (a *StripeAdapter) Scheme() verifier.Scheme {
	return verifier.SchemeTimestamped
}

func (a *StripeAdapter) SignatureHeader() string {
	return "Stripe-Signature"
}

func (a *StripeAdapter) Parse(body []byte) (*Event, error) {
	var event stripeapi.Event
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Invalid Stripe event payload").
			Mark(ierr.ErrValidation)
	}

	switch string(event.Type) {
	case "payment_intent.succeeded":
		return a.parsePaymentIntent(&event, types.WebhookEventPaymentSucceeded)
	case "payment_intent.payment_failed":
		return a.parsePaymentIntent(&event, types.WebhookEventPaymentFailed)
	case "invoice.created":
		return a.parseRenewal(&event)
	case "customer.subscription.trial_will_end":
		return a.parseTrialWillEnd(&event)
	default:
		return nil, ErrUnhandled
	}
}

func (a *StripeAdapter) parsePaymentIntent(event *stripeapi.Event, eventType types.WebhookEventType) (*Event, error) {
	var intent stripeapi.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Invalid payment intent data in Stripe event").
			Mark(ierr.ErrValidation)
	}

	data := &PaymentData{
		ProviderPaymentID: intent.ID,
		InvoiceID:         intent.Metadata["invoice_id"],
		Amount:            intent.Amount,
		Currency:          string(intent.Currency),
	}
	if eventType == types.WebhookEventPaymentFailed &&
		intent.LastPaymentError != nil && intent.LastPaymentError.Msg != "" {
		data.FailureReason = intent.LastPaymentError.Msg
	}

	normalized := &Event{
		ID:       event.ID,
		Provider: types.PaymentProviderStripe,
		Type:     eventType,
		Payment:  data,
	}
	return normalized, normalized.Validate()
}

// parseRenewal handles invoice.created: only subscription-cycle invoices
// signal a renewal, everything else (one-off, manual) is unhandled.
func (a *StripeAdapter) parseRenewal(event *stripeapi.Event) (*Event, error) {
	var inv stripeapi.Invoice
	if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Invalid invoice data in Stripe event").
			Mark(ierr.ErrValidation)
	}

	if string(inv.BillingReason) != "subscription_cycle" {
		return nil, ErrUnhandled
	}

	normalized := &Event{
		ID:       event.ID,
		Provider: types.PaymentProviderStripe,
		Type:     types.WebhookEventSubscriptionRenewed,
		Renewal: &RenewalData{
			OrgID:       inv.Metadata["org_id"],
			PeriodStart: time.Unix(inv.PeriodStart, 0).UTC(),
			PeriodEnd:   time.Unix(inv.PeriodEnd, 0).UTC(),
		},
	}
	return normalized, normalized.Validate()
}

func (a *StripeAdapter) parseTrialWillEnd(event *stripeapi.Event) (*Event, error) {
	var sub stripeapi.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Invalid subscription data in Stripe event").
			Mark(ierr.ErrValidation)
	}

	normalized := &Event{
		ID:       event.ID,
		Provider: types.PaymentProviderStripe,
		Type:     types.WebhookEventTrialEnding,
		Trial: &TrialData{
			OrgID: sub.Metadata["org_id"],
		},
	}
	return normalized, normalized.Validate()
}
