package provider

import (
	"encoding/json"
	"time"

	ierr "github.com/sessionlab/billing/internal/errors"
	"github.com/sessionlab/billing/internal/types"
	"github.com/sessionlab/billing/internal/webhook/verifier"
)

// RazorpayAdapter maps Razorpay's native event taxonomy onto the internal
// event set. Razorpay signs the raw body directly (hex HMAC-SHA256 in the
// X-Razorpay-Signature header); the engine's references travel in the
// payment's notes map.
type RazorpayAdapter struct{}

func NewRazorpayAdapter() *RazorpayAdapter {
	return &RazorpayAdapter{}
}

func (a *RazorpayAdapter) Provider() types.PaymentProvider {
	return types.PaymentProviderRazorpay
}

func (a *RazorpayAdapter) Scheme() verifier.Scheme {
	return verifier.SchemeHMAC
}

func (a *RazorpayAdapter) SignatureHeader() string {
	return "X-Razorpay-Signature"
}

// razorpayEnvelope is the subset of Razorpay's webhook payload the engine
// consumes.
type razorpayEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity razorpayPayment `json:"entity"`
		} `json:"payment"`
		Subscription struct {
			Entity razorpaySubscription `json:"entity"`
		} `json:"subscription"`
	} `json:"payload"`
}

type razorpayPayment struct {
	ID               string            `json:"id"`
	Amount           int64             `json:"amount"`
	Currency         string            `json:"currency"`
	ErrorDescription string            `json:"error_description"`
	Notes            map[string]string `json:"notes"`
}

type razorpaySubscription struct {
	ID           string            `json:"id"`
	CurrentStart int64             `json:"current_start"`
	CurrentEnd   int64             `json:"current_end"`
	Notes        map[string]string `json:"notes"`
}

func (a *RazorpayAdapter) Parse(body []byte) (*Event, error) {
	var envelope razorpayEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Invalid Razorpay event payload").
			Mark(ierr.ErrValidation)
	}

	switch envelope.Event {
	case "payment.captured":
		return a.parsePayment(&envelope, types.WebhookEventPaymentSucceeded)
	case "payment.failed":
		return a.parsePayment(&envelope, types.WebhookEventPaymentFailed)
	case "subscription.charged":
		return a.parseSubscriptionCharged(&envelope)
	default:
		return nil, ErrUnhandled
	}
}

func (a *RazorpayAdapter) parsePayment(envelope *razorpayEnvelope, eventType types.WebhookEventType) (*Event, error) {
	entity := envelope.Payload.Payment.Entity

	data := &PaymentData{
		ProviderPaymentID: entity.ID,
		InvoiceID:         entity.Notes["invoice_id"],
		Amount:            entity.Amount,
		Currency:          entity.Currency,
	}
	if eventType == types.WebhookEventPaymentFailed {
		data.FailureReason = entity.ErrorDescription
	}

	normalized := &Event{
		ID:       entity.ID,
		Provider: types.PaymentProviderRazorpay,
		Type:     eventType,
		Payment:  data,
	}
	return normalized, normalized.Validate()
}

func (a *RazorpayAdapter) parseSubscriptionCharged(envelope *razorpayEnvelope) (*Event, error) {
	entity := envelope.Payload.Subscription.Entity

	normalized := &Event{
		ID:       entity.ID,
		Provider: types.PaymentProviderRazorpay,
		Type:     types.WebhookEventSubscriptionRenewed,
		Renewal: &RenewalData{
			OrgID:       entity.Notes["org_id"],
			PeriodStart: time.Unix(entity.CurrentStart, 0).UTC(),
			PeriodEnd:   time.Unix(entity.CurrentEnd, 0).UTC(),
		},
	}
	return normalized, normalized.Validate()
}
