package provider

import (
	"encoding/json"
	"time"

	ierr "github.com/sessionlab/billing/internal/errors"
	"github.com/sessionlab/billing/internal/types"
	"github.com/sessionlab/billing/internal/webhook/verifier"
)

// InternalAdapter handles events posted by the application itself: offline
// payment recording and operator-driven renewals. The provider has no
// signing facility, so its deliveries are verified by construction: the
// route sits behind API authentication, which is a weaker guarantee than
// the HMAC-verified providers and is called out in the verifier package.
type InternalAdapter struct{}

func NewInternalAdapter() *InternalAdapter {
	return &InternalAdapter{}
}

func (a *InternalAdapter) Provider() types.PaymentProvider {
	return types.PaymentProviderInternal
}

func (a *InternalAdapter) Scheme() verifier.Scheme {
	return verifier.SchemeNone
}

func (a *InternalAdapter) SignatureHeader() string {
	return ""
}

// internalEnvelope mirrors the normalized event shape directly; event-type
// resolution is the payload's type field.
type internalEnvelope struct {
	ID      string                 `json:"id"`
	Type    types.WebhookEventType `json:"type"`
	Payment *struct {
		PaymentID     string `json:"payment_id"`
		InvoiceID     string `json:"invoice_id"`
		Amount        int64  `json:"amount"`
		Currency      string `json:"currency"`
		FailureReason string `json:"failure_reason"`
	} `json:"payment,omitempty"`
	Renewal *struct {
		OrgID       string    `json:"org_id"`
		PeriodStart time.Time `json:"period_start"`
		PeriodEnd   time.Time `json:"period_end"`
	} `json:"renewal,omitempty"`
	Trial *struct {
		OrgID string `json:"org_id"`
	} `json:"trial,omitempty"`
}

func (a *InternalAdapter) Parse(body []byte) (*Event, error) {
	var envelope internalEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Invalid internal event payload").
			Mark(ierr.ErrValidation)
	}

	normalized := &Event{
		ID:       envelope.ID,
		Provider: types.PaymentProviderInternal,
		Type:     envelope.Type,
	}
	if envelope.Payment != nil {
		normalized.Payment = &PaymentData{
			ProviderPaymentID: envelope.Payment.PaymentID,
			InvoiceID:         envelope.Payment.InvoiceID,
			Amount:            envelope.Payment.Amount,
			Currency:          envelope.Payment.Currency,
			FailureReason:     envelope.Payment.FailureReason,
		}
	}
	if envelope.Renewal != nil {
		normalized.Renewal = &RenewalData{
			OrgID:       envelope.Renewal.OrgID,
			PeriodStart: envelope.Renewal.PeriodStart,
			PeriodEnd:   envelope.Renewal.PeriodEnd,
		}
	}
	if envelope.Trial != nil {
		normalized.Trial = &TrialData{OrgID: envelope.Trial.OrgID}
	}

	return normalized, normalized.Validate()
}
