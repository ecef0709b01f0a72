package payment

import (
	"time"

	ierr "github.com/sessionlab/billing/internal/errors"
	"github.com/sessionlab/billing/internal/types"
)

// Payment is a provider-reported payment against an invoice. The pair
// (provider, provider_payment_id) is unique and serves as the idempotency key
// for webhook-driven processing under at-least-once delivery.
type Payment struct {
	ID string `db:"id" json:"id"`

	InvoiceID string `db:"invoice_id" json:"invoice_id"`

	Provider types.PaymentProvider `db:"provider" json:"provider"`

	// ProviderPaymentID is the provider-assigned transaction identifier
	ProviderPaymentID string `db:"provider_payment_id" json:"provider_payment_id"`

	// Amount is in minor currency units
	Amount int64 `db:"amount" json:"amount"`

	Currency string `db:"currency" json:"currency"`

	PaymentStatus types.PaymentStatus `db:"payment_status" json:"payment_status"`

	// ErrorMessage explains a failed payment, when the provider supplied one
	ErrorMessage *string `db:"error_message" json:"error_message,omitempty"`

	SucceededAt *time.Time `db:"succeeded_at" json:"succeeded_at,omitempty"`
	FailedAt    *time.Time `db:"failed_at" json:"failed_at,omitempty"`

	types.BaseModel
}

// Validate performs validation on the payment
func (p *Payment) Validate() error {
	if p.InvoiceID == "" {
		return ierr.NewError("invoice_id is required").
			WithHint("Payment must reference an invoice").
			Mark(ierr.ErrValidation)
	}
	if err := p.Provider.Validate(); err != nil {
		return err
	}
	if p.ProviderPaymentID == "" {
		return ierr.NewError("provider_payment_id is required").
			WithHint("Payment must carry the provider's transaction ID").
			Mark(ierr.ErrValidation)
	}
	return p.PaymentStatus.Validate()
}
