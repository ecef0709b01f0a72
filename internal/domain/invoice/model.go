package invoice

import (
	"time"

	ierr "github.com/sessionlab/billing/internal/errors"
	"github.com/sessionlab/billing/internal/types"
)

// Invoice is an append-mostly ledger record. Invoices are created by the
// subscription lifecycle (initial and proration charges) and by renewal
// events; the only later mutation is the transition to paid by
// payment-success processing.
type Invoice struct {
	ID string `db:"id" json:"id"`

	// InvoiceNumber is the short human-facing number, e.g. INV-XYZ12A8Q
	InvoiceNumber string `db:"invoice_number" json:"invoice_number"`

	OrgID string `db:"org_id" json:"org_id"`

	// SubscriptionID is nil for standalone one-off charges
	SubscriptionID *string `db:"subscription_id" json:"subscription_id"`

	Kind types.InvoiceKind `db:"kind" json:"kind"`

	// Amount is in minor currency units and may be negative for a pure
	// credit (downgrade proration)
	Amount int64 `db:"amount" json:"amount"`

	Currency string `db:"currency" json:"currency"`

	InvoiceStatus types.InvoiceStatus `db:"invoice_status" json:"invoice_status"`

	DueAt  *time.Time `db:"due_at" json:"due_at"`
	PaidAt *time.Time `db:"paid_at" json:"paid_at"`

	// IdempotencyKey deduplicates invoice creation from async flows; unique
	// when set. Renewal invoices key on (subscription, period start).
	IdempotencyKey *string `db:"idempotency_key" json:"idempotency_key,omitempty"`

	// LineItems is the ordered breakdown of the amount
	LineItems []*LineItem `db:"-" json:"line_items"`

	types.BaseModel
}

// LineItem is one ordered entry of an invoice's breakdown.
type LineItem struct {
	ID          string `db:"id" json:"id"`
	InvoiceID   string `db:"invoice_id" json:"invoice_id"`
	Description string `db:"description" json:"description"`

	// Amount is in minor currency units, negative for credit legs
	Amount int64 `db:"amount" json:"amount"`

	// PlanID links the line to the plan that produced it, when applicable
	PlanID *string `db:"plan_id" json:"plan_id,omitempty"`

	// PeriodStart and PeriodEnd bound the service window the line covers
	PeriodStart *time.Time `db:"period_start" json:"period_start,omitempty"`
	PeriodEnd   *time.Time `db:"period_end" json:"period_end,omitempty"`

	DisplayOrder int `db:"display_order" json:"display_order"`
}

// Validate performs validation on the invoice
func (i *Invoice) Validate() error {
	if i.OrgID == "" {
		return ierr.NewError("org_id is required").
			WithHint("Please provide a valid organization ID").
			Mark(ierr.ErrValidation)
	}
	if i.Currency == "" {
		return ierr.NewError("currency is required").
			WithHint("Please provide a valid currency").
			Mark(ierr.ErrValidation)
	}
	if err := i.InvoiceStatus.Validate(); err != nil {
		return err
	}
	return i.Kind.Validate()
}

// MarkPaid transitions the invoice to paid at the given time. Paying a paid
// or void invoice is an invalid operation.
func (i *Invoice) MarkPaid(at time.Time) error {
	switch i.InvoiceStatus {
	case types.InvoiceStatusDraft, types.InvoiceStatusOpen:
		i.InvoiceStatus = types.InvoiceStatusPaid
		i.PaidAt = &at
		return nil
	default:
		return ierr.NewError("invoice cannot be marked paid").
			WithHint("Only draft or open invoices can be paid").
			WithReportableDetails(map[string]any{
				"invoice_id": i.ID,
				"status":     i.InvoiceStatus,
			}).
			Mark(ierr.ErrInvalidOperation)
	}
}
