package payment

import (
	"context"

	"github.com/sessionlab/billing/internal/types"
)

// Repository defines the storage operations for payments.
type Repository interface {
	// CreateIfNotExists inserts the payment unless a row already exists for
	// (provider, provider_payment_id), as one atomic storage operation
	// (insert guarded by the uniqueness constraint, conflict ignored). It
	// reports whether a row was actually inserted; callers branch on that to
	// make duplicate webhook deliveries side-effect free.
	CreateIfNotExists(ctx context.Context, p *Payment) (bool, error)

	Get(ctx context.Context, id string) (*Payment, error)
	GetByProviderPaymentID(ctx context.Context, provider types.PaymentProvider, providerPaymentID string) (*Payment, error)
	Update(ctx context.Context, p *Payment) error
	ListByInvoiceID(ctx context.Context, invoiceID string) ([]*Payment, error)
}
