package invoice

import "context"

// Repository defines the storage operations for the invoice ledger.
type Repository interface {
	Create(ctx context.Context, inv *Invoice) error

	// CreateIfNotExists inserts the invoice unless another invoice with the
	// same idempotency key already exists, as one atomic storage operation
	// (insert guarded by the uniqueness constraint, conflict ignored). It
	// reports whether a row was actually inserted.
	CreateIfNotExists(ctx context.Context, inv *Invoice) (bool, error)

	Get(ctx context.Context, id string) (*Invoice, error)
	Update(ctx context.Context, inv *Invoice) error

	// ListByOrgID returns the organization's invoices, newest first
	ListByOrgID(ctx context.Context, orgID string) ([]*Invoice, error)
}
