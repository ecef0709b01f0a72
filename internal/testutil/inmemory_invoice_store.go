package testutil

import (
	"context"
	"sync"

	"github.com/sessionlab/billing/internal/domain/invoice"
	ierr "github.com/sessionlab/billing/internal/errors"
)

// InMemoryInvoiceStore implements invoice.Repository
type InMemoryInvoiceStore struct {
	*InMemoryStore[*invoice.Invoice]
	mu              sync.RWMutex
	idempotencyKeys map[string]string
	createdInOrder  []*invoice.Invoice
}

// NewInMemoryInvoiceStore creates a new in-memory invoice repository
func NewInMemoryInvoiceStore() *InMemoryInvoiceStore {
	return &InMemoryInvoiceStore{
		InMemoryStore:   NewInMemoryStore[*invoice.Invoice](),
		idempotencyKeys: make(map[string]string),
		createdInOrder:  make([]*invoice.Invoice, 0),
	}
}

// Clear resets all stored data
func (m *InMemoryInvoiceStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InMemoryStore.Clear()
	m.idempotencyKeys = make(map[string]string)
	m.createdInOrder = make([]*invoice.Invoice, 0)
}

// Create stores a new invoice
func (m *InMemoryInvoiceStore) Create(ctx context.Context, inv *invoice.Invoice) error {
	if inv == nil {
		return ierr.NewError("invoice cannot be nil").
			WithHint("Invoice cannot be nil").
			Mark(ierr.ErrValidation)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.create(ctx, inv)
}

func (m *InMemoryInvoiceStore) create(ctx context.Context, inv *invoice.Invoice) error {
	if err := m.InMemoryStore.Create(ctx, inv.ID, inv); err != nil {
		return ierr.WithError(err).
			WithHint("Invoice already exists").
			Mark(ierr.ErrAlreadyExists)
	}
	if inv.IdempotencyKey != nil {
		m.idempotencyKeys[*inv.IdempotencyKey] = inv.ID
	}
	m.createdInOrder = append(m.createdInOrder, inv)
	return nil
}

// CreateIfNotExists inserts the invoice unless its idempotency key is taken.
// Returns false without error on a duplicate.
func (m *InMemoryInvoiceStore) CreateIfNotExists(ctx context.Context, inv *invoice.Invoice) (bool, error) {
	if inv == nil {
		return false, ierr.NewError("invoice cannot be nil").
			WithHint("Invoice cannot be nil").
			Mark(ierr.ErrValidation)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if inv.IdempotencyKey != nil {
		if _, exists := m.idempotencyKeys[*inv.IdempotencyKey]; exists {
			return false, nil
		}
	}
	if err := m.create(ctx, inv); err != nil {
		return false, err
	}
	return true, nil
}

// Get retrieves an invoice by ID
func (m *InMemoryInvoiceStore) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	inv, err := m.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Invoice not found").
			WithReportableDetails(map[string]any{
				"invoice_id": id,
			}).
			Mark(ierr.ErrNotFound)
	}
	return inv, nil
}

// Update updates an existing invoice
func (m *InMemoryInvoiceStore) Update(ctx context.Context, inv *invoice.Invoice) error {
	if err := m.InMemoryStore.Update(ctx, inv.ID, inv); err != nil {
		return ierr.WithError(err).
			WithHint("Invoice not found").
			WithReportableDetails(map[string]any{
				"invoice_id": inv.ID,
			}).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

// ListByOrgID returns the organization's invoices, newest first
func (m *InMemoryInvoiceStore) ListByOrgID(ctx context.Context, orgID string) ([]*invoice.Invoice, error) {
	return m.InMemoryStore.List(ctx, nil,
		func(ctx context.Context, inv *invoice.Invoice, _ interface{}) bool {
			return inv.OrgID == orgID
		},
		func(a, b *invoice.Invoice) bool {
			return a.CreatedAt.After(b.CreatedAt)
		},
	)
}
