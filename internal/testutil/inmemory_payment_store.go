package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/sessionlab/billing/internal/domain/payment"
	ierr "github.com/sessionlab/billing/internal/errors"
	"github.com/sessionlab/billing/internal/types"
)

// InMemoryPaymentStore implements payment.Repository
type InMemoryPaymentStore struct {
	*InMemoryStore[*payment.Payment]
	mu         sync.RWMutex
	byProvider map[string]string
}

// NewInMemoryPaymentStore creates a new in-memory payment repository
func NewInMemoryPaymentStore() *InMemoryPaymentStore {
	return &InMemoryPaymentStore{
		InMemoryStore: NewInMemoryStore[*payment.Payment](),
		byProvider:    make(map[string]string),
	}
}

// Clear resets all stored data
func (m *InMemoryPaymentStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InMemoryStore.Clear()
	m.byProvider = make(map[string]string)
}

func providerKey(provider types.PaymentProvider, providerPaymentID string) string {
	return fmt.Sprintf("%s:%s", provider, providerPaymentID)
}

// CreateIfNotExists inserts the payment unless one already exists for the
// same provider payment. Returns false without error on a duplicate.
func (m *InMemoryPaymentStore) CreateIfNotExists(ctx context.Context, p *payment.Payment) (bool, error) {
	if p == nil {
		return false, ierr.NewError("payment cannot be nil").
			WithHint("Payment cannot be nil").
			Mark(ierr.ErrValidation)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := providerKey(p.Provider, p.ProviderPaymentID)
	if _, exists := m.byProvider[key]; exists {
		return false, nil
	}

	if err := m.InMemoryStore.Create(ctx, p.ID, p); err != nil {
		return false, ierr.WithError(err).
			WithHint("Payment already exists").
			Mark(ierr.ErrAlreadyExists)
	}
	m.byProvider[key] = p.ID
	return true, nil
}

// Get retrieves a payment by ID
func (m *InMemoryPaymentStore) Get(ctx context.Context, id string) (*payment.Payment, error) {
	p, err := m.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Payment not found").
			WithReportableDetails(map[string]any{
				"payment_id": id,
			}).
			Mark(ierr.ErrNotFound)
	}
	return p, nil
}

// GetByProviderPaymentID retrieves a payment by its provider identifiers
func (m *InMemoryPaymentStore) GetByProviderPaymentID(ctx context.Context, provider types.PaymentProvider, providerPaymentID string) (*payment.Payment, error) {
	m.mu.RLock()
	id, ok := m.byProvider[providerKey(provider, providerPaymentID)]
	m.mu.RUnlock()
	if !ok {
		return nil, ierr.NewError("payment not found").
			WithHint("Payment not found").
			WithReportableDetails(map[string]any{
				"provider":            provider,
				"provider_payment_id": providerPaymentID,
			}).
			Mark(ierr.ErrNotFound)
	}
	return m.Get(ctx, id)
}

// Update updates an existing payment
func (m *InMemoryPaymentStore) Update(ctx context.Context, p *payment.Payment) error {
	if err := m.InMemoryStore.Update(ctx, p.ID, p); err != nil {
		return ierr.WithError(err).
			WithHint("Payment not found").
			WithReportableDetails(map[string]any{
				"payment_id": p.ID,
			}).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

// ListByInvoiceID returns the payments recorded against an invoice
func (m *InMemoryPaymentStore) ListByInvoiceID(ctx context.Context, invoiceID string) ([]*payment.Payment, error) {
	return m.InMemoryStore.List(ctx, nil,
		func(ctx context.Context, p *payment.Payment, _ interface{}) bool {
			return p.InvoiceID == invoiceID
		},
		func(a, b *payment.Payment) bool {
			return a.CreatedAt.Before(b.CreatedAt)
		},
	)
}
