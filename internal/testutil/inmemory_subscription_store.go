package testutil

import (
	"context"
	"sync"

	"github.com/sessionlab/billing/internal/domain/subscription"
	ierr "github.com/sessionlab/billing/internal/errors"
)

// InMemorySubscriptionStore implements subscription.Repository
type InMemorySubscriptionStore struct {
	*InMemoryStore[*subscription.Subscription]
	mu    sync.RWMutex
	byOrg map[string]string
}

// NewInMemorySubscriptionStore creates a new in-memory subscription repository
func NewInMemorySubscriptionStore() *InMemorySubscriptionStore {
	return &InMemorySubscriptionStore{
		InMemoryStore: NewInMemoryStore[*subscription.Subscription](),
		byOrg:         make(map[string]string),
	}
}

// Clear resets all stored data
func (m *InMemorySubscriptionStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InMemoryStore.Clear()
	m.byOrg = make(map[string]string)
}

// Create stores a new subscription, enforcing one per organization
func (m *InMemorySubscriptionStore) Create(ctx context.Context, sub *subscription.Subscription) error {
	if sub == nil {
		return ierr.NewError("subscription cannot be nil").
			WithHint("Subscription cannot be nil").
			Mark(ierr.ErrValidation)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byOrg[sub.OrgID]; exists {
		return ierr.NewError("organization already has a subscription").
			WithHint("Organization already has a subscription").
			WithReportableDetails(map[string]any{
				"org_id": sub.OrgID,
			}).
			Mark(ierr.ErrAlreadyExists)
	}

	if err := m.InMemoryStore.Create(ctx, sub.ID, sub); err != nil {
		return ierr.WithError(err).
			WithHint("Subscription already exists").
			Mark(ierr.ErrAlreadyExists)
	}
	m.byOrg[sub.OrgID] = sub.ID
	return nil
}

// Get retrieves a subscription by ID
func (m *InMemorySubscriptionStore) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	sub, err := m.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Subscription not found").
			WithReportableDetails(map[string]any{
				"subscription_id": id,
			}).
			Mark(ierr.ErrNotFound)
	}
	return sub, nil
}

// GetByOrgID retrieves the organization's subscription
func (m *InMemorySubscriptionStore) GetByOrgID(ctx context.Context, orgID string) (*subscription.Subscription, error) {
	m.mu.RLock()
	id, ok := m.byOrg[orgID]
	m.mu.RUnlock()
	if !ok {
		return nil, ierr.NewError("subscription not found").
			WithHint("No subscription for this organization").
			WithReportableDetails(map[string]any{
				"org_id": orgID,
			}).
			Mark(ierr.ErrNotFound)
	}
	return m.Get(ctx, id)
}

// Update updates an existing subscription, enforcing the same optimistic
// version check as the database adapter: a write carrying a stale version is
// rejected as a conflict.
func (m *InMemorySubscriptionStore) Update(ctx context.Context, sub *subscription.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, err := m.InMemoryStore.Get(ctx, sub.ID)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Subscription not found").
			WithReportableDetails(map[string]any{
				"subscription_id": sub.ID,
			}).
			Mark(ierr.ErrNotFound)
	}
	if current.Version != sub.Version {
		return ierr.NewError("subscription was modified concurrently").
			WithHint("The subscription changed while this request was running, please retry").
			WithReportableDetails(map[string]any{
				"subscription_id": sub.ID,
				"version":         sub.Version,
			}).
			Mark(ierr.ErrAlreadyExists)
	}
	sub.Version++

	if err := m.InMemoryStore.Update(ctx, sub.ID, sub); err != nil {
		return ierr.WithError(err).
			WithHint("Subscription not found").
			WithReportableDetails(map[string]any{
				"subscription_id": sub.ID,
			}).
			Mark(ierr.ErrNotFound)
	}
	return nil
}
