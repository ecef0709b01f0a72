package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/sessionlab/billing/internal/domain/entitlement"
	ierr "github.com/sessionlab/billing/internal/errors"
)

// InMemoryEntitlementStore implements entitlement.Repository
type InMemoryEntitlementStore struct {
	mu    sync.RWMutex
	byOrg map[string][]*entitlement.Entitlement

	// FailNext makes the next read fail, for exercising the enforcement
	// gateway's failure posture
	FailNext bool
}

// NewInMemoryEntitlementStore creates a new in-memory entitlement repository
func NewInMemoryEntitlementStore() *InMemoryEntitlementStore {
	return &InMemoryEntitlementStore{
		byOrg: make(map[string][]*entitlement.Entitlement),
	}
}

// Clear resets all stored data
func (m *InMemoryEntitlementStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byOrg = make(map[string][]*entitlement.Entitlement)
	m.FailNext = false
}

// ReplaceForOrg atomically swaps the organization's entitlement set
func (m *InMemoryEntitlementStore) ReplaceForOrg(ctx context.Context, orgID string, entitlements []*entitlement.Entitlement) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	replacement := make([]*entitlement.Entitlement, len(entitlements))
	copy(replacement, entitlements)
	m.byOrg[orgID] = replacement
	return nil
}

// ListByOrgID returns the organization's entitlements ordered by key
func (m *InMemoryEntitlementStore) ListByOrgID(ctx context.Context, orgID string) ([]*entitlement.Entitlement, error) {
	m.mu.Lock()
	if m.FailNext {
		m.FailNext = false
		m.mu.Unlock()
		return nil, ierr.NewError("entitlement store unavailable").
			Mark(ierr.ErrDatabase)
	}
	m.mu.Unlock()

	m.mu.RLock()
	defer m.mu.RUnlock()

	rows := make([]*entitlement.Entitlement, len(m.byOrg[orgID]))
	copy(rows, m.byOrg[orgID])
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Key < rows[j].Key
	})
	return rows, nil
}
