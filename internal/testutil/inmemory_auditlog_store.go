package testutil

import (
	"context"
	"sync"

	"github.com/sessionlab/billing/internal/domain/auditlog"
	ierr "github.com/sessionlab/billing/internal/errors"
)

// InMemoryAuditLogStore implements auditlog.Repository
type InMemoryAuditLogStore struct {
	mu      sync.RWMutex
	entries []*auditlog.Entry
}

// NewInMemoryAuditLogStore creates a new in-memory audit log repository
func NewInMemoryAuditLogStore() *InMemoryAuditLogStore {
	return &InMemoryAuditLogStore{
		entries: make([]*auditlog.Entry, 0),
	}
}

// Clear resets all stored data
func (m *InMemoryAuditLogStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make([]*auditlog.Entry, 0)
}

// Append records one audit entry
func (m *InMemoryAuditLogStore) Append(ctx context.Context, entry *auditlog.Entry) error {
	if entry == nil {
		return ierr.NewError("audit entry cannot be nil").
			WithHint("Audit entry cannot be nil").
			Mark(ierr.ErrValidation)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

// ListByOrgID returns the organization's audit entries in append order
func (m *InMemoryAuditLogStore) ListByOrgID(ctx context.Context, orgID string) ([]*auditlog.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*auditlog.Entry
	for _, entry := range m.entries {
		if entry.OrgID == orgID {
			result = append(result, entry)
		}
	}
	return result, nil
}
