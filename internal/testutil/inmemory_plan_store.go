package testutil

import (
	"context"
	"sync"

	"github.com/sessionlab/billing/internal/domain/plan"
	ierr "github.com/sessionlab/billing/internal/errors"
)

// InMemoryPlanStore implements plan.Repository
type InMemoryPlanStore struct {
	*InMemoryStore[*plan.Plan]
	mu     sync.RWMutex
	byCode map[string]string
}

// NewInMemoryPlanStore creates a new in-memory plan repository
func NewInMemoryPlanStore() *InMemoryPlanStore {
	return &InMemoryPlanStore{
		InMemoryStore: NewInMemoryStore[*plan.Plan](),
		byCode:        make(map[string]string),
	}
}

// Clear resets all stored data
func (m *InMemoryPlanStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InMemoryStore.Clear()
	m.byCode = make(map[string]string)
}

// Create seeds a plan into the catalog. Tests use this directly; the engine
// itself never writes plans.
func (m *InMemoryPlanStore) Create(ctx context.Context, p *plan.Plan) error {
	if p == nil {
		return ierr.NewError("plan cannot be nil").
			WithHint("Plan cannot be nil").
			Mark(ierr.ErrValidation)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.InMemoryStore.Create(ctx, p.ID, p); err != nil {
		return ierr.WithError(err).
			WithHint("Plan already exists").
			Mark(ierr.ErrAlreadyExists)
	}
	m.byCode[p.Code] = p.ID
	return nil
}

// Get retrieves a plan by ID
func (m *InMemoryPlanStore) Get(ctx context.Context, id string) (*plan.Plan, error) {
	p, err := m.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Plan not found").
			WithReportableDetails(map[string]any{
				"plan_id": id,
			}).
			Mark(ierr.ErrNotFound)
	}
	return p, nil
}

// GetByCode retrieves a plan by its code
func (m *InMemoryPlanStore) GetByCode(ctx context.Context, code string) (*plan.Plan, error) {
	m.mu.RLock()
	id, ok := m.byCode[code]
	m.mu.RUnlock()
	if !ok {
		return nil, ierr.NewError("plan not found").
			WithHint("Plan not found").
			WithReportableDetails(map[string]any{
				"plan_code": code,
			}).
			Mark(ierr.ErrNotFound)
	}
	return m.Get(ctx, id)
}

// ListActive returns active plans ordered by price
func (m *InMemoryPlanStore) ListActive(ctx context.Context) ([]*plan.Plan, error) {
	return m.InMemoryStore.List(ctx, nil,
		func(ctx context.Context, p *plan.Plan, _ interface{}) bool {
			return p.IsActive
		},
		func(a, b *plan.Plan) bool {
			return a.Price < b.Price
		},
	)
}
