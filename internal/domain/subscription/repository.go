package subscription

import "context"

// Repository defines the storage operations for subscriptions. Create must
// fail with ErrAlreadyExists when the organization already holds a
// subscription (unique org_id); implementations should guard the
// read-compute-write span of callers with row-level locking or an
// optimistic-concurrency check so a plan change and a webhook-driven status
// change cannot race into a lost update.
type Repository interface {
	Create(ctx context.Context, sub *Subscription) error
	Get(ctx context.Context, id string) (*Subscription, error)
	GetByOrgID(ctx context.Context, orgID string) (*Subscription, error)
	Update(ctx context.Context, sub *Subscription) error
}
