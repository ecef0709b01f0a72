package plan

import "context"

// Repository defines the read-only storage operations the catalog requires.
// Plan administration happens outside this engine.
type Repository interface {
	GetByCode(ctx context.Context, code string) (*Plan, error)
	Get(ctx context.Context, id string) (*Plan, error)
	// ListActive returns active plans ordered by price ascending
	ListActive(ctx context.Context) ([]*Plan, error)
}
