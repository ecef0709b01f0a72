package entitlement

import "context"

// Repository defines the storage operations for entitlements.
type Repository interface {
	// ReplaceForOrg swaps the organization's full entitlement set for the
	// given one in a single logical operation: keys absent from the new set
	// are removed, never left stale.
	ReplaceForOrg(ctx context.Context, orgID string, entitlements []*Entitlement) error

	ListByOrgID(ctx context.Context, orgID string) ([]*Entitlement, error)
}
