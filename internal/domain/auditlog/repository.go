package auditlog

import "context"

// Repository defines the storage operations for the audit log. The log is
// append-only; there is no update or delete.
type Repository interface {
	Append(ctx context.Context, entry *Entry) error
	ListByOrgID(ctx context.Context, orgID string) ([]*Entry, error)
}
