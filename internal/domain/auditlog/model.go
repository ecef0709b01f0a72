package auditlog

import (
	"time"

	ierr "github.com/sessionlab/billing/internal/errors"
	"github.com/sessionlab/billing/internal/types"
)

// Entry is one append-only audit record of a billing state transition.
// Entries are never mutated or deleted.
type Entry struct {
	ID string `db:"id" json:"id"`

	OrgID string `db:"org_id" json:"org_id"`

	EventType types.AuditEventType `db:"event_type" json:"event_type"`

	// ActorID is the authenticated user behind the change; nil for
	// webhook-driven transitions
	ActorID *string `db:"actor_id" json:"actor_id,omitempty"`

	Metadata types.Metadata `db:"-" json:"metadata,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Validate performs validation on the entry
func (e *Entry) Validate() error {
	if e.OrgID == "" {
		return ierr.NewError("org_id is required").
			WithHint("Please provide a valid organization ID").
			Mark(ierr.ErrValidation)
	}
	if e.EventType == "" {
		return ierr.NewError("event_type is required").
			WithHint("Please provide a valid event type").
			Mark(ierr.ErrValidation)
	}
	return nil
}
