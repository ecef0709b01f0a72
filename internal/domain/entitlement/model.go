package entitlement

import (
	"strconv"
	"time"

	ierr "github.com/sessionlab/billing/internal/errors"
	"github.com/sessionlab/billing/internal/types"
)

// Entitlement is one capability or quota granted to an organization. At most
// one row exists per (org_id, key); synchronization replaces the whole set
// for an organization, never appends duplicates.
type Entitlement struct {
	ID string `db:"id" json:"id"`

	OrgID string `db:"org_id" json:"org_id"`

	Key types.EntitlementKey `db:"key" json:"key"`

	// Value is typed by the key's kind: "true"/"false" for boolean flags,
	// a decimal integer for limits, a tier name for tiers.
	Value string `db:"value" json:"value"`

	Source types.EntitlementSource `db:"source" json:"source"`

	ExpiresAt *time.Time `db:"expires_at" json:"expires_at,omitempty"`

	types.BaseModel
}

// Validate performs validation on the entitlement
func (e *Entitlement) Validate() error {
	if e.OrgID == "" {
		return ierr.NewError("org_id is required").
			WithHint("Please provide a valid organization ID").
			Mark(ierr.ErrValidation)
	}
	if err := e.Key.Validate(); err != nil {
		return err
	}
	if err := e.Source.Validate(); err != nil {
		return err
	}

	switch e.Key.Kind() {
	case types.EntitlementValueKindBoolean:
		if e.Value != "true" && e.Value != "false" {
			return ierr.NewError("boolean entitlement value must be true or false").
				WithHint("Invalid entitlement value").
				WithReportableDetails(map[string]any{
					"key":   e.Key,
					"value": e.Value,
				}).
				Mark(ierr.ErrValidation)
		}
	case types.EntitlementValueKindLimit:
		if _, err := strconv.ParseInt(e.Value, 10, 64); err != nil {
			return ierr.WithError(err).
				WithHint("Limit entitlement value must be an integer").
				WithReportableDetails(map[string]any{
					"key":   e.Key,
					"value": e.Value,
				}).
				Mark(ierr.ErrValidation)
		}
	case types.EntitlementValueKindTier:
		if e.Value == "" {
			return ierr.NewError("tier entitlement value is required").
				WithHint("Please provide a tier value").
				WithReportableDetails(map[string]any{
					"key": e.Key,
				}).
				Mark(ierr.ErrValidation)
		}
	}

	return nil
}

// BoolValue interprets the value of a boolean entitlement.
func (e *Entitlement) BoolValue() bool {
	return e.Value == "true"
}

// LimitValue interprets the value of a countable entitlement.
func (e *Entitlement) LimitValue() (int64, error) {
	v, err := strconv.ParseInt(e.Value, 10, 64)
	if err != nil {
		return 0, ierr.WithError(err).
			WithHint("Entitlement value is not a valid limit").
			WithReportableDetails(map[string]any{
				"key":   e.Key,
				"value": e.Value,
			}).
			Mark(ierr.ErrIntegrity)
	}
	return v, nil
}

// IsExpired reports whether the entitlement lapsed before the given time.
func (e *Entitlement) IsExpired(now time.Time) bool {
	return e.ExpiresAt != nil && e.ExpiresAt.Before(now)
}
