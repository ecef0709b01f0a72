package types

import (
	ierr "github.com/sessionlab/billing/internal/errors"
	"github.com/samber/lo"
)

// UnlimitedSentinel marks a countable entitlement as unbounded. Any stored
// limit at or above this value means "unlimited" and callers branch on it,
// so the convention must be preserved exactly.
const UnlimitedSentinel int64 = 999999

// EntitlementKey is the closed enumeration of entitlements an organization
// can hold. The set must not grow silently at runtime; adding a key here
// requires updating the value-kind table below.
type EntitlementKey string

const (
	// Countable limits
	EntitlementKeyWorkflowLimit    EntitlementKey = "workflow_limit"
	EntitlementKeyIntegrationLimit EntitlementKey = "integration_limit"
	EntitlementKeyMonthlyQuota     EntitlementKey = "monthly_quota"

	// Tiered values
	EntitlementKeyAnalyticsTier EntitlementKey = "analytics_tier"
	EntitlementKeySupportTier   EntitlementKey = "support_tier"

	// Boolean capability flags
	EntitlementKeyAPIAccess          EntitlementKey = "api_access"
	EntitlementKeyWebhooks           EntitlementKey = "webhooks"
	EntitlementKeyTeamCollaboration  EntitlementKey = "team_collaboration"
	EntitlementKeyCustomIntegrations EntitlementKey = "custom_integrations"
	EntitlementKeyWhiteLabel         EntitlementKey = "white_label"
	EntitlementKeyOnPremise          EntitlementKey = "on_premise"
	EntitlementKeyDedicatedManager   EntitlementKey = "dedicated_manager"
)

// EntitlementValueKind is how an entitlement's value is typed
type EntitlementValueKind string

const (
	EntitlementValueKindBoolean EntitlementValueKind = "boolean"
	EntitlementValueKindLimit   EntitlementValueKind = "limit"
	EntitlementValueKindTier    EntitlementValueKind = "tier"
)

// entitlementKeyKinds is the declarative mapping from key to value kind.
var entitlementKeyKinds = map[EntitlementKey]EntitlementValueKind{
	EntitlementKeyWorkflowLimit:      EntitlementValueKindLimit,
	EntitlementKeyIntegrationLimit:   EntitlementValueKindLimit,
	EntitlementKeyMonthlyQuota:       EntitlementValueKindLimit,
	EntitlementKeyAnalyticsTier:      EntitlementValueKindTier,
	EntitlementKeySupportTier:        EntitlementValueKindTier,
	EntitlementKeyAPIAccess:          EntitlementValueKindBoolean,
	EntitlementKeyWebhooks:           EntitlementValueKindBoolean,
	EntitlementKeyTeamCollaboration:  EntitlementValueKindBoolean,
	EntitlementKeyCustomIntegrations: EntitlementValueKindBoolean,
	EntitlementKeyWhiteLabel:         EntitlementValueKindBoolean,
	EntitlementKeyOnPremise:          EntitlementValueKindBoolean,
	EntitlementKeyDedicatedManager:   EntitlementValueKindBoolean,
}

func (k EntitlementKey) String() string {
	return string(k)
}

// Kind returns the value kind for the key, or empty for unknown keys.
func (k EntitlementKey) Kind() EntitlementValueKind {
	return entitlementKeyKinds[k]
}

func (k EntitlementKey) Validate() error {
	if _, ok := entitlementKeyKinds[k]; !ok {
		return ierr.NewError("invalid entitlement key").
			WithHint("Unknown entitlement key").
			WithReportableDetails(map[string]any{
				"key": k,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// AllEntitlementKeys returns every key in the closed set.
func AllEntitlementKeys() []EntitlementKey {
	return lo.Keys(entitlementKeyKinds)
}

// EntitlementSource records why an entitlement exists
type EntitlementSource string

const (
	EntitlementSourcePlan   EntitlementSource = "plan"
	EntitlementSourcePromo  EntitlementSource = "promo"
	EntitlementSourceManual EntitlementSource = "manual"
)

func (s EntitlementSource) Validate() error {
	allowed := []EntitlementSource{
		EntitlementSourcePlan,
		EntitlementSourcePromo,
		EntitlementSourceManual,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid entitlement source").
			WithHint("Invalid entitlement source").
			WithReportableDetails(map[string]any{
				"source": s,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// Analytics and support tier values
const (
	AnalyticsTierBasic      = "basic"
	AnalyticsTierAdvanced   = "advanced"
	AnalyticsTierEnterprise = "enterprise"

	SupportTierStandard  = "standard"
	SupportTierPriority  = "priority"
	SupportTierDedicated = "dedicated"
)
