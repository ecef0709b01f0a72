package service

import (
	"context"
	"strconv"

	"github.com/sessionlab/billing/internal/cache"
	"github.com/sessionlab/billing/internal/domain/entitlement"
	"github.com/sessionlab/billing/internal/domain/plan"
	"github.com/sessionlab/billing/internal/logger"
	"github.com/sessionlab/billing/internal/types"
)

// EntitlementService synchronizes an organization's entitlement set with its
// plan. Sync is invoked by subscribe and change-plan only; payment webhooks
// change subscription status, never the plan, and therefore never touch
// entitlements.
type EntitlementService interface {
	// SyncForPlan replaces the organization's entitlement set with the set
	// derived from the plan's feature mapping.
	SyncForPlan(ctx context.Context, orgID string, p *plan.Plan) error

	ListForOrg(ctx context.Context, orgID string) ([]*entitlement.Entitlement, error)
}

type entitlementService struct {
	repo  entitlement.Repository
	cache cache.Cache
	log   *logger.Logger
}

func NewEntitlementService(params ServiceParams) EntitlementService {
	return &entitlementService{
		repo:  params.EntitlementRepo,
		cache: params.Cache,
		log:   params.Logger,
	}
}

func (s *entitlementService) SyncForPlan(ctx context.Context, orgID string, p *plan.Plan) error {
	entitlements := deriveEntitlements(ctx, orgID, p)

	// Full replace, not merge: keys absent from the new plan are removed
	if err := s.repo.ReplaceForOrg(ctx, orgID, entitlements); err != nil {
		s.log.Errorw("failed to replace entitlements",
			"org_id", orgID,
			"plan_code", p.Code,
			"error", err,
		)
		return err
	}

	if s.cache != nil {
		s.cache.Delete(ctx, cache.GenerateKey(cache.PrefixEntitlement, orgID))
	}

	s.log.Infow("synchronized entitlements",
		"org_id", orgID,
		"plan_code", p.Code,
		"entitlement_count", len(entitlements),
	)
	return nil
}

func (s *entitlementService) ListForOrg(ctx context.Context, orgID string) ([]*entitlement.Entitlement, error) {
	return s.repo.ListByOrgID(ctx, orgID)
}

// deriveEntitlements computes the entitlement rows for a plan from its
// declarative feature mapping. Only included features produce rows; a
// feature dropped from a plan simply stops appearing.
func deriveEntitlements(ctx context.Context, orgID string, p *plan.Plan) []*entitlement.Entitlement {
	entitlements := make([]*entitlement.Entitlement, 0, len(p.Features))
	for _, f := range p.Features {
		if !f.Included {
			continue
		}

		var value string
		switch f.Key.Kind() {
		case types.EntitlementValueKindBoolean:
			value = "true"
		case types.EntitlementValueKindLimit:
			if f.Limit != nil {
				value = strconv.FormatInt(*f.Limit, 10)
			} else {
				// An included countable feature with no limit is unlimited
				value = strconv.FormatInt(types.UnlimitedSentinel, 10)
			}
		case types.EntitlementValueKindTier:
			value = f.Value
		}

		entitlements = append(entitlements, &entitlement.Entitlement{
			ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_ENTITLEMENT),
			OrgID:     orgID,
			Key:       f.Key,
			Value:     value,
			Source:    types.EntitlementSourcePlan,
			BaseModel: types.GetDefaultBaseModel(ctx),
		})
	}
	return entitlements
}
