package service

import (
	"strconv"
	"testing"

	"github.com/samber/lo"
	"github.com/sessionlab/billing/internal/domain/entitlement"
	"github.com/sessionlab/billing/internal/domain/plan"
	"github.com/sessionlab/billing/internal/testutil"
	"github.com/sessionlab/billing/internal/types"
	"github.com/stretchr/testify/suite"
)

type EntitlementServiceSuite struct {
	testutil.BaseServiceTestSuite
	service EntitlementService
}

func TestEntitlementService(t *testing.T) {
	suite.Run(t, new(EntitlementServiceSuite))
}

func (s *EntitlementServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewEntitlementService(ServiceParams{
		Logger:          s.GetLogger(),
		Config:          s.GetConfig(),
		Cache:           s.GetCache(),
		EntitlementRepo: s.GetStores().EntitlementRepo,
	})
}

func (s *EntitlementServiceSuite) TestSyncDerivesFromFeatureMapping() {
	p := &plan.Plan{
		ID:       "plan_pro",
		Code:     "pro",
		Name:     "Pro",
		Price:    9900,
		Currency: "usd",
		Interval: types.BillingIntervalMonthly,
		Features: []plan.Feature{
			{Key: types.EntitlementKeyAPIAccess, Included: true},
			{Key: types.EntitlementKeyWorkflowLimit, Included: true, Limit: lo.ToPtr(int64(50))},
			{Key: types.EntitlementKeyMonthlyQuota, Included: true},
			{Key: types.EntitlementKeySupportTier, Included: true, Value: types.SupportTierPriority},
			{Key: types.EntitlementKeyWhiteLabel, Included: false},
		},
	}

	s.NoError(s.service.SyncForPlan(s.GetContext(), "org_1", p))

	rows, err := s.service.ListForOrg(s.GetContext(), "org_1")
	s.NoError(err)
	s.Len(rows, 4)

	byKey := lo.KeyBy(rows, func(e *entitlement.Entitlement) types.EntitlementKey {
		return e.Key
	})
	s.Equal("true", byKey[types.EntitlementKeyAPIAccess].Value)
	s.Equal("50", byKey[types.EntitlementKeyWorkflowLimit].Value)
	// An included countable feature with no limit is unlimited
	s.Equal(strconv.FormatInt(types.UnlimitedSentinel, 10), byKey[types.EntitlementKeyMonthlyQuota].Value)
	s.Equal(types.SupportTierPriority, byKey[types.EntitlementKeySupportTier].Value)
	// Excluded features produce no row
	s.NotContains(byKey, types.EntitlementKeyWhiteLabel)

	for _, row := range rows {
		s.Equal(types.EntitlementSourcePlan, row.Source)
	}
}

func (s *EntitlementServiceSuite) TestSyncReplacesNotMerges() {
	first := &plan.Plan{
		ID: "plan_a", Code: "a", Name: "A", Currency: "usd",
		Interval: types.BillingIntervalMonthly,
		Features: []plan.Feature{
			{Key: types.EntitlementKeyAPIAccess, Included: true},
			{Key: types.EntitlementKeyWebhooks, Included: true},
		},
	}
	second := &plan.Plan{
		ID: "plan_b", Code: "b", Name: "B", Currency: "usd",
		Interval: types.BillingIntervalMonthly,
		Features: []plan.Feature{
			{Key: types.EntitlementKeyAPIAccess, Included: true},
		},
	}

	s.NoError(s.service.SyncForPlan(s.GetContext(), "org_1", first))
	s.NoError(s.service.SyncForPlan(s.GetContext(), "org_1", second))

	rows, err := s.service.ListForOrg(s.GetContext(), "org_1")
	s.NoError(err)
	s.Len(rows, 1)
	s.Equal(types.EntitlementKeyAPIAccess, rows[0].Key)
}

func (s *EntitlementServiceSuite) TestSyncInvalidatesEnforcementCache() {
	enforcement := NewEnforcementService(ServiceParams{
		Logger:          s.GetLogger(),
		Config:          s.GetConfig(),
		Cache:           s.GetCache(),
		EntitlementRepo: s.GetStores().EntitlementRepo,
	})

	withWebhooks := &plan.Plan{
		ID: "plan_a", Code: "a", Name: "A", Currency: "usd",
		Interval: types.BillingIntervalMonthly,
		Features: []plan.Feature{{Key: types.EntitlementKeyWebhooks, Included: true}},
	}
	withoutWebhooks := &plan.Plan{
		ID: "plan_b", Code: "b", Name: "B", Currency: "usd",
		Interval: types.BillingIntervalMonthly,
		Features: []plan.Feature{{Key: types.EntitlementKeyAPIAccess, Included: true}},
	}

	s.NoError(s.service.SyncForPlan(s.GetContext(), "org_1", withWebhooks))
	granted, err := enforcement.CheckAccess(s.GetContext(), "org_1", types.EntitlementKeyWebhooks)
	s.NoError(err)
	s.True(granted)

	// The sync drops the cached set, so the next check sees the new plan
	s.NoError(s.service.SyncForPlan(s.GetContext(), "org_1", withoutWebhooks))
	granted, err = enforcement.CheckAccess(s.GetContext(), "org_1", types.EntitlementKeyWebhooks)
	s.NoError(err)
	s.False(granted)
}
