package service

import (
	"strconv"
	"testing"

	"github.com/sessionlab/billing/internal/config"
	"github.com/sessionlab/billing/internal/domain/entitlement"
	ierr "github.com/sessionlab/billing/internal/errors"
	"github.com/sessionlab/billing/internal/testutil"
	"github.com/sessionlab/billing/internal/types"
	"github.com/stretchr/testify/suite"
)

type EnforcementServiceSuite struct {
	testutil.BaseServiceTestSuite
	service EnforcementService
}

func TestEnforcementService(t *testing.T) {
	suite.Run(t, new(EnforcementServiceSuite))
}

func (s *EnforcementServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = s.newService(false)
	s.seedEntitlements()
}

func (s *EnforcementServiceSuite) newService(failOpen bool) EnforcementService {
	return NewEnforcementService(ServiceParams{
		Logger: s.GetLogger(),
		Config: &config.Configuration{
			Logging:      config.LoggingConfig{Level: types.LogLevelInfo},
			Entitlements: config.EntitlementsConfig{FailOpen: failOpen},
		},
		Cache:           s.GetCache(),
		EntitlementRepo: s.GetStores().EntitlementRepo,
	})
}

func (s *EnforcementServiceSuite) seedEntitlements() {
	rows := []*entitlement.Entitlement{
		{
			ID:        "ent_1",
			OrgID:     "org_1",
			Key:       types.EntitlementKeyAPIAccess,
			Value:     "true",
			Source:    types.EntitlementSourcePlan,
			BaseModel: types.GetDefaultBaseModel(s.GetContext()),
		},
		{
			ID:        "ent_2",
			OrgID:     "org_1",
			Key:       types.EntitlementKeyWorkflowLimit,
			Value:     "10",
			Source:    types.EntitlementSourcePlan,
			BaseModel: types.GetDefaultBaseModel(s.GetContext()),
		},
		{
			ID:        "ent_3",
			OrgID:     "org_1",
			Key:       types.EntitlementKeyMonthlyQuota,
			Value:     strconv.FormatInt(types.UnlimitedSentinel, 10),
			Source:    types.EntitlementSourcePlan,
			BaseModel: types.GetDefaultBaseModel(s.GetContext()),
		},
		{
			ID:        "ent_4",
			OrgID:     "org_1",
			Key:       types.EntitlementKeyAnalyticsTier,
			Value:     types.AnalyticsTierAdvanced,
			Source:    types.EntitlementSourcePlan,
			BaseModel: types.GetDefaultBaseModel(s.GetContext()),
		},
	}
	s.NoError(s.GetStores().EntitlementRepo.ReplaceForOrg(s.GetContext(), "org_1", rows))
}

func (s *EnforcementServiceSuite) TestCheckAccessGranted() {
	granted, err := s.service.CheckAccess(s.GetContext(), "org_1", types.EntitlementKeyAPIAccess)
	s.NoError(err)
	s.True(granted)
}

func (s *EnforcementServiceSuite) TestCheckAccessMissingKeyDenied() {
	granted, err := s.service.CheckAccess(s.GetContext(), "org_1", types.EntitlementKeyWhiteLabel)
	s.NoError(err)
	s.False(granted)
}

func (s *EnforcementServiceSuite) TestCheckAccessUnknownOrgDenied() {
	granted, err := s.service.CheckAccess(s.GetContext(), "org_unknown", types.EntitlementKeyAPIAccess)
	s.NoError(err)
	s.False(granted)
}

func (s *EnforcementServiceSuite) TestCheckLimitUnderLimit() {
	result, err := s.service.CheckLimit(s.GetContext(), "org_1", types.EntitlementKeyWorkflowLimit, 9)
	s.NoError(err)
	s.True(result.Allowed)
	s.Equal(int64(10), result.Limit)
	s.False(result.Unlimited)
}

func (s *EnforcementServiceSuite) TestCheckLimitAtLimitDenied() {
	result, err := s.service.CheckLimit(s.GetContext(), "org_1", types.EntitlementKeyWorkflowLimit, 10)
	s.NoError(err)
	s.False(result.Allowed)
}

func (s *EnforcementServiceSuite) TestCheckLimitMissingKeyIsZero() {
	result, err := s.service.CheckLimit(s.GetContext(), "org_1", types.EntitlementKeyIntegrationLimit, 0)
	s.NoError(err)
	s.False(result.Allowed)
	s.Equal(int64(0), result.Limit)
}

func (s *EnforcementServiceSuite) TestCheckLimitUnlimitedSentinel() {
	result, err := s.service.CheckLimit(s.GetContext(), "org_1", types.EntitlementKeyMonthlyQuota, 12345678)
	s.NoError(err)
	s.True(result.Allowed)
	s.True(result.Unlimited)
}

func (s *EnforcementServiceSuite) TestGetValue() {
	value, err := s.service.GetValue(s.GetContext(), "org_1", types.EntitlementKeyAnalyticsTier)
	s.NoError(err)
	s.Equal(types.AnalyticsTierAdvanced, value)

	value, err = s.service.GetValue(s.GetContext(), "org_1", types.EntitlementKeySupportTier)
	s.NoError(err)
	s.Equal("", value)
}

func (s *EnforcementServiceSuite) TestRequireEntitlementDenial() {
	err := s.service.RequireEntitlement(s.GetContext(), "org_1", types.EntitlementKeyOnPremise)
	s.Error(err)
	s.True(ierr.IsEntitlementDenied(err))

	s.NoError(s.service.RequireEntitlement(s.GetContext(), "org_1", types.EntitlementKeyAPIAccess))
}

func (s *EnforcementServiceSuite) TestRequireWithinLimitDenial() {
	err := s.service.RequireWithinLimit(s.GetContext(), "org_1", types.EntitlementKeyWorkflowLimit, 10)
	s.Error(err)
	s.True(ierr.IsEntitlementDenied(err))

	s.NoError(s.service.RequireWithinLimit(s.GetContext(), "org_1", types.EntitlementKeyWorkflowLimit, 5))
}

func (s *EnforcementServiceSuite) TestFailClosedDeniesOnStoreFailure() {
	s.GetStores().EntitlementRepo.(*testutil.InMemoryEntitlementStore).FailNext = true

	_, err := s.service.CheckAccess(s.GetContext(), "org_1", types.EntitlementKeyAPIAccess)
	s.Error(err)
	s.True(ierr.IsDatabase(err))
}

func (s *EnforcementServiceSuite) TestFailOpenGrantsOnStoreFailure() {
	failOpen := s.newService(true)
	s.GetStores().EntitlementRepo.(*testutil.InMemoryEntitlementStore).FailNext = true

	granted, err := failOpen.CheckAccess(s.GetContext(), "org_1", types.EntitlementKeyAPIAccess)
	s.NoError(err)
	s.True(granted)

	s.GetStores().EntitlementRepo.(*testutil.InMemoryEntitlementStore).FailNext = true
	result, err := failOpen.CheckLimit(s.GetContext(), "org_1", types.EntitlementKeyWorkflowLimit, 99)
	s.NoError(err)
	s.True(result.Allowed)
}

func (s *EnforcementServiceSuite) TestCacheServesRepeatLookups() {
	_, err := s.service.CheckAccess(s.GetContext(), "org_1", types.EntitlementKeyAPIAccess)
	s.NoError(err)

	// The second lookup is served from cache, so a failing store is never hit
	s.GetStores().EntitlementRepo.(*testutil.InMemoryEntitlementStore).FailNext = true
	granted, err := s.service.CheckAccess(s.GetContext(), "org_1", types.EntitlementKeyAPIAccess)
	s.NoError(err)
	s.True(granted)
}
