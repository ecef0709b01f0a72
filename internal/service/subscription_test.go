package service

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/sessionlab/billing/internal/api/dto"
	"github.com/sessionlab/billing/internal/domain/plan"
	ierr "github.com/sessionlab/billing/internal/errors"
	"github.com/sessionlab/billing/internal/idempotency"
	"github.com/sessionlab/billing/internal/testutil"
	"github.com/sessionlab/billing/internal/types"
	"github.com/stretchr/testify/suite"
)

type SubscriptionServiceSuite struct {
	testutil.BaseServiceTestSuite
	service        SubscriptionService
	entitlementSvc EntitlementService
	testData       struct {
		starterPlan *plan.Plan
		proPlan     *plan.Plan
		freePlan    *plan.Plan
	}
}

func TestSubscriptionService(t *testing.T) {
	suite.Run(t, new(SubscriptionServiceSuite))
}

func (s *SubscriptionServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.setupService()
	s.setupTestData()
}

func (s *SubscriptionServiceSuite) serviceParams() ServiceParams {
	return ServiceParams{
		Logger:               s.GetLogger(),
		Config:               s.GetConfig(),
		Cache:                s.GetCache(),
		DB:                   s.GetDB(),
		PlanRepo:             s.GetStores().PlanRepo,
		SubRepo:              s.GetStores().SubscriptionRepo,
		InvoiceRepo:          s.GetStores().InvoiceRepo,
		PaymentRepo:          s.GetStores().PaymentRepo,
		EntitlementRepo:      s.GetStores().EntitlementRepo,
		AuditLogRepo:         s.GetStores().AuditLogRepo,
		IdempotencyGenerator: idempotency.NewGenerator(),
	}
}

func (s *SubscriptionServiceSuite) setupService() {
	params := s.serviceParams()
	s.entitlementSvc = NewEntitlementService(params)
	s.service = NewSubscriptionService(params, s.entitlementSvc)
}

func (s *SubscriptionServiceSuite) setupTestData() {
	s.testData.freePlan = &plan.Plan{
		ID:       "plan_free",
		Code:     "free",
		Name:     "Free",
		Price:    0,
		Currency: "usd",
		Interval: types.BillingIntervalMonthly,
		Features: []plan.Feature{
			{Key: types.EntitlementKeyWorkflowLimit, Included: true, Limit: lo.ToPtr(int64(3))},
		},
		IsActive:  true,
		BaseModel: types.GetDefaultBaseModel(s.GetContext()),
	}
	s.testData.starterPlan = &plan.Plan{
		ID:        "plan_starter",
		Code:      "starter",
		Name:      "Starter",
		Price:     2900,
		Currency:  "usd",
		Interval:  types.BillingIntervalMonthly,
		TrialDays: 14,
		Features: []plan.Feature{
			{Key: types.EntitlementKeyWorkflowLimit, Included: true, Limit: lo.ToPtr(int64(10))},
			{Key: types.EntitlementKeyAPIAccess, Included: true},
		},
		IsActive:  true,
		BaseModel: types.GetDefaultBaseModel(s.GetContext()),
	}
	s.testData.proPlan = &plan.Plan{
		ID:       "plan_pro",
		Code:     "pro",
		Name:     "Pro",
		Price:    9900,
		Currency: "usd",
		Interval: types.BillingIntervalMonthly,
		Features: []plan.Feature{
			{Key: types.EntitlementKeyWorkflowLimit, Included: true},
			{Key: types.EntitlementKeyAPIAccess, Included: true},
			{Key: types.EntitlementKeyAnalyticsTier, Included: true, Value: types.AnalyticsTierAdvanced},
		},
		IsActive:  true,
		BaseModel: types.GetDefaultBaseModel(s.GetContext()),
	}

	planStore := s.GetStores().PlanRepo.(*testutil.InMemoryPlanStore)
	s.NoError(planStore.Create(s.GetContext(), s.testData.freePlan))
	s.NoError(planStore.Create(s.GetContext(), s.testData.starterPlan))
	s.NoError(planStore.Create(s.GetContext(), s.testData.proPlan))
}

func (s *SubscriptionServiceSuite) TestSubscribeWithTrial() {
	resp, err := s.service.Subscribe(s.GetContext(), dto.SubscribeRequest{
		OrgID:    "org_1",
		PlanCode: "starter",
	})
	s.NoError(err)
	s.Equal(types.SubscriptionStatusTrial, resp.Status)
	s.NotNil(resp.TrialEnd)

	sub, err := s.GetStores().SubscriptionRepo.GetByOrgID(s.GetContext(), "org_1")
	s.NoError(err)
	s.Equal(s.testData.starterPlan.ID, sub.PlanID)
	s.True(sub.CurrentPeriodEnd.After(sub.CurrentPeriodStart))

	// Entitlements synced from the plan's feature mapping
	entitlements, err := s.entitlementSvc.ListForOrg(s.GetContext(), "org_1")
	s.NoError(err)
	s.Len(entitlements, 2)

	// Trialing subscriptions are not invoiced up front
	invoices, err := s.GetStores().InvoiceRepo.ListByOrgID(s.GetContext(), "org_1")
	s.NoError(err)
	s.Empty(invoices)

	entries, err := s.GetStores().AuditLogRepo.ListByOrgID(s.GetContext(), "org_1")
	s.NoError(err)
	s.Len(entries, 1)
	s.Equal(types.AuditEventSubscriptionCreated, entries[0].EventType)
}

func (s *SubscriptionServiceSuite) TestSubscribeTrialSpansMonthBoundary() {
	resp, err := s.service.Subscribe(s.GetContext(), dto.SubscribeRequest{
		OrgID:     "org_1",
		PlanCode:  "starter",
		TrialDays: lo.ToPtr(40),
	})
	s.NoError(err)
	s.Equal(types.SubscriptionStatusTrial, resp.Status)
	s.Require().NotNil(resp.TrialEnd)

	// 40 days always crosses at least one month boundary; the trial must run
	// the full length, not end at the last day of the starting month
	expected := time.Now().UTC().AddDate(0, 0, 40)
	s.WithinDuration(expected, *resp.TrialEnd, time.Minute)
}

func (s *SubscriptionServiceSuite) TestConcurrentSubscriptionUpdateRejected() {
	_, err := s.service.Subscribe(s.GetContext(), dto.SubscribeRequest{
		OrgID:    "org_1",
		PlanCode: "pro",
	})
	s.NoError(err)

	repo := s.GetStores().SubscriptionRepo
	sub, err := repo.GetByOrgID(s.GetContext(), "org_1")
	s.NoError(err)
	stale := *sub

	// First writer wins and bumps the version
	sub.SubscriptionStatus = types.SubscriptionStatusPastDue
	s.NoError(repo.Update(s.GetContext(), sub))

	// The copy still carries the version it read; its write must be rejected
	// rather than overwriting the first one
	stale.SubscriptionStatus = types.SubscriptionStatusActive
	err = repo.Update(s.GetContext(), &stale)
	s.Error(err)
	s.True(ierr.IsAlreadyExists(err))

	current, err := repo.Get(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusPastDue, current.SubscriptionStatus)
}

func (s *SubscriptionServiceSuite) TestSubscribeWithoutTrialCreatesInvoice() {
	resp, err := s.service.Subscribe(s.GetContext(), dto.SubscribeRequest{
		OrgID:     "org_1",
		PlanCode:  "starter",
		TrialDays: lo.ToPtr(0),
	})
	s.NoError(err)
	s.Equal(types.SubscriptionStatusActive, resp.Status)
	s.Nil(resp.TrialEnd)

	invoices, err := s.GetStores().InvoiceRepo.ListByOrgID(s.GetContext(), "org_1")
	s.NoError(err)
	s.Len(invoices, 1)
	s.Equal(types.InvoiceKindInitial, invoices[0].Kind)
	s.Equal(int64(2900), invoices[0].Amount)
	s.Equal(types.InvoiceStatusOpen, invoices[0].InvoiceStatus)
	s.Len(invoices[0].LineItems, 1)
}

func (s *SubscriptionServiceSuite) TestSubscribeFreePlanSkipsInvoice() {
	resp, err := s.service.Subscribe(s.GetContext(), dto.SubscribeRequest{
		OrgID:    "org_1",
		PlanCode: "free",
	})
	s.NoError(err)
	s.Equal(types.SubscriptionStatusActive, resp.Status)

	invoices, err := s.GetStores().InvoiceRepo.ListByOrgID(s.GetContext(), "org_1")
	s.NoError(err)
	s.Empty(invoices)
}

func (s *SubscriptionServiceSuite) TestSubscribeRejectsSecondSubscription() {
	_, err := s.service.Subscribe(s.GetContext(), dto.SubscribeRequest{
		OrgID:    "org_1",
		PlanCode: "starter",
	})
	s.NoError(err)

	_, err = s.service.Subscribe(s.GetContext(), dto.SubscribeRequest{
		OrgID:    "org_1",
		PlanCode: "pro",
	})
	s.Error(err)
	s.True(ierr.IsAlreadyExists(err))
}

func (s *SubscriptionServiceSuite) TestSubscribeRejectsUnknownPlan() {
	_, err := s.service.Subscribe(s.GetContext(), dto.SubscribeRequest{
		OrgID:    "org_1",
		PlanCode: "enterprise",
	})
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *SubscriptionServiceSuite) TestSubscribeRejectsInactivePlan() {
	retired := &plan.Plan{
		ID:        "plan_retired",
		Code:      "retired",
		Name:      "Retired",
		Price:     1000,
		Currency:  "usd",
		Interval:  types.BillingIntervalMonthly,
		IsActive:  false,
		BaseModel: types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(s.GetStores().PlanRepo.(*testutil.InMemoryPlanStore).Create(s.GetContext(), retired))

	_, err := s.service.Subscribe(s.GetContext(), dto.SubscribeRequest{
		OrgID:    "org_1",
		PlanCode: "retired",
	})
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *SubscriptionServiceSuite) TestChangePlanUpgradeProrates() {
	_, err := s.service.Subscribe(s.GetContext(), dto.SubscribeRequest{
		OrgID:     "org_1",
		PlanCode:  "starter",
		TrialDays: lo.ToPtr(0),
	})
	s.NoError(err)

	resp, err := s.service.ChangePlan(s.GetContext(), dto.ChangePlanRequest{
		OrgID:       "org_1",
		NewPlanCode: "pro",
	})
	s.NoError(err)
	s.NotNil(resp.ProrationInvoice)
	s.Equal(types.InvoiceKindProration, resp.ProrationInvoice.Kind)
	// An upgrade at the start of the period owes roughly the price delta
	s.Greater(resp.ProrationInvoice.Amount, int64(0))
	s.LessOrEqual(resp.ProrationInvoice.Amount, int64(9900-2900))
	s.Len(resp.ProrationInvoice.LineItems, 2)

	sub, err := s.GetStores().SubscriptionRepo.GetByOrgID(s.GetContext(), "org_1")
	s.NoError(err)
	s.Equal(s.testData.proPlan.ID, sub.PlanID)

	// Entitlements re-derived from the new plan, replace not merge
	entitlements, err := s.entitlementSvc.ListForOrg(s.GetContext(), "org_1")
	s.NoError(err)
	s.Len(entitlements, 3)
}

func (s *SubscriptionServiceSuite) TestChangePlanDowngradeSettlesCredit() {
	_, err := s.service.Subscribe(s.GetContext(), dto.SubscribeRequest{
		OrgID:     "org_1",
		PlanCode:  "pro",
		TrialDays: lo.ToPtr(0),
	})
	s.NoError(err)

	resp, err := s.service.ChangePlan(s.GetContext(), dto.ChangePlanRequest{
		OrgID:       "org_1",
		NewPlanCode: "starter",
	})
	s.NoError(err)
	s.NotNil(resp.ProrationInvoice)
	s.Less(resp.ProrationInvoice.Amount, int64(0))
	// A net credit needs no collection
	s.Equal(types.InvoiceStatusPaid, resp.ProrationInvoice.InvoiceStatus)
	s.NotNil(resp.ProrationInvoice.PaidAt)
}

func (s *SubscriptionServiceSuite) TestChangePlanWithoutProration() {
	_, err := s.service.Subscribe(s.GetContext(), dto.SubscribeRequest{
		OrgID:     "org_1",
		PlanCode:  "starter",
		TrialDays: lo.ToPtr(0),
	})
	s.NoError(err)

	resp, err := s.service.ChangePlan(s.GetContext(), dto.ChangePlanRequest{
		OrgID:       "org_1",
		NewPlanCode: "pro",
		Prorate:     lo.ToPtr(false),
	})
	s.NoError(err)
	s.Nil(resp.ProrationInvoice)

	sub, err := s.GetStores().SubscriptionRepo.GetByOrgID(s.GetContext(), "org_1")
	s.NoError(err)
	s.Equal(s.testData.proPlan.ID, sub.PlanID)
}

func (s *SubscriptionServiceSuite) TestChangePlanRejectsSamePlan() {
	_, err := s.service.Subscribe(s.GetContext(), dto.SubscribeRequest{
		OrgID:    "org_1",
		PlanCode: "starter",
	})
	s.NoError(err)

	_, err = s.service.ChangePlan(s.GetContext(), dto.ChangePlanRequest{
		OrgID:       "org_1",
		NewPlanCode: "starter",
	})
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *SubscriptionServiceSuite) TestChangePlanRejectsWithoutSubscription() {
	_, err := s.service.ChangePlan(s.GetContext(), dto.ChangePlanRequest{
		OrgID:       "org_unknown",
		NewPlanCode: "pro",
	})
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *SubscriptionServiceSuite) TestCancelAtPeriodEnd() {
	_, err := s.service.Subscribe(s.GetContext(), dto.SubscribeRequest{
		OrgID:     "org_1",
		PlanCode:  "starter",
		TrialDays: lo.ToPtr(0),
	})
	s.NoError(err)

	resp, err := s.service.Cancel(s.GetContext(), dto.CancelSubscriptionRequest{
		OrgID:             "org_1",
		CancelAtPeriodEnd: true,
		Reason:            "too expensive",
	})
	s.NoError(err)
	// The subscription stays in its current status until the period ends
	s.Equal(types.SubscriptionStatusActive, resp.Status)
	s.NotNil(resp.CancelAt)
	s.Nil(resp.CanceledAt)

	sub, err := s.GetStores().SubscriptionRepo.GetByOrgID(s.GetContext(), "org_1")
	s.NoError(err)
	s.Equal(sub.CurrentPeriodEnd, *sub.CancelAt)

	entries, err := s.GetStores().AuditLogRepo.ListByOrgID(s.GetContext(), "org_1")
	s.NoError(err)
	s.Equal(types.AuditEventCancellationScheduled, entries[len(entries)-1].EventType)
}

func (s *SubscriptionServiceSuite) TestCancelImmediately() {
	_, err := s.service.Subscribe(s.GetContext(), dto.SubscribeRequest{
		OrgID:    "org_1",
		PlanCode: "starter",
	})
	s.NoError(err)

	resp, err := s.service.Cancel(s.GetContext(), dto.CancelSubscriptionRequest{
		OrgID: "org_1",
	})
	s.NoError(err)
	s.Equal(types.SubscriptionStatusCanceled, resp.Status)
	s.NotNil(resp.CanceledAt)
	s.WithinDuration(time.Now().UTC(), *resp.CanceledAt, 5*time.Second)

	entries, err := s.GetStores().AuditLogRepo.ListByOrgID(s.GetContext(), "org_1")
	s.NoError(err)
	s.Equal(types.AuditEventSubscriptionCanceled, entries[len(entries)-1].EventType)
}

func (s *SubscriptionServiceSuite) TestCanceledSubscriptionRejectsChanges() {
	_, err := s.service.Subscribe(s.GetContext(), dto.SubscribeRequest{
		OrgID:    "org_1",
		PlanCode: "starter",
	})
	s.NoError(err)
	_, err = s.service.Cancel(s.GetContext(), dto.CancelSubscriptionRequest{OrgID: "org_1"})
	s.NoError(err)

	_, err = s.service.ChangePlan(s.GetContext(), dto.ChangePlanRequest{
		OrgID:       "org_1",
		NewPlanCode: "pro",
	})
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))

	_, err = s.service.Cancel(s.GetContext(), dto.CancelSubscriptionRequest{OrgID: "org_1"})
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *SubscriptionServiceSuite) TestGetSubscription() {
	_, err := s.service.Subscribe(s.GetContext(), dto.SubscribeRequest{
		OrgID:    "org_1",
		PlanCode: "pro",
	})
	s.NoError(err)

	resp, err := s.service.GetSubscription(s.GetContext(), "org_1")
	s.NoError(err)
	s.Equal("org_1", resp.OrgID)
	s.Equal("pro", resp.Plan.Code)
	s.Len(resp.Entitlements, 3)
}
