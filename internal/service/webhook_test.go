package service

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/sessionlab/billing/internal/api/dto"
	"github.com/sessionlab/billing/internal/domain/invoice"
	"github.com/sessionlab/billing/internal/domain/plan"
	"github.com/sessionlab/billing/internal/domain/subscription"
	ierr "github.com/sessionlab/billing/internal/errors"
	"github.com/sessionlab/billing/internal/idempotency"
	"github.com/sessionlab/billing/internal/testutil"
	"github.com/sessionlab/billing/internal/types"
	"github.com/sessionlab/billing/internal/webhook/provider"
	"github.com/stretchr/testify/suite"
)

type WebhookServiceSuite struct {
	testutil.BaseServiceTestSuite
	service         WebhookService
	subscriptionSvc SubscriptionService
	testData        struct {
		plan      *plan.Plan
		sub       *subscription.Subscription
		invoiceID string
	}
}

func TestWebhookService(t *testing.T) {
	suite.Run(t, new(WebhookServiceSuite))
}

func (s *WebhookServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()

	params := ServiceParams{
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
	s.service = NewWebhookService(params)
	s.subscriptionSvc = NewSubscriptionService(params, NewEntitlementService(params))

	s.setupTestData()
}

func (s *WebhookServiceSuite) setupTestData() {
	s.testData.plan = &plan.Plan{
		ID:        "plan_starter",
		Code:      "starter",
		Name:      "Starter",
		Price:     2900,
		Currency:  "usd",
		Interval:  types.BillingIntervalMonthly,
		IsActive:  true,
		BaseModel: types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(s.GetStores().PlanRepo.(*testutil.InMemoryPlanStore).Create(s.GetContext(), s.testData.plan))

	_, err := s.subscriptionSvc.Subscribe(s.GetContext(), dto.SubscribeRequest{
		OrgID:     "org_1",
		PlanCode:  "starter",
		TrialDays: lo.ToPtr(0),
	})
	s.NoError(err)

	s.testData.sub, err = s.GetStores().SubscriptionRepo.GetByOrgID(s.GetContext(), "org_1")
	s.NoError(err)

	invoices, err := s.GetStores().InvoiceRepo.ListByOrgID(s.GetContext(), "org_1")
	s.NoError(err)
	s.Require().Len(invoices, 1)
	s.testData.invoiceID = invoices[0].ID
}

func (s *WebhookServiceSuite) paymentSucceededEvent(providerPaymentID string) *provider.Event {
	return &provider.Event{
		ID:       "evt_1",
		Provider: types.PaymentProviderStripe,
		Type:     types.WebhookEventPaymentSucceeded,
		Payment: &provider.PaymentData{
			ProviderPaymentID: providerPaymentID,
			InvoiceID:         s.testData.invoiceID,
			Amount:            2900,
			Currency:          "usd",
		},
	}
}

func (s *WebhookServiceSuite) TestPaymentSucceededMarksInvoicePaid() {
	result, err := s.service.ProcessEvent(s.GetContext(), s.paymentSucceededEvent("pi_1"))
	s.NoError(err)
	s.False(result.Duplicate)

	inv, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), s.testData.invoiceID)
	s.NoError(err)
	s.Equal(types.InvoiceStatusPaid, inv.InvoiceStatus)
	s.NotNil(inv.PaidAt)

	payments, err := s.GetStores().PaymentRepo.ListByInvoiceID(s.GetContext(), s.testData.invoiceID)
	s.NoError(err)
	s.Len(payments, 1)
	s.Equal(types.PaymentStatusSucceeded, payments[0].PaymentStatus)

	entries, err := s.GetStores().AuditLogRepo.ListByOrgID(s.GetContext(), "org_1")
	s.NoError(err)
	s.Equal(types.AuditEventPaymentSucceeded, entries[len(entries)-1].EventType)
}

func (s *WebhookServiceSuite) TestPaymentSucceededRedeliveryIsDuplicate() {
	_, err := s.service.ProcessEvent(s.GetContext(), s.paymentSucceededEvent("pi_1"))
	s.NoError(err)

	auditBefore, err := s.GetStores().AuditLogRepo.ListByOrgID(s.GetContext(), "org_1")
	s.NoError(err)

	result, err := s.service.ProcessEvent(s.GetContext(), s.paymentSucceededEvent("pi_1"))
	s.NoError(err)
	s.True(result.Duplicate)

	// No second payment row and no second audit entry
	payments, err := s.GetStores().PaymentRepo.ListByInvoiceID(s.GetContext(), s.testData.invoiceID)
	s.NoError(err)
	s.Len(payments, 1)

	auditAfter, err := s.GetStores().AuditLogRepo.ListByOrgID(s.GetContext(), "org_1")
	s.NoError(err)
	s.Len(auditAfter, len(auditBefore))
}

func (s *WebhookServiceSuite) TestPaymentSucceededRecoversPastDue() {
	s.testData.sub.SubscriptionStatus = types.SubscriptionStatusPastDue
	s.NoError(s.GetStores().SubscriptionRepo.Update(s.GetContext(), s.testData.sub))

	_, err := s.service.ProcessEvent(s.GetContext(), s.paymentSucceededEvent("pi_1"))
	s.NoError(err)

	sub, err := s.GetStores().SubscriptionRepo.GetByOrgID(s.GetContext(), "org_1")
	s.NoError(err)
	s.Equal(types.SubscriptionStatusActive, sub.SubscriptionStatus)
}

func (s *WebhookServiceSuite) TestPaymentSucceededNeverResurrectsCanceled() {
	s.testData.sub.SubscriptionStatus = types.SubscriptionStatusCanceled
	s.testData.sub.CanceledAt = lo.ToPtr(time.Now().UTC())
	s.NoError(s.GetStores().SubscriptionRepo.Update(s.GetContext(), s.testData.sub))

	_, err := s.service.ProcessEvent(s.GetContext(), s.paymentSucceededEvent("pi_1"))
	s.NoError(err)

	sub, err := s.GetStores().SubscriptionRepo.GetByOrgID(s.GetContext(), "org_1")
	s.NoError(err)
	s.Equal(types.SubscriptionStatusCanceled, sub.SubscriptionStatus)

	// The payment itself is still recorded against the invoice
	inv, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), s.testData.invoiceID)
	s.NoError(err)
	s.Equal(types.InvoiceStatusPaid, inv.InvoiceStatus)
}

func (s *WebhookServiceSuite) TestPaymentAgainstUnknownInvoiceFailsLoudly() {
	event := s.paymentSucceededEvent("pi_1")
	event.Payment.InvoiceID = "inv_missing"

	_, err := s.service.ProcessEvent(s.GetContext(), event)
	s.Error(err)
	s.True(ierr.IsIntegrity(err))
}

func (s *WebhookServiceSuite) TestPaymentFailedMarksSubscriptionPastDue() {
	event := &provider.Event{
		ID:       "evt_2",
		Provider: types.PaymentProviderStripe,
		Type:     types.WebhookEventPaymentFailed,
		Payment: &provider.PaymentData{
			ProviderPaymentID: "pi_2",
			InvoiceID:         s.testData.invoiceID,
			Amount:            2900,
			Currency:          "usd",
			FailureReason:     "card_declined",
		},
	}
	result, err := s.service.ProcessEvent(s.GetContext(), event)
	s.NoError(err)
	s.False(result.Duplicate)

	sub, err := s.GetStores().SubscriptionRepo.GetByOrgID(s.GetContext(), "org_1")
	s.NoError(err)
	s.Equal(types.SubscriptionStatusPastDue, sub.SubscriptionStatus)

	payments, err := s.GetStores().PaymentRepo.ListByInvoiceID(s.GetContext(), s.testData.invoiceID)
	s.NoError(err)
	s.Require().Len(payments, 1)
	s.Equal(types.PaymentStatusFailed, payments[0].PaymentStatus)
	s.Equal("card_declined", lo.FromPtr(payments[0].ErrorMessage))

	// The invoice stays open for retry
	inv, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), s.testData.invoiceID)
	s.NoError(err)
	s.Equal(types.InvoiceStatusOpen, inv.InvoiceStatus)

	// Redelivery of the same failure changes nothing
	result, err = s.service.ProcessEvent(s.GetContext(), event)
	s.NoError(err)
	s.True(result.Duplicate)
}

func (s *WebhookServiceSuite) renewalEvent(periodStart, periodEnd time.Time) *provider.Event {
	return &provider.Event{
		ID:       "evt_3",
		Provider: types.PaymentProviderStripe,
		Type:     types.WebhookEventSubscriptionRenewed,
		Renewal: &provider.RenewalData{
			OrgID:       "org_1",
			PeriodStart: periodStart,
			PeriodEnd:   periodEnd,
		},
	}
}

func (s *WebhookServiceSuite) TestRenewalAdvancesPeriodAndInvoices() {
	newStart := s.testData.sub.CurrentPeriodEnd
	newEnd := newStart.AddDate(0, 1, 0)

	result, err := s.service.ProcessEvent(s.GetContext(), s.renewalEvent(newStart, newEnd))
	s.NoError(err)
	s.False(result.Duplicate)

	sub, err := s.GetStores().SubscriptionRepo.GetByOrgID(s.GetContext(), "org_1")
	s.NoError(err)
	s.Equal(newStart, sub.CurrentPeriodStart)
	s.Equal(newEnd, sub.CurrentPeriodEnd)

	invoices, err := s.GetStores().InvoiceRepo.ListByOrgID(s.GetContext(), "org_1")
	s.NoError(err)
	s.Len(invoices, 2)

	renewal, found := lo.Find(invoices, func(inv *invoice.Invoice) bool {
		return inv.Kind == types.InvoiceKindRenewal
	})
	s.True(found)
	s.Equal(int64(2900), renewal.Amount)
	s.NotNil(renewal.IdempotencyKey)
}

func (s *WebhookServiceSuite) TestRenewalRedeliveryCreatesNoSecondInvoice() {
	newStart := s.testData.sub.CurrentPeriodEnd
	newEnd := newStart.AddDate(0, 1, 0)

	_, err := s.service.ProcessEvent(s.GetContext(), s.renewalEvent(newStart, newEnd))
	s.NoError(err)

	result, err := s.service.ProcessEvent(s.GetContext(), s.renewalEvent(newStart, newEnd))
	s.NoError(err)
	s.True(result.Duplicate)

	invoices, err := s.GetStores().InvoiceRepo.ListByOrgID(s.GetContext(), "org_1")
	s.NoError(err)
	s.Len(invoices, 2)
}

func (s *WebhookServiceSuite) TestRenewalForCanceledSubscriptionIsIgnored() {
	s.testData.sub.SubscriptionStatus = types.SubscriptionStatusCanceled
	s.NoError(s.GetStores().SubscriptionRepo.Update(s.GetContext(), s.testData.sub))

	periodEnd := s.testData.sub.CurrentPeriodEnd
	result, err := s.service.ProcessEvent(s.GetContext(), s.renewalEvent(periodEnd, periodEnd.AddDate(0, 1, 0)))
	s.NoError(err)
	s.True(result.Duplicate)

	invoices, err := s.GetStores().InvoiceRepo.ListByOrgID(s.GetContext(), "org_1")
	s.NoError(err)
	s.Len(invoices, 1)
}

func (s *WebhookServiceSuite) TestTrialEndingActivatesTrialingSubscription() {
	s.testData.sub.SubscriptionStatus = types.SubscriptionStatusTrial
	s.NoError(s.GetStores().SubscriptionRepo.Update(s.GetContext(), s.testData.sub))

	event := &provider.Event{
		ID:       "evt_4",
		Provider: types.PaymentProviderStripe,
		Type:     types.WebhookEventTrialEnding,
		Trial:    &provider.TrialData{OrgID: "org_1"},
	}
	result, err := s.service.ProcessEvent(s.GetContext(), event)
	s.NoError(err)
	s.False(result.Duplicate)

	sub, err := s.GetStores().SubscriptionRepo.GetByOrgID(s.GetContext(), "org_1")
	s.NoError(err)
	s.Equal(types.SubscriptionStatusActive, sub.SubscriptionStatus)

	// A redelivery finds the subscription already active and does nothing
	result, err = s.service.ProcessEvent(s.GetContext(), event)
	s.NoError(err)
	s.True(result.Duplicate)
}

func (s *WebhookServiceSuite) TestEventVariantMismatchRejected() {
	event := &provider.Event{
		ID:       "evt_5",
		Provider: types.PaymentProviderStripe,
		Type:     types.WebhookEventPaymentSucceeded,
		// Payment payload missing
	}
	_, err := s.service.ProcessEvent(s.GetContext(), event)
	s.Error(err)
	s.True(ierr.IsValidation(err))
}
