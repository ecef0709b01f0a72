package service

import (
	"context"
	"strconv"
	"time"

	"github.com/samber/lo"
	"github.com/sessionlab/billing/internal/api/dto"
	"github.com/sessionlab/billing/internal/domain/auditlog"
	"github.com/sessionlab/billing/internal/domain/invoice"
	"github.com/sessionlab/billing/internal/domain/plan"
	"github.com/sessionlab/billing/internal/domain/subscription"
	ierr "github.com/sessionlab/billing/internal/errors"
	"github.com/sessionlab/billing/internal/logger"
	"github.com/sessionlab/billing/internal/proration"
	"github.com/sessionlab/billing/internal/types"
)

// SubscriptionService owns the subscription state machine: subscribe,
// change-plan and cancel. Entitlement synchronization is always applied
// after the subscription row is durably written, so a concurrent read of
// plan and entitlements is never more stale than a single write.
type SubscriptionService interface {
	Subscribe(ctx context.Context, req dto.SubscribeRequest) (*dto.SubscribeResponse, error)
	ChangePlan(ctx context.Context, req dto.ChangePlanRequest) (*dto.ChangePlanResponse, error)
	Cancel(ctx context.Context, req dto.CancelSubscriptionRequest) (*dto.CancelSubscriptionResponse, error)
	GetSubscription(ctx context.Context, orgID string) (*dto.SubscriptionResponse, error)
}

type subscriptionService struct {
	ServiceParams
	entitlementSvc EntitlementService
	log            *logger.Logger
}

func NewSubscriptionService(params ServiceParams, entitlementSvc EntitlementService) SubscriptionService {
	return &subscriptionService{
		ServiceParams:  params,
		entitlementSvc: entitlementSvc,
		log:            params.Logger,
	}
}

// Subscribe runs as one transaction spanning the subscription insert, the
// entitlement sync and the initial invoice, so a failure partway leaves no
// half-provisioned organization behind.
func (s *subscriptionService) Subscribe(ctx context.Context, req dto.SubscribeRequest) (*dto.SubscribeResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Invalid subscribe request").
			Mark(ierr.ErrValidation)
	}

	var response *dto.SubscribeResponse
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		response, err = s.subscribe(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return response, nil
}

func (s *subscriptionService) subscribe(ctx context.Context, req dto.SubscribeRequest) (*dto.SubscribeResponse, error) {
	p, err := s.PlanRepo.GetByCode(ctx, req.PlanCode)
	if err != nil {
		if ierr.IsNotFound(err) {
			return nil, ierr.WithError(err).
				WithHint("Plan not found").
				WithReportableDetails(map[string]any{
					"plan_code": req.PlanCode,
				}).
				Mark(ierr.ErrNotFound)
		}
		return nil, err
	}
	if !p.IsActive {
		return nil, ierr.NewError("plan is not available").
			WithHint("This plan is no longer available for purchase").
			WithReportableDetails(map[string]any{
				"plan_code": req.PlanCode,
			}).
			Mark(ierr.ErrValidation)
	}

	// One subscription per organization. The storage layer enforces this
	// with a unique constraint; the pre-check just produces a friendlier
	// error for the common case.
	if _, err := s.SubRepo.GetByOrgID(ctx, req.OrgID); err == nil {
		return nil, ierr.NewError("organization already has a subscription").
			WithHint("This organization is already subscribed; use change-plan instead").
			WithReportableDetails(map[string]any{
				"org_id": req.OrgID,
			}).
			Mark(ierr.ErrAlreadyExists)
	} else if !ierr.IsNotFound(err) {
		return nil, err
	}

	now := time.Now().UTC()
	trialDays := p.TrialDays
	if req.TrialDays != nil {
		trialDays = *req.TrialDays
	}

	periodEnd, err := types.NextBillingDate(now, p.Interval)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Plan has an invalid billing interval").
			Mark(ierr.ErrSystem)
	}

	sub := &subscription.Subscription{
		ID:                 types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		OrgID:              req.OrgID,
		PlanID:             p.ID,
		SubscriptionStatus: types.SubscriptionStatusActive,
		Currency:           p.Currency,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   periodEnd,
		Version:            1,
		BaseModel:          types.GetDefaultBaseModel(ctx),
	}
	if trialDays > 0 {
		trialEnd := types.AddClampedDate(now, 0, 0, trialDays)
		sub.SubscriptionStatus = types.SubscriptionStatusTrial
		sub.TrialEnd = &trialEnd
	}
	if err := sub.Validate(); err != nil {
		return nil, err
	}

	if err := s.SubRepo.Create(ctx, sub); err != nil {
		return nil, err
	}

	// Entitlements follow the durable subscription write
	if err := s.entitlementSvc.SyncForPlan(ctx, req.OrgID, p); err != nil {
		return nil, err
	}

	// Paid, non-trialing subscriptions owe the full period immediately
	if sub.SubscriptionStatus == types.SubscriptionStatusActive && p.Price > 0 {
		if _, err := s.createInitialInvoice(ctx, sub, p, now); err != nil {
			return nil, err
		}
	}

	if err := s.AuditLogRepo.Append(ctx, newAuditEntry(ctx, req.OrgID, types.AuditEventSubscriptionCreated, types.Metadata{
		"subscription_id": sub.ID,
		"plan_code":       p.Code,
		"trial_days":      strconv.Itoa(trialDays),
	})); err != nil {
		return nil, err
	}

	s.log.Infow("created subscription",
		"subscription_id", sub.ID,
		"org_id", req.OrgID,
		"plan_code", p.Code,
		"status", sub.SubscriptionStatus,
	)

	return &dto.SubscribeResponse{
		SubscriptionID:   sub.ID,
		Status:           sub.SubscriptionStatus,
		TrialEnd:         sub.TrialEnd,
		CurrentPeriodEnd: sub.CurrentPeriodEnd,
	}, nil
}

// ChangePlan runs the read-compute-write cycle inside one transaction; the
// subscription row's version check rejects the write when a webhook-driven
// status change committed in between, instead of overwriting it.
func (s *subscriptionService) ChangePlan(ctx context.Context, req dto.ChangePlanRequest) (*dto.ChangePlanResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Invalid change-plan request").
			Mark(ierr.ErrValidation)
	}

	var response *dto.ChangePlanResponse
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		response, err = s.changePlan(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return response, nil
}

func (s *subscriptionService) changePlan(ctx context.Context, req dto.ChangePlanRequest) (*dto.ChangePlanResponse, error) {
	prorate := lo.FromPtrOr(req.Prorate, true)

	sub, err := s.getCurrentSubscription(ctx, req.OrgID)
	if err != nil {
		return nil, err
	}

	oldPlan, err := s.PlanRepo.Get(ctx, sub.PlanID)
	if err != nil {
		return nil, err
	}
	newPlan, err := s.PlanRepo.GetByCode(ctx, req.NewPlanCode)
	if err != nil {
		if ierr.IsNotFound(err) {
			return nil, ierr.WithError(err).
				WithHint("Plan not found").
				WithReportableDetails(map[string]any{
					"plan_code": req.NewPlanCode,
				}).
				Mark(ierr.ErrNotFound)
		}
		return nil, err
	}
	if newPlan.ID == sub.PlanID {
		return nil, ierr.NewError("subscription is already on this plan").
			WithHint("Choose a different plan").
			Mark(ierr.ErrInvalidOperation)
	}
	if oldPlan.Currency != newPlan.Currency {
		// Multi-currency conversion is out of scope
		return nil, ierr.NewError("plans have different currencies").
			WithHint("Plan changes across currencies are not supported").
			WithReportableDetails(map[string]any{
				"old_currency": oldPlan.Currency,
				"new_currency": newPlan.Currency,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	now := time.Now().UTC()
	var prorationInvoice *invoice.Invoice
	if prorate && oldPlan.Price != newPlan.Price {
		result, err := proration.Calculate(proration.Params{
			OldPrice:      oldPlan.Price,
			NewPrice:      newPlan.Price,
			PeriodStart:   sub.CurrentPeriodStart,
			PeriodEnd:     sub.CurrentPeriodEnd,
			ProrationDate: now,
		})
		if err != nil {
			return nil, err
		}

		if result.Net != 0 {
			prorationInvoice = s.buildProrationInvoice(ctx, sub, oldPlan, newPlan, result, now)
			if err := s.InvoiceRepo.Create(ctx, prorationInvoice); err != nil {
				return nil, err
			}
		}
	}

	// Plan row is durably updated before entitlements are re-derived
	sub.PlanID = newPlan.ID
	sub.UpdatedAt = now
	sub.UpdatedBy = types.GetActorID(ctx)
	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	if err := s.entitlementSvc.SyncForPlan(ctx, sub.OrgID, newPlan); err != nil {
		return nil, err
	}

	if err := s.AuditLogRepo.Append(ctx, newAuditEntry(ctx, sub.OrgID, types.AuditEventPlanChanged, types.Metadata{
		"subscription_id": sub.ID,
		"old_plan_code":   oldPlan.Code,
		"new_plan_code":   newPlan.Code,
		"prorated":        strconv.FormatBool(prorate),
	})); err != nil {
		return nil, err
	}

	s.log.Infow("changed subscription plan",
		"subscription_id", sub.ID,
		"org_id", sub.OrgID,
		"old_plan_code", oldPlan.Code,
		"new_plan_code", newPlan.Code,
		"prorated", prorate,
	)

	response := &dto.ChangePlanResponse{
		SubscriptionID: sub.ID,
		Status:         sub.SubscriptionStatus,
	}
	if prorationInvoice != nil {
		response.ProrationInvoice = &dto.InvoiceResponse{Invoice: prorationInvoice}
	}
	return response, nil
}

func (s *subscriptionService) Cancel(ctx context.Context, req dto.CancelSubscriptionRequest) (*dto.CancelSubscriptionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Invalid cancel request").
			Mark(ierr.ErrValidation)
	}

	var response *dto.CancelSubscriptionResponse
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		response, err = s.cancel(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return response, nil
}

func (s *subscriptionService) cancel(ctx context.Context, req dto.CancelSubscriptionRequest) (*dto.CancelSubscriptionResponse, error) {
	sub, err := s.getCurrentSubscription(ctx, req.OrgID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	metadata := types.Metadata{
		"subscription_id": sub.ID,
		"reason":          req.Reason,
	}

	var entry *auditlog.Entry
	if req.CancelAtPeriodEnd {
		// Scheduled cancellation: the subscription stays usable, and in its
		// current status, until the period ends
		cancelAt := sub.CurrentPeriodEnd
		sub.CancelAt = &cancelAt
		entry = newAuditEntry(ctx, sub.OrgID, types.AuditEventCancellationScheduled, metadata)
	} else {
		sub.SubscriptionStatus = types.SubscriptionStatusCanceled
		sub.CanceledAt = &now
		entry = newAuditEntry(ctx, sub.OrgID, types.AuditEventSubscriptionCanceled, metadata)
	}
	sub.UpdatedAt = now
	sub.UpdatedBy = types.GetActorID(ctx)

	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return nil, err
	}
	if err := s.AuditLogRepo.Append(ctx, entry); err != nil {
		return nil, err
	}

	s.log.Infow("canceled subscription",
		"subscription_id", sub.ID,
		"org_id", sub.OrgID,
		"at_period_end", req.CancelAtPeriodEnd,
		"reason", req.Reason,
	)

	return &dto.CancelSubscriptionResponse{
		SubscriptionID: sub.ID,
		Status:         sub.SubscriptionStatus,
		CancelAt:       sub.CancelAt,
		CanceledAt:     sub.CanceledAt,
	}, nil
}

func (s *subscriptionService) GetSubscription(ctx context.Context, orgID string) (*dto.SubscriptionResponse, error) {
	if orgID == "" {
		return nil, ierr.NewError("org_id is required").
			WithHint("Please provide a valid organization ID").
			Mark(ierr.ErrValidation)
	}

	sub, err := s.SubRepo.GetByOrgID(ctx, orgID)
	if err != nil {
		return nil, err
	}

	p, err := s.PlanRepo.Get(ctx, sub.PlanID)
	if err != nil {
		return nil, err
	}
	entitlements, err := s.entitlementSvc.ListForOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}

	return &dto.SubscriptionResponse{
		Subscription: sub,
		Plan:         &dto.PlanResponse{Plan: p},
		Entitlements: entitlements,
	}, nil
}

// getCurrentSubscription loads the organization's subscription and rejects
// operations on a canceled one.
func (s *subscriptionService) getCurrentSubscription(ctx context.Context, orgID string) (*subscription.Subscription, error) {
	sub, err := s.SubRepo.GetByOrgID(ctx, orgID)
	if err != nil {
		if ierr.IsNotFound(err) {
			return nil, ierr.WithError(err).
				WithHint("No active subscription for this organization").
				WithReportableDetails(map[string]any{
					"org_id": orgID,
				}).
				Mark(ierr.ErrNotFound)
		}
		return nil, err
	}
	if sub.IsCanceled() {
		return nil, ierr.NewError("subscription is canceled").
			WithHint("The subscription has been canceled and cannot be modified").
			WithReportableDetails(map[string]any{
				"subscription_id": sub.ID,
			}).
			Mark(ierr.ErrInvalidOperation)
	}
	return sub, nil
}

func (s *subscriptionService) createInitialInvoice(ctx context.Context, sub *subscription.Subscription, p *plan.Plan, now time.Time) (*invoice.Invoice, error) {
	invoiceID := types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE)
	inv := &invoice.Invoice{
		ID:             invoiceID,
		InvoiceNumber:  types.GenerateShortIDWithPrefix(types.SHORT_ID_PREFIX_INVOICE),
		OrgID:          sub.OrgID,
		SubscriptionID: &sub.ID,
		Kind:           types.InvoiceKindInitial,
		Amount:         p.Price,
		Currency:       p.Currency,
		InvoiceStatus:  types.InvoiceStatusOpen,
		DueAt:          &now,
		LineItems: []*invoice.LineItem{
			{
				ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE_LINE_ITEM),
				InvoiceID:   invoiceID,
				Description: p.Name,
				Amount:      p.Price,
				PlanID:      &p.ID,
				PeriodStart: &sub.CurrentPeriodStart,
				PeriodEnd:   &sub.CurrentPeriodEnd,
			},
		},
		BaseModel: types.GetDefaultBaseModel(ctx),
	}
	if err := s.InvoiceRepo.Create(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *subscriptionService) buildProrationInvoice(ctx context.Context, sub *subscription.Subscription, oldPlan, newPlan *plan.Plan, result *proration.Result, now time.Time) *invoice.Invoice {
	invoiceID := types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE)
	inv := &invoice.Invoice{
		ID:             invoiceID,
		InvoiceNumber:  types.GenerateShortIDWithPrefix(types.SHORT_ID_PREFIX_INVOICE),
		OrgID:          sub.OrgID,
		SubscriptionID: &sub.ID,
		Kind:           types.InvoiceKindProration,
		Amount:         result.Net,
		Currency:       newPlan.Currency,
		InvoiceStatus:  types.InvoiceStatusOpen,
		DueAt:          &now,
		LineItems: []*invoice.LineItem{
			{
				ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE_LINE_ITEM),
				InvoiceID:   invoiceID,
				Description: "Unused time on " + oldPlan.Name,
				Amount:      -result.Refund,
				PlanID:      &oldPlan.ID,
				PeriodStart: &sub.CurrentPeriodStart,
				PeriodEnd:   &sub.CurrentPeriodEnd,
			},
			{
				ID:           types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE_LINE_ITEM),
				InvoiceID:    invoiceID,
				Description:  "Remaining time on " + newPlan.Name,
				Amount:       result.Charge,
				PlanID:       &newPlan.ID,
				PeriodStart:  &sub.CurrentPeriodStart,
				PeriodEnd:    &sub.CurrentPeriodEnd,
				DisplayOrder: 1,
			},
		},
		BaseModel: types.GetDefaultBaseModel(ctx),
	}

	// A net credit (or zero) needs no collection and settles immediately
	if result.Net <= 0 {
		inv.InvoiceStatus = types.InvoiceStatusPaid
		inv.PaidAt = &now
	}
	return inv
}
