package service

import (
	"context"
	"time"

	"github.com/samber/lo"
	"github.com/sessionlab/billing/internal/domain/invoice"
	"github.com/sessionlab/billing/internal/domain/payment"
	ierr "github.com/sessionlab/billing/internal/errors"
	"github.com/sessionlab/billing/internal/idempotency"
	"github.com/sessionlab/billing/internal/logger"
	"github.com/sessionlab/billing/internal/types"
	"github.com/sessionlab/billing/internal/webhook/provider"
)

// ProcessResult reports how an already-verified event was handled.
type ProcessResult struct {
	// Duplicate is true when the event keyed to an already-recorded payment
	// or renewal; the caller still acknowledges it.
	Duplicate bool
}

// WebhookService applies a verified, normalized provider event to the
// billing state. Processing is idempotent: redelivered events insert
// nothing and cause no second state transition.
type WebhookService interface {
	ProcessEvent(ctx context.Context, event *provider.Event) (*ProcessResult, error)
}

type webhookService struct {
	ServiceParams
	log *logger.Logger
}

func NewWebhookService(params ServiceParams) WebhookService {
	return &webhookService{
		ServiceParams: params,
		log:           params.Logger,
	}
}

// ProcessEvent handles one delivery as a single transaction. That keeps the
// idempotency gate honest: if a handler fails after its insert-ignore write,
// the insert rolls back with everything else, so the provider's redelivery
// reprocesses the event instead of being misclassified as a duplicate of a
// half-applied one.
func (s *webhookService) ProcessEvent(ctx context.Context, event *provider.Event) (*ProcessResult, error) {
	if err := event.Validate(); err != nil {
		return nil, err
	}

	var result *ProcessResult
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		switch event.Type {
		case types.WebhookEventPaymentSucceeded:
			result, err = s.handlePaymentSucceeded(ctx, event)
		case types.WebhookEventPaymentFailed:
			result, err = s.handlePaymentFailed(ctx, event)
		case types.WebhookEventSubscriptionRenewed:
			result, err = s.handleSubscriptionRenewed(ctx, event)
		case types.WebhookEventTrialEnding:
			result, err = s.handleTrialEnding(ctx, event)
		default:
			err = ierr.NewErrorf("unsupported webhook event type: %s", event.Type).
				Mark(ierr.ErrValidation)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *webhookService) handlePaymentSucceeded(ctx context.Context, event *provider.Event) (*ProcessResult, error) {
	data := event.Payment

	inv, err := s.InvoiceRepo.Get(ctx, data.InvoiceID)
	if err != nil {
		if ierr.IsNotFound(err) {
			// A payment against an invoice we never issued is a reconciliation
			// failure, not a client error. Fail loudly so the provider retries
			// and the discrepancy is visible.
			return nil, ierr.WithError(err).
				WithHint("Payment references an unknown invoice").
				WithReportableDetails(map[string]any{
					"invoice_id":          data.InvoiceID,
					"provider_payment_id": data.ProviderPaymentID,
					"provider":            event.Provider,
				}).
				Mark(ierr.ErrIntegrity)
		}
		return nil, err
	}

	now := time.Now().UTC()
	pay := &payment.Payment{
		ID:                types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT),
		InvoiceID:         inv.ID,
		Provider:          event.Provider,
		ProviderPaymentID: data.ProviderPaymentID,
		Amount:            data.Amount,
		Currency:          data.Currency,
		PaymentStatus:     types.PaymentStatusSucceeded,
		SucceededAt:       &now,
		BaseModel:         types.GetDefaultBaseModel(ctx),
	}

	// The unique (provider, provider_payment_id) insert is the idempotency
	// gate. A lost insert means the event was already processed.
	created, err := s.PaymentRepo.CreateIfNotExists(ctx, pay)
	if err != nil {
		return nil, err
	}
	if !created {
		s.log.Infow("duplicate payment event acknowledged",
			"provider", event.Provider,
			"provider_payment_id", data.ProviderPaymentID,
		)
		return &ProcessResult{Duplicate: true}, nil
	}

	if inv.InvoiceStatus != types.InvoiceStatusPaid {
		if err := inv.MarkPaid(now); err != nil {
			return nil, err
		}
		if err := s.InvoiceRepo.Update(ctx, inv); err != nil {
			return nil, err
		}
	}

	// A successful payment recovers a past-due subscription. Any other
	// status is left alone; in particular a canceled subscription is never
	// resurrected by a late payment.
	if inv.SubscriptionID != nil {
		sub, err := s.SubRepo.Get(ctx, *inv.SubscriptionID)
		if err != nil {
			return nil, err
		}
		if sub.SubscriptionStatus == types.SubscriptionStatusPastDue {
			sub.SubscriptionStatus = types.SubscriptionStatusActive
			sub.UpdatedAt = now
			if err := s.SubRepo.Update(ctx, sub); err != nil {
				return nil, err
			}
		}
	}

	if err := s.AuditLogRepo.Append(ctx, newAuditEntry(ctx, inv.OrgID, types.AuditEventPaymentSucceeded, types.Metadata{
		"invoice_id":          inv.ID,
		"payment_id":          pay.ID,
		"provider":            string(event.Provider),
		"provider_payment_id": data.ProviderPaymentID,
	})); err != nil {
		return nil, err
	}

	s.log.Infow("processed payment success",
		"invoice_id", inv.ID,
		"payment_id", pay.ID,
		"provider", event.Provider,
	)
	return &ProcessResult{}, nil
}

func (s *webhookService) handlePaymentFailed(ctx context.Context, event *provider.Event) (*ProcessResult, error) {
	data := event.Payment
	now := time.Now().UTC()

	inv, err := s.InvoiceRepo.Get(ctx, data.InvoiceID)
	if err != nil {
		if ierr.IsNotFound(err) {
			return nil, ierr.WithError(err).
				WithHint("Failed payment references an unknown invoice").
				WithReportableDetails(map[string]any{
					"invoice_id":          data.InvoiceID,
					"provider_payment_id": data.ProviderPaymentID,
					"provider":            event.Provider,
				}).
				Mark(ierr.ErrIntegrity)
		}
		return nil, err
	}

	// A failure can follow an earlier pending attempt for the same provider
	// payment. Update that attempt in place; otherwise record a fresh failed
	// one.
	existing, err := s.PaymentRepo.GetByProviderPaymentID(ctx, event.Provider, data.ProviderPaymentID)
	switch {
	case err == nil:
		if existing.PaymentStatus == types.PaymentStatusFailed {
			return &ProcessResult{Duplicate: true}, nil
		}
		existing.PaymentStatus = types.PaymentStatusFailed
		existing.ErrorMessage = lo.ToPtr(data.FailureReason)
		existing.FailedAt = &now
		existing.UpdatedAt = now
		if err := s.PaymentRepo.Update(ctx, existing); err != nil {
			return nil, err
		}
	case ierr.IsNotFound(err):
		pay := &payment.Payment{
			ID:                types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT),
			InvoiceID:         inv.ID,
			Provider:          event.Provider,
			ProviderPaymentID: data.ProviderPaymentID,
			Amount:            data.Amount,
			Currency:          data.Currency,
			PaymentStatus:     types.PaymentStatusFailed,
			ErrorMessage:      lo.ToPtr(data.FailureReason),
			FailedAt:          &now,
			BaseModel:         types.GetDefaultBaseModel(ctx),
		}
		created, err := s.PaymentRepo.CreateIfNotExists(ctx, pay)
		if err != nil {
			return nil, err
		}
		if !created {
			return &ProcessResult{Duplicate: true}, nil
		}
	default:
		return nil, err
	}

	if inv.SubscriptionID != nil {
		sub, err := s.SubRepo.Get(ctx, *inv.SubscriptionID)
		if err != nil {
			return nil, err
		}
		if !sub.IsCanceled() && sub.SubscriptionStatus != types.SubscriptionStatusPastDue {
			sub.SubscriptionStatus = types.SubscriptionStatusPastDue
			sub.UpdatedAt = now
			if err := s.SubRepo.Update(ctx, sub); err != nil {
				return nil, err
			}
		}
	}

	if err := s.AuditLogRepo.Append(ctx, newAuditEntry(ctx, inv.OrgID, types.AuditEventPaymentFailed, types.Metadata{
		"invoice_id":          inv.ID,
		"provider":            string(event.Provider),
		"provider_payment_id": data.ProviderPaymentID,
		"failure_reason":      data.FailureReason,
	})); err != nil {
		return nil, err
	}

	s.log.Warnw("processed payment failure",
		"invoice_id", inv.ID,
		"provider", event.Provider,
		"failure_reason", data.FailureReason,
	)
	return &ProcessResult{}, nil
}

func (s *webhookService) handleSubscriptionRenewed(ctx context.Context, event *provider.Event) (*ProcessResult, error) {
	data := event.Renewal

	sub, err := s.SubRepo.GetByOrgID(ctx, data.OrgID)
	if err != nil {
		if ierr.IsNotFound(err) {
			return nil, ierr.WithError(err).
				WithHint("Renewal references an organization without a subscription").
				WithReportableDetails(map[string]any{
					"org_id":   data.OrgID,
					"provider": event.Provider,
				}).
				Mark(ierr.ErrIntegrity)
		}
		return nil, err
	}
	if sub.IsCanceled() {
		// A renewal for a canceled subscription can arrive when cancellation
		// raced the provider's billing cycle. Acknowledge and move on.
		s.log.Warnw("ignored renewal for canceled subscription",
			"subscription_id", sub.ID,
			"org_id", data.OrgID,
		)
		return &ProcessResult{Duplicate: true}, nil
	}

	p, err := s.PlanRepo.Get(ctx, sub.PlanID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	key := s.IdempotencyGenerator.GenerateKey(idempotency.ScopeRenewalInvoice, map[string]any{
		"subscription_id": sub.ID,
		"period_start":    data.PeriodStart.UTC().Format(time.RFC3339),
	})

	invoiceID := types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE)
	inv := &invoice.Invoice{
		ID:             invoiceID,
		InvoiceNumber:  types.GenerateShortIDWithPrefix(types.SHORT_ID_PREFIX_INVOICE),
		OrgID:          sub.OrgID,
		SubscriptionID: &sub.ID,
		Kind:           types.InvoiceKindRenewal,
		Amount:         p.Price,
		Currency:       p.Currency,
		InvoiceStatus:  types.InvoiceStatusOpen,
		DueAt:          &now,
		IdempotencyKey: &key,
		LineItems: []*invoice.LineItem{
			{
				ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE_LINE_ITEM),
				InvoiceID:   invoiceID,
				Description: p.Name,
				Amount:      p.Price,
				PlanID:      &p.ID,
				PeriodStart: &data.PeriodStart,
				PeriodEnd:   &data.PeriodEnd,
			},
		},
		BaseModel: types.GetDefaultBaseModel(ctx),
	}

	created, err := s.InvoiceRepo.CreateIfNotExists(ctx, inv)
	if err != nil {
		return nil, err
	}
	if !created {
		s.log.Infow("duplicate renewal event acknowledged",
			"subscription_id", sub.ID,
			"period_start", data.PeriodStart,
		)
		return &ProcessResult{Duplicate: true}, nil
	}

	sub.CurrentPeriodStart = data.PeriodStart
	sub.CurrentPeriodEnd = data.PeriodEnd
	sub.UpdatedAt = now
	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	if err := s.AuditLogRepo.Append(ctx, newAuditEntry(ctx, sub.OrgID, types.AuditEventSubscriptionRenewed, types.Metadata{
		"subscription_id": sub.ID,
		"invoice_id":      inv.ID,
		"period_start":    data.PeriodStart.UTC().Format(time.RFC3339),
		"period_end":      data.PeriodEnd.UTC().Format(time.RFC3339),
	})); err != nil {
		return nil, err
	}

	s.log.Infow("processed subscription renewal",
		"subscription_id", sub.ID,
		"invoice_id", inv.ID,
	)
	return &ProcessResult{}, nil
}

func (s *webhookService) handleTrialEnding(ctx context.Context, event *provider.Event) (*ProcessResult, error) {
	data := event.Trial

	sub, err := s.SubRepo.GetByOrgID(ctx, data.OrgID)
	if err != nil {
		if ierr.IsNotFound(err) {
			return nil, ierr.WithError(err).
				WithHint("Trial event references an organization without a subscription").
				WithReportableDetails(map[string]any{
					"org_id":   data.OrgID,
					"provider": event.Provider,
				}).
				Mark(ierr.ErrIntegrity)
		}
		return nil, err
	}

	if sub.SubscriptionStatus != types.SubscriptionStatusTrial {
		// Only a trialing subscription transitions; redeliveries and events
		// that raced a cancellation are acknowledged without effect.
		s.log.Infow("ignored trial event for non-trialing subscription",
			"subscription_id", sub.ID,
			"status", sub.SubscriptionStatus,
		)
		return &ProcessResult{Duplicate: true}, nil
	}

	now := time.Now().UTC()
	sub.SubscriptionStatus = types.SubscriptionStatusActive
	sub.UpdatedAt = now
	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	if err := s.AuditLogRepo.Append(ctx, newAuditEntry(ctx, sub.OrgID, types.AuditEventTrialEnded, types.Metadata{
		"subscription_id": sub.ID,
	})); err != nil {
		return nil, err
	}

	s.log.Infow("processed trial end",
		"subscription_id", sub.ID,
		"org_id", data.OrgID,
	)
	return &ProcessResult{}, nil
}
