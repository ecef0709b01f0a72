package types

import (
	ierr "github.com/sessionlab/billing/internal/errors"
	"github.com/samber/lo"
)

// WebhookEventType is the closed internal event taxonomy. Every provider's
// native event names are mapped onto this set by its provider adapter; events
// outside the set are acknowledged and ignored.
type WebhookEventType string

const (
	WebhookEventPaymentSucceeded    WebhookEventType = "payment_succeeded"
	WebhookEventPaymentFailed       WebhookEventType = "payment_failed"
	WebhookEventSubscriptionRenewed WebhookEventType = "subscription_renewed"
	WebhookEventTrialEnding         WebhookEventType = "trial_ending"
)

func (t WebhookEventType) String() string {
	return string(t)
}

func (t WebhookEventType) Validate() error {
	allowed := []WebhookEventType{
		WebhookEventPaymentSucceeded,
		WebhookEventPaymentFailed,
		WebhookEventSubscriptionRenewed,
		WebhookEventTrialEnding,
	}
	if !lo.Contains(allowed, t) {
		return ierr.NewError("invalid webhook event type").
			WithHint("Unknown webhook event type").
			WithReportableDetails(map[string]any{
				"event_type": t,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
