package provider

import (
	"testing"
	"time"

	ierr "github.com/sessionlab/billing/internal/errors"
	"github.com/sessionlab/billing/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	registry := DefaultRegistry()

	t.Run("resolves all supported providers", func(t *testing.T) {
		for _, p := range []types.PaymentProvider{
			types.PaymentProviderStripe,
			types.PaymentProviderRazorpay,
			types.PaymentProviderInternal,
		} {
			adapter, err := registry.ForProvider(p)
			require.NoError(t, err)
			assert.Equal(t, p, adapter.Provider())
		}
	})

	t.Run("unknown provider rejected", func(t *testing.T) {
		_, err := registry.ForProvider(types.PaymentProvider("paypal"))
		require.Error(t, err)
		assert.True(t, ierr.IsNotFound(err))
	})
}

func TestEventValidate(t *testing.T) {
	t.Run("payload matching type accepted", func(t *testing.T) {
		event := &Event{
			ID:       "evt_1",
			Provider: types.PaymentProviderStripe,
			Type:     types.WebhookEventPaymentSucceeded,
			Payment:  &PaymentData{ProviderPaymentID: "pi_1", InvoiceID: "inv_1"},
		}
		assert.NoError(t, event.Validate())
	})

	t.Run("missing payload rejected", func(t *testing.T) {
		event := &Event{
			ID:       "evt_1",
			Provider: types.PaymentProviderStripe,
			Type:     types.WebhookEventPaymentSucceeded,
		}
		err := event.Validate()
		require.Error(t, err)
		assert.True(t, ierr.IsValidation(err))
	})

	t.Run("extra payload rejected", func(t *testing.T) {
		event := &Event{
			ID:       "evt_1",
			Provider: types.PaymentProviderStripe,
			Type:     types.WebhookEventTrialEnding,
			Trial:    &TrialData{OrgID: "org_1"},
			Payment:  &PaymentData{ProviderPaymentID: "pi_1", InvoiceID: "inv_1"},
		}
		err := event.Validate()
		require.Error(t, err)
		assert.True(t, ierr.IsValidation(err))
	})
}

func TestStripeAdapterParse(t *testing.T) {
	adapter := NewStripeAdapter()

	t.Run("payment_intent.succeeded", func(t *testing.T) {
		body := []byte(`{
			"id": "evt_1",
			"type": "payment_intent.succeeded",
			"data": {"object": {
				"id": "pi_1",
				"amount": 2900,
				"currency": "usd",
				"metadata": {"invoice_id": "inv_1"}
			}}
		}`)
		event, err := adapter.Parse(body)
		require.NoError(t, err)
		assert.Equal(t, types.WebhookEventPaymentSucceeded, event.Type)
		assert.Equal(t, "pi_1", event.Payment.ProviderPaymentID)
		assert.Equal(t, "inv_1", event.Payment.InvoiceID)
		assert.Equal(t, int64(2900), event.Payment.Amount)
		assert.Equal(t, "usd", event.Payment.Currency)
	})

	t.Run("payment_intent.payment_failed carries reason", func(t *testing.T) {
		body := []byte(`{
			"id": "evt_2",
			"type": "payment_intent.payment_failed",
			"data": {"object": {
				"id": "pi_2",
				"amount": 2900,
				"currency": "usd",
				"metadata": {"invoice_id": "inv_1"},
				"last_payment_error": {"message": "card declined"}
			}}
		}`)
		event, err := adapter.Parse(body)
		require.NoError(t, err)
		assert.Equal(t, types.WebhookEventPaymentFailed, event.Type)
		assert.Equal(t, "card declined", event.Payment.FailureReason)
	})

	t.Run("subscription cycle invoice is a renewal", func(t *testing.T) {
		start := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
		end := start.AddDate(0, 1, 0)
		body := []byte(`{
			"id": "evt_3",
			"type": "invoice.created",
			"data": {"object": {
				"billing_reason": "subscription_cycle",
				"period_start": 1738368000,
				"period_end": 1740787200,
				"metadata": {"org_id": "org_1"}
			}}
		}`)
		event, err := adapter.Parse(body)
		require.NoError(t, err)
		assert.Equal(t, types.WebhookEventSubscriptionRenewed, event.Type)
		assert.Equal(t, "org_1", event.Renewal.OrgID)
		assert.Equal(t, start, event.Renewal.PeriodStart)
		assert.Equal(t, end, event.Renewal.PeriodEnd)
	})

	t.Run("one-off invoice is unhandled", func(t *testing.T) {
		body := []byte(`{
			"id": "evt_4",
			"type": "invoice.created",
			"data": {"object": {"billing_reason": "manual"}}
		}`)
		_, err := adapter.Parse(body)
		assert.ErrorIs(t, err, ErrUnhandled)
	})

	t.Run("trial_will_end", func(t *testing.T) {
		body := []byte(`{
			"id": "evt_5",
			"type": "customer.subscription.trial_will_end",
			"data": {"object": {"metadata": {"org_id": "org_1"}}}
		}`)
		event, err := adapter.Parse(body)
		require.NoError(t, err)
		assert.Equal(t, types.WebhookEventTrialEnding, event.Type)
		assert.Equal(t, "org_1", event.Trial.OrgID)
	})

	t.Run("out-of-taxonomy event is unhandled", func(t *testing.T) {
		body := []byte(`{"id": "evt_6", "type": "charge.refunded", "data": {"object": {}}}`)
		_, err := adapter.Parse(body)
		assert.ErrorIs(t, err, ErrUnhandled)
	})

	t.Run("malformed payload rejected", func(t *testing.T) {
		_, err := adapter.Parse([]byte("not json"))
		require.Error(t, err)
		assert.True(t, ierr.IsValidation(err))
	})
}

func TestRazorpayAdapterParse(t *testing.T) {
	adapter := NewRazorpayAdapter()

	t.Run("payment.captured", func(t *testing.T) {
		body := []byte(`{
			"event": "payment.captured",
			"payload": {"payment": {"entity": {
				"id": "pay_1",
				"amount": 2900,
				"currency": "INR",
				"notes": {"invoice_id": "inv_1"}
			}}}
		}`)
		event, err := adapter.Parse(body)
		require.NoError(t, err)
		assert.Equal(t, types.WebhookEventPaymentSucceeded, event.Type)
		assert.Equal(t, "pay_1", event.Payment.ProviderPaymentID)
		assert.Equal(t, "inv_1", event.Payment.InvoiceID)
	})

	t.Run("payment.failed carries reason", func(t *testing.T) {
		body := []byte(`{
			"event": "payment.failed",
			"payload": {"payment": {"entity": {
				"id": "pay_2",
				"amount": 2900,
				"currency": "INR",
				"error_description": "insufficient funds",
				"notes": {"invoice_id": "inv_1"}
			}}}
		}`)
		event, err := adapter.Parse(body)
		require.NoError(t, err)
		assert.Equal(t, types.WebhookEventPaymentFailed, event.Type)
		assert.Equal(t, "insufficient funds", event.Payment.FailureReason)
	})

	t.Run("subscription.charged is a renewal", func(t *testing.T) {
		body := []byte(`{
			"event": "subscription.charged",
			"payload": {"subscription": {"entity": {
				"id": "sub_1",
				"current_start": 1738368000,
				"current_end": 1740787200,
				"notes": {"org_id": "org_1"}
			}}}
		}`)
		event, err := adapter.Parse(body)
		require.NoError(t, err)
		assert.Equal(t, types.WebhookEventSubscriptionRenewed, event.Type)
		assert.Equal(t, "org_1", event.Renewal.OrgID)
		assert.True(t, event.Renewal.PeriodEnd.After(event.Renewal.PeriodStart))
	})

	t.Run("out-of-taxonomy event is unhandled", func(t *testing.T) {
		body := []byte(`{"event": "refund.processed", "payload": {}}`)
		_, err := adapter.Parse(body)
		assert.ErrorIs(t, err, ErrUnhandled)
	})
}

func TestInternalAdapterParse(t *testing.T) {
	adapter := NewInternalAdapter()

	t.Run("normalized payment event", func(t *testing.T) {
		body := []byte(`{
			"id": "evt_1",
			"type": "payment_succeeded",
			"payment": {
				"payment_id": "chk_1",
				"invoice_id": "inv_1",
				"amount": 2900,
				"currency": "usd"
			}
		}`)
		event, err := adapter.Parse(body)
		require.NoError(t, err)
		assert.Equal(t, types.PaymentProviderInternal, event.Provider)
		assert.Equal(t, "chk_1", event.Payment.ProviderPaymentID)
	})

	t.Run("type without matching payload rejected", func(t *testing.T) {
		body := []byte(`{"id": "evt_2", "type": "subscription_renewed"}`)
		_, err := adapter.Parse(body)
		require.Error(t, err)
		assert.True(t, ierr.IsValidation(err))
	})
}
