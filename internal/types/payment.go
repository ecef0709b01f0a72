package types

import (
	ierr "github.com/sessionlab/billing/internal/errors"
	"github.com/samber/lo"
)

// PaymentStatus is the state of a payment reported by a provider
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

func (s PaymentStatus) String() string {
	return string(s)
}

func (s PaymentStatus) Validate() error {
	allowed := []PaymentStatus{
		PaymentStatusPending,
		PaymentStatusSucceeded,
		PaymentStatusFailed,
		PaymentStatusRefunded,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid payment status").
			WithHint("Invalid payment status").
			WithReportableDetails(map[string]any{
				"status": s,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// PaymentProvider identifies the external payment provider an event or
// payment came from. The pair (provider, provider payment id) is the
// idempotency key for webhook-driven payment processing.
type PaymentProvider string

const (
	PaymentProviderStripe   PaymentProvider = "stripe"
	PaymentProviderRazorpay PaymentProvider = "razorpay"
	// PaymentProviderInternal covers payments recorded through the
	// authenticated API rather than a signed webhook (offline/manual
	// collection). Its deliveries are verified by construction, see the
	// webhook verifier package.
	PaymentProviderInternal PaymentProvider = "internal"
)

func (p PaymentProvider) String() string {
	return string(p)
}

func (p PaymentProvider) Validate() error {
	allowed := []PaymentProvider{
		PaymentProviderStripe,
		PaymentProviderRazorpay,
		PaymentProviderInternal,
	}
	if !lo.Contains(allowed, p) {
		return ierr.NewError("invalid payment provider").
			WithHint("Unknown payment provider").
			WithReportableDetails(map[string]any{
				"provider": p,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
