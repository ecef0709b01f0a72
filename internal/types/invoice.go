package types

import (
	ierr "github.com/sessionlab/billing/internal/errors"
	"github.com/samber/lo"
)

// InvoiceStatus is the collection state of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft InvoiceStatus = "draft"
	InvoiceStatusOpen  InvoiceStatus = "open"
	InvoiceStatusPaid  InvoiceStatus = "paid"
	InvoiceStatusVoid  InvoiceStatus = "void"
)

func (s InvoiceStatus) String() string {
	return string(s)
}

func (s InvoiceStatus) Validate() error {
	allowed := []InvoiceStatus{
		InvoiceStatusDraft,
		InvoiceStatusOpen,
		InvoiceStatusPaid,
		InvoiceStatusVoid,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid invoice status").
			WithHint("Invalid invoice status").
			WithReportableDetails(map[string]any{
				"status": s,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// InvoiceKind records which write path produced an invoice
type InvoiceKind string

const (
	InvoiceKindInitial   InvoiceKind = "initial"
	InvoiceKindProration InvoiceKind = "proration"
	InvoiceKindRenewal   InvoiceKind = "renewal"
)

func (k InvoiceKind) Validate() error {
	allowed := []InvoiceKind{
		InvoiceKindInitial,
		InvoiceKindProration,
		InvoiceKindRenewal,
	}
	if !lo.Contains(allowed, k) {
		return ierr.NewError("invalid invoice kind").
			WithHint("Invalid invoice kind").
			WithReportableDetails(map[string]any{
				"kind": k,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
