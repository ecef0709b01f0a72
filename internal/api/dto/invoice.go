package dto

import (
	"github.com/sessionlab/billing/internal/domain/invoice"
)

type InvoiceResponse struct {
	*invoice.Invoice
}

type ListInvoicesResponse struct {
	Invoices []*InvoiceResponse `json:"invoices"`
	Total    int                `json:"total"`
}
