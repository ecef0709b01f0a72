package service

import (
	"context"

	"github.com/sessionlab/billing/internal/api/dto"
	ierr "github.com/sessionlab/billing/internal/errors"
)

type InvoiceService interface {
	ListInvoices(ctx context.Context, orgID string) (*dto.ListInvoicesResponse, error)
}

type invoiceService struct {
	ServiceParams
}

func NewInvoiceService(params ServiceParams) InvoiceService {
	return &invoiceService{ServiceParams: params}
}

func (s *invoiceService) ListInvoices(ctx context.Context, orgID string) (*dto.ListInvoicesResponse, error) {
	if orgID == "" {
		return nil, ierr.NewError("org_id is required").
			WithHint("Please provide a valid organization ID").
			Mark(ierr.ErrValidation)
	}

	invoices, err := s.InvoiceRepo.ListByOrgID(ctx, orgID)
	if err != nil {
		return nil, err
	}

	response := &dto.ListInvoicesResponse{
		Invoices: make([]*dto.InvoiceResponse, len(invoices)),
		Total:    len(invoices),
	}
	for i, inv := range invoices {
		response.Invoices[i] = &dto.InvoiceResponse{Invoice: inv}
	}
	return response, nil
}
