package service

import (
	"context"

	"github.com/sessionlab/billing/internal/api/dto"
	"github.com/sessionlab/billing/internal/domain/plan"
	ierr "github.com/sessionlab/billing/internal/errors"
	"github.com/sessionlab/billing/internal/logger"
)

// PlanService is the read-only plan catalog. Plan administration happens
// outside this engine.
type PlanService interface {
	ListActivePlans(ctx context.Context) (*dto.ListPlansResponse, error)
	GetPlanByCode(ctx context.Context, code string) (*dto.PlanResponse, error)
}

type planService struct {
	repo plan.Repository
	log  *logger.Logger
}

func NewPlanService(params ServiceParams) PlanService {
	return &planService{
		repo: params.PlanRepo,
		log:  params.Logger,
	}
}

func (s *planService) ListActivePlans(ctx context.Context) (*dto.ListPlansResponse, error) {
	plans, err := s.repo.ListActive(ctx)
	if err != nil {
		s.log.Errorw("failed to list active plans", "error", err)
		return nil, err
	}

	response := &dto.ListPlansResponse{
		Plans: make([]*dto.PlanResponse, len(plans)),
		Total: len(plans),
	}
	for i, p := range plans {
		response.Plans[i] = &dto.PlanResponse{Plan: p}
	}
	return response, nil
}

func (s *planService) GetPlanByCode(ctx context.Context, code string) (*dto.PlanResponse, error) {
	if code == "" {
		return nil, ierr.NewError("plan code is required").
			WithHint("Please provide a valid plan code").
			Mark(ierr.ErrValidation)
	}

	p, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return &dto.PlanResponse{Plan: p}, nil
}
