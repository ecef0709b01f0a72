package dto

import (
	"github.com/sessionlab/billing/internal/domain/plan"
)

type PlanResponse struct {
	*plan.Plan
}

type ListPlansResponse struct {
	Plans []*PlanResponse `json:"plans"`
	Total int             `json:"total"`
}
