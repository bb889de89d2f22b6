package service

import (
	"context"

	"github.com/skillcore/skillcore-backend/internal/model"
	"github.com/skillcore/skillcore-backend/internal/repository"
)

// DashboardData consolidates the staff landing-page metrics for one school.
type DashboardData struct {
	model.DashboardSummary
	TierBreakdown model.TierBreakdown `json:"tier_breakdown"`
}

// DashboardService handles staff dashboard aggregation.
type DashboardService struct {
	dashboardRepo    *repository.DashboardRepository
	interventionRepo *repository.InterventionRepository
}

func NewDashboardService(dashboardRepo *repository.DashboardRepository, interventionRepo *repository.InterventionRepository) *DashboardService {
	return &DashboardService{
		dashboardRepo:    dashboardRepo,
		interventionRepo: interventionRepo,
	}
}

// GetDashboardData fetches the summary counters and the MTSS tier
// breakdown for the caller's school.
func (s *DashboardService) GetDashboardData(ctx context.Context, scope model.TenantScope) (*DashboardData, error) {
	summary, err := s.dashboardRepo.Summary(ctx, scope)
	if err != nil {
		return nil, err
	}

	tiers, err := s.interventionRepo.CountOpenByTier(ctx, scope)
	if err != nil {
		return nil, err
	}

	return &DashboardData{
		DashboardSummary: *summary,
		TierBreakdown:    *tiers,
	}, nil
}
