package services

import (
	"context"

	"circlefund/internal/adapters/persistence/models"
	"circlefund/internal/adapters/persistence/repositories"
)

// DashboardService aggregates system-wide statistics for the admin view
type DashboardService struct {
	circleRepo     *repositories.CircleRepository
	creditRepo     *repositories.CreditRepository
	reserveService *ReserveService
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(
	circleRepo *repositories.CircleRepository,
	creditRepo *repositories.CreditRepository,
	reserveService *ReserveService,
) *DashboardService {
	return &DashboardService{
		circleRepo:     circleRepo,
		creditRepo:     creditRepo,
		reserveService: reserveService,
	}
}

// Overview is the system-wide dashboard snapshot
type Overview struct {
	CirclesByStatus map[string]int64       `json:"circles_by_status"`
	TotalPooled     int64                  `json:"total_pooled"`
	CreditProfiles  int64                  `json:"credit_profiles"`
	Reserve         *ReserveStats          `json:"reserve"`
	TopScores       []models.CreditProfile `json:"top_scores"`
}

// GetOverview builds the dashboard snapshot
func (s *DashboardService) GetOverview(ctx context.Context) (*Overview, error) {
	byStatus, err := s.circleRepo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	totalPooled, err := s.circleRepo.SumPoolBalances(ctx)
	if err != nil {
		return nil, err
	}

	profiles, err := s.creditRepo.Count(ctx)
	if err != nil {
		return nil, err
	}

	reserve, err := s.reserveService.Stats(ctx)
	if err != nil {
		return nil, err
	}

	topScores, err := s.creditRepo.TopScores(ctx, 5)
	if err != nil {
		return nil, err
	}

	return &Overview{
		CirclesByStatus: byStatus,
		TotalPooled:     totalPooled,
		CreditProfiles:  profiles,
		Reserve:         reserve,
		TopScores:       topScores,
	}, nil
}
