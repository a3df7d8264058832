package service

import (
	"context"
	"time"

	"hokenhub/internal/model"
	"hokenhub/internal/repository"
)

type StatisticsService interface {
	GetStatistics(ctx context.Context, startDate, endDate time.Time) (*model.DirectoryStatistics, error)
}

type statisticsService struct {
	users repository.UserRepository
	plans repository.PlanRepository
}

func NewStatisticsService(users repository.UserRepository, plans repository.PlanRepository) StatisticsService {
	return &statisticsService{users: users, plans: plans}
}

// GetStatistics counts pending approvals, plans per facility and plans created in [startDate, endDate]
func (s *statisticsService) GetStatistics(ctx context.Context, startDate, endDate time.Time) (*model.DirectoryStatistics, error) {
	if endDate.Before(startDate) {
		return nil, newError(KindValidation, "end_date must not be before start_date")
	}

	stats := &model.DirectoryStatistics{
		TimeRangeStartDate: startDate,
		TimeRangeEndDate:   endDate,
		PlansByFacility:    []model.FacilityTally{},
	}

	pending, err := s.users.CountPending(ctx)
	if err != nil {
		return nil, internalError(err)
	}
	stats.PendingUsers = pending

	counts, err := s.plans.CountByFacility(ctx)
	if err != nil {
		return nil, internalError(err)
	}
	for _, c := range counts {
		stats.PlansByFacility = append(stats.PlansByFacility, model.FacilityTally{FacilityName: c.FacilityName, Total: c.Total})
		stats.TotalPlans += c.Total
	}

	created, err := s.plans.CountCreatedBetween(ctx, startDate, endDate)
	if err != nil {
		return nil, internalError(err)
	}
	stats.PlansCreated = created

	return stats, nil
}
