package service

import (
	"context"
	"strings"
	"time"

	"gooeytea/backend/internal/domain"
)

const (
	defaultRecentOrders = 50
	maxRecentOrders     = 500
)

func (s *Service) DrinkUsage(ctx context.Context) ([]domain.DrinkUsage, error) {
	return s.repo.DrinkUsage(ctx)
}

func (s *Service) IngredientUsage(ctx context.Context) ([]domain.IngredientHistory, error) {
	return s.repo.IngredientUsageHistory(ctx)
}

// RecentOrders returns the newest orders. A non-positive limit means 50.
func (s *Service) RecentOrders(ctx context.Context, limit int) ([]domain.OrderSummary, error) {
	if limit <= 0 {
		limit = defaultRecentOrders
	}
	if limit > maxRecentOrders {
		limit = maxRecentOrders
	}
	return s.repo.RecentOrders(ctx, limit)
}

// OrdersInRange lists orders placed on store-local dates startDate through
// endDate inclusive, newest first.
func (s *Service) OrdersInRange(ctx context.Context, startDate string, endDate string) ([]domain.OrderSummary, error) {
	startDate = strings.TrimSpace(startDate)
	endDate = strings.TrimSpace(endDate)
	if startDate == "" || endDate == "" {
		return nil, invalidField("startDate", "required", "Start date and end date are required")
	}

	from, err := time.ParseInLocation(time.DateOnly, startDate, s.loc)
	if err != nil {
		return nil, invalidField("startDate", "date", "Start Date must be YYYY-MM-DD.")
	}
	endDay, err := time.ParseInLocation(time.DateOnly, endDate, s.loc)
	if err != nil {
		return nil, invalidField("endDate", "date", "End Date must be YYYY-MM-DD.")
	}
	if endDay.Before(from) {
		return nil, invalidField("endDate", "range", "End must not be before Start.")
	}
	return s.repo.OrderSummaries(ctx, from, endDay.Add(24*time.Hour))
}

func (s *Service) EmployeeSales(ctx context.Context) ([]domain.EmployeeSales, error) {
	return s.repo.EmployeeSales(ctx)
}
