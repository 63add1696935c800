package service

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"gooeytea/backend/internal/domain"
	"gooeytea/backend/internal/happyhour"
	"gooeytea/backend/internal/store"
)

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

func (s *Service) HappyHourStatus(ctx context.Context) (domain.HappyHourStatus, error) {
	cfg, err := s.repo.GetHappyHour(ctx)
	if err != nil {
		return domain.HappyHourStatus{}, err
	}

	return domain.HappyHourStatus{
		StartTime:         happyhour.FormatClock(cfg.StartTime),
		EndTime:           happyhour.FormatClock(cfg.EndTime),
		DiscountPercent:   cfg.DiscountPercent.InexactFloat64(),
		IsActive:          cfg.IsActive,
		IsCurrentlyActive: happyhour.Active(*cfg, s.now(), s.loc),
	}, nil
}

func (s *Service) UpdateHappyHour(ctx context.Context, req domain.HappyHourUpdateRequest) error {
	if err := s.check(req); err != nil {
		return err
	}

	cfg := domain.HappyHourConfig{
		StartTime:       happyhour.FormatClock(req.StartTime),
		EndTime:         happyhour.FormatClock(req.EndTime),
		DiscountPercent: decimal.NewFromFloat(req.DiscountPercent).Round(2),
		IsActive:        req.IsActive,
	}
	if err := s.repo.UpdateHappyHour(ctx, cfg); err != nil {
		return err
	}

	s.logAudit(ctx, "happy_hour_update", logrus.Fields{
		"start":    cfg.StartTime,
		"end":      cfg.EndTime,
		"discount": cfg.DiscountPercent.String(),
		"active":   cfg.IsActive,
	})
	return nil
}
