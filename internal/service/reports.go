package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"gooeytea/backend/internal/domain"
	"gooeytea/backend/internal/happyhour"
	"gooeytea/backend/internal/report"
)

const peakOrderCount = 10

// XReport rolls up today's sales per hour from opening up to and including
// the current hour.
func (s *Service) XReport(ctx context.Context) (domain.XReport, error) {
	now := s.now()
	_, dayStart, _ := s.BusinessDay(now)
	currentHour := now.In(s.loc).Hour()

	out := domain.XReport{Rows: []domain.HourlyRow{}}
	for hour := s.openHour; hour <= currentHour; hour++ {
		from := dayStart.Add(time.Duration(hour) * time.Hour)
		summary, err := s.repo.SummarizeSales(ctx, from, from.Add(time.Hour))
		if err != nil {
			return domain.XReport{}, fmt.Errorf("summarize hour %d: %w", hour, err)
		}
		out.Rows = append(out.Rows, domain.HourlyRow{
			Hour:        hour,
			TotalSales:  summary.TotalSales.InexactFloat64(),
			TotalOrders: summary.TotalOrders,
			TotalDrinks: summary.TotalDrinks,
		})
	}
	return out, nil
}

// GeneralReport lists orders in a store-local range. A single date with no
// times produces the peak report for that day.
func (s *Service) GeneralReport(ctx context.Context, req domain.GeneralReportRequest) (report.General, error) {
	startDate := strings.TrimSpace(req.StartDate)
	endDate := strings.TrimSpace(req.EndDate)
	startTime := strings.TrimSpace(req.StartTime)
	endTime := strings.TrimSpace(req.EndTime)

	if startDate == "" {
		return report.General{}, invalidField("startDate", "required", "Please enter a Start Date (YYYY-MM-DD).")
	}
	if endDate == "" {
		return report.General{}, invalidField("endDate", "required", "Please enter an End Date (YYYY-MM-DD).")
	}
	startDay, err := time.ParseInLocation(time.DateOnly, startDate, s.loc)
	if err != nil {
		return report.General{}, invalidField("startDate", "date", "Start Date must be YYYY-MM-DD.")
	}
	endDay, err := time.ParseInLocation(time.DateOnly, endDate, s.loc)
	if err != nil {
		return report.General{}, invalidField("endDate", "date", "End Date must be YYYY-MM-DD.")
	}

	if startTime == "" && endTime == "" && startDate == endDate {
		return s.peakReport(ctx, startDate, startDay)
	}

	from := startDay
	if startTime != "" {
		minutes, err := happyhour.ParseClock(startTime)
		if err != nil {
			return report.General{}, invalidField("startTime", "clock", "Start Time must be HH:MM.")
		}
		from = from.Add(time.Duration(minutes) * time.Minute)
	}
	to := endDay.Add(24 * time.Hour)
	if endTime != "" {
		minutes, err := happyhour.ParseClock(endTime)
		if err != nil {
			return report.General{}, invalidField("endTime", "clock", "End Time must be HH:MM.")
		}
		to = endDay.Add(time.Duration(minutes) * time.Minute)
	}
	if to.Before(from) {
		return report.General{}, invalidField("endDate", "range", "End must not be before Start.")
	}

	orders, err := s.repo.ListOrders(ctx, from, to)
	if err != nil {
		return report.General{}, err
	}

	g := report.General{
		StartDate: startDate,
		EndDate:   endDate,
		StartTime: orDefault(startTime, "00:00"),
		EndTime:   orDefault(endTime, "23:59"),
		Orders:    orders,
		Location:  s.loc,
	}
	return g, nil
}

func (s *Service) peakReport(ctx context.Context, date string, day time.Time) (report.General, error) {
	from, to := day, day.Add(24*time.Hour)

	orders, err := s.repo.ListOrders(ctx, from, to)
	if err != nil {
		return report.General{}, err
	}
	top, err := s.repo.TopOrdersTotal(ctx, from, to, peakOrderCount)
	if err != nil {
		return report.General{}, err
	}

	return report.General{
		Peak:      true,
		StartDate: date,
		EndDate:   date,
		Orders:    orders,
		TopTotal:  top,
		Location:  s.loc,
	}, nil
}

// ZReport closes the current business day. Only the first call per day
// computes totals and resets ingredient usage; later calls get a zeroed
// placeholder.
func (s *Service) ZReport(ctx context.Context) (report.EndOfDay, error) {
	ctx, span := tracer.Start(ctx, "service.ZReport")
	defer span.End()

	label, from, to := s.BusinessDay(s.now())
	span.SetAttributes(attribute.String("business_day", label))

	totals, claimed, err := s.repo.CloseBusinessDay(ctx, label, from, to)
	if err != nil {
		span.RecordError(err)
		return report.EndOfDay{}, fmt.Errorf("close business day %s: %w", label, err)
	}
	span.SetAttributes(attribute.Bool("claimed", claimed))

	if !claimed {
		return s.placeholderZReport(ctx, label)
	}

	z := report.EndOfDay{
		Label:       label,
		TotalSales:  totals.TotalSales.Round(2),
		TotalTax:    totals.TotalSales.Mul(s.taxRate).Round(2),
		TotalOrders: totals.TotalOrders,
		Average:     decimal.Zero,
		Employees:   totals.Employees,
		Ingredients: totals.Ingredients,
	}
	if totals.TotalOrders > 0 {
		z.Average = totals.TotalSales.Div(decimal.NewFromInt(int64(totals.TotalOrders))).Round(2)
	}

	s.logAudit(ctx, "z_report", logrus.Fields{
		"business_day": label,
		"orders":       z.TotalOrders,
		"sales":        z.TotalSales.StringFixed(2),
	})
	return z, nil
}

func (s *Service) placeholderZReport(ctx context.Context, label string) (report.EndOfDay, error) {
	employees, err := s.repo.ListEmployees(ctx)
	if err != nil {
		return report.EndOfDay{}, err
	}
	ingredients, err := s.repo.ListIngredients(ctx)
	if err != nil {
		return report.EndOfDay{}, err
	}

	z := report.EndOfDay{
		Label:       label,
		Placeholder: true,
		TotalSales:  decimal.Zero,
		TotalTax:    decimal.Zero,
		Average:     decimal.Zero,
	}
	for _, e := range employees {
		z.Employees = append(z.Employees, domain.EmployeeOrderCount{EmployeeID: e.ID})
	}
	for _, ing := range ingredients {
		z.Ingredients = append(z.Ingredients, domain.IngredientUsage{ID: ing.ID, Name: ing.Name, Revenue: decimal.Zero})
	}
	return z, nil
}

// SeasonalMenu lists the ingredients in the seasonal id bands.
func (s *Service) SeasonalMenu(ctx context.Context) (domain.SeasonalMenu, error) {
	ingredients, err := s.repo.ListIngredients(ctx)
	if err != nil {
		return domain.SeasonalMenu{}, err
	}

	menu := domain.SeasonalMenu{
		Teas:     []domain.Ingredient{},
		Flavors:  []domain.Ingredient{},
		Toppings: []domain.Ingredient{},
	}
	for _, ing := range ingredients {
		switch {
		case ing.ID >= domain.SeasonalTeaStart && ing.ID <= domain.SeasonalTeaEnd:
			menu.Teas = append(menu.Teas, ing)
		case ing.ID >= domain.SeasonalFlavorStart && ing.ID <= domain.SeasonalFlavorEnd:
			menu.Flavors = append(menu.Flavors, ing)
		case ing.ID >= domain.SeasonalToppingStart && ing.ID <= domain.SeasonalToppingEnd:
			menu.Toppings = append(menu.Toppings, ing)
		}
	}
	return menu, nil
}

func orDefault(value string, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
