package service

import (
	"context"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"gooeytea/backend/internal/domain"
	"gooeytea/backend/internal/happyhour"
)

func (s *Service) ResolveDrink(ctx context.Context, req domain.ResolveDrinkRequest) (domain.ResolveDrinkResponse, error) {
	if err := s.check(req); err != nil {
		return domain.ResolveDrinkResponse{}, err
	}

	v, err := s.resolver.Resolve(ctx, req)
	if err != nil {
		return domain.ResolveDrinkResponse{}, err
	}
	return domain.ResolveDrinkResponse{DrinkID: v.ID, Price: v.Price.InexactFloat64()}, nil
}

// PlaceOrder prices and commits a whole cart as one unit: the order row, one
// sales record per drink and the ingredient ledger deltas either all persist
// or none do.
func (s *Service) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResponse, error) {
	ctx, span := tracer.Start(ctx, "service.PlaceOrder")
	defer span.End()

	if err := s.check(req); err != nil {
		return domain.OrderResponse{}, err
	}

	placedAt := s.now()
	draft := BuildDraft(req)
	draft.PlacedAt = placedAt.UTC()
	draft.AllowNegativeStock = s.allowNegativeStock
	span.SetAttributes(attribute.Int("order.drinks", len(draft.DrinkIDs)))

	cfg, err := s.repo.GetHappyHour(ctx)
	if err != nil && !isNotFound(err) {
		return domain.OrderResponse{}, fmt.Errorf("load happy hour: %w", err)
	}
	adjust := func(subtotal decimal.Decimal) decimal.Decimal {
		if cfg == nil {
			return subtotal
		}
		return happyhour.Apply(*cfg, subtotal, placedAt, s.loc)
	}

	order, err := s.repo.CommitOrder(ctx, draft, adjust)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "commit failed")
		s.log.WithError(err).WithField("employee_id", draft.EmployeeID).Warn("order rejected")
		return domain.OrderResponse{}, fmt.Errorf("commit order: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"order_id":    order.ID,
		"employee_id": order.EmployeeID,
		"drinks":      len(draft.DrinkIDs),
		"price":       order.Price.StringFixed(2),
	}).Info("order committed")

	if s.publisher != nil {
		s.publisher.PublishOrder(domain.OrderCommitted{
			OrderID:    order.ID,
			Price:      order.Price.InexactFloat64(),
			EmployeeID: order.EmployeeID,
			Drinks:     len(draft.DrinkIDs),
			PlacedAt:   order.PlacedAt,
		})
	}

	return domain.OrderResponse{OrderID: order.ID, Price: order.Price.InexactFloat64()}, nil
}

// BuildDraft expands cart items into one drink id per unit and aggregates
// ingredient usage. Each unit uses its tea once, every listed flavor and
// topping once per occurrence, and one of each accessory. Zero ids are
// empty slots. Ledger entries are sorted by ingredient id.
func BuildDraft(req domain.OrderRequest) domain.OrderDraft {
	draft := domain.OrderDraft{}
	if req.EmployeeID != nil {
		draft.EmployeeID = *req.EmployeeID
	}

	usage := make(map[int]int)
	units := 0
	for _, item := range req.Items {
		qty := item.Quantity
		if qty < 1 {
			qty = 1
		}
		for i := 0; i < qty; i++ {
			draft.DrinkIDs = append(draft.DrinkIDs, item.DrinkID)
		}
		units += qty

		if item.TeaID != 0 {
			usage[item.TeaID] += qty
		}
		for _, id := range item.FlavorIDs {
			if id != 0 {
				usage[id] += qty
			}
		}
		for _, id := range item.ToppingIDs {
			if id != 0 {
				usage[id] += qty
			}
		}
	}
	for _, id := range domain.AccessoryIngredientIDs {
		usage[id] += units
	}

	ids := make([]int, 0, len(usage))
	for id := range usage {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		draft.Ledger = append(draft.Ledger, domain.LedgerDelta{IngredientID: id, Units: usage[id]})
	}
	return draft
}
