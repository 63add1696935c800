package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"gooeytea/backend/internal/domain"
	"gooeytea/backend/internal/store"
)

type Store struct {
	mu            sync.RWMutex
	ingredients   map[int]domain.Ingredient
	employees     map[int]domain.Employee
	variantsBySig map[string]domain.DrinkVariant
	variantsByID  map[int64]domain.DrinkVariant
	orders        []domain.Order
	sales         []domain.SalesRecord
	happyHour     *domain.HappyHourConfig
	closedDays    map[string]time.Time
	nextVariantID int64
	nextOrderID   int64
}

func New() *Store {
	return &Store{
		ingredients:   make(map[int]domain.Ingredient),
		employees:     make(map[int]domain.Employee),
		variantsBySig: make(map[string]domain.DrinkVariant),
		variantsByID:  make(map[int64]domain.DrinkVariant),
		orders:        make([]domain.Order, 0, 128),
		sales:         make([]domain.SalesRecord, 0, 256),
		closedDays:    make(map[string]time.Time),
		nextVariantID: 1,
		nextOrderID:   1,
	}
}

// NewSeeded returns a store with a small demo menu, staff and a disabled
// happy hour, suitable for local runs without Postgres.
func NewSeeded() *Store {
	s := New()

	seed := []struct {
		id    int
		name  string
		price string
	}{
		{10, "Black Tea", "0.50"},
		{11, "Green Tea", "0.50"},
		{12, "Oolong Tea", "0.60"},
		{13, "Jasmine Tea", "0.55"},
		{14, "Thai Tea", "0.65"},
		{21, "Brown Sugar Syrup", "1.00"},
		{22, "Honey", "1.00"},
		{23, "Mango", "1.00"},
		{24, "Strawberry", "1.00"},
		{25, "Taro", "1.00"},
		{26, "Lychee", "1.00"},
		{31, "Tapioca Pearls", "0.75"},
		{32, "Grass Jelly", "0.75"},
		{33, "Aloe Vera", "0.75"},
		{34, "Popping Boba", "0.75"},
		{35, "Cheese Foam", "0.75"},
		{40, "Cup", "0.05"},
		{41, "Lid", "0.03"},
		{42, "Straw", "0.02"},
		{43, "Sealing Film", "0.02"},
		{50, "Pumpkin Spice Tea", "0.80"},
		{60, "Peppermint", "1.25"},
		{70, "Candy Cane Crumble", "0.90"},
	}
	for _, item := range seed {
		s.ingredients[item.id] = domain.Ingredient{
			ID:           item.id,
			Name:         item.name,
			QuantityLeft: 500,
			SalePrice:    decimal.RequireFromString(item.price),
			ReorderPrice: decimal.RequireFromString(item.price).Div(decimal.NewFromInt(2)),
		}
	}

	for _, e := range []domain.Employee{
		{ID: 1, Name: "Avery"},
		{ID: 2, Name: "Jordan"},
		{ID: 3, Name: "Riley"},
	} {
		s.employees[e.ID] = e
	}

	s.happyHour = &domain.HappyHourConfig{
		StartTime:       "15:00",
		EndTime:         "17:00",
		DiscountPercent: decimal.NewFromInt(20),
		IsActive:        false,
	}

	return s
}

// PutIngredient inserts or replaces an ingredient row. Ingredient CRUD is owned
// elsewhere; this exists for seeding.
func (s *Store) PutIngredient(ingredient domain.Ingredient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ingredients[ingredient.ID] = ingredient
}

func (s *Store) PutEmployee(employee domain.Employee) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.employees[employee.ID] = employee
}

func (s *Store) FindVariantBySignature(_ context.Context, signature string) (*domain.DrinkVariant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	variant, ok := s.variantsBySig[signature]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := cloneVariant(variant)
	return &out, nil
}

func (s *Store) CreateVariant(_ context.Context, variant domain.DrinkVariant) (*domain.DrinkVariant, error) {
	if variant.Signature == "" || variant.Price.IsNegative() {
		return nil, store.ErrInvalidTransaction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.variantsBySig[variant.Signature]; ok {
		out := cloneVariant(existing)
		return &out, nil
	}

	variant = cloneVariant(variant)
	variant.ID = s.nextVariantID
	s.nextVariantID++
	if variant.CreatedAt.IsZero() {
		variant.CreatedAt = time.Now().UTC()
	}
	s.variantsBySig[variant.Signature] = variant
	s.variantsByID[variant.ID] = variant

	out := cloneVariant(variant)
	return &out, nil
}

func (s *Store) CommitOrder(_ context.Context, draft domain.OrderDraft, adjust store.PriceAdjuster) (*domain.Order, error) {
	if len(draft.DrinkIDs) == 0 || draft.EmployeeID < 0 {
		return nil, store.ErrInvalidTransaction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Everything is checked before the first mutation so a failure leaves no trace.
	subtotal := decimal.Zero
	for _, drinkID := range draft.DrinkIDs {
		variant, ok := s.variantsByID[drinkID]
		if !ok {
			return nil, store.ErrUnknownDrink
		}
		subtotal = subtotal.Add(variant.Price)
	}

	updated := make(map[int]domain.Ingredient, len(draft.Ledger))
	for _, delta := range draft.Ledger {
		ingredient, ok := updated[delta.IngredientID]
		if !ok {
			ingredient, ok = s.ingredients[delta.IngredientID]
			if !ok {
				return nil, store.ErrUnknownIngredient
			}
		}
		ingredient.QuantityLeft -= delta.Units
		ingredient.QuantityUsed += delta.Units
		if ingredient.QuantityLeft < 0 && !draft.AllowNegativeStock {
			return nil, store.ErrInsufficientStock
		}
		updated[delta.IngredientID] = ingredient
	}

	price := subtotal
	if adjust != nil {
		price = adjust(subtotal)
	}

	placedAt := draft.PlacedAt
	if placedAt.IsZero() {
		placedAt = time.Now().UTC()
	}
	order := domain.Order{
		ID:         s.nextOrderID,
		PlacedAt:   placedAt,
		EmployeeID: draft.EmployeeID,
		Price:      price,
	}
	s.nextOrderID++

	s.orders = append(s.orders, order)
	for _, drinkID := range draft.DrinkIDs {
		s.sales = append(s.sales, domain.SalesRecord{OrderID: order.ID, DrinkID: drinkID})
	}
	for id, ingredient := range updated {
		s.ingredients[id] = ingredient
	}

	return &order, nil
}

func (s *Store) GetHappyHour(_ context.Context) (*domain.HappyHourConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.happyHour == nil {
		return nil, store.ErrNotFound
	}
	cfg := *s.happyHour
	return &cfg, nil
}

func (s *Store) UpdateHappyHour(_ context.Context, cfg domain.HappyHourConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.happyHour = &cfg
	return nil
}

func (s *Store) ListOrders(_ context.Context, from time.Time, to time.Time) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.ordersBetween(from, to), nil
}

func (s *Store) SummarizeSales(_ context.Context, from time.Time, to time.Time) (domain.SalesSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := domain.SalesSummary{TotalSales: decimal.Zero}
	inWindow := make(map[int64]struct{})
	for _, order := range s.ordersBetween(from, to) {
		summary.TotalSales = summary.TotalSales.Add(order.Price)
		summary.TotalOrders++
		inWindow[order.ID] = struct{}{}
	}
	for _, sale := range s.sales {
		if _, ok := inWindow[sale.OrderID]; ok {
			summary.TotalDrinks++
		}
	}
	return summary, nil
}

func (s *Store) TopOrdersTotal(_ context.Context, from time.Time, to time.Time, limit int) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := s.ordersBetween(from, to)
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].Price.GreaterThan(orders[j].Price)
	})
	if limit > 0 && len(orders) > limit {
		orders = orders[:limit]
	}

	total := decimal.Zero
	for _, order := range orders {
		total = total.Add(order.Price)
	}
	return total, nil
}

func (s *Store) CloseBusinessDay(_ context.Context, label string, from time.Time, to time.Time) (domain.EndOfDayTotals, bool, error) {
	if label == "" {
		return domain.EndOfDayTotals{}, false, store.ErrInvalidTransaction
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, closed := s.closedDays[label]; closed {
		return domain.EndOfDayTotals{}, false, nil
	}

	totals := domain.EndOfDayTotals{TotalSales: decimal.Zero}
	perEmployee := make(map[int]int, len(s.employees))
	for id := range s.employees {
		perEmployee[id] = 0
	}
	for _, order := range s.ordersBetween(from, to) {
		totals.TotalSales = totals.TotalSales.Add(order.Price)
		totals.TotalOrders++
		if _, ok := perEmployee[order.EmployeeID]; ok {
			perEmployee[order.EmployeeID]++
		}
	}
	for id, count := range perEmployee {
		totals.Employees = append(totals.Employees, domain.EmployeeOrderCount{EmployeeID: id, Orders: count})
	}
	slices.SortFunc(totals.Employees, func(a, b domain.EmployeeOrderCount) int { return a.EmployeeID - b.EmployeeID })

	for _, id := range s.sortedIngredientIDs() {
		ingredient := s.ingredients[id]
		totals.Ingredients = append(totals.Ingredients, domain.IngredientUsage{
			ID:           ingredient.ID,
			Name:         ingredient.Name,
			QuantityUsed: ingredient.QuantityUsed,
			Revenue:      ingredient.SalePrice.Mul(decimal.NewFromInt(int64(ingredient.QuantityUsed))),
		})
		ingredient.QuantityUsed = 0
		s.ingredients[id] = ingredient
	}

	s.closedDays[label] = time.Now().UTC()
	return totals, true, nil
}

func (s *Store) ListIngredients(_ context.Context) ([]domain.Ingredient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.sortedIngredientIDs()
	out := make([]domain.Ingredient, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.ingredients[id])
	}
	return out, nil
}

func (s *Store) ListEmployees(_ context.Context) ([]domain.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Employee, 0, len(s.employees))
	for _, e := range s.employees {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b domain.Employee) int { return a.ID - b.ID })
	return out, nil
}

func (s *Store) DrinkUsage(_ context.Context) ([]domain.DrinkUsage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[int64]int, len(s.variantsByID))
	for id := range s.variantsByID {
		counts[id] = 0
	}
	for _, sale := range s.sales {
		counts[sale.DrinkID]++
	}

	out := make([]domain.DrinkUsage, 0, len(counts))
	for id, used := range counts {
		out = append(out, domain.DrinkUsage{DrinkID: id, Used: used})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Used == out[j].Used {
			return out[i].DrinkID < out[j].DrinkID
		}
		return out[i].Used > out[j].Used
	})
	return out, nil
}

func (s *Store) IngredientUsageHistory(_ context.Context) ([]domain.IngredientHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type usageKey struct {
		id   int
		kind string
	}
	counts := make(map[usageKey]int)
	count := func(id int, kind string) {
		if _, ok := s.ingredients[id]; ok {
			counts[usageKey{id: id, kind: kind}]++
		}
	}
	for _, sale := range s.sales {
		variant, ok := s.variantsByID[sale.DrinkID]
		if !ok {
			continue
		}
		count(variant.TeaID, domain.UsageTea)
		for _, id := range variant.FlavorIDs {
			count(id, domain.UsageFlavor)
		}
		for _, id := range variant.ToppingIDs {
			count(id, domain.UsageTopping)
		}
	}

	out := make([]domain.IngredientHistory, 0, len(counts))
	for key, used := range counts {
		out = append(out, domain.IngredientHistory{
			ItemID: key.id,
			Name:   s.ingredients[key.id].Name,
			Type:   key.kind,
			Used:   used,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Used != out[j].Used {
			return out[i].Used > out[j].Used
		}
		if out[i].ItemID != out[j].ItemID {
			return out[i].ItemID < out[j].ItemID
		}
		return out[i].Type < out[j].Type
	})
	return out, nil
}

func (s *Store) RecentOrders(_ context.Context, limit int) ([]domain.OrderSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.summarize(s.orders)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) OrderSummaries(_ context.Context, from time.Time, to time.Time) ([]domain.OrderSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.summarize(s.ordersBetween(from, to)), nil
}

func (s *Store) EmployeeSales(_ context.Context) ([]domain.EmployeeSales, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byID := make(map[int]*domain.EmployeeSales, len(s.employees))
	for id, e := range s.employees {
		byID[id] = &domain.EmployeeSales{EmployeeID: id, EmployeeName: e.Name, TotalSales: decimal.Zero}
	}
	for _, order := range s.orders {
		row, ok := byID[order.EmployeeID]
		if !ok {
			continue
		}
		row.OrdersProcessed++
		row.TotalSales = row.TotalSales.Add(order.Price)
	}

	out := make([]domain.EmployeeSales, 0, len(byID))
	for _, row := range byID {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].TotalSales.Cmp(out[j].TotalSales); c != 0 {
			return c > 0
		}
		return out[i].EmployeeID < out[j].EmployeeID
	})
	return out, nil
}

// summarize attaches employee names and drink counts to orders and sorts them
// newest first. Caller must hold the lock.
func (s *Store) summarize(orders []domain.Order) []domain.OrderSummary {
	items := make(map[int64]int, len(orders))
	for _, sale := range s.sales {
		items[sale.OrderID]++
	}

	out := make([]domain.OrderSummary, 0, len(orders))
	for _, order := range orders {
		out = append(out, domain.OrderSummary{
			OrderID:      order.ID,
			PlacedAt:     order.PlacedAt,
			EmployeeID:   order.EmployeeID,
			EmployeeName: s.employees[order.EmployeeID].Name,
			TotalPrice:   order.Price,
			ItemCount:    items[order.ID],
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].PlacedAt.Equal(out[j].PlacedAt) {
			return out[i].PlacedAt.After(out[j].PlacedAt)
		}
		return out[i].OrderID > out[j].OrderID
	})
	return out
}

// ordersBetween returns orders with from <= placedAt < to in commit order.
// Caller must hold the lock.
func (s *Store) ordersBetween(from time.Time, to time.Time) []domain.Order {
	out := make([]domain.Order, 0, 32)
	for _, order := range s.orders {
		if order.PlacedAt.Before(from) || !order.PlacedAt.Before(to) {
			continue
		}
		out = append(out, order)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PlacedAt.Before(out[j].PlacedAt)
	})
	return out
}

func (s *Store) sortedIngredientIDs() []int {
	ids := make([]int, 0, len(s.ingredients))
	for id := range s.ingredients {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func cloneVariant(src domain.DrinkVariant) domain.DrinkVariant {
	out := src
	out.FlavorIDs = slices.Clone(src.FlavorIDs)
	out.ToppingIDs = slices.Clone(src.ToppingIDs)
	return out
}
