package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"gooeytea/backend/internal/domain"
	"gooeytea/backend/internal/store"
)

func newIntegrationStore(t *testing.T) *Store {
	t.Helper()
	databaseURL := os.Getenv("GOOEYTEA_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set GOOEYTEA_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return s
}

func seedIngredient(t *testing.T, s *Store, id int, left int) {
	t.Helper()
	ctx := context.Background()
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO inventory (id, name, quantity_left, quantity_used, sale_price, reorder_price)
		VALUES ($1, $2, $3, 0, 1.25, 0.50)
		ON CONFLICT (id) DO UPDATE SET quantity_left = EXCLUDED.quantity_left, quantity_used = 0
	`, id, fmt.Sprintf("it-ingredient-%d", id), left); err != nil {
		t.Fatalf("seed ingredient %d: %v", id, err)
	}
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM inventory WHERE id = $1`, id)
	})
}

func TestConcurrentCommitsAllocateDistinctIDs(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	stamp := time.Now().UnixNano()
	ingredientID := 900000 + int(stamp%50000)
	seedIngredient(t, s, ingredientID, 1000)

	variant, err := s.CreateVariant(ctx, domain.DrinkVariant{
		Signature: fmt.Sprintf("it-%d", stamp),
		TeaID:     ingredientID,
		FlavorIDs: []int{21, 22},
		Sugar:     50,
		Ice:       100,
		Size:      domain.SizeMedium,
		Price:     decimal.RequireFromString("7.50"),
	})
	if err != nil {
		t.Fatalf("create variant: %v", err)
	}
	again, err := s.CreateVariant(ctx, domain.DrinkVariant{Signature: variant.Signature, Size: domain.SizeMedium, Price: decimal.NewFromInt(99)})
	if err != nil || again.ID != variant.ID || !again.Price.Equal(variant.Price) {
		t.Fatalf("expected duplicate signature to return the first variant, got %+v (%v)", again, err)
	}

	orderIDs := make(chan int64, 20)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			order, err := s.CommitOrder(ctx, domain.OrderDraft{
				EmployeeID:         1,
				PlacedAt:           time.Now().UTC(),
				DrinkIDs:           []int64{variant.ID, variant.ID},
				Ledger:             []domain.LedgerDelta{{IngredientID: ingredientID, Units: 2}},
				AllowNegativeStock: true,
			}, nil)
			if err != nil {
				t.Errorf("commit: %v", err)
				return
			}
			orderIDs <- order.ID
		}()
	}
	wg.Wait()
	close(orderIDs)

	seen := map[int64]bool{}
	for id := range orderIDs {
		if seen[id] {
			t.Fatalf("order id %d allocated twice", id)
		}
		seen[id] = true
	}
	t.Cleanup(func() {
		for id := range seen {
			_, _ = s.db.ExecContext(ctx, `DELETE FROM sales_history WHERE order_id = $1`, id)
			_, _ = s.db.ExecContext(ctx, `DELETE FROM orders WHERE order_id = $1`, id)
		}
		_, _ = s.db.ExecContext(ctx, `DELETE FROM drinks WHERE id = $1`, variant.ID)
	})

	var left, used int
	if err := s.db.QueryRowContext(ctx, `SELECT quantity_left, quantity_used FROM inventory WHERE id = $1`, ingredientID).Scan(&left, &used); err != nil {
		t.Fatalf("read ledger: %v", err)
	}
	if left != 1000-40 || used != 40 {
		t.Fatalf("expected left=960 used=40, got left=%d used=%d", left, used)
	}
}

func TestCommitRollsBackOnUnknownIngredient(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	stamp := time.Now().UnixNano()
	ingredientID := 950000 + int(stamp%40000)
	seedIngredient(t, s, ingredientID, 10)

	variant, err := s.CreateVariant(ctx, domain.DrinkVariant{Signature: fmt.Sprintf("it-rb-%d", stamp), Size: domain.SizeSmall, Price: decimal.RequireFromString("5.50")})
	if err != nil {
		t.Fatalf("create variant: %v", err)
	}
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM drinks WHERE id = $1`, variant.ID)
	})

	_, err = s.CommitOrder(ctx, domain.OrderDraft{
		EmployeeID: 1,
		DrinkIDs:   []int64{variant.ID},
		Ledger: []domain.LedgerDelta{
			{IngredientID: ingredientID, Units: 1},
			{IngredientID: -1, Units: 1},
		},
	}, nil)
	if !errors.Is(err, store.ErrUnknownIngredient) {
		t.Fatalf("expected unknown ingredient, got %v", err)
	}

	var left int
	if err := s.db.QueryRowContext(ctx, `SELECT quantity_left FROM inventory WHERE id = $1`, ingredientID).Scan(&left); err != nil {
		t.Fatalf("read ledger: %v", err)
	}
	if left != 10 {
		t.Fatalf("expected rollback to restore quantity_left=10, got %d", left)
	}
	var sales int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sales_history WHERE drink_id = $1`, variant.ID).Scan(&sales); err != nil {
		t.Fatalf("count sales: %v", err)
	}
	if sales != 0 {
		t.Fatalf("expected no sales rows, got %d", sales)
	}
}

func TestCloseBusinessDayClaimsOnce(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	stamp := time.Now().UnixNano()
	label := time.Date(2200, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, int(stamp%3650)).Format(time.DateOnly)
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM z_report_log WHERE run_date = $1::date`, label)
	})

	from := time.Now().Add(-time.Hour)
	to := time.Now().Add(time.Hour)

	var mu sync.Mutex
	claims := 0
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, claimed, err := s.CloseBusinessDay(ctx, label, from, to)
			if err != nil {
				t.Errorf("close day: %v", err)
				return
			}
			if claimed {
				mu.Lock()
				claims++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if claims != 1 {
		t.Fatalf("expected exactly one claim, got %d", claims)
	}
}

func TestOrderHistoryQueries(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	stamp := time.Now().UnixNano()
	ingredientID := 990000 + int(stamp%9000)
	employeeID := 800000 + int(stamp%90000)
	seedIngredient(t, s, ingredientID, 100)

	if _, err := s.db.ExecContext(ctx, `INSERT INTO employees (id, name) VALUES ($1, 'it-employee') ON CONFLICT (id) DO NOTHING`, employeeID); err != nil {
		t.Fatalf("seed employee: %v", err)
	}
	variant, err := s.CreateVariant(ctx, domain.DrinkVariant{
		Signature: fmt.Sprintf("it-hist-%d", stamp),
		TeaID:     ingredientID,
		FlavorIDs: []int{ingredientID, ingredientID},
		Size:      domain.SizeSmall,
		Price:     decimal.RequireFromString("5.50"),
	})
	if err != nil {
		t.Fatalf("create variant: %v", err)
	}

	placedAt := time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(stamp%86400) * time.Second)
	order, err := s.CommitOrder(ctx, domain.OrderDraft{
		EmployeeID:         employeeID,
		PlacedAt:           placedAt,
		DrinkIDs:           []int64{variant.ID, variant.ID, variant.ID},
		AllowNegativeStock: true,
	}, nil)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales_history WHERE order_id = $1`, order.ID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM orders WHERE order_id = $1`, order.ID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM drinks WHERE id = $1`, variant.ID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM employees WHERE id = $1`, employeeID)
	})

	usage, err := s.IngredientUsageHistory(ctx)
	if err != nil {
		t.Fatalf("ingredient usage: %v", err)
	}
	byKind := map[string]int{}
	for _, row := range usage {
		if row.ItemID == ingredientID {
			byKind[row.Type] = row.Used
		}
	}
	if byKind[domain.UsageTea] != 3 || byKind[domain.UsageFlavor] != 6 {
		t.Fatalf("expected tea=3 flavor=6, got %v", byKind)
	}

	window, err := s.OrderSummaries(ctx, placedAt, placedAt.Add(time.Second))
	if err != nil {
		t.Fatalf("order summaries: %v", err)
	}
	if len(window) != 1 || window[0].OrderID != order.ID || window[0].ItemCount != 3 || window[0].EmployeeName != "it-employee" {
		t.Fatalf("unexpected window %+v", window)
	}
	if !window[0].TotalPrice.Equal(decimal.RequireFromString("16.50")) {
		t.Fatalf("expected 16.50 total, got %s", window[0].TotalPrice)
	}

	recent, err := s.RecentOrders(ctx, 1)
	if err != nil {
		t.Fatalf("recent orders: %v", err)
	}
	if len(recent) != 1 || recent[0].OrderID != order.ID {
		t.Fatalf("expected the far-future order first, got %+v", recent)
	}

	sales, err := s.EmployeeSales(ctx)
	if err != nil {
		t.Fatalf("employee sales: %v", err)
	}
	found := false
	for _, row := range sales {
		if row.EmployeeID == employeeID {
			found = true
			if row.OrdersProcessed != 1 || !row.TotalSales.Equal(decimal.RequireFromString("16.50")) {
				t.Fatalf("unexpected employee sales %+v", row)
			}
		}
	}
	if !found {
		t.Fatalf("employee %d missing from sales", employeeID)
	}
}
