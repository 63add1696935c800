package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"gooeytea/backend/internal/domain"
	"gooeytea/backend/internal/store"
)

//go:embed schema.sql
var schemaSQL string

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates any missing tables. Existing tables are left as is.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schemaSQL)
	return err
}

func (s *Store) FindVariantBySignature(ctx context.Context, signature string) (*domain.DrinkVariant, error) {
	var (
		v        domain.DrinkVariant
		size     string
		flavors  []int32
		toppings []int32
		types    = pgtype.NewMap()
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, signature, tea_id, flavor_ids, topping_ids, sugar, ice, size, price, created_at
		FROM drinks
		WHERE signature = $1
	`, signature).Scan(
		&v.ID, &v.Signature, &v.TeaID,
		types.SQLScanner(&flavors), types.SQLScanner(&toppings),
		&v.Sugar, &v.Ice, &size, &v.Price, &v.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	v.Size = domain.Size(size)
	v.FlavorIDs = widen(flavors)
	v.ToppingIDs = widen(toppings)
	return &v, nil
}

func (s *Store) CreateVariant(ctx context.Context, variant domain.DrinkVariant) (*domain.DrinkVariant, error) {
	if variant.Signature == "" || variant.Price.IsNegative() {
		return nil, store.ErrInvalidTransaction
	}

	created := variant
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO drinks (signature, tea_id, flavor_ids, topping_ids, sugar, ice, size, price, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (signature) DO NOTHING
		RETURNING id, created_at
	`,
		variant.Signature, variant.TeaID, narrow(variant.FlavorIDs), narrow(variant.ToppingIDs),
		variant.Sugar, variant.Ice, string(variant.Size), variant.Price,
	).Scan(&created.ID, &created.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		// Another request created the same variant first.
		return s.FindVariantBySignature(ctx, variant.Signature)
	}
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *Store) CommitOrder(ctx context.Context, draft domain.OrderDraft, adjust store.PriceAdjuster) (*domain.Order, error) {
	if len(draft.DrinkIDs) == 0 || draft.EmployeeID < 0 {
		return nil, store.ErrInvalidTransaction
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	priceRows, err := tx.QueryContext(ctx, `
		SELECT id, price
		FROM drinks
		WHERE id = ANY($1)
	`, uniqueIDs(draft.DrinkIDs))
	if err != nil {
		return nil, err
	}
	prices := make(map[int64]decimal.Decimal, len(draft.DrinkIDs))
	for priceRows.Next() {
		var id int64
		var price decimal.Decimal
		if err := priceRows.Scan(&id, &price); err != nil {
			_ = priceRows.Close()
			return nil, err
		}
		prices[id] = price
	}
	if err := priceRows.Err(); err != nil {
		_ = priceRows.Close()
		return nil, err
	}
	_ = priceRows.Close()

	subtotal := decimal.Zero
	for _, id := range draft.DrinkIDs {
		price, ok := prices[id]
		if !ok {
			return nil, fmt.Errorf("drink %d: %w", id, store.ErrUnknownDrink)
		}
		subtotal = subtotal.Add(price)
	}

	// Ledger is ordered by ingredient id, so concurrent commits lock rows in
	// the same order.
	for _, delta := range draft.Ledger {
		var left int
		err := tx.QueryRowContext(ctx, `
			UPDATE inventory
			SET quantity_left = quantity_left - $2,
			    quantity_used = quantity_used + $2
			WHERE id = $1
			RETURNING quantity_left
		`, delta.IngredientID, delta.Units).Scan(&left)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("ingredient %d: %w", delta.IngredientID, store.ErrUnknownIngredient)
		}
		if err != nil {
			return nil, err
		}
		if left < 0 && !draft.AllowNegativeStock {
			return nil, fmt.Errorf("ingredient %d: %w", delta.IngredientID, store.ErrInsufficientStock)
		}
	}

	price := subtotal
	if adjust != nil {
		price = adjust(subtotal)
	}
	placedAt := draft.PlacedAt
	if placedAt.IsZero() {
		placedAt = time.Now().UTC()
	}

	order := domain.Order{PlacedAt: placedAt, EmployeeID: draft.EmployeeID, Price: price}
	if err := tx.QueryRowContext(ctx, `
		INSERT INTO orders (placed_at, employee_id, price)
		VALUES ($1, $2, $3)
		RETURNING order_id
	`, placedAt, draft.EmployeeID, price).Scan(&order.ID); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sales_history (order_id, drink_id)
		SELECT $1, unnest($2::bigint[])
	`, order.ID, draft.DrinkIDs); err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.ErrUnknownDrink
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Store) GetHappyHour(ctx context.Context) (*domain.HappyHourConfig, error) {
	var cfg domain.HappyHourConfig
	err := s.db.QueryRowContext(ctx, `
		SELECT to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI'), discount_percent, is_active
		FROM happy_hour
		WHERE id = 1
	`).Scan(&cfg.StartTime, &cfg.EndTime, &cfg.DiscountPercent, &cfg.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *Store) UpdateHappyHour(ctx context.Context, cfg domain.HappyHourConfig) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO happy_hour (id, start_time, end_time, discount_percent, is_active)
		VALUES (1, $1::time, $2::time, $3, $4)
		ON CONFLICT (id)
		DO UPDATE SET
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			discount_percent = EXCLUDED.discount_percent,
			is_active = EXCLUDED.is_active
	`, cfg.StartTime, cfg.EndTime, cfg.DiscountPercent, cfg.IsActive)
	return err
}

func (s *Store) ListOrders(ctx context.Context, from time.Time, to time.Time) ([]domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT order_id, placed_at, employee_id, price
		FROM orders
		WHERE placed_at >= $1 AND placed_at < $2
		ORDER BY placed_at, order_id
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]domain.Order, 0, 64)
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(&o.ID, &o.PlacedAt, &o.EmployeeID, &o.Price); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (s *Store) SummarizeSales(ctx context.Context, from time.Time, to time.Time) (domain.SalesSummary, error) {
	var summary domain.SalesSummary
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(o.price), 0),
			COUNT(*),
			COALESCE(SUM(d.drinks), 0)
		FROM orders o
		LEFT JOIN LATERAL (
			SELECT COUNT(*) AS drinks FROM sales_history sh WHERE sh.order_id = o.order_id
		) d ON true
		WHERE o.placed_at >= $1 AND o.placed_at < $2
	`, from, to).Scan(&summary.TotalSales, &summary.TotalOrders, &summary.TotalDrinks)
	return summary, err
}

func (s *Store) TopOrdersTotal(ctx context.Context, from time.Time, to time.Time, limit int) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(t.price), 0)
		FROM (
			SELECT price
			FROM orders
			WHERE placed_at >= $1 AND placed_at < $2
			ORDER BY price DESC
			LIMIT $3
		) t
	`, from, to, limit).Scan(&total)
	return total, err
}

func (s *Store) CloseBusinessDay(ctx context.Context, label string, from time.Time, to time.Time) (domain.EndOfDayTotals, bool, error) {
	var totals domain.EndOfDayTotals
	if label == "" {
		return totals, false, store.ErrInvalidTransaction
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return totals, false, err
	}
	defer func() { _ = tx.Rollback() }()

	// A concurrent claim for the same day blocks here until the other
	// transaction finishes, then sees the conflict.
	var claimed string
	err = tx.QueryRowContext(ctx, `
		INSERT INTO z_report_log (run_date, run_at)
		VALUES ($1::date, now())
		ON CONFLICT (run_date) DO NOTHING
		RETURNING run_date::text
	`, label).Scan(&claimed)
	if errors.Is(err, sql.ErrNoRows) {
		return totals, false, nil
	}
	if err != nil {
		return totals, false, err
	}

	// Locking the ledger keeps commits from adding usage between the read
	// and the reset below.
	ingredientRows, err := tx.QueryContext(ctx, `
		SELECT id, name, quantity_used, sale_price * quantity_used
		FROM inventory
		ORDER BY id
		FOR UPDATE
	`)
	if err != nil {
		return totals, false, err
	}
	for ingredientRows.Next() {
		var u domain.IngredientUsage
		if err := ingredientRows.Scan(&u.ID, &u.Name, &u.QuantityUsed, &u.Revenue); err != nil {
			_ = ingredientRows.Close()
			return totals, false, err
		}
		totals.Ingredients = append(totals.Ingredients, u)
	}
	if err := ingredientRows.Err(); err != nil {
		_ = ingredientRows.Close()
		return totals, false, err
	}
	_ = ingredientRows.Close()

	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(price), 0), COUNT(*)
		FROM orders
		WHERE placed_at >= $1 AND placed_at < $2
	`, from, to).Scan(&totals.TotalSales, &totals.TotalOrders); err != nil {
		return totals, false, err
	}

	employeeRows, err := tx.QueryContext(ctx, `
		SELECT e.id, COUNT(o.order_id)
		FROM employees e
		LEFT JOIN orders o
			ON o.employee_id = e.id AND o.placed_at >= $1 AND o.placed_at < $2
		GROUP BY e.id
		ORDER BY e.id
	`, from, to)
	if err != nil {
		return totals, false, err
	}
	for employeeRows.Next() {
		var c domain.EmployeeOrderCount
		if err := employeeRows.Scan(&c.EmployeeID, &c.Orders); err != nil {
			_ = employeeRows.Close()
			return totals, false, err
		}
		totals.Employees = append(totals.Employees, c)
	}
	if err := employeeRows.Err(); err != nil {
		_ = employeeRows.Close()
		return totals, false, err
	}
	_ = employeeRows.Close()

	if _, err := tx.ExecContext(ctx, `UPDATE inventory SET quantity_used = 0`); err != nil {
		return totals, false, err
	}

	if err := tx.Commit(); err != nil {
		return totals, false, err
	}
	return totals, true, nil
}

func (s *Store) ListIngredients(ctx context.Context) ([]domain.Ingredient, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, quantity_left, quantity_used, sale_price, reorder_price
		FROM inventory
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Ingredient, 0, 64)
	for rows.Next() {
		var ing domain.Ingredient
		if err := rows.Scan(&ing.ID, &ing.Name, &ing.QuantityLeft, &ing.QuantityUsed, &ing.SalePrice, &ing.ReorderPrice); err != nil {
			return nil, err
		}
		out = append(out, ing)
	}
	return out, rows.Err()
}

func (s *Store) ListEmployees(ctx context.Context) ([]domain.Employee, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM employees ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Employee, 0, 16)
	for rows.Next() {
		var e domain.Employee
		if err := rows.Scan(&e.ID, &e.Name); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) DrinkUsage(ctx context.Context) ([]domain.DrinkUsage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, COUNT(sh.id) AS used
		FROM drinks d
		LEFT JOIN sales_history sh ON sh.drink_id = d.id
		GROUP BY d.id
		ORDER BY used DESC, d.id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.DrinkUsage, 0, 64)
	for rows.Next() {
		var u domain.DrinkUsage
		if err := rows.Scan(&u.DrinkID, &u.Used); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) IngredientUsageHistory(ctx context.Context) ([]domain.IngredientHistory, error) {
	rows, err := s.db.QueryContext(ctx, `
		WITH sold AS (
			SELECT d.tea_id, d.flavor_ids, d.topping_ids
			FROM sales_history sh
			JOIN drinks d ON d.id = sh.drink_id
		), parts AS (
			SELECT tea_id AS item_id, 'Tea' AS kind FROM sold
			UNION ALL
			SELECT f.item_id, 'Flavor' FROM sold CROSS JOIN LATERAL unnest(sold.flavor_ids) AS f(item_id)
			UNION ALL
			SELECT p.item_id, 'Topping' FROM sold CROSS JOIN LATERAL unnest(sold.topping_ids) AS p(item_id)
		)
		SELECT i.id, i.name, parts.kind, COUNT(*) AS used
		FROM parts
		JOIN inventory i ON i.id = parts.item_id
		GROUP BY i.id, i.name, parts.kind
		ORDER BY used DESC, i.id, parts.kind
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.IngredientHistory, 0, 32)
	for rows.Next() {
		var h domain.IngredientHistory
		if err := rows.Scan(&h.ItemID, &h.Name, &h.Type, &h.Used); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *Store) RecentOrders(ctx context.Context, limit int) ([]domain.OrderSummary, error) {
	if limit <= 0 {
		return s.orderSummaries(ctx, "", "")
	}
	return s.orderSummaries(ctx, "", "LIMIT $1", limit)
}

func (s *Store) OrderSummaries(ctx context.Context, from time.Time, to time.Time) ([]domain.OrderSummary, error) {
	return s.orderSummaries(ctx, "WHERE o.placed_at >= $1 AND o.placed_at < $2", "", from, to)
}

func (s *Store) orderSummaries(ctx context.Context, where string, limit string, args ...any) ([]domain.OrderSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT o.order_id, o.placed_at, o.employee_id, COALESCE(e.name, ''), o.price, COUNT(sh.id)
		FROM orders o
		LEFT JOIN employees e ON e.id = o.employee_id
		LEFT JOIN sales_history sh ON sh.order_id = o.order_id
		`+where+`
		GROUP BY o.order_id, e.name
		ORDER BY o.placed_at DESC, o.order_id DESC
		`+limit, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.OrderSummary, 0, 64)
	for rows.Next() {
		var o domain.OrderSummary
		if err := rows.Scan(&o.OrderID, &o.PlacedAt, &o.EmployeeID, &o.EmployeeName, &o.TotalPrice, &o.ItemCount); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) EmployeeSales(ctx context.Context) ([]domain.EmployeeSales, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.name, COUNT(o.order_id), COALESCE(SUM(o.price), 0) AS total_sales
		FROM employees e
		LEFT JOIN orders o ON o.employee_id = e.id
		GROUP BY e.id, e.name
		ORDER BY total_sales DESC, e.id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.EmployeeSales, 0, 16)
	for rows.Next() {
		var e domain.EmployeeSales
		if err := rows.Scan(&e.EmployeeID, &e.EmployeeName, &e.OrdersProcessed, &e.TotalSales); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func narrow(ids []int) []int32 {
	out := make([]int32, len(ids))
	for i, id := range ids {
		out[i] = int32(id)
	}
	return out
}

func widen(ids []int32) []int {
	out := make([]int, len(ids))
	for i, id := range ids {
		out[i] = int(id)
	}
	return out
}
