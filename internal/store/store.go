package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"gooeytea/backend/internal/domain"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrUnknownDrink       = errors.New("unknown drink id")
	ErrUnknownIngredient  = errors.New("unknown ingredient id")
)

// PriceAdjuster turns a raw order subtotal into the amount actually charged.
// It runs inside the commit so the charged price and the persisted rows agree.
type PriceAdjuster func(subtotal decimal.Decimal) decimal.Decimal

type VariantStore interface {
	FindVariantBySignature(ctx context.Context, signature string) (*domain.DrinkVariant, error)
	// CreateVariant inserts the variant unless one with the same signature
	// already exists, in which case the existing row is returned.
	CreateVariant(ctx context.Context, variant domain.DrinkVariant) (*domain.DrinkVariant, error)
}

type Repository interface {
	VariantStore

	CommitOrder(ctx context.Context, draft domain.OrderDraft, adjust PriceAdjuster) (*domain.Order, error)

	GetHappyHour(ctx context.Context) (*domain.HappyHourConfig, error)
	UpdateHappyHour(ctx context.Context, cfg domain.HappyHourConfig) error

	ListOrders(ctx context.Context, from time.Time, to time.Time) ([]domain.Order, error)
	SummarizeSales(ctx context.Context, from time.Time, to time.Time) (domain.SalesSummary, error)
	TopOrdersTotal(ctx context.Context, from time.Time, to time.Time, limit int) (decimal.Decimal, error)

	// CloseBusinessDay claims label and, only if the claim succeeded, computes
	// the day's totals and zeroes quantity used, all in one transaction.
	// claimed is false when label was already closed.
	CloseBusinessDay(ctx context.Context, label string, from time.Time, to time.Time) (totals domain.EndOfDayTotals, claimed bool, err error)

	ListIngredients(ctx context.Context) ([]domain.Ingredient, error)
	ListEmployees(ctx context.Context) ([]domain.Employee, error)
	DrinkUsage(ctx context.Context) ([]domain.DrinkUsage, error)

	IngredientUsageHistory(ctx context.Context) ([]domain.IngredientHistory, error)
	// RecentOrders and OrderSummaries return newest orders first.
	RecentOrders(ctx context.Context, limit int) ([]domain.OrderSummary, error)
	OrderSummaries(ctx context.Context, from time.Time, to time.Time) ([]domain.OrderSummary, error)
	EmployeeSales(ctx context.Context) ([]domain.EmployeeSales, error)
}
