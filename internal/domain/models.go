package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Size string

const (
	SizeSmall  Size = "Small"
	SizeMedium Size = "Medium"
	SizeLarge  Size = "Large"
)

// Ingredient id bands.
const (
	TeaBandStart         = 10
	TeaBandEnd           = 20
	FlavorBandStart      = 21
	FlavorBandEnd        = 30
	ToppingBandStart     = 31
	ToppingBandEnd       = 39
	SeasonalTeaStart     = 50
	SeasonalTeaEnd       = 59
	SeasonalFlavorStart  = 60
	SeasonalFlavorEnd    = 69
	SeasonalToppingStart = 70
	SeasonalToppingEnd   = 79
	MaxFlavorSlots       = 15
	MaxToppingSlots      = 10
)

// AccessoryIngredientIDs are consumed once per drink regardless of recipe
// (cup, lid, straw, sleeve).
var AccessoryIngredientIDs = []int{40, 41, 42, 43}

type Ingredient struct {
	ID           int             `json:"id"`
	Name         string          `json:"name"`
	QuantityLeft int             `json:"quantityLeft"`
	QuantityUsed int             `json:"quantityUsed"`
	SalePrice    decimal.Decimal `json:"salePrice"`
	ReorderPrice decimal.Decimal `json:"reorderPrice"`
}

type Employee struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type DrinkVariant struct {
	ID         int64           `json:"id"`
	Signature  string          `json:"signature"`
	TeaID      int             `json:"teaId"`
	FlavorIDs  []int           `json:"flavorIds"`
	ToppingIDs []int           `json:"toppingIds"`
	Sugar      int             `json:"sugar"`
	Ice        int             `json:"ice"`
	Size       Size            `json:"size"`
	Price      decimal.Decimal `json:"price"`
	CreatedAt  time.Time       `json:"createdAt"`
}

type Order struct {
	ID         int64           `json:"orderId"`
	PlacedAt   time.Time       `json:"placedAt"`
	EmployeeID int             `json:"employeeId"`
	Price      decimal.Decimal `json:"price"`
}

type SalesRecord struct {
	OrderID int64 `json:"orderId"`
	DrinkID int64 `json:"drinkId"`
}

// LedgerDelta is the number of units an order consumes of one ingredient.
type LedgerDelta struct {
	IngredientID int
	Units        int
}

// OrderDraft is the fully expanded order handed to the repository for commit.
// DrinkIDs holds one entry per physical unit sold.
type OrderDraft struct {
	EmployeeID         int
	PlacedAt           time.Time
	DrinkIDs           []int64
	Ledger             []LedgerDelta
	AllowNegativeStock bool
}

type HappyHourConfig struct {
	StartTime       string          `json:"startTime"`
	EndTime         string          `json:"endTime"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
	IsActive        bool            `json:"isActive"`
}

// SalesSummary aggregates orders inside one time window.
type SalesSummary struct {
	TotalSales  decimal.Decimal
	TotalOrders int
	TotalDrinks int
}

type EmployeeOrderCount struct {
	EmployeeID int
	Orders     int
}

type IngredientUsage struct {
	ID           int
	Name         string
	QuantityUsed int
	Revenue      decimal.Decimal
}

// EndOfDayTotals is what the repository computes while closing a business day.
type EndOfDayTotals struct {
	TotalSales  decimal.Decimal
	TotalOrders int
	Employees   []EmployeeOrderCount
	Ingredients []IngredientUsage
}

type DrinkUsage struct {
	DrinkID int64 `json:"drinkId"`
	Used    int   `json:"used"`
}

// Ingredient kinds reported by the ingredient usage history.
const (
	UsageTea     = "Tea"
	UsageFlavor  = "Flavor"
	UsageTopping = "Topping"
)

// IngredientHistory counts how often an ingredient appeared in a sold drink
// in one role. Each flavor or topping slot counts once.
type IngredientHistory struct {
	ItemID int    `json:"itemId"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Used   int    `json:"used"`
}

type OrderSummary struct {
	OrderID      int64           `json:"orderId"`
	PlacedAt     time.Time       `json:"placedAt"`
	EmployeeID   int             `json:"employeeId"`
	EmployeeName string          `json:"employeeName"`
	TotalPrice   decimal.Decimal `json:"totalPrice"`
	ItemCount    int             `json:"itemCount"`
}

type EmployeeSales struct {
	EmployeeID      int             `json:"employeeId"`
	EmployeeName    string          `json:"employeeName"`
	OrdersProcessed int             `json:"ordersProcessed"`
	TotalSales      decimal.Decimal `json:"totalSales"`
}

type ResolveDrinkRequest struct {
	TeaID      int   `json:"teaId" validate:"gte=0"`
	FlavorIDs  []int `json:"flavorIds" validate:"max=15,dive,gte=0"`
	ToppingIDs []int `json:"toppingIds" validate:"max=10,dive,gte=0"`
	Sugar      int   `json:"sugar" validate:"oneof=0 50 100 150"`
	Ice        int   `json:"ice" validate:"oneof=-1 0 50 100 200"`
	Size       Size  `json:"size" validate:"required,oneof=Small Medium Large"`
}

type ResolveDrinkResponse struct {
	DrinkID int64   `json:"drinkId"`
	Price   float64 `json:"price"`
}

type OrderItem struct {
	DrinkID    int64   `json:"drinkId" validate:"gt=0"`
	TeaID      int     `json:"teaId" validate:"gte=0"`
	FlavorIDs  []int   `json:"flavorIds" validate:"max=15,dive,gte=0"`
	ToppingIDs []int   `json:"toppingIds" validate:"max=10,dive,gte=0"`
	Sugar      float64 `json:"sugar"`
	Ice        float64 `json:"ice"`
	Quantity   int     `json:"quantity,omitempty" validate:"gte=0,lte=100"`
}

type OrderRequest struct {
	EmployeeID *int        `json:"employeeId" validate:"required,gte=0"`
	Items      []OrderItem `json:"items" validate:"required,min=1,dive"`
}

type OrderResponse struct {
	OrderID int64   `json:"orderId"`
	Price   float64 `json:"price"`
}

type HappyHourStatus struct {
	StartTime         string  `json:"startTime"`
	EndTime           string  `json:"endTime"`
	DiscountPercent   float64 `json:"discountPercent"`
	IsActive          bool    `json:"isActive"`
	IsCurrentlyActive bool    `json:"isCurrentlyActive"`
}

type HappyHourUpdateRequest struct {
	StartTime       string  `json:"startTime" validate:"required,clock"`
	EndTime         string  `json:"endTime" validate:"required,clock"`
	DiscountPercent float64 `json:"discountPercent" validate:"gte=0,lte=100"`
	IsActive        bool    `json:"isActive"`
}

type GeneralReportRequest struct {
	StartDate string
	EndDate   string
	StartTime string
	EndTime   string
}

type HourlyRow struct {
	Hour        int     `json:"hour"`
	TotalSales  float64 `json:"totalSales"`
	TotalOrders int     `json:"totalOrders"`
	TotalDrinks int     `json:"totalDrinks"`
}

type XReport struct {
	Rows []HourlyRow `json:"rows"`
}

type SeasonalMenu struct {
	Teas     []Ingredient `json:"teas"`
	Flavors  []Ingredient `json:"flavors"`
	Toppings []Ingredient `json:"toppings"`
}

// OrderCommitted is published to live feed subscribers after a commit.
type OrderCommitted struct {
	OrderID    int64     `json:"orderId"`
	Price      float64   `json:"price"`
	EmployeeID int       `json:"employeeId"`
	Drinks     int       `json:"drinks"`
	PlacedAt   time.Time `json:"placedAt"`
}

type Actor struct {
	Subject string `json:"subject"`
	Role    string `json:"role"`
}

const (
	RoleCashier = "cashier"
	RoleManager = "manager"
)
