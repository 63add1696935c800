// Package report renders sales reports for managers.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"gooeytea/backend/internal/domain"
)

const rule = "--------------------------------------------------\n"

// General is either a single-day peak listing or an arbitrary range listing.
type General struct {
	Peak      bool
	StartDate string
	EndDate   string
	StartTime string
	EndTime   string
	Orders    []domain.Order
	TopTotal  decimal.Decimal
	Location  *time.Location
}

func (g General) Title() string {
	if g.Peak {
		return fmt.Sprintf("Orders for %s", g.StartDate)
	}
	return fmt.Sprintf("Orders from %s to %s from %s to %s", g.StartDate, g.EndDate, g.StartTime, g.EndTime)
}

func (g General) Text() string {
	var sb strings.Builder
	sb.WriteString(g.Title() + "\n")
	sb.WriteString(rule)
	fmt.Fprintf(&sb, "%s %s %s\n", Pad("orderID", 10), Pad("time", 26), Pad("price", 10))

	if len(g.Orders) == 0 {
		if g.Peak {
			sb.WriteString("(no orders)\n")
		} else {
			sb.WriteString("(no matching rows)\n")
		}
	}
	for _, order := range g.Orders {
		fmt.Fprintf(&sb, "%s %s %s\n",
			Pad(order.ID, 10),
			Pad(g.localTime(order.PlacedAt), 26),
			Pad(order.Price.StringFixed(2), 10),
		)
	}

	if g.Peak {
		sb.WriteString("\nPeak Sales (Top 10 orders) summary\n")
		sb.WriteString(rule)
		fmt.Fprintf(&sb, "Top 10 total: $%s\n", g.TopTotal.StringFixed(2))
	}
	return sb.String()
}

func (g General) localTime(t time.Time) string {
	if g.Location != nil {
		t = t.In(g.Location)
	}
	return t.Format(time.DateTime)
}

// EndOfDay is the Z report. A placeholder is produced when the business day
// was already closed; all of its figures are zero.
type EndOfDay struct {
	Label       string
	Placeholder bool
	TotalSales  decimal.Decimal
	TotalTax    decimal.Decimal
	TotalOrders int
	Average     decimal.Decimal
	Employees   []domain.EmployeeOrderCount
	Ingredients []domain.IngredientUsage
}

func (z EndOfDay) Text() string {
	var sb strings.Builder
	if z.Placeholder {
		sb.WriteString("Z Report has already been run today. Values below are reset to 0 until the next business day.\n\n")
	}
	sb.WriteString(z.Label + "\n\n")
	fmt.Fprintf(&sb, "Total Sales: $%s\n", z.TotalSales.StringFixed(2))
	fmt.Fprintf(&sb, "Total Tax: $%s\n", z.TotalTax.StringFixed(2))
	fmt.Fprintf(&sb, "Total Orders: %d\n", z.TotalOrders)
	fmt.Fprintf(&sb, "Average Price Per Order (Before Tax): $%s\n\n", z.Average.StringFixed(2))

	sb.WriteString("Orders Per Employee:\n")
	sb.WriteString("ID\tOrders\n")
	for _, e := range z.Employees {
		fmt.Fprintf(&sb, "%d\t%d\n", e.EmployeeID, e.Orders)
	}

	sb.WriteString("\nInventory Information:\n")
	fmt.Fprintf(&sb, "%s\t%s\t%s\t%s\n", Pad("ID", 10), Pad("Item", 30), Pad("Quantity Used", 10), Pad("Sales ($)", 10))
	for _, item := range z.Ingredients {
		fmt.Fprintf(&sb, "%s\t%s\t%s\t%s\n",
			Pad(item.ID, 10),
			Pad(item.Name, 30),
			Pad(item.QuantityUsed, 10),
			Pad(item.Revenue.StringFixed(2), 10),
		)
	}
	return sb.String()
}

// Pad right-pads v to width, truncating anything longer.
func Pad(v any, width int) string {
	s := fmt.Sprint(v)
	if len(s) >= width {
		return s[:width]
	}
	return s + strings.Repeat(" ", width-len(s))
}
