package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const sheet = "Orders"

// WriteGeneralWorkbook writes g as an xlsx workbook with one row per order
// and, for peak reports, a closing top-10 total row.
func WriteGeneralWorkbook(w io.Writer, g General) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	cells := map[string]any{
		"A1": g.Title(),
		"A2": "orderID",
		"B2": "time",
		"C2": "price",
	}
	for cell, value := range cells {
		if err := f.SetCellValue(sheet, cell, value); err != nil {
			return err
		}
	}

	row := 3
	for _, order := range g.Orders {
		values := []any{order.ID, g.localTime(order.PlacedAt), order.Price.InexactFloat64()}
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", row), &values); err != nil {
			return err
		}
		row++
	}

	if g.Peak {
		values := []any{"Top 10 total", "", g.TopTotal.InexactFloat64()}
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", row+1), &values); err != nil {
			return err
		}
	}

	return f.Write(w)
}
