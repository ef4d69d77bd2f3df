package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MinorUnitPlaces is the rounding precision for totals (cents).
const MinorUnitPlaces = 2

// CalculateTotal sums quantity * unit price over items exactly and rounds the
// sum, not the lines, to the currency minor unit.
func CalculateTotal(items []InvoiceItem) (decimal.Decimal, error) {
	ve := &ValidationError{Op: "invoice.calculate_total"}
	if len(items) == 0 {
		ve.Add("items", "at least one item is required")
	}

	total := decimal.Zero
	for i, item := range items {
		if strings.TrimSpace(item.Description) == "" {
			ve.Add(fmt.Sprintf("items[%d].description", i), "description is required")
		}
		if !item.Quantity.IsPositive() {
			ve.Add(fmt.Sprintf("items[%d].quantity", i), "quantity must be greater than zero")
		}
		if item.UnitPrice.IsNegative() {
			ve.Add(fmt.Sprintf("items[%d].unit_price", i), "unit price must not be negative")
		}
		total = total.Add(item.LineTotal())
	}

	if err := ve.OrNil(); err != nil {
		return decimal.Zero, err
	}
	return total.Round(MinorUnitPlaces), nil
}
