// Package pricing computes effective prices and cart/order totals.
//
// All arithmetic is done in decimal and only rounded when a value is
// rendered, so totals never accumulate intermediate rounding error.
package pricing

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Line is one priceable cart or order line
type Line struct {
	Price    decimal.Decimal // undiscounted unit price
	Discount decimal.Decimal // percent, 0-100
	Quantity int
	Valid    bool
}

// NewLine builds a valid line from catalog values
func NewLine(price, discountPct float64, quantity int) Line {
	return Line{
		Price:    decimal.NewFromFloat(price),
		Discount: decimal.NewFromFloat(discountPct),
		Quantity: quantity,
		Valid:    true,
	}
}

// InvalidLine marks a line whose product could not be resolved. It is
// excluded from every total.
func InvalidLine(quantity int) Line {
	return Line{Quantity: quantity}
}

// EffectiveUnitPrice returns price * (1 - discount/100)
func EffectiveUnitPrice(price, discountPct decimal.Decimal) decimal.Decimal {
	return price.Mul(hundred.Sub(discountPct)).Div(hundred)
}

// UnitPrice is the discounted unit price of the line
func (l Line) UnitPrice() decimal.Decimal {
	if !l.Valid {
		return decimal.Zero
	}
	return EffectiveUnitPrice(l.Price, l.Discount)
}

// Total is the discounted line total
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice().Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Summary aggregates a set of lines
type Summary struct {
	Subtotal      decimal.Decimal
	DiscountTotal decimal.Decimal
	GrandTotal    decimal.Decimal
	Units         int
	InvalidLines  int
}

// Summarize computes subtotal (undiscounted), discount total and grand total
// over the valid lines.
func Summarize(lines []Line) Summary {
	s := Summary{
		Subtotal:      decimal.Zero,
		DiscountTotal: decimal.Zero,
	}
	for _, l := range lines {
		if !l.Valid {
			s.InvalidLines++
			continue
		}
		q := decimal.NewFromInt(int64(l.Quantity))
		s.Subtotal = s.Subtotal.Add(l.Price.Mul(q))
		s.DiscountTotal = s.DiscountTotal.Add(l.Price.Sub(l.UnitPrice()).Mul(q))
		s.Units += l.Quantity
	}
	s.GrandTotal = s.Subtotal.Sub(s.DiscountTotal)
	return s
}

// Snapshot totals already-priced order lines (unit price * qty)
func Snapshot(unitPrices []float64, quantities []int) decimal.Decimal {
	total := decimal.Zero
	for i, p := range unitPrices {
		total = total.Add(decimal.NewFromFloat(p).Mul(decimal.NewFromInt(int64(quantities[i]))))
	}
	return total
}

// Money rounds to cents for display
func Money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
