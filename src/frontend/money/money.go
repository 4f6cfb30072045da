// Package money renders prices for the storefront templates.
package money

import (
	"github.com/shopspring/decimal"
)

// FromFloat converts a catalog price into a decimal amount.
func FromFloat(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

// LineTotal is price times quantity.
func LineTotal(price float64, quantity int) decimal.Decimal {
	return FromFloat(price).Mul(decimal.NewFromInt(int64(quantity)))
}

// Render formats an amount in dollars with two decimals, e.g. "$35.00".
func Render(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

// RenderFloat is Render for a raw catalog price.
func RenderFloat(v float64) string {
	return Render(FromFloat(v))
}
