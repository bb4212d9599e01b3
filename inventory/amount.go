/*
amount.go - Money and quantity arithmetic

PURPOSE:
  All 2-decimal rounding flows through shopspring/decimal so repeated
  float math cannot drift the displayed currency values.
*/
package inventory

import "github.com/shopspring/decimal"

// Round2 rounds half away from zero to 2 decimals.
func Round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// round2d rounds a decimal to 2 places.
func round2d(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// dec converts a float quantity into exact decimal form.
func dec(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}
