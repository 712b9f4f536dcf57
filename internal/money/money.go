// Package money holds the decimal helpers shared by pricing, sales and
// checkout. All amounts are shopspring decimals rounded to pence with
// banker's rounding.
package money

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Quantize rounds d to two decimal places, half to even.
func Quantize(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(2)
}

// Percent returns pct percent of amount, quantized.
func Percent(amount decimal.Decimal, pct int) decimal.Decimal {
	return Quantize(amount.Mul(decimal.NewFromInt(int64(pct))).Div(hundred))
}

// String formats d with exactly two decimals, e.g. "3.99" or "20.00".
func String(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// Format renders d as a sterling price, e.g. "£12.50".
func Format(d decimal.Decimal) string {
	return "£" + d.StringFixed(2)
}

// MinorUnits converts d to pence for payment gateways.
func MinorUnits(d decimal.Decimal) int64 {
	return Quantize(d).Mul(hundred).IntPart()
}

// FromMinorUnits converts a gateway amount in pence back to pounds.
func FromMinorUnits(v int64) decimal.Decimal {
	return decimal.New(v, -2)
}
