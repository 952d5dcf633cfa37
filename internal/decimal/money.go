package decimal

import (
	"github.com/shopspring/decimal"
)

// Places is the number of fractional digits the remote service accepts.
const Places = 2

// Zero is decimal zero
var Zero = decimal.Zero

var hundred = decimal.NewFromInt(100)

// CalculateTax computes amount * (rate/100), rounded half away from zero to
// 2 places.
func CalculateTax(amount, ratePercent decimal.Decimal) decimal.Decimal {
	if ratePercent.IsZero() {
		return Zero
	}
	return amount.Mul(ratePercent).Div(hundred).Round(Places)
}

// CalculateSubtotal computes quantity * unitPrice - discount
func CalculateSubtotal(quantity, unitPrice, discount decimal.Decimal) decimal.Decimal {
	return quantity.Mul(unitPrice).Sub(discount).Round(Places)
}

// CalculateLineTotal computes: subtotal + tax
func CalculateLineTotal(subtotal, tax decimal.Decimal) decimal.Decimal {
	return subtotal.Add(tax).Round(Places)
}

// Sum sums a slice of decimals
func Sum(values []decimal.Decimal) decimal.Decimal {
	result := Zero
	for _, v := range values {
		result = result.Add(v)
	}
	return result
}

// IsPositive returns true if decimal is greater than zero
func IsPositive(d decimal.Decimal) bool {
	return d.GreaterThan(Zero)
}

// IsNonNegative returns true if decimal is >= zero
func IsNonNegative(d decimal.Decimal) bool {
	return d.GreaterThanOrEqual(Zero)
}

// Format renders an amount the way the wire expects it: fixed 2 decimals,
// dot separated, no grouping.
func Format(d decimal.Decimal) string {
	return d.StringFixed(Places)
}

// FormatQuantity renders a quantity with as many decimals as it carries, but
// never fewer than 2.
func FormatQuantity(d decimal.Decimal) string {
	if -d.Exponent() > Places {
		return d.String()
	}
	return d.StringFixed(Places)
}
