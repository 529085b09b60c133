// Package money centralizes the decimal conventions for monetary values:
// amounts travel as shopspring decimals and are rounded to two fractional
// digits only at the point of persistence.
package money

import "github.com/shopspring/decimal"

// Zero is the canonical zero amount.
var Zero = decimal.Zero

// Round quantizes an amount to two fractional digits.
func Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}

// Line returns unitPrice × quantity without rounding.
func Line(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

// Share allocates a cart-level amount to one vendor in proportion to that
// vendor's slice of the cart subtotal. A zero cart subtotal yields zero.
// The result is unrounded; callers round at persistence.
func Share(amount, vendorSubtotal, cartSubtotal decimal.Decimal) decimal.Decimal {
	if cartSubtotal.IsZero() {
		return decimal.Zero
	}
	return amount.Mul(vendorSubtotal).Div(cartSubtotal)
}

// FromString parses a persisted fixed-point string. Invalid input surfaces
// the decimal package's error unchanged.
func FromString(value string) (decimal.Decimal, error) {
	return decimal.NewFromString(value)
}

// MustFromString is FromString for literals in tests and seeds.
func MustFromString(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}
