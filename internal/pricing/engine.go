// Package pricing computes sell prices from a base price and a change descriptor.
package pricing

import (
	"github.com/shopspring/decimal"
)

// Compute applies the change to base and returns both legs of the sell price.
//
// The VAT ratio is taken from base, never from the transformed price, so the
// tax basis of the product survives any adjustment. Negative results clamp
// to zero.
func Compute(changeType ChangeType, amount decimal.Decimal, base Money) (Result, error) {
	if base.ExclTax.IsZero() {
		return Result{}, invalidBasePrice("excl_tax is zero")
	}
	ratio := base.VATRatio()

	var excl decimal.Decimal
	switch changeType {
	case DiscountPercentage:
		if amount.GreaterThanOrEqual(hundred) {
			return zeroResult(), nil
		}
		excl = base.ExclTax.Sub(base.ExclTax.Mul(amount).Div(hundred))
	case IncreasePercentage:
		excl = base.ExclTax.Add(base.ExclTax.Mul(amount).Div(hundred))
	case DiscountAbsolute:
		excl = base.ExclTax.Sub(amount)
		if !excl.IsPositive() {
			return zeroResult(), nil
		}
	case IncreaseAbsolute:
		excl = base.ExclTax.Add(amount)
	case FixedPrice:
		excl = amount
	default:
		return Result{}, unsupportedChangeType(string(changeType))
	}

	if excl.IsNegative() {
		return zeroResult(), nil
	}
	return Result{ExclTax: excl, InclTax: excl.Add(excl.Mul(ratio))}, nil
}

// ComputePrice returns the tax inclusive sell price.
func ComputePrice(changeType ChangeType, amount decimal.Decimal, base Money) (decimal.Decimal, error) {
	res, err := Compute(changeType, amount, base)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return res.InclTax, nil
}

// Display formats the tax inclusive price for a table cell. Engine errors
// render as Placeholder so a single bad row never breaks the table.
func Display(changeType ChangeType, amount decimal.Decimal, base Money) string {
	res, err := Compute(changeType, amount, base)
	if err != nil {
		return Placeholder
	}
	return res.InclTax.StringFixed(2)
}

func zeroResult() Result {
	return Result{ExclTax: decimal.Zero, InclTax: decimal.Zero}
}
