package pricing

import (
	"github.com/shopspring/decimal"
)

// Placeholder is rendered in place of a price the engine refused to compute.
const Placeholder = "-"

var hundred = decimal.NewFromInt(100)

// Money carries an amount as its tax exclusive and tax inclusive pair.
type Money struct {
	ExclTax decimal.Decimal `json:"excl_tax"`
	InclTax decimal.Decimal `json:"incl_tax"`
}

// NewMoney builds Money from float inputs. Intended for fixtures and CLI flags.
func NewMoney(excl, incl float64) Money {
	return Money{ExclTax: decimal.NewFromFloat(excl), InclTax: decimal.NewFromFloat(incl)}
}

// VATRatio returns incl/excl - 1. Callers must check ExclTax first.
func (m Money) VATRatio() decimal.Decimal {
	return m.InclTax.Div(m.ExclTax).Sub(decimal.NewFromInt(1))
}

// VATPercent returns the VAT ratio expressed as a percentage.
func (m Money) VATPercent() decimal.Decimal {
	return m.VATRatio().Mul(hundred)
}

// ChangeType enumerates price adjustments.
type ChangeType string

const (
	// DiscountPercentage lowers the price by a percentage of the base.
	DiscountPercentage ChangeType = "discount_percentage"
	// IncreasePercentage raises the price by a percentage of the base.
	IncreasePercentage ChangeType = "increase_percentage"
	// DiscountAbsolute subtracts a fixed amount from the base.
	DiscountAbsolute ChangeType = "discount_absolute"
	// IncreaseAbsolute adds a fixed amount to the base.
	IncreaseAbsolute ChangeType = "increase_absolute"
	// FixedPrice replaces the tax exclusive base with the amount.
	FixedPrice ChangeType = "fixed_price"
)

// ChangeTypes lists every supported change type in display order.
var ChangeTypes = []ChangeType{
	DiscountPercentage,
	IncreasePercentage,
	DiscountAbsolute,
	IncreaseAbsolute,
	FixedPrice,
}

// ParseChangeType resolves the wire value of a change type.
func ParseChangeType(raw string) (ChangeType, error) {
	ct := ChangeType(raw)
	if !ct.Valid() {
		return "", unsupportedChangeType(raw)
	}
	return ct, nil
}

// Valid reports whether the change type is known to the engine.
func (c ChangeType) Valid() bool {
	switch c {
	case DiscountPercentage, IncreasePercentage, DiscountAbsolute, IncreaseAbsolute, FixedPrice:
		return true
	}
	return false
}

// IsPercentage reports whether the amount is read as a percentage.
func (c ChangeType) IsPercentage() bool {
	return c == DiscountPercentage || c == IncreasePercentage
}

// ChangeDescriptor pairs a change type with its amount.
type ChangeDescriptor struct {
	Type   ChangeType      `json:"change_type"`
	Amount decimal.Decimal `json:"change_amount"`
}

// Apply runs the descriptor against the base price.
func (d ChangeDescriptor) Apply(base Money) (Result, error) {
	return Compute(d.Type, d.Amount, base)
}

// Result is the computed sell price.
type Result struct {
	ExclTax decimal.Decimal `json:"excl_tax"`
	InclTax decimal.Decimal `json:"incl_tax"`
}

// Rounded returns the result rounded half away from zero for display.
func (r Result) Rounded(places int32) Result {
	return Result{ExclTax: r.ExclTax.Round(places), InclTax: r.InclTax.Round(places)}
}
