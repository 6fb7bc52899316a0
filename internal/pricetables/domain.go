// Package pricetables serves price table rows and writes back the pricing
// columns edited through the back-office tables.
package pricetables

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/pricedesk/internal/pricing"
	"github.com/odyssey-erp/pricedesk/internal/shared"
)

// TableName labels price table commits in logs, metrics and notifications.
const TableName = "price_table_items"

// Editable fields of a price table item.
const (
	FieldChangeType   = "change_type"
	FieldChangeAmount = "change_amount"
	FieldSellExcl     = "sell_excl"
	FieldSellIncl     = "sell_incl"
)

// ErrItemNotFound is returned for unknown item ids.
var ErrItemNotFound = fmt.Errorf("price table item %w", shared.ErrNotFound)

// PriceTable groups the items priced together, for example one sales channel.
type PriceTable struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// Item is one product variant in a price table.
type Item struct {
	ID           int64              `json:"id"`
	PriceTableID int64              `json:"price_table_id"`
	VariantID    int64              `json:"variant_id"`
	VariantSKU   string             `json:"variant_sku"`
	VariantName  string             `json:"variant_name"`
	CategoryID   int64              `json:"category_id"`
	Base         pricing.Money      `json:"base"`
	ChangeType   pricing.ChangeType `json:"change_type,omitempty"`
	ChangeAmount decimal.Decimal    `json:"change_amount"`
	SellExcl     decimal.Decimal    `json:"sell_excl"`
	SellIncl     decimal.Decimal    `json:"sell_incl"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// Descriptor returns the change currently stored on the item.
func (i Item) Descriptor() pricing.ChangeDescriptor {
	return pricing.ChangeDescriptor{Type: i.ChangeType, Amount: i.ChangeAmount}
}

// ItemView is an item with the sell price rendered for display.
type ItemView struct {
	Item
	DisplayPrice string `json:"display_price"`
}

// newItemView renders an item. Items without a change show their base price.
func newItemView(item Item) ItemView {
	view := ItemView{Item: item}
	if item.ChangeType == "" {
		view.DisplayPrice = item.Base.InclTax.StringFixed(2)
		return view
	}
	view.DisplayPrice = pricing.Display(item.ChangeType, item.ChangeAmount, item.Base)
	return view
}

// ItemUpdate lists the columns to write. Nil fields are left untouched.
type ItemUpdate struct {
	ChangeType   *pricing.ChangeType
	ChangeAmount *decimal.Decimal
	SellExcl     *decimal.Decimal
	SellIncl     *decimal.Decimal
}

// Empty reports whether the update writes nothing.
func (u ItemUpdate) Empty() bool {
	return u.ChangeType == nil && u.ChangeAmount == nil && u.SellExcl == nil && u.SellIncl == nil
}

// ItemPage is one page of rendered items.
type ItemPage struct {
	Items      []ItemView        `json:"items"`
	Pagination shared.Pagination `json:"pagination"`
}
