// Package stock serves warehouse stock records edited inline in the
// back-office tables.
package stock

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/pricedesk/internal/shared"
)

// TableName labels stock commits in logs, metrics and notifications.
const TableName = "warehouse_stock"

// Editable fields of a stock record.
const (
	FieldQuantity    = "quantity"
	FieldMinQuantity = "min_quantity"
	FieldLocation    = "location"
)

// ErrRecordNotFound is returned for unknown record ids.
var ErrRecordNotFound = fmt.Errorf("stock record %w", shared.ErrNotFound)

// Record is the stock of one variant in one warehouse.
type Record struct {
	ID          int64           `json:"id"`
	WarehouseID int64           `json:"warehouse_id"`
	VariantID   int64           `json:"variant_id"`
	VariantSKU  string          `json:"variant_sku"`
	VariantName string          `json:"variant_name"`
	Quantity    decimal.Decimal `json:"quantity"`
	MinQuantity decimal.Decimal `json:"min_quantity"`
	Location    string          `json:"location"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// BelowMinimum reports whether the record needs replenishing.
func (r Record) BelowMinimum() bool {
	return r.Quantity.LessThan(r.MinQuantity)
}

// Update lists the columns to write. Nil fields are left untouched.
type Update struct {
	Quantity    *decimal.Decimal
	MinQuantity *decimal.Decimal
	Location    *string
}

// Empty reports whether the update writes nothing.
func (u Update) Empty() bool {
	return u.Quantity == nil && u.MinQuantity == nil && u.Location == nil
}

// RecordView is a record with its replenishment flag.
type RecordView struct {
	Record
	BelowMinimum bool `json:"below_minimum"`
}

// Page is one page of stock records.
type Page struct {
	Records    []RecordView      `json:"records"`
	Pagination shared.Pagination `json:"pagination"`
}
