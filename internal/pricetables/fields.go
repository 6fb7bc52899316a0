package pricetables

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/pricedesk/internal/editbuffer"
	"github.com/odyssey-erp/pricedesk/internal/pricing"
	"github.com/odyssey-erp/pricedesk/internal/shared"
)

// decimalValue reads a draft value captured from a JSON form or a CLI.
func decimalValue(field string, v any) (decimal.Decimal, error) {
	switch val := v.(type) {
	case decimal.Decimal:
		return val, nil
	case float64:
		return decimal.NewFromFloat(val), nil
	case float32:
		return decimal.NewFromFloat32(val), nil
	case int:
		return decimal.NewFromInt(int64(val)), nil
	case int64:
		return decimal.NewFromInt(val), nil
	case json.Number:
		d, err := decimal.NewFromString(val.String())
		if err != nil {
			return decimal.Decimal{}, &pricing.ValidationError{Field: field, Reason: "must be a number"}
		}
		return d, nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(val))
		if err != nil {
			return decimal.Decimal{}, &pricing.ValidationError{Field: field, Reason: "must be a number"}
		}
		return d, nil
	default:
		return decimal.Decimal{}, &pricing.ValidationError{Field: field, Reason: fmt.Sprintf("unsupported value %T", v)}
	}
}

func changeTypeValue(v any) (pricing.ChangeType, error) {
	switch val := v.(type) {
	case pricing.ChangeType:
		return val, nil
	case string:
		ct := pricing.ChangeType(strings.TrimSpace(val))
		if !ct.Valid() {
			return "", &pricing.ValidationError{Field: FieldChangeType, Reason: "must be one of " + changeTypeList()}
		}
		return ct, nil
	default:
		return "", &pricing.ValidationError{Field: FieldChangeType, Reason: fmt.Sprintf("unsupported value %T", v)}
	}
}

func changeTypeList() string {
	names := make([]string, len(pricing.ChangeTypes))
	for i, ct := range pricing.ChangeTypes {
		names[i] = string(ct)
	}
	return strings.Join(names, ", ")
}

// parseUpdate converts patch fields into column writes.
func parseUpdate(fields editbuffer.Draft) (ItemUpdate, error) {
	var upd ItemUpdate
	for field, raw := range fields {
		switch field {
		case FieldChangeType:
			ct, err := changeTypeValue(raw)
			if err != nil {
				return ItemUpdate{}, err
			}
			upd.ChangeType = &ct
		case FieldChangeAmount, FieldSellExcl, FieldSellIncl:
			d, err := decimalValue(field, raw)
			if err != nil {
				return ItemUpdate{}, err
			}
			if d.IsNegative() {
				return ItemUpdate{}, &pricing.ValidationError{Field: field, Reason: "must not be negative"}
			}
			switch field {
			case FieldChangeAmount:
				upd.ChangeAmount = &d
			case FieldSellExcl:
				upd.SellExcl = &d
			default:
				upd.SellIncl = &d
			}
		default:
			return ItemUpdate{}, &pricing.ValidationError{Field: field, Reason: "is not editable"}
		}
	}
	return upd, nil
}

func itemID(row editbuffer.RowID) (int64, error) {
	return shared.ParseID(string(row))
}

// RowID renders an item id as a table row id.
func RowID(id int64) editbuffer.RowID {
	return editbuffer.RowID(fmt.Sprintf("%d", id))
}
