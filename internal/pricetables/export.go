package pricetables

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/odyssey-erp/pricedesk/internal/shared"
)

const exportSheet = "Prices"

var exportHeadings = []string{
	"ItemID", "SKU", "Variant", "CategoryID", "BaseExclTax", "BaseInclTax",
	"ChangeType", "ChangeAmount", "SellExclTax", "SellInclTax", "DisplayPrice",
}

// ExportXLSX writes every item of a table as a spreadsheet.
func (s *Service) ExportXLSX(ctx context.Context, tableID int64, w io.Writer) error {
	if tableID <= 0 {
		return shared.ErrInvalidID
	}
	items, _, err := s.repo.ListItems(ctx, tableID, shared.ListFilters{})
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("close export workbook", "error", err)
		}
	}()
	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return fmt.Errorf("pricetables: export: %w", err)
	}

	for i, h := range exportHeadings {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(exportSheet, cell, h); err != nil {
			return err
		}
	}
	for i, item := range items {
		view := newItemView(item)
		excl, _ := item.Base.ExclTax.Float64()
		incl, _ := item.Base.InclTax.Float64()
		amount, _ := item.ChangeAmount.Float64()
		sellExcl, _ := item.SellExcl.Float64()
		sellIncl, _ := item.SellIncl.Float64()
		values := []any{
			item.ID, item.VariantSKU, item.VariantName, item.CategoryID, excl, incl,
			string(item.ChangeType), amount, sellExcl, sellIncl, view.DisplayPrice,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(exportSheet, cell, &values); err != nil {
			return fmt.Errorf("pricetables: export row %d: %w", item.ID, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("pricetables: write export: %w", err)
	}
	return nil
}
