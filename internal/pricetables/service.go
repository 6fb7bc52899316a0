package pricetables

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/pricedesk/internal/editbuffer"
	"github.com/odyssey-erp/pricedesk/internal/platform/cache"
	"github.com/odyssey-erp/pricedesk/internal/pricing"
	"github.com/odyssey-erp/pricedesk/internal/shared"
)

// Service exposes price table reads and the row level write path used by
// bulk commits.
type Service struct {
	repo   Repository
	cache  *cache.Versioned
	logger *slog.Logger
	group  singleflight.Group
}

// NewService constructs the service. A nil cache reads straight through.
func NewService(repo Repository, cache *cache.Versioned, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger}
}

// ListTables returns every price table.
func (s *Service) ListTables(ctx context.Context) ([]PriceTable, error) {
	return s.repo.ListTables(ctx)
}

// ListItems returns one page of rendered items.
func (s *Service) ListItems(ctx context.Context, tableID int64, filters shared.ListFilters) (ItemPage, error) {
	if tableID <= 0 {
		return ItemPage{}, shared.ErrInvalidID
	}
	key, err := s.cache.BuildKey(ctx, "items", strconv.FormatInt(tableID, 10), filters.CacheKey())
	if err != nil {
		s.logger.Warn("price table cache unavailable", slog.Any("error", err))
		return s.loadPage(ctx, tableID, filters)
	}
	v, err, _ := s.group.Do(key, func() (any, error) {
		var page ItemPage
		err := s.cache.FetchJSON(ctx, key, &page, func(ctx context.Context) (any, error) {
			return s.loadPage(ctx, tableID, filters)
		})
		return page, err
	})
	if err != nil {
		return ItemPage{}, err
	}
	return v.(ItemPage), nil
}

func (s *Service) loadPage(ctx context.Context, tableID int64, filters shared.ListFilters) (ItemPage, error) {
	items, total, err := s.repo.ListItems(ctx, tableID, filters)
	if err != nil {
		return ItemPage{}, err
	}
	views := make([]ItemView, len(items))
	for i, item := range items {
		views[i] = newItemView(item)
	}
	return ItemPage{Items: views, Pagination: shared.NewPagination(filters.Page, filters.Limit, total)}, nil
}

// GetItem loads one item.
func (s *Service) GetItem(ctx context.Context, id int64) (Item, error) {
	if id <= 0 {
		return Item{}, shared.ErrInvalidID
	}
	return s.repo.GetItem(ctx, id)
}

// Resolve completes a patch that touches the change descriptor with the
// computed sell price. The stored item supplies the base price and any
// descriptor half the patch leaves out.
func (s *Service) Resolve(ctx context.Context, patch editbuffer.Patch) (editbuffer.Patch, error) {
	_, hasType := patch.Fields[FieldChangeType]
	_, hasAmount := patch.Fields[FieldChangeAmount]
	if !hasType && !hasAmount {
		return patch, nil
	}
	id, err := itemID(patch.ID)
	if err != nil {
		return patch, err
	}
	item, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return patch, err
	}
	desc, err := mergeDescriptor(item.Descriptor(), patch.Fields)
	if err != nil {
		return patch, err
	}
	if err := pricing.ValidateDescriptor(desc); err != nil {
		return patch, err
	}
	res, err := desc.Apply(item.Base)
	if err != nil {
		return patch, fmt.Errorf("pricetables: item %d: %w", id, err)
	}
	res = res.Rounded(2)

	fields := make(editbuffer.Draft, len(patch.Fields)+2)
	for k, v := range patch.Fields {
		fields[k] = v
	}
	fields[FieldChangeType] = string(desc.Type)
	fields[FieldChangeAmount] = desc.Amount
	fields[FieldSellExcl] = res.ExclTax
	fields[FieldSellIncl] = res.InclTax
	return editbuffer.Patch{ID: patch.ID, Fields: fields}, nil
}

// UpdateRow writes one patch. It implements bulkcommit.RowUpdater.
func (s *Service) UpdateRow(ctx context.Context, patch editbuffer.Patch) error {
	id, err := itemID(patch.ID)
	if err != nil {
		return err
	}
	upd, err := parseUpdate(patch.Fields)
	if err != nil {
		return err
	}
	if upd.ChangeType != nil && upd.ChangeAmount != nil {
		if err := pricing.ValidateDescriptor(pricing.ChangeDescriptor{Type: *upd.ChangeType, Amount: *upd.ChangeAmount}); err != nil {
			return err
		}
	}
	return s.repo.UpdateItem(ctx, id, upd)
}

// ValidateField checks a value at input capture. Percentages are checked
// against the change type in the draft, or the stored one when the draft
// has none.
func (s *Service) ValidateField(ctx context.Context, row editbuffer.RowID, field string, value any, draft editbuffer.Draft) error {
	switch field {
	case FieldChangeType:
		ct, err := changeTypeValue(value)
		if err != nil {
			return err
		}
		raw, ok := draft[FieldChangeAmount]
		if !ok {
			return nil
		}
		amount, err := decimalValue(FieldChangeAmount, raw)
		if err != nil {
			return err
		}
		return pricing.ValidateDescriptor(pricing.ChangeDescriptor{Type: ct, Amount: amount})
	case FieldChangeAmount:
		amount, err := decimalValue(field, value)
		if err != nil {
			return err
		}
		ct, err := s.draftChangeType(ctx, row, draft)
		if err != nil {
			return err
		}
		if ct == "" {
			if amount.IsNegative() {
				return &pricing.ValidationError{Field: field, Reason: "must not be negative"}
			}
			return nil
		}
		return pricing.ValidateDescriptor(pricing.ChangeDescriptor{Type: ct, Amount: amount})
	case FieldSellExcl, FieldSellIncl:
		amount, err := decimalValue(field, value)
		if err != nil {
			return err
		}
		if amount.IsNegative() {
			return &pricing.ValidationError{Field: field, Reason: "must not be negative"}
		}
		return nil
	default:
		return &pricing.ValidationError{Field: field, Reason: "is not editable"}
	}
}

func (s *Service) draftChangeType(ctx context.Context, row editbuffer.RowID, draft editbuffer.Draft) (pricing.ChangeType, error) {
	if raw, ok := draft[FieldChangeType]; ok {
		return changeTypeValue(raw)
	}
	id, err := itemID(row)
	if err != nil {
		return "", err
	}
	item, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return "", err
	}
	return item.ChangeType, nil
}

// Refresh invalidates cached pages. It implements bulkcommit.Refreshable.
func (s *Service) Refresh(ctx context.Context) error {
	if err := s.cache.Bump(ctx); err != nil {
		return fmt.Errorf("pricetables: refresh: %w", err)
	}
	return nil
}

// CategoryPatches builds one patch per item of a category carrying the
// descriptor. The sell price is filled in by Resolve at commit time.
func (s *Service) CategoryPatches(ctx context.Context, tableID, categoryID int64, desc pricing.ChangeDescriptor) ([]editbuffer.Patch, error) {
	if tableID <= 0 || categoryID <= 0 {
		return nil, shared.ErrInvalidID
	}
	if err := pricing.ValidateDescriptor(desc); err != nil {
		return nil, err
	}
	items, err := s.repo.ItemsByCategory(ctx, tableID, categoryID)
	if err != nil {
		return nil, err
	}
	patches := make([]editbuffer.Patch, len(items))
	for i, item := range items {
		patches[i] = editbuffer.Patch{
			ID: RowID(item.ID),
			Fields: editbuffer.Draft{
				FieldChangeType:   string(desc.Type),
				FieldChangeAmount: desc.Amount,
			},
		}
	}
	return patches, nil
}

// Quote prices a base with a descriptor without touching storage.
func (s *Service) Quote(base pricing.Money, desc pricing.ChangeDescriptor) (pricing.Result, error) {
	if err := pricing.ValidateDescriptor(desc); err != nil {
		return pricing.Result{}, err
	}
	res, err := desc.Apply(base)
	if err != nil {
		return pricing.Result{}, err
	}
	return res.Rounded(2), nil
}

func mergeDescriptor(stored pricing.ChangeDescriptor, fields editbuffer.Draft) (pricing.ChangeDescriptor, error) {
	desc := stored
	if raw, ok := fields[FieldChangeType]; ok {
		ct, err := changeTypeValue(raw)
		if err != nil {
			return desc, err
		}
		desc.Type = ct
	}
	if raw, ok := fields[FieldChangeAmount]; ok {
		amount, err := decimalValue(FieldChangeAmount, raw)
		if err != nil {
			return desc, err
		}
		desc.Amount = amount
	}
	if desc.Type == "" {
		return desc, &pricing.ValidationError{Field: FieldChangeType, Reason: "is required"}
	}
	return desc, nil
}
