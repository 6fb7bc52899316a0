package stock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/pricedesk/internal/editbuffer"
	"github.com/odyssey-erp/pricedesk/internal/platform/cache"
	"github.com/odyssey-erp/pricedesk/internal/shared"
)

// MaxLocationLength bounds the shelf location label.
const MaxLocationLength = 64

type rowForm struct {
	Quantity    *float64 `json:"quantity" validate:"omitempty,gte=0"`
	MinQuantity *float64 `json:"min_quantity" validate:"omitempty,gte=0"`
	Location    *string  `json:"location" validate:"omitempty,max=64"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Service lists stock records and writes back edited rows.
type Service struct {
	repo   Repository
	cache  *cache.Versioned
	logger *slog.Logger
}

// NewService constructs the service. A nil cache reads straight through.
func NewService(repo Repository, cache *cache.Versioned, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger}
}

// List returns one page of a warehouse's stock.
func (s *Service) List(ctx context.Context, warehouseID int64, filters shared.ListFilters) (Page, error) {
	if warehouseID <= 0 {
		return Page{}, shared.ErrInvalidID
	}
	load := func(ctx context.Context) (any, error) {
		records, total, err := s.repo.List(ctx, warehouseID, filters)
		if err != nil {
			return nil, err
		}
		views := make([]RecordView, len(records))
		for i, rec := range records {
			views[i] = RecordView{Record: rec, BelowMinimum: rec.BelowMinimum()}
		}
		return Page{Records: views, Pagination: shared.NewPagination(filters.Page, filters.Limit, total)}, nil
	}
	key, err := s.cache.BuildKey(ctx, "warehouse", strconv.FormatInt(warehouseID, 10), filters.CacheKey())
	if err != nil {
		s.logger.Warn("stock cache unavailable", slog.Any("error", err))
		key = ""
	}
	var page Page
	if key == "" {
		v, err := load(ctx)
		if err != nil {
			return Page{}, err
		}
		return v.(Page), nil
	}
	if err := s.cache.FetchJSON(ctx, key, &page, load); err != nil {
		return Page{}, err
	}
	return page, nil
}

// UpdateRow validates and writes one patch. It implements bulkcommit.RowUpdater.
func (s *Service) UpdateRow(ctx context.Context, patch editbuffer.Patch) error {
	id, err := shared.ParseID(string(patch.ID))
	if err != nil {
		return err
	}
	upd, err := parseUpdate(patch.Fields)
	if err != nil {
		return err
	}
	return s.repo.Update(ctx, id, upd)
}

// ValidateField checks one value at input capture.
func (s *Service) ValidateField(_ context.Context, _ editbuffer.RowID, field string, value any, _ editbuffer.Draft) error {
	_, err := parseUpdate(editbuffer.Draft{field: value})
	return err
}

// Refresh invalidates cached pages. It implements bulkcommit.Refreshable.
func (s *Service) Refresh(ctx context.Context) error {
	if err := s.cache.Bump(ctx); err != nil {
		return fmt.Errorf("stock: refresh: %w", err)
	}
	return nil
}

func parseUpdate(fields editbuffer.Draft) (Update, error) {
	var form rowForm
	var upd Update
	for field, raw := range fields {
		switch field {
		case FieldQuantity, FieldMinQuantity:
			d, err := quantityValue(field, raw)
			if err != nil {
				return Update{}, err
			}
			if d.IsNegative() {
				return Update{}, &shared.ValidationError{Field: field, Reason: "must not be negative"}
			}
			f := d.InexactFloat64()
			if field == FieldQuantity {
				upd.Quantity, form.Quantity = &d, &f
			} else {
				upd.MinQuantity, form.MinQuantity = &d, &f
			}
		case FieldLocation:
			loc, ok := raw.(string)
			if !ok {
				return Update{}, &shared.ValidationError{Field: field, Reason: fmt.Sprintf("must be text, got %T", raw)}
			}
			loc = strings.TrimSpace(loc)
			upd.Location, form.Location = &loc, &loc
		default:
			return Update{}, &shared.ValidationError{Field: field, Reason: "is not editable"}
		}
	}
	if err := validate.Struct(form); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return Update{}, &shared.ValidationError{Field: fieldErrs[0].Field(), Reason: reason(fieldErrs[0])}
		}
		return Update{}, err
	}
	return upd, nil
}

func quantityValue(field string, v any) (decimal.Decimal, error) {
	switch val := v.(type) {
	case decimal.Decimal:
		return val, nil
	case float64:
		return decimal.NewFromFloat(val), nil
	case int:
		return decimal.NewFromInt(int64(val)), nil
	case int64:
		return decimal.NewFromInt(val), nil
	case json.Number:
		d, err := decimal.NewFromString(val.String())
		if err != nil {
			return decimal.Decimal{}, &shared.ValidationError{Field: field, Reason: "must be a number"}
		}
		return d, nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(val))
		if err != nil {
			return decimal.Decimal{}, &shared.ValidationError{Field: field, Reason: "must be a number"}
		}
		return d, nil
	default:
		return decimal.Decimal{}, &shared.ValidationError{Field: field, Reason: fmt.Sprintf("unsupported value %T", v)}
	}
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gte":
		return "must not be negative"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return fe.Error()
	}
}
