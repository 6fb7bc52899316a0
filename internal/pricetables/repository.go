package pricetables

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/pricedesk/internal/platform/db"
	"github.com/odyssey-erp/pricedesk/internal/pricing"
	"github.com/odyssey-erp/pricedesk/internal/shared"
)

// Repository persists price tables and their items.
type Repository interface {
	ListTables(ctx context.Context) ([]PriceTable, error)
	ListItems(ctx context.Context, tableID int64, filters shared.ListFilters) ([]Item, int, error)
	GetItem(ctx context.Context, id int64) (Item, error)
	ItemsByCategory(ctx context.Context, tableID, categoryID int64) ([]Item, error)
	UpdateItem(ctx context.Context, id int64, upd ItemUpdate) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const itemColumns = `i.id, i.price_table_id, i.variant_id, v.sku, v.name, v.category_id,
	v.base_excl_tax::text, v.base_incl_tax::text, i.change_type, COALESCE(i.change_amount, 0)::text,
	COALESCE(i.sell_excl_tax, 0)::text, COALESCE(i.sell_incl_tax, 0)::text, i.updated_at`

const itemFrom = ` FROM price_table_items i JOIN product_variants v ON v.id = i.variant_id`

func (r *repository) ListTables(ctx context.Context) ([]PriceTable, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, active FROM price_tables ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("pricetables: list tables: %w", err)
	}
	defer rows.Close()

	var tables []PriceTable
	for rows.Next() {
		var t PriceTable
		if err := rows.Scan(&t.ID, &t.Name, &t.Active); err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

// ListItems uses a dynamic query because of the optional filters.
func (r *repository) ListItems(ctx context.Context, tableID int64, filters shared.ListFilters) ([]Item, int, error) {
	where := ` WHERE i.price_table_id = $1`
	args := []any{tableID}
	argCount := 1

	if filters.Search != "" {
		argCount++
		where += ` AND (v.name ILIKE $` + strconv.Itoa(argCount) + ` OR v.sku ILIKE $` + strconv.Itoa(argCount) + `)`
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.CategoryID != nil {
		argCount++
		where += ` AND v.category_id = $` + strconv.Itoa(argCount)
		args = append(args, *filters.CategoryID)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+itemFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pricetables: count items: %w", err)
	}

	query := `SELECT ` + itemColumns + itemFrom + where + ` ORDER BY ` + sortOrder(filters.SortBy, filters.SortDir)
	if filters.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filters.Limit)

		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		args = append(args, filters.Offset())
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pricetables: list items: %w", err)
	}
	defer rows.Close()

	items, err := scanItems(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *repository) GetItem(ctx context.Context, id int64) (Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+itemFrom+` WHERE i.id = $1`, id)
	if err != nil {
		return Item{}, fmt.Errorf("pricetables: get item: %w", err)
	}
	defer rows.Close()
	items, err := scanItems(rows)
	if err != nil {
		return Item{}, err
	}
	if len(items) == 0 {
		return Item{}, ErrItemNotFound
	}
	return items[0], nil
}

func (r *repository) ItemsByCategory(ctx context.Context, tableID, categoryID int64) ([]Item, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+itemColumns+itemFrom+` WHERE i.price_table_id = $1 AND v.category_id = $2 ORDER BY i.id`,
		tableID, categoryID)
	if err != nil {
		return nil, fmt.Errorf("pricetables: items by category: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

// UpdateItem writes the non-nil columns of upd in one transaction.
func (r *repository) UpdateItem(ctx context.Context, id int64, upd ItemUpdate) error {
	if upd.Empty() {
		return nil
	}
	sets := []string{}
	args := []any{}
	argCount := 0
	add := func(column string, value any) {
		argCount++
		sets = append(sets, column+" = $"+strconv.Itoa(argCount))
		args = append(args, value)
	}
	if upd.ChangeType != nil {
		add("change_type", string(*upd.ChangeType))
	}
	if upd.ChangeAmount != nil {
		add("change_amount", upd.ChangeAmount.String())
	}
	if upd.SellExcl != nil {
		add("sell_excl_tax", upd.SellExcl.String())
	}
	if upd.SellIncl != nil {
		add("sell_incl_tax", upd.SellIncl.String())
	}
	argCount++
	args = append(args, id)
	query := `UPDATE price_table_items SET ` + strings.Join(sets, ", ") + `, updated_at = NOW() WHERE id = $` + strconv.Itoa(argCount)

	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("pricetables: update item %d: %w", id, err)
		}
		if tag.RowsAffected() == 0 {
			return ErrItemNotFound
		}
		return nil
	})
}

func scanItems(rows pgx.Rows) ([]Item, error) {
	var items []Item
	for rows.Next() {
		var item Item
		var changeType *string
		var baseExcl, baseIncl, amount, excl, incl string
		var updatedAt time.Time
		if err := rows.Scan(&item.ID, &item.PriceTableID, &item.VariantID, &item.VariantSKU, &item.VariantName,
			&item.CategoryID, &baseExcl, &baseIncl, &changeType, &amount, &excl, &incl, &updatedAt); err != nil {
			return nil, fmt.Errorf("pricetables: scan item: %w", err)
		}
		if changeType != nil {
			item.ChangeType = pricing.ChangeType(*changeType)
		}
		var err error
		if item.Base.ExclTax, err = decimal.NewFromString(baseExcl); err != nil {
			return nil, err
		}
		if item.Base.InclTax, err = decimal.NewFromString(baseIncl); err != nil {
			return nil, err
		}
		if item.ChangeAmount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		if item.SellExcl, err = decimal.NewFromString(excl); err != nil {
			return nil, err
		}
		if item.SellIncl, err = decimal.NewFromString(incl); err != nil {
			return nil, err
		}
		item.UpdatedAt = updatedAt
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}
	return items, nil
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == "desc" {
		dir = "DESC"
	}
	switch sortBy {
	case "sku":
		return "v.sku " + dir
	case "name":
		return "v.name " + dir
	case "price":
		return "i.sell_incl_tax " + dir + " NULLS LAST"
	default:
		return "i.id " + dir
	}
}
