package stock

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/pricedesk/internal/platform/db"
	"github.com/odyssey-erp/pricedesk/internal/shared"
)

// Repository persists warehouse stock.
type Repository interface {
	List(ctx context.Context, warehouseID int64, filters shared.ListFilters) ([]Record, int, error)
	Get(ctx context.Context, id int64) (Record, error)
	Update(ctx context.Context, id int64, upd Update) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const recordSelect = `SELECT s.id, s.warehouse_id, s.variant_id, v.sku, v.name,
	s.quantity::text, s.min_quantity::text, s.location, s.updated_at
	FROM warehouse_stock s JOIN product_variants v ON v.id = s.variant_id`

func (r *repository) List(ctx context.Context, warehouseID int64, filters shared.ListFilters) ([]Record, int, error) {
	where := ` WHERE s.warehouse_id = $1`
	args := []any{warehouseID}
	argCount := 1
	if filters.Search != "" {
		argCount++
		where += ` AND (v.name ILIKE $` + strconv.Itoa(argCount) + ` OR s.location ILIKE $` + strconv.Itoa(argCount) + `)`
		args = append(args, "%"+filters.Search+"%")
	}

	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM warehouse_stock s JOIN product_variants v ON v.id = s.variant_id`+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("stock: count: %w", err)
	}

	query := recordSelect + where + ` ORDER BY ` + sortOrder(filters.SortBy, filters.SortDir)
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
		return nil, 0, fmt.Errorf("stock: list: %w", err)
	}
	defer rows.Close()
	records, err := scanRecords(rows)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (r *repository) Get(ctx context.Context, id int64) (Record, error) {
	rows, err := r.pool.Query(ctx, recordSelect+` WHERE s.id = $1`, id)
	if err != nil {
		return Record{}, fmt.Errorf("stock: get: %w", err)
	}
	defer rows.Close()
	records, err := scanRecords(rows)
	if err != nil {
		return Record{}, err
	}
	if len(records) == 0 {
		return Record{}, ErrRecordNotFound
	}
	return records[0], nil
}

func (r *repository) Update(ctx context.Context, id int64, upd Update) error {
	if upd.Empty() {
		return nil
	}
	var sets []string
	var args []any
	if upd.Quantity != nil {
		args = append(args, upd.Quantity.String())
		sets = append(sets, "quantity = $"+strconv.Itoa(len(args)))
	}
	if upd.MinQuantity != nil {
		args = append(args, upd.MinQuantity.String())
		sets = append(sets, "min_quantity = $"+strconv.Itoa(len(args)))
	}
	if upd.Location != nil {
		args = append(args, *upd.Location)
		sets = append(sets, "location = $"+strconv.Itoa(len(args)))
	}
	args = append(args, id)
	query := `UPDATE warehouse_stock SET ` + strings.Join(sets, ", ") + `, updated_at = NOW() WHERE id = $` + strconv.Itoa(len(args))

	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("stock: update %d: %w", id, err)
		}
		if tag.RowsAffected() == 0 {
			return ErrRecordNotFound
		}
		return nil
	})
}

func scanRecords(rows pgx.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		var rec Record
		var qty, minQty string
		if err := rows.Scan(&rec.ID, &rec.WarehouseID, &rec.VariantID, &rec.VariantSKU, &rec.VariantName,
			&qty, &minQty, &rec.Location, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("stock: scan: %w", err)
		}
		var err error
		if rec.Quantity, err = decimal.NewFromString(qty); err != nil {
			return nil, err
		}
		if rec.MinQuantity, err = decimal.NewFromString(minQty); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == "desc" {
		dir = "DESC"
	}
	switch sortBy {
	case "name":
		return "v.name " + dir
	case "quantity":
		return "s.quantity " + dir
	case "location":
		return "s.location " + dir
	default:
		return "s.id " + dir
	}
}
