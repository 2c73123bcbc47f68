package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opsdesk/opsdesk/internal/shared"
)

// Repository persists inventory items in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const itemColumns = `id, department_id, item_number, item_name, quantity, min_quantity,
	COALESCE(location, ''), COALESCE(description, ''), COALESCE(unit, ''), created_by, created_at, updated_at`

func scanItem(row pgx.Row) (Item, error) {
	var item Item
	err := row.Scan(&item.ID, &item.DepartmentID, &item.ItemNumber, &item.ItemName,
		&item.Quantity, &item.MinQuantity, &item.Location, &item.Description, &item.Unit,
		&item.CreatedBy, &item.CreatedAt, &item.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, fmt.Errorf("inventory item: %w", shared.ErrNotFound)
	}
	if err != nil {
		return Item{}, fmt.Errorf("scan item: %w", err)
	}
	return item, nil
}

// Create inserts one item. Item numbers are unique per department.
func (r *Repository) Create(ctx context.Context, item Item) (Item, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO inventory_items (department_id, item_number, item_name, quantity, min_quantity, location, description, unit, created_by)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''), $9)
		RETURNING `+itemColumns,
		item.DepartmentID, item.ItemNumber, item.ItemName, item.Quantity, item.MinQuantity,
		item.Location, item.Description, item.Unit, item.CreatedBy)
	created, err := scanItem(row)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return Item{}, fmt.Errorf("item number %s already exists: %w", item.ItemNumber, shared.ErrConflict)
	}
	return created, err
}

// Get loads one item.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Item, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE id = $1`, id)
	return scanItem(row)
}

// ListByDepartments returns items in the given departments. An empty list
// means no department filter.
func (r *Repository) ListByDepartments(ctx context.Context, departmentIDs []uuid.UUID) ([]Item, error) {
	query := `SELECT ` + itemColumns + ` FROM inventory_items`
	var args []any
	if len(departmentIDs) > 0 {
		query += ` WHERE department_id = ANY($1)`
		args = append(args, departmentIDs)
	}
	query += ` ORDER BY item_number`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// Update applies the non-nil patch fields.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, update ItemUpdate) (Item, error) {
	sets := []string{"updated_at = NOW()"}
	args := []any{id}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if update.ItemName != nil {
		add("item_name", *update.ItemName)
	}
	if update.Quantity != nil {
		add("quantity", *update.Quantity)
	}
	if update.MinQuantity != nil {
		add("min_quantity", *update.MinQuantity)
	}
	if update.Location != nil {
		add("location", *update.Location)
	}
	if update.Description != nil {
		add("description", *update.Description)
	}
	if update.Unit != nil {
		add("unit", *update.Unit)
	}

	tag, err := r.pool.Exec(ctx, `UPDATE inventory_items SET `+strings.Join(sets, ", ")+` WHERE id = $1`, args...)
	if err != nil {
		return Item{}, fmt.Errorf("update item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Item{}, fmt.Errorf("inventory item %s: %w", id, shared.ErrNotFound)
	}
	return r.Get(ctx, id)
}

// Delete removes one item.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM inventory_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("inventory item %s: %w", id, shared.ErrNotFound)
	}
	return nil
}

// Stats aggregates the stock position over the given departments.
func (r *Repository) Stats(ctx context.Context, departmentIDs []uuid.UUID) (Stats, error) {
	query := `
		SELECT COUNT(*),
		       COALESCE(SUM(quantity), 0),
		       COUNT(DISTINCT location) FILTER (WHERE location IS NOT NULL),
		       COUNT(*) FILTER (WHERE quantity <= min_quantity)
		FROM inventory_items`
	var args []any
	if len(departmentIDs) > 0 {
		query += ` WHERE department_id = ANY($1)`
		args = append(args, departmentIDs)
	}

	var stats Stats
	err := r.pool.QueryRow(ctx, query, args...).Scan(&stats.TotalItems, &stats.TotalQuantity, &stats.UniqueLocations, &stats.LowStockItems)
	if err != nil {
		return Stats{}, fmt.Errorf("inventory stats: %w", err)
	}
	return stats, nil
}
