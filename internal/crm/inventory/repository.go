package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iris-crm/iris/internal/crm"
	"github.com/iris-crm/iris/internal/platform/db"
)

// Repository defines persistence operations for stock items.
type Repository interface {
	Create(ctx context.Context, item *Item) (int64, error)
	Get(ctx context.Context, id int64) (*Item, error)
	List(ctx context.Context, f Filter) ([]Item, int, error)
	Adjust(ctx context.Context, id, delta, expectedVersion int64) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const itemColumns = `id, sku, name, description, quantity_on_hand, unit, reorder_level, version, created_at, updated_at`

// Create inserts a stock item. A duplicate SKU surfaces as ErrConflict.
func (r *PGRepository) Create(ctx context.Context, item *Item) (int64, error) {
	const query = `
		INSERT INTO inventory_items (sku, name, description, quantity_on_hand, unit, reorder_level, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 1, $7, $7)
		RETURNING id`
	var id int64
	err := r.pool.QueryRow(ctx, query,
		item.SKU, item.Name, item.Description, item.QuantityOnHand, item.Unit, item.ReorderLevel, time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, fmt.Errorf("%w: sku %s already exists", crm.ErrConflict, item.SKU)
		}
		return 0, fmt.Errorf("insert inventory item: %w", err)
	}
	return id, nil
}

// Get retrieves one stock item.
func (r *PGRepository) Get(ctx context.Context, id int64) (*Item, error) {
	var item Item
	err := r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE id = $1`, id).Scan(
		&item.ID, &item.SKU, &item.Name, &item.Description, &item.QuantityOnHand,
		&item.Unit, &item.ReorderLevel, &item.Version, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, crm.ErrNotFound
		}
		return nil, db.WrapTransient(err)
	}
	return &item, nil
}

// List returns stock items matching the filter plus the unpaginated total.
func (r *PGRepository) List(ctx context.Context, f Filter) ([]Item, int, error) {
	conditions := []string{"1=1"}
	args := []any{}
	idx := 1
	if f.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR sku ILIKE $%d)", idx, idx))
		args = append(args, "%"+f.Search+"%")
		idx++
	}
	if f.LowStock {
		conditions = append(conditions, "quantity_on_hand <= reorder_level")
	}
	where := strings.Join(conditions, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM inventory_items WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, db.WrapTransient(fmt.Errorf("count inventory items: %w", err))
	}

	perPage := f.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	query := fmt.Sprintf(
		`SELECT %s FROM inventory_items WHERE %s ORDER BY name LIMIT $%d OFFSET $%d`,
		itemColumns, where, idx, idx+1,
	)
	args = append(args, perPage, (page-1)*perPage)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, db.WrapTransient(fmt.Errorf("list inventory items: %w", err))
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(
			&item.ID, &item.SKU, &item.Name, &item.Description, &item.QuantityOnHand,
			&item.Unit, &item.ReorderLevel, &item.Version, &item.CreatedAt, &item.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		out = append(out, item)
	}
	return out, total, rows.Err()
}

// Adjust applies a signed delta conditional on the expected version and a
// non-negative result. Version staleness and an underflowing delta both
// leave zero rows affected; the caller distinguishes them.
func (r *PGRepository) Adjust(ctx context.Context, id, delta, expectedVersion int64) error {
	const query = `
		UPDATE inventory_items
		SET quantity_on_hand = quantity_on_hand + $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4 AND quantity_on_hand + $1 >= 0`
	tag, err := r.pool.Exec(ctx, query, delta, time.Now().UTC(), id, expectedVersion)
	if err != nil {
		return fmt.Errorf("adjust inventory item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		item, err := r.Get(ctx, id)
		if err != nil {
			return err
		}
		if item.Version != expectedVersion {
			return fmt.Errorf("%w: item %d version %d is stale", crm.ErrConflict, id, expectedVersion)
		}
		return fmt.Errorf("%w: adjusting item %d by %d would take stock below zero", crm.ErrValidation, id, delta)
	}
	return nil
}

var _ Repository = (*PGRepository)(nil)
