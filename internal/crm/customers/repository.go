package customers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iris-crm/iris/internal/crm"
	"github.com/iris-crm/iris/internal/platform/db"
)

// Repository defines persistence operations for customers.
type Repository interface {
	Create(ctx context.Context, c *Customer) (int64, error)
	Get(ctx context.Context, id int64) (*Customer, error)
	List(ctx context.Context, f Filter) ([]Customer, int, error)
	Update(ctx context.Context, c *Customer, expectedVersion int64) error
	Delete(ctx context.Context, id int64) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const customerColumns = `id, name, email, phone, address, city, state, zip, notes, status, user_id, version, created_at, updated_at`

func scanCustomer(row pgx.Row) (*Customer, error) {
	var c Customer
	err := row.Scan(
		&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.City, &c.State, &c.Zip,
		&c.Notes, &c.Status, &c.UserID, &c.Version, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, crm.ErrNotFound
		}
		return nil, db.WrapTransient(err)
	}
	return &c, nil
}

// Create inserts a customer and returns its id.
func (r *PGRepository) Create(ctx context.Context, c *Customer) (int64, error) {
	const query = `
		INSERT INTO customers (name, email, phone, address, city, state, zip, notes, status, user_id, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1, $11, $11)
		RETURNING id`
	now := time.Now().UTC()
	var id int64
	err := r.pool.QueryRow(ctx, query,
		c.Name, c.Email, c.Phone, c.Address, c.City, c.State, c.Zip, c.Notes, c.Status, c.UserID, now,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert customer: %w", err)
	}
	return id, nil
}

// Get retrieves a customer by id.
func (r *PGRepository) Get(ctx context.Context, id int64) (*Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`
	return scanCustomer(r.pool.QueryRow(ctx, query, id))
}

// List returns customers matching the filter plus the unpaginated total.
func (r *PGRepository) List(ctx context.Context, f Filter) ([]Customer, int, error) {
	conditions := []string{"1=1"}
	args := []any{}
	idx := 1
	if f.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", idx))
		args = append(args, f.Status)
		idx++
	}
	if f.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR email ILIKE $%d)", idx, idx))
		args = append(args, "%"+f.Search+"%")
		idx++
	}
	where := strings.Join(conditions, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM customers WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, db.WrapTransient(fmt.Errorf("count customers: %w", err))
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
		`SELECT %s FROM customers WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		customerColumns, where, idx, idx+1,
	)
	args = append(args, perPage, (page-1)*perPage)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, db.WrapTransient(fmt.Errorf("list customers: %w", err))
	}
	defer rows.Close()

	var out []Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(
			&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.City, &c.State, &c.Zip,
			&c.Notes, &c.Status, &c.UserID, &c.Version, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

// Update writes a customer conditional on the expected version. A stale
// version surfaces as ErrConflict.
func (r *PGRepository) Update(ctx context.Context, c *Customer, expectedVersion int64) error {
	const query = `
		UPDATE customers
		SET name = $1, email = $2, phone = $3, address = $4, city = $5, state = $6,
		    zip = $7, notes = $8, status = $9, version = version + 1, updated_at = $10
		WHERE id = $11 AND version = $12`
	tag, err := r.pool.Exec(ctx, query,
		c.Name, c.Email, c.Phone, c.Address, c.City, c.State, c.Zip, c.Notes, c.Status,
		time.Now().UTC(), c.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update customer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.Get(ctx, c.ID); err != nil {
			return err
		}
		return fmt.Errorf("%w: customer %d version %d is stale", crm.ErrConflict, c.ID, expectedVersion)
	}
	return nil
}

// Delete removes a customer record.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return crm.ErrNotFound
	}
	return nil
}

var _ Repository = (*PGRepository)(nil)
