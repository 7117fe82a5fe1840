package quotes

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

// Repository defines persistence operations for quotes and their items.
type Repository interface {
	Create(ctx context.Context, q *Quote) (int64, error)
	Get(ctx context.Context, id int64) (*Quote, error)
	List(ctx context.Context, f Filter) ([]Quote, int, error)
	CustomerExists(ctx context.Context, customerID int64) (bool, error)
	UpdateStatus(ctx context.Context, id int64, from, to QuoteStatus) error
	UpdateDetails(ctx context.Context, q *Quote, expectedVersion int64) error
	ReplaceItems(ctx context.Context, id, expectedVersion int64, items []QuoteItem, total float64) error
	RecalculateTotal(ctx context.Context, id int64) (float64, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const quoteColumns = `id, customer_id, enquiry_id, title, description, total_amount, status,
	valid_until, notes, user_id, version, created_at, updated_at`

// Create inserts the quote and its items in one transaction.
func (r *PGRepository) Create(ctx context.Context, q *Quote) (int64, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	const insertQuote = `
		INSERT INTO quotes (customer_id, enquiry_id, title, description, total_amount, status, valid_until, notes, user_id, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1, $10, $10)
		RETURNING id`
	now := time.Now().UTC()
	var id int64
	err = tx.QueryRow(ctx, insertQuote,
		q.CustomerID, q.EnquiryID, q.Title, q.Description, q.TotalAmount, q.Status,
		q.ValidUntil, q.Notes, q.UserID, now,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert quote: %w", err)
	}
	for _, it := range q.Items {
		_, err := tx.Exec(ctx,
			`INSERT INTO quote_items (quote_id, description, quantity, unit_price, total, product_id)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			id, it.Description, it.Quantity, it.UnitPrice, it.Total, it.ProductID,
		)
		if err != nil {
			return 0, fmt.Errorf("insert quote item: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return id, nil
}

// Get retrieves a quote with its items.
func (r *PGRepository) Get(ctx context.Context, id int64) (*Quote, error) {
	query := `SELECT ` + quoteColumns + ` FROM quotes WHERE id = $1`
	var q Quote
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&q.ID, &q.CustomerID, &q.EnquiryID, &q.Title, &q.Description, &q.TotalAmount, &q.Status,
		&q.ValidUntil, &q.Notes, &q.UserID, &q.Version, &q.CreatedAt, &q.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, crm.ErrNotFound
		}
		return nil, db.WrapTransient(err)
	}
	items, err := r.getItems(ctx, id)
	if err != nil {
		return nil, err
	}
	q.Items = items
	return &q, nil
}

func (r *PGRepository) getItems(ctx context.Context, quoteID int64) ([]QuoteItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, quote_id, description, quantity, unit_price, total, product_id
		 FROM quote_items WHERE quote_id = $1 ORDER BY id`,
		quoteID,
	)
	if err != nil {
		return nil, fmt.Errorf("load quote items: %w", err)
	}
	defer rows.Close()

	var items []QuoteItem
	for rows.Next() {
		var it QuoteItem
		if err := rows.Scan(&it.ID, &it.QuoteID, &it.Description, &it.Quantity, &it.UnitPrice, &it.Total, &it.ProductID); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// List returns quotes matching the filter, without items.
func (r *PGRepository) List(ctx context.Context, f Filter) ([]Quote, int, error) {
	conditions := []string{"1=1"}
	args := []any{}
	idx := 1
	if f.CustomerID != 0 {
		conditions = append(conditions, fmt.Sprintf("customer_id = $%d", idx))
		args = append(args, f.CustomerID)
		idx++
	}
	if f.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", idx))
		args = append(args, f.Status)
		idx++
	}
	where := strings.Join(conditions, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM quotes WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, db.WrapTransient(fmt.Errorf("count quotes: %w", err))
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
		`SELECT %s FROM quotes WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		quoteColumns, where, idx, idx+1,
	)
	args = append(args, perPage, (page-1)*perPage)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, db.WrapTransient(fmt.Errorf("list quotes: %w", err))
	}
	defer rows.Close()

	var out []Quote
	for rows.Next() {
		var q Quote
		if err := rows.Scan(
			&q.ID, &q.CustomerID, &q.EnquiryID, &q.Title, &q.Description, &q.TotalAmount, &q.Status,
			&q.ValidUntil, &q.Notes, &q.UserID, &q.Version, &q.CreatedAt, &q.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		out = append(out, q)
	}
	return out, total, rows.Err()
}

// CustomerExists checks the referenced customer resolves.
func (r *PGRepository) CustomerExists(ctx context.Context, customerID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM customers WHERE id = $1)`, customerID).Scan(&exists)
	return exists, err
}

// UpdateStatus moves a quote from one status to another. The write is
// conditional on the current status so concurrent transitions serialize.
func (r *PGRepository) UpdateStatus(ctx context.Context, id int64, from, to QuoteStatus) error {
	const query = `
		UPDATE quotes
		SET status = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND status = $4`
	tag, err := r.pool.Exec(ctx, query, to, time.Now().UTC(), id, from)
	if err != nil {
		return fmt.Errorf("update quote status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("%w: quote %d moved away from %s concurrently", crm.ErrConflict, id, from)
	}
	return nil
}

// UpdateDetails writes descriptive fields conditional on the expected version.
func (r *PGRepository) UpdateDetails(ctx context.Context, q *Quote, expectedVersion int64) error {
	const query = `
		UPDATE quotes
		SET title = $1, description = $2, valid_until = $3, notes = $4, version = version + 1, updated_at = $5
		WHERE id = $6 AND version = $7`
	tag, err := r.pool.Exec(ctx, query,
		q.Title, q.Description, q.ValidUntil, q.Notes, time.Now().UTC(), q.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update quote details: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.Get(ctx, q.ID); err != nil {
			return err
		}
		return fmt.Errorf("%w: quote %d version %d is stale", crm.ErrConflict, q.ID, expectedVersion)
	}
	return nil
}

// ReplaceItems swaps the full item set and the derived total in one
// transaction, conditional on the expected version.
func (r *PGRepository) ReplaceItems(ctx context.Context, id, expectedVersion int64, items []QuoteItem, total float64) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE quotes SET total_amount = $1, version = version + 1, updated_at = $2 WHERE id = $3 AND version = $4`,
		total, time.Now().UTC(), id, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update quote total: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("%w: quote %d version %d is stale", crm.ErrConflict, id, expectedVersion)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM quote_items WHERE quote_id = $1`, id); err != nil {
		return fmt.Errorf("clear quote items: %w", err)
	}
	for _, it := range items {
		_, err := tx.Exec(ctx,
			`INSERT INTO quote_items (quote_id, description, quantity, unit_price, total, product_id)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			id, it.Description, it.Quantity, it.UnitPrice, it.Total, it.ProductID,
		)
		if err != nil {
			return fmt.Errorf("insert quote item: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// RecalculateTotal re-derives total_amount from the stored items.
func (r *PGRepository) RecalculateTotal(ctx context.Context, id int64) (float64, error) {
	const query = `
		UPDATE quotes
		SET total_amount = COALESCE((SELECT SUM(total) FROM quote_items WHERE quote_id = quotes.id), 0),
		    updated_at = $1
		WHERE id = $2
		RETURNING total_amount`
	var total float64
	err := r.pool.QueryRow(ctx, query, time.Now().UTC(), id).Scan(&total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, crm.ErrNotFound
		}
		return 0, fmt.Errorf("recalculate quote total: %w", err)
	}
	return total, nil
}

var _ Repository = (*PGRepository)(nil)
